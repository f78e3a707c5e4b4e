// Package metadata resolves an NFT token URI into render fields. The
// contract may hand back an inline data: URI or a plain HTTPS URL; both
// carry the same JSON document.
package metadata

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const dataURIPrefix = "data:application/json;base64,"

// maxDocumentBytes caps remote metadata documents so a misbehaving host
// cannot balloon memory.
const maxDocumentBytes = 1 << 20

// ErrUnrecognizedURI means the token URI is neither an inline JSON data URI
// nor an HTTPS URL. Callers treat it as "image unavailable", not a fatal
// condition.
var ErrUnrecognizedURI = errors.New("unrecognized token URI scheme")

// Token is the subset of the NFT metadata document the frame renders.
type Token struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// Resolver fetches and decodes token metadata.
type Resolver struct {
	httpClient *http.Client
}

func NewResolver(timeout time.Duration) *Resolver {
	return &Resolver{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Resolve decodes the metadata document behind uri. Inline base64 data URIs
// decode locally; https URLs are fetched. Anything else returns
// ErrUnrecognizedURI.
func (r *Resolver) Resolve(ctx context.Context, uri string) (*Token, error) {
	switch {
	case strings.HasPrefix(uri, dataURIPrefix):
		return decodeInline(strings.TrimPrefix(uri, dataURIPrefix))
	case strings.HasPrefix(uri, "https://"):
		return r.fetch(ctx, uri)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnrecognizedURI, schemeOf(uri))
	}
}

func decodeInline(encoded string) (*Token, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode inline metadata: %w", err)
	}
	return decodeDocument(raw)
}

func (r *Resolver) fetch(ctx context.Context, uri string) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("build metadata request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch metadata: unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("read metadata body: %w", err)
	}
	return decodeDocument(raw)
}

func decodeDocument(raw []byte) (*Token, error) {
	var tok Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("parse metadata JSON: %w", err)
	}
	return &tok, nil
}

func schemeOf(uri string) string {
	if i := strings.Index(uri, ":"); i >= 0 {
		return uri[:i]
	}
	return uri
}
