// Package pricefeed fetches the current ETH/USD price from the upstream
// token-price API. The proxy server in front of it owns caching and error
// shaping; this client does one fetch per call.
package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client provides access to the Alchemy token-price API.
type Client struct {
	apiBaseURL string
	apiKey     string
	symbol     string
	httpClient *http.Client
}

// priceResponse mirrors the by-symbol response shape. Values arrive as
// decimal strings.
type priceResponse struct {
	Data []struct {
		Symbol string `json:"symbol"`
		Prices []struct {
			Currency      string `json:"currency"`
			Value         string `json:"value"`
			LastUpdatedAt string `json:"lastUpdatedAt"`
		} `json:"prices"`
		Error string `json:"error"`
	} `json:"data"`
}

// Quote is one fetched spot price.
type Quote struct {
	Symbol    string
	Currency  string
	Value     string
	FetchedAt time.Time
}

// NewClient creates a price client. The API key is appended to the request
// path per the upstream URL scheme.
func NewClient(apiBaseURL, apiKey, symbol string, timeout time.Duration) *Client {
	return &Client{
		apiBaseURL: apiBaseURL,
		apiKey:     apiKey,
		symbol:     symbol,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchPrice retrieves the current USD spot price for the configured symbol.
// The call is a single attempt; callers decide whether a failure is worth
// retrying on their own schedule.
func (c *Client) FetchPrice(ctx context.Context) (*Quote, error) {
	reqURL := fmt.Sprintf("%s/%s/tokens/by-symbol?symbols=%s",
		c.apiBaseURL, c.apiKey, url.QueryEscape(c.symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build price request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price API returned status %d", resp.StatusCode)
	}

	var parsed priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode price response: %w", err)
	}

	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("price API returned no data for %s", c.symbol)
	}
	entry := parsed.Data[0]
	if entry.Error != "" {
		return nil, fmt.Errorf("price API error for %s: %s", c.symbol, entry.Error)
	}
	if len(entry.Prices) == 0 || entry.Prices[0].Value == "" {
		return nil, fmt.Errorf("price API returned no price for %s", c.symbol)
	}

	return &Quote{
		Symbol:    entry.Symbol,
		Currency:  entry.Prices[0].Currency,
		Value:     entry.Prices[0].Value,
		FetchedAt: time.Now(),
	}, nil
}
