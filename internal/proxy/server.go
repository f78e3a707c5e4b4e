// Package proxy serves the frame's price API: a read-through cache in front
// of the upstream token-price service. The cache holds one key with a fixed
// TTL so bursts of frame loads cost at most one upstream call per window.
package proxy

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	gocache "github.com/patrickmn/go-cache"

	"github.com/jc4p/jc4p-auction-frame/internal/engine"
	"github.com/jc4p/jc4p-auction-frame/internal/logger"
	"github.com/jc4p/jc4p-auction-frame/internal/pricefeed"
)

const priceCacheKey = "eth_price"

// PriceFetcher fetches the current spot price. *pricefeed.Client satisfies
// it.
type PriceFetcher interface {
	FetchPrice(ctx context.Context) (*pricefeed.Quote, error)
}

// priceResponse is the successful /api/eth-price body. The price stays a
// string exactly as the upstream reported it.
type priceResponse struct {
	Price string `json:"price"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server is the caching price proxy.
type Server struct {
	fetcher PriceFetcher
	cache   *gocache.Cache
	router  *mux.Router

	allowedOrigins []string
}

// NewServer creates a proxy caching fetched prices for cacheTTL.
func NewServer(fetcher PriceFetcher, cacheTTL time.Duration, allowedOrigins []string) *Server {
	s := &Server{
		fetcher: fetcher,
		// Expired entries are dropped by the store itself; the handler
		// never checks timestamps.
		cache:          gocache.New(cacheTTL, cacheTTL),
		allowedOrigins: allowedOrigins,
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/eth-price", s.handleEthPrice).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodOptions)
	s.router = r

	return s
}

// Handler returns the server's root handler with CORS applied.
func (s *Server) Handler() http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins(s.allowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
		handlers.ExposedHeaders([]string{"Content-Length"}),
		handlers.MaxAge(86400),
		handlers.AllowCredentials(),
	)(s.router)
}

// handleEthPrice serves the cached price, fetching from upstream on a miss.
// Upstream failures return 500 and are never cached, so the next request
// retries immediately.
func (s *Server) handleEthPrice(w http.ResponseWriter, r *http.Request) {
	if cached, ok := s.cache.Get(priceCacheKey); ok {
		writeJSON(w, http.StatusOK, cached.(priceResponse))
		return
	}

	quote, err := s.fetcher.FetchPrice(r.Context())
	if err != nil {
		logger.Error("price fetch failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error: engine.Truncate(err.Error(), engine.MaxErrorDisplayLength),
		})
		return
	}

	resp := priceResponse{Price: quote.Value}
	s.cache.SetDefault(priceCacheKey, resp)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response: %v", err)
	}
}
