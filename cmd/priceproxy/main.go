package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jc4p/jc4p-auction-frame/internal/config"
	"github.com/jc4p/jc4p-auction-frame/internal/logger"
	"github.com/jc4p/jc4p-auction-frame/internal/pricefeed"
	"github.com/jc4p/jc4p-auction-frame/internal/proxy"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	fetcher := pricefeed.NewClient(
		cfg.Pricefeed.APIBaseURL,
		cfg.Pricefeed.APIKey,
		cfg.Pricefeed.Symbol,
		cfg.Pricefeed.Timeout,
	)
	server := proxy.NewServer(fetcher, cfg.Proxy.CacheTTL, cfg.Proxy.AllowedOrigins)

	httpServer := &http.Server{
		Addr:         cfg.Proxy.ListenAddr,
		Handler:      server.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("Price proxy listening on %s (cache TTL %v)", cfg.Proxy.ListenAddr, cfg.Proxy.CacheTTL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed: %v", err)
		}
	}()

	<-sigChan
	logger.Info("Shutdown signal received, draining connections...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed: %v", err)
	}
	logger.Info("Service stopped")
}
