// Package main runs the verification API process: the HTTP surface the
// wallet front end posts to, the DAS ownership check behind it, and the
// webhook delivery to the bot process.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nftgate/internal/config"
	"nftgate/internal/das"
	"nftgate/internal/httpapi"
	"nftgate/internal/relay"
	"nftgate/internal/verify"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("loading configuration failed", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateAPI(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	fetcher := das.NewClient(cfg.HeliusEndpoint, das.WithAPIKey(cfg.HeliusAPIKey))
	cache := verify.NewCache(fetcher, verify.WithTTL(cfg.CacheTTL))
	verifier := verify.NewVerifier(cache,
		verify.WithMinRequired(cfg.MinNFTRequired),
		verify.WithLogger(logger))

	var webhook *relay.Client
	if cfg.WebhookURL != "" {
		webhook = relay.NewClient(cfg.WebhookURL)
	} else {
		logger.Warn("WEBHOOK_URL not set, results will not reach the bot process")
	}

	server := httpapi.New(httpapi.Options{
		Verifier:          verifier,
		Webhook:           webhook,
		DefaultCollection: cfg.CollectionID,
		Logger:            logger,
	})

	httpServer := &http.Server{
		Addr:         cfg.APIListenAddr,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("verification API listening", "addr", cfg.APIListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
