// Package main runs the group-admin process: the Telegram long poller
// watching joins and leaves, the verification session state machine,
// and the relay endpoint the API process delivers results to.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"nftgate/internal/audit"
	"nftgate/internal/config"
	"nftgate/internal/observability"
	"nftgate/internal/orchestrator"
	"nftgate/internal/relay"
	"nftgate/internal/storage"
	"nftgate/internal/storage/memory"
	"nftgate/internal/storage/migrations"
	pgstore "nftgate/internal/storage/postgres"
	"nftgate/internal/telegram"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("loading configuration failed", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateBot(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := createStore(ctx, cfg)
	if err != nil {
		logger.Error("creating session store failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	client := telegram.NewClient(cfg.TelegramBotToken)
	notifier := telegram.NewAdminNotifier(client, cfg.AdminChatID, logger)
	auditLog := audit.NewLog(cfg.AuditLogPath)

	orch := orchestrator.New(orchestrator.Options{
		Store:         store,
		Audit:         auditLog,
		Admin:         client,
		Notifier:      notifier,
		GroupID:       cfg.TelegramGroupID,
		VerifyBaseURL: cfg.VerifyBaseURL,
		Timeout:       cfg.VerificationTimeout,
		SweepInterval: cfg.SweepInterval,
		Logger:        logger,
	})

	mailbox := relay.NewMailbox(cfg.RelayCapacity)
	consumer := relay.NewConsumer(mailbox, orch, cfg.RelayPollInterval, logger)
	poller := telegram.NewPoller(client, cfg.TelegramGroupID, orch, auditLog, logger)

	router := mux.NewRouter()
	relay.NewHandler(mailbox, logger).Register(router)
	router.Handle("/metrics", observability.Handler()).Methods(http.MethodGet)

	httpServer := &http.Server{
		Addr:         cfg.BotListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		orch.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		consumer.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		poller.Run(ctx)
	}()

	go func() {
		logger.Info("relay endpoint listening", "addr", cfg.BotListenAddr)
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
	}
	wg.Wait()
	logger.Info("shutdown complete")
}

// createStore builds the configured session store. The memory backend
// serves a single-process bot; postgres shares sessions across
// restarts and replicas.
func createStore(ctx context.Context, cfg *config.Config) (storage.SessionStore, func(), error) {
	if cfg.StorageBackend == config.BackendMemory {
		return memory.NewSessionStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pgstore.NewSessionStore(pool), pool.Close, nil
}
