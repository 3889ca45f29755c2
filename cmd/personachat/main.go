package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ent0n29/personachat/internal/chat"
	"github.com/ent0n29/personachat/internal/config"
	"github.com/ent0n29/personachat/internal/httpapi"
	"github.com/ent0n29/personachat/internal/janitor"
	"github.com/ent0n29/personachat/internal/logging"
	"github.com/ent0n29/personachat/internal/observability"
	"github.com/ent0n29/personachat/internal/ratelimit"
	"github.com/ent0n29/personachat/internal/session"
	"github.com/ent0n29/personachat/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("personachat exited")
	}
}

func run(cfg config.Config, logger zerolog.Logger) error {
	ctx := context.Background()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.ServiceName, cfg.OTLPEndpoint, logger)
	if err != nil {
		return fmt.Errorf("tracing init failed: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	completer, err := upstream.New(upstream.Config{
		Mode:    cfg.UpstreamMode,
		BaseURL: cfg.UpstreamBaseURL,
		APIKey:  cfg.UpstreamAPIKey,
		Model:   cfg.UpstreamModel,
		Timeout: cfg.UpstreamTimeout,
	})
	if err != nil {
		return fmt.Errorf("upstream client init failed: %w", err)
	}
	if !cfg.UpstreamConfigured() {
		logger.Warn().Msg("GROQ_API_KEY is not set; chat requests will fail upstream")
	}
	logger.Info().
		Str("mode", cfg.UpstreamMode).
		Str("model", cfg.UpstreamModel).
		Dur("timeout", cfg.UpstreamTimeout).
		Msg("upstream client ready")

	limiter := ratelimit.New(ratelimit.DefaultWindow, ratelimit.DefaultLimit)
	logger.Info().
		Int("limit", limiter.Limit()).
		Dur("window", limiter.Window()).
		Msg("rate limiter ready")
	sessions := session.NewStore()
	sessions.SetExpireHook(func(sessionID string) {
		logger.Debug().Str("session_id", sessionID).Msg("session expired")
	})

	chatService := chat.NewService(limiter, sessions, completer, chat.Options{
		UpstreamTimeout: cfg.UpstreamTimeout,
		Logger:          logger,
		Metrics:         metrics,
	})

	sweeper := janitor.New(janitor.Config{
		Schedule:         cfg.JanitorSchedule,
		SessionIdleTTL:   cfg.SessionIdleTTL,
		RateLimitIdleTTL: cfg.RateLimitIdleTTL,
	}, sessions, limiter, metrics, logger)
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("janitor init failed: %w", err)
	}
	defer sweeper.Stop()

	api := httpapi.New(cfg, chatService, metrics, logger)
	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.BindAddr).Str("chat_path", cfg.ChatPath).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("listen error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		_ = httpServer.Close()
	}

	logger.Info().Msg("shutdown complete")
	return nil
}
