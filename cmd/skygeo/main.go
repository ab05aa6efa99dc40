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

	"go.uber.org/zap"

	"github.com/star/skygeo/internal/api"
	"github.com/star/skygeo/internal/config"
	"github.com/star/skygeo/internal/health"
	"github.com/star/skygeo/internal/log"
	"github.com/star/skygeo/internal/stream"
	"github.com/star/skygeo/internal/tracing"
)

func main() {
	// Config is read with a production logger; the final logger depends on
	// SKYGEO_LOG_DEBUG.
	logger, err := log.New(false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	if cfg.LogDebug {
		if debugLogger, err := log.New(true); err == nil {
			logger = debugLogger
		}
	}
	defer log.Sync(logger)

	if err := health.SelfCheck(); err != nil {
		logger.Fatal("conversion self-check failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.InitTracing(ctx, cfg.Tracing, logger)
	if err != nil {
		logger.Fatal("tracing setup failed", zap.Error(err))
	}

	streamHandler := stream.NewHandler(cfg.Stream, cfg.SiderealModel, logger)
	srv := api.NewServer(api.Config{
		Addr:             cfg.HTTPAddr,
		Auth:             cfg.Auth,
		TrustProxy:       cfg.TrustProxy,
		RateLimitRPS:     cfg.RateLimitRPS,
		RateLimitBurst:   cfg.RateLimitBurst,
		DefaultEllipsoid: cfg.DefaultEllipsoid,
		SiderealModel:    cfg.SiderealModel,
	}, logger, streamHandler, nil)

	go srv.RunJanitor(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			zap.String("addr", cfg.HTTPAddr),
			zap.Bool("auth_enabled", cfg.Auth.Enabled),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server listen error", zap.Error(err))
		tracing.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)
		log.Sync(logger)
		os.Exit(1)
	}
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	tracing.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	logger.Info("server stopped")
}
