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
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/matchboard/internal/app"
	"github.com/kjstillabower/matchboard/internal/cache"
	"github.com/kjstillabower/matchboard/internal/config"
	httphandler "github.com/kjstillabower/matchboard/internal/http"
	"github.com/kjstillabower/matchboard/internal/lifecycle"
	"github.com/kjstillabower/matchboard/internal/observability"
)

// version is set at build time via ldflags.
var version = "dev"

const inFlightCheckInterval = 100 * time.Millisecond

func main() {
	logger, err := observability.NewLogger("service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	lifecycle.MarkStarted(time.Now())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("wiring", zap.Error(err))
	}

	handler := httphandler.NewHandler(a.Matches, &httphandler.HealthConfig{
		DegradedWindow:    cfg.DegradedWindow,
		DegradedErrorPct:  cfg.DegradedErrorPct,
		CredentialMissing: cfg.CredentialMissing(),
		CachePing:         a.Store.Ping,
		Version:           version,
	}, logger)
	observability.RegisterTrafficGauges(cfg.DegradedWindow)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	router := httphandler.NewRouter(handler, httphandler.RouterConfig{
		Limiter:            limiter,
		RequestTimeout:     cfg.RequestTimeout,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// Live fetches are slow; the write deadline must cover the request timeout.
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	if cfg.WarmOnStart {
		warmer := cache.NewWarmer(a.Matches, logger)
		g.Go(func() error {
			if err := warmer.WarmPeriodic(gCtx, cfg.WarmInterval); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("cache warming stopped", zap.Error(err))
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("graceful shutdown triggered")
		lifecycle.SetShuttingDown(true)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", zap.Error(err))
		}
		logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
		if err := httphandler.WaitForInFlight(shutdownCtx, inFlightCheckInterval); err != nil {
			logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("service stopped", zap.Error(err))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	if err := a.Close(); err != nil {
		logger.Error("cache store close", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
