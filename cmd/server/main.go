package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"persona/internal/platform/config"
	"persona/internal/platform/httpserver"
	"persona/internal/platform/logger"
	"persona/internal/platform/metrics"
	"persona/internal/verification/handler"
	"persona/pkg/platform/httputil"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("persona exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	deps, err := buildInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.close()

	app, err := buildApp(ctx, cfg, deps, log)
	if err != nil {
		return err
	}

	httpMetrics := metrics.New()
	router := chi.NewRouter()
	router.Get("/healthz", healthHandler(deps))
	router.Handle("/metrics", promhttp.Handler())
	handlerOpts := []handler.Option{
		handler.WithPublicBaseURL(cfg.Server.PublicBaseURL),
		handler.WithRequestTimeout(cfg.Server.RequestTimeout),
		handler.WithAuditPublisher(app.audit),
	}
	if app.generator != nil {
		handlerOpts = append(handlerOpts,
			handler.WithRequestGenerator(app.generator),
			handler.WithSessionValidator(app.sessions),
		)
	}
	handler.New(app.service, app.personas, log, httpMetrics, handlerOpts...).Register(router)

	srv := httpserver.New(cfg.Server, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting persona",
			"addr", cfg.Server.Addr,
			"store", string(cfg.Ledger.Backend),
			"chain_id", cfg.Ledger.ChainID,
			"request_generation", app.generator != nil,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		err := srv.Shutdown(shutdownCtx)
		app.audit.Close()
		return err
	})
	return g.Wait()
}

func healthHandler(deps *infra) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		checks := map[string]string{}
		if deps.redis != nil {
			checks["redis"] = "ok"
			if err := deps.redis.Health(r.Context()); err != nil {
				checks["redis"] = "unavailable"
				status = http.StatusServiceUnavailable
			}
		}
		if deps.db != nil {
			checks["postgres"] = "ok"
			if err := deps.db.PingContext(r.Context()); err != nil {
				checks["postgres"] = "unavailable"
				status = http.StatusServiceUnavailable
			}
		}
		if deps.breaker != nil {
			checks["ledger"] = deps.breaker.State().String()
		}
		httputil.WriteJSON(w, status, map[string]any{"status": http.StatusText(status), "checks": checks})
	}
}
