// phalerts bridges Alertmanager webhook notifications to Phabricator:
// one open Maniphest task per alert group, created or updated in place.
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

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"phalerts.app/server/core/config"
	"phalerts.app/server/internal/conduit"
	"phalerts.app/server/internal/http/handler/webhook"
	"phalerts.app/server/internal/http/router"
	"phalerts.app/server/internal/observe"
	"phalerts.app/server/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	shutdownTelemetry, err := observe.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Error("telemetry shutdown failed", "error", err)
		}
	}()

	gw := conduit.NewClient(cfg.Phabricator.BaseURL, cfg.Phabricator.Token)

	renderer, err := service.NewRenderer(cfg.Reconcile.TitleTemplate)
	if err != nil {
		return err
	}
	resolver := service.NewProjectResolver(gw, service.NewProjectCache(cfg.Reconcile.ProjectCacheTTL))
	finder := service.NewIssueFinder(gw, cfg.Reconcile.SearchResultCap)
	reconciler := service.NewReconciler(gw, resolver, renderer, finder)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	if cfg.Telemetry.OTLPEndpoint != "" {
		engine.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	}

	h := webhook.NewAlertsHandler(reconciler, slog.Default())
	router.AlertsRouter(engine.Group(""), h)
	router.OpsRouter(engine)

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", srv.Addr, "phabricator", cfg.Phabricator.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
