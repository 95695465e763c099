package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/sidpendyala/marketmaker/internal/api/handlers"
	"github.com/sidpendyala/marketmaker/internal/api/middleware"
	"github.com/sidpendyala/marketmaker/internal/engine"
	"github.com/sidpendyala/marketmaker/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and scan scheduler",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	d, err := buildDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	shutdownTelemetry, err := telemetry.Init(ctx, d.cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	scheduler, err := engine.NewScheduler(
		d.scanner,
		d.store,
		d.cfg.Schedule.ScanInterval,
		d.cfg.Schedule.CleanupInterval,
		d.cfg.Schedule.RetentionDays,
		d.log,
	)
	if err != nil {
		return fmt.Errorf("building scheduler: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLog(d.log))
	e.Use(middleware.Recovery(d.log))
	e.Use(middleware.Metrics())

	handlers.RegisterHealthRoutes(e, handlers.NewHealthHandler(d.store))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := humaecho.New(e, huma.DefaultConfig("MarketMaker API", Version))
	handlers.RegisterMarketMakerRoutes(api, handlers.NewMarketMakerHandler(d.agent))
	handlers.RegisterSellAdvisorRoutes(api, handlers.NewSellAdvisorHandler(d.market))
	handlers.RegisterTrackedSearchRoutes(api, handlers.NewTrackedSearchHandler(d.store, d.codec))
	handlers.RegisterJobRoutes(api, handlers.NewJobsHandler(scheduler, d.cfg.Security.JobSecret))

	scheduler.Start()

	addr := fmt.Sprintf("%s:%d", d.cfg.Server.Host, d.cfg.Server.Port)
	d.log.Info("starting server", "addr", addr)

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.log.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	d.log.Info("shutting down server")

	<-scheduler.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		d.log.Error("telemetry shutdown failed", "error", err)
	}

	d.log.Info("server stopped")
	return nil
}
