package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/at-ishikawa/reviewer/internal/app"
	"github.com/at-ishikawa/reviewer/internal/bootstrap"
	"github.com/at-ishikawa/reviewer/internal/config"
	"github.com/at-ishikawa/reviewer/internal/metrics"
	"github.com/at-ishikawa/reviewer/internal/server"
	"github.com/at-ishikawa/reviewer/internal/syncjob"
)

var configFile string

func main() {
	var debugMode bool
	rootCmd := &cobra.Command{
		Use:           "reviewer-server",
		Short:         "Review scheduling service HTTP server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogger(debugMode)
			return run(cmd.Context())
		},
	}
	rootCmd.Flags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug mode")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	bootstrapApp := bootstrap.New()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loadConfig() > %w", err)
	}

	components, err := app.Build(cfg, bootstrapApp)
	if err != nil {
		return fmt.Errorf("app.Build() > %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	service := components.NewService(cfg)
	m := metrics.New(registry)
	handler := server.NewReviewHandler(service, m)
	mux := server.NewMux(handler, registry, components.Ping)

	srv := server.NewHTTPServer(fmt.Sprintf(":%d", cfg.Server.Port), mux, cfg.Server.CORS.AllowedOrigins)
	bootstrapApp.AddShutdownHook("http server", srv.Shutdown)

	if cfg.Catalog.SyncSchedule != "" {
		job, err := syncjob.New(service, cfg.Catalog.SyncSchedule, cfg.Catalog.SyncLearners, syncjob.WithMetrics(m))
		if err != nil {
			return fmt.Errorf("syncjob.New() > %w", err)
		}
		job.Start()
		bootstrapApp.AddShutdownHook("catalog sync", job.Stop)
	}

	return bootstrapApp.Run(ctx, func(ctx context.Context) error {
		slog.Default().Info("Starting server",
			"addr", srv.Addr,
			"store", cfg.Store.Driver,
			"lock", cfg.Lock.Driver,
			"catalog", cfg.Catalog.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
}

func loadConfig() (*config.Config, error) {
	loader, err := config.NewConfigLoader(configFile)
	if err != nil {
		return nil, fmt.Errorf("config.NewConfigLoader() > %w", err)
	}
	return loader.Load()
}

func setupLogger(debugMode bool) {
	logLevel := slog.LevelInfo
	if debugMode {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}
