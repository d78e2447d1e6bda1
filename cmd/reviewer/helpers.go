package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/at-ishikawa/reviewer/internal/app"
	"github.com/at-ishikawa/reviewer/internal/bootstrap"
	"github.com/at-ishikawa/reviewer/internal/config"
	"github.com/at-ishikawa/reviewer/internal/review"
)

func loadConfig() (*config.Config, error) {
	loader, err := config.NewConfigLoader(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create config loader: %w", err)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// runWithService builds the review service from the configuration and calls fn with it.
// Connections opened for the service are closed when fn returns.
func runWithService(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, service *review.Service) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	bootstrapApp := bootstrap.New()
	components, err := app.Build(cfg, bootstrapApp)
	if err != nil {
		return fmt.Errorf("app.Build() > %w", err)
	}
	service := components.NewService(cfg)

	return bootstrapApp.Run(cmd.Context(), func(ctx context.Context) error {
		return fn(ctx, cfg, service)
	})
}
