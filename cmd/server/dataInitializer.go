package main

import (
	"context"

	"github.com/rs/zerolog"

	"chatlima-server/internal/config"
	"chatlima-server/internal/domain/cleanup"
)

// DataInitializer seeds rows the server expects on first start.
type DataInitializer struct {
	cleanupService *cleanup.CleanupService
	cfg            *config.Config
	log            zerolog.Logger
}

func (d *DataInitializer) Install(ctx context.Context) error {
	return d.seedCleanupConfig(ctx)
}

// seedCleanupConfig stores the env-provided schedule so admins see it before their first edit.
func (d *DataInitializer) seedCleanupConfig(ctx context.Context) error {
	seed := cleanup.DefaultConfig()
	seed.Enabled = d.cfg.CleanupEnabled
	if d.cfg.CleanupCron != "" {
		seed.Schedule = d.cfg.CleanupCron
	}

	wrote, err := d.cleanupService.SeedConfig(ctx, seed)
	if err != nil {
		return err
	}
	if wrote {
		d.log.Info().Bool("enabled", seed.Enabled).Str("schedule", seed.Schedule).Msg("seeded cleanup config")
	}
	return nil
}
