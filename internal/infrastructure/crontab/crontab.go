package crontab

import (
	"context"
	"time"

	"github.com/mileusna/crontab"
	"github.com/rs/zerolog"

	"chatlima-server/internal/config"
	"chatlima-server/internal/domain/catalog"
	"chatlima-server/internal/domain/cleanup"
	"chatlima-server/internal/utils/platformerrors"
)

const (
	CronJobTimeout  = 10 * time.Minute // Timeout for each cron job execution
	envReloadExpr   = "* * * * *"
	catalogWarmWait = 30 * time.Second
)

// ScheduledCleanup runs the stored cleanup configuration.
type ScheduledCleanup interface {
	RunScheduled(ctx context.Context) (*cleanup.ExecutionResult, error)
}

// ModelCatalog is the part of the catalog the scheduler touches.
type ModelCatalog interface {
	ListModels(ctx context.Context) (*catalog.CatalogResult, error)
	ReloadPolicy() error
}

type Crontab struct {
	ctab    *crontab.Crontab
	cleanup ScheduledCleanup
	catalog ModelCatalog
	cfg     *config.Config
	log     zerolog.Logger
}

func NewCrontab(
	cleanupService *cleanup.CleanupService,
	catalogService *catalog.ModelCatalogService,
	cfg *config.Config,
	log zerolog.Logger,
) *Crontab {
	return newCrontab(cleanupService, catalogService, cfg, log)
}

func newCrontab(cleanupJob ScheduledCleanup, models ModelCatalog, cfg *config.Config, log zerolog.Logger) *Crontab {
	return &Crontab{
		ctab:    crontab.New(),
		cleanup: cleanupJob,
		catalog: models,
		cfg:     cfg,
		log:     log.With().Str("component", "crontab").Logger(),
	}
}

// Run registers the jobs and blocks until ctx is cancelled.
func (c *Crontab) Run(ctx context.Context) error {
	defer c.ctab.Shutdown()

	// warm the catalog cache once on server start
	warmCtx, cancel := context.WithTimeout(ctx, catalogWarmWait)
	c.warmCatalog(warmCtx)
	cancel()

	if err := c.ctab.AddJob(c.cfg.BlocklistReloadCron, c.reloadBlocklist); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to add blocklist reload job")
	}

	if c.cfg.CleanupEnabled {
		if err := c.ctab.AddJob(c.cfg.CleanupCron, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), CronJobTimeout)
			defer cancel()
			c.runCleanup(jobCtx)
		}); err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to add cleanup job")
		}
		c.log.Info().Str("schedule", c.cfg.CleanupCron).Msg("anonymous user cleanup scheduled")
	}

	// Schedule environment reload job
	if err := c.ctab.AddJob(envReloadExpr, c.reloadEnv); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to add env reload job")
	}

	<-ctx.Done()
	return nil
}

func (c *Crontab) warmCatalog(ctx context.Context) {
	result, err := c.catalog.ListModels(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to warm model catalog")
		return
	}
	for _, f := range result.Failures {
		c.log.Warn().Err(f.Err).Str("provider", string(f.Provider)).Msg("provider skipped while warming catalog")
	}
	c.log.Info().Int("models", len(result.Models)).Msg("model catalog warmed")
}

func (c *Crontab) reloadBlocklist() {
	if err := c.catalog.ReloadPolicy(); err != nil {
		c.log.Error().Err(err).Msg("failed to reload model blocklist")
	}
}

func (c *Crontab) runCleanup(ctx context.Context) {
	result, err := c.cleanup.RunScheduled(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("scheduled cleanup failed")
		return
	}
	if result.Skipped {
		c.log.Debug().Msg("scheduled cleanup disabled in stored config")
		return
	}
	c.log.Info().
		Str("execution_id", result.ExecutionID).
		Int("users_deleted", result.UsersDeleted).
		Int("errors", len(result.Errors)).
		Msg("scheduled cleanup finished")
}

func (c *Crontab) reloadEnv() {
	if _, err := config.Load(); err != nil {
		c.log.Warn().Err(err).Msg("failed to reload environment")
	}
}
