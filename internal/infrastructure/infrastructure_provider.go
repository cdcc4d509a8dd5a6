package infrastructure

import (
	"context"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"chatlima-server/internal/config"
	"chatlima-server/internal/domain/catalog"
	"chatlima-server/internal/domain/completion"
	"chatlima-server/internal/infrastructure/auth"
	"chatlima-server/internal/infrastructure/cache"
	"chatlima-server/internal/infrastructure/crontab"
	"chatlima-server/internal/infrastructure/database"
	"chatlima-server/internal/infrastructure/database/repository"
	"chatlima-server/internal/infrastructure/inference"
	"chatlima-server/internal/infrastructure/logger"
	"chatlima-server/internal/infrastructure/mcpclient"
)

// ProvideConfig loads and provides the application configuration
func ProvideConfig() (*config.Config, error) {
	return config.Load()
}

// ProvideLogger applies LOG_LEVEL and LOG_FORMAT to the process logger.
func ProvideLogger(cfg *config.Config) (zerolog.Logger, error) {
	return logger.New(cfg.LogLevel, cfg.LogFormat)
}

// ProvideValidator provides a JWT validator
func ProvideValidator(cfg *config.Config, log zerolog.Logger) (*auth.Validator, error) {
	return auth.NewValidator(context.Background(), cfg, log)
}

// ProvideDatabase provides a database connection
func ProvideDatabase(cfg *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	db, err := database.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	// Run migrations if AUTO_MIGRATE is enabled
	if cfg.AutoMigrate {
		log.Info().Msg("Running database migrations...")
		if err := database.AutoMigrate(db); err != nil {
			log.Error().Err(err).Msg("Failed to run database migrations")
			return nil, err
		}
		log.Info().Msg("Database migrations completed successfully")
	}

	return db, nil
}

// Infrastructure holds the dependencies the HTTP server probes and authenticates with.
type Infrastructure struct {
	DB        *gorm.DB
	Redis     redis.UniversalClient
	Validator *auth.Validator
	Logger    zerolog.Logger
}

// NewInfrastructure creates a new infrastructure instance
func NewInfrastructure(
	db *gorm.DB,
	rdb redis.UniversalClient,
	validator *auth.Validator,
	logger zerolog.Logger,
) *Infrastructure {
	return &Infrastructure{
		DB:        db,
		Redis:     rdb,
		Validator: validator,
		Logger:    logger,
	}
}

// InfrastructureProvider provides all infrastructure dependencies
var InfrastructureProvider = wire.NewSet(
	// Config and logging
	ProvideConfig,
	ProvideLogger,

	// Database
	ProvideDatabase,
	repository.RepositoryProvider,

	// Redis counters and locks
	cache.NewRedisClient,
	cache.NewUsageCounter,
	cache.NewRedisLocker,

	// Upstream routers
	inference.NewInferenceProvider,
	wire.Bind(new(catalog.ModelListFetcher), new(*inference.InferenceProvider)),
	wire.Bind(new(completion.ProviderClient), new(*inference.InferenceProvider)),

	// MCP transports
	mcpclient.MCPClientProvider,

	// Auth
	ProvideValidator,
	auth.NewTokenIssuer,

	// Scheduled jobs
	crontab.NewCrontab,

	// Infrastructure struct
	NewInfrastructure,
)
