package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/shopspring/decimal"
)

// Global singleton for code paths that run outside the wire graph (cron reload, version route)
var globalConfig *Config

// Config holds all environment backed configuration for the chat server.
type Config struct {
	// HTTP Server
	HTTPPort    int      `env:"HTTP_PORT" envDefault:"8080"`
	PprofAddr   string   `env:"PPROF_ADDR" envDefault:"0.0.0.0:6060"`
	DatabaseURL string   `env:"DATABASE_URL,notEmpty"`
	RedisURL    string   `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	// Auth
	AuthJWTSecret       string        `env:"AUTH_JWT_SECRET,notEmpty"`
	AuthIssuer          string        `env:"AUTH_ISSUER" envDefault:"chatlima"`
	JWKSURL             string        `env:"JWKS_URL"`
	RefreshJWKSInterval time.Duration `env:"JWKS_REFRESH_INTERVAL" envDefault:"5m"`
	AnonymousTokenTTL   time.Duration `env:"ANONYMOUS_TOKEN_TTL" envDefault:"720h"`
	AdminUserIDs        []string      `env:"ADMIN_USER_IDS" envSeparator:","`
	CronSecret          string        `env:"CRON_SECRET"`

	// Providers
	OpenRouterAPIKey  string        `env:"OPENROUTER_API_KEY"`
	OpenRouterBaseURL string        `env:"OPENROUTER_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	RequestyAPIKey    string        `env:"REQUESTY_API_KEY"`
	RequestyBaseURL   string        `env:"REQUESTY_BASE_URL" envDefault:"https://router.requesty.ai/v1"`
	ProviderTimeout   time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"120s"`

	// Model catalog
	ModelCatalogTTL     time.Duration `env:"MODEL_CATALOG_TTL" envDefault:"10m"`
	ModelPolicyFile     string        `env:"BLOCKED_MODELS_FILE" envDefault:"config/model_policy.yaml"`
	BlocklistReloadCron string        `env:"BLOCKLIST_RELOAD_CRON" envDefault:"*/5 * * * *"`

	// Credits, limits and web search
	WebSearchCostCredits       int64  `env:"WEB_SEARCH_COST_CREDITS" envDefault:"5"`
	AnonymousDailyMessageLimit int64  `env:"ANONYMOUS_DAILY_MESSAGE_LIMIT" envDefault:"10"`
	FreeDailyMessageLimit      int64  `env:"FREE_DAILY_MESSAGE_LIMIT" envDefault:"20"`
	DefaultMonthlyMessageLimit int64  `env:"DEFAULT_MONTHLY_MESSAGE_LIMIT" envDefault:"1000"`
	CreditUnitUSD              string `env:"CREDIT_UNIT_USD" envDefault:"0.01"`
	SignupBonusCredits         int64  `env:"SIGNUP_BONUS_CREDITS" envDefault:"0"`

	// Cleanup
	CleanupEnabled bool   `env:"CLEANUP_ENABLED" envDefault:"false"`
	CleanupCron    string `env:"CLEANUP_CRON" envDefault:"0 3 * * *"`

	// MCP
	MCPInstallTimeout time.Duration `env:"MCP_INSTALL_TIMEOUT" envDefault:"90s"`
	MCPConnectTimeout time.Duration `env:"MCP_CONNECT_TIMEOUT" envDefault:"20s"`
	MCPDisabledModels []string      `env:"MCP_DISABLED_MODELS" envSeparator:","`

	// Observability / Logging
	OTLPEndpoint     string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPHeaders      string  `env:"OTEL_EXPORTER_OTLP_HEADERS"`
	TraceSampleRatio float64 `env:"OTEL_TRACE_SAMPLE_RATIO" envDefault:"1"`
	ServiceName      string  `env:"SERVICE_NAME" envDefault:"chatlima-server"`
	ServiceNamespace string  `env:"SERVICE_NAMESPACE" envDefault:"chatlima"`
	Environment      string  `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel         string  `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat        string  `env:"LOG_FORMAT" envDefault:"console"`

	// Features
	AutoMigrate bool `env:"AUTO_MIGRATE" envDefault:"true"`

	// Internal
	EnvReloadedAt time.Time
}

// Load parses environment variables into Config and performs minimal validation.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.JWKSURL != "" {
		if _, err := url.ParseRequestURI(cfg.JWKSURL); err != nil {
			return nil, fmt.Errorf("invalid JWKS_URL: %w", err)
		}
	}

	if _, err := decimal.NewFromString(cfg.CreditUnitUSD); err != nil {
		return nil, fmt.Errorf("invalid CREDIT_UNIT_USD: %w", err)
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	cfg.EnvReloadedAt = time.Now()

	globalConfig = cfg

	return cfg, nil
}

// CreditUnit returns the USD value of one credit.
func (c *Config) CreditUnit() decimal.Decimal {
	unit, err := decimal.NewFromString(c.CreditUnitUSD)
	if err != nil || !unit.IsPositive() {
		return decimal.RequireFromString("0.01")
	}
	return unit
}

// IsAdminUser reports whether the user id is listed in ADMIN_USER_IDS.
func (c *Config) IsAdminUser(userID string) bool {
	for _, id := range c.AdminUserIDs {
		if strings.TrimSpace(id) == userID && userID != "" {
			return true
		}
	}
	return false
}

// GetGlobal returns the last loaded config.
// Deprecated: Use dependency injection with Load() instead.
func GetGlobal() *Config {
	return globalConfig
}

// GetEnvReloadedAt returns when the environment was last reloaded
func GetEnvReloadedAt() time.Time {
	if globalConfig != nil {
		return globalConfig.EnvReloadedAt
	}
	return time.Time{}
}

var Version = "dev"

func IsDev() bool {
	return strings.HasPrefix(Version, "dev")
}
