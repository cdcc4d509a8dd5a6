package domain

import (
	"strings"

	"github.com/google/wire"

	"chatlima-server/internal/config"
	"chatlima-server/internal/domain/catalog"
	"chatlima-server/internal/domain/chat"
	"chatlima-server/internal/domain/cleanup"
	"chatlima-server/internal/domain/completion"
	"chatlima-server/internal/domain/credit"
	"chatlima-server/internal/domain/export"
	"chatlima-server/internal/domain/mcpserver"
	"chatlima-server/internal/domain/messageproc"
	"chatlima-server/internal/domain/pricing"
	"chatlima-server/internal/domain/tokenusage"
	"chatlima-server/internal/domain/usagelimit"
	"chatlima-server/internal/domain/user"
	"chatlima-server/internal/domain/websearch"
)

// ServiceProvider provides all domain services
var ServiceProvider = wire.NewSet(
	// Model catalog
	ProvideBlockList,
	ProvideCatalogSettings,
	catalog.NewModelCatalogService,

	// Users and credits
	ProvideUserSettings,
	user.NewService,
	wire.Bind(new(user.CreditGranter), new(*credit.CreditService)),
	ProvideCreditSettings,
	credit.NewCreditService,

	// Limits, web search, MCP and attachments
	ProvideUsageLimitSettings,
	usagelimit.NewUsageLimitsService,
	ProvideWebSearchSettings,
	websearch.NewChatWebSearchService,
	ProvideMCPSettings,
	mcpserver.NewChatMCPServerService,
	messageproc.NewChatMessageProcessingService,

	// Chats, usage and pricing
	chat.NewChatDatabaseService,
	tokenusage.NewService,
	pricing.NewPricingService,
	wire.Bind(new(pricing.ModelLookup), new(*catalog.ModelCatalogService)),
	export.NewChatExportService,
	wire.Bind(new(export.ChatReader), new(*chat.ChatDatabaseService)),

	// Cleanup
	cleanup.NewCleanupService,

	// Streaming pipeline
	completion.NewChatCompletionService,
	wire.Bind(new(completion.ModelResolver), new(*catalog.ModelCatalogService)),
	wire.Bind(new(completion.UsageLimiter), new(*usagelimit.UsageLimitsService)),
	wire.Bind(new(completion.ChatStore), new(*chat.ChatDatabaseService)),
	wire.Bind(new(completion.UsageRecorder), new(*tokenusage.Service)),
	wire.Bind(new(completion.PriceResolver), new(*pricing.PricingService)),
	wire.Bind(new(completion.ActivityTracker), new(*user.Service)),
)

func ProvideBlockList(cfg *config.Config) (*config.BlockList, error) {
	return config.NewBlockList(cfg.ModelPolicyFile)
}

// ProvideCatalogSettings enables every router with a base URL.
func ProvideCatalogSettings(cfg *config.Config) catalog.Settings {
	var providers []catalog.Provider
	if strings.TrimSpace(cfg.OpenRouterBaseURL) != "" {
		providers = append(providers, catalog.ProviderOpenRouter)
	}
	if strings.TrimSpace(cfg.RequestyBaseURL) != "" {
		providers = append(providers, catalog.ProviderRequesty)
	}
	return catalog.Settings{
		Providers: providers,
		CacheTTL:  cfg.ModelCatalogTTL,
	}
}

func ProvideUserSettings(cfg *config.Config) user.Settings {
	return user.Settings{
		Issuer:   cfg.AuthIssuer,
		AdminIDs: cfg.AdminUserIDs,
	}
}

func ProvideCreditSettings(cfg *config.Config) credit.Settings {
	return credit.Settings{
		CreditUnitUSD: cfg.CreditUnit(),
		SignupBonus:   cfg.SignupBonusCredits,
	}
}

func ProvideUsageLimitSettings(cfg *config.Config) usagelimit.Settings {
	return usagelimit.Settings{
		AnonymousDaily: cfg.AnonymousDailyMessageLimit,
		FreeDaily:      cfg.FreeDailyMessageLimit,
		DefaultMonthly: cfg.DefaultMonthlyMessageLimit,
	}
}

func ProvideWebSearchSettings(cfg *config.Config) websearch.Settings {
	return websearch.Settings{CostCredits: cfg.WebSearchCostCredits}
}

func ProvideMCPSettings(cfg *config.Config) mcpserver.Settings {
	return mcpserver.Settings{
		DisabledModels: cfg.MCPDisabledModels,
		ConnectTimeout: cfg.MCPConnectTimeout,
	}
}
