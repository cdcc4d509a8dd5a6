package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ChatLima server metrics
var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatlima",
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chatlima",
			Subsystem: "server",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Token counters
	TokensPromptTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatlima",
			Subsystem: "server",
			Name:      "tokens_prompt_total",
			Help:      "Total prompt tokens consumed",
		},
		[]string{"model", "provider"},
	)

	TokensCompletionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatlima",
			Subsystem: "server",
			Name:      "tokens_completion_total",
			Help:      "Total completion tokens generated",
		},
		[]string{"model", "provider"},
	)

	CreditsChargedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatlima",
			Subsystem: "server",
			Name:      "credits_charged_total",
			Help:      "Credits debited from users",
		},
		[]string{"reason"},
	)

	ProviderErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatlima",
			Subsystem: "server",
			Name:      "provider_errors_total",
			Help:      "Total provider call failures",
		},
		[]string{"provider", "error_type"},
	)

	LLMDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chatlima",
			Subsystem: "server",
			Name:      "llm_duration_seconds",
			Help:      "LLM streaming duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"model", "provider"},
	)

	FirstTokenDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chatlima",
			Subsystem: "server",
			Name:      "first_token_seconds",
			Help:      "Time to first token for streaming requests",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"model", "provider"},
	)

	ActiveStreams = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "chatlima",
			Subsystem: "server",
			Name:      "active_streams",
			Help:      "Currently active streaming connections",
		},
		[]string{"model"},
	)

	ProviderHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "chatlima",
			Subsystem: "server",
			Name:      "provider_health",
			Help:      "Provider model list health (1=healthy, 0=unhealthy)",
		},
		[]string{"provider"},
	)

	MCPConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatlima",
			Subsystem: "server",
			Name:      "mcp_connections_total",
			Help:      "MCP server connection attempts",
		},
		[]string{"transport", "status"},
	)

	UsageLimitRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatlima",
			Subsystem: "server",
			Name:      "usage_limit_rejections_total",
			Help:      "Chat requests rejected by daily or monthly message limits",
		},
		[]string{"window"},
	)

	CleanupRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatlima",
			Subsystem: "server",
			Name:      "cleanup_runs_total",
			Help:      "Anonymous user cleanup executions",
		},
		[]string{"triggered_by", "status"},
	)

	CleanupUsersDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chatlima",
			Subsystem: "server",
			Name:      "cleanup_users_deleted_total",
			Help:      "Anonymous users removed by cleanup",
		},
	)

	// User agent metrics (normalized to keep low cardinality)
	UserAgentFamilyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatlima",
			Subsystem: "server",
			Name:      "user_agent_family_total",
			Help:      "Requests by user agent family (browser/cli/sdk/unknown)",
		},
		[]string{"family"},
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint, status).Observe(durationSec)
}

// RecordTokens records token usage for a completion
func RecordTokens(model, provider string, promptTokens, completionTokens int) {
	TokensPromptTotal.WithLabelValues(model, provider).Add(float64(promptTokens))
	TokensCompletionTotal.WithLabelValues(model, provider).Add(float64(completionTokens))
}

func RecordCreditsCharged(reason string, amount int64) {
	CreditsChargedTotal.WithLabelValues(reason).Add(float64(amount))
}

// RecordLLMDuration records the duration of a provider stream
func RecordLLMDuration(model, provider string, durationSec float64) {
	LLMDuration.WithLabelValues(model, provider).Observe(durationSec)
}

// RecordFirstToken records time to first token
func RecordFirstToken(model, provider string, durationSec float64) {
	FirstTokenDuration.WithLabelValues(model, provider).Observe(durationSec)
}

// RecordProviderError records a provider error
func RecordProviderError(provider, errorType string) {
	ProviderErrorsTotal.WithLabelValues(provider, errorType).Inc()
}

// SetProviderHealth sets the health status of a provider
func SetProviderHealth(provider string, healthy bool) {
	val := 0.0
	if healthy {
		val = 1.0
	}
	ProviderHealth.WithLabelValues(provider).Set(val)
}

func IncrementActiveStreams(model string) {
	ActiveStreams.WithLabelValues(model).Inc()
}

func DecrementActiveStreams(model string) {
	ActiveStreams.WithLabelValues(model).Dec()
}

// RecordMCPConnection records one MCP server connect attempt
func RecordMCPConnection(transport string, ok bool) {
	status := "success"
	if !ok {
		status = "error"
	}
	MCPConnectionsTotal.WithLabelValues(transport, status).Inc()
}

func RecordUsageLimitRejection(window string) {
	UsageLimitRejectionsTotal.WithLabelValues(window).Inc()
}

// RecordCleanupRun records a cleanup execution and the users it removed
func RecordCleanupRun(triggeredBy, status string, deleted int) {
	CleanupRunsTotal.WithLabelValues(triggeredBy, status).Inc()
	if deleted > 0 {
		CleanupUsersDeletedTotal.Add(float64(deleted))
	}
}

// RecordUserAgent records the user agent family of a request
func RecordUserAgent(ua string) {
	UserAgentFamilyTotal.WithLabelValues(userAgentFamily(normalizeUserAgent(ua))).Inc()
}

func normalizeUserAgent(ua string) string {
	ua = strings.TrimSpace(strings.ToLower(ua))
	if ua == "" {
		return "unknown"
	}
	parts := strings.Fields(ua)
	norm := parts[0]
	if len(norm) > 60 {
		norm = norm[:60]
	}
	return norm
}

func userAgentFamily(normUA string) string {
	switch {
	case strings.Contains(normUA, "mozilla") || strings.Contains(normUA, "chrome") || strings.Contains(normUA, "safari"):
		return "browser"
	case strings.Contains(normUA, "curl") || strings.Contains(normUA, "wget") || strings.Contains(normUA, "httpie"):
		return "cli"
	case strings.Contains(normUA, "node") || strings.Contains(normUA, "undici") || strings.Contains(normUA, "axios"):
		return "sdk"
	default:
		return "unknown"
	}
}
