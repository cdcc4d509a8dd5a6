package observability

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"chatlima-server/internal/config"
)

const metricExportInterval = 30 * time.Second

// Setup installs the global tracer and meter providers for the chat server.
// Without an OTLP endpoint spans and metrics stay in-process. The returned
// function flushes and stops both providers.
func Setup(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (func(context.Context) error, error) {
	res, err := resource.New(ctx, resource.WithAttributes(resourceAttributes(cfg)...))
	if err != nil {
		return nil, err
	}

	traceOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio(cfg.TraceSampleRatio)))),
	}
	metricOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	if cfg.OTLPEndpoint != "" {
		traceExporter, metricExporter, err := newExporters(ctx, cfg.OTLPEndpoint, parseHeaders(cfg.OTLPHeaders))
		if err != nil {
			return nil, err
		}
		traceOpts = append(traceOpts, sdktrace.WithBatcher(traceExporter))
		metricOpts = append(metricOpts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(metricExportInterval)),
		))
	}

	tracerProvider := sdktrace.NewTracerProvider(traceOpts...)
	meterProvider := sdkmetric.NewMeterProvider(metricOpts...)
	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	logger.Info().
		Bool("exporting", cfg.OTLPEndpoint != "").
		Str("service", cfg.ServiceName).
		Str("version", config.Version).
		Float64("sample_ratio", sampleRatio(cfg.TraceSampleRatio)).
		Strs("providers", configuredProviders(cfg)).
		Msg("telemetry initialised")

	return func(ctx context.Context) error {
		meterErr := meterProvider.Shutdown(ctx)
		if meterErr != nil {
			logger.Error().Err(meterErr).Msg("shutdown meter provider")
		}
		if err := tracerProvider.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("shutdown tracer provider")
			if meterErr == nil {
				return err
			}
		}
		return meterErr
	}, nil
}

// resourceAttributes describes this deployment: build version, environment,
// which inference gateways have keys and which optional jobs are on.
func resourceAttributes(cfg *config.Config) []attribute.KeyValue {
	return []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceNamespace(cfg.ServiceNamespace),
		semconv.ServiceVersion(config.Version),
		semconv.DeploymentEnvironment(cfg.Environment),
		attribute.StringSlice("chatlima.providers", configuredProviders(cfg)),
		attribute.Bool("chatlima.cleanup.enabled", cfg.CleanupEnabled),
		attribute.Bool("chatlima.cron.secured", cfg.CronSecret != ""),
		attribute.Int("chatlima.mcp.disabled_models", len(cfg.MCPDisabledModels)),
	}
}

func configuredProviders(cfg *config.Config) []string {
	providers := make([]string, 0, 2)
	if cfg.OpenRouterAPIKey != "" {
		providers = append(providers, "openrouter")
	}
	if cfg.RequestyAPIKey != "" {
		providers = append(providers, "requesty")
	}
	return providers
}

// sampleRatio clamps OTEL_TRACE_SAMPLE_RATIO to [0, 1].
func sampleRatio(ratio float64) float64 {
	switch {
	case ratio <= 0:
		return 0
	case ratio >= 1:
		return 1
	default:
		return ratio
	}
}

func newExporters(ctx context.Context, rawEndpoint string, headers map[string]string) (*otlptrace.Exporter, *otlpmetrichttp.Exporter, error) {
	endpoint, insecure := normalizeEndpoint(rawEndpoint)

	traceOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	metricOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(endpoint)}
	if insecure {
		traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
		metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
	}
	if len(headers) > 0 {
		traceOpts = append(traceOpts, otlptracehttp.WithHeaders(headers))
		metricOpts = append(metricOpts, otlpmetrichttp.WithHeaders(headers))
	}

	traceExporter, err := otlptracehttp.New(ctx, traceOpts...)
	if err != nil {
		return nil, nil, err
	}
	metricExporter, err := otlpmetrichttp.New(ctx, metricOpts...)
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		return nil, nil, err
	}
	return traceExporter, metricExporter, nil
}

// parseHeaders reads the comma separated key=value list of OTEL_EXPORTER_OTLP_HEADERS.
func parseHeaders(raw string) map[string]string {
	result := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if key != "" && value != "" {
			result[key] = value
		}
	}
	return result
}

// normalizeEndpoint accepts "collector:4318" as well as full http(s) URLs.
func normalizeEndpoint(raw string) (string, bool) {
	switch {
	case strings.HasPrefix(raw, "https://"):
		return strings.TrimPrefix(raw, "https://"), false
	case strings.HasPrefix(raw, "http://"):
		return strings.TrimPrefix(raw, "http://"), true
	default:
		return raw, true
	}
}
