// Package trace owns the process tracer. Spans are exported to a writer
// (stderr by default) so they never interleave with JSON on stdout.
package trace

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	ServiceName    = "trading-bot-dashboard"
	ServiceVersion = "1.0.0"
)

var (
	tracer         trace.Tracer
	tracerProvider *sdktrace.TracerProvider
	enabled        bool
)

// Config selects whether and where spans are exported.
type Config struct {
	Enabled bool
	Pretty  bool
	// Writer receives exported spans; nil means os.Stderr.
	Writer io.Writer
	// Mode is recorded on every span as deployment.environment.
	Mode string
}

// LoadConfigFromEnv reads LOG_TRACING_ENABLED (default true),
// LOG_TRACING_PRETTY (default false) and DASHBOARD_MODE.
func LoadConfigFromEnv() Config {
	return Config{
		Enabled: getEnv("LOG_TRACING_ENABLED", "true") == "true",
		Pretty:  getEnv("LOG_TRACING_PRETTY", "false") == "true",
		Mode:    getEnv("DASHBOARD_MODE", "DRY_RUN"),
	}
}

func Init() error {
	return InitWithConfig(LoadConfigFromEnv())
}

// InitWithConfig replaces the process tracer. A previously installed provider
// is shut down first, flushing its spans.
func InitWithConfig(cfg Config) error {
	if err := Shutdown(context.Background()); err != nil {
		return err
	}
	tracer, tracerProvider, enabled = nil, nil, false
	if !cfg.Enabled {
		return nil
	}

	out := cfg.Writer
	if out == nil {
		out = os.Stderr
	}
	opts := []stdouttrace.Option{stdouttrace.WithWriter(out)}
	if cfg.Pretty {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return err
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Mode),
		),
	)
	if err != nil {
		return err
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	tracer = tracerProvider.Tracer(ServiceName)
	enabled = true
	return nil
}

// Shutdown flushes and stops the installed provider, if any.
func Shutdown(ctx context.Context) error {
	if tracerProvider == nil {
		return nil
	}
	return tracerProvider.Shutdown(ctx)
}

// StartSpan starts a span, or hands back the span already in ctx when tracing is off.
func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if !enabled || tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, spanName, opts...)
}

func Enabled() bool {
	return enabled
}

// GetTraceFields returns the ids of the span in ctx for log correlation.
func GetTraceFields(ctx context.Context) (traceID, spanID string, ok bool) {
	if !enabled {
		return "", "", false
	}
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return "", "", false
	}
	return sc.TraceID().String(), sc.SpanID().String(), true
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
