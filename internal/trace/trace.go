// Package trace owns the process tracer. Spans go to a stdout exporter and
// carry a resource describing the analyst deployment.
package trace

import (
	"context"
	"io"
	"os"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"crypto-llm-analyst/internal/store"
)

const serviceName = "crypto-llm-analyst"

var (
	tracer         trace.Tracer
	tracerProvider *sdktrace.TracerProvider
	enabled        bool
)

// Options describe the deployment recorded on every span's resource.
type Options struct {
	Version     string
	Mode        string
	LLMProvider string
	LLMModel    string
	Symbols     []string
	Schedule    string

	// SampleRatio is the fraction of root spans kept; 0 means all.
	SampleRatio float64
	// Writer receives the exported spans; nil means stdout.
	Writer io.Writer
}

// OptionsFromConfig reads the resource attributes from cfg and the sampling
// ratio from LOG_TRACING_SAMPLE_RATIO.
func OptionsFromConfig(cfg *store.Config, version string) Options {
	o := Options{
		Version:     version,
		Mode:        cfg.Mode,
		LLMProvider: cfg.LLM.Provider,
		LLMModel:    cfg.LLM.Model,
		Symbols:     cfg.Symbols,
		Schedule:    cfg.Schedule.Cron,
	}
	if v, err := strconv.ParseFloat(os.Getenv("LOG_TRACING_SAMPLE_RATIO"), 64); err == nil {
		o.SampleRatio = v
	}
	return o
}

func (o Options) attributes() []attribute.KeyValue {
	version := o.Version
	if version == "" {
		version = "dev"
	}
	schedule := o.Schedule
	if schedule == "" {
		schedule = "once"
	}
	return []attribute.KeyValue{
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
		attribute.String("analyst.mode", o.Mode),
		attribute.String("analyst.llm.provider", o.LLMProvider),
		attribute.String("analyst.llm.model", o.LLMModel),
		attribute.Int("analyst.symbols.count", len(o.Symbols)),
		attribute.StringSlice("analyst.symbols", o.Symbols),
		attribute.String("analyst.schedule", schedule),
	}
}

func (o Options) sampler() sdktrace.Sampler {
	if o.SampleRatio <= 0 || o.SampleRatio >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(o.SampleRatio))
}

// Init sets up the exporter when LOG_TRACING_ENABLED is not "false".
func Init(opts Options) error {
	enabled = getEnv("LOG_TRACING_ENABLED", "true") == "true"
	if !enabled {
		return nil
	}

	exporterOpts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
	if opts.Writer != nil {
		exporterOpts = append(exporterOpts, stdouttrace.WithWriter(opts.Writer))
	}
	exporter, err := stdouttrace.New(exporterOpts...)
	if err != nil {
		enabled = false
		return err
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(opts.attributes()...))
	if err != nil {
		enabled = false
		return err
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(opts.sampler()),
	)
	otel.SetTracerProvider(tracerProvider)
	tracer = otel.Tracer(serviceName)
	return nil
}

// Shutdown flushes pending spans and disables tracing.
func Shutdown(ctx context.Context) error {
	if tracerProvider == nil {
		return nil
	}
	err := tracerProvider.Shutdown(ctx)
	tracerProvider, tracer, enabled = nil, nil, false
	return err
}

func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if !enabled || tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, spanName, opts...)
}

func Enabled() bool {
	return enabled
}

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
