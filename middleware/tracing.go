package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/garciabuilder/site-service/config"
)

// ErrTracingDisabled is returned by InitTracing when TRACING_ENABLED is off.
var ErrTracingDisabled = errors.New("tracing is disabled (TRACING_ENABLED=false)")

var (
	tracingMu      sync.RWMutex
	tracer         trace.Tracer
	tracerProvider *sdktrace.TracerProvider
	tracedService  string
)

// untracedPaths are probes, scrapes and static assets.
var untracedPaths = []string{"/health", "/ready", "/metrics", "/favicon.ico"}

// samplerFor picks the root sampler for rate. Child spans follow their parent.
func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case rate <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
}

// InitTracing installs the global tracer provider exporting spans over OTLP HTTP.
// Call Shutdown on exit to flush.
func InitTracing(ctx context.Context, cfg *config.Config) error {
	if !cfg.Tracing.Enabled {
		return ErrTracingDisabled
	}
	if cfg.Tracing.Endpoint == "" {
		return errors.New("OTEL_COLLECTOR_ENDPOINT is required when tracing is enabled")
	}

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exporter, err := otlptracehttp.New(initCtx,
		otlptracehttp.WithEndpoint(cfg.Tracing.Endpoint),
		otlptracehttp.WithInsecure(),
		otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
	)
	if err != nil {
		return fmt.Errorf("create OTLP exporter: %w", err)
	}

	// a partial detection failure still yields a usable resource
	res, _ := CreateResource(initCtx, cfg)

	name := GetServiceName(res)
	if name == "" || name == unknownService {
		name = cfg.Tracing.ServiceName
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(5*time.Second),
			sdktrace.WithExportTimeout(30*time.Second),
			sdktrace.WithMaxExportBatchSize(cfg.Tracing.MaxExportBatchSize),
		),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(cfg.Tracing.SampleRate)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tracingMu.Lock()
	tracerProvider = tp
	tracedService = name
	tracer = otel.Tracer(name)
	tracingMu.Unlock()
	return nil
}

func serviceLabel() string {
	tracingMu.RLock()
	defer tracingMu.RUnlock()
	if tracedService == "" {
		return unknownService
	}
	return tracedService
}

func shouldTrace(path string) bool {
	for _, skip := range untracedPaths {
		if strings.HasPrefix(path, skip) {
			return false
		}
	}
	return true
}

// TracingMiddleware wraps otelgin, leaving probe and scrape paths untraced.
func TracingMiddleware() gin.HandlerFunc {
	traced := otelgin.Middleware(serviceLabel(),
		otelgin.WithTracerProvider(otel.GetTracerProvider()),
	)
	return func(c *gin.Context) {
		if !shouldTrace(c.Request.URL.Path) {
			c.Next()
			return
		}
		traced(c)
	}
}

func currentTracer() trace.Tracer {
	tracingMu.RLock()
	t := tracer
	tracingMu.RUnlock()
	if t != nil {
		return t
	}
	// the global provider is a no-op until InitTracing runs
	return otel.Tracer(serviceLabel())
}

// StartSpan starts a span on the service tracer. The caller ends it.
//
//	ctx, span := middleware.StartSpan(ctx, "profile.save")
//	defer span.End()
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	//nolint:spancheck // span is returned to caller who is responsible for calling span.End()
	return currentTracer().Start(ctx, name, opts...)
}

// Shutdown flushes pending spans and stops the tracer provider.
func Shutdown(ctx context.Context) error {
	tracingMu.Lock()
	tp := tracerProvider
	tracerProvider = nil
	tracingMu.Unlock()
	if tp == nil {
		return nil
	}
	if err := tp.ForceFlush(ctx); err != nil {
		return fmt.Errorf("flush traces: %w", err)
	}
	if err := tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	return nil
}

// RecordError marks a recording span as failed.
func RecordError(span trace.Span, err error) {
	if err == nil || !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
