package tracing

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	semconv125 "go.opentelemetry.io/otel/semconv/v1.25.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Config holds tracing configuration
type Config struct {
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	JaegerEndpoint string  `json:"jaeger_endpoint"`
	SamplingRate   float64 `json:"sampling_rate"`
	Enabled        bool    `json:"enabled"`
}

// DefaultConfig returns default tracing configuration
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "docfoundry",
		ServiceVersion: "1.0.0",
		Environment:    "development",
		JaegerEndpoint: "http://localhost:14268/api/traces",
		SamplingRate:   1.0,
		Enabled:        true,
	}
}

// TracingService manages distributed tracing
type TracingService struct {
	tracer   oteltrace.Tracer
	config   *Config
	provider *trace.TracerProvider
}

// NewTracingService creates a new tracing service
func NewTracingService(config *Config) (*TracingService, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if !config.Enabled {
		return &TracingService{
			tracer: otel.Tracer("noop"),
			config: config,
		}, nil
	}

	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(config.JaegerEndpoint)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.TraceIDRatioBased(config.SamplingRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tracer := tp.Tracer(config.ServiceName)

	return &TracingService{
		tracer:   tracer,
		config:   config,
		provider: tp,
	}, nil
}

// Shutdown shuts down the tracing service
func (ts *TracingService) Shutdown(ctx context.Context) error {
	if ts.provider != nil {
		return ts.provider.Shutdown(ctx)
	}
	return nil
}

// StartSpan starts a new span
func (ts *TracingService) StartSpan(ctx context.Context, name string, opts ...oteltrace.SpanStartOption) (context.Context, oteltrace.Span) {
	return ts.tracer.Start(ctx, name, opts...)
}

// StartHTTPSpan starts a span for HTTP requests
func (ts *TracingService) StartHTTPSpan(ctx context.Context, method, path string) (context.Context, oteltrace.Span) {
	return ts.tracer.Start(ctx, fmt.Sprintf("%s %s", method, path),
		oteltrace.WithSpanKind(oteltrace.SpanKindServer),
		oteltrace.WithAttributes(
			semconv.HTTPMethodKey.String(method),
			semconv.HTTPRouteKey.String(path),
		),
	)
}

// StartOperationSpan starts a span for a resilience-wrapped operation
func (ts *TracingService) StartOperationSpan(ctx context.Context, operation string) (context.Context, oteltrace.Span) {
	return ts.tracer.Start(ctx, fmt.Sprintf("operation.%s", operation),
		oteltrace.WithSpanKind(oteltrace.SpanKindInternal),
		oteltrace.WithAttributes(
			attribute.String("operation.name", operation),
		),
	)
}

// StartDatabaseSpan starts a span for database operations
func (ts *TracingService) StartDatabaseSpan(ctx context.Context, operation, table string) (context.Context, oteltrace.Span) {
	return ts.tracer.Start(ctx, fmt.Sprintf("db.%s", operation),
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(
			semconv.DBSystemPostgreSQL,
			semconv.DBOperationKey.String(operation),
			semconv.DBSQLTableKey.String(table),
		),
	)
}

// StartCacheSpan starts a span for cache operations
func (ts *TracingService) StartCacheSpan(ctx context.Context, operation, key string) (context.Context, oteltrace.Span) {
	return ts.tracer.Start(ctx, fmt.Sprintf("cache.%s", operation),
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(
			semconv.DBSystemRedis,
			semconv.DBOperationKey.String(operation),
			attribute.String("cache.key", key),
		),
	)
}

// RecordError records an error in the span
func (ts *TracingService) RecordError(span oteltrace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TracingMiddleware creates a middleware for distributed tracing
func (ts *TracingService) TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ts.config.Enabled {
			c.Next()
			return
		}

		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		ctx, span := ts.StartHTTPSpan(ctx, c.Request.Method, c.FullPath())
		defer span.End()

		span.SetAttributes(
			semconv.HTTPURLKey.String(c.Request.URL.String()),
			semconv.HTTPUserAgentKey.String(c.Request.UserAgent()),
			semconv.HTTPClientIPKey.String(c.ClientIP()),
		)

		c.Request = c.Request.WithContext(ctx)

		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(c.Writer.Header()))

		c.Next()

		span.SetAttributes(
			semconv.HTTPStatusCodeKey.Int(c.Writer.Status()),
			semconv125.HTTPResponseSizeKey.Int(c.Writer.Size()),
		)

		if c.Writer.Status() >= 400 {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", c.Writer.Status()))
		} else {
			span.SetStatus(codes.Ok, "")
		}

		for _, err := range c.Errors {
			ts.RecordError(span, err.Err)
		}
	}
}

// InstrumentHTTPClient instruments an HTTP client for tracing
func (ts *TracingService) InstrumentHTTPClient(client *http.Client) *http.Client {
	if !ts.config.Enabled {
		return client
	}

	if client.Transport == nil {
		client.Transport = http.DefaultTransport
	}

	client.Transport = &tracingTransport{
		base:    client.Transport,
		service: ts,
	}

	return client
}

// tracingTransport wraps http.RoundTripper for tracing
type tracingTransport struct {
	base    http.RoundTripper
	service *TracingService
}

// RoundTrip implements http.RoundTripper
func (tt *tracingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, span := tt.service.tracer.Start(req.Context(), fmt.Sprintf("HTTP %s", req.Method),
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(
			semconv.HTTPMethodKey.String(req.Method),
			semconv.HTTPURLKey.String(req.URL.String()),
		),
	)
	defer span.End()

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	req = req.WithContext(ctx)

	resp, err := tt.base.RoundTrip(req)
	if err != nil {
		tt.service.RecordError(span, err)
		return resp, err
	}

	span.SetAttributes(
		semconv.HTTPStatusCodeKey.Int(resp.StatusCode),
	)

	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", resp.StatusCode))
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return resp, nil
}

// TraceFunction wraps a function call in a span
func (ts *TracingService) TraceFunction(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := ts.StartSpan(ctx, name)
	defer span.End()

	err := fn(ctx)
	if err != nil {
		ts.RecordError(span, err)
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetTraceID returns the trace ID from the context
func GetTraceID(ctx context.Context) string {
	span := oteltrace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}

// GetSpanID returns the span ID from the context
func GetSpanID(ctx context.Context) string {
	span := oteltrace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().SpanID().String()
	}
	return ""
}
