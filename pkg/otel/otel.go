// Package otel wires gossipmesh's reducer and transport into OpenTelemetry:
// one trace span per Node.Step invocation (tagged by event kind), one span
// per outbound dial attempt, and a log bridge that promotes the process's
// own log.Printf output to OTel log records with severity inferred from the
// gossip-domain vocabulary those lines actually use ("WARNING", dial
// failures, dropped messages).
//
// When OTEL_EXPORTER_OTLP_ENDPOINT is set, the package configures
// TracerProvider, MeterProvider, and LoggerProvider with gRPC OTLP exporters.
// When the env var is unset, noop providers are used with zero overhead, and
// the span/log helpers below are cheap no-ops.
package otel

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otellog "go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/atvirokodosprendimai/gossipmesh/pkg/node"
)

// nodeTracer covers reducer spans; transportTracer covers dial spans. Kept
// as separate tracers (rather than one shared instance) so exporters that
// group by instrumentation scope, such as most OTLP backends, can tell
// reducer latency apart from network latency without attribute filtering.
var (
	nodeTracer      = otel.Tracer("gossipmesh.node")
	transportTracer = otel.Tracer("gossipmesh.transport")
)

// StepSpan starts a span around one Node.Step invocation, tagged with the
// kind of event being folded. Pass it to node.WithTrace:
//
//	node.New(self, inbox, outbox, node.WithTrace(otel.StepSpan))
//
// It returns a no-op closer when no endpoint was configured, since the
// global tracer provider is then the noop implementation.
func StepSpan(event node.Event) func() {
	_, span := nodeTracer.Start(context.Background(), "gossipmesh.node.step",
		trace.WithAttributes(attribute.String("gossipmesh.event.kind", eventKind(event))))
	return span.End
}

// DialSpan starts a span around one outbound dial attempt. The caller must
// invoke the returned function with the dial's outcome once it's known, so
// failed dials are recorded with an error status rather than silently
// closed spans.
func DialSpan(ctx context.Context, dst string) (context.Context, func(err error)) {
	spanCtx, span := transportTracer.Start(ctx, "gossipmesh.transport.dial",
		trace.WithAttributes(attribute.String("gossipmesh.dial.dst", dst)))
	return spanCtx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "dial failed")
		}
		span.End()
	}
}

// eventKind names a node.Event for span attributes. It mirrors
// pkg/metrics.payloadKind's type-switch approach: pkg/node exports no
// string-tag accessor for Event itself, so every consumer outside that
// package re-derives the tag from the concrete type.
func eventKind(event node.Event) string {
	switch e := event.(type) {
	case node.MessageEvent:
		return "message"
	case node.TriggerEvent:
		return "trigger:" + e.Trig.Kind.String()
	default:
		return "unknown"
	}
}

// Init initializes OpenTelemetry providers based on environment variables.
//
// If OTEL_EXPORTER_OTLP_ENDPOINT is set, it configures gRPC OTLP exporters
// for traces, metrics, and logs, and tags the resulting resource with this
// node's instance id and listen address so traces from a multi-node mesh
// can be told apart in the backend. Otherwise, global providers remain
// noops.
//
// The returned function must be called on shutdown to flush pending telemetry.
// It is safe to call even when no exporter was configured.
func Init(ctx context.Context, serviceName, serviceVersion, instanceID, selfAddr string) (func(context.Context), error) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		return func(context.Context) {}, nil
	}

	res, err := buildResource(ctx, serviceName, serviceVersion, instanceID, selfAddr)
	if err != nil {
		return func(context.Context) {}, fmt.Errorf("otel resource: %w", err)
	}

	// Trace provider
	traceExporter, err := otlptracegrpc.New(ctx)
	if err != nil {
		return func(context.Context) {}, fmt.Errorf("otel trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	// Metric provider
	metricExporter, err := otlpmetricgrpc.New(ctx)
	if err != nil {
		return shutdownFunc(tp, nil, nil), fmt.Errorf("otel metric exporter: %w", err)
	}
	mp := metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(metricExporter, metric.WithInterval(30*time.Second))),
		metric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	// Log provider
	logExporter, err := otlploggrpc.New(ctx)
	if err != nil {
		return shutdownFunc(tp, mp, nil), fmt.Errorf("otel log exporter: %w", err)
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		sdklog.WithResource(res),
	)
	otellog.SetLoggerProvider(lp)

	// Install log bridge so existing log.Printf calls emit OTel log records
	InstallLogBridge(lp)

	log.Printf("[OTel] initialized: endpoint=%s service=%s instance=%s self=%s", endpoint, serviceName, instanceID, selfAddr)

	return shutdownFunc(tp, mp, lp), nil
}

// buildResource creates the OTel resource with service, host, and
// gossip-instance attributes. instanceID and selfAddr let a backend group
// spans from one node of a multi-node mesh apart from the rest.
func buildResource(ctx context.Context, serviceName, serviceVersion, instanceID, selfAddr string) (*resource.Resource, error) {
	hostname, _ := os.Hostname()

	attrs := []attribute.KeyValue{
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
		semconv.HostName(hostname),
	}
	if instanceID != "" {
		attrs = append(attrs, semconv.ServiceInstanceID(instanceID))
	}
	if selfAddr != "" {
		attrs = append(attrs, attribute.String("gossipmesh.self_addr", selfAddr))
	}

	return resource.New(ctx,
		resource.WithAttributes(attrs...),
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
	)
}

type shutdownable interface {
	Shutdown(context.Context) error
}

// shutdownFunc returns a function that shuts down all non-nil providers with a timeout.
func shutdownFunc(providers ...shutdownable) func(context.Context) {
	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		for _, p := range providers {
			if p != nil {
				if err := p.Shutdown(ctx); err != nil {
					log.Printf("[OTel] shutdown error: %v", err)
				}
			}
		}
	}
}
