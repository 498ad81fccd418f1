package otel

import (
	"context"
	"os"
	"testing"

	otellog "go.opentelemetry.io/otel/log"

	"github.com/atvirokodosprendimai/gossipmesh/pkg/node"
)

func TestInit_NoEndpoint(t *testing.T) {
	t.Parallel()

	os.Unsetenv("OTEL_EXPORTER_OTLP_ENDPOINT")

	shutdown, err := Init(context.Background(), "gossipmesh", "v1.0.0", "instance-1", "127.0.0.1:7000")
	if err != nil {
		t.Fatalf("Init() with no endpoint should not error, got: %v", err)
	}

	shutdown(context.Background())
}

func TestInit_NoEndpoint_ReturnsNoopShutdown(t *testing.T) {
	t.Parallel()

	os.Unsetenv("OTEL_EXPORTER_OTLP_ENDPOINT")

	shutdown, _ := Init(context.Background(), "gossipmesh", "v1.0.0", "instance-1", "127.0.0.1:7000")

	// Calling shutdown multiple times should be safe
	shutdown(context.Background())
	shutdown(context.Background())
}

func TestStepSpan_NoEndpointIsNoop(t *testing.T) {
	t.Parallel()

	os.Unsetenv("OTEL_EXPORTER_OTLP_ENDPOINT")

	end := StepSpan(node.TriggerEvent{Trig: node.Trigger{Kind: node.TriggerGossipRandom}})
	end() // must not panic against the global noop tracer provider
}

func TestDialSpan_SuccessOutcomeIsNoop(t *testing.T) {
	t.Parallel()

	os.Unsetenv("OTEL_EXPORTER_OTLP_ENDPOINT")

	ctx, end := DialSpan(context.Background(), "127.0.0.1:1")
	if ctx == nil {
		t.Fatal("DialSpan() returned nil context")
	}
	end(nil) // success path must not panic
}

func TestEventKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		event node.Event
		want  string
	}{
		{
			name:  "message event",
			event: node.MessageEvent{},
			want:  "message",
		},
		{
			name:  "trigger event",
			event: node.TriggerEvent{Trig: node.Trigger{Kind: node.TriggerStrike}},
			want:  "trigger:Strike",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := eventKind(tt.event); got != tt.want {
				t.Errorf("eventKind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseLogLine_WithTag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		line          string
		wantComponent string
		wantBody      string
	}{
		{
			name:          "tagged with timestamp",
			line:          "2026/02/17 12:00:00 [node] message from 127.0.0.1:7001: hi",
			wantComponent: "node",
			wantBody:      "message from 127.0.0.1:7001: hi",
		},
		{
			name:          "tagged without timestamp",
			line:          "[transport] dial 127.0.0.1:7002 failed: connection refused",
			wantComponent: "transport",
			wantBody:      "dial 127.0.0.1:7002 failed: connection refused",
		},
		{
			name:          "no tag with timestamp",
			line:          "2026/02/17 12:00:00 plain log message",
			wantComponent: "general",
			wantBody:      "plain log message",
		},
		{
			name:          "no tag no timestamp",
			line:          "plain log message",
			wantComponent: "general",
			wantBody:      "plain log message",
		},
		{
			name:          "gossipmesh command tag",
			line:          "[gossipmesh] WARNING: OTel setup failed: dial tcp: connection refused — telemetry disabled",
			wantComponent: "gossipmesh",
			wantBody:      "WARNING: OTel setup failed: dial tcp: connection refused — telemetry disabled",
		},
		{
			name:          "empty body after tag",
			line:          "[OTel]",
			wantComponent: "otel",
			wantBody:      "",
		},
		{
			name:          "tag with timestamp prefix",
			line:          "2026/02/17 21:34:09 [transport] accept error: use of closed network connection",
			wantComponent: "transport",
			wantBody:      "accept error: use of closed network connection",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			component, body := parseLogLine(tt.line)
			if component != tt.wantComponent {
				t.Errorf("parseLogLine(%q) component = %q, want %q", tt.line, component, tt.wantComponent)
			}
			if body != tt.wantBody {
				t.Errorf("parseLogLine(%q) body = %q, want %q", tt.line, body, tt.wantBody)
			}
		})
	}
}

func TestSeverityOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want otellog.Severity
	}{
		{"warning", "WARNING: OTel setup failed: dial tcp: refused — telemetry disabled", otellog.SeverityWarn},
		{"dial failed", "dial 127.0.0.1:7002 failed: connection refused", otellog.SeverityError},
		{"dropping oversized", "dropping oversized message from 127.0.0.1:51820", otellog.SeverityError},
		{"unexpected reply", "unexpected reply 4 from 127.0.0.1:7001", otellog.SeverityError},
		{"mis-addressed reply", "mis-addressed reply 4: expected 127.0.0.1:7001, got 127.0.0.1:7002", otellog.SeverityError},
		{"accept error", "accept error: use of closed network connection", otellog.SeverityError},
		{"plain info", "instance=abc self=127.0.0.1:7000 period=2s connect=\"\" metrics=\"\"", otellog.SeverityInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := severityOf(tt.body); got != tt.want {
				t.Errorf("severityOf(%q) = %v, want %v", tt.body, got, tt.want)
			}
		})
	}
}

func TestBuildResource(t *testing.T) {
	t.Parallel()

	res, err := buildResource(context.Background(), "gossipmesh", "v1.0.0", "instance-1", "127.0.0.1:7000")
	if err != nil {
		t.Fatalf("buildResource() error = %v", err)
	}
	if res == nil {
		t.Fatal("buildResource() returned nil resource")
	}

	attrs := res.Attributes()
	found := make(map[string]bool)
	for _, attr := range attrs {
		found[string(attr.Key)] = true
	}

	for _, key := range []string{"service.name", "service.version", "host.name", "service.instance.id", "gossipmesh.self_addr"} {
		if !found[key] {
			t.Errorf("buildResource() missing attribute %q", key)
		}
	}
}

func TestBuildResource_EmptyInstanceAndSelfOmitsAttributes(t *testing.T) {
	t.Parallel()

	res, err := buildResource(context.Background(), "gossipmesh", "v1.0.0", "", "")
	if err != nil {
		t.Fatalf("buildResource() error = %v", err)
	}

	for _, attr := range res.Attributes() {
		if string(attr.Key) == "service.instance.id" || string(attr.Key) == "gossipmesh.self_addr" {
			t.Errorf("buildResource() set %q with empty input", attr.Key)
		}
	}
}
