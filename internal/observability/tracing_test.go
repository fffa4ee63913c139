package observability

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestTracingConfigFromEnv(t *testing.T) {
	cfg := TracingConfigFromEnv(envMap(map[string]string{
		"SITEMAP_TRACING_ENABLED":      "TRUE",
		"SITEMAP_TRACING_EXPORTER":     "OTLP",
		"SITEMAP_TRACING_SAMPLE_RATIO": "2",
		"SITEMAP_OTLP_ENDPOINT":        "collector:4317",
	}))
	if !cfg.Enabled || cfg.Exporter != "otlp" || cfg.Endpoint != "collector:4317" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.SampleRatio != 1 {
		t.Fatalf("out-of-range ratio should fall back to 1, got %v", cfg.SampleRatio)
	}
	if cfg.ServiceName != "sitemap-session" {
		t.Fatalf("service name = %q", cfg.ServiceName)
	}

	cfg = TracingConfigFromEnv(envMap(map[string]string{"SITEMAP_TRACING_SAMPLE_RATIO": "0.25"}))
	if cfg.Enabled || cfg.Exporter != "stdout" || cfg.SampleRatio != 0.25 {
		t.Fatalf("defaults = %+v", cfg)
	}
}

func TestInitTracingDisabledIsNoop(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	ctx, span := StartFocusSpan(context.Background(), "click", 7)
	span.End()
	if ctx == nil {
		t.Fatalf("nil context from span")
	}
	ShutdownWithTimeout(context.Background(), shutdown, nil)
}

func TestFocusSpansReachStdoutExporter(t *testing.T) {
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	var buf bytes.Buffer
	shutdown, err := InitTracing(context.Background(), TracingConfig{
		Enabled:     true,
		ServiceName: "sitemap-test",
		Exporter:    "stdout",
		SampleRatio: 1,
		Writer:      &buf,
	}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}

	_, span := StartFocusSpan(context.Background(), "deeplink", 42)
	span.End()
	ShutdownWithTimeout(context.Background(), shutdown, nil)

	out := buf.String()
	if !strings.Contains(out, "sitemap.focus") || !strings.Contains(out, "deeplink") {
		t.Fatalf("exported spans = %q, want the focus span", out)
	}
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin", SampleRatio: 1}, nil)
	if !errors.Is(err, ErrUnknownExporter) {
		t.Fatalf("err = %v, want ErrUnknownExporter", err)
	}
}
