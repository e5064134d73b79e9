package observe

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func installTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return exp
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestCorrelationID(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID without span = %q, want empty", got)
	}

	installTestTracer(t)
	ctx, span := StartSpan(context.Background(), "directive-compute")
	defer span.End()

	cid := CorrelationID(ctx)
	if len(cid) != 32 {
		t.Fatalf("correlation ID = %q, want 32 hex chars", cid)
	}
	if strings.Trim(cid, "0123456789abcdef") != "" {
		t.Errorf("correlation ID %q contains non-hex characters", cid)
	}
}

func TestStartSpan_RecordsName(t *testing.T) {
	exp := installTestTracer(t)

	ctx, span := StartSpan(context.Background(), "session-event")
	if CorrelationID(ctx) == "" {
		t.Error("StartSpan produced no trace ID")
	}
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans recorded = %d, want 1", len(spans))
	}
	if spans[0].Name != "session-event" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "session-event")
	}
}

func TestCorrelationID_DistinctPerSpan(t *testing.T) {
	installTestTracer(t)

	seen := make(map[string]struct{}, 50)
	for range 50 {
		ctx, span := StartSpan(context.Background(), "turn")
		cid := CorrelationID(ctx)
		span.End()
		if _, dup := seen[cid]; dup {
			t.Fatalf("duplicate correlation ID %s", cid)
		}
		seen[cid] = struct{}{}
	}
}

func TestLogger(t *testing.T) {
	installTestTracer(t)
	buf := captureLog(t)

	ctx, span := StartSpan(context.Background(), "log-enrichment")
	defer span.End()
	Logger(ctx).Info("directive applied", "tone", "excited")

	out := buf.String()
	if !strings.Contains(out, "trace_id=") || !strings.Contains(out, "span_id=") {
		t.Errorf("enriched log missing trace fields: %s", out)
	}

	buf.Reset()
	Logger(context.Background()).Info("no span here")
	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("spanless log should carry no trace_id: %s", buf.String())
	}
}
