package observe

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// spanRecorder returns a TracerProvider whose finished spans land in the
// returned in-memory exporter.
func spanRecorder(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, exp
}

// captureLog swaps the default slog handler for one writing into the returned
// buffer, restoring the original when the test ends.
func captureLog(t *testing.T) *strings.Builder {
	t.Helper()
	var buf strings.Builder
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestCorrelationID(t *testing.T) {
	t.Run("no span", func(t *testing.T) {
		if got := CorrelationID(context.Background()); got != "" {
			t.Errorf("CorrelationID without a span = %q, want empty", got)
		}
	})

	t.Run("inside span", func(t *testing.T) {
		tp, _ := spanRecorder(t)
		ctx, span := tp.Tracer("tutorvox-test").Start(context.Background(), "tutor.session.start")
		defer span.End()

		cid := CorrelationID(ctx)
		if len(cid) != 32 {
			t.Fatalf("correlation ID = %q, want 32 hex characters", cid)
		}
		if strings.Trim(cid, "0123456789abcdef") != "" {
			t.Errorf("correlation ID %q is not lowercase hex", cid)
		}
	})
}

func TestCorrelationID_UniquePerTrace(t *testing.T) {
	tp, _ := spanRecorder(t)
	tracer := tp.Tracer("tutorvox-test")

	seen := make(map[string]struct{}, 64)
	for range 64 {
		ctx, span := tracer.Start(context.Background(), "tutor.session.start")
		cid := CorrelationID(ctx)
		span.End()
		if _, dup := seen[cid]; dup {
			t.Fatalf("correlation ID %s issued twice", cid)
		}
		seen[cid] = struct{}{}
	}
}

func TestStartSpan_RecordsNamedSpan(t *testing.T) {
	tp, exp := spanRecorder(t)

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	ctx, span := StartSpan(context.Background(), "tutor.session.change_level")
	if CorrelationID(ctx) == "" {
		t.Error("StartSpan produced a context without a trace ID")
	}
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if spans[0].Name != "tutor.session.change_level" {
		t.Errorf("span name = %q, want tutor.session.change_level", spans[0].Name)
	}
}

func TestLogger_EnrichesWithTraceContext(t *testing.T) {
	tp, _ := spanRecorder(t)
	buf := captureLog(t)

	ctx, span := tp.Tracer("tutorvox-test").Start(context.Background(), "tutor.session.stop")
	defer span.End()

	Logger(ctx).Info("session stopped")

	out := buf.String()
	if !strings.Contains(out, "trace_id=") || !strings.Contains(out, "span_id=") {
		t.Errorf("log line missing trace context: %s", out)
	}
}

func TestLogger_PlainWithoutSpan(t *testing.T) {
	buf := captureLog(t)

	Logger(context.Background()).Info("session stopped")

	if out := buf.String(); strings.Contains(out, "trace_id") {
		t.Errorf("log line carries trace_id with no active span: %s", out)
	}
}

func TestTracer_NotNil(t *testing.T) {
	if Tracer() == nil {
		t.Fatal("Tracer() returned nil")
	}
}
