package report_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/risetechapps/jobchain/report"
)

type namedErr struct{ job string }

func (e *namedErr) Error() string   { return "job [" + e.job + "] failed" }
func (e *namedErr) JobName() string { return e.job }

func TestLog_WritesErrorAndJob(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	report.Log(logger).Report(context.Background(), &namedErr{job: "B"})

	out := buf.String()
	if !strings.Contains(out, "level=ERROR") {
		t.Errorf("expected error level, got %q", out)
	}
	if !strings.Contains(out, "job=B") {
		t.Errorf("expected job attribute, got %q", out)
	}
}

func TestSpan_RecordsOnActiveSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	ctx, span := tp.Tracer("test").Start(context.Background(), "chain")

	report.Span().Report(ctx, errors.New("boom"))
	span.End()

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("expected status Error, got %v", spans[0].Status().Code)
	}
	if len(spans[0].Events()) == 0 {
		t.Error("expected the error to be recorded as a span event")
	}
}

func TestSpan_NoActiveSpanIsNoop(t *testing.T) {
	report.Span().Report(context.Background(), errors.New("dropped"))
}

func TestMulti_SurvivesPanickingReporter(t *testing.T) {
	var got []string
	r := report.Multi(
		report.Func(func(context.Context, error) { panic("reporter broke") }),
		report.Func(func(_ context.Context, err error) { got = append(got, err.Error()) }),
	)

	r.Report(context.Background(), errors.New("boom"))

	if len(got) != 1 || got[0] != "boom" {
		t.Errorf("got %v, want [boom]", got)
	}
}

func TestSafe_IgnoresNil(t *testing.T) {
	called := false
	report.Safe(context.Background(), report.Func(func(context.Context, error) { called = true }), nil)
	report.Safe(context.Background(), nil, errors.New("x"))
	if called {
		t.Error("reporter must not be called with a nil error")
	}
}
