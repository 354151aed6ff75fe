package chain_test

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/risetechapps/jobchain/chain"
	"github.com/risetechapps/jobchain/job"
)

func TestChain_SpanPerJob(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	c := chain.New([]job.Spec{
		job.Action("ok", func() {}),
		job.Action("bad", func() error { return errDivision }),
		job.Action("never", func() {}),
	}, chain.WithTracerProvider(tp))

	_, _ = c.Run(context.Background())

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	for _, s := range spans {
		if s.Name() != "jobchain.chain.job" {
			t.Errorf("span name = %q", s.Name())
		}
	}
	if spans[1].Status().Code != codes.Error {
		t.Errorf("failing job span status = %v, want Error", spans[1].Status().Code)
	}
	found := false
	for _, kv := range spans[1].Attributes() {
		if string(kv.Key) == "jobchain.job" && kv.Value.AsString() == "bad" {
			found = true
		}
	}
	if !found {
		t.Error("expected jobchain.job=bad attribute")
	}
}
