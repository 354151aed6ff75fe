package api_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/risetechapps/jobchain"
	"github.com/risetechapps/jobchain/api"
	"github.com/risetechapps/jobchain/backoff"
	"github.com/risetechapps/jobchain/cron"
	"github.com/risetechapps/jobchain/dlq"
	"github.com/risetechapps/jobchain/engine"
	"github.com/risetechapps/jobchain/event"
	"github.com/risetechapps/jobchain/id"
	"github.com/risetechapps/jobchain/job"
	"github.com/risetechapps/jobchain/store/memory"
	"github.com/risetechapps/jobchain/stream"
	"github.com/risetechapps/jobchain/task"
)

type fixture struct {
	eng   *engine.Engine
	bus   *event.Bus
	sched *cron.Scheduler
	h     http.Handler
}

func newFixture(t *testing.T, opts ...api.Option) *fixture {
	t.Helper()
	cfg := jobchain.DefaultConfig()
	cfg.Concurrency = 2
	cfg.PollInterval = 5 * time.Millisecond
	cfg.HeartbeatInterval = 0
	cfg.StaleThreshold = 0
	cfg.EnqueueByDefault = true

	eng, err := engine.New(
		engine.WithStore(memory.New()),
		engine.WithConfig(cfg),
		engine.WithBackoff(backoff.None()),
		engine.WithMeterProvider(sdkmetric.NewMeterProvider()),
	)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = eng.Stop(ctx)
	})

	bus := event.NewBus()
	sched := cron.NewScheduler(bus)
	opts = append([]api.Option{api.WithScheduler(sched)}, opts...)
	return &fixture{
		eng:   eng,
		bus:   bus,
		sched: sched,
		h:     api.New(eng, bus, opts...).Handler(),
	}
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	if err := f.eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func (f *fixture) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := f.eng.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", "")
	expectStatus(t, rec, http.StatusOK)
	if got := decode[api.HealthResponse](t, rec); got.Status != "ok" || got.Running {
		t.Errorf("health = %+v", got)
	}
}

func TestPublishEvent_TriggersChain(t *testing.T) {
	f := newFixture(t)

	var mu sync.Mutex
	var orders []string
	c := f.eng.Chain([]job.Spec{
		job.Action("Record", func(order string) {
			mu.Lock()
			orders = append(orders, order)
			mu.Unlock()
		}),
	})
	f.bus.Subscribe("order.placed", c.ToListener())
	f.start(t)

	rec := f.do(t, http.MethodPost, "/v1/events/order.placed", `{"args":["o-1"]}`)
	expectStatus(t, rec, http.StatusAccepted)
	pub := decode[api.PublishEventResponse](t, rec)
	if pub.Name != "order.placed" || pub.Listeners != 1 || pub.EventID.IsNil() {
		t.Errorf("publish = %+v", pub)
	}
	f.wait(t)

	mu.Lock()
	got := append([]string(nil), orders...)
	mu.Unlock()
	if len(got) != 1 || got[0] != "o-1" {
		t.Fatalf("orders = %v", got)
	}

	rec = f.do(t, http.MethodGet, "/v1/tasks?state=completed", "")
	expectStatus(t, rec, http.StatusOK)
	tasks := decode[[]*task.Task](t, rec)
	if len(tasks) != 1 || tasks[0].Name != "Atomic Chain: Record" {
		t.Fatalf("tasks = %+v", tasks)
	}

	rec = f.do(t, http.MethodGet, "/v1/tasks/"+tasks[0].ID.String(), "")
	expectStatus(t, rec, http.StatusOK)
	if got := decode[task.Task](t, rec); got.State != task.StateCompleted {
		t.Errorf("state = %s", got.State)
	}
}

func TestPublishEvent_Errors(t *testing.T) {
	f := newFixture(t)
	f.bus.Subscribe("broken", func(context.Context, ...any) error { return errors.New("listener down") })

	rec := f.do(t, http.MethodPost, "/v1/events/nobody.listens", "")
	expectStatus(t, rec, http.StatusNotFound)
	if got := decode[api.ErrorResponse](t, rec); got.Error.Code != "not_found" {
		t.Errorf("error = %+v", got)
	}

	rec = f.do(t, http.MethodPost, "/v1/events/broken", "")
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	if got := decode[api.ErrorResponse](t, rec); !strings.Contains(got.Error.Message, "listener down") {
		t.Errorf("error = %+v", got)
	}

	rec = f.do(t, http.MethodPost, "/v1/events/broken", `{"args":`)
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestTasks_BadRequests(t *testing.T) {
	f := newFixture(t)

	expectStatus(t, f.do(t, http.MethodGet, "/v1/tasks?state=sleeping", ""), http.StatusBadRequest)
	expectStatus(t, f.do(t, http.MethodGet, "/v1/tasks/not-an-id", ""), http.StatusBadRequest)

	rec := f.do(t, http.MethodGet, "/v1/tasks/task_01h455vb4pex5vsknk084sn02q", "")
	expectStatus(t, rec, http.StatusNotFound)
}

func TestCancelTask(t *testing.T) {
	f := newFixture(t)
	c := f.eng.Chain([]job.Spec{job.Action("Never", func() {})})

	tk, err := f.eng.Enqueue(context.Background(), c.Executable())
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	rec := f.do(t, http.MethodPost, "/v1/tasks/"+tk.ID.String()+"/cancel", "")
	expectStatus(t, rec, http.StatusOK)
	if got := decode[task.Task](t, rec); got.State != task.StateCancelled {
		t.Errorf("state = %s", got.State)
	}
	if _, ok := f.eng.Runnables().Get(tk.ID); ok {
		t.Error("runnable kept after cancel")
	}

	rec = f.do(t, http.MethodPost, "/v1/tasks/"+tk.ID.String()+"/cancel", "")
	expectStatus(t, rec, http.StatusConflict)

	counts := decode[api.TaskCountsResponse](t, f.do(t, http.MethodGet, "/v1/tasks/counts", ""))
	if counts["cancelled"] != 1 || counts["pending"] != 0 {
		t.Errorf("counts = %v", counts)
	}
}

func TestDLQ_ListReplayPurge(t *testing.T) {
	f := newFixture(t)

	var healthy bool
	var mu sync.Mutex
	c := f.eng.Chain([]job.Spec{job.Action("Charge", func() error {
		mu.Lock()
		defer mu.Unlock()
		if !healthy {
			return errors.New("card declined")
		}
		return nil
	})})
	f.start(t)
	if err := f.eng.Submit(context.Background(), c.Executable()); err != nil {
		t.Fatal(err)
	}
	f.wait(t)

	rec := f.do(t, http.MethodGet, "/v1/dlq", "")
	expectStatus(t, rec, http.StatusOK)
	entries := decode[[]*dlq.Entry](t, rec)
	if len(entries) != 1 || entries[0].FailedJob != "Charge" {
		t.Fatalf("entries = %+v", entries)
	}
	entryID := entries[0].ID.String()

	if got := decode[api.DLQCountResponse](t, f.do(t, http.MethodGet, "/v1/dlq/count", "")); got.Count != 1 {
		t.Errorf("count = %d", got.Count)
	}
	expectStatus(t, f.do(t, http.MethodGet, "/v1/dlq/"+entryID, ""), http.StatusOK)

	mu.Lock()
	healthy = true
	mu.Unlock()
	rec = f.do(t, http.MethodPost, "/v1/dlq/"+entryID+"/replay", "")
	expectStatus(t, rec, http.StatusCreated)
	replayed := decode[task.Task](t, rec)
	f.wait(t)

	got, err := f.eng.Task(context.Background(), replayed.ID)
	if err != nil || got.State != task.StateCompleted {
		t.Errorf("replayed task = %+v, %v", got, err)
	}

	// The runnable moved to the replayed task.
	expectStatus(t, f.do(t, http.MethodPost, "/v1/dlq/"+entryID+"/replay", ""), http.StatusConflict)

	expectStatus(t, f.do(t, http.MethodPost, "/v1/dlq/purge?older_than=soon", ""), http.StatusBadRequest)
	rec = f.do(t, http.MethodPost, "/v1/dlq/purge?older_than=0s", "")
	expectStatus(t, rec, http.StatusOK)
	if got := decode[api.PurgeDLQResponse](t, rec); got.Purged != 1 {
		t.Errorf("purged = %d", got.Purged)
	}
}

func TestCrons(t *testing.T) {
	f := newFixture(t)
	if _, err := f.sched.Register("nightly", "0 2 * * *", "invoices.due"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	rec := f.do(t, http.MethodGet, "/v1/crons", "")
	expectStatus(t, rec, http.StatusOK)
	if got := decode[[]*cron.Entry](t, rec); len(got) != 1 || got[0].Event != "invoices.due" {
		t.Fatalf("crons = %+v", got)
	}

	rec = f.do(t, http.MethodPost, "/v1/crons/nightly/disable", "")
	expectStatus(t, rec, http.StatusOK)
	if got := decode[cron.Entry](t, rec); got.Enabled {
		t.Error("entry still enabled")
	}
	rec = f.do(t, http.MethodPost, "/v1/crons/nightly/enable", "")
	expectStatus(t, rec, http.StatusOK)
	if got := decode[cron.Entry](t, rec); !got.Enabled {
		t.Error("entry not enabled")
	}

	expectStatus(t, f.do(t, http.MethodGet, "/v1/crons/missing", ""), http.StatusNotFound)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	c := f.eng.Chain([]job.Spec{job.Action("A", func() {})}).OnQueue("mail")
	if _, err := f.eng.Enqueue(context.Background(), c.Executable()); err != nil {
		t.Fatal(err)
	}
	if _, err := f.sched.Register("hourly", "@hourly", "tick"); err != nil {
		t.Fatal(err)
	}

	rec := f.do(t, http.MethodGet, "/v1/stats", "")
	expectStatus(t, rec, http.StatusOK)
	got := decode[api.StatsResponse](t, rec)
	if got.Tasks["pending"] != 1 || got.DLQCount != 0 || got.Crons != 1 || got.Running {
		t.Errorf("stats = %+v", got)
	}
}

func TestHandler_TracesRequests(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	f := newFixture(t, api.WithTracerProvider(tp), api.WithServiceName("jobchain-test"))

	expectStatus(t, f.do(t, http.MethodGet, "/v1/stats", ""), http.StatusOK)
	expectStatus(t, f.do(t, http.MethodGet, "/healthz", ""), http.StatusOK)

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if !strings.Contains(spans[0].Name(), "/v1/stats") {
		t.Errorf("span name = %q", spans[0].Name())
	}
}

func TestStream_ServesTaskEvents(t *testing.T) {
	broker := stream.NewBroker()
	f := newFixture(t, api.WithStream(broker))
	srv := httptest.NewServer(f.h)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/stream?topic=tasks", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Fatalf("status = %d, content type = %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	lines := make(chan string, 16)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	// The subscription comment arrives once the subscriber is registered.
	select {
	case l := <-lines:
		if !strings.HasPrefix(l, ": subscribed sub_") {
			t.Fatalf("first line = %q", l)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no subscription comment")
	}

	tk := &task.Task{ID: id.NewTaskID(), Name: "Atomic Chain: A", Queue: "default"}
	if err := broker.OnTaskEnqueued(context.Background(), tk); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case l, ok := <-lines:
			if !ok {
				t.Fatal("stream closed early")
			}
			if l == "event: task.enqueued" {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for task.enqueued")
		}
	}
}

func TestStream_RejectsUnknownTopic(t *testing.T) {
	f := newFixture(t, api.WithStream(stream.NewBroker()))
	expectStatus(t, f.do(t, http.MethodGet, "/v1/stream?topic=workflows", ""), http.StatusBadRequest)
}
