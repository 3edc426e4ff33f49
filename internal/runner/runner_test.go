package runner

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shaiso/Relay/internal/clock"
	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/events"
	"github.com/shaiso/Relay/internal/repo"
	"github.com/shaiso/Relay/internal/scheduler"
	"github.com/shaiso/Relay/internal/telemetry"
	"github.com/shaiso/Relay/internal/transport"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const waitTimeout = 5 * time.Second

// --- Helpers ---

// eventLog собирает события из Bus.
type eventLog struct {
	mu     sync.Mutex
	events []domain.Event
}

func (l *eventLog) add(ev domain.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) all() []domain.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.Event(nil), l.events...)
}

func (l *eventLog) ofKind(kind domain.EventKind) []domain.Event {
	var out []domain.Event
	for _, ev := range l.all() {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func (l *eventLog) count(kind domain.EventKind) int {
	return len(l.ofKind(kind))
}

// recordingExecutor запоминает имена выполненных запросов и их параллельность.
type recordingExecutor struct {
	mu    sync.Mutex
	names []string

	inFlight    atomic.Int32
	maxInFlight atomic.Int32

	respond func(call int, req domain.APIRequest) (*transport.Response, error)
}

func (e *recordingExecutor) Execute(ctx context.Context, req domain.APIRequest) (*transport.Response, error) {
	n := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	for {
		cur := e.maxInFlight.Load()
		if n <= cur || e.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	e.mu.Lock()
	e.names = append(e.names, req.Name)
	call := len(e.names)
	e.mu.Unlock()

	return e.respond(call, req)
}

func (e *recordingExecutor) calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.names...)
}

func status(code int) func(int, domain.APIRequest) (*transport.Response, error) {
	return func(int, domain.APIRequest) (*transport.Response, error) {
		return &transport.Response{StatusCode: code}, nil
	}
}

func offline(int, domain.APIRequest) (*transport.Response, error) {
	return nil, &transport.Error{
		Kind: transport.KindConnectivity,
		Err:  errors.New("the Internet connection appears to be offline"),
	}
}

type harness struct {
	store *repo.MemoryTaskRepo
	bus   *events.Bus
	log   *eventLog
	clock *clock.Fake
}

func newHarness() *harness {
	h := &harness{
		store: repo.NewMemoryTaskRepo(),
		bus:   events.NewBus(telemetry.NopLogger()),
		log:   &eventLog{},
		clock: clock.NewFake(baseTime.Add(time.Hour)),
	}
	h.bus.SubscribeAll(h.log.add)
	return h
}

// runner создаёт Runner; store по умолчанию — h.store.
func (h *harness) runner(t *testing.T, cfg Config) *Runner {
	t.Helper()
	if cfg.Store == nil {
		cfg.Store = h.store
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Millisecond
	}
	cfg.Notifier = h.bus
	cfg.Clock = h.clock
	cfg.Logger = telemetry.NopLogger()
	cfg.Metrics = telemetry.NewMetrics(prometheus.NewRegistry())

	r, err := New(cfg)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	t.Cleanup(r.Stop)
	return r
}

// schedule сохраняет tasks с возрастающим CreatedAt.
func (h *harness) schedule(t *testing.T, names ...string) []uuid.UUID {
	t.Helper()
	ids := make([]uuid.UUID, 0, len(names))
	for i, name := range names {
		task := domain.NewTask(domain.APIRequest{
			Name:     name,
			Endpoint: "https://api.example.com",
			Path:     "/api/events/track",
			APIKey:   "zee-api-key",
			Auth:     domain.Auth{Email: "user@example.com"},
			Body:     json.RawMessage(`{"eventName":"CustomEvent1"}`),
		}, baseTime.Add(time.Duration(i)*time.Millisecond))

		if err := h.store.Create(context.Background(), task); err != nil {
			t.Fatalf("create task: %v", err)
		}
		ids = append(ids, task.ID)
	}
	return ids
}

func (h *harness) tasks(t *testing.T) []domain.Task {
	t.Helper()
	tasks, err := h.store.ListAll(context.Background())
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	return tasks
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func taskIDs(evs []domain.Event) []uuid.UUID {
	ids := make([]uuid.UUID, len(evs))
	for i, ev := range evs {
		ids[i] = ev.TaskID
	}
	return ids
}

// --- Tests ---

func TestNew_InvalidConfig(t *testing.T) {
	store := repo.NewMemoryTaskRepo()
	exec := transport.ExecutorFunc(func(context.Context, domain.APIRequest) (*transport.Response, error) {
		return nil, nil
	})

	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing store", Config{Executor: exec, PollInterval: time.Second}},
		{"missing executor", Config{Store: store, PollInterval: time.Second}},
		{"zero interval", Config{Store: store, Executor: exec}},
		{"negative interval", Config{Store: store, Executor: exec, PollInterval: -time.Second}},
		{"negative max attempts", Config{Store: store, Executor: exec, PollInterval: time.Second, MaxAttempts: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

// Все запросы успешны: события success в порядке планирования, хранилище пусто.
func TestRunner_MultipleTasksInSequence(t *testing.T) {
	h := newHarness()
	exec := &recordingExecutor{respond: status(200)}
	r := h.runner(t, Config{Executor: exec})

	ids := h.schedule(t, "first", "second", "third")
	r.Start(context.Background())

	waitFor(t, "three success events", func() bool {
		return h.log.count(domain.EventTaskFinishedWithSuccess) == 3
	})

	if got := taskIDs(h.log.ofKind(domain.EventTaskFinishedWithSuccess)); !slices.Equal(got, ids) {
		t.Errorf("expected success in FIFO order %v, got %v", ids, got)
	}
	if len(h.tasks(t)) != 0 {
		t.Errorf("store should be empty")
	}
	if strings.Join(exec.calls(), ",") != "first,second,third" {
		t.Errorf("unexpected execution order: %v", exec.calls())
	}
}

// Сеть недоступна: повторяется только голова очереди, записи остаются.
func TestRunner_FailureWithRetry(t *testing.T) {
	h := newHarness()
	exec := &recordingExecutor{respond: offline}
	r := h.runner(t, Config{Executor: exec})

	ids := h.schedule(t, "head", "second", "third")
	r.Start(context.Background())

	waitFor(t, "several retry events", func() bool {
		return h.log.count(domain.EventTaskFinishedWithRetry) >= 3
	})
	r.Stop()

	retries := h.log.ofKind(domain.EventTaskFinishedWithRetry)
	for _, ev := range retries {
		if ev.TaskID != ids[0] {
			t.Fatalf("only the head task may be retried, got %s", ev.TaskID)
		}
		if ev.Error == nil || ev.Error.Reason != domain.ErrorReasonConnectivity {
			t.Errorf("expected connectivity error, got %+v", ev.Error)
		}
	}
	for i, ev := range retries {
		if ev.Attempts != i+1 {
			t.Errorf("retry %d: expected attempts %d, got %d", i, i+1, ev.Attempts)
		}
	}

	tasks := h.tasks(t)
	if len(tasks) != 3 {
		t.Fatalf("all tasks should remain, got %d", len(tasks))
	}
	if tasks[0].Attempts != len(retries) {
		t.Errorf("head attempts %d should match %d retry events", tasks[0].Attempts, len(retries))
	}
	if tasks[0].LastError == "" || tasks[0].LastAttemptAt == nil {
		t.Errorf("head should record last failure: %+v", tasks[0])
	}
	if tasks[1].Attempts != 0 || tasks[2].Attempts != 0 {
		t.Errorf("blocked tasks must not be attempted: %d %d", tasks[1].Attempts, tasks[2].Attempts)
	}
	for _, name := range exec.calls() {
		if name != "head" {
			t.Fatalf("executor called for blocked task %q", name)
		}
	}
}

// Сервер отклоняет запросы: каждая task удаляется с no_retry.
func TestRunner_FailureWithNoRetry(t *testing.T) {
	h := newHarness()
	r := h.runner(t, Config{Executor: &recordingExecutor{respond: status(401)}})

	ids := h.schedule(t, "first", "second", "third")
	r.Start(context.Background())

	waitFor(t, "three no_retry events", func() bool {
		return h.log.count(domain.EventTaskFinishedWithNoRetry) == 3
	})

	failed := h.log.ofKind(domain.EventTaskFinishedWithNoRetry)
	if got := taskIDs(failed); !slices.Equal(got, ids) {
		t.Errorf("expected no_retry in FIFO order %v, got %v", ids, got)
	}
	for _, ev := range failed {
		if ev.Error == nil || ev.Error.Reason != domain.ErrorReasonClient || ev.Error.StatusCode != 401 {
			t.Errorf("unexpected error: %+v", ev.Error)
		}
	}
	if len(h.tasks(t)) != 0 {
		t.Error("store should be empty")
	}
	if h.log.count(domain.EventTaskFinishedWithRetry) != 0 {
		t.Error("401 must not be retried")
	}
}

func TestRunner_RetryThenSuccess(t *testing.T) {
	h := newHarness()
	exec := &recordingExecutor{respond: func(call int, _ domain.APIRequest) (*transport.Response, error) {
		if call == 1 {
			return &transport.Response{StatusCode: 503}, nil
		}
		return &transport.Response{StatusCode: 200}, nil
	}}
	r := h.runner(t, Config{Executor: exec})

	ids := h.schedule(t, "flaky")
	r.Start(context.Background())

	waitFor(t, "success event", func() bool {
		return h.log.count(domain.EventTaskFinishedWithSuccess) == 1
	})

	evs := h.log.all()
	if len(evs) != 2 {
		t.Fatalf("expected retry then success, got %d events", len(evs))
	}
	if evs[0].Kind != domain.EventTaskFinishedWithRetry || evs[0].Error.Reason != domain.ErrorReasonServer {
		t.Errorf("unexpected first event: %+v", evs[0])
	}
	if evs[1].TaskID != ids[0] || evs[1].Attempts != 1 {
		t.Errorf("unexpected success event: %+v", evs[1])
	}
}

func TestRunner_MaxAttempts(t *testing.T) {
	h := newHarness()
	r := h.runner(t, Config{Executor: &recordingExecutor{respond: status(503)}, MaxAttempts: 3})

	ids := h.schedule(t, "doomed", "next")
	r.Start(context.Background())

	waitFor(t, "both tasks abandoned", func() bool {
		return h.log.count(domain.EventTaskFinishedWithNoRetry) == 2
	})
	r.Stop()

	var kinds []string
	for _, ev := range h.log.all() {
		if ev.TaskID == ids[0] {
			kinds = append(kinds, string(ev.Kind))
		}
	}
	want := "task.finished_with_retry,task.finished_with_retry,task.finished_with_no_retry"
	if strings.Join(kinds, ",") != want {
		t.Errorf("expected %s, got %v", want, kinds)
	}

	abandoned := h.log.ofKind(domain.EventTaskFinishedWithNoRetry)[0]
	if abandoned.TaskID != ids[0] {
		t.Fatalf("head should be abandoned first")
	}
	if abandoned.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", abandoned.Attempts)
	}
	if abandoned.Error.Reason != domain.ErrorReasonAttemptsExhausted || abandoned.Error.StatusCode != 503 {
		t.Errorf("unexpected error: %+v", abandoned.Error)
	}
	if len(h.tasks(t)) != 0 {
		t.Error("abandoned tasks should be deleted")
	}
}

func TestRunner_SingleConcurrency(t *testing.T) {
	h := newHarness()
	exec := &recordingExecutor{respond: func(int, domain.APIRequest) (*transport.Response, error) {
		time.Sleep(10 * time.Millisecond)
		return &transport.Response{StatusCode: 200}, nil
	}}
	r := h.runner(t, Config{Executor: exec, PollInterval: time.Millisecond})

	h.schedule(t, "a", "b", "c", "d", "e")
	r.Start(context.Background())

	// Частые Wake не должны приводить к параллельному выполнению
	stopWaking := make(chan struct{})
	go func() {
		for {
			select {
			case <-stopWaking:
				return
			default:
				r.Wake()
				time.Sleep(100 * time.Microsecond)
			}
		}
	}()
	defer close(stopWaking)

	waitFor(t, "five success events", func() bool {
		return h.log.count(domain.EventTaskFinishedWithSuccess) == 5
	})

	if got := exec.maxInFlight.Load(); got != 1 {
		t.Errorf("expected at most one execution in flight, got %d", got)
	}
	if strings.Join(exec.calls(), "") != "abcde" {
		t.Errorf("unexpected order %v", exec.calls())
	}
}

func TestRunner_StartStopIdempotent(t *testing.T) {
	h := newHarness()
	exec := &recordingExecutor{respond: status(200)}
	r := h.runner(t, Config{Executor: exec})

	if r.State() != StateStopped {
		t.Fatalf("new runner should be stopped, got %s", r.State())
	}

	r.Stop() // stop на остановленном — no-op

	r.Start(context.Background())
	r.Start(context.Background())
	if r.State() == StateStopped {
		t.Fatal("runner should be running")
	}

	h.schedule(t, "once")
	waitFor(t, "success event", func() bool {
		return h.log.count(domain.EventTaskFinishedWithSuccess) == 1
	})

	r.Stop()
	r.Stop()
	if r.State() != StateStopped {
		t.Errorf("expected stopped, got %s", r.State())
	}
	if len(exec.calls()) != 1 {
		t.Errorf("task must be executed once, got %d", len(exec.calls()))
	}

	// Перезапуск после Stop
	h.schedule(t, "again")
	r.Start(context.Background())
	waitFor(t, "second success event", func() bool {
		return h.log.count(domain.EventTaskFinishedWithSuccess) == 2
	})
}

func TestRunner_StopWaitsForInFlight(t *testing.T) {
	h := newHarness()

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var cancelled atomic.Bool

	exec := &recordingExecutor{respond: func(int, domain.APIRequest) (*transport.Response, error) {
		started <- struct{}{}
		<-release
		return &transport.Response{StatusCode: 200}, nil
	}}
	// Executor видит ctx вызова
	wrapped := transport.ExecutorFunc(func(ctx context.Context, req domain.APIRequest) (*transport.Response, error) {
		resp, err := exec.Execute(ctx, req)
		cancelled.Store(ctx.Err() != nil)
		return resp, err
	})
	r := h.runner(t, Config{Executor: wrapped})

	ids := h.schedule(t, "slow", "pending")
	r.Start(context.Background())

	select {
	case <-started:
	case <-time.After(waitTimeout):
		t.Fatal("execution did not start")
	}

	st := r.Status()
	if st.State != StateExecuting {
		t.Errorf("expected executing, got %s", st.State)
	}
	if st.TaskID == nil || *st.TaskID != ids[0] {
		t.Errorf("status should report executing task %s, got %v", ids[0], st.TaskID)
	}

	stopped := make(chan struct{})
	go func() {
		r.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned before the in-flight execution finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)

	select {
	case <-stopped:
	case <-time.After(waitTimeout):
		t.Fatal("Stop did not return")
	}

	if cancelled.Load() {
		t.Error("execution context must not be cancelled by Stop")
	}
	if h.log.count(domain.EventTaskFinishedWithSuccess) != 1 {
		t.Error("in-flight task should complete and publish its outcome")
	}

	// Новое выполнение после Stop не начинается
	time.Sleep(30 * time.Millisecond)
	if len(exec.calls()) != 1 {
		t.Errorf("no execution expected after Stop, got %v", exec.calls())
	}
	tasks := h.tasks(t)
	if len(tasks) != 1 || tasks[0].ID != ids[1] {
		t.Errorf("pending task should remain: %+v", tasks)
	}
}

func TestRunner_ParentContextCancel(t *testing.T) {
	h := newHarness()
	r := h.runner(t, Config{Executor: &recordingExecutor{respond: status(200)}})

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	cancel()

	waitFor(t, "runner to stop", func() bool { return r.State() == StateStopped })

	// Повторный Start после отмены работает
	h.schedule(t, "after-cancel")
	r.Start(context.Background())
	waitFor(t, "success event", func() bool {
		return h.log.count(domain.EventTaskFinishedWithSuccess) == 1
	})
}

func TestRunner_WakeOnScheduled(t *testing.T) {
	h := newHarness()
	r := h.runner(t, Config{Executor: &recordingExecutor{respond: status(200)}, PollInterval: time.Hour})

	// task.scheduled будит runner, не дожидаясь тика
	h.bus.Subscribe(domain.EventTaskScheduled, func(domain.Event) { r.Wake() })

	sched, err := scheduler.New(scheduler.Config{
		Store:    h.store,
		Notifier: h.bus,
		Clock:    h.clock,
		Logger:   telemetry.NopLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}

	r.Start(context.Background())
	waitFor(t, "initial poll", func() bool { return r.State() == StatePolling })

	id, err := sched.Schedule(context.Background(), domain.APIRequest{Name: "wake", Endpoint: "https://api.example.com"})
	if err != nil {
		t.Fatal(err)
	}

	waitFor(t, "success event", func() bool {
		evs := h.log.ofKind(domain.EventTaskFinishedWithSuccess)
		return len(evs) == 1 && evs[0].TaskID == id
	})
}

func TestRunner_NotEligibleUntilScheduled(t *testing.T) {
	h := newHarness()
	h.clock.Set(baseTime.Add(-time.Minute))
	exec := &recordingExecutor{respond: status(200)}
	r := h.runner(t, Config{Executor: exec})

	h.schedule(t, "future")
	r.Start(context.Background())

	time.Sleep(30 * time.Millisecond)
	if len(exec.calls()) != 0 {
		t.Fatal("task must not run before its scheduled time")
	}

	h.clock.Set(baseTime.Add(time.Minute))
	waitFor(t, "success event", func() bool {
		return h.log.count(domain.EventTaskFinishedWithSuccess) == 1
	})
}

func TestRunner_ExecutorPanic(t *testing.T) {
	h := newHarness()
	exec := transport.ExecutorFunc(func(context.Context, domain.APIRequest) (*transport.Response, error) {
		panic("nil map write")
	})
	r := h.runner(t, Config{Executor: exec})

	h.schedule(t, "panicky")
	r.Start(context.Background())

	waitFor(t, "retry event", func() bool {
		return h.log.count(domain.EventTaskFinishedWithRetry) >= 1
	})

	ev := h.log.ofKind(domain.EventTaskFinishedWithRetry)[0]
	if ev.Error.Reason != domain.ErrorReasonConnectivity || !strings.Contains(ev.Error.Message, "panicked") {
		t.Errorf("panic should be reported as connectivity failure: %+v", ev.Error)
	}
}

func TestRunner_InvalidRequest(t *testing.T) {
	h := newHarness()
	exec := transport.NewHTTPExecutor(transport.HTTPConfig{})
	r := h.runner(t, Config{Executor: exec})

	// Запрос без endpoint отправить невозможно
	task := domain.NewTask(domain.APIRequest{Name: "broken", Path: "/x"}, baseTime)
	if err := h.store.Create(context.Background(), task); err != nil {
		t.Fatal(err)
	}
	r.Start(context.Background())

	waitFor(t, "no_retry event", func() bool {
		return h.log.count(domain.EventTaskFinishedWithNoRetry) == 1
	})
	if ev := h.log.ofKind(domain.EventTaskFinishedWithNoRetry)[0]; ev.Error.Reason != domain.ErrorReasonClient {
		t.Errorf("expected client reason, got %+v", ev.Error)
	}
}

// Записи переживают смену runner'а: новый экземпляр продолжает с сохранённого Attempts.
func TestRunner_ResumesAfterRestart(t *testing.T) {
	h := newHarness()

	first := h.runner(t, Config{Executor: &recordingExecutor{respond: offline}})
	ids := h.schedule(t, "durable")
	first.Start(context.Background())
	waitFor(t, "two retries", func() bool {
		return h.log.count(domain.EventTaskFinishedWithRetry) >= 2
	})
	first.Stop()

	attempts := h.tasks(t)[0].Attempts

	second := h.runner(t, Config{Executor: &recordingExecutor{respond: status(200)}})
	second.Start(context.Background())
	waitFor(t, "success event", func() bool {
		return h.log.count(domain.EventTaskFinishedWithSuccess) == 1
	})

	ev := h.log.ofKind(domain.EventTaskFinishedWithSuccess)[0]
	if ev.TaskID != ids[0] || ev.Attempts != attempts {
		t.Errorf("expected task %s with %d attempts, got %+v", ids[0], attempts, ev)
	}
}

// --- Persistence failures ---

// faultyStore подменяет ошибки операций поверх MemoryTaskRepo.
type faultyStore struct {
	*repo.MemoryTaskRepo

	mu        sync.Mutex
	fetchErr  error
	updateErr error
	deleteErr error
}

func (s *faultyStore) set(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

func (s *faultyStore) FetchNextPending(ctx context.Context, now time.Time) (*domain.Task, error) {
	s.mu.Lock()
	err := s.fetchErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.MemoryTaskRepo.FetchNextPending(ctx, now)
}

func (s *faultyStore) Update(ctx context.Context, task *domain.Task) error {
	s.mu.Lock()
	err := s.updateErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.MemoryTaskRepo.Update(ctx, task)
}

func (s *faultyStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	err := s.deleteErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.MemoryTaskRepo.Delete(ctx, id)
}

func TestRunner_DeleteFailureKeepsTask(t *testing.T) {
	h := newHarness()
	store := &faultyStore{MemoryTaskRepo: h.store}
	store.deleteErr = &repo.PersistenceError{Op: "delete", Err: errors.New("disk I/O error")}
	r := h.runner(t, Config{Store: store, Executor: &recordingExecutor{respond: status(200)}})

	ids := h.schedule(t, "sticky")
	r.Start(context.Background())

	waitFor(t, "retry event", func() bool {
		return h.log.count(domain.EventTaskFinishedWithRetry) >= 1
	})
	r.Stop()

	ev := h.log.ofKind(domain.EventTaskFinishedWithRetry)[0]
	if ev.TaskID != ids[0] || ev.Error.Reason != domain.ErrorReasonPersistence {
		t.Errorf("unexpected event: %+v", ev)
	}
	if h.log.count(domain.EventTaskFinishedWithSuccess) != 0 {
		t.Error("success must not be reported while the record remains")
	}
	if len(h.tasks(t)) != 1 {
		t.Error("record should remain for the next cycle")
	}
}

func TestRunner_UpdateFailure(t *testing.T) {
	h := newHarness()
	store := &faultyStore{MemoryTaskRepo: h.store}
	store.updateErr = &repo.PersistenceError{Op: "update", Err: errors.New("connection reset")}
	r := h.runner(t, Config{Store: store, Executor: &recordingExecutor{respond: status(500)}})

	h.schedule(t, "unrecorded")
	r.Start(context.Background())

	waitFor(t, "retry event", func() bool {
		return h.log.count(domain.EventTaskFinishedWithRetry) >= 1
	})
	r.Stop()

	ev := h.log.ofKind(domain.EventTaskFinishedWithRetry)[0]
	if ev.Error.Reason != domain.ErrorReasonPersistence {
		t.Errorf("expected persistence reason, got %+v", ev.Error)
	}
	if ev.Attempts != 0 {
		t.Errorf("event should report stored attempts, got %d", ev.Attempts)
	}
	if tasks := h.tasks(t); len(tasks) != 1 || tasks[0].Attempts != 0 {
		t.Errorf("stored record should be unchanged: %+v", tasks)
	}
}

func TestRunner_TaskPurgedDuringExecution(t *testing.T) {
	tests := []struct {
		name       string
		code       int
		wantKind   domain.EventKind
		wantReason domain.ErrorReason
	}{
		{"success", 200, domain.EventTaskFinishedWithSuccess, ""},
		{"retryable", 503, domain.EventTaskFinishedWithNoRetry, domain.ErrorReasonPersistence},
		{"rejected", 403, domain.EventTaskFinishedWithNoRetry, domain.ErrorReasonClient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			// Executor удаляет все записи, как DELETE /api/v1/tasks во время вызова
			exec := &recordingExecutor{respond: func(int, domain.APIRequest) (*transport.Response, error) {
				h.store.DeleteAll(context.Background())
				return &transport.Response{StatusCode: tt.code}, nil
			}}
			r := h.runner(t, Config{Executor: exec})

			ids := h.schedule(t, "purged")
			r.Start(context.Background())

			waitFor(t, "event", func() bool { return len(h.log.all()) == 1 })
			r.Stop()

			evs := h.log.all()
			if len(evs) != 1 {
				t.Fatalf("expected exactly one event, got %d", len(evs))
			}
			ev := evs[0]
			if ev.TaskID != ids[0] || ev.Kind != tt.wantKind {
				t.Errorf("expected %s for %s, got %+v", tt.wantKind, ids[0], ev)
			}
			if tt.wantReason == "" {
				if ev.Error != nil {
					t.Errorf("unexpected error %+v", ev.Error)
				}
			} else if ev.Error == nil || ev.Error.Reason != tt.wantReason {
				t.Errorf("expected reason %s, got %+v", tt.wantReason, ev.Error)
			}
		})
	}
}

func TestRunner_FetchFailure(t *testing.T) {
	h := newHarness()
	store := &faultyStore{MemoryTaskRepo: h.store}
	store.fetchErr = &repo.PersistenceError{Op: "fetch_next_pending", Err: errors.New("database is locked")}
	r := h.runner(t, Config{Store: store, Executor: &recordingExecutor{respond: status(200)}})

	h.schedule(t, "waiting")
	r.Start(context.Background())

	time.Sleep(30 * time.Millisecond)
	if n := len(h.log.all()); n != 0 {
		t.Fatalf("fetch failures must not publish events, got %d", n)
	}
	if r.State() == StateStopped {
		t.Fatal("runner should keep polling after fetch failure")
	}

	store.set(func() { store.fetchErr = nil })
	waitFor(t, "success after recovery", func() bool {
		return h.log.count(domain.EventTaskFinishedWithSuccess) == 1
	})
}

func TestRunner_FIFOWithFrozenClock(t *testing.T) {
	h := newHarness()
	r := h.runner(t, Config{Executor: &recordingExecutor{respond: status(200)}})

	// Часы не двигаются: у всех tasks одинаковый CreatedAt, порядок задаёт Seq
	sched, err := scheduler.New(scheduler.Config{
		Store:  h.store,
		Clock:  h.clock,
		Logger: telemetry.NopLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}

	var ids []uuid.UUID
	for _, name := range []string{"first", "second", "third", "fourth", "fifth"} {
		id, err := sched.Schedule(context.Background(), domain.APIRequest{Name: name, Endpoint: "https://api.example.com"})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	for _, task := range h.tasks(t) {
		if !task.CreatedAt.Equal(h.clock.Now()) {
			t.Fatalf("expected identical created_at, got %v", task.CreatedAt)
		}
	}

	r.Start(context.Background())
	waitFor(t, "all success events", func() bool {
		return h.log.count(domain.EventTaskFinishedWithSuccess) == len(ids)
	})

	if got := taskIDs(h.log.ofKind(domain.EventTaskFinishedWithSuccess)); !slices.Equal(got, ids) {
		t.Errorf("delivery order should follow scheduling order:\n got  %v\n want %v", got, ids)
	}
}

func TestRunner_StatusConsistent(t *testing.T) {
	h := newHarness()
	exec := &recordingExecutor{respond: func(int, domain.APIRequest) (*transport.Response, error) {
		time.Sleep(time.Millisecond)
		return &transport.Response{StatusCode: 200}, nil
	}}
	r := h.runner(t, Config{Executor: exec, PollInterval: time.Millisecond})

	names := make([]string, 30)
	for i := range names {
		names[i] = "task"
	}
	h.schedule(t, names...)

	done := make(chan struct{})
	var bad atomic.Value
	go func() {
		defer close(done)
		for h.log.count(domain.EventTaskFinishedWithSuccess) < len(names) {
			st := r.Status()
			if (st.State == StateExecuting) != (st.TaskID != nil) {
				bad.Store(st)
				return
			}
		}
	}()

	r.Start(context.Background())

	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for tasks")
	}
	if st := bad.Load(); st != nil {
		t.Fatalf("inconsistent status snapshot: %+v", st)
	}
}

func TestRunner_AttemptsExhaustedDeleteFailure(t *testing.T) {
	h := newHarness()
	store := &faultyStore{MemoryTaskRepo: h.store}
	store.deleteErr = &repo.PersistenceError{Op: "delete", Err: errors.New("disk I/O error")}
	r := h.runner(t, Config{
		Store:       store,
		Executor:    &recordingExecutor{respond: status(503)},
		MaxAttempts: 1,
	})

	ids := h.schedule(t, "exhausted")
	r.Start(context.Background())

	waitFor(t, "retry event", func() bool {
		return h.log.count(domain.EventTaskFinishedWithRetry) >= 1
	})
	r.Stop()

	ev := h.log.ofKind(domain.EventTaskFinishedWithRetry)[0]
	if ev.TaskID != ids[0] || ev.Error.Reason != domain.ErrorReasonPersistence {
		t.Errorf("unexpected event: %+v", ev)
	}
	if ev.Attempts != 0 {
		t.Errorf("event should report stored attempts 0, got %d", ev.Attempts)
	}
	if h.log.count(domain.EventTaskFinishedWithNoRetry) != 0 {
		t.Error("no terminal event while the record remains")
	}
	if tasks := h.tasks(t); len(tasks) != 1 || tasks[0].Attempts != 0 {
		t.Errorf("stored record should be unchanged: %+v", tasks)
	}
}
