package repo

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Relay/internal/domain"
)

// taskStore — набор операций, общий для всех реализаций хранилища.
type taskStore interface {
	Create(ctx context.Context, task *domain.Task) error
	FetchNextPending(ctx context.Context, now time.Time) (*domain.Task, error)
	Update(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteAll(ctx context.Context) error
	ListAll(ctx context.Context) ([]domain.Task, error)
}

var (
	_ taskStore = (*MemoryTaskRepo)(nil)
	_ taskStore = (*TaskRepo)(nil)
	_ taskStore = (*RedisTaskRepo)(nil)
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleRequest(name string) domain.APIRequest {
	return domain.APIRequest{
		Name:     name,
		Endpoint: "https://api.example.com",
		Path:     "/api/events/track",
		Method:   "POST",
		Headers:  map[string]string{"X-Sdk": "relay"},
		APIKey:   "zee-api-key",
		Auth:     domain.Auth{Email: "user@example.com"},
		// Ключи не по алфавиту, пробелы и дубликат: хранилище не должно переписывать тело
		Body: json.RawMessage(`{"eventName": "CustomEvent1",  "dataFields":{"var2":"b","var1":"a"},"eventName":"CustomEvent1"}`),
	}
}

func newSampleTask(name string, createdAt time.Time) *domain.Task {
	return domain.NewTask(sampleRequest(name), createdAt)
}

// runStoreContract проверяет поведение, одинаковое для всех хранилищ.
// newStore должен возвращать пустое хранилище.
func runStoreContract(t *testing.T, newStore func(t *testing.T) taskStore) {
	ctx := context.Background()

	t.Run("fifo by created_at", func(t *testing.T) {
		s := newStore(t)

		later := newSampleTask("later", baseTime.Add(time.Second))
		earlier := newSampleTask("earlier", baseTime)
		mustCreate(t, s, later)
		mustCreate(t, s, earlier)

		next, err := s.FetchNextPending(ctx, baseTime.Add(time.Minute))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if next.ID != earlier.ID {
			t.Errorf("expected earlier task %s, got %s", earlier.ID, next.ID)
		}
	})

	t.Run("ties broken by insertion order", func(t *testing.T) {
		s := newStore(t)

		first := newSampleTask("first", baseTime)
		second := newSampleTask("second", baseTime)
		mustCreate(t, s, first)
		mustCreate(t, s, second)

		if first.Seq >= second.Seq {
			t.Fatalf("seq should grow: first=%d second=%d", first.Seq, second.Seq)
		}

		tasks, err := s.ListAll(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tasks) != 2 || tasks[0].ID != first.ID || tasks[1].ID != second.ID {
			t.Errorf("unexpected order: %+v", tasks)
		}
	})

	t.Run("payload kept byte for byte", func(t *testing.T) {
		s := newStore(t)
		task := newSampleTask("opaque", baseTime)
		mustCreate(t, s, task)

		tasks, err := s.ListAll(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tasks) != 1 {
			t.Fatalf("expected 1 task, got %d", len(tasks))
		}
		if !reflect.DeepEqual(tasks[0].Payload, task.Payload) {
			t.Errorf("payload changed:\n got  %+v\n want %+v", tasks[0].Payload, task.Payload)
		}
		if string(tasks[0].Payload.Body) != string(task.Payload.Body) {
			t.Errorf("body rewritten: %s", tasks[0].Payload.Body)
		}

		next, err := s.FetchNextPending(ctx, baseTime)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(next.Payload.Body) != string(task.Payload.Body) {
			t.Errorf("fetched body rewritten: %s", next.Payload.Body)
		}
	})

	t.Run("not eligible before scheduled_at", func(t *testing.T) {
		s := newStore(t)
		mustCreate(t, s, newSampleTask("future", baseTime))

		_, err := s.FetchNextPending(ctx, baseTime.Add(-time.Second))
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("empty store", func(t *testing.T) {
		s := newStore(t)

		_, err := s.FetchNextPending(ctx, baseTime)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}

		tasks, err := s.ListAll(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tasks) != 0 {
			t.Errorf("expected empty list, got %d", len(tasks))
		}
	})

	t.Run("update keeps payload", func(t *testing.T) {
		s := newStore(t)
		task := newSampleTask("update", baseTime)
		mustCreate(t, s, task)

		changed := *task
		changed.Payload.Path = "/tampered"
		changed.RecordFailure("connectivity: offline", baseTime.Add(time.Second))

		if err := s.Update(ctx, &changed); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := s.FetchNextPending(ctx, baseTime.Add(time.Minute))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Attempts != 1 {
			t.Errorf("expected attempts 1, got %d", got.Attempts)
		}
		if got.LastError != "connectivity: offline" {
			t.Errorf("unexpected last error %q", got.LastError)
		}
		if got.LastAttemptAt == nil {
			t.Error("last attempt time should be set")
		}
		if got.Payload.Path != "/api/events/track" {
			t.Errorf("payload must be immutable, got path %q", got.Payload.Path)
		}
	})

	t.Run("update and delete missing", func(t *testing.T) {
		s := newStore(t)
		ghost := newSampleTask("ghost", baseTime)

		if err := s.Update(ctx, ghost); !errors.Is(err, ErrNotFound) {
			t.Errorf("update: expected ErrNotFound, got %v", err)
		}
		if err := s.Delete(ctx, ghost.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("delete: expected ErrNotFound, got %v", err)
		}
	})

	t.Run("duplicate create", func(t *testing.T) {
		s := newStore(t)
		task := newSampleTask("dup", baseTime)
		mustCreate(t, s, task)

		err := s.Create(ctx, task)
		if !errors.Is(err, ErrAlreadyExists) {
			t.Errorf("expected ErrAlreadyExists, got %v", err)
		}
		var pe *PersistenceError
		if !errors.As(err, &pe) {
			t.Errorf("expected PersistenceError, got %T", err)
		}
	})

	t.Run("delete and delete all", func(t *testing.T) {
		s := newStore(t)
		a := newSampleTask("a", baseTime)
		b := newSampleTask("b", baseTime.Add(time.Second))
		c := newSampleTask("c", baseTime.Add(2*time.Second))
		mustCreate(t, s, a)
		mustCreate(t, s, b)
		mustCreate(t, s, c)

		if err := s.Delete(ctx, a.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		next, err := s.FetchNextPending(ctx, baseTime.Add(time.Minute))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if next.ID != b.ID {
			t.Errorf("expected %s after delete, got %s", b.ID, next.ID)
		}

		if err := s.DeleteAll(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tasks, err := s.ListAll(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tasks) != 0 {
			t.Errorf("expected empty store, got %d tasks", len(tasks))
		}
	})
}

func mustCreate(t *testing.T, s taskStore, task *domain.Task) {
	t.Helper()
	if err := s.Create(context.Background(), task); err != nil {
		t.Fatalf("create %s: %v", task.Payload.Name, err)
	}
}
