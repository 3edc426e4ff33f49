package repo

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Relay/internal/domain"
)

// MemoryTaskRepo — хранилище tasks в памяти процесса.
//
// Используется в тестах и в режиме STORE_DRIVER=memory.
// Не переживает рестарт процесса. Отдаёт и принимает копии записей,
// поэтому вызывающая сторона не может изменить состояние в обход Update.
type MemoryTaskRepo struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*domain.Task
	seq   int64
}

// NewMemoryTaskRepo создаёт пустое хранилище.
func NewMemoryTaskRepo() *MemoryTaskRepo {
	return &MemoryTaskRepo{tasks: make(map[uuid.UUID]*domain.Task)}
}

// Create сохраняет task и назначает ей Seq.
func (r *MemoryTaskRepo) Create(_ context.Context, task *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[task.ID]; ok {
		return persistErr("create", fmt.Errorf("%w: task %s", ErrAlreadyExists, task.ID))
	}

	r.seq++
	task.Seq = r.seq
	r.tasks[task.ID] = cloneTask(task)
	return nil
}

// FetchNextPending возвращает самую старую task, готовую к выполнению.
func (r *MemoryTaskRepo) FetchNextPending(_ context.Context, now time.Time) (*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var next *domain.Task
	for _, task := range r.tasks {
		if !task.IsEligible(now) {
			continue
		}
		if next == nil || task.Before(next) {
			next = task
		}
	}
	if next == nil {
		return nil, ErrNotFound
	}
	return cloneTask(next), nil
}

// Update сохраняет счётчик попыток и последнюю ошибку.
func (r *MemoryTaskRepo) Update(_ context.Context, task *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.tasks[task.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Attempts = task.Attempts
	stored.LastError = task.LastError
	if task.LastAttemptAt != nil {
		at := *task.LastAttemptAt
		stored.LastAttemptAt = &at
	} else {
		stored.LastAttemptAt = nil
	}
	return nil
}

// Delete удаляет task по ID.
func (r *MemoryTaskRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(r.tasks, id)
	return nil
}

// DeleteAll удаляет все tasks.
func (r *MemoryTaskRepo) DeleteAll(_ context.Context) error {
	r.mu.Lock()
	clear(r.tasks)
	r.mu.Unlock()
	return nil
}

// ListAll возвращает снимок всех tasks в FIFO порядке.
func (r *MemoryTaskRepo) ListAll(_ context.Context) ([]domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]domain.Task, 0, len(r.tasks))
	for _, task := range r.tasks {
		tasks = append(tasks, *cloneTask(task))
	}
	slices.SortFunc(tasks, func(a, b domain.Task) int {
		switch {
		case a.Before(&b):
			return -1
		case b.Before(&a):
			return 1
		default:
			return 0
		}
	})
	return tasks, nil
}

// Len возвращает количество tasks.
func (r *MemoryTaskRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// cloneTask делает глубокую копию task.
func cloneTask(t *domain.Task) *domain.Task {
	c := *t
	c.Payload.Headers = maps.Clone(t.Payload.Headers)
	c.Payload.Body = bytes.Clone(t.Payload.Body)
	if t.LastAttemptAt != nil {
		at := *t.LastAttemptAt
		c.LastAttemptAt = &at
	}
	return &c
}
