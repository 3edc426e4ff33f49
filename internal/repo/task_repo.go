package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Relay/internal/domain"
)

// pgUniqueViolation — SQLSTATE нарушения уникальности.
const pgUniqueViolation = "23505"

const taskColumns = `id, seq, payload, body, attempts, created_at, scheduled_at, last_attempt_at, last_error`

// TaskRepo — Postgres-хранилище tasks.
type TaskRepo struct {
	pool *pgxpool.Pool
}

// NewTaskRepo создаёт новый TaskRepo.
func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

// Create сохраняет новую task и заполняет task.Seq.
func (r *TaskRepo) Create(ctx context.Context, task *domain.Task) error {
	payload, body := splitBody(task.Payload)
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return persistErr("create", fmt.Errorf("marshal payload: %w", err))
	}

	query := `
		INSERT INTO outbound_tasks (id, payload, body, attempts, created_at, scheduled_at, last_attempt_at, last_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING seq
	`
	err = r.pool.QueryRow(ctx, query,
		task.ID,
		payloadJSON,
		body,
		task.Attempts,
		task.CreatedAt,
		task.ScheduledAt,
		task.LastAttemptAt,
		nullString(task.LastError),
	).Scan(&task.Seq)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return persistErr("create", fmt.Errorf("%w: task %s", ErrAlreadyExists, task.ID))
		}
		return persistErr("create", fmt.Errorf("insert task: %w", err))
	}
	return nil
}

// FetchNextPending возвращает самую старую task с scheduled_at <= now.
// Если таких нет — ErrNotFound.
func (r *TaskRepo) FetchNextPending(ctx context.Context, now time.Time) (*domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM outbound_tasks
		WHERE scheduled_at <= $1
		ORDER BY created_at ASC, seq ASC
		LIMIT 1
	`
	task, err := scanTask(r.pool.QueryRow(ctx, query, now))
	if err != nil {
		return nil, persistErr("fetch_next_pending", err)
	}
	return task, nil
}

// Update сохраняет счётчик попыток и последнюю ошибку.
// Payload и время создания не меняются.
func (r *TaskRepo) Update(ctx context.Context, task *domain.Task) error {
	query := `
		UPDATE outbound_tasks
		SET attempts = $2, last_attempt_at = $3, last_error = $4
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		task.ID,
		task.Attempts,
		task.LastAttemptAt,
		nullString(task.LastError),
	)
	if err != nil {
		return persistErr("update", fmt.Errorf("update task: %w", err))
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет task по ID.
func (r *TaskRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM outbound_tasks WHERE id = $1`, id)
	if err != nil {
		return persistErr("delete", fmt.Errorf("delete task: %w", err))
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll удаляет все tasks.
func (r *TaskRepo) DeleteAll(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM outbound_tasks`); err != nil {
		return persistErr("delete_all", fmt.Errorf("delete tasks: %w", err))
	}
	return nil
}

// ListAll возвращает все tasks в FIFO порядке.
func (r *TaskRepo) ListAll(ctx context.Context) ([]domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM outbound_tasks
		ORDER BY created_at ASC, seq ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, persistErr("list_all", fmt.Errorf("list tasks: %w", err))
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, persistErr("list_all", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list_all", err)
	}
	return tasks, nil
}

// --- Helpers ---

// scanTask читает task из pgx.Row (pgx.Rows тоже удовлетворяет pgx.Row).
func scanTask(row pgx.Row) (*domain.Task, error) {
	var task domain.Task
	var payloadJSON, body []byte
	var lastError *string

	err := row.Scan(
		&task.ID,
		&task.Seq,
		&payloadJSON,
		&body,
		&task.Attempts,
		&task.CreatedAt,
		&task.ScheduledAt,
		&task.LastAttemptAt,
		&lastError,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	if err := json.Unmarshal(payloadJSON, &task.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	joinBody(&task.Payload, body)
	if lastError != nil {
		task.LastError = *lastError
	}

	return &task, nil
}

// splitBody отделяет тело запроса от остального payload.
// Тело хранится отдельно, как есть, без повторной сериализации JSON.
func splitBody(req domain.APIRequest) (domain.APIRequest, []byte) {
	body := []byte(req.Body)
	req.Body = nil
	return req, body
}

// joinBody возвращает телу исходные байты.
// Записи без отдельного тела оставляют Body из payload.
func joinBody(req *domain.APIRequest, body []byte) {
	if len(body) > 0 {
		req.Body = json.RawMessage(body)
	}
}

// nullString возвращает nil для пустой строки.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
