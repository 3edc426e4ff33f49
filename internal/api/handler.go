package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/runner"
)

// Scheduler — приём запросов в очередь.
type Scheduler interface {
	Schedule(ctx context.Context, req domain.APIRequest) (uuid.UUID, error)
}

// TaskStore — операции хранилища, доступные через API.
type TaskStore interface {
	ListAll(ctx context.Context) ([]domain.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteAll(ctx context.Context) error
}

// Runner — управление runner.
type Runner interface {
	Start(ctx context.Context)
	Stop()
	Status() runner.Status
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	scheduler Scheduler
	tasks     TaskStore
	runner    Runner
	baseCtx   context.Context
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Scheduler Scheduler
	Tasks     TaskStore
	Runner    Runner

	// BaseContext — родительский ctx для runner, запущенного через API.
	// Контекст запроса для этого не подходит: он отменяется после ответа.
	BaseContext context.Context

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	baseCtx := cfg.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	return &Handler{
		scheduler: cfg.Scheduler,
		tasks:     cfg.Tasks,
		runner:    cfg.Runner,
		baseCtx:   baseCtx,
		logger:    logger,
	}
}
