// Relay Server — долговечная очередь исходящих API-запросов.
//
// Server:
//   - Принимает запросы через HTTP API и сохраняет их как tasks
//   - Runner по одной доставляет tasks в порядке постановки
//   - Публикует события о результатах в локальную шину и RabbitMQ
//
// Хранилище выбирается через STORE_DRIVER: postgres, redis или memory.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Relay/internal/api"
	"github.com/shaiso/Relay/internal/config"
	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/events"
	"github.com/shaiso/Relay/internal/mq"
	"github.com/shaiso/Relay/internal/repo"
	"github.com/shaiso/Relay/internal/runner"
	"github.com/shaiso/Relay/internal/scheduler"
	"github.com/shaiso/Relay/internal/telemetry"
	"github.com/shaiso/Relay/internal/transport"
)

var startTime = time.Now()

// taskStore — полный набор операций хранилища, общий для всех драйверов.
type taskStore interface {
	Create(ctx context.Context, task *domain.Task) error
	FetchNextPending(ctx context.Context, now time.Time) (*domain.Task, error)
	Update(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteAll(ctx context.Context) error
	ListAll(ctx context.Context) ([]domain.Task, error)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// Инициализируем structured logging
	logger := telemetry.SetupLogger(telemetry.LogConfig{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger.Info("starting relay-server", "store", cfg.StoreDriver)

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Хранилище
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open task store", "error", err)
		os.Exit(1)
	}
	defer closeStore()
	logger.Info("task store ready", "driver", cfg.StoreDriver)

	// События: локальная шина + RabbitMQ (опционально)
	bus := events.NewBus(telemetry.WithComponent(logger, "events"))
	bus.SubscribeAll(events.LogHandler(logger))

	var mqNotifier events.Notifier
	if cfg.RabbitMQURL != "" {
		mqConn, err := mq.NewConnection(cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, events stay local", "error", err)
		} else {
			defer mqConn.Close()
			logger.Info("RabbitMQ connected")

			if err := mq.SetupTopology(ctx, mqConn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}
			mqNotifier = events.NewMQNotifier(mq.NewPublisher(mqConn, logger))
		}
	}
	notifier := events.NewFanout(bus, mqNotifier)

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	sched, err := scheduler.New(scheduler.Config{
		Store:    store,
		Notifier: notifier,
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		logger.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}

	r, err := runner.New(runner.Config{
		Store:        store,
		Executor:     transport.NewHTTPExecutor(transport.HTTPConfig{Timeout: cfg.HTTPTimeout}),
		Notifier:     notifier,
		PollInterval: cfg.PollInterval,
		MaxAttempts:  cfg.MaxAttempts,
		Logger:       logger,
		Metrics:      metrics,
	})
	if err != nil {
		logger.Error("failed to create runner", "error", err)
		os.Exit(1)
	}

	// Новая task будит runner, не дожидаясь тика
	bus.Subscribe(domain.EventTaskScheduled, func(domain.Event) { r.Wake() })

	if cfg.Autostart {
		r.Start(ctx)
	}

	// Создаём API handler
	handler := api.NewHandler(api.Config{
		Scheduler:   sched,
		Tasks:       store,
		Runner:      r,
		BaseContext: ctx,
		Logger:      logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":" + cfg.APIPort
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	// Дожидаемся выполняемой task
	r.Stop()

	logger.Info("relay-server stopped")
}

// openStore открывает хранилище по cfg.StoreDriver.
func openStore(ctx context.Context, cfg *config.Config) (taskStore, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := repo.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := repo.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repo.NewTaskRepo(pool), pool.Close, nil

	case config.DriverRedis:
		client, err := repo.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return repo.NewRedisTaskRepo(client, cfg.RedisPrefix), func() { client.Close() }, nil

	case config.DriverMemory:
		return repo.NewMemoryTaskRepo(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
