// Relay Watcher — получает события о tasks из RabbitMQ и пишет их в лог.
//
// Watcher:
//   - Потребляет очередь events.watcher (все события task.#)
//   - Переносит события в локальную шину через events.Bridge
//   - Битые сообщения уходят в DLQ без повторной доставки
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Relay/internal/config"
	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/events"
	"github.com/shaiso/Relay/internal/mq"
	"github.com/shaiso/Relay/internal/telemetry"
)

var eventsSeen = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "relay_watcher_events_total",
	Help: "Task events received by relay-watcher, by kind",
}, []string{"kind"})

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// Инициализируем structured logging
	logger := telemetry.SetupLogger(telemetry.LogConfig{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger.Info("starting relay-watcher")

	if cfg.RabbitMQURL == "" {
		logger.Error("RABBITMQ_URL is empty, nothing to watch")
		os.Exit(1)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// RabbitMQ
	mqConn, err := mq.NewConnection(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}
	logger.Debug("topology ready", "info", mq.TopologyInfo())

	// Локальная шина: лог + метрика
	bus := events.NewBus(telemetry.WithComponent(logger, "events"))
	bus.SubscribeAll(events.LogHandler(logger))
	bus.SubscribeAll(func(ev domain.Event) {
		eventsSeen.WithLabelValues(string(ev.Kind)).Inc()
	})

	consumer := mq.NewConsumer(mqConn, telemetry.WithComponent(logger, "consumer"), mq.ConsumerConfig{
		Queue:    mq.QueueEventsWatcher,
		Tag:      "relay-watcher",
		Handler:  events.NewBridge(bus, logger).Handle,
		Prefetch: 10,
	})

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !mqConn.IsConnected() {
			http.Error(w, "rabbitmq disconnected", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	addr := ":" + cfg.WatcherPort
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Блокируется до отмены ctx
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer stopped", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	logger.Info("relay-watcher stopped")
}
