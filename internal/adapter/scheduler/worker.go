package scheduler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/srgjo27/taxi_availability/internal/core/services"
)

type Restorer interface {
	RestoreBooking(ctx context.Context, bookingID uuid.UUID, trigger services.Trigger) (bool, error)
}

func HandleRestoreTask(restorer Restorer, log *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p RestorePayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			log.Error("invalid restoration payload", zap.Error(err))
			return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
		}

		bookingID, err := uuid.Parse(p.BookingID)
		if err != nil {
			log.Error("invalid booking id in restoration payload", zap.String("booking_id", p.BookingID))
			return fmt.Errorf("invalid booking id %q: %w", p.BookingID, asynq.SkipRetry)
		}

		if _, err := restorer.RestoreBooking(ctx, bookingID, services.TriggerScheduled); err != nil {
			// asynq retries; the sweep catches anything that exhausts them.
			return err
		}
		return nil
	}
}

type WorkerConfig struct {
	Redis       asynq.RedisClientOpt
	Concurrency int
}

// Worker runs the asynq server that fires restoration tasks.
type Worker struct {
	srv *asynq.Server
	mux *asynq.ServeMux
	log *zap.Logger
}

func NewWorker(cfg WorkerConfig, restorer Restorer, log *zap.Logger) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}

	srv := asynq.NewServer(cfg.Redis, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName: 1,
		},
		Logger:   log.Sugar(),
		LogLevel: asynq.InfoLevel,
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeRestoreAvailability, HandleRestoreTask(restorer, log))

	return &Worker{srv: srv, mux: mux, log: log}
}

func (w *Worker) Start() error {
	if err := w.srv.Start(w.mux); err != nil {
		return fmt.Errorf("failed to start restoration worker: %w", err)
	}
	w.log.Info("restoration worker started")
	return nil
}

func (w *Worker) Shutdown() {
	w.srv.Shutdown()
	w.log.Info("restoration worker stopped")
}
