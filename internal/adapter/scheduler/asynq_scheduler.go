package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	TypeRestoreAvailability = "availability:restore"

	queueName  = "default"
	maxRetries = 5
)

type RestorePayload struct {
	BookingID string `json:"booking_id"`
}

func NewRestoreTask(bookingID uuid.UUID, at time.Time) (*asynq.Task, []asynq.Option, error) {
	payload, err := json.Marshal(RestorePayload{BookingID: bookingID.String()})
	if err != nil {
		return nil, nil, err
	}

	opts := []asynq.Option{
		asynq.TaskID(bookingID.String()),
		asynq.ProcessAt(at),
		asynq.Queue(queueName),
		asynq.MaxRetry(maxRetries),
	}
	return asynq.NewTask(TypeRestoreAvailability, payload), opts, nil
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type taskDeleter interface {
	DeleteTask(queue, id string) error
}

// AsynqScheduler enqueues one delayed task per booking, keyed by the booking
// id so a reconcile pass can re-enqueue without duplicating work.
type AsynqScheduler struct {
	client    enqueuer
	inspector taskDeleter
	log       *zap.Logger
}

func NewAsynqScheduler(client *asynq.Client, inspector *asynq.Inspector, log *zap.Logger) *AsynqScheduler {
	return newAsynqScheduler(client, inspector, log)
}

func newAsynqScheduler(client enqueuer, inspector taskDeleter, log *zap.Logger) *AsynqScheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AsynqScheduler{client: client, inspector: inspector, log: log}
}

func (s *AsynqScheduler) Schedule(ctx context.Context, bookingID uuid.UUID, at time.Time) error {
	task, opts, err := NewRestoreTask(bookingID, at)
	if err != nil {
		return err
	}

	info, err := s.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			s.log.Debug("restoration already scheduled", zap.String("booking_id", bookingID.String()))
			return nil
		}
		return fmt.Errorf("failed to enqueue restoration: %w", err)
	}

	s.log.Debug("restoration scheduled",
		zap.String("booking_id", bookingID.String()),
		zap.String("task_id", info.ID),
		zap.Time("process_at", at),
	)
	return nil
}

func (s *AsynqScheduler) Unschedule(ctx context.Context, bookingID uuid.UUID) error {
	err := s.inspector.DeleteTask(queueName, bookingID.String())
	if err != nil && !errors.Is(err, asynq.ErrTaskNotFound) && !errors.Is(err, asynq.ErrQueueNotFound) {
		return fmt.Errorf("failed to delete restoration task: %w", err)
	}
	return nil
}
