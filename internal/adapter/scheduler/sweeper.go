package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/srgjo27/taxi_availability/internal/core/services"
)

type ExpirySweeper interface {
	SweepExpired(ctx context.Context) (services.SweepReport, error)
}

// Sweeper runs the expiry sweep on a cron spec. Overlapping runs are skipped.
type Sweeper struct {
	cron    *cron.Cron
	sweeper ExpirySweeper
	timeout time.Duration
	log     *zap.Logger
}

func NewSweeper(spec string, loc *time.Location, sweeper ExpirySweeper, log *zap.Logger) (*Sweeper, error) {
	if loc == nil {
		loc = time.Local
	}

	cl := cronLogger{log: log}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	s := &Sweeper{cron: c, sweeper: sweeper, timeout: 10 * time.Minute, log: log}
	if _, err := c.AddFunc(spec, s.RunOnce); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}

	return s, nil
}

func (s *Sweeper) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	report, err := s.sweeper.SweepExpired(ctx)
	if err != nil {
		s.log.Error("expiry sweep failed", zap.Error(err))
		return
	}

	s.log.Debug("expiry sweep tick",
		zap.Int("scanned", report.Scanned),
		zap.Int("restored", report.Restored),
		zap.Int("failed", report.Failed),
	)
}

func (s *Sweeper) Start() {
	s.cron.Start()
	s.log.Info("expiry sweeper started")
}

// Stop waits for a running sweep to finish or ctx to expire.
func (s *Sweeper) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("expiry sweeper stopped")
}

type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
