package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler triggers scan cycles on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	scanner Scanner
	timeout time.Duration
	logger  *zap.Logger
}

// NewScheduler registers scanner under spec (standard five-field cron or
// descriptors like @every 1m). Each run is bounded by timeout when positive.
func NewScheduler(ctx context.Context, spec string, scanner Scanner, timeout time.Duration, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		scanner: scanner,
		timeout: timeout,
		logger:  logger.Named("scheduler"),
	}
	if _, err := s.cron.AddFunc(spec, func() { s.run(ctx) }); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start runs the schedule in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) run(ctx context.Context) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res, err := s.scanner.Scan(ctx)
	if err != nil {
		s.logger.Error("scheduled scan failed", zap.Error(err))
		return
	}
	s.logger.Info("scheduled scan finished", zap.String("status", res.String()), zap.String("state", string(res.State)))
}
