package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/robbyautoki/attio-hub/pkg/logging"
)

const (
	// DefaultCronSpec dispatches reminders once a minute
	DefaultCronSpec = "* * * * *"

	lockName = "reminder-dispatch"
	lockTTL  = 5 * time.Minute
	runLimit = 4 * time.Minute
)

// Scheduler runs the reminder dispatcher on a cron schedule, serialized
// across instances by a lock
type Scheduler struct {
	dispatcher *Dispatcher
	locker     Locker
	logger     logging.Logger
	cron       *cron.Cron
	spec       string
}

// NewScheduler creates a scheduler. An empty spec selects the default
// once-a-minute schedule; a nil locker disables cross-instance locking.
func NewScheduler(dispatcher *Dispatcher, locker Locker, logger logging.Logger, spec string) *Scheduler {
	if spec == "" {
		spec = DefaultCronSpec
	}
	if locker == nil {
		locker = NoopLocker{}
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}

	return &Scheduler{
		dispatcher: dispatcher,
		locker:     locker,
		logger:     logger,
		cron:       cron.New(),
		spec:       spec,
	}
}

// Start begins scheduled dispatch
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.runOnce); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.LogSystemEvent("scheduler_started", map[string]interface{}{"spec": s.spec})

	return nil
}

// Stop halts scheduled dispatch and waits for a running dispatch to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.LogSystemEvent("scheduler_stopped", nil)
}

// runOnce performs one locked dispatch run
func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), runLimit)
	defer cancel()

	acquired, err := s.locker.Acquire(ctx, lockName, lockTTL)
	if err != nil {
		s.logger.Error("failed to acquire dispatch lock", logging.F("error", err.Error()))
		return
	}
	if !acquired {
		s.logger.Debug("dispatch lock held elsewhere, skipping run")
		return
	}
	defer func() {
		if err := s.locker.Release(context.Background(), lockName); err != nil {
			s.logger.Warn("failed to release dispatch lock", logging.F("error", err.Error()))
		}
	}()

	result, err := s.dispatcher.Dispatch(ctx, time.Now())
	if err != nil {
		s.logger.Error("reminder dispatch failed", logging.F("error", err.Error()))
		return
	}

	if result.Sent() > 0 {
		s.logger.Info("reminder dispatch finished", logging.F("sent", result.Sent()))
	}
}
