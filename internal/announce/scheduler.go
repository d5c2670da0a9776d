package announce

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pydawan/pydabot/internal/logger"
	"github.com/sirupsen/logrus"
)

var (
	// ErrAlreadyScheduled is returned by Start while a tick is already scheduled
	ErrAlreadyScheduled = errors.New("announcement tick already scheduled")
	// ErrNotScheduled is returned by Stop when nothing is scheduled
	ErrNotScheduled = errors.New("announcement tick not scheduled")
)

// Task is run on every tick
type Task interface {
	Run() error
}

// Scheduler runs a Task periodically on its own goroutine. At most one schedule is
// active at a time.
type Scheduler struct {
	task Task

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates an idle scheduler for task
func NewScheduler(task Task) *Scheduler {
	return &Scheduler{task: task}
}

// Start runs the task after delay and then every period until Stop or ctx is cancelled
func (s *Scheduler) Start(ctx context.Context, delay, period time.Duration) error {
	if period <= 0 {
		return fmt.Errorf("announcement period must be positive, got %v", period)
	}
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		select {
		case <-s.done:
			// previous schedule ended with its context
		default:
			return ErrAlreadyScheduled
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	logger.WithFields(logrus.Fields{
		"delay":  delay.String(),
		"period": period.String(),
	}).Info("announcement-scheduler-started")

	go s.loop(ctx, delay, period, done)
	return nil
}

// Stop cancels the schedule and waits for an in-flight tick to finish
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if done == nil {
		return ErrNotScheduled
	}

	cancel()
	<-done
	logger.Info("announcement-scheduler-stopped")
	return nil
}

// Scheduled reports whether a schedule is active
func (s *Scheduler) Scheduled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *Scheduler) loop(ctx context.Context, delay, period time.Duration, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}
	s.tick()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("announcement-tick-panic-recovered")
		}
	}()

	err := s.task.Run()
	switch {
	case err == nil:
	case errors.Is(err, ErrNoAnnouncementsAvailable):
		logger.Debug("announcement-tick-skipped-empty-pool")
	default:
		logger.WithField("error", err).Warn("announcement-tick-failed")
	}
}
