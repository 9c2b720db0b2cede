package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Task is a unit of deferred work.
type Task func(ctx context.Context) error

// Scheduler runs one-shot tasks after a delay.
type Scheduler interface {
	// After schedules task to run once after delay and returns its id.
	After(delay time.Duration, name string, task Task) string
}

// TimerScheduler runs tasks on time.AfterFunc timers. Pending tasks live only
// in memory and are lost when the process exits.
type TimerScheduler struct {
	logger  *zap.Logger
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

// NewTimerScheduler creates a scheduler; each task gets timeout to finish.
func NewTimerScheduler(logger *zap.Logger, timeout time.Duration) *TimerScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TimerScheduler{
		logger:  logger,
		timeout: timeout,
		pending: make(map[string]*time.Timer),
	}
}

func (s *TimerScheduler) After(delay time.Duration, name string, task Task) string {
	id := uuid.NewString()
	s.wg.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[id] = time.AfterFunc(delay, func() {
		defer s.wg.Done()
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		s.run(id, name, task)
	})
	s.logger.Debug("task scheduled", zap.String("task_id", id), zap.String("task", name), zap.Duration("delay", delay))
	return id
}

func (s *TimerScheduler) run(id, name string, task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task panicked", zap.String("task_id", id), zap.String("task", name), zap.Any("panic", r))
		}
	}()

	started := time.Now()
	if err := task(ctx); err != nil {
		s.logger.Warn("task failed", zap.String("task_id", id), zap.String("task", name), zap.Error(err))
		return
	}
	s.logger.Debug("task done", zap.String("task_id", id), zap.String("task", name), zap.Duration("took", time.Since(started)))
}

// Pending returns the number of tasks that have not fired yet.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stop cancels every pending task and waits for running ones until ctx ends.
func (s *TimerScheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	for id, timer := range s.pending {
		if timer.Stop() {
			s.wg.Done()
			s.logger.Info("pending task dropped", zap.String("task_id", id))
		}
		delete(s.pending, id)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
