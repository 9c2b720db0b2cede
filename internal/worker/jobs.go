package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}

// Jobs runs named periodic jobs on a cron schedule.
type Jobs struct {
	cron    *cron.Cron
	logger  *zap.Logger
	timeout time.Duration
}

// NewJobs creates an idle job runner. Panicking jobs are recovered and logged.
func NewJobs(logger *zap.Logger, timeout time.Duration) *Jobs {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	cl := cronLogger{sugar: logger.Sugar()}
	return &Jobs{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		logger:  logger,
		timeout: timeout,
	}
}

// Add registers task under a standard cron spec or descriptor such as "@every 1m".
func (j *Jobs) Add(spec, name string, task Task) error {
	_, err := j.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		defer cancel()
		if err := task(ctx); err != nil {
			j.logger.Warn("job failed", zap.String("job", name), zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", name, err)
	}
	return nil
}

// Len returns the number of registered jobs.
func (j *Jobs) Len() int {
	return len(j.cron.Entries())
}

// Start begins running jobs in the background.
func (j *Jobs) Start() {
	j.cron.Start()
}

// Stop halts the scheduler and waits for running jobs until ctx ends.
func (j *Jobs) Stop(ctx context.Context) {
	done := j.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
