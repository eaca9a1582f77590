package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// cronLogger routes cron's own messages to logrus.
type cronLogger struct {
	logger *logrus.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(fields(keysAndValues)).WithError(err).Error(msg)
}

func fields(kv []interface{}) logrus.Fields {
	f := logrus.Fields{"Component": "scheduler"}
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}

// Scheduler runs named periodic jobs. A job still running when its next tick
// arrives is skipped, and a panicking job is logged instead of crashing.
type Scheduler struct {
	cron   *cron.Cron
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *Scheduler {
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
	}
}

// Add schedules job under spec, e.g. "@every 5m" or "0 3 * * *".
func (s *Scheduler) Add(name, spec string, job func(ctx context.Context)) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(spec, func() {
		log := s.logger.WithFields(logrus.Fields{"Function": "Scheduler", "Job": name})
		log.Debug("Job started")
		job(context.Background())
		log.Debug("Job finished")
	})
	if err != nil {
		return 0, fmt.Errorf("failed to schedule %s job: %w", name, err)
	}
	return id, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
