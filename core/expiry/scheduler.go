package expiry

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/maktaba/core"
)

// DefaultSchedule runs the sweep every day at midnight.
const DefaultSchedule = "0 0 * * *"

type Sweeper interface {
	Run(ctx context.Context, today core.Date) (Result, error)
}

// Scheduler triggers the sweep on a cron schedule. A failed run is logged; the next tick runs regardless.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	today   core.Clock
	timeout time.Duration
	logger  core.Logger
}

func NewScheduler(sweeper Sweeper, today core.Clock, loc *time.Location, logger core.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		sweeper: sweeper,
		today:   today,
		timeout: 10 * time.Minute,
		logger:  logger,
	}
}

// Schedule registers the sweep with a standard 5 fields cron spec.
func (s *Scheduler) Schedule(spec string) error {
	if spec == "" {
		spec = DefaultSchedule
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return errors.Wrapf(err, "scheduling expiration sweep %q", spec)
	}
	s.logger.Info(fmt.Sprintf("expiration sweep scheduled: %q", spec))
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler; the returned context is done once a running sweep has completed.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	today := s.today()
	res, err := s.sweeper.Run(ctx, today)
	if err != nil {
		s.logger.Error(fmt.Sprintf("expiration sweep of %s failed: %v", today, err), err)
		return
	}
	s.logger.Info(fmt.Sprintf("expiration sweep of %s: %d student(s) processed", today, res.ProcessedCount))
}

// cronLogger adapts core.Logger to cron.Logger.
type cronLogger struct {
	logger core.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(fmt.Sprintf("cron: %s: %v", msg, err), append([]interface{}{err}, keysAndValues...)...)
}
