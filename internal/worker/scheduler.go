package worker

import (
	"context"
	"strings"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-assistant/internal/cache"
	"github.com/spec-kit/ticket-assistant/internal/config"
)

// RosterWarmer refreshes the cached moderator roster.
type RosterWarmer interface {
	WarmRoster(ctx context.Context) error
}

// Scheduler runs periodic maintenance: the cache reconnect probe and the
// roster warm-up.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// NewScheduler registers the maintenance jobs. An empty schedule disables its job.
func NewScheduler(ctx context.Context, cfg config.CacheConfig, client *cache.Client, warmer RosterWarmer, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{logger.Sugar()}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		cron.WithLogger(cl),
	)

	if schedule := strings.TrimSpace(cfg.ProbeSchedule); schedule != "" && client != nil {
		_, err := c.AddFunc(schedule, func() {
			before := client.State()
			if before == cache.StateReady {
				return
			}
			after := client.Probe(ctx)
			if after != before {
				logger.Info("cache state changed", zap.String("from", before.String()), zap.String("to", after.String()))
			}
		})
		if err != nil {
			return nil, err
		}
	}

	if schedule := strings.TrimSpace(cfg.RosterWarmSchedule); schedule != "" && warmer != nil {
		_, err := c.AddFunc(schedule, func() {
			if err := warmer.WarmRoster(ctx); err != nil {
				logger.Warn("roster warm-up failed", zap.Error(err))
			}
		})
		if err != nil {
			return nil, err
		}
	}

	return &Scheduler{cron: c, logger: logger}, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop halts scheduling and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
