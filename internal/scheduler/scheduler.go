package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"TrendSentinel/internal/notifier"
	"TrendSentinel/internal/recorder"
	"TrendSentinel/internal/runner"
)

// Scheduler runs the signal batch on a cron schedule and answers chat commands.
type Scheduler struct {
	Cron     *cron.Cron
	Runner   *runner.Runner
	Recorder recorder.Recorder
	Ctx      context.Context
	Log      zerolog.Logger
}

// NewScheduler creates a new Scheduler. Overlapping cron runs are skipped.
func NewScheduler(ctx context.Context, r *runner.Runner, rec recorder.Recorder, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log})),
		),
		Runner:   r,
		Recorder: rec,
		Ctx:      ctx,
		Log:      log,
	}
}

// Register schedules the batch run.
func (s *Scheduler) Register(expr string) error {
	if _, err := s.Cron.AddFunc(expr, s.RunNow); err != nil {
		return fmt.Errorf("register run task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running job.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.Log.Info().Msg("scheduler stopped")
}

// RunNow executes one batch immediately (manual trigger / RUN_ON_START).
func (s *Scheduler) RunNow() {
	s.Log.Info().Msg("running signal batch")
	if _, err := s.Runner.Run(s.Ctx); err != nil {
		if errors.Is(err, runner.ErrRunInProgress) {
			s.Log.Warn().Msg("batch already running, trigger ignored")
			return
		}
		s.Log.Error().Err(err).Msg("signal batch failed")
	}
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	cmd := strings.Fields(command)
	if len(cmd) == 0 {
		return ""
	}
	switch strings.SplitN(cmd[0], "@", 2)[0] {
	case "/run":
		go s.RunNow()
		return "⏳ Signal run started, the report follows when it finishes."
	case "/signals":
		rows, err := s.Recorder.LatestSignals()
		if err != nil {
			s.Log.Error().Err(err).Msg("load latest signals")
			return "❌ Could not load signals."
		}
		return notifier.FormatStoredSignals(rows)
	default:
		return "Available commands:\n• /signals  latest forecast per ticker\n• /run  recompute all signals now"
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
