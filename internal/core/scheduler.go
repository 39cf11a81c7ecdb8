package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// SchedulerService triggers runs on cron schedules. A tick that lands while
// another run is active is skipped.
type SchedulerService struct {
	runner *Runner
	cron   *cron.Cron
	parser cron.Parser
}

func NewSchedulerService(runner *Runner) *SchedulerService {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &SchedulerService{
		runner: runner,
		cron:   cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		parser: parser,
	}
}

// Schedule registers kind on spec. An empty spec is a no-op.
func (s *SchedulerService) Schedule(ctx context.Context, spec string, kind RunKind) error {
	if spec == "" {
		return nil
	}
	if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	if _, err := s.cron.AddFunc(spec, func() { s.trigger(ctx, kind) }); err != nil {
		return fmt.Errorf("add schedule %q: %w", spec, err)
	}
	slog.Info("run scheduled", "kind", kind, "schedule", spec)
	return nil
}

// Start runs the cron loop until ctx is done. With runNow the job update
// also fires once at startup.
func (s *SchedulerService) Start(ctx context.Context, runNow bool) {
	s.cron.Start()
	if runNow {
		go s.trigger(ctx, RunJobs)
	}

	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
	}()
}

func (s *SchedulerService) trigger(ctx context.Context, kind RunKind) {
	report, err := s.runner.Run(ctx, kind)
	switch {
	case errors.Is(err, ErrRunInProgress):
		slog.Info("scheduled run skipped, another run is active", "kind", kind)
	case err != nil:
		slog.Error("scheduled run failed", "kind", kind, "error", err)
	default:
		slog.Info("scheduled run finished", "kind", kind, "outcomes", len(report.Outcomes))
	}
}
