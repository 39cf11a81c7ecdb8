package core

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrRunnerClosed is returned once Shutdown has drained the runner.
var ErrRunnerClosed = errors.New("runner is shut down")

type runFunc func(ctx context.Context) (RunReport, error)

// Runner serializes job updates and URL refreshes. Only one run of either
// kind may be active at a time.
type Runner struct {
	mu      sync.Mutex
	jobs    runFunc
	sources runFunc

	closeOnce sync.Once
	drained   chan struct{}

	stateMu sync.RWMutex
	closed  bool
	active  RunKind
	last    map[RunKind]RunReport
	wg      sync.WaitGroup
}

func NewRunner(jobs *JobUpdater, sources *URLRefresher) *Runner {
	r := &Runner{last: make(map[RunKind]RunReport)}
	if jobs != nil {
		r.jobs = jobs.Run
	}
	if sources != nil {
		r.sources = sources.Run
	}
	return r
}

// Run executes kind synchronously, or returns ErrRunInProgress.
func (r *Runner) Run(ctx context.Context, kind RunKind) (RunReport, error) {
	fn, err := r.lookup(kind)
	if err != nil {
		return RunReport{Kind: kind}, err
	}
	if !r.mu.TryLock() {
		return RunReport{Kind: kind}, r.busyErr()
	}
	defer r.mu.Unlock()
	return r.execute(ctx, kind, fn)
}

// Start launches kind in the background. The lock is taken before Start
// returns so a second trigger is refused immediately.
func (r *Runner) Start(ctx context.Context, kind RunKind) error {
	fn, err := r.lookup(kind)
	if err != nil {
		return err
	}
	if !r.mu.TryLock() {
		return r.busyErr()
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.mu.Unlock()
		if _, err := r.execute(ctx, kind, fn); err != nil {
			slog.Error("background run failed", "kind", kind, "error", err)
		}
	}()
	return nil
}

// Wait blocks until background runs started so far have returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown waits for the active run, if any, to return and refuses every
// later run with ErrRunnerClosed. It gives up when ctx is done.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.closeOnce.Do(func() {
		r.drained = make(chan struct{})
		go func() {
			r.mu.Lock()
			r.stateMu.Lock()
			r.closed = true
			r.stateMu.Unlock()
			close(r.drained)
		}()
	})

	select {
	case <-r.drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) busyErr() error {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	if r.closed {
		return ErrRunnerClosed
	}
	return ErrRunInProgress
}

// Active reports the kind of the run in progress, or "".
func (r *Runner) Active() RunKind {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.active
}

// LastReport returns the report of the most recent finished run of kind.
func (r *Runner) LastReport(kind RunKind) (RunReport, bool) {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	rep, ok := r.last[kind]
	return rep, ok
}

func (r *Runner) execute(ctx context.Context, kind RunKind, fn runFunc) (RunReport, error) {
	r.setActive(kind)
	defer r.setActive("")

	report, err := fn(ctx)
	if err == nil {
		r.stateMu.Lock()
		r.last[kind] = report
		r.stateMu.Unlock()
	}
	return report, err
}

func (r *Runner) setActive(kind RunKind) {
	r.stateMu.Lock()
	r.active = kind
	r.stateMu.Unlock()
}

func (r *Runner) lookup(kind RunKind) (runFunc, error) {
	var fn runFunc
	switch kind {
	case RunJobs:
		fn = r.jobs
	case RunSources:
		fn = r.sources
	}
	if fn == nil {
		return nil, &UnknownRunError{Kind: kind}
	}
	return fn, nil
}

type UnknownRunError struct {
	Kind RunKind
}

func (e *UnknownRunError) Error() string {
	return "no runner configured for " + string(e.Kind)
}
