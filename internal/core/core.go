package core

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/baxromumarov/uni-recruit/internal/store"
)

// ErrRunInProgress is returned when a run is triggered while another one is
// still active.
var ErrRunInProgress = errors.New("a run is already in progress")

type RunKind string

const (
	RunJobs    RunKind = "jobs"
	RunSources RunKind = "sources"
)

// Repository is the storage both runs read from and write to.
type Repository interface {
	ListUniversities(ctx context.Context) ([]store.Source, error)
	SaveUniversities(ctx context.Context, sources []store.Source, description string, at time.Time) error
	ReplaceJobs(ctx context.Context, jobs []store.Job, sources []store.Source, at time.Time) error
}

type Status string

const (
	StatusOK          Status = "ok"
	StatusSkipped     Status = "skipped"
	StatusFetchFailed Status = "fetch_failed"
	StatusParseFailed Status = "parse_failed"
	StatusResolved    Status = "resolved"
	StatusCleared     Status = "cleared"
)

// Outcome is what happened to one institution during a run.
type Outcome struct {
	Name   string `json:"name"`
	URL    string `json:"url,omitempty"`
	Status Status `json:"status"`
	Jobs   int    `json:"jobs,omitempty"`
	// Resolution is the resolver kind for URL refreshes.
	Resolution string `json:"resolution,omitempty"`
	Error      string `json:"error,omitempty"`
}

type RunReport struct {
	Kind       RunKind   `json:"kind"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Outcomes   []Outcome `json:"outcomes"`
	Jobs       int       `json:"jobs"`
	Resolved   int       `json:"resolved"`
	Failed     []string  `json:"failed,omitempty"`
}

// Count returns how many outcomes carry status s.
func (r RunReport) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// ProgressFunc is told about each institution as soon as it is done.
type ProgressFunc func(index, total int, o Outcome)

// newPacer spaces requests by delay. The first Wait returns at once.
func newPacer(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}
