package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/baxromumarov/uni-recruit/internal/extract"
	"github.com/baxromumarov/uni-recruit/internal/observability"
	"github.com/baxromumarov/uni-recruit/internal/store"
	"github.com/baxromumarov/uni-recruit/internal/urlutil"
)

// PageFetcher downloads a recruitment page as decoded HTML.
type PageFetcher interface {
	FetchHTML(ctx context.Context, rawURL string) (string, error)
}

// JobUpdater rebuilds the job list from every institution's recruitment page.
type JobUpdater struct {
	repo      Repository
	fetcher   PageFetcher
	extractor *extract.Extractor
	delay     time.Duration
	now       func() time.Time
	progress  ProgressFunc
}

type UpdaterOption func(*JobUpdater)

func WithUpdaterDelay(d time.Duration) UpdaterOption {
	return func(u *JobUpdater) { u.delay = d }
}

func WithUpdaterClock(now func() time.Time) UpdaterOption {
	return func(u *JobUpdater) {
		if now != nil {
			u.now = now
		}
	}
}

func WithUpdaterProgress(fn ProgressFunc) UpdaterOption {
	return func(u *JobUpdater) { u.progress = fn }
}

func NewJobUpdater(repo Repository, fetcher PageFetcher, extractor *extract.Extractor, opts ...UpdaterOption) *JobUpdater {
	u := &JobUpdater{
		repo:      repo,
		fetcher:   fetcher,
		extractor: extractor,
		delay:     1500 * time.Millisecond,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Run visits institutions one at a time and replaces the stored job list.
// A failing institution is recorded in the report and the run continues;
// a canceled context stops the run without writing anything.
func (u *JobUpdater) Run(ctx context.Context) (RunReport, error) {
	report := RunReport{Kind: RunJobs, StartedAt: u.now()}

	universities, err := u.repo.ListUniversities(ctx)
	if err != nil {
		observability.IncError(observability.ErrorStore, string(RunJobs))
		return report, fmt.Errorf("load universities: %w", err)
	}
	slog.Info("job update started", "universities", len(universities))

	sources := make([]store.Source, len(universities))
	copy(sources, universities)

	pacer := newPacer(u.delay)
	var all []store.Job

	for i, uni := range universities {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		o := u.visit(ctx, pacer, uni)
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		all = append(all, o.jobs...)
		report.Outcomes = append(report.Outcomes, o.Outcome)
		if u.progress != nil {
			u.progress(i+1, len(universities), o.Outcome)
		}
	}

	report.Jobs = len(all)
	report.FinishedAt = u.now()
	if err := u.repo.ReplaceJobs(ctx, all, sources, report.FinishedAt); err != nil {
		observability.IncError(observability.ErrorStore, string(RunJobs))
		return report, fmt.Errorf("save jobs: %w", err)
	}
	observability.MarkRun(string(RunJobs), report.FinishedAt)

	slog.Info("job update finished",
		"jobs", report.Jobs,
		"ok", report.Count(StatusOK),
		"skipped", report.Count(StatusSkipped),
		"fetch_failed", report.Count(StatusFetchFailed),
		"parse_failed", report.Count(StatusParseFailed),
	)
	return report, nil
}

type visitResult struct {
	Outcome
	jobs []store.Job
}

func (u *JobUpdater) visit(ctx context.Context, pacer *rate.Limiter, uni store.Source) visitResult {
	pageURL := strings.TrimSpace(uni.RecruitmentURL)
	res := visitResult{Outcome: Outcome{Name: uni.Name, URL: pageURL}}

	if !urlutil.IsHTTP(pageURL) {
		res.Status = StatusSkipped
		return res
	}

	if err := pacer.Wait(ctx); err != nil {
		res.Status = StatusFetchFailed
		res.Error = err.Error()
		return res
	}

	start := time.Now()
	page, err := u.fetcher.FetchHTML(ctx, pageURL)
	observability.ObserveFetchDuration(string(RunJobs), time.Since(start))
	if err != nil {
		observability.IncError(observability.ClassifyFetchError(err), string(RunJobs))
		slog.Warn("fetch failed", "school", uni.Name, "url", pageURL, "error", err)
		res.Status = StatusFetchFailed
		res.Error = err.Error()
		return res
	}
	observability.IncPagesFetched(string(RunJobs))

	found, err := u.extractor.Extract(page, pageURL, uni.Name)
	if err != nil {
		observability.IncError(observability.ClassifyPageError(err), string(RunJobs))
		slog.Warn("extract failed", "school", uni.Name, "url", pageURL, "error", err)
		res.Status = StatusParseFailed
		res.Error = err.Error()
		return res
	}

	perCategory := make(map[string]int)
	for _, j := range found {
		res.jobs = append(res.jobs, store.Job{
			School:     j.School,
			Title:      j.Title,
			URL:        j.URL,
			Category:   j.Category,
			ObservedOn: j.ObservedOn,
		})
		perCategory[string(j.Category)]++
	}
	for cat, n := range perCategory {
		observability.AddJobsExtracted(cat, n)
	}

	res.Status = StatusOK
	res.Jobs = len(res.jobs)
	if res.Jobs > 0 {
		slog.Info("jobs found", "school", uni.Name, "count", res.Jobs)
	}
	return res
}
