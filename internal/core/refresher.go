package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/baxromumarov/uni-recruit/internal/discovery"
	"github.com/baxromumarov/uni-recruit/internal/observability"
)

// SearchFetcher downloads a search results page.
type SearchFetcher interface {
	GetHTML(ctx context.Context, rawURL string) (string, error)
}

// URLRefresher re-seeds each institution's recruitment URL from a web
// search for "<name> 人事 招聘".
type URLRefresher struct {
	repo        Repository
	fetcher     SearchFetcher
	resolver    *discovery.Resolver
	delay       time.Duration
	querySuffix string
	description string
	now         func() time.Time
	progress    ProgressFunc
}

type RefresherOption func(*URLRefresher)

func WithRefresherDelay(d time.Duration) RefresherOption {
	return func(r *URLRefresher) { r.delay = d }
}

func WithQuerySuffix(suffix string) RefresherOption {
	return func(r *URLRefresher) {
		if suffix != "" {
			r.querySuffix = suffix
		}
	}
}

// WithDescription sets the provenance note stamped on the roster.
func WithDescription(desc string) RefresherOption {
	return func(r *URLRefresher) {
		if desc != "" {
			r.description = desc
		}
	}
}

func WithRefresherClock(now func() time.Time) RefresherOption {
	return func(r *URLRefresher) {
		if now != nil {
			r.now = now
		}
	}
}

func WithRefresherProgress(fn ProgressFunc) RefresherOption {
	return func(r *URLRefresher) { r.progress = fn }
}

func NewURLRefresher(repo Repository, fetcher SearchFetcher, resolver *discovery.Resolver, opts ...RefresherOption) *URLRefresher {
	r := &URLRefresher{
		repo:        repo,
		fetcher:     fetcher,
		resolver:    resolver,
		delay:       1200 * time.Millisecond,
		querySuffix: "人事 招聘",
		description: "招聘页链接来自搜索「校名 人事 招聘」结果（官方或第一条人事/招聘相关）。",
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run searches for every named institution and sets or clears its
// recruitment URL. Unnamed entries are left untouched.
func (r *URLRefresher) Run(ctx context.Context) (RunReport, error) {
	report := RunReport{Kind: RunSources, StartedAt: r.now()}

	universities, err := r.repo.ListUniversities(ctx)
	if err != nil {
		observability.IncError(observability.ErrorStore, string(RunSources))
		return report, fmt.Errorf("load universities: %w", err)
	}
	slog.Info("url refresh started", "universities", len(universities), "engine", r.resolver.Engine().Name)

	pacer := newPacer(r.delay)

	for i := range universities {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		name := strings.TrimSpace(universities[i].Name)
		if name == "" {
			continue
		}

		o := r.refresh(ctx, pacer, name)
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		universities[i].RecruitmentURL = o.URL
		if o.Status == StatusResolved {
			report.Resolved++
			observability.IncURLResolved()
		} else {
			report.Failed = append(report.Failed, name)
			observability.IncURLCleared()
		}
		report.Outcomes = append(report.Outcomes, o)
		if r.progress != nil {
			r.progress(i+1, len(universities), o)
		}
	}

	report.FinishedAt = r.now()
	if err := r.repo.SaveUniversities(ctx, universities, r.description, report.FinishedAt); err != nil {
		observability.IncError(observability.ErrorStore, string(RunSources))
		return report, fmt.Errorf("save universities: %w", err)
	}
	observability.MarkRun(string(RunSources), report.FinishedAt)

	slog.Info("url refresh finished", "resolved", report.Resolved, "cleared", len(report.Failed))
	return report, nil
}

func (r *URLRefresher) refresh(ctx context.Context, pacer *rate.Limiter, name string) Outcome {
	o := Outcome{Name: name, Status: StatusCleared, Resolution: string(discovery.KindNone)}

	if err := pacer.Wait(ctx); err != nil {
		o.Error = err.Error()
		return o
	}

	searchURL := r.resolver.Engine().SearchURL(name + " " + r.querySuffix)
	start := time.Now()
	page, err := r.fetcher.GetHTML(ctx, searchURL)
	observability.ObserveFetchDuration(string(RunSources), time.Since(start))
	if err != nil {
		observability.IncError(observability.ClassifyFetchError(err), string(RunSources))
		slog.Warn("search failed, clearing url", "school", name, "error", err)
		o.Error = err.Error()
		return o
	}
	observability.IncPagesFetched(string(RunSources))

	res, err := r.resolver.ResolveBest(ctx, page, name)
	if err != nil {
		observability.IncError(observability.ErrorParsing, string(RunSources))
		slog.Warn("results page unreadable, clearing url", "school", name, "error", err)
		o.Error = err.Error()
		return o
	}
	o.Resolution = string(res.Kind)
	if !res.Found() {
		observability.IncError(observability.ErrorResolutionNone, string(RunSources))
		slog.Info("no result resolved, clearing url", "school", name, "candidates", res.Candidates)
		return o
	}

	o.Status = StatusResolved
	o.URL = res.URL
	slog.Info("recruitment url resolved", "school", name, "url", res.URL, "kind", res.Kind)
	return o
}
