package httpx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"
)

const (
	pageAttempts     = 3
	pageBackoffBase  = 500 * time.Millisecond
	maxRetryAfter    = 30 * time.Second
	contextKeyCaller = "caller_ctx"
)

var errInvalidPageURL = errors.New("recruitment page url must be absolute http(s)")

// CollyFetcher downloads recruitment pages with Colly. Colly detects the
// page charset, so bodies come back as UTF-8 even from GBK sites.
type CollyFetcher struct {
	opts        Options
	backoffBase time.Duration

	mu    sync.Mutex
	gates map[string]*hostGate
}

// hostGate spaces requests to one host and holds it back after a 429 or 5xx.
type hostGate struct {
	limiter *rate.Limiter

	mu    sync.Mutex
	until time.Time
}

type FetchError struct {
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch error (status %d)", e.Status)
	}
	return fmt.Sprintf("fetch error (status %d): %v", e.Status, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func NewCollyFetcher(opts Options) *CollyFetcher {
	return &CollyFetcher{
		opts:        opts.withDefaults(),
		backoffBase: pageBackoffBase,
		gates:       make(map[string]*hostGate),
	}
}

type pageResult struct {
	body       string
	status     int
	retryAfter time.Duration
	err        error
}

// FetchHTML returns the page body as UTF-8 text. 429 and 5xx answers are
// retried after a growing pause or the server's Retry-After; any other
// failure returns at once as a *FetchError.
func (f *CollyFetcher) FetchHTML(ctx context.Context, rawURL string) (string, error) {
	target, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return "", &FetchError{Err: fmt.Errorf("%w: %q", errInvalidPageURL, rawURL)}
	}
	gate := f.gate(target.Hostname())

	var lastErr error
	for attempt := 0; attempt < pageAttempts; attempt++ {
		if err := gate.wait(ctx); err != nil {
			return "", err
		}

		res := f.get(ctx, target.String())
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if res.err == nil {
			return res.body, nil
		}

		lastErr = &FetchError{Status: res.status, Err: res.err}
		if !retryable(res.status) {
			return "", lastErr
		}
		pause := f.pause(attempt, res.retryAfter)
		slog.Debug("page fetch throttled", "url", target.String(), "status", res.status, "retry_in", pause)
		gate.holdOff(pause)
	}
	return "", lastErr
}

func (f *CollyFetcher) get(ctx context.Context, target string) pageResult {
	c := colly.NewCollector(
		colly.UserAgent(f.opts.UserAgent),
		colly.DetectCharset(),
	)
	c.IgnoreRobotsTxt = !f.opts.RespectRobots
	c.SetRequestTimeout(f.opts.Timeout)

	var res pageResult
	c.OnRequest(func(r *colly.Request) {
		if caller, ok := r.Ctx.GetAny(contextKeyCaller).(context.Context); ok && caller.Err() != nil {
			r.Abort()
		}
	})
	c.OnResponse(func(r *colly.Response) {
		res.status = r.StatusCode
		res.body = string(r.Body)
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			res.status = r.StatusCode
			if r.Headers != nil {
				res.retryAfter = parseRetryAfter(r.Headers.Get("Retry-After"), time.Now())
			}
		}
		res.err = err
	})

	cctx := colly.NewContext()
	cctx.Put(contextKeyCaller, ctx)
	if err := c.Request(http.MethodGet, target, nil, cctx, f.opts.headers()); err != nil && res.err == nil {
		res.err = err
	}
	if res.err == nil && res.status >= http.StatusBadRequest {
		res.err = fmt.Errorf("status %d", res.status)
	}
	return res
}

func (f *CollyFetcher) gate(host string) *hostGate {
	key := strings.TrimPrefix(strings.ToLower(host), "www.")
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.gates[key]
	if !ok {
		g = &hostGate{limiter: rate.NewLimiter(rate.Every(f.opts.PerHostInterval), 1)}
		f.gates[key] = g
	}
	return g
}

func (f *CollyFetcher) pause(attempt int, retryAfter time.Duration) time.Duration {
	backoff := f.backoffBase << attempt
	if retryAfter > backoff {
		return retryAfter
	}
	return backoff
}

func (g *hostGate) holdOff(d time.Duration) {
	next := time.Now().Add(d)
	g.mu.Lock()
	if next.After(g.until) {
		g.until = next
	}
	g.mu.Unlock()
}

func (g *hostGate) wait(ctx context.Context) error {
	g.mu.Lock()
	until := g.until
	g.mu.Unlock()

	if d := time.Until(until); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return g.limiter.Wait(ctx)
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status <= 599)
}

// parseRetryAfter reads delay-seconds or an HTTP date, capped at
// maxRetryAfter. Anything else is zero.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	var d time.Duration
	if secs, err := strconv.Atoi(v); err == nil {
		d = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(v); err == nil {
		d = at.Sub(now)
	}
	if d < 0 {
		return 0
	}
	return min(d, maxRetryAfter)
}
