package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

// PoliteClient enforces per-host rate limits, optional robots.txt rules, and
// polite retries. It serves search pages and redirect following.
type PoliteClient struct {
	client      *http.Client
	opts        Options
	limiters    map[string]*rate.Limiter
	robotsCache map[string]*robotstxt.RobotsData
	mu          sync.Mutex
}

func NewPoliteClient(opts Options) *PoliteClient {
	opts = opts.withDefaults()
	return &PoliteClient{
		client:      &http.Client{Timeout: opts.Timeout},
		opts:        opts,
		limiters:    map[string]*rate.Limiter{},
		robotsCache: map[string]*robotstxt.RobotsData{},
	}
}

func (p *PoliteClient) limiterFor(host string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.limiters[host]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Every(p.opts.PerHostInterval), 2)
	p.limiters[host] = l
	return l
}

// NewRequest builds an HTTP GET request with context and a safe URL defaulting to https.
func NewRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	if rawURL == "" {
		return nil, errors.New("empty url")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
}

func (p *PoliteClient) robotsFor(ctx context.Context, u *url.URL) (*robotstxt.RobotsData, error) {
	host := u.Hostname()
	p.mu.Lock()
	if data, ok := p.robotsCache[host]; ok {
		p.mu.Unlock()
		return data, nil
	}
	p.mu.Unlock()

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.opts.UserAgent)

	if err := p.limiterFor(host).Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.robotsCache[host] = data
	p.mu.Unlock()
	return data, nil
}

// Do executes the request respecting rate limits and, when enabled, robots.txt.
func (p *PoliteClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	for k, v := range p.opts.headers() {
		if req.Header.Get(k) == "" {
			req.Header[k] = v
		}
	}

	u := req.URL
	if u.Scheme == "" {
		u.Scheme = "https"
	}

	if p.opts.RespectRobots && !p.allowed(ctx, u, req.Method) {
		return nil, &FetchError{Err: fmt.Errorf("blocked by robots.txt: %s", u)}
	}

	limiter := p.limiterFor(u.Hostname())

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := p.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
			lastErr = &FetchError{Status: resp.StatusCode, Err: fmt.Errorf("retryable status %d", resp.StatusCode)}
			resp.Body.Close()
			backoff := time.Duration(500*(1<<attempt)) * time.Millisecond
			select {
			case <-time.After(backoff):
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		return resp, nil
	}

	if lastErr == nil {
		lastErr = errors.New("polite client: failed without error")
	}
	return nil, lastErr
}

// GetHTML fetches rawURL and returns the body decoded to UTF-8.
func (p *PoliteClient) GetHTML(ctx context.Context, rawURL string) (string, error) {
	req, err := NewRequest(ctx, rawURL)
	if err != nil {
		return "", err
	}
	resp, err := p.Do(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &FetchError{Status: resp.StatusCode, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, maxBodyBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("decode body: %w", err)
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(b), nil
}

// Follow requests rawURL, follows redirects, and returns the final URL.
func (p *PoliteClient) Follow(ctx context.Context, rawURL string) (string, error) {
	req, err := NewRequest(ctx, rawURL)
	if err != nil {
		return "", err
	}
	resp, err := p.Do(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 400 {
		return "", &FetchError{Status: resp.StatusCode, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.Request == nil || resp.Request.URL == nil {
		return "", errors.New("no final request url")
	}
	return resp.Request.URL.String(), nil
}

func (p *PoliteClient) allowed(ctx context.Context, u *url.URL, method string) bool {
	data, err := p.robotsFor(ctx, u)
	if err != nil {
		return true // fail open to avoid blocking everything
	}
	group := data.FindGroup(p.opts.UserAgent)
	if group == nil {
		return true
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	if !group.Test(path) {
		return false
	}
	// Disallow POST/PUT even if robots allows – we only read.
	if !strings.EqualFold(method, http.MethodGet) && !strings.EqualFold(method, http.MethodHead) {
		return false
	}
	return true
}
