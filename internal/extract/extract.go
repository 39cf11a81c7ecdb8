package extract

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/baxromumarov/uni-recruit/internal/classify"
	"github.com/baxromumarov/uni-recruit/internal/urlutil"
)

const (
	minTitleRunes = 2
	maxTitleRunes = 120
)

var ErrParse = errors.New("html parse failed")

// Job is one recruitment link harvested from a personnel-office page.
type Job struct {
	School     string
	Title      string
	URL        string
	Category   classify.Category
	ObservedOn time.Time
}

type Extractor struct {
	rules          classify.Rules
	filter         *urlutil.Filter
	now            func() time.Time
	requireArticle bool
}

type Option func(*Extractor)

// WithClock overrides the clock used for the observed date.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		if now != nil {
			e.now = now
		}
	}
}

// WithArticleFilter additionally drops titles that do not look like a
// concrete notice.
func WithArticleFilter(enabled bool) Option {
	return func(e *Extractor) {
		e.requireArticle = enabled
	}
}

func New(rules classify.Rules, opts ...Option) *Extractor {
	e := &Extractor{
		rules:  rules,
		filter: urlutil.NewFilter(rules),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultExtractor = New(classify.DefaultRules())

// Extract runs the default extractor over raw HTML.
func Extract(html, baseURL, school string) ([]Job, error) {
	return defaultExtractor.Extract(html, baseURL, school)
}

func (e *Extractor) Extract(html, baseURL, school string) ([]Job, error) {
	return e.ExtractReader(strings.NewReader(html), baseURL, school)
}

func (e *Extractor) ExtractReader(r io.Reader, baseURL, school string) ([]Job, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("base url %q is not absolute", baseURL)
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return e.ExtractDocument(doc, base, school), nil
}

// ExtractDocument walks every anchor in document order. The first anchor for
// a URL claims it even when its own title is later rejected.
func (e *Extractor) ExtractDocument(doc *goquery.Document, base *url.URL, school string) []Job {
	observed := dateOf(e.now())
	seen := make(map[string]struct{})
	var jobs []Job

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		text := a.Text()
		if !e.filter.Eligible(text, href, base) {
			return
		}
		resolved, err := urlutil.Resolve(href, base)
		if err != nil {
			return
		}
		full := resolved.String()
		if _, ok := seen[full]; ok {
			return
		}
		seen[full] = struct{}{}

		title := strings.TrimSpace(text)
		n := utf8.RuneCountInString(title)
		if n < minTitleRunes || n > maxTitleRunes {
			return
		}
		if e.rules.IsNavigational(title) {
			return
		}
		if e.requireArticle && !e.rules.IsArticleLike(title) {
			return
		}

		jobs = append(jobs, Job{
			School:     school,
			Title:      title,
			URL:        full,
			Category:   e.rules.Category(title, scoringForm(full)),
			ObservedOn: observed,
		})
	})

	return jobs
}

// scoringForm undoes percent-encoding so keywords in non-ASCII paths count.
func scoringForm(full string) string {
	if raw, err := url.PathUnescape(full); err == nil {
		return raw
	}
	return full
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
