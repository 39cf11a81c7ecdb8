package discovery

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/atom"

	"github.com/baxromumarov/uni-recruit/internal/observability"
	"github.com/baxromumarov/uni-recruit/internal/urlutil"
)

const defaultOfficialMarker = "官方"

var defaultRelevantTerms = []string{"人事", "招聘"}

// Follower follows a redirect link and reports where it lands.
type Follower interface {
	Follow(ctx context.Context, rawURL string) (string, error)
}

type Kind string

const (
	KindOfficial Kind = "official"
	KindFallback Kind = "fallback"
	KindNone     Kind = "none"
)

// Resolution is the outcome of scanning one results page. Kind none is a
// normal result, not an error.
type Resolution struct {
	URL            string
	Kind           Kind
	Candidates     int
	FollowFailures int
}

func (r Resolution) Found() bool {
	return r.Kind == KindOfficial || r.Kind == KindFallback
}

type Resolver struct {
	engine         SearchEngine
	follower       Follower
	officialMarker string
	relevantTerms  []string
}

type ResolverOption func(*Resolver)

func WithOfficialMarker(marker string) ResolverOption {
	return func(r *Resolver) {
		if marker != "" {
			r.officialMarker = marker
		}
	}
}

func WithRelevantTerms(terms []string) ResolverOption {
	return func(r *Resolver) {
		if len(terms) > 0 {
			r.relevantTerms = append([]string(nil), terms...)
		}
	}
}

func NewResolver(engine SearchEngine, follower Follower, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		engine:         engine,
		follower:       follower,
		officialMarker: defaultOfficialMarker,
		relevantTerms:  defaultRelevantTerms,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Engine() SearchEngine {
	return r.engine
}

// ResolveBest picks the single most authoritative destination from a results
// page. An error means the page itself could not be read.
func (r *Resolver) ResolveBest(ctx context.Context, page, subject string) (Resolution, error) {
	return r.ResolveReader(ctx, strings.NewReader(page), subject)
}

func (r *Resolver) ResolveReader(ctx context.Context, rd io.Reader, subject string) (Resolution, error) {
	doc, err := goquery.NewDocumentFromReader(rd)
	if err != nil {
		return Resolution{Kind: KindNone}, fmt.Errorf("parse results page: %w", err)
	}
	return r.ResolveDocument(ctx, doc, subject)
}

// ResolveDocument scans redirect anchors in document order. An official
// result returns at once; otherwise the first relevant result wins.
func (r *Resolver) ResolveDocument(ctx context.Context, doc *goquery.Document, subject string) (Resolution, error) {
	res := Resolution{Kind: KindNone}
	subject = strings.TrimSpace(subject)

	scope := doc.Selection
	if r.engine.ContainerID != "" {
		if c := doc.Find("#" + r.engine.ContainerID); c.Length() > 0 {
			scope = c.First()
		}
	}

	seen := make(map[string]struct{})
	var fallback string

	for _, a := range scope.Find("a[href]").Nodes {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		href := attr(a, "href")
		if !r.engine.IsRedirectLink(href) {
			continue
		}
		if _, ok := seen[href]; ok {
			continue
		}
		seen[href] = struct{}{}
		res.Candidates++

		target := r.engine.followURL(href)
		if target == "" {
			continue
		}

		anchorText := nodeText(a)
		official := strings.Contains(nodeText(nearestAncestor(a, atom.Div, atom.Table))+anchorText, r.officialMarker)
		relevant := r.isRelevant(strings.TrimSpace(anchorText), subject)
		// A follow cannot change the outcome here.
		if !official && (fallback != "" || !relevant) {
			continue
		}

		final, err := r.follower.Follow(ctx, target)
		if err != nil {
			res.FollowFailures++
			observability.IncError(observability.ErrorRedirectFollow, "discovery")
			slog.Debug("redirect follow failed", "subject", subject, "link", target, "error", err)
			continue
		}
		if r.isSelfReferential(final) {
			slog.Debug("redirect stayed on search engine", "subject", subject, "url", final)
			continue
		}

		if official {
			res.URL = final
			res.Kind = KindOfficial
			return res, nil
		}
		fallback = final
	}

	if fallback != "" {
		res.URL = fallback
		res.Kind = KindFallback
	}
	return res, nil
}

func (r *Resolver) isRelevant(title, subject string) bool {
	if subject != "" && strings.Contains(title, subject) {
		return true
	}
	for _, term := range r.relevantTerms {
		if term != "" && strings.Contains(title, term) {
			return true
		}
	}
	return false
}

func (r *Resolver) isSelfReferential(final string) bool {
	u, err := url.Parse(final)
	if err != nil || u.Host == "" {
		return true
	}
	return urlutil.HostWithin(u.Hostname(), r.engine.Domain)
}
