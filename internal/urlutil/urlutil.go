package urlutil

import (
	"errors"
	"net/url"
	"path"
	"strings"

	"github.com/baxromumarov/uni-recruit/internal/classify"
)

var (
	ErrEmptyHref    = errors.New("empty href")
	ErrNotNavigable = errors.New("href is not a navigable link")
	ErrNotAbsolute  = errors.New("resolved url is not absolute")
	ErrNoBaseURL    = errors.New("base url is required")
)

// Attachments, not postings.
var blockedExtensions = map[string]struct{}{
	".pdf":  {},
	".doc":  {},
	".docx": {},
	".xls":  {},
	".xlsx": {},
	".ppt":  {},
	".pptx": {},
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".bmp":  {},
	".zip":  {},
	".rar":  {},
	".7z":   {},
}

var nonNavigablePrefixes = []string{"#", "javascript:", "mailto:", "tel:"}

// Filter pre-screens anchors before they reach the classifier.
type Filter struct {
	rules classify.Rules
}

func NewFilter(rules classify.Rules) *Filter {
	return &Filter{rules: rules}
}

// Eligible reports whether an anchor may be a recruitment posting. It does
// not assign a category.
func (f *Filter) Eligible(text, href string, base *url.URL) bool {
	resolved, err := Resolve(href, base)
	if err != nil {
		return false
	}
	if IsAttachment(resolved) {
		return false
	}
	return f.rules.HasRecruitmentTerm(strings.TrimSpace(text) + " " + href)
}

// Resolve turns href into an absolute URL relative to base.
func Resolve(href string, base *url.URL) (*url.URL, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return nil, ErrEmptyHref
	}
	lower := strings.ToLower(href)
	for _, p := range nonNavigablePrefixes {
		if strings.HasPrefix(lower, p) {
			return nil, ErrNotNavigable
		}
	}
	if base == nil {
		return nil, ErrNoBaseURL
	}
	u, err := url.Parse(href)
	if err != nil {
		return nil, err
	}
	resolved := base.ResolveReference(u)
	if resolved.Scheme == "" || resolved.Host == "" {
		return nil, ErrNotAbsolute
	}
	return resolved, nil
}

// IsAttachment reports whether the URL path ends in a blocked document,
// image or archive extension.
func IsAttachment(u *url.URL) bool {
	if u == nil {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if ext == "" {
		return false
	}
	_, ok := blockedExtensions[ext]
	return ok
}

// IsHTTP reports whether raw is an absolute http(s) URL.
func IsHTTP(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// HostWithin reports whether host equals domain or is one of its subdomains.
func HostWithin(host, domain string) bool {
	h := normalizeHost(host)
	d := normalizeHost(domain)
	if h == "" || d == "" {
		return false
	}
	return h == d || strings.HasSuffix(h, "."+d)
}

func normalizeHost(host string) string {
	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "www.")
	return host
}
