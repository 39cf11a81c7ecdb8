package discovery

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// SearchEngine describes how one engine wraps its result links.
type SearchEngine struct {
	Name string
	// Domain is the engine's own domain; results resolving back into it are
	// discarded.
	Domain      string
	SearchBase  string
	QueryParam  string
	ContainerID string
	LinkPattern *regexp.Regexp
	// RedirectParam is the only query parameter read from a result link.
	RedirectParam string
	// Target builds the URL to follow from the decoded parameter.
	Target func(decoded string) string
}

var Baidu = SearchEngine{
	Name:          "baidu",
	Domain:        "baidu.com",
	SearchBase:    "https://www.baidu.com/s",
	QueryParam:    "wd",
	ContainerID:   "content_left",
	LinkPattern:   regexp.MustCompile(`baidu\.com/link\?url=`),
	RedirectParam: "url",
	// eqid and friends are dropped and the token is not re-encoded.
	Target: func(decoded string) string {
		return "https://www.baidu.com/link?url=" + decoded
	},
}

// DuckDuckGo rewrites links as /l/?uddg=<encoded destination>.
var DuckDuckGo = SearchEngine{
	Name:          "duckduckgo",
	Domain:        "duckduckgo.com",
	SearchBase:    "https://html.duckduckgo.com/html/",
	QueryParam:    "q",
	ContainerID:   "links",
	LinkPattern:   regexp.MustCompile(`duckduckgo\.com/l/\?uddg=`),
	RedirectParam: "uddg",
	Target:        func(decoded string) string { return decoded },
}

// EngineByName looks up a built-in engine.
func EngineByName(name string) (SearchEngine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "baidu":
		return Baidu, nil
	case "duckduckgo", "ddg":
		return DuckDuckGo, nil
	default:
		return SearchEngine{}, fmt.Errorf("unknown search engine %q", name)
	}
}

// SearchURL builds the results page URL for query.
func (e SearchEngine) SearchURL(query string) string {
	return e.SearchBase + "?" + url.Values{e.QueryParam: {strings.TrimSpace(query)}}.Encode()
}

// IsRedirectLink reports whether href is one of the engine's result links.
func (e SearchEngine) IsRedirectLink(href string) bool {
	return href != "" && e.LinkPattern != nil && e.LinkPattern.MatchString(href)
}

// decodeRedirect reads only the redirect parameter from href.
func (e SearchEngine) decodeRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return u.Query().Get(e.RedirectParam)
}

// followURL returns the URL to request for a result link, or "" when the
// link carries no redirect parameter.
func (e SearchEngine) followURL(href string) string {
	decoded := e.decodeRedirect(href)
	if decoded == "" {
		return ""
	}
	if e.Target == nil {
		return decoded
	}
	return e.Target(decoded)
}
