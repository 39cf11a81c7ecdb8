package httpx

import (
	"net/http"
	"time"
)

// BrowserUserAgent is sent by default; several university portals reject
// obvious bot identities.
const BrowserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 8 << 20
)

type Options struct {
	UserAgent      string
	AcceptLanguage string
	Timeout        time.Duration
	// PerHostInterval is the minimum spacing between requests to one host.
	PerHostInterval time.Duration
	RespectRobots   bool
}

func (o Options) withDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = BrowserUserAgent
	}
	if o.AcceptLanguage == "" {
		o.AcceptLanguage = "zh-CN,zh;q=0.9,en;q=0.8"
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.PerHostInterval <= 0 {
		o.PerHostInterval = time.Second
	}
	return o
}

func (o Options) headers() http.Header {
	h := http.Header{}
	h.Set("User-Agent", o.UserAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	h.Set("Accept-Language", o.AcceptLanguage)
	return h
}
