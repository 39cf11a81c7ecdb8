package observability

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/baxromumarov/uni-recruit/internal/extract"
	"github.com/baxromumarov/uni-recruit/internal/httpx"
)

const (
	ErrorNetwork        = "network"
	ErrorParsing        = "parsing"
	ErrorRateLimit      = "rate_limit"
	ErrorResolutionNone = "resolution_none"
	ErrorRedirectFollow = "redirect_follow"
	ErrorStore          = "store"
	ErrorUnknown        = "unknown"
)

func ClassifyFetchError(err error) string {
	if err == nil {
		return ErrorUnknown
	}
	var fe *httpx.FetchError
	if errors.As(err, &fe) {
		switch {
		case fe.Status == http.StatusTooManyRequests:
			return ErrorRateLimit
		default:
			return ErrorNetwork
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorNetwork
	}
	return ErrorUnknown
}

// ClassifyPageError labels a failure to turn one institution's page into
// job records.
func ClassifyPageError(err error) string {
	if err == nil {
		return ErrorUnknown
	}
	if errors.Is(err, extract.ErrParse) {
		return ErrorParsing
	}
	if kind := ClassifyFetchError(err); kind != ErrorUnknown {
		return kind
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "parse") || strings.Contains(msg, "decode") {
		return ErrorParsing
	}
	return ErrorNetwork
}
