package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/baxromumarov/uni-recruit/internal/extract"
	"github.com/baxromumarov/uni-recruit/internal/httpx"
)

func TestClassifyFetchError(t *testing.T) {
	assert.Equal(t, ErrorUnknown, ClassifyFetchError(nil))
	assert.Equal(t, ErrorRateLimit, ClassifyFetchError(&httpx.FetchError{Status: http.StatusTooManyRequests}))
	assert.Equal(t, ErrorNetwork, ClassifyFetchError(fmt.Errorf("wrap: %w", &httpx.FetchError{Status: 502})))
	assert.Equal(t, ErrorNetwork, ClassifyFetchError(context.DeadlineExceeded))
	assert.Equal(t, ErrorUnknown, ClassifyFetchError(errors.New("boom")))
}

func TestClassifyPageError(t *testing.T) {
	assert.Equal(t, ErrorParsing, ClassifyPageError(fmt.Errorf("%w: bad", extract.ErrParse)))
	assert.Equal(t, ErrorParsing, ClassifyPageError(errors.New("parse base url: bad")))
	assert.Equal(t, ErrorNetwork, ClassifyPageError(&httpx.FetchError{Status: 404}))
	assert.Equal(t, ErrorNetwork, ClassifyPageError(errors.New("connection reset")))
}

func TestSnapshot(t *testing.T) {
	before := Snapshot()

	IncPagesFetched("jobs")
	IncPagesFetched("sources")
	IncPagesFetched("")
	AddJobsExtracted("teaching", 3)
	AddJobsExtracted("teaching", 0)
	IncURLResolved()
	IncURLCleared()
	IncError(ErrorNetwork, "jobs")
	ObserveFetchDuration("jobs", 200*time.Millisecond)
	MarkRun("jobs", time.Date(2024, 5, 20, 6, 0, 0, 0, time.UTC))

	after := Snapshot()
	assert.Equal(t, before.PagesFetched+3, after.PagesFetched)
	assert.Equal(t, before.PagesByComponent["jobs"]+1, after.PagesByComponent["jobs"])
	assert.Equal(t, before.PagesByComponent["sources"]+1, after.PagesByComponent["sources"])
	assert.Equal(t, before.PagesByComponent["unknown"]+1, after.PagesByComponent["unknown"])
	assert.Greater(t, after.FetchSecondsAvgBy["jobs"], 0.0)
	assert.Zero(t, after.FetchSecondsAvgBy["sources"])
	assert.Equal(t, before.JobsExtracted+3, after.JobsExtracted)
	assert.Equal(t, before.JobsByCategory["teaching"]+3, after.JobsByCategory["teaching"])
	assert.Equal(t, before.URLsResolved+1, after.URLsResolved)
	assert.Equal(t, before.URLsCleared+1, after.URLsCleared)
	assert.Equal(t, before.ErrorsTotal+1, after.ErrorsTotal)
	assert.Equal(t, before.ErrorsByComponent["jobs"]+1, after.ErrorsByComponent["jobs"])
	assert.Greater(t, after.FetchSecondsAvg, 0.0)
	assert.Equal(t, "2024-05-20T06:00:00Z", after.LastRuns["jobs"])
}
