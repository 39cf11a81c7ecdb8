package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

type StatsSnapshot struct {
	PagesFetched      uint64            `json:"pages_fetched"`
	JobsExtracted     uint64            `json:"jobs_extracted"`
	URLsResolved      uint64            `json:"urls_resolved"`
	URLsCleared       uint64            `json:"urls_cleared"`
	ErrorsTotal       uint64            `json:"errors_total"`
	FetchSecondsAvg   float64           `json:"fetch_seconds_avg"`
	PagesByComponent  map[string]uint64 `json:"pages_by_component,omitempty"`
	JobsByCategory    map[string]uint64 `json:"jobs_by_category,omitempty"`
	ErrorsByType      map[string]uint64 `json:"errors_by_type,omitempty"`
	ErrorsByComponent map[string]uint64 `json:"errors_by_component,omitempty"`
	LastRuns          map[string]string `json:"last_runs,omitempty"`

	FetchSecondsAvgBy map[string]float64 `json:"fetch_seconds_avg_by_component,omitempty"`
}

var (
	pagesFetched  uint64
	jobsExtracted uint64
	urlsResolved  uint64
	urlsCleared   uint64
	errorsTotal   uint64

	fetchCount uint64
	fetchNanos uint64

	statsMu           sync.Mutex
	jobsByCategory    = map[string]uint64{}
	pagesByComponent  = map[string]uint64{}
	fetchCountBy      = map[string]uint64{}
	fetchNanosBy      = map[string]uint64{}
	errorsByType      = map[string]uint64{}
	errorsByComponent = map[string]uint64{}
	lastRuns          = map[string]time.Time{}
)

func IncPagesFetched(component string) {
	atomic.AddUint64(&pagesFetched, 1)
	statsMu.Lock()
	pagesByComponent[componentKey(component)]++
	statsMu.Unlock()
}

func AddJobsExtracted(category string, n int) {
	if n <= 0 {
		return
	}
	atomic.AddUint64(&jobsExtracted, uint64(n))
	statsMu.Lock()
	jobsByCategory[category] += uint64(n)
	statsMu.Unlock()
}

func IncURLResolved() {
	atomic.AddUint64(&urlsResolved, 1)
}

func IncURLCleared() {
	atomic.AddUint64(&urlsCleared, 1)
}

func ObserveFetchDuration(component string, d time.Duration) {
	if d <= 0 {
		return
	}
	atomic.AddUint64(&fetchCount, 1)
	atomic.AddUint64(&fetchNanos, uint64(d.Nanoseconds()))
	key := componentKey(component)
	statsMu.Lock()
	fetchCountBy[key]++
	fetchNanosBy[key] += uint64(d.Nanoseconds())
	statsMu.Unlock()
}

func IncError(errType, component string) {
	if errType == "" {
		errType = "unknown"
	}
	atomic.AddUint64(&errorsTotal, 1)
	statsMu.Lock()
	errorsByType[errType]++
	errorsByComponent[componentKey(component)]++
	statsMu.Unlock()
}

// MarkRun records when a run of the given kind finished.
func MarkRun(kind string, at time.Time) {
	statsMu.Lock()
	lastRuns[kind] = at
	statsMu.Unlock()
}

func Snapshot() StatsSnapshot {
	statsMu.Lock()
	categoryCopy := copyMap(jobsByCategory)
	errorsTypeCopy := copyMap(errorsByType)
	errorsComponentCopy := copyMap(errorsByComponent)
	pagesCopy := copyMap(pagesByComponent)
	avgBy := make(map[string]float64, len(fetchCountBy))
	for k, n := range fetchCountBy {
		if n > 0 {
			avgBy[k] = float64(fetchNanosBy[k]) / float64(n) / 1e9
		}
	}
	runs := make(map[string]string, len(lastRuns))
	for k, v := range lastRuns {
		runs[k] = v.Format(time.RFC3339)
	}
	statsMu.Unlock()

	count := atomic.LoadUint64(&fetchCount)
	avg := 0.0
	if count > 0 {
		avg = float64(atomic.LoadUint64(&fetchNanos)) / float64(count) / 1e9
	}

	return StatsSnapshot{
		PagesFetched:      atomic.LoadUint64(&pagesFetched),
		JobsExtracted:     atomic.LoadUint64(&jobsExtracted),
		URLsResolved:      atomic.LoadUint64(&urlsResolved),
		URLsCleared:       atomic.LoadUint64(&urlsCleared),
		ErrorsTotal:       atomic.LoadUint64(&errorsTotal),
		FetchSecondsAvg:   avg,
		PagesByComponent:  pagesCopy,
		FetchSecondsAvgBy: avgBy,
		JobsByCategory:    categoryCopy,
		ErrorsByType:      errorsTypeCopy,
		ErrorsByComponent: errorsComponentCopy,
		LastRuns:          runs,
	}
}

func componentKey(component string) string {
	if component == "" {
		return "unknown"
	}
	return component
}

func copyMap(src map[string]uint64) map[string]uint64 {
	if len(src) == 0 {
		return map[string]uint64{}
	}
	out := make(map[string]uint64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
