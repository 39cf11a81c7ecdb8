package store

import (
	"time"

	"github.com/baxromumarov/uni-recruit/internal/classify"
)

const (
	rosterDateLayout  = "2006-01-02"
	minuteStampLayout = "2006-01-02 15:04"
	defaultRecruitTag = "招聘/人事"
)

// Source is one institution and its recruitment entry point. An empty
// RecruitmentURL means the last refresh could not resolve one.
type Source struct {
	Name            string     `json:"name"`
	City            string     `json:"city"`
	Type            string     `json:"type"`
	RecruitmentURL  string     `json:"recruitment_url"`
	RecruitmentName string     `json:"recruitment_name"`
	LastChecked     *time.Time `json:"last_checked,omitempty"`
}

type Job struct {
	School     string            `json:"school"`
	Title      string            `json:"title"`
	URL        string            `json:"url"`
	Category   classify.Category `json:"category"`
	ObservedOn time.Time         `json:"observed_on"`
}

// Metadata carries the dataset stamps. Values keep the published text
// formats (date for the roster, minute stamp for the job list).
type Metadata struct {
	RosterUpdated     string `json:"roster_updated,omitempty"`
	RosterDescription string `json:"roster_description,omitempty"`
	JobsUpdated       string `json:"jobs_updated,omitempty"`
}

type JobFilter struct {
	Category classify.Category
	School   string
	Limit    int
	Offset   int
}

func (f JobFilter) matches(j Job) bool {
	if f.Category != "" && j.Category != f.Category {
		return false
	}
	if f.School != "" && j.School != f.School {
		return false
	}
	return true
}

func clampLimit(limit int, defaultLimit, maxLimit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
