package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/baxromumarov/uni-recruit/internal/classify"
)

// FileStore keeps the roster and the job list as two JSON documents, the
// layout consumed by the static job board.
type FileStore struct {
	universitiesPath string
	jobsPath         string
	lock             *flock.Flock
}

type rosterFile struct {
	Updated      string             `json:"updated,omitempty"`
	Description  string             `json:"description,omitempty"`
	Universities []universityRecord `json:"universities"`
}

type universityRecord struct {
	Name            string `json:"name"`
	City            string `json:"city,omitempty"`
	Type            string `json:"type,omitempty"`
	RecruitmentURL  string `json:"recruitment_url"`
	RecruitmentName string `json:"recruitment_name,omitempty"`
}

type jobsFile struct {
	LastUpdated string         `json:"last_updated"`
	Jobs        []jobRecord    `json:"jobs"`
	Sources     []sourceRecord `json:"sources"`
}

type jobRecord struct {
	School    string `json:"school"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Type      string `json:"type"`
	FetchedAt string `json:"fetched_at"`
}

type sourceRecord struct {
	Name            string `json:"name"`
	City            string `json:"city"`
	Type            string `json:"type"`
	RecruitmentURL  string `json:"recruitment_url"`
	RecruitmentName string `json:"recruitment_name"`
	LastChecked     string `json:"last_checked"`
}

func NewFileStore(universitiesPath, jobsPath string) *FileStore {
	return &FileStore{
		universitiesPath: universitiesPath,
		jobsPath:         jobsPath,
		lock:             flock.New(filepath.Join(filepath.Dir(jobsPath), ".uni-recruit.lock")),
	}
}

func (s *FileStore) Close() error {
	return s.lock.Close()
}

func (s *FileStore) ListUniversities(ctx context.Context) ([]Source, error) {
	var roster rosterFile
	err := s.withReadLock(ctx, func() error {
		return readJSON(s.universitiesPath, &roster)
	})
	if err != nil {
		return nil, fmt.Errorf("load universities: %w", err)
	}

	out := make([]Source, 0, len(roster.Universities))
	for _, u := range roster.Universities {
		out = append(out, u.source())
	}
	return out, nil
}

func (s *FileStore) SaveUniversities(ctx context.Context, sources []Source, description string, at time.Time) error {
	return s.withWriteLock(ctx, func() error {
		var roster rosterFile
		if err := readJSON(s.universitiesPath, &roster); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load universities: %w", err)
		}

		index := make(map[string]int, len(roster.Universities))
		for i, u := range roster.Universities {
			index[u.Name] = i
		}
		for _, src := range sources {
			rec := universityRecordOf(src)
			if i, ok := index[src.Name]; ok {
				roster.Universities[i] = rec
				continue
			}
			index[src.Name] = len(roster.Universities)
			roster.Universities = append(roster.Universities, rec)
		}

		roster.Updated = at.Format(rosterDateLayout)
		roster.Description = description
		return writeJSONAtomic(s.universitiesPath, roster)
	})
}

func (s *FileStore) ReplaceJobs(ctx context.Context, jobs []Job, sources []Source, at time.Time) error {
	checked := at.Format(minuteStampLayout)

	doc := jobsFile{
		LastUpdated: checked,
		Jobs:        make([]jobRecord, 0, len(jobs)),
		Sources:     make([]sourceRecord, 0, len(sources)),
	}
	for _, j := range jobs {
		doc.Jobs = append(doc.Jobs, jobRecord{
			School:    j.School,
			Title:     j.Title,
			URL:       j.URL,
			Type:      j.Category.Label(),
			FetchedAt: j.ObservedOn.Format(rosterDateLayout),
		})
	}
	for _, src := range sources {
		doc.Sources = append(doc.Sources, sourceRecord{
			Name:            src.Name,
			City:            src.City,
			Type:            src.Type,
			RecruitmentURL:  src.RecruitmentURL,
			RecruitmentName: recruitmentName(src),
			LastChecked:     checked,
		})
	}

	return s.withWriteLock(ctx, func() error {
		return writeJSONAtomic(s.jobsPath, doc)
	})
}

func (s *FileStore) ListJobs(ctx context.Context, f JobFilter) ([]Job, int, error) {
	doc, err := s.loadJobs(ctx)
	if err != nil {
		return nil, 0, err
	}

	var matched []Job
	for _, rec := range doc.Jobs {
		j := rec.job()
		if f.matches(j) {
			matched = append(matched, j)
		}
	}
	return page(matched, clampLimit(f.Limit, 50, 500), f.Offset), len(matched), nil
}

// ListSources returns the roster with last-checked stamps taken from the
// latest job run.
func (s *FileStore) ListSources(ctx context.Context, limit, offset int) ([]Source, int, error) {
	roster, err := s.ListUniversities(ctx)
	if err != nil {
		return nil, 0, err
	}
	doc, err := s.loadJobs(ctx)
	if err != nil {
		return nil, 0, err
	}

	checked := make(map[string]*time.Time, len(doc.Sources))
	for _, rec := range doc.Sources {
		if t, err := time.ParseInLocation(minuteStampLayout, rec.LastChecked, time.Local); err == nil {
			checked[rec.Name] = &t
		}
	}
	for i := range roster {
		roster[i].LastChecked = checked[roster[i].Name]
	}
	return page(roster, clampLimit(limit, 50, 500), offset), len(roster), nil
}

func (s *FileStore) Metadata(ctx context.Context) (Metadata, error) {
	var (
		roster rosterFile
		m      Metadata
	)
	err := s.withReadLock(ctx, func() error {
		return readJSON(s.universitiesPath, &roster)
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return m, fmt.Errorf("load universities: %w", err)
	}
	doc, err := s.loadJobs(ctx)
	if err != nil {
		return m, err
	}
	m.RosterUpdated = roster.Updated
	m.RosterDescription = roster.Description
	m.JobsUpdated = doc.LastUpdated
	return m, nil
}

// loadJobs treats a missing job file as an empty dataset.
func (s *FileStore) loadJobs(ctx context.Context) (jobsFile, error) {
	var doc jobsFile
	err := s.withReadLock(ctx, func() error {
		return readJSON(s.jobsPath, &doc)
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return doc, fmt.Errorf("load jobs: %w", err)
	}
	return doc, nil
}

func (s *FileStore) withReadLock(ctx context.Context, fn func() error) error {
	ok, err := s.lock.TryRLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("acquire read lock: %w", err)
	}
	if !ok {
		return errors.New("acquire read lock: not acquired")
	}
	defer s.lock.Unlock()
	return fn()
}

func (s *FileStore) withWriteLock(ctx context.Context, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(s.jobsPath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	ok, err := s.lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("acquire write lock: %w", err)
	}
	if !ok {
		return errors.New("acquire write lock: not acquired")
	}
	defer s.lock.Unlock()
	return fn()
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeJSONAtomic writes through a temp file in the same directory and
// renames it over path.
func writeJSONAtomic(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (u universityRecord) source() Source {
	return Source{
		Name:            u.Name,
		City:            u.City,
		Type:            u.Type,
		RecruitmentURL:  u.RecruitmentURL,
		RecruitmentName: u.RecruitmentName,
	}
}

func universityRecordOf(src Source) universityRecord {
	return universityRecord{
		Name:            src.Name,
		City:            src.City,
		Type:            src.Type,
		RecruitmentURL:  src.RecruitmentURL,
		RecruitmentName: src.RecruitmentName,
	}
}

func (r jobRecord) job() Job {
	c, ok := classify.ParseCategory(r.Type)
	if !ok {
		c = classify.Other
	}
	observed, _ := time.ParseInLocation(rosterDateLayout, r.FetchedAt, time.Local)
	return Job{
		School:     r.School,
		Title:      r.Title,
		URL:        r.URL,
		Category:   c,
		ObservedOn: observed,
	}
}
