package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/baxromumarov/uni-recruit/internal/classify"
)

//go:embed schema.sql
var Schema string

const (
	metaRosterUpdated     = "roster.updated"
	metaRosterDescription = "roster.description"
	metaJobsUpdated       = "jobs.last_updated"
)

type Store struct {
	db *sql.DB
}

func NewStore(connStr string) (*Store, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &Store{db: db}, nil
}

// NewWithDB wraps an existing handle.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) RunMigrations(ctx context.Context) error {
	return s.ApplySchema(ctx, Schema)
}

func (s *Store) ApplySchema(ctx context.Context, ddl string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

func (s *Store) ListUniversities(ctx context.Context) ([]Source, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT name, city, type, recruitment_url, recruitment_name, last_checked
FROM universities
ORDER BY position, name
`)
	if err != nil {
		return nil, fmt.Errorf("list universities: %w", err)
	}
	defer rows.Close()
	return scanSources(rows)
}

// SaveUniversities upserts every entry in place and stamps the roster
// metadata. Rows missing from sources are kept.
func (s *Store) SaveUniversities(ctx context.Context, sources []Source, description string, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for i, src := range sources {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO universities (name, city, type, recruitment_url, recruitment_name, position)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (name) DO UPDATE SET
    city = EXCLUDED.city,
    type = EXCLUDED.type,
    recruitment_url = EXCLUDED.recruitment_url,
    recruitment_name = EXCLUDED.recruitment_name,
    position = EXCLUDED.position
`, src.Name, src.City, src.Type, src.RecruitmentURL, recruitmentName(src), i); err != nil {
			return fmt.Errorf("upsert university %s: %w", src.Name, err)
		}
	}

	if err := setMeta(ctx, tx, metaRosterUpdated, at.Format(rosterDateLayout)); err != nil {
		return err
	}
	if err := setMeta(ctx, tx, metaRosterDescription, description); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceJobs swaps the whole job list in one transaction and marks the
// listed sources as checked.
func (s *Store) ReplaceJobs(ctx context.Context, jobs []Job, sources []Source, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM jobs`); err != nil {
		return fmt.Errorf("clear jobs: %w", err)
	}

	for i, j := range jobs {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO jobs (school, title, url, category, observed_on, position)
VALUES ($1, $2, $3, $4, $5, $6)
`, j.School, j.Title, j.URL, string(j.Category), j.ObservedOn, i); err != nil {
			return fmt.Errorf("insert job %s: %w", j.URL, err)
		}
	}

	if len(sources) > 0 {
		names := make([]string, 0, len(sources))
		for _, src := range sources {
			names = append(names, src.Name)
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE universities
SET last_checked = $1
WHERE name = ANY($2)
`, at, pq.Array(names)); err != nil {
			return fmt.Errorf("mark sources checked: %w", err)
		}
	}

	if err := setMeta(ctx, tx, metaJobsUpdated, at.Format(minuteStampLayout)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) ListJobs(ctx context.Context, f JobFilter) ([]Job, int, error) {
	limit := clampLimit(f.Limit, 50, 500)
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var (
		conds []string
		args  []any
	)
	if f.Category != "" {
		args = append(args, string(f.Category))
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if f.School != "" {
		args = append(args, f.School)
		conds = append(conds, fmt.Sprintf("school = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
SELECT school, title, url, category, observed_on
FROM jobs
%s
ORDER BY position, id
LIMIT $%d OFFSET $%d
`, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var (
			j   Job
			cat string
		)
		if err := rows.Scan(&j.School, &j.Title, &j.URL, &cat, &j.ObservedOn); err != nil {
			return nil, 0, err
		}
		c, ok := classify.ParseCategory(cat)
		if !ok {
			c = classify.Other
		}
		j.Category = c
		jobs = append(jobs, j)
	}
	return jobs, total, rows.Err()
}

func (s *Store) ListSources(ctx context.Context, limit, offset int) ([]Source, int, error) {
	limit = clampLimit(limit, 50, 500)
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM universities`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sources: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT name, city, type, recruitment_url, recruitment_name, last_checked
FROM universities
ORDER BY position, name
LIMIT $1 OFFSET $2
`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	sources, err := scanSources(rows)
	return sources, total, err
}

func (s *Store) Metadata(ctx context.Context) (Metadata, error) {
	var m Metadata
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM metadata`)
	if err != nil {
		return m, fmt.Errorf("read metadata: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return m, err
		}
		switch k {
		case metaRosterUpdated:
			m.RosterUpdated = v
		case metaRosterDescription:
			m.RosterDescription = v
		case metaJobsUpdated:
			m.JobsUpdated = v
		}
	}
	return m, rows.Err()
}

func scanSources(rows *sql.Rows) ([]Source, error) {
	var sources []Source
	for rows.Next() {
		var (
			src         Source
			lastChecked sql.NullTime
		)
		if err := rows.Scan(
			&src.Name,
			&src.City,
			&src.Type,
			&src.RecruitmentURL,
			&src.RecruitmentName,
			&lastChecked,
		); err != nil {
			return nil, err
		}
		if lastChecked.Valid {
			t := lastChecked.Time
			src.LastChecked = &t
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

func setMeta(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO metadata (key, value, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (key) DO UPDATE SET
    value = EXCLUDED.value,
    updated_at = NOW()
`, key, value)
	if err != nil {
		return fmt.Errorf("set metadata %s: %w", key, err)
	}
	return nil
}

func recruitmentName(src Source) string {
	if src.RecruitmentName == "" {
		return defaultRecruitTag
	}
	return src.RecruitmentName
}
