package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baxromumarov/uni-recruit/internal/classify"
)

const rosterFixture = `{
  "updated": "2024-01-01",
  "description": "old",
  "universities": [
    {"name": "示例大学", "city": "广州", "type": "本科", "recruitment_url": "https://hr.example.edu.cn/"},
    {"name": "示例学院", "city": "深圳", "type": "专科", "recruitment_url": ""}
  ]
}`

func newFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "universities.json"), []byte(rosterFixture), 0o644))
	s := NewFileStore(filepath.Join(dir, "universities.json"), filepath.Join(dir, "jobs.json"))
	t.Cleanup(func() { s.Close() })
	return s, dir
}

func TestFileStore_ListUniversities(t *testing.T) {
	s, _ := newFileStore(t)

	got, err := s.ListUniversities(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "示例大学", got[0].Name)
	assert.Equal(t, "https://hr.example.edu.cn/", got[0].RecruitmentURL)
	assert.Empty(t, got[1].RecruitmentURL)
}

func TestFileStore_ListUniversitiesMissingFile(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(filepath.Join(dir, "universities.json"), filepath.Join(dir, "jobs.json"))
	defer s.Close()

	_, err := s.ListUniversities(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileStore_SaveUniversitiesInPlace(t *testing.T) {
	s, dir := newFileStore(t)
	at := time.Date(2024, 5, 20, 9, 0, 0, 0, time.Local)

	err := s.SaveUniversities(context.Background(), []Source{
		{Name: "示例学院", City: "深圳", Type: "专科", RecruitmentURL: "https://rsc.example.edu.cn/"},
		{Name: "示例大学", City: "广州", Type: "本科", RecruitmentURL: ""},
	}, "refreshed from search", at)
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, "universities.json"))
	require.NoError(t, err)
	var roster rosterFile
	require.NoError(t, json.Unmarshal(raw, &roster))

	assert.Equal(t, "2024-05-20", roster.Updated)
	assert.Equal(t, "refreshed from search", roster.Description)
	require.Len(t, roster.Universities, 2)
	// order of the roster is kept
	assert.Equal(t, "示例大学", roster.Universities[0].Name)
	assert.Empty(t, roster.Universities[0].RecruitmentURL)
	assert.Equal(t, "https://rsc.example.edu.cn/", roster.Universities[1].RecruitmentURL)
	assert.Contains(t, string(raw), "示例大学", "CJK must not be escaped")
}

func TestFileStore_ReplaceAndListJobs(t *testing.T) {
	s, dir := newFileStore(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 20, 6, 0, 0, 0, time.Local)
	day := time.Date(2024, 5, 20, 0, 0, 0, 0, time.Local)

	jobs := []Job{
		{School: "示例大学", Title: "2024年专任教师招聘公告", URL: "https://hr.example.edu.cn/a?x=1&y=2", Category: classify.Teaching, ObservedOn: day},
		{School: "示例大学", Title: "管理岗招聘公告", URL: "https://hr.example.edu.cn/b", Category: classify.Administrative, ObservedOn: day},
		{School: "示例学院", Title: "人才招聘启事", URL: "https://rsc.example.edu.cn/c", Category: classify.Other, ObservedOn: day},
	}
	sources := []Source{{Name: "示例大学", RecruitmentURL: "https://hr.example.edu.cn/"}, {Name: "示例学院"}}
	require.NoError(t, s.ReplaceJobs(ctx, jobs, sources, at))

	raw, err := os.ReadFile(filepath.Join(dir, "jobs.json"))
	require.NoError(t, err)
	var doc jobsFile
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "2024-05-20 06:00", doc.LastUpdated)
	assert.Equal(t, "教师岗", doc.Jobs[0].Type)
	assert.Equal(t, "2024-05-20", doc.Jobs[0].FetchedAt)
	assert.Equal(t, "招聘/人事", doc.Sources[1].RecruitmentName)
	assert.Contains(t, string(raw), "x=1&y=2")

	all, total, err := s.ListJobs(ctx, JobFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, jobs, all)

	teaching, total, err := s.ListJobs(ctx, JobFilter{Category: classify.Teaching})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, jobs[0].URL, teaching[0].URL)

	paged, total, err := s.ListJobs(ctx, JobFilter{School: "示例大学", Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, paged, 1)
	assert.Equal(t, jobs[1].URL, paged[0].URL)

	// a second run replaces rather than appends
	require.NoError(t, s.ReplaceJobs(ctx, jobs[:1], sources, at))
	_, total, err = s.ListJobs(ctx, JobFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestFileStore_ListSourcesAndMetadata(t *testing.T) {
	s, _ := newFileStore(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 20, 6, 0, 0, 0, time.Local)

	sources, total, err := s.ListSources(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Nil(t, sources[0].LastChecked)

	require.NoError(t, s.ReplaceJobs(ctx, nil, sources[:1], at))

	sources, _, err = s.ListSources(ctx, 0, 0)
	require.NoError(t, err)
	require.NotNil(t, sources[0].LastChecked)
	assert.True(t, at.Equal(*sources[0].LastChecked))
	assert.Nil(t, sources[1].LastChecked)

	meta, err := s.Metadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", meta.RosterUpdated)
	assert.Equal(t, "old", meta.RosterDescription)
	assert.Equal(t, "2024-05-20 06:00", meta.JobsUpdated)
}

func TestFileStore_EmptyJobsFile(t *testing.T) {
	s, _ := newFileStore(t)
	jobs, total, err := s.ListJobs(context.Background(), JobFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, jobs)
}
