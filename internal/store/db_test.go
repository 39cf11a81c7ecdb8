package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baxromumarov/uni-recruit/internal/classify"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db), mock
}

func TestStore_RunMigrations(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS universities").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.RunMigrations(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListUniversities(t *testing.T) {
	s, mock := newMockStore(t)
	checked := time.Date(2024, 5, 20, 6, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"name", "city", "type", "recruitment_url", "recruitment_name", "last_checked"}).
		AddRow("示例大学", "广州", "本科", "https://hr.example.edu.cn/", "招聘/人事", checked).
		AddRow("示例学院", "深圳", "专科", "", "招聘/人事", nil)
	mock.ExpectQuery("SELECT name, city, type, recruitment_url, recruitment_name, last_checked FROM universities").
		WillReturnRows(rows)

	got, err := s.ListUniversities(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "https://hr.example.edu.cn/", got[0].RecruitmentURL)
	require.NotNil(t, got[0].LastChecked)
	assert.True(t, checked.Equal(*got[0].LastChecked))
	assert.Empty(t, got[1].RecruitmentURL)
	assert.Nil(t, got[1].LastChecked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SaveUniversities(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Date(2024, 5, 20, 9, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO universities").
		WithArgs("示例大学", "广州", "本科", "https://hr.example.edu.cn/", "招聘/人事", 0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO universities").
		WithArgs("示例学院", "", "", "", "人事处", 1).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec("INSERT INTO metadata").
		WithArgs("roster.updated", "2024-05-20").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO metadata").
		WithArgs("roster.description", "refreshed").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.SaveUniversities(context.Background(), []Source{
		{Name: "示例大学", City: "广州", Type: "本科", RecruitmentURL: "https://hr.example.edu.cn/"},
		{Name: "示例学院", RecruitmentName: "人事处"},
	}, "refreshed", at)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ReplaceJobs(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Date(2024, 5, 20, 6, 0, 0, 0, time.UTC)
	observed := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM jobs").WillReturnResult(sqlmock.NewResult(0, 12))
	mock.ExpectExec("INSERT INTO jobs").
		WithArgs("示例大学", "2024年专任教师招聘公告", "https://hr.example.edu.cn/a/1.html", "teaching", observed, 0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE universities SET last_checked").
		WithArgs(at, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO metadata").
		WithArgs("jobs.last_updated", "2024-05-20 06:00").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.ReplaceJobs(context.Background(), []Job{{
		School:     "示例大学",
		Title:      "2024年专任教师招聘公告",
		URL:        "https://hr.example.edu.cn/a/1.html",
		Category:   classify.Teaching,
		ObservedOn: observed,
	}}, []Source{{Name: "示例大学"}}, at)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ReplaceJobsRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM jobs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO jobs").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.ReplaceJobs(context.Background(), []Job{{School: "示例大学", Title: "x", URL: "https://a", Category: classify.Other}}, nil, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert job")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListJobsWithFilter(t *testing.T) {
	s, mock := newMockStore(t)
	observed := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM jobs WHERE category = \$1 AND school = \$2`).
		WithArgs("teaching", "示例大学").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT school, title, url, category, observed_on FROM jobs WHERE category = \$1 AND school = \$2 ORDER BY position, id LIMIT \$3 OFFSET \$4`).
		WithArgs("teaching", "示例大学", 50, 0).
		WillReturnRows(sqlmock.NewRows([]string{"school", "title", "url", "category", "observed_on"}).
			AddRow("示例大学", "专任教师招聘", "https://hr.example.edu.cn/a/1.html", "teaching", observed))

	jobs, total, err := s.ListJobs(context.Background(), JobFilter{Category: classify.Teaching, School: "示例大学"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, jobs, 1)
	assert.Equal(t, classify.Teaching, jobs[0].Category)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListJobsUnfilteredClampsLimit(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM jobs`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`LIMIT \$1 OFFSET \$2`).
		WithArgs(500, 0).
		WillReturnRows(sqlmock.NewRows([]string{"school", "title", "url", "category", "observed_on"}))

	jobs, total, err := s.ListJobs(context.Background(), JobFilter{Limit: 10000, Offset: -3})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, jobs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListSourcesAndMetadata(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM universities`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("FROM universities ORDER BY position, name LIMIT").
		WithArgs(20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"name", "city", "type", "recruitment_url", "recruitment_name", "last_checked"}).
			AddRow("示例大学", "广州", "本科", "https://hr.example.edu.cn/", "招聘/人事", nil))
	mock.ExpectQuery("SELECT key, value FROM metadata").
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).
			AddRow("roster.updated", "2024-05-20").
			AddRow("jobs.last_updated", "2024-05-20 06:00"))

	sources, total, err := s.ListSources(context.Background(), 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "示例大学", sources[0].Name)

	meta, err := s.Metadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024-05-20", meta.RosterUpdated)
	assert.Equal(t, "2024-05-20 06:00", meta.JobsUpdated)
	require.NoError(t, mock.ExpectationsWereMet())
}
