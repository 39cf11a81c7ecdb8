package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DATABASE_URL", "PORT", "STORAGE", "DATA_DIR", "SEARCH_ENGINE"} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
	assert.Equal(t, 15*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.Jobs.Delay)
	assert.Equal(t, 1200*time.Millisecond, cfg.Sources.Delay)
	assert.Equal(t, "0 6 * * *", cfg.Jobs.Schedule)
	assert.False(t, cfg.HTTP.RespectRobots)
	assert.Equal(t, "baidu", cfg.SearchEngine().Name)
	assert.Equal(t, filepath.Join("data", "jobs.json"), cfg.JobsPath())
}

func TestLoad_FileAndClassifierOverride(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
storage:
  backend: file
  data_dir: /var/lib/uni-recruit
http:
  timeout: 30s
  respect_robots: true
jobs:
  delay: 2s
  require_article_like: true
sources:
  engine: duckduckgo
classifier:
  administrative: ["行政", "后勤"]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendFile, cfg.Storage.Backend)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Jobs.Delay)
	assert.True(t, cfg.Jobs.RequireArticleLike)
	assert.True(t, cfg.HTTPOptions().RespectRobots)
	assert.Equal(t, "duckduckgo", cfg.SearchEngine().Name)

	rules := cfg.Rules()
	assert.Equal(t, []string{"行政", "后勤"}, rules.Administrative)
	assert.Contains(t, rules.Teaching, "教师")
	// unchanged defaults survive a partial file
	assert.Equal(t, "jobs.json", cfg.Storage.JobsFile)
	assert.Equal(t, 1200*time.Millisecond, cfg.Sources.Delay)
}

func TestLoad_ClassifierExtraAppends(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
classifier_extra:
  teaching: ["讲师"]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	rules := cfg.Rules()
	assert.Contains(t, rules.Teaching, "教师")
	assert.Contains(t, rules.Teaching, "讲师")
}

func TestLoad_ExampleConfig(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join("..", "..", "config.example.yaml"))
	require.NoError(t, err)
	assert.Equal(t, BackendFile, cfg.Storage.Backend)

	rules := cfg.Rules()
	for _, title := range []string{"人事政策", "招聘信息", "人才招聘", "通知公告", "返回"} {
		assert.True(t, rules.IsNavigational(title), title)
	}
	assert.False(t, rules.IsNavigational("2024年专任教师招聘公告"))
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("STORAGE", "FILE")
	t.Setenv("DATA_DIR", "/tmp/uni")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/x")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, BackendFile, cfg.Storage.Backend)
	assert.Equal(t, "/tmp/uni", cfg.Storage.DataDir)
	assert.Equal(t, "postgres://u:p@db:5432/x", cfg.Storage.DatabaseURL)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  backend: sqlite\nsources:\n  engine: altavista\n"), 0o644))
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.backend")
	assert.Contains(t, err.Error(), "sources.engine")
}
