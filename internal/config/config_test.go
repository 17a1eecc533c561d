package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/trendfit/pkg/decision"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"TRENDFIT_DB_PATH", "TRENDFIT_LOG_LEVEL", "TRENDFIT_LOG_FORMAT", "TRENDFIT_MAX_COUNT",
		"SLACK_WEBHOOK_URL", "DISCORD_WEBHOOK_URL", "OPENAI_API_KEY", "ANTHROPIC_API_KEY",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "./trendfit.db", cfg.Database.Path)
	assert.Equal(t, 10, cfg.Selection.MaxCount)
	assert.Equal(t, 15*time.Minute, cfg.Schedule.ParseCollectInterval())
	assert.Equal(t, time.Hour, cfg.Schedule.ParseRecommendInterval())
	assert.Equal(t, 24*time.Hour, cfg.Sources.RSS.ParseWindow())
	assert.False(t, cfg.Classify.LLM.Enabled)

	div := cfg.Selection.DiversityConfig()
	assert.True(t, div.IncludeBreaking)
	assert.Equal(t, 0.2, div.ExplorationRatio)
}

func TestLoadFileAndEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: /tmp/x.db
schedule:
  collect_interval: 5m
  recommend_interval: bogus
selection:
  max_count: 7
  enable_exploration: false
decision:
  sensitive_keywords: [layoffs]
pipeline:
  workers: 2
`), 0o644))

	t.Setenv("TRENDFIT_LOG_LEVEL", "debug")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/x.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Minute, cfg.Schedule.ParseCollectInterval())
	assert.Equal(t, time.Hour, cfg.Schedule.ParseRecommendInterval())
	assert.Equal(t, 7, cfg.Selection.MaxCount)
	assert.False(t, cfg.Selection.EnableExploration)
	assert.Equal(t, 2, cfg.Pipeline.Workers)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Classify.LLM.Enabled)
	assert.Equal(t, "anthropic", cfg.Classify.LLM.Provider)

	opts := cfg.Decision.Options()
	assert.Equal(t, []string{"layoffs"}, opts.SensitiveKeywords)
	assert.Equal(t, decision.DefaultControversialAlertTypes, opts.ControversialAlertTypes)
}

func TestLoadRejectsInvalid(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("selection:\n  exploration_ratio: 1.5\n"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "exploration_ratio")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
