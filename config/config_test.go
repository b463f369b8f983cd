package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Mode)
	assert.Equal(t, 24*time.Hour, cfg.Engine.MinQuestLead)
	assert.Equal(t, 39*7*24*time.Hour, cfg.Engine.SeasonLength)
	assert.Equal(t, 15, cfg.Engine.DecayRetainPct)
	assert.Equal(t, 50, cfg.Engine.MaxMultiplier)
	assert.Equal(t, "quest_signer", cfg.Engine.VerifyWith)
	assert.Equal(t, 5*time.Second, cfg.Engine.NotifyTimeout)
	assert.Equal(t, 72*time.Hour, cfg.Security.JWTTTLH)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8000
  debug: true
database:
  mode: mysql
  mysql_dsn: "user:pass@tcp(localhost:3306)/quests"
engine:
  season_length: 240h
  decay_retain_pct: 25
  verify_with: quest_master
bootstrap:
  governor: abc123
  operator_identity: abc123
  operator_password: s3cret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, "mysql", cfg.Database.Mode)
	assert.Equal(t, 240*time.Hour, cfg.Engine.SeasonLength)
	assert.Equal(t, 25, cfg.Engine.DecayRetainPct)
	assert.Equal(t, "quest_master", cfg.Engine.VerifyWith)
	assert.Equal(t, "abc123", cfg.Bootstrap.Governor)
	assert.Equal(t, "s3cret", cfg.Bootstrap.OperatorPassword)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
