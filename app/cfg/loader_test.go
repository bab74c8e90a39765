package cfg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetVersion(t *testing.T) {
	assert.NotEmpty(t, GetVersion())
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load([]string{"run"})
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, CommandRun, cfg.Command)
	assert.Equal(t, "data/portals.json", cfg.PortalsFile)
	assert.Equal(t, "data/excluded_sites.json", cfg.ExclusionsFile)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 72*time.Hour, cfg.RecheckWindow)
	assert.Equal(t, RunCfg{Leads: true, Seeds: true, CT: true, DNS: true}, cfg.Run)
	assert.Same(t, cfg, Get())
}

func TestLoad_GlobalAndCommandOptions(t *testing.T) {
	cfg, err := Load([]string{"--workers", "3", "--lock-wait", "30s", "run", "--dry-run", "--no-dns", "--no-ct"})
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 30*time.Second, cfg.LockWait)
	assert.Equal(t, RunCfg{DryRun: true, Leads: true, Seeds: true}, cfg.Run)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("WORKER_COUNT", "2")
	t.Setenv("MOLTDIR_PORTALS", "/srv/portals.json")

	cfg, err := Load([]string{"stats"})
	require.NoError(t, err)

	assert.Equal(t, CommandStats, cfg.Command)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, "/srv/portals.json", cfg.PortalsFile)
}

func TestLoad_Commands(t *testing.T) {
	cfg, err := Load([]string{"cleanup", "--apply", "--window", "48h"})
	require.NoError(t, err)
	assert.Equal(t, CleanupCfg{Apply: true, Window: 48 * time.Hour}, cfg.Cleanup)

	cfg, err = Load([]string{"cleanup"})
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, cfg.Cleanup.Window)

	cfg, err = Load([]string{"audit", "--csv", "audit.csv"})
	require.NoError(t, err)
	assert.Equal(t, "audit.csv", cfg.Audit.CSVFile)

	cfg, err = Load([]string{"sync", "--dry-run"})
	require.NoError(t, err)
	assert.True(t, cfg.Run.DryRun)

	cfg, err = Load([]string{"verify", "--url", "https://moltx.io", "--backend", "openai", "--model", "gpt-4o-mini"})
	require.NoError(t, err)
	assert.Equal(t, "https://moltx.io", cfg.Verify.URL)
	assert.Equal(t, BackendOpenAI, cfg.Verify.Backend)
	assert.Equal(t, "gpt-4o-mini", cfg.Verify.Model)

	cfg, err = Load([]string{"serve", "--port", "9090"})
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Serve.Port)

	cfg, err = Load([]string{"watch", "--schedule", "@hourly", "--no-seeds"})
	require.NoError(t, err)
	assert.Equal(t, "@hourly", cfg.Watch.Schedule)
	assert.False(t, cfg.Watch.Seeds)
	assert.True(t, cfg.Watch.DNS)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no command", []string{}},
		{"unknown command", []string{"crawl"}},
		{"zero workers", []string{"--workers", "0", "run"}},
		{"negative rate", []string{"--rate", "-1", "run"}},
		{"bad backend", []string{"verify", "--backend", "gemini"}},
		{"negative limit", []string{"verify", "--limit", "-1"}},
		{"bad duration", []string{"--fetch-timeout", "soon", "run"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.args)
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestLoad_Help(t *testing.T) {
	cfg, err := Load([]string{"--help"})
	assert.NoError(t, err)
	assert.Nil(t, cfg)
}
