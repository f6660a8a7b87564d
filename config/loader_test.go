package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/stewardbot/steward/errors"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "community-agent", cfg.Agent.Name)
	assert.Equal(t, int64(20000), cfg.Agent.MaxProcessTokens)
	assert.Equal(t, 3, cfg.Agent.MaxRestartAttempts)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
		"agent": {
			"name": "moderation-agent",
			"path": "/usr/local/bin/agent",
			"args": ["--verbose"],
			"model": "claude-sonnet-4-5",
			"max_process_tokens": 5000
		},
		"log": {"level": "debug", "json": true}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "moderation-agent", cfg.Agent.Name)
	assert.Equal(t, "/usr/local/bin/agent", cfg.Agent.Path)
	assert.Equal(t, []string{"--verbose"}, cfg.Agent.Args)
	assert.Equal(t, int64(5000), cfg.Agent.MaxProcessTokens)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{
			name:    "valid",
			cfg:     &Config{Agent: AgentConfig{Path: "agent"}},
			wantErr: false,
		},
		{
			name:    "missing path",
			cfg:     &Config{},
			wantErr: true,
		},
		{
			name:    "negative token budget",
			cfg:     &Config{Agent: AgentConfig{Path: "agent", MaxProcessTokens: -1}},
			wantErr: true,
		},
		{
			name:    "nil config",
			cfg:     nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidConfig))
			} else {
				require.NoError(t, err)
			}
		})
	}
}
