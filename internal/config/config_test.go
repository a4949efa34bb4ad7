package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/synapse/internal/store"
)

// isolate clears every variable Load reads so the host environment cannot
// leak into the test.
func isolate(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SYNAPSE_STORE", "SYNAPSE_DB", "SYNAPSE_DATABASE_URL", "DATABASE_URL",
		"SYNAPSE_REDIS_URL", "SYNAPSE_LEADERBOARD_TTL", "SYNAPSE_ADDR", "SYNAPSE_API_KEY",
		"SYNAPSE_LOG_LEVEL", "SYNAPSE_LOG_FORMAT", "SYNAPSE_CAS_ATTEMPTS", "SYNAPSE_POLICY_FILE",
		"SYNAPSE_LLM_PROVIDER", "GEMINI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "OPENROUTER_API_KEY",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("SYNAPSE_ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, store.BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 60*time.Second, cfg.Redis.TTL)
	assert.Equal(t, 5, cfg.MaxCASAttempts)
	assert.Equal(t, 100, cfg.Policy.XPPerLevel)
	assert.Nil(t, cfg.LLM)
}

func TestLoadOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("SYNAPSE_STORE", "postgres")
	t.Setenv("SYNAPSE_DATABASE_URL", "postgres://localhost/synapse")
	t.Setenv("SYNAPSE_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("SYNAPSE_LEADERBOARD_TTL", "2m")
	t.Setenv("SYNAPSE_API_KEY", "secret")
	t.Setenv("SYNAPSE_CAS_ATTEMPTS", "9")
	t.Setenv("GEMINI_API_KEY", "g-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/synapse", cfg.Store.DSN)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, 2*time.Minute, cfg.Redis.TTL)
	assert.Equal(t, "secret", cfg.Server.APIKey)
	assert.Equal(t, 9, cfg.MaxCASAttempts)
	require.NotNil(t, cfg.LLM)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown store", map[string]string{"SYNAPSE_STORE": "mongo"}},
		{"postgres without url", map[string]string{"SYNAPSE_STORE": "postgres"}},
		{"bad ttl", map[string]string{"SYNAPSE_LEADERBOARD_TTL": "soon"}},
		{"bad cas attempts", map[string]string{"SYNAPSE_CAS_ATTEMPTS": "0"}},
		{"missing policy file", map[string]string{"SYNAPSE_POLICY_FILE": "/nonexistent/policy.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	isolate(t)
	// godotenv does not override variables that are already set, so the
	// cleared key has to be unset for the file to take effect.
	os.Unsetenv("SYNAPSE_ADDR")
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("SYNAPSE_ADDR=:9999\n"), 0o600))
	t.Setenv("SYNAPSE_ENV_FILE", path)
	t.Cleanup(func() { os.Unsetenv("SYNAPSE_ADDR") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
}

func TestLoadPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("time_bonus: 2\nlength_bonus: 2\n"), 0o600))

	p, err := LoadPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, 2, p.TimeBonus)
	assert.Equal(t, 2, p.LengthBonus)
	assert.Equal(t, 5, p.XPPerUnit, "absent keys keep defaults")
	assert.Equal(t, 120, p.TimeBonusThreshold)
}

func TestLoadPolicyInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("xp_per_level: 0\n"), 0o600))

	_, err := LoadPolicy(path)
	assert.Error(t, err)
}
