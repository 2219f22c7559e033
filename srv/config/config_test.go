package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(env.Options{Environment: map[string]string{
		"ANTHROPIC_API_KEY": "sk-ant",
		"REPLICATE_API_KEY": "r8_key",
	}})
	require.NoError(t, err)

	assert.Equal(t, "sk-ant", cfg.AnthropicKey.Reveal())
	assert.Equal(t, "r8_key", cfg.ReplicateKey.Reveal())
	assert.False(t, cfg.PasswordEnabled())
	assert.Equal(t, []string{"story", "historia"}, cfg.TitleHints)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, 30, cfg.RateLimitPerMinute)
	assert.Equal(t, time.Duration(0), cfg.ImageRateInterval)
	assert.Equal(t, "production", cfg.LogMode)
	assert.False(t, cfg.TLSEnabled())
}

func TestParseOverrides(t *testing.T) {
	cfg, err := Parse(env.Options{Environment: map[string]string{
		"ANTHROPIC_API_KEY":   "sk-ant",
		"REPLICATE_API_KEY":   "r8_key",
		"APP_PASSWORD":        "hunter2",
		"TITLE_HINTS":         "story,historia,histoire",
		"IMAGE_RATE_INTERVAL": "1500ms",
		"LOG_MODE":            "development",
		"TLS_CERT_FILE":       "certs/server.crt",
		"TLS_KEY_FILE":        "certs/server.key",
	}})
	require.NoError(t, err)
	assert.True(t, cfg.TLSEnabled())

	assert.True(t, cfg.PasswordEnabled())
	assert.Equal(t, []string{"story", "historia", "histoire"}, cfg.TitleHints)
	assert.Equal(t, 1500*time.Millisecond, cfg.ImageRateInterval)
	assert.Equal(t, "development", cfg.LogMode)
}

func TestParseRequiresBothKeys(t *testing.T) {
	tests := []map[string]string{
		{"REPLICATE_API_KEY": "r8_key"},
		{"ANTHROPIC_API_KEY": "sk-ant"},
		{"ANTHROPIC_API_KEY": "", "REPLICATE_API_KEY": "r8_key"},
	}
	for i, environ := range tests {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			_, err := Parse(env.Options{Environment: environ})
			assert.Error(t, err)
		})
	}
}

func TestParseRejectsInvalidValues(t *testing.T) {
	base := func(k, v string) map[string]string {
		return map[string]string{"ANTHROPIC_API_KEY": "a", "REPLICATE_API_KEY": "b", k: v}
	}
	for _, environ := range []map[string]string{
		base("MAX_RETRIES", "-1"),
		base("RATE_LIMIT_PER_MINUTE", "-5"),
		base("LOG_MODE", "verbose"),
		base("IMAGE_RATE_INTERVAL", "soon"),
		base("TLS_CERT_FILE", "cert.pem"),
		base("TLS_KEY_FILE", "key.pem"),
	} {
		_, err := Parse(env.Options{Environment: environ})
		assert.Error(t, err, "%v", environ)
	}
}

func TestLoadSecretsFile(t *testing.T) {
	for _, k := range []string{"ANTHROPIC_API_KEY", "REPLICATE_API_KEY", "APP_PASSWORD"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	t.Setenv("APP_PASSWORD", "from-env")

	secrets := filepath.Join(t.TempDir(), "secrets.env")
	require.NoError(t, os.WriteFile(secrets, []byte("ANTHROPIC_API_KEY=sk-file\nREPLICATE_API_KEY=r8-file\nAPP_PASSWORD=from-file\n"), 0o600))

	cfg, err := Load(secrets)
	require.NoError(t, err)
	assert.Equal(t, "sk-file", cfg.AnthropicKey.Reveal())
	assert.Equal(t, "r8-file", cfg.ReplicateKey.Reveal())
	assert.Equal(t, "from-env", cfg.Password.Reveal())
}

func TestLoadMissingSecretsFile(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-env")
	t.Setenv("REPLICATE_API_KEY", "r8-env")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.AnthropicKey.Reveal())
}

func TestSecretStringHidesValue(t *testing.T) {
	s := SecretString("sk-very-secret")
	assert.Equal(t, SecretStringValue, s.String())
	assert.Equal(t, SecretStringValue, fmt.Sprint(s))

	data, err := json.Marshal(struct{ Key SecretString }{s})
	require.NoError(t, err)
	assert.Equal(t, `{"Key":"<secret>"}`, string(data))

	data, err = json.Marshal(struct{ Key SecretString }{})
	require.NoError(t, err)
	assert.Equal(t, `{"Key":null}`, string(data))
}
