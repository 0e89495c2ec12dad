package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NANATribe/iomt-fhir/errors"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"nats": {"url": "nats://nats.internal:4222"},
		"normalization": {"template_id": "icu-devices", "match_mode": "all"},
		"logging": {"level": "debug", "format": "json"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "nats://nats.internal:4222", cfg.NATS.URL)
	assert.Equal(t, "icu-devices", cfg.Normalization.TemplateID)
	assert.Equal(t, "all", cfg.Normalization.MatchMode)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "iomt.events", cfg.Ingest.Subject, "unset fields keep defaults")
	assert.Equal(t, time.Second, cfg.Normalization.BatchWindow)
}

func TestLoad_DurationStrings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"nats": {"timeout": "10s", "reconnect_wait": "500ms", "drain_timeout": "1m"},
		"normalization": {"batch_window": "250ms"},
		"sink": {"flush_timeout": "45s"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.NATS.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.NATS.ReconnectWait)
	assert.Equal(t, time.Minute, cfg.NATS.DrainTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Normalization.BatchWindow)
	assert.Equal(t, 45*time.Second, cfg.Sink.FlushTimeout)
}

func TestLoad_RawNanosecondDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"nats": {"timeout": 2000000000}}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.NATS.Timeout)
}

func TestLoad_BadDurationString(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"nats": {"timeout": "fast"}}`), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidConfig))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrMissingConfig))
}

func TestLoad_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidConfig))
}

func TestValidate_Rejections(t *testing.T) {
	mutations := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty nats url", func(c *Config) { c.NATS.URL = "" }},
		{"empty ingest subject", func(c *Config) { c.Ingest.Subject = "" }},
		{"empty template id", func(c *Config) { c.Normalization.TemplateID = "" }},
		{"bad match mode", func(c *Config) { c.Normalization.MatchMode = "second" }},
		{"negative workers", func(c *Config) { c.Normalization.Workers = -1 }},
		{"zero batch size", func(c *Config) { c.Normalization.BatchSize = 0 }},
		{"zero batch window", func(c *Config) { c.Normalization.BatchWindow = 0 }},
		{"empty sink stream", func(c *Config) { c.Sink.Stream = "" }},
		{"empty sink subject", func(c *Config) { c.Sink.Subject = "" }},
		{"bad metrics port", func(c *Config) { c.Metrics.Port = 70000 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "yaml" }},
	}
	for _, tt := range mutations {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, errors.ErrInvalidConfig))
		})
	}
}
