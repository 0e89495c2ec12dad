// Package config loads and validates the connector configuration. Settings
// come from a JSON file with sensible defaults for local development; every
// load path runs Validate before the config reaches the rest of the
// pipeline.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/NANATribe/iomt-fhir/errors"
)

// NATSConfig holds connection settings for the NATS server backing the
// event source, the template store, and the measurement stream.
type NATSConfig struct {
	URL           string        `json:"url"`
	ClientName    string        `json:"client_name"`
	Timeout       time.Duration `json:"timeout"`
	ReconnectWait time.Duration `json:"reconnect_wait"`
	MaxReconnects int           `json:"max_reconnects"`
	DrainTimeout  time.Duration `json:"drain_timeout"`
}

// NormalizationConfig controls the normalization service.
type NormalizationConfig struct {
	// TemplateID names the template document in the template store.
	TemplateID string `json:"template_id"`

	// MatchMode is "first" or "all".
	MatchMode string `json:"match_mode"`

	// Workers bounds per-batch parallelism.
	Workers int `json:"workers"`

	// QueueSize bounds the worker queue.
	QueueSize int `json:"queue_size"`

	// BatchSize is the number of events collected before a batch runs.
	BatchSize int `json:"batch_size"`

	// BatchWindow flushes a partial batch after this long.
	BatchWindow time.Duration `json:"batch_window"`
}

// IngestConfig names the inbound event subject.
type IngestConfig struct {
	Subject string `json:"subject"`

	// Partition identifies this consumer's shard for metric dimensions.
	Partition string `json:"partition"`
}

// SinkConfig names the outbound measurement stream.
type SinkConfig struct {
	Stream       string        `json:"stream"`
	Subject      string        `json:"subject"`
	FlushTimeout time.Duration `json:"flush_timeout"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // text or json
}

// Config is the complete connector configuration.
type Config struct {
	NATS          NATSConfig          `json:"nats"`
	Ingest        IngestConfig        `json:"ingest"`
	Normalization NormalizationConfig `json:"normalization"`
	Sink          SinkConfig          `json:"sink"`
	Metrics       MetricsConfig       `json:"metrics"`
	Logging       LoggingConfig       `json:"logging"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			ClientName:    "iomt-normalize",
			Timeout:       5 * time.Second,
			ReconnectWait: 2 * time.Second,
			MaxReconnects: -1,
			DrainTimeout:  30 * time.Second,
		},
		Ingest: IngestConfig{
			Subject:   "iomt.events",
			Partition: "0",
		},
		Normalization: NormalizationConfig{
			TemplateID:  "default",
			MatchMode:   "first",
			Workers:     4,
			QueueSize:   256,
			BatchSize:   64,
			BatchWindow: time.Second,
		},
		Sink: SinkConfig{
			Stream:       "IOMT_MEASUREMENTS",
			Subject:      "iomt.measurements",
			FlushTimeout: 30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a JSON config file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(
			fmt.Errorf("%w: %w", errors.ErrMissingConfig, err),
			"config", "Load", "read config file")
	}

	// Decode to a raw map first so duration strings like "5s" can be
	// converted before they hit the time.Duration fields.
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapFatal(
			fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err),
			"config", "Load", "decode config file")
	}
	if err := parseDurations(raw); err != nil {
		return nil, errors.WrapFatal(
			fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err),
			"config", "Load", "parse durations")
	}
	processed, err := json.Marshal(raw)
	if err != nil {
		return nil, errors.WrapFatal(
			fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err),
			"config", "Load", "reencode config")
	}
	if err := json.Unmarshal(processed, cfg); err != nil {
		return nil, errors.WrapFatal(
			fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err),
			"config", "Load", "decode config file")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// durationKeys names every duration-typed field by config section.
var durationKeys = map[string][]string{
	"nats":          {"timeout", "reconnect_wait", "drain_timeout"},
	"normalization": {"batch_window"},
	"sink":          {"flush_timeout"},
}

// parseDurations converts duration strings to nanoseconds for json
// unmarshaling, so config files can say "5s" instead of 5000000000.
func parseDurations(data map[string]any) error {
	for section, keys := range durationKeys {
		m, ok := data[section].(map[string]any)
		if !ok {
			continue
		}
		for _, key := range keys {
			s, ok := m[key].(string)
			if !ok {
				continue
			}
			d, err := time.ParseDuration(s)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", section, key, err)
			}
			m[key] = d.Nanoseconds()
		}
	}
	return nil
}

// Validate checks every field the pipeline depends on.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return errors.WrapFatal(
			fmt.Errorf("%w: %s", errors.ErrInvalidConfig, fmt.Sprintf(format, args...)),
			"config", "Validate", "check configuration")
	}

	if c.NATS.URL == "" {
		return invalid("nats.url cannot be empty")
	}
	if c.Ingest.Subject == "" {
		return invalid("ingest.subject cannot be empty")
	}
	if c.Normalization.TemplateID == "" {
		return invalid("normalization.template_id cannot be empty")
	}
	switch c.Normalization.MatchMode {
	case "", "first", "all":
	default:
		return invalid("normalization.match_mode must be first or all, got %q", c.Normalization.MatchMode)
	}
	if c.Normalization.Workers < 0 {
		return invalid("normalization.workers cannot be negative")
	}
	if c.Normalization.BatchSize <= 0 {
		return invalid("normalization.batch_size must be positive")
	}
	if c.Normalization.BatchWindow <= 0 {
		return invalid("normalization.batch_window must be positive")
	}
	if c.Sink.Stream == "" {
		return invalid("sink.stream cannot be empty")
	}
	if c.Sink.Subject == "" {
		return invalid("sink.subject cannot be empty")
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return invalid("metrics.port must be in 1..65535, got %d", c.Metrics.Port)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return invalid("logging.level %q is not recognized", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return invalid("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}
