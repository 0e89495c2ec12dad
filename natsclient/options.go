package natsclient

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/NANATribe/iomt-fhir/metric"
)

// Option configures a Client at construction.
type Option func(*Client) error

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithMetrics attaches a metrics recorder; connection state changes update
// the NATS gauges and counters.
func WithMetrics(m *metric.Metrics) Option {
	return func(c *Client) error {
		c.metrics = m
		return nil
	}
}

// WithClientName sets the connection name reported to the server.
func WithClientName(name string) Option {
	return func(c *Client) error {
		if name == "" {
			return fmt.Errorf("client name cannot be empty")
		}
		c.clientName = name
		return nil
	}
}

// WithTimeout sets the dial timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", d)
		}
		c.timeout = d
		return nil
	}
}

// WithDrainTimeout bounds how long Close waits for in-flight messages.
func WithDrainTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("drain timeout must be positive, got %v", d)
		}
		c.drainTimeout = d
		return nil
	}
}

// WithReconnectWait sets the delay between automatic reconnect attempts.
func WithReconnectWait(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("reconnect wait must be positive, got %v", d)
		}
		c.reconnectWait = d
		return nil
	}
}

// WithMaxReconnects limits automatic reconnect attempts; -1 means unlimited.
func WithMaxReconnects(n int) Option {
	return func(c *Client) error {
		if n < -1 {
			return fmt.Errorf("max reconnects must be >= -1, got %d", n)
		}
		c.maxReconnects = n
		return nil
	}
}

// WithCircuitThreshold sets how many consecutive failures open the circuit.
func WithCircuitThreshold(n int32) Option {
	return func(c *Client) error {
		if n <= 0 {
			return fmt.Errorf("circuit threshold must be positive, got %d", n)
		}
		c.circuitThreshold = n
		return nil
	}
}

// WithCircuitCooldown sets how long an open circuit refuses connections.
func WithCircuitCooldown(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("circuit cooldown must be positive, got %v", d)
		}
		c.circuitCooldown = d
		return nil
	}
}
