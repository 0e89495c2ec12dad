package natsclient

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/NANATribe/iomt-fhir/errors"
	"github.com/NANATribe/iomt-fhir/metric"
)

// ConnectionStatus is the state of the NATS connection.
type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusCircuitOpen
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// Client wraps a NATS connection with status tracking and a failure circuit.
type Client struct {
	url    string
	logger *slog.Logger

	conn *nats.Conn
	js   jetstream.JetStream
	subs []*nats.Subscription

	status   atomic.Value // ConnectionStatus
	failures atomic.Int32

	circuitThreshold int32
	circuitOpenedAt  atomic.Value // time.Time
	circuitCooldown  time.Duration

	maxReconnects int
	reconnectWait time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration
	clientName    string

	metrics *metric.Metrics

	mu     sync.RWMutex
	closed atomic.Bool
}

// NewClient creates a client for the given server URL. The connection is not
// established until Connect.
func NewClient(url string, opts ...Option) (*Client, error) {
	c := &Client{
		url:              url,
		logger:           slog.Default().With("component", "natsclient"),
		circuitThreshold: 5,
		circuitCooldown:  30 * time.Second,
		maxReconnects:    -1,
		reconnectWait:    2 * time.Second,
		timeout:          5 * time.Second,
		drainTimeout:     30 * time.Second,
		clientName:       "iomt-normalize",
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}
	c.status.Store(StatusDisconnected)
	c.circuitOpenedAt.Store(time.Time{})
	return c, nil
}

// URL returns the configured server URL.
func (c *Client) URL() string {
	return c.url
}

// Status returns the current connection status, accounting for circuit
// cooldown expiry.
func (c *Client) Status() ConnectionStatus {
	status := c.status.Load().(ConnectionStatus)
	if status == StatusCircuitOpen {
		openedAt := c.circuitOpenedAt.Load().(time.Time)
		if time.Since(openedAt) > c.circuitCooldown {
			c.status.CompareAndSwap(StatusCircuitOpen, StatusDisconnected)
			return StatusDisconnected
		}
	}
	return status
}

// IsHealthy reports whether the connection is established.
func (c *Client) IsHealthy() bool {
	return c.Status() == StatusConnected
}

// Failures returns the consecutive connection failure count.
func (c *Client) Failures() int32 {
	return c.failures.Load()
}

func (c *Client) recordFailure() {
	if c.failures.Add(1) >= c.circuitThreshold {
		c.circuitOpenedAt.Store(time.Now())
		c.status.Store(StatusCircuitOpen)
		c.logger.Warn("circuit opened after repeated connection failures",
			"failures", c.failures.Load(), "cooldown", c.circuitCooldown)
	}
}

func (c *Client) resetCircuit() {
	c.failures.Store(0)
}

// Connect establishes the connection and initializes JetStream. Transient
// failures count toward the circuit; once open, Connect refuses to dial
// until the cooldown passes.
func (c *Client) Connect(ctx context.Context) error {
	if c.Status() == StatusCircuitOpen {
		return errors.WrapTransient(errors.ErrNoConnection,
			"Client", "Connect", "circuit open")
	}

	c.status.Store(StatusConnecting)
	c.logger.Info("connecting to NATS", "url", c.url)

	opts := []nats.Option{
		nats.Name(c.clientName),
		nats.Timeout(c.timeout),
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.status.Store(StatusReconnecting)
			if c.metrics != nil {
				c.metrics.NATSConnected.Set(0)
			}
			c.logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			c.status.Store(StatusConnected)
			if c.metrics != nil {
				c.metrics.NATSConnected.Set(1)
				c.metrics.NATSReconnects.Inc()
			}
			c.logger.Info("NATS reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if !c.closed.Load() {
				c.status.Store(StatusDisconnected)
				if c.metrics != nil {
					c.metrics.NATSConnected.Set(0)
				}
				c.logger.Warn("NATS connection closed unexpectedly",
					"error", errors.ErrConnectionLost)
			}
		}),
	}

	done := make(chan error, 1)
	go func() {
		conn, err := nats.Connect(c.url, opts...)
		if err != nil {
			done <- err
			return
		}
		js, err := jetstream.New(conn)
		if err != nil {
			conn.Close()
			done <- err
			return
		}
		c.mu.Lock()
		c.conn = conn
		c.js = js
		c.mu.Unlock()
		done <- nil
	}()

	select {
	case err := <-done:
		if err != nil {
			c.recordFailure()
			if c.Status() != StatusCircuitOpen {
				c.status.Store(StatusDisconnected)
			}
			return errors.WrapTransient(err, "Client", "Connect", "establish connection")
		}
	case <-ctx.Done():
		c.recordFailure()
		if c.Status() != StatusCircuitOpen {
			c.status.Store(StatusDisconnected)
		}
		return errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrConnectionTimeout, ctx.Err()),
			"Client", "Connect", "establish connection")
	}

	c.status.Store(StatusConnected)
	c.resetCircuit()
	if c.metrics != nil {
		c.metrics.NATSConnected.Set(1)
	}
	c.logger.Info("connected to NATS", "url", c.url)
	return nil
}

// Close drains subscriptions and closes the connection. Safe to call more
// than once.
func (c *Client) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, sub := range c.subs {
		if err := sub.Unsubscribe(); err != nil {
			c.logger.Error("unsubscribe failed", "subject", sub.Subject, "error", err)
		}
	}
	c.subs = nil

	if c.conn == nil {
		c.status.Store(StatusDisconnected)
		return nil
	}

	drainTimeout := c.drainTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && remaining < drainTimeout {
			drainTimeout = remaining
		}
	}

	drained := make(chan error, 1)
	go func() {
		drained <- c.conn.Drain()
	}()

	var drainErr error
	select {
	case err := <-drained:
		drainErr = err
	case <-time.After(drainTimeout):
		drainErr = fmt.Errorf("drain timed out after %v", drainTimeout)
	case <-ctx.Done():
		drainErr = ctx.Err()
	}

	c.conn.Close()
	c.conn = nil
	c.status.Store(StatusDisconnected)
	if c.metrics != nil {
		c.metrics.NATSConnected.Set(0)
	}

	if drainErr != nil {
		return errors.WrapTransient(drainErr, "Client", "Close", "drain connection")
	}
	return nil
}

// Subscribe delivers messages on subject to handler, along with any message
// headers. Each delivery gets a context derived from ctx with a processing
// timeout.
func (c *Client) Subscribe(ctx context.Context, subject string, handler func(context.Context, []byte, map[string][]string)) error {
	if c.closed.Load() {
		return errors.WrapInvalid(errors.ErrShuttingDown, "Client", "Subscribe", "check client state")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || !c.conn.IsConnected() {
		return errors.WrapTransient(errors.ErrNoConnection, "Client", "Subscribe", "check connection")
	}

	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		msgCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		handler(msgCtx, msg.Data, msg.Header)
	})
	if err != nil {
		return errors.WrapTransient(err, "Client", "Subscribe", "subscribe to subject")
	}
	c.subs = append(c.subs, sub)
	return nil
}

// Publish sends a core NATS message, fire and forget.
func (c *Client) Publish(_ context.Context, subject string, data []byte) error {
	if c.closed.Load() {
		return errors.WrapInvalid(errors.ErrShuttingDown, "Client", "Publish", "check client state")
	}

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return errors.WrapTransient(errors.ErrNoConnection, "Client", "Publish", "check connection")
	}
	return conn.Publish(subject, data)
}

// JetStream returns the JetStream context.
func (c *Client) JetStream() (jetstream.JetStream, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.js == nil {
		return nil, errors.WrapTransient(errors.ErrNoConnection,
			"Client", "JetStream", "get JetStream context")
	}
	return c.js, nil
}

// CreateStream creates or updates a JetStream stream.
func (c *Client) CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	js, err := c.JetStream()
	if err != nil {
		return nil, err
	}
	stream, err := js.CreateOrUpdateStream(ctx, cfg)
	if err != nil {
		c.recordFailure()
		return nil, errors.WrapTransient(err, "Client", "CreateStream", "create stream")
	}
	c.resetCircuit()
	return stream, nil
}

// PublishToStream publishes a message with JetStream acknowledgment.
func (c *Client) PublishToStream(ctx context.Context, subject string, data []byte) error {
	js, err := c.JetStream()
	if err != nil {
		return err
	}
	if _, err := js.Publish(ctx, subject, data); err != nil {
		c.recordFailure()
		return errors.WrapTransient(err, "Client", "PublishToStream", "publish message")
	}
	c.resetCircuit()
	return nil
}

// CreateKeyValueBucket creates a KV bucket, returning the existing bucket
// when it is already there.
func (c *Client) CreateKeyValueBucket(ctx context.Context, cfg jetstream.KeyValueConfig) (jetstream.KeyValue, error) {
	js, err := c.JetStream()
	if err != nil {
		return nil, err
	}
	bucket, err := js.CreateOrUpdateKeyValue(ctx, cfg)
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "CreateKeyValueBucket", "create bucket")
	}
	return bucket, nil
}

// GetKeyValueBucket opens an existing KV bucket.
func (c *Client) GetKeyValueBucket(ctx context.Context, name string) (jetstream.KeyValue, error) {
	js, err := c.JetStream()
	if err != nil {
		return nil, err
	}
	bucket, err := js.KeyValue(ctx, name)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrBucketNotFound) {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %s", errors.ErrBucketNotFound, name),
				"Client", "GetKeyValueBucket", "open bucket")
		}
		return nil, errors.WrapTransient(err, "Client", "GetKeyValueBucket", "open bucket")
	}
	return bucket, nil
}
