package natsclient

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/NANATribe/iomt-fhir/errors"
)

// KVEntry is one key-value entry with its revision.
type KVEntry struct {
	Key      string
	Value    []byte
	Revision uint64
}

// KVStore wraps a JetStream KV bucket with per-operation timeouts and the
// service error taxonomy.
type KVStore struct {
	bucket  jetstream.KeyValue
	timeout time.Duration
}

// NewKVStore wraps a bucket. A zero timeout disables the per-operation
// deadline.
func (c *Client) NewKVStore(bucket jetstream.KeyValue, timeout time.Duration) *KVStore {
	return &KVStore{bucket: bucket, timeout: timeout}
}

func (kv *KVStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if kv.timeout > 0 {
		return context.WithTimeout(ctx, kv.timeout)
	}
	return ctx, func() {}
}

// Get retrieves a value with its revision. A missing key is an invalid
// (non-retryable) error; everything else is transient.
func (kv *KVStore) Get(ctx context.Context, key string) (*KVEntry, error) {
	ctx, cancel := kv.withTimeout(ctx)
	defer cancel()

	entry, err := kv.bucket.Get(ctx, key)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %s", errors.ErrKeyNotFound, key),
				"KVStore", "Get", "read key")
		}
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrStorageUnavailable, err),
			"KVStore", "Get", "read key")
	}
	return &KVEntry{Key: key, Value: entry.Value(), Revision: entry.Revision()}, nil
}

// Put creates or updates a key, last writer wins.
func (kv *KVStore) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	ctx, cancel := kv.withTimeout(ctx)
	defer cancel()

	rev, err := kv.bucket.Put(ctx, key, value)
	if err != nil {
		return 0, errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrStorageUnavailable, err),
			"KVStore", "Put", "write key")
	}
	return rev, nil
}

// Delete removes a key.
func (kv *KVStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := kv.withTimeout(ctx)
	defer cancel()

	if err := kv.bucket.Delete(ctx, key); err != nil {
		if stderrors.Is(err, jetstream.ErrKeyNotFound) {
			return errors.WrapInvalid(
				fmt.Errorf("%w: %s", errors.ErrKeyNotFound, key),
				"KVStore", "Delete", "delete key")
		}
		return errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrStorageUnavailable, err),
			"KVStore", "Delete", "delete key")
	}
	return nil
}

// Watch creates a long-lived watcher for keys matching pattern. No timeout
// is applied; the watcher lives until ctx is cancelled or Stop is called.
func (kv *KVStore) Watch(ctx context.Context, pattern string) (jetstream.KeyWatcher, error) {
	watcher, err := kv.bucket.Watch(ctx, pattern)
	if err != nil {
		return nil, errors.WrapTransient(err, "KVStore", "Watch", "create watcher")
	}
	return watcher, nil
}
