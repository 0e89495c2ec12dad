// Package templatestore resolves named template identifiers to raw template
// text. The backing store is a NATS key-value bucket so template documents
// can be updated at runtime without redeploying the pipeline; a watcher
// surfaces those updates so the service can rebuild its collection.
package templatestore

import (
	"context"
	stderrors "errors"
	"fmt"
	"unicode/utf8"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/NANATribe/iomt-fhir/errors"
	"github.com/NANATribe/iomt-fhir/natsclient"
)

// BucketName is the KV bucket holding template documents.
const BucketName = "iomt_templates"

// Store reads and writes template documents in a NATS KV bucket.
type Store struct {
	kv *natsclient.KVStore
}

// NewStore opens (creating if needed) the template bucket.
func NewStore(ctx context.Context, client *natsclient.Client) (*Store, error) {
	if client == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("nats client cannot be nil"),
			"templatestore", "NewStore", "check client")
	}

	bucket, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
		Bucket:      BucketName,
		Description: "Device telemetry mapping template documents",
		History:     10,
	})
	if err != nil {
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: %w", errors.ErrTemplateStoreUnavailable, err),
			"templatestore", "NewStore", "create KV bucket")
	}

	return &Store{kv: client.NewKVStore(bucket, 0)}, nil
}

// Get resolves a template identifier to its UTF-8 document text. A missing
// identifier maps to ErrTemplateNotFound; store trouble maps to
// ErrTemplateStoreUnavailable so the caller can retry at the batch level.
func (s *Store) Get(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", errors.WrapInvalid(
			fmt.Errorf("template id cannot be empty"),
			"templatestore", "Get", "check id")
	}

	entry, err := s.kv.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, errors.ErrKeyNotFound) {
			return "", errors.WrapInvalid(
				fmt.Errorf("%w: %s", errors.ErrTemplateNotFound, id),
				"templatestore", "Get", "resolve template")
		}
		return "", errors.WrapTransient(
			fmt.Errorf("%w: %w", errors.ErrTemplateStoreUnavailable, err),
			"templatestore", "Get", "resolve template")
	}

	if !utf8.Valid(entry.Value) {
		return "", errors.WrapFatal(
			fmt.Errorf("%w: template %s is not valid UTF-8", errors.ErrTemplateInvalid, id),
			"templatestore", "Get", "decode template")
	}
	return string(entry.Value), nil
}

// Put stores a template document under an identifier, last writer wins.
// Used by provisioning tooling and tests; the pipeline itself only reads.
func (s *Store) Put(ctx context.Context, id, text string) error {
	if id == "" {
		return errors.WrapInvalid(
			fmt.Errorf("template id cannot be empty"),
			"templatestore", "Put", "check id")
	}
	if _, err := s.kv.Put(ctx, id, []byte(text)); err != nil {
		return errors.WrapTransient(
			fmt.Errorf("%w: %w", errors.ErrTemplateStoreUnavailable, err),
			"templatestore", "Put", "store template")
	}
	return nil
}

// Delete removes a template document.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.WrapInvalid(
			fmt.Errorf("template id cannot be empty"),
			"templatestore", "Delete", "check id")
	}
	if err := s.kv.Delete(ctx, id); err != nil {
		if stderrors.Is(err, errors.ErrKeyNotFound) {
			return errors.WrapInvalid(
				fmt.Errorf("%w: %s", errors.ErrTemplateNotFound, id),
				"templatestore", "Delete", "delete template")
		}
		return errors.WrapTransient(
			fmt.Errorf("%w: %w", errors.ErrTemplateStoreUnavailable, err),
			"templatestore", "Delete", "delete template")
	}
	return nil
}

// Watch delivers a notification each time the identified template document
// changes. The returned channel closes when ctx is cancelled.
func (s *Store) Watch(ctx context.Context, id string) (<-chan string, error) {
	watcher, err := s.kv.Watch(ctx, id)
	if err != nil {
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: %w", errors.ErrTemplateStoreUnavailable, err),
			"templatestore", "Watch", "watch template")
	}

	updates := make(chan string, 1)
	go func() {
		defer close(updates)
		defer func() { _ = watcher.Stop() }()
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-watcher.Updates():
				if !ok {
					return
				}
				// The watcher replays the current value first and sends
				// nil to mark the end of the replay; only real updates
				// matter here.
				if entry == nil || entry.Operation() != jetstream.KeyValuePut {
					continue
				}
				select {
				case updates <- string(entry.Value()):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return updates, nil
}
