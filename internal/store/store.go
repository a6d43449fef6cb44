// internal/store/store.go
package store

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrUnavailable is returned by every operation when the tree was never
	// configured or has been closed.
	ErrUnavailable = errors.New("store unavailable")

	// ErrMaxRetries is returned when a transaction keeps losing the
	// optimistic-concurrency race.
	ErrMaxRetries = errors.New("store transaction retries exhausted")

	// ErrConflict is returned by a Backend when a watched key changed between
	// the read and the commit of a Txn. The tree retries on it.
	ErrConflict = errors.New("store transaction conflict")
)

// Tree is a path-addressed JSON tree with optimistic transactions and change
// subscriptions. Paths are slash separated, e.g. "rooms/ABC123/players/p1".
type Tree interface {
	Read(ctx context.Context, path string) (Snapshot, error)
	Write(ctx context.Context, path string, value any) error
	Update(ctx context.Context, path string, fields map[string]any) error
	Remove(ctx context.Context, path string) error
	Transact(ctx context.Context, path string, update UpdateFunc) (TxResult, error)
	Subscribe(ctx context.Context, path string, fn func(Snapshot)) (func(), error)
}

// UpdateFunc receives the current JSON value at the path (nil when absent)
// and returns the replacement. Returning a nil value aborts the transaction
// without error. It may run several times when writers conflict.
type UpdateFunc func(current json.RawMessage) (any, error)

// TxResult reports the outcome of Transact. Snapshot holds the committed value,
// or the value seen when the update aborted.
type TxResult struct {
	Committed bool
	Snapshot  Snapshot
}

// Snapshot is an immutable view of the value at a path.
type Snapshot struct {
	Path string
	raw  json.RawMessage
}

// NewSnapshot wraps raw JSON read at path.
func NewSnapshot(path string, raw json.RawMessage) Snapshot {
	return Snapshot{Path: path, raw: raw}
}

// Exists reports whether the path held a value.
func (s Snapshot) Exists() bool {
	return len(s.raw) > 0 && string(s.raw) != "null"
}

// Raw returns the JSON value, nil if the path was empty.
func (s Snapshot) Raw() json.RawMessage {
	if !s.Exists() {
		return nil
	}
	return s.raw
}

// Decode unmarshals the value into v. Decoding a missing value is a no-op.
func (s Snapshot) Decode(v any) error {
	if !s.Exists() {
		return nil
	}
	return json.Unmarshal(s.raw, v)
}

// Backend is the key/value primitive a Tree is built on.
type Backend interface {
	// Get returns the values of the keys that exist.
	Get(ctx context.Context, keys ...string) (map[string][]byte, error)

	// Txn reads keys, passes them to fn and commits the returned writes only if
	// none of the keys changed in between; otherwise it returns ErrConflict.
	// A nil value in writes deletes the key.
	Txn(ctx context.Context, keys []string, fn func(current map[string][]byte) (map[string][]byte, error)) error

	// Publish broadcasts a changed path to every subscriber.
	Publish(ctx context.Context, path string) error

	// Subscribe streams changed paths until cancel is called.
	Subscribe(ctx context.Context) (changes <-chan string, cancel func(), err error)

	Close() error
}
