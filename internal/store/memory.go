// internal/store/memory.go
package store

import (
	"context"
	"sync"
)

const subscriberBuffer = 256

// MemoryBackend is an in-process Backend. Every key carries a version that
// moves on each write, which is what Txn compares to detect conflicts.
// It backs tests and single-node development; state is lost on restart.
type MemoryBackend struct {
	mu       sync.RWMutex
	values   map[string][]byte
	versions map[string]uint64

	subMu  sync.Mutex
	nextID int
	subs   map[int]chan string
	closed bool
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		values:   make(map[string][]byte),
		versions: make(map[string]uint64),
		subs:     make(map[int]chan string),
	}
}

func (m *MemoryBackend) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := m.values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *MemoryBackend) Txn(ctx context.Context, keys []string, fn func(map[string][]byte) (map[string][]byte, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	seen := make(map[string]uint64, len(keys))
	cur := make(map[string][]byte, len(keys))
	for _, k := range keys {
		seen[k] = m.versions[k]
		if v, ok := m.values[k]; ok {
			cur[k] = v
		}
	}
	m.mu.RUnlock()

	// fn runs unlocked, like a client between WATCH and EXEC
	writes, err := fn(cur)
	if err != nil {
		return err
	}
	if len(writes) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for k, ver := range seen {
		if m.versions[k] != ver {
			return ErrConflict
		}
	}
	for k, v := range writes {
		m.versions[k]++
		if v == nil {
			delete(m.values, k)
			continue
		}
		m.values[k] = append([]byte(nil), v...)
	}
	return nil
}

// Publish fans the path out to subscribers. A subscriber whose buffer is full
// misses the notification.
func (m *MemoryBackend) Publish(ctx context.Context, path string) error {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- path:
		default:
		}
	}
	return nil
}

func (m *MemoryBackend) Subscribe(ctx context.Context) (<-chan string, func(), error) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	if m.closed {
		return nil, nil, ErrUnavailable
	}
	id := m.nextID
	m.nextID++
	ch := make(chan string, subscriberBuffer)
	m.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.subMu.Lock()
			defer m.subMu.Unlock()
			if c, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel, nil
}

// Close drops every subscriber.
func (m *MemoryBackend) Close() error {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	m.closed = true
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
	return nil
}
