// internal/cache/redis.go
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jason-s-yu/forca/internal/store"
	"github.com/redis/go-redis/v9"
)

// DefaultNamespace prefixes every key the backend writes.
const DefaultNamespace = "forca"

// RedisOptions holds the connection settings read from the environment.
type RedisOptions struct {
	Addr     string
	DB       int
	Password string
}

// ConnectRedis opens a client and verifies it with a PING.
func ConnectRedis(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		DB:       opts.DB,
		Password: opts.Password,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

// RedisBackend is a store.Backend on Redis. Transactions use WATCH/MULTI/EXEC
// and change notifications travel over the {namespace}:changes channel.
type RedisBackend struct {
	client  *redis.Client
	ns      string
	channel string
}

// NewRedisBackend wraps an already connected client.
func NewRedisBackend(client *redis.Client, namespace string) *RedisBackend {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &RedisBackend{
		client:  client,
		ns:      namespace,
		channel: namespace + ":changes",
	}
}

func (b *RedisBackend) key(k string) string {
	return b.ns + ":" + k
}

func (b *RedisBackend) keys(ks []string) []string {
	out := make([]string, len(ks))
	for i, k := range ks {
		out[i] = b.key(k)
	}
	return out
}

// Get returns the values of the keys that exist.
func (b *RedisBackend) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	vals, err := b.client.MGet(ctx, b.keys(keys)...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis MGET: %w", err)
	}
	collect(out, keys, vals)
	return out, nil
}

// Txn watches keys, hands their values to fn and commits fn's writes in a
// MULTI block. A watched key changing underneath yields store.ErrConflict.
func (b *RedisBackend) Txn(ctx context.Context, keys []string, fn func(map[string][]byte) (map[string][]byte, error)) error {
	err := b.client.Watch(ctx, func(tx *redis.Tx) error {
		cur := make(map[string][]byte, len(keys))
		if len(keys) > 0 {
			vals, err := tx.MGet(ctx, b.keys(keys)...).Result()
			if err != nil {
				return fmt.Errorf("redis MGET: %w", err)
			}
			collect(cur, keys, vals)
		}

		writes, err := fn(cur)
		if err != nil {
			return err
		}
		if len(writes) == 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for k, v := range writes {
				if v == nil {
					pipe.Del(ctx, b.key(k))
					continue
				}
				pipe.Set(ctx, b.key(k), v, 0)
			}
			return nil
		})
		return err
	}, b.keys(keys)...)
	if errors.Is(err, redis.TxFailedErr) {
		return store.ErrConflict
	}
	return err
}

// Publish announces a changed path on the changes channel.
func (b *RedisBackend) Publish(ctx context.Context, path string) error {
	if err := b.client.Publish(ctx, b.channel, path).Err(); err != nil {
		return fmt.Errorf("redis PUBLISH %s: %w", b.channel, err)
	}
	return nil
}

// Subscribe streams changed paths. It returns only once Redis has confirmed
// the subscription, so no change published afterwards is missed.
func (b *RedisBackend) Subscribe(ctx context.Context) (<-chan string, func(), error) {
	ps := b.client.Subscribe(ctx, b.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("redis SUBSCRIBE %s: %w", b.channel, err)
	}

	out := make(chan string, 256)
	done := make(chan struct{})
	go func() {
		defer close(out)
		msgs := ps.Channel()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				default:
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = ps.Close()
		})
	}
	return out, cancel, nil
}

// Close closes the underlying client.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

func collect(out map[string][]byte, keys []string, vals []interface{}) {
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[keys[i]] = []byte(s)
		}
	}
}
