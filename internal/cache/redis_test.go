// internal/cache/redis_test.go
package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jason-s-yu/forca/internal/models"
	"github.com/jason-s-yu/forca/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// localRedis returns a client on a local Redis, or skips the test.
func localRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	rdb, err := ConnectRedis(ctx, RedisOptions{Addr: "localhost:6379", DB: 15})
	if err != nil {
		t.Skipf("no local redis: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func testNamespace(t *testing.T) string {
	return "forca-test-" + t.Name() + "-" + time.Now().Format("150405.000000")
}

func TestRedisBackendTxnConflict(t *testing.T) {
	rdb := localRedis(t)
	b := NewRedisBackend(rdb, testNamespace(t))
	ctx := context.Background()

	require.NoError(t, b.Txn(ctx, []string{"doc:a"}, func(cur map[string][]byte) (map[string][]byte, error) {
		assert.Empty(t, cur)
		return map[string][]byte{"doc:a": []byte(`{"n":1}`)}, nil
	}))

	err := b.Txn(ctx, []string{"doc:a"}, func(cur map[string][]byte) (map[string][]byte, error) {
		assert.JSONEq(t, `{"n":1}`, string(cur["doc:a"]))
		// a second client writes the watched key before EXEC
		require.NoError(t, rdb.Set(ctx, b.key("doc:a"), `{"n":2}`, 0).Err())
		return map[string][]byte{"doc:a": []byte(`{"n":3}`)}, nil
	})
	assert.ErrorIs(t, err, store.ErrConflict)

	got, err := b.Get(ctx, "doc:a", "doc:missing")
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":2}`, string(got["doc:a"]))
	assert.NotContains(t, got, "doc:missing")

	require.NoError(t, b.Txn(ctx, []string{"doc:a"}, func(map[string][]byte) (map[string][]byte, error) {
		return map[string][]byte{"doc:a": nil}, nil
	}))
	got, err = b.Get(ctx, "doc:a")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisBackendBacksTree(t *testing.T) {
	rdb := localRedis(t)
	tree := store.NewKVTree(NewRedisBackend(rdb, testNamespace(t)))
	ctx := context.Background()

	fired := make(chan store.Snapshot, 8)
	unsubscribe, err := tree.Subscribe(ctx, "rooms/R1", func(s store.Snapshot) { fired <- s })
	require.NoError(t, err)
	defer unsubscribe()
	first := <-fired
	assert.False(t, first.Exists())

	require.NoError(t, tree.Write(ctx, "rooms/R1", map[string]any{
		"status":  "waiting",
		"players": map[string]any{"p1": map[string]any{"id": "p1", "score": 0}},
	}))

	select {
	case s := <-fired:
		assert.True(t, s.Exists())
	case <-time.After(3 * time.Second):
		t.Fatal("no change notification")
	}

	res, err := tree.Transact(ctx, "rooms/R1/players/p1", func(cur json.RawMessage) (any, error) {
		var p map[string]any
		require.NoError(t, json.Unmarshal(cur, &p))
		p["score"] = 100
		return p, nil
	})
	require.NoError(t, err)
	assert.True(t, res.Committed)

	require.NoError(t, tree.Remove(ctx, "rooms/R1"))
}

func TestResultsQueueRoundTrip(t *testing.T) {
	rdb := localRedis(t)
	q := NewResultsQueue(rdb, testNamespace(t))
	ctx := context.Background()

	report := &models.RoomReport{RoomCode: "ABC123", Status: models.StatusFinished, TermCount: 3}
	require.NoError(t, q.PublishRoomResult(ctx, report))

	got, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ABC123", got.RoomCode)

	empty, err := q.Pop(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, empty)
}
