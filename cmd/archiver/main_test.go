// cmd/archiver/main_test.go
package main

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jason-s-yu/forca/internal/cache"
	"github.com/jason-s-yu/forca/internal/database"
	"github.com/jason-s-yu/forca/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestArchiverEndToEnd needs a local Redis and a Postgres named by
// FORCA_TEST_DATABASE_URL.
func TestArchiverEndToEnd(t *testing.T) {
	dbURL := os.Getenv("FORCA_TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("FORCA_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	rdb, err := cache.ConnectRedis(ctx, cache.RedisOptions{Addr: "localhost:6379", DB: 15})
	if err != nil {
		t.Skipf("no local redis: %v", err)
	}
	defer rdb.Close()
	pool, err := database.Connect(ctx, dbURL)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, database.EnsureSchema(ctx, pool))

	queue := cache.NewResultsQueue(rdb, "forca-test-"+t.Name())
	defer rdb.Del(context.Background(), queue.Name())

	code := fmt.Sprintf("T%05d", time.Now().UnixNano()%100000)
	started := time.Now().UnixMilli()
	require.NoError(t, queue.PublishRoomResult(ctx, &models.RoomReport{
		RoomCode:   code,
		ModuleID:   "animais",
		ModuleName: "Animais",
		Status:     models.StatusFinished,
		TermCount:  2,
		StartedAt:  started,
		FinishedAt: started + 1000,
		Standings: []models.Standing{
			{Rank: 1, PlayerID: "p1", Name: "Ana", Score: 200, Won: 2},
		},
	}))

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	a := NewArchiver(queue, pool, logger, 1, 50*time.Millisecond)

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- a.Run(runCtx) }()

	assert.Eventually(t, func() bool {
		var n int
		err := pool.QueryRow(ctx, `SELECT count(*) FROM room_result_players WHERE room_code = $1`, code).Scan(&n)
		return err == nil && n == 1
	}, 10*time.Second, 100*time.Millisecond)

	stop()
	assert.NoError(t, <-done)
}

func TestNewArchiverDefaults(t *testing.T) {
	a := NewArchiver(nil, nil, logrus.New(), 0, 0)
	assert.Equal(t, 1, a.batchSize)
	assert.Equal(t, 500*time.Millisecond, a.flushDelay)
}
