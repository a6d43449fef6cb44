// internal/cache/queue.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/forca/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list finished-room reports are pushed to.
const DefaultQueueName = "forca_room_results"

// ResultsQueue moves finished-room reports from the game server to the archiver.
type ResultsQueue struct {
	client *redis.Client
	name   string
}

// NewResultsQueue binds a queue to a Redis list.
func NewResultsQueue(client *redis.Client, name string) *ResultsQueue {
	if name == "" {
		name = DefaultQueueName
	}
	return &ResultsQueue{client: client, name: name}
}

// Name returns the Redis list name.
func (q *ResultsQueue) Name() string {
	return q.name
}

// PublishRoomResult serializes the report and pushes it onto the queue.
func (q *ResultsQueue) PublishRoomResult(ctx context.Context, report *models.RoomReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal RoomReport: %w", err)
	}
	if err := q.client.RPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.name, err)
	}
	return nil
}

// Pop blocks up to timeout for the next report. It returns (nil, nil) when
// the wait timed out.
func (q *ResultsQueue) Pop(ctx context.Context, timeout time.Duration) (*models.RoomReport, error) {
	res, err := q.client.BLPop(ctx, timeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("BLPop %s: %w", q.name, err)
	}
	// res[0] is the list name and res[1] the payload
	if len(res) < 2 {
		return nil, nil
	}
	var report models.RoomReport
	if err := json.Unmarshal([]byte(res[1]), &report); err != nil {
		return nil, fmt.Errorf("invalid room report: %w", err)
	}
	return &report, nil
}
