package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kubeasy-dev/kubeasy-backend/internal/logger"
)

const (
	queueKeyPrefix = "demo:events:"
	queueTTL       = 24 * time.Hour
	drainBatchSize = 64
)

// EventQueue is the pull side of the demo delivery strategy: events are
// appended to a per-channel FIFO list and drained by the streaming handler on
// a fixed interval. RPUSH/LPOP keeps publish order per channel.
type EventQueue interface {
	Push(ctx context.Context, channel string, payload []byte) error
	Drain(ctx context.Context, channel string) ([][]byte, error)
	Close() error
}

type eventQueue struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewEventQueue(log *logger.Logger) (EventQueue, error) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &eventQueue{
		log: log.With("service", "DemoEventQueue"),
		rdb: rdb,
	}, nil
}

func (q *eventQueue) Push(ctx context.Context, channel string, payload []byte) error {
	if q == nil || q.rdb == nil {
		return fmt.Errorf("event queue not initialized")
	}
	key := queueKeyPrefix + channel
	if err := q.rdb.RPush(ctx, key, payload).Err(); err != nil {
		return err
	}
	// Queues for channels nobody ever drains must not accumulate forever.
	return q.rdb.Expire(ctx, key, queueTTL).Err()
}

func (q *eventQueue) Drain(ctx context.Context, channel string) ([][]byte, error) {
	if q == nil || q.rdb == nil {
		return nil, fmt.Errorf("event queue not initialized")
	}
	entries, err := q.rdb.LPopCount(ctx, queueKeyPrefix+channel, drainBatchSize).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(entries))
	for _, e := range entries {
		out = append(out, []byte(e))
	}
	return out, nil
}

func (q *eventQueue) Close() error {
	if q == nil || q.rdb == nil {
		return nil
	}
	return q.rdb.Close()
}
