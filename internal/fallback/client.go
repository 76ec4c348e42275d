// Package fallback advances a service request to its next alternative
// provider when the primary fails to convert, either on an explicit
// payment-failure signal or when the conversion window closes. Scheduling
// runs on asynq so the deadline survives process restarts.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadmarket_backend/internal/tasks"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Ping verifies the Redis connection before any task is enqueued, so a
// bad REDIS_URL surfaces at startup instead of on the first lead.
func Ping(ctx context.Context, redisOpt asynq.RedisConnOpt) error {
	client, ok := redisOpt.MakeRedisClient().(redis.UniversalClient)
	if !ok {
		return fmt.Errorf("unsupported redis connection type %T", redisOpt)
	}
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Client enqueues scheduler tasks from the API process.
type Client struct {
	client *asynq.Client
	queue  string
	log    *logger.Logger
}

// NewClient creates a task client on the given redis connection.
func NewClient(redisOpt asynq.RedisConnOpt, queue string, log *logger.Logger) *Client {
	return &Client{client: asynq.NewClient(redisOpt), queue: queue, log: log}
}

// Close releases the underlying redis connections.
func (c *Client) Close() error {
	return c.client.Close()
}

// ScheduleConversionCheck books the conversion check to run at the
// deadline. Late execution is fine; the check re-derives everything from
// stored state when it runs.
func (c *Client) ScheduleConversionCheck(ctx context.Context, serviceRequestID, leadID uuid.UUID, at time.Time) error {
	task, err := tasks.NewConversionCheckTask(serviceRequestID, leadID)
	if err != nil {
		return err
	}

	info, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.ProcessAt(at),
		asynq.MaxRetry(5),
	)
	if err != nil {
		return fmt.Errorf("enqueue conversion check: %w", err)
	}

	c.log.Info("conversion check scheduled", "task_id", info.ID, "lead_id", leadID, "process_at", at)
	return nil
}

// EnqueueBusinessGeocode queues a lazy geocode for a business.
func (c *Client) EnqueueBusinessGeocode(ctx context.Context, businessID uuid.UUID) error {
	task, err := tasks.NewBusinessGeocodeTask(businessID)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.MaxRetry(3),
		asynq.Unique(24*time.Hour),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			return nil
		}
		return fmt.Errorf("enqueue business geocode: %w", err)
	}
	return nil
}
