package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskEmailDelivery = "notify:email"
	TaskPushDelivery  = "notify:push"
)

// DeliveryPayload references a channel_queue row; the worker loads the rest
// from storage so a stale task never dispatches stale content.
type DeliveryPayload struct {
	QueueItemID    int64 `json:"queue_item_id"`
	NotificationID int64 `json:"notification_id"`
	UserID         int64 `json:"user_id"`
}

var client *asynq.Client

// InitQueue initializes the Redis connection for Asynq
func InitQueue() error {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	redisOpt := asynq.RedisClientOpt{
		Addr: redisAddr,
	}

	client = asynq.NewClient(redisOpt)

	slog.Info("Successfully initialized task queue", "redis_addr", redisAddr)
	return nil
}

// EnqueueDelivery creates a secondary-channel dispatch task. taskType is one
// of TaskEmailDelivery/TaskPushDelivery; processAt honors the queue item's
// scheduled time.
func EnqueueDelivery(taskType string, payload DeliveryPayload, processAt time.Time) (string, error) {
	if client == nil {
		return "", errors.New("task queue not initialized")
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %v", err)
	}

	task := asynq.NewTask(taskType, payloadBytes)

	info, err := client.Enqueue(task,
		asynq.Queue("deliveries"),
		asynq.TaskID(fmt.Sprintf("%s:%d", taskType, payload.QueueItemID)),
		asynq.ProcessAt(processAt),
		asynq.MaxRetry(3),
		asynq.Timeout(2*time.Minute),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue task: %v", err)
	}

	return info.ID, nil
}

// Close closes the Redis connection
func Close() error {
	if client != nil {
		return client.Close()
	}
	return nil
}
