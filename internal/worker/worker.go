// Package worker is the secondary-channel dispatcher: it consumes the
// delivery tasks the emitter enqueues and moves channel_queue rows from
// pending to sent or failed.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"notifyd/internal/db"
	"notifyd/internal/queue"
)

type Worker struct {
	server *asynq.Server
}

func NewWorker() *Worker {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	redisOpt := asynq.RedisClientOpt{
		Addr: redisAddr,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"deliveries": 10,
			},
		},
	)

	return &Worker{
		server: server,
	}
}

func (w *Worker) Start(ctx context.Context) error {

	mux := asynq.NewServeMux()

	mux.HandleFunc(queue.TaskEmailDelivery, w.handleEmailDelivery)
	mux.HandleFunc(queue.TaskPushDelivery, w.handlePushDelivery)

	slog.Info("Starting worker",
		"tasks", []string{queue.TaskEmailDelivery, queue.TaskPushDelivery},
		"concurrency", 10)

	if err := w.server.Start(mux); err != nil {
		return err
	}

	slog.Info("Worker started successfully")

	<-ctx.Done()

	w.server.Stop()
	slog.Info("Worker stopped")
	return nil
}

// loadDelivery resolves a task payload to the rows it references. A missing
// or already-dispatched queue item means the task is stale and is dropped.
func loadDelivery(t *asynq.Task) (*db.QueueItem, *db.Notification, *db.User, error) {
	var payload queue.DeliveryPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return nil, nil, nil, err
	}

	item, err := db.GetQueueItem(payload.QueueItemID)
	if err != nil {
		return nil, nil, nil, err
	}
	if item.Status != db.QueueStatusPending {
		return nil, nil, nil, nil
	}

	user, err := db.GetUserByID(payload.UserID)
	if err != nil {
		return nil, nil, nil, err
	}

	notification := &db.Notification{}
	if err := db.DB.Get(notification, `
		SELECT id, user_id, actor_id, ntype, entity_type, entity_id, title, body, payload, link, is_read, read_at, created_at
		FROM notifications WHERE id = $1
	`, item.NotificationID); err != nil {
		return nil, nil, nil, err
	}

	return item, notification, user, nil
}

func (w *Worker) handleEmailDelivery(ctx context.Context, t *asynq.Task) error {
	item, notification, user, err := loadDelivery(t)
	if err != nil {
		slog.Error("email delivery: failed to load work item", "error", err)
		return err
	}
	if item == nil {
		return nil
	}

	if err := sendEmail(user.Email, notification.Title, notification.Body, notification.Link); err != nil {
		slog.Error("email delivery failed", "queue_item_id", item.ID, "user_id", user.ID, "error", err)
		if statusErr := db.UpdateQueueItemStatus(item.ID, db.QueueStatusFailed); statusErr != nil {
			slog.Error("failed to update queue item status", "queue_item_id", item.ID, "error", statusErr)
		}
		return err
	}

	if err := db.UpdateQueueItemStatus(item.ID, db.QueueStatusSent); err != nil {
		slog.Error("failed to update queue item status", "queue_item_id", item.ID, "error", err)
		return err
	}

	slog.Info("email delivered", "queue_item_id", item.ID, "user_id", user.ID, "notification_id", notification.ID)
	return nil
}

func (w *Worker) handlePushDelivery(ctx context.Context, t *asynq.Task) error {
	item, notification, user, err := loadDelivery(t)
	if err != nil {
		slog.Error("push delivery: failed to load work item", "error", err)
		return err
	}
	if item == nil {
		return nil
	}

	if err := sendPush(ctx, user.ID, notification); err != nil {
		slog.Error("push delivery failed", "queue_item_id", item.ID, "user_id", user.ID, "error", err)
		if statusErr := db.UpdateQueueItemStatus(item.ID, db.QueueStatusFailed); statusErr != nil {
			slog.Error("failed to update queue item status", "queue_item_id", item.ID, "error", statusErr)
		}
		return err
	}

	if err := db.UpdateQueueItemStatus(item.ID, db.QueueStatusSent); err != nil {
		slog.Error("failed to update queue item status", "queue_item_id", item.ID, "error", err)
		return err
	}

	slog.Info("push delivered", "queue_item_id", item.ID, "user_id", user.ID, "notification_id", notification.ID)
	return nil
}
