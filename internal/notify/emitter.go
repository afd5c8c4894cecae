// Package notify is the single write path for notifications: emit for one
// recipient, broadcast for many, fan-out to subscribers of an entity event.
package notify

import (
	"context"
	"log/slog"
	"time"

	"notifyd/internal/db"
	"notifyd/internal/queue"
)

// Emit persists one notification for p.UserID, honoring the effective type
// preference. Returns 0 when delivery was fully suppressed: an active mute
// window, or a disallowed web channel. Secondary channels ride on the web
// row's existence, so without it email/push are skipped too.
func Emit(ctx context.Context, p Payload) (int64, error) {
	pref := EffectivePref(p.UserID, p.Type)

	if pref.Muted(time.Now()) {
		return 0, nil
	}

	if !pref.AllowWeb || !p.channelAllowed(ChannelWeb) {
		return 0, nil
	}

	n := &db.Notification{
		UserID:     p.UserID,
		ActorID:    p.ActorID,
		Type:       p.Type,
		EntityType: p.EntityType,
		EntityID:   p.EntityID,
		Title:      p.Title,
		Body:       p.Body,
		Payload:    p.Data,
		Link:       p.Link,
	}
	id, err := db.InsertNotification(n)
	if err != nil {
		return 0, err
	}

	if _, err := db.InsertRecipient(id, p.UserID); err != nil {
		return 0, err
	}

	scheduledAt := p.ScheduleAt
	if scheduledAt.IsZero() {
		scheduledAt = time.Now()
	}

	if pref.AllowEmail && p.channelAllowed(ChannelEmail) {
		enqueueSecondary(queue.TaskEmailDelivery, ChannelEmail, id, p.UserID, scheduledAt)
	}
	if pref.AllowPush && p.channelAllowed(ChannelPush) {
		enqueueSecondary(queue.TaskPushDelivery, ChannelPush, id, p.UserID, scheduledAt)
	}

	return id, nil
}

// enqueueSecondary records the pending queue item and hands it to the task
// queue. A broker failure leaves the pending row behind for reconciliation
// and never fails the emit.
func enqueueSecondary(taskType, channel string, notificationID, userID int64, scheduledAt time.Time) {
	itemID, err := db.InsertQueueItem(notificationID, channel, scheduledAt)
	if err != nil {
		slog.Error("failed to insert queue item", "notification_id", notificationID, "channel", channel, "error", err)
		return
	}

	_, err = queue.EnqueueDelivery(taskType, queue.DeliveryPayload{
		QueueItemID:    itemID,
		NotificationID: notificationID,
		UserID:         userID,
	}, scheduledAt)
	if err != nil {
		slog.Warn("failed to enqueue delivery task", "queue_item_id", itemID, "channel", channel, "error", err)
	}
}

// BroadcastToUsers emits once per user, collecting the ids of the rows that
// were actually created. Individual failures never abort the batch.
func BroadcastToUsers(ctx context.Context, userIDs []int64, p Payload) []int64 {
	ids := make([]int64, 0, len(userIDs))
	for _, userID := range userIDs {
		p.UserID = userID
		id, err := Emit(ctx, p)
		if err != nil {
			slog.Error("broadcast emit failed", "user_id", userID, "type", p.Type, "error", err)
			continue
		}
		if id > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// BroadcastToSubscribers fans out to the enabled subscribers of an
// (event, entity) pair. Each subscription's channel set restricts delivery;
// the subscriber's type preference restricts it further inside Emit.
func BroadcastToSubscribers(ctx context.Context, event string, entityType *string, entityID *int64, p Payload) ([]int64, error) {
	subs, err := db.SubscribersFor(event, entityType, entityID)
	if err != nil {
		return nil, err
	}

	p.Type = event
	p.EntityType = entityType
	p.EntityID = entityID

	ids := make([]int64, 0, len(subs))
	for _, sub := range subs {
		p.UserID = sub.UserID
		p.Channels = sub.ChannelList()
		id, err := Emit(ctx, p)
		if err != nil {
			slog.Error("subscriber emit failed", "user_id", sub.UserID, "event", event, "error", err)
			continue
		}
		if id > 0 {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
