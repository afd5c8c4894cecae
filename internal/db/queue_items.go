package db

import "time"

const (
	QueueStatusPending = "pending"
	QueueStatusSent    = "sent"
	QueueStatusFailed  = "failed"
)

// QueueItem is a work item for asynchronous secondary delivery (email/push).
// This service enqueues and updates status; dispatch runs in the worker.
type QueueItem struct {
	ID             int64     `db:"id" json:"id"`
	NotificationID int64     `db:"notification_id" json:"notification_id"`
	Channel        string    `db:"channel" json:"channel"`
	Status         string    `db:"status" json:"status"`
	ScheduledAt    time.Time `db:"scheduled_at" json:"scheduled_at"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

func InsertQueueItem(notificationID int64, channel string, scheduledAt time.Time) (int64, error) {
	var id int64
	err := DB.QueryRow(`
		INSERT INTO channel_queue (notification_id, channel, status, scheduled_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, notificationID, channel, QueueStatusPending, scheduledAt.UTC(), time.Now().UTC()).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func GetQueueItem(id int64) (*QueueItem, error) {
	item := &QueueItem{}
	err := DB.Get(item, `
		SELECT id, notification_id, channel, status, scheduled_at, created_at
		FROM channel_queue WHERE id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func UpdateQueueItemStatus(id int64, status string) error {
	_, err := DB.Exec(`UPDATE channel_queue SET status = $1 WHERE id = $2`, status, id)
	return err
}

func QueueItemsForNotification(notificationID int64) ([]QueueItem, error) {
	items := []QueueItem{}
	err := DB.Select(&items, `
		SELECT id, notification_id, channel, status, scheduled_at, created_at
		FROM channel_queue
		WHERE notification_id = $1
		ORDER BY id ASC
	`, notificationID)
	if err != nil {
		return nil, err
	}
	return items, nil
}
