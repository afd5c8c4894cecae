package db

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
)

type Notification struct {
	ID         int64           `db:"id" json:"id"`
	UserID     int64           `db:"user_id" json:"user_id"`
	ActorID    *int64          `db:"actor_id" json:"actor_id,omitempty"`
	Type       string          `db:"ntype" json:"type"`
	EntityType *string         `db:"entity_type" json:"entity_type,omitempty"`
	EntityID   *int64          `db:"entity_id" json:"entity_id,omitempty"`
	Title      string          `db:"title" json:"title"`
	Body       string          `db:"body" json:"body"`
	Payload    json.RawMessage `db:"payload" json:"payload,omitempty"`
	Link       *string         `db:"link" json:"link,omitempty"`
	IsRead     bool            `db:"is_read" json:"is_read"`
	ReadAt     *time.Time      `db:"read_at" json:"read_at,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// Recipient links a notification to one recipient. Its id is the resume
// cursor for the streaming protocol: strictly increasing per insert order.
type Recipient struct {
	ID             int64      `db:"id" json:"id"`
	NotificationID int64      `db:"notification_id" json:"notification_id"`
	UserID         int64      `db:"user_id" json:"user_id"`
	DeliveredAt    *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// FeedItem is a recipient row joined with its notification, as consumed by
// the streaming delivery loop.
type FeedItem struct {
	RecipientID    int64           `db:"recipient_id" json:"id"`
	NotificationID int64           `db:"notification_id" json:"notification_id"`
	Type           string          `db:"ntype" json:"type"`
	Title          string          `db:"title" json:"title"`
	Body           string          `db:"body" json:"body"`
	Payload        json.RawMessage `db:"payload" json:"payload,omitempty"`
	Link           *string         `db:"link" json:"link,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

func InsertNotification(n *Notification) (int64, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Payload == nil {
		n.Payload = json.RawMessage("{}")
	}
	err := DB.QueryRow(`
		INSERT INTO notifications (user_id, actor_id, ntype, entity_type, entity_id, title, body, payload, link, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, $10)
		RETURNING id
	`, n.UserID, n.ActorID, n.Type, n.EntityType, n.EntityID, n.Title, n.Body, []byte(n.Payload), n.Link, n.CreatedAt).Scan(&n.ID)
	if err != nil {
		return 0, err
	}
	return n.ID, nil
}

func InsertRecipient(notificationID, userID int64) (int64, error) {
	var id int64
	err := DB.QueryRow(`
		INSERT INTO notification_recipients (notification_id, user_id, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, notificationID, userID, time.Now().UTC()).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// FeedAfter returns recipient rows for a user past the given cursor, oldest
// first, capped at limit. Delivered rows are included; redelivery after a
// reconnect below the stamped cursor is the client's problem to dedupe.
func FeedAfter(userID, cursor int64, limit int) ([]FeedItem, error) {
	items := []FeedItem{}
	err := DB.Select(&items, `
		SELECT r.id AS recipient_id, n.id AS notification_id, n.ntype, n.title, n.body, n.payload, n.link, n.created_at
		FROM notification_recipients r
		JOIN notifications n ON n.id = r.notification_id
		WHERE r.user_id = $1 AND r.id > $2
		ORDER BY r.id ASC
		LIMIT $3
	`, userID, cursor, limit)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// MarkDelivered stamps delivered_at on the given recipient rows. Already
// stamped rows keep their original timestamp.
func MarkDelivered(recipientIDs []int64, at time.Time) error {
	if len(recipientIDs) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`
		UPDATE notification_recipients
		SET delivered_at = ?
		WHERE id IN (?) AND delivered_at IS NULL
	`, at.UTC(), recipientIDs)
	if err != nil {
		return err
	}
	_, err = DB.Exec(DB.Rebind(query), args...)
	return err
}

func GetRecipient(id int64) (*Recipient, error) {
	r := &Recipient{}
	err := DB.Get(r, `SELECT id, notification_id, user_id, delivered_at, created_at FROM notification_recipients WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func UnreadCount(userID int64) (int64, error) {
	var count int64
	err := DB.Get(&count, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`, userID)
	return count, err
}

func ListNotifications(userID int64, limit, offset int) ([]Notification, error) {
	items := []Notification{}
	err := DB.Select(&items, `
		SELECT id, user_id, actor_id, ntype, entity_type, entity_id, title, body, payload, link, is_read, read_at, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// MarkRead flips one notification to read, scoped to the owning user. A row
// belonging to someone else simply matches nothing.
func MarkRead(userID, notificationID int64) (int64, error) {
	res, err := DB.Exec(`
		UPDATE notifications
		SET is_read = TRUE, read_at = $1
		WHERE id = $2 AND user_id = $3 AND is_read = FALSE
	`, time.Now().UTC(), notificationID, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkAllRead is idempotent: with zero unread rows it affects nothing.
func MarkAllRead(userID int64) (int64, error) {
	res, err := DB.Exec(`
		UPDATE notifications
		SET is_read = TRUE, read_at = $1
		WHERE user_id = $2 AND is_read = FALSE
	`, time.Now().UTC(), userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
