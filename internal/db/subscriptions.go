package db

import (
	"strings"
	"time"
)

// Subscription is a durable opt-in: (user, entity, event) -> channels.
// EntityType/EntityID may both be nil for a global subscription to an event
// class; matching treats null-equals-null as a match.
type Subscription struct {
	ID         int64      `db:"id" json:"id"`
	UserID     int64      `db:"user_id" json:"user_id"`
	EntityType *string    `db:"entity_type" json:"entity_type,omitempty"`
	EntityID   *int64     `db:"entity_id" json:"entity_id,omitempty"`
	Event      string     `db:"event" json:"event"`
	Enabled    bool       `db:"enabled" json:"enabled"`
	Channels   string     `db:"channels" json:"channels"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

func (s *Subscription) ChannelList() []string {
	if s.Channels == "" {
		return nil
	}
	return strings.Split(s.Channels, ",")
}

// The unique key contains nullable columns, so the upsert is a null-safe
// UPDATE followed by an INSERT when nothing matched, rather than ON CONFLICT.

// UpsertSubscription re-enables an existing row and replaces its channels,
// or inserts a fresh enabled row.
func UpsertSubscription(userID int64, entityType *string, entityID *int64, event string, channels []string) error {
	now := time.Now().UTC()
	chans := strings.Join(channels, ",")

	res, err := DB.Exec(`
		UPDATE subscriptions
		SET enabled = TRUE, channels = $1, updated_at = $2
		WHERE user_id = $3
		  AND ((entity_type IS NULL AND $4 IS NULL) OR entity_type = $4)
		  AND ((entity_id IS NULL AND $5 IS NULL) OR entity_id = $5)
		  AND event = $6
	`, chans, now, userID, entityType, entityID, event)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	_, err = DB.Exec(`
		INSERT INTO subscriptions (user_id, entity_type, entity_id, event, enabled, channels, created_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, $6)
	`, userID, entityType, entityID, event, chans, now)
	return err
}

// DisableSubscription soft-disables a subscription; the row is retained.
func DisableSubscription(userID int64, entityType *string, entityID *int64, event string) error {
	_, err := DB.Exec(`
		UPDATE subscriptions
		SET enabled = FALSE, updated_at = $1
		WHERE user_id = $2
		  AND ((entity_type IS NULL AND $3 IS NULL) OR entity_type = $3)
		  AND ((entity_id IS NULL AND $4 IS NULL) OR entity_id = $4)
		  AND event = $5
	`, time.Now().UTC(), userID, entityType, entityID, event)
	return err
}

// SubscribersFor returns the enabled subscriptions matching the exact
// (event, entityType, entityID) triple, null-equals-null included.
func SubscribersFor(event string, entityType *string, entityID *int64) ([]Subscription, error) {
	subs := []Subscription{}
	err := DB.Select(&subs, `
		SELECT id, user_id, entity_type, entity_id, event, enabled, channels, created_at, updated_at
		FROM subscriptions
		WHERE event = $1
		  AND ((entity_type IS NULL AND $2 IS NULL) OR entity_type = $2)
		  AND ((entity_id IS NULL AND $3 IS NULL) OR entity_id = $3)
		  AND enabled = TRUE
		ORDER BY id ASC
	`, event, entityType, entityID)
	if err != nil {
		return nil, err
	}
	return subs, nil
}
