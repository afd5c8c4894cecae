package db

import (
	"database/sql"
	"time"
)

// TypePreference holds the per (user, notification type) channel toggles.
// Absence of a row means defaults: web allowed, email/push denied, no mute.
type TypePreference struct {
	UserID     int64      `db:"user_id" json:"user_id"`
	Type       string     `db:"ntype" json:"type"`
	AllowWeb   bool       `db:"allow_web" json:"allow_web"`
	AllowEmail bool       `db:"allow_email" json:"allow_email"`
	AllowPush  bool       `db:"allow_push" json:"allow_push"`
	MuteUntil  *time.Time `db:"mute_until" json:"mute_until,omitempty"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

func (p *TypePreference) Muted(now time.Time) bool {
	return p.MuteUntil != nil && p.MuteUntil.After(now)
}

func GetPreference(userID int64, ntype string) (*TypePreference, error) {
	pref := &TypePreference{}
	err := DB.Get(pref, `
		SELECT user_id, ntype, allow_web, allow_email, allow_push, mute_until, updated_at
		FROM notification_prefs
		WHERE user_id = $1 AND ntype = $2
	`, userID, ntype)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return pref, nil
}

func UpsertPreference(pref *TypePreference) error {
	pref.UpdatedAt = time.Now().UTC()
	_, err := DB.Exec(`
		INSERT INTO notification_prefs (user_id, ntype, allow_web, allow_email, allow_push, mute_until, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, ntype) DO UPDATE
		SET allow_web = $3,
		    allow_email = $4,
		    allow_push = $5,
		    mute_until = $6,
		    updated_at = $7
	`, pref.UserID, pref.Type, pref.AllowWeb, pref.AllowEmail, pref.AllowPush, pref.MuteUntil, pref.UpdatedAt)
	return err
}
