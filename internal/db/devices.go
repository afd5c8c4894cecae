package db

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Device identifies a browser session capable of receiving deliveries.
type Device struct {
	ID          int64     `db:"id" json:"id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	Kind        string    `db:"kind" json:"kind"`
	Endpoint    string    `db:"endpoint" json:"endpoint"`
	Fingerprint string    `db:"fingerprint" json:"fingerprint"`
	UserAgent   string    `db:"user_agent" json:"user_agent"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	LastUsedAt  time.Time `db:"last_used_at" json:"last_used_at"`
}

// DeviceFingerprint collapses repeated connections from one browser to one
// row: user id, session id, truncated client address, user agent.
func DeviceFingerprint(userID int64, sessionID, remoteAddr, userAgent string) string {
	if len(remoteAddr) > 16 {
		remoteAddr = remoteAddr[:16]
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s|%s|%s", userID, sessionID, remoteAddr, userAgent)))
	return hex.EncodeToString(sum[:])
}

// UpsertDevice registers a device or refreshes last_used_at on the existing
// row with the same fingerprint. Returns the row id.
func UpsertDevice(userID int64, kind, endpoint, fingerprint, userAgent string) (int64, error) {
	now := time.Now().UTC()
	var id int64
	err := DB.QueryRow(`
		INSERT INTO devices (user_id, kind, endpoint, fingerprint, user_agent, created_at, last_used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (fingerprint) DO UPDATE
		SET endpoint = $3,
		    user_agent = $5,
		    last_used_at = $6
		RETURNING id
	`, userID, kind, endpoint, fingerprint, userAgent, now).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func TouchDevice(id int64) error {
	_, err := DB.Exec(`UPDATE devices SET last_used_at = $1 WHERE id = $2`, time.Now().UTC(), id)
	return err
}

// PushDevices lists the push-capable devices registered for a user.
func PushDevices(userID int64) ([]Device, error) {
	devices := []Device{}
	err := DB.Select(&devices, `
		SELECT id, user_id, kind, endpoint, fingerprint, user_agent, created_at, last_used_at
		FROM devices
		WHERE user_id = $1 AND kind = 'push'
		ORDER BY last_used_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return devices, nil
}
