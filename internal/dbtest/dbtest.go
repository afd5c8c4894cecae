// Package dbtest wires an in-memory SQLite database into the db package so
// store-level code can be exercised without a running Postgres.
package dbtest

import (
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"notifyd/internal/db"
)

// schema mirrors internal/migrations/migrations/000001_init.up.sql in SQLite
// dialect. Keep the two in sync when columns change.
const schema = `
CREATE TABLE users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    email TEXT UNIQUE NOT NULL,
    password TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'user',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE notifications (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    actor_id INTEGER,
    ntype TEXT NOT NULL,
    entity_type TEXT,
    entity_id INTEGER,
    title TEXT NOT NULL,
    body TEXT NOT NULL,
    payload TEXT NOT NULL DEFAULT '{}',
    link TEXT,
    is_read BOOLEAN NOT NULL DEFAULT FALSE,
    read_at DATETIME,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE notification_recipients (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    notification_id INTEGER NOT NULL,
    user_id INTEGER NOT NULL,
    delivered_at DATETIME,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE notification_prefs (
    user_id INTEGER NOT NULL,
    ntype TEXT NOT NULL,
    allow_web BOOLEAN NOT NULL DEFAULT TRUE,
    allow_email BOOLEAN NOT NULL DEFAULT FALSE,
    allow_push BOOLEAN NOT NULL DEFAULT FALSE,
    mute_until DATETIME,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (user_id, ntype)
);

CREATE TABLE subscriptions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    entity_type TEXT,
    entity_id INTEGER,
    event TEXT NOT NULL,
    enabled BOOLEAN NOT NULL DEFAULT TRUE,
    channels TEXT NOT NULL DEFAULT 'web',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME
);

CREATE TABLE channel_queue (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    notification_id INTEGER NOT NULL,
    channel TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    scheduled_at DATETIME NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE devices (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    kind TEXT NOT NULL,
    endpoint TEXT NOT NULL DEFAULT '',
    fingerprint TEXT UNIQUE NOT NULL,
    user_agent TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_used_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Setup opens a fresh in-memory database, applies the schema and swaps it
// into db.DB for the duration of the test.
func Setup(t *testing.T) *sqlx.DB {
	t.Helper()

	conn, err := sqlx.Connect("sqlite", ":memory:?_time_format=sqlite")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// A second pool connection would see an empty :memory: database.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(schema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}

	prev := db.DB
	db.DB = conn
	t.Cleanup(func() {
		db.DB = prev
		conn.Close()
	})
	return conn
}

// SeedUser inserts a user row and returns its id.
func SeedUser(t *testing.T, email string) int64 {
	t.Helper()

	u, err := db.CreateUser(email, "x", "user")
	if err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return u.ID
}

// SeedNotification inserts a notification plus its recipient row and returns
// (notificationID, recipientID).
func SeedNotification(t *testing.T, userID int64, ntype, title string) (int64, int64) {
	t.Helper()

	n := &db.Notification{
		UserID:    userID,
		Type:      ntype,
		Title:     title,
		Body:      title,
		CreatedAt: time.Now().UTC(),
	}
	nid, err := db.InsertNotification(n)
	if err != nil {
		t.Fatalf("seed notification: %v", err)
	}
	rid, err := db.InsertRecipient(nid, userID)
	if err != nil {
		t.Fatalf("seed recipient: %v", err)
	}
	return nid, rid
}
