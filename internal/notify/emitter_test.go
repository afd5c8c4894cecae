package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifyd/internal/db"
	"notifyd/internal/dbtest"
	"notifyd/internal/notify"
)

func setup(t *testing.T) {
	t.Helper()
	dbtest.Setup(t)
	notify.ResetPrefCache()
	t.Cleanup(notify.ResetPrefCache)
}

func strPtr(s string) *string { return &s }
func intPtr(i int64) *int64   { return &i }

func TestEmitWithDefaultPreferences(t *testing.T) {
	setup(t)
	uid := dbtest.SeedUser(t, "kofi@example.com")

	id, err := notify.Emit(context.Background(), notify.Payload{
		UserID: uid,
		Type:   "note.comment",
		Title:  "New comment",
		Body:   "Ama commented on your note",
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	// Web row plus recipient, no secondary queue items by default.
	items, err := db.FeedAfter(uid, 0, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, id, items[0].NotificationID)
	assert.Equal(t, "New comment", items[0].Title)

	queued, err := db.QueueItemsForNotification(id)
	require.NoError(t, err)
	assert.Empty(t, queued)
}

func TestEmitSuppressedByMute(t *testing.T) {
	setup(t)
	uid := dbtest.SeedUser(t, "kofi@example.com")

	mute := time.Now().UTC().Add(time.Hour)
	require.NoError(t, notify.SetPref(uid, "note.comment", notify.Preference{AllowWeb: true, MuteUntil: &mute}))

	id, err := notify.Emit(context.Background(), notify.Payload{UserID: uid, Type: "note.comment", Title: "x", Body: "x"})
	require.NoError(t, err)
	assert.Zero(t, id)

	count, err := db.UnreadCount(uid)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestEmitAfterMuteExpiry(t *testing.T) {
	setup(t)
	uid := dbtest.SeedUser(t, "kofi@example.com")

	mute := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, notify.SetPref(uid, "note.comment", notify.Preference{AllowWeb: true, MuteUntil: &mute}))

	id, err := notify.Emit(context.Background(), notify.Payload{UserID: uid, Type: "note.comment", Title: "x", Body: "x"})
	require.NoError(t, err)
	assert.NotZero(t, id)
}

func TestEmitSuppressedWhenWebDisabled(t *testing.T) {
	setup(t)
	uid := dbtest.SeedUser(t, "kofi@example.com")

	// Email alone cannot carry a delivery: secondary channels ride on the
	// web row.
	require.NoError(t, notify.SetPref(uid, "note.comment", notify.Preference{AllowEmail: true}))

	id, err := notify.Emit(context.Background(), notify.Payload{UserID: uid, Type: "note.comment", Title: "x", Body: "x"})
	require.NoError(t, err)
	assert.Zero(t, id)

	count, err := db.UnreadCount(uid)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestEmitRecordsSecondaryQueueItems(t *testing.T) {
	setup(t)
	uid := dbtest.SeedUser(t, "kofi@example.com")

	require.NoError(t, notify.SetPref(uid, "note.comment", notify.Preference{AllowWeb: true, AllowEmail: true, AllowPush: true}))

	scheduled := time.Now().UTC().Add(30 * time.Minute).Truncate(time.Second)
	id, err := notify.Emit(context.Background(), notify.Payload{
		UserID:     uid,
		Type:       "note.comment",
		Title:      "x",
		Body:       "x",
		ScheduleAt: scheduled,
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	// The broker is not running in tests; the pending rows are the contract.
	queued, err := db.QueueItemsForNotification(id)
	require.NoError(t, err)
	require.Len(t, queued, 2)
	assert.Equal(t, "email", queued[0].Channel)
	assert.Equal(t, "push", queued[1].Channel)
	for _, item := range queued {
		assert.Equal(t, db.QueueStatusPending, item.Status)
		assert.True(t, item.ScheduledAt.Equal(scheduled))
	}
}

func TestEmitChannelRestriction(t *testing.T) {
	setup(t)
	uid := dbtest.SeedUser(t, "kofi@example.com")

	require.NoError(t, notify.SetPref(uid, "note.comment", notify.Preference{AllowWeb: true, AllowEmail: true}))

	// Payload restricted to web: the allowed email channel is not attempted.
	id, err := notify.Emit(context.Background(), notify.Payload{
		UserID:   uid,
		Type:     "note.comment",
		Title:    "x",
		Body:     "x",
		Channels: []string{"web"},
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	queued, err := db.QueueItemsForNotification(id)
	require.NoError(t, err)
	assert.Empty(t, queued)

	// Restricted to email only: no web row may be created at all.
	id, err = notify.Emit(context.Background(), notify.Payload{
		UserID:   uid,
		Type:     "note.comment",
		Title:    "x",
		Body:     "x",
		Channels: []string{"email"},
	})
	require.NoError(t, err)
	assert.Zero(t, id)
}

func TestBroadcastToUsersSkipsMuted(t *testing.T) {
	setup(t)
	alice := dbtest.SeedUser(t, "alice@example.com")
	bob := dbtest.SeedUser(t, "bob@example.com")

	mute := time.Now().UTC().Add(time.Hour)
	require.NoError(t, notify.SetPref(bob, "system.maintenance", notify.Preference{AllowWeb: true, MuteUntil: &mute}))

	ids := notify.BroadcastToUsers(context.Background(), []int64{alice, bob}, notify.Payload{
		Type:  "system.maintenance",
		Title: "Maintenance window",
		Body:  "Saturday 02:00 UTC",
	})
	require.Len(t, ids, 1)

	aliceCount, err := db.UnreadCount(alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), aliceCount)

	bobCount, err := db.UnreadCount(bob)
	require.NoError(t, err)
	assert.Zero(t, bobCount)
}

func TestBroadcastToSubscribers(t *testing.T) {
	setup(t)
	alice := dbtest.SeedUser(t, "alice@example.com")
	bob := dbtest.SeedUser(t, "bob@example.com")
	carol := dbtest.SeedUser(t, "carol@example.com")

	require.NoError(t, db.UpsertSubscription(alice, strPtr("project"), intPtr(42), "project.updated", []string{"web"}))
	require.NoError(t, db.UpsertSubscription(bob, strPtr("project"), intPtr(42), "project.updated", []string{"web"}))
	// Carol subscribed email-only: no web row, so nothing lands.
	require.NoError(t, db.UpsertSubscription(carol, strPtr("project"), intPtr(42), "project.updated", []string{"email"}))

	mute := time.Now().UTC().Add(time.Hour)
	require.NoError(t, notify.SetPref(bob, "project.updated", notify.Preference{AllowWeb: true, MuteUntil: &mute}))

	ids, err := notify.BroadcastToSubscribers(context.Background(), "project.updated", strPtr("project"), intPtr(42), notify.Payload{
		Title: "Project updated",
		Body:  "Milestone closed",
	})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	items, err := db.ListNotifications(alice, 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "project.updated", items[0].Type)

	for _, uid := range []int64{bob, carol} {
		count, err := db.UnreadCount(uid)
		require.NoError(t, err)
		assert.Zero(t, count)
	}
}
