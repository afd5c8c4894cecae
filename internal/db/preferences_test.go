package db_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifyd/internal/db"
	"notifyd/internal/dbtest"
)

func TestPreferenceAbsentMeansNotFound(t *testing.T) {
	dbtest.Setup(t)
	uid := dbtest.SeedUser(t, "kofi@example.com")

	_, err := db.GetPreference(uid, "note.comment")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestPreferenceUpsert(t *testing.T) {
	dbtest.Setup(t)
	uid := dbtest.SeedUser(t, "kofi@example.com")

	mute := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, db.UpsertPreference(&db.TypePreference{
		UserID:     uid,
		Type:       "note.comment",
		AllowWeb:   true,
		AllowEmail: true,
		MuteUntil:  &mute,
	}))

	pref, err := db.GetPreference(uid, "note.comment")
	require.NoError(t, err)
	assert.True(t, pref.AllowWeb)
	assert.True(t, pref.AllowEmail)
	assert.False(t, pref.AllowPush)
	require.NotNil(t, pref.MuteUntil)
	assert.True(t, pref.MuteUntil.Equal(mute))

	// Second upsert overwrites in place, clearing the mute.
	require.NoError(t, db.UpsertPreference(&db.TypePreference{
		UserID:   uid,
		Type:     "note.comment",
		AllowWeb: false,
	}))

	pref, err = db.GetPreference(uid, "note.comment")
	require.NoError(t, err)
	assert.False(t, pref.AllowWeb)
	assert.False(t, pref.AllowEmail)
	assert.Nil(t, pref.MuteUntil)
}

func TestMutedWindow(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.False(t, (&db.TypePreference{}).Muted(now))
	assert.False(t, (&db.TypePreference{MuteUntil: &past}).Muted(now))
	assert.True(t, (&db.TypePreference{MuteUntil: &future}).Muted(now))
}
