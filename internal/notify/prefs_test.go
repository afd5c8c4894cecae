package notify_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifyd/internal/dbtest"
	"notifyd/internal/notify"
)

func TestEffectivePrefDefaults(t *testing.T) {
	setup(t)
	uid := dbtest.SeedUser(t, "kofi@example.com")

	pref := notify.EffectivePref(uid, "note.comment")
	assert.True(t, pref.AllowWeb)
	assert.False(t, pref.AllowEmail)
	assert.False(t, pref.AllowPush)
	assert.False(t, pref.Muted(time.Now()))
}

func TestSetPrefDropsCacheEntry(t *testing.T) {
	setup(t)
	uid := dbtest.SeedUser(t, "kofi@example.com")

	// Prime the cache with the default.
	pref := notify.EffectivePref(uid, "note.comment")
	require.True(t, pref.AllowWeb)

	require.NoError(t, notify.SetPref(uid, "note.comment", notify.Preference{AllowWeb: false, AllowEmail: true}))

	// The write invalidated the cached default.
	pref = notify.EffectivePref(uid, "note.comment")
	assert.False(t, pref.AllowWeb)
	assert.True(t, pref.AllowEmail)
}

func TestLivePrefFailMode(t *testing.T) {
	setup(t)
	// No user row needed: break the lookup by pointing at a closed handle.
	dbtest.Setup(t).Close()

	t.Cleanup(func() { notify.FailOpen = true })

	notify.FailOpen = true
	pref := notify.LivePref(1, "note.comment")
	assert.True(t, pref.AllowWeb)

	notify.FailOpen = false
	pref = notify.LivePref(1, "note.comment")
	assert.False(t, pref.AllowWeb)
	assert.False(t, pref.AllowEmail)
	assert.False(t, pref.AllowPush)
}
