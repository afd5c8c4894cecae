package notify

import (
	"log/slog"
	"sync"
	"time"

	"notifyd/internal/db"
)

// FailOpen controls what a preference check returns when storage is
// unavailable: true delivers on defaults rather than dropping, false
// suppresses. Set once at startup from PREF_FAIL_OPEN.
var FailOpen = true

// Preference is the effective per (user, type) channel permission after
// defaults are applied: web allowed, email/push denied, not muted.
type Preference struct {
	AllowWeb   bool
	AllowEmail bool
	AllowPush  bool
	MuteUntil  *time.Time
}

func (p Preference) Muted(now time.Time) bool {
	return p.MuteUntil != nil && p.MuteUntil.After(now)
}

func defaultPreference() Preference {
	return Preference{AllowWeb: true}
}

type prefKey struct {
	userID int64
	ntype  string
}

type prefCacheEntry struct {
	pref      Preference
	expiresAt time.Time
}

// Process-local cache with no cross-process invalidation: a preference
// change lands on cache expiry or on a Live lookup. Bounded by TTL.
var (
	prefMu    sync.Mutex
	prefCache = make(map[prefKey]prefCacheEntry)
)

const prefCacheTTL = time.Minute

// EffectivePref returns the cached effective preference for (user, type).
func EffectivePref(userID int64, ntype string) Preference {
	key := prefKey{userID: userID, ntype: ntype}

	prefMu.Lock()
	if entry, hit := prefCache[key]; hit && time.Now().Before(entry.expiresAt) {
		prefMu.Unlock()
		return entry.pref
	}
	prefMu.Unlock()

	return LivePref(userID, ntype)
}

// LivePref bypasses the cache and re-fetches from storage, refreshing the
// cache on the way out. The streaming loop uses this for its per-row
// delivery check.
func LivePref(userID int64, ntype string) Preference {
	pref, err := lookupPref(userID, ntype)
	if err != nil {
		slog.Warn("preference lookup failed", "user_id", userID, "type", ntype, "fail_open", FailOpen, "error", err)
		if FailOpen {
			return defaultPreference()
		}
		return Preference{}
	}

	prefMu.Lock()
	prefCache[prefKey{userID: userID, ntype: ntype}] = prefCacheEntry{pref: pref, expiresAt: time.Now().Add(prefCacheTTL)}
	prefMu.Unlock()

	return pref
}

func lookupPref(userID int64, ntype string) (Preference, error) {
	row, err := db.GetPreference(userID, ntype)
	if err == db.ErrNotFound {
		return defaultPreference(), nil
	}
	if err != nil {
		return Preference{}, err
	}
	return Preference{
		AllowWeb:   row.AllowWeb,
		AllowEmail: row.AllowEmail,
		AllowPush:  row.AllowPush,
		MuteUntil:  row.MuteUntil,
	}, nil
}

// SetPref upserts the stored preference and drops the cache entry so the
// next lookup in this process sees the new value immediately.
func SetPref(userID int64, ntype string, pref Preference) error {
	err := db.UpsertPreference(&db.TypePreference{
		UserID:     userID,
		Type:       ntype,
		AllowWeb:   pref.AllowWeb,
		AllowEmail: pref.AllowEmail,
		AllowPush:  pref.AllowPush,
		MuteUntil:  pref.MuteUntil,
	})
	if err != nil {
		return err
	}

	prefMu.Lock()
	delete(prefCache, prefKey{userID: userID, ntype: ntype})
	prefMu.Unlock()

	return nil
}

// ResetPrefCache empties the process-local preference cache.
func ResetPrefCache() {
	prefMu.Lock()
	prefCache = make(map[prefKey]prefCacheEntry)
	prefMu.Unlock()
}
