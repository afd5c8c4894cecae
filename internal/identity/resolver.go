// Package identity reconciles the core directory with the local user store.
// Reconciliation is one-directional: the directory is authoritative for
// email/role, the local store is authoritative for notification ownership.
package identity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"notifyd/internal/db"
	"notifyd/internal/directory"
	"notifyd/utils"
)

type cacheEntry struct {
	localID   int64
	ok        bool
	expiresAt time.Time
}

// Resolver maps directory user ids to local user ids, provisioning a shadow
// record when no local account exists yet. Every outcome, including "no
// mapping", is cached with a TTL to bound repeated directory calls.
type Resolver struct {
	dir directory.Directory
	ttl time.Duration

	mu    sync.Mutex
	cache map[int64]cacheEntry
}

func NewResolver(dir directory.Directory) *Resolver {
	return &Resolver{
		dir:   dir,
		ttl:   5 * time.Minute,
		cache: make(map[int64]cacheEntry),
	}
}

// localRole collapses directory roles onto the two local ones.
func localRole(directoryRole string) string {
	switch directoryRole {
	case "admin", "manager", "root":
		return "admin"
	default:
		return "user"
	}
}

// Resolve returns the local user id for a directory user id. The second
// return is false when no mapping exists and none could be provisioned;
// callers skip that recipient.
func (r *Resolver) Resolve(ctx context.Context, directoryID int64) (int64, bool) {
	r.mu.Lock()
	if entry, hit := r.cache[directoryID]; hit && time.Now().Before(entry.expiresAt) {
		r.mu.Unlock()
		return entry.localID, entry.ok
	}
	r.mu.Unlock()

	localID, ok := r.resolve(ctx, directoryID)

	r.mu.Lock()
	r.cache[directoryID] = cacheEntry{localID: localID, ok: ok, expiresAt: time.Now().Add(r.ttl)}
	r.mu.Unlock()

	return localID, ok
}

func (r *Resolver) resolve(ctx context.Context, directoryID int64) (int64, bool) {
	// The id may already be local: notification callers mix both stores.
	if user, err := db.GetUserByID(directoryID); err == nil {
		return user.ID, true
	} else if err != db.ErrNotFound {
		slog.Error("identity: local lookup failed", "directory_id", directoryID, "error", err)
		return 0, false
	}

	record, err := r.dir.Lookup(ctx, directoryID)
	if err != nil {
		slog.Warn("identity: directory unavailable", "directory_id", directoryID, "error", err)
		return 0, false
	}
	if record == nil {
		return 0, false
	}

	if user, err := db.GetUserByEmail(record.Email); err == nil {
		return user.ID, true
	} else if err != db.ErrNotFound {
		slog.Error("identity: local email lookup failed", "directory_id", directoryID, "error", err)
		return 0, false
	}

	// Provision a shadow record. The placeholder password is unguessable;
	// shadow users never log in here, the row only satisfies the
	// notifications foreign key.
	placeholder, err := utils.GenerateRandomAlphaNumeric(48)
	if err != nil {
		slog.Error("identity: failed to generate placeholder password", "directory_id", directoryID, "error", err)
		return 0, false
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(placeholder), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("identity: failed to hash placeholder password", "directory_id", directoryID, "error", err)
		return 0, false
	}

	user, err := db.CreateUser(record.Email, string(hash), localRole(record.Role))
	if err != nil {
		// Non-fatal: the caller just skips this recipient.
		slog.Warn("identity: failed to provision shadow user", "directory_id", directoryID, "email", record.Email, "error", err)
		return 0, false
	}

	slog.Info("identity: provisioned shadow user", "directory_id", directoryID, "local_id", user.ID, "role", user.Role)
	return user.ID, true
}

// ResolveAll maps a set of directory ids to local ids, dropping the
// unresolvable ones and deduplicating the result.
func (r *Resolver) ResolveAll(ctx context.Context, directoryIDs []int64) []int64 {
	seen := make(map[int64]bool, len(directoryIDs))
	resolved := make([]int64, 0, len(directoryIDs))
	for _, id := range directoryIDs {
		localID, ok := r.Resolve(ctx, id)
		if !ok || seen[localID] {
			continue
		}
		seen[localID] = true
		resolved = append(resolved, localID)
	}
	return resolved
}
