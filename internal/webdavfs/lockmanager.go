// Package webdavfs implements the WebDAV surface: method dispatch for
// GET/HEAD/PUT/DELETE/MKCOL/COPY/MOVE/PROPFIND/PROPPATCH/LOCK/UNLOCK/
// OPTIONS, and an in-memory advisory lock table.
package webdavfs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	gwerr "github.com/sabouaram/storegate/internal/gwerrors"
	"github.com/sabouaram/storegate/internal/gwtypes"
)

// LockManager holds advisory WebDAV locks in memory, scoped to process
// lifetime: locks do not survive a restart. A background sweep evicts
// expired entries.
type LockManager struct {
	mu            sync.RWMutex
	byToken       map[string]gwtypes.Lock
	minTimeout    time.Duration
	maxTimeout    time.Duration
	defaultTimeout time.Duration
}

// NewLockManager constructs a LockManager and starts its background sweep.
func NewLockManager(ctx context.Context, defaultTimeout, minTimeout, maxTimeout, sweepInterval time.Duration) *LockManager {
	lm := &LockManager{
		byToken:        make(map[string]gwtypes.Lock),
		minTimeout:     minTimeout,
		maxTimeout:     maxTimeout,
		defaultTimeout: defaultTimeout,
	}
	go lm.sweepLoop(ctx, sweepInterval)
	return lm
}

func (lm *LockManager) sweepLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lm.sweep()
		}
	}
}

func (lm *LockManager) sweep() {
	now := time.Now()
	lm.mu.Lock()
	defer lm.mu.Unlock()
	for token, l := range lm.byToken {
		if l.Expired(now) {
			delete(lm.byToken, token)
		}
	}
}

// clampTimeout enforces the configured [minTimeout, maxTimeout] bound,
// defaulting to defaultTimeout when the client requests no specific
// timeout.
func (lm *LockManager) clampTimeout(requested time.Duration) time.Duration {
	if requested <= 0 {
		return lm.defaultTimeout
	}
	if requested < lm.minTimeout {
		return lm.minTimeout
	}
	if requested > lm.maxTimeout {
		return lm.maxTimeout
	}
	return requested
}

// Acquire creates a new lock at path if no conflicting lock exists.
func (lm *LockManager) Acquire(path gwtypes.VirtualPath, owner string, scope gwtypes.LockScope, depth gwtypes.LockDepth, requestedTimeout time.Duration) (gwtypes.Lock, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	now := time.Now()
	for _, existing := range lm.byToken {
		if existing.Expired(now) {
			continue
		}
		if existing.Conflicts(path) {
			return gwtypes.Lock{}, gwerr.New(gwerr.Locked, "path %s is locked by another client", path)
		}
	}

	timeout := lm.clampTimeout(requestedTimeout)
	lock := gwtypes.Lock{
		Token:     "opaquelocktoken:" + uuid.NewString(),
		Path:      path,
		Depth:     depth,
		Owner:     owner,
		Scope:     scope,
		Timeout:   timeout,
		ExpiresAt: now.Add(timeout),
	}
	lm.byToken[lock.Token] = lock
	return lock, nil
}

// Refresh extends an existing lock's expiry (LOCK with an If header).
func (lm *LockManager) Refresh(token string, requestedTimeout time.Duration) (gwtypes.Lock, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	lock, ok := lm.byToken[token]
	if !ok || lock.Expired(time.Now()) {
		return gwtypes.Lock{}, gwerr.New(gwerr.NotFound, "lock token not found: %s", token)
	}
	timeout := lm.clampTimeout(requestedTimeout)
	lock.Timeout = timeout
	lock.ExpiresAt = time.Now().Add(timeout)
	lm.byToken[token] = lock
	return lock, nil
}

// Release removes a lock by token (UNLOCK).
func (lm *LockManager) Release(token string) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if _, ok := lm.byToken[token]; !ok {
		return gwerr.New(gwerr.NotFound, "lock token not found: %s", token)
	}
	delete(lm.byToken, token)
	return nil
}

// Check reports whether targetPath is blocked by any active lock other than
// one matching suppliedToken (the If header on a conditional request).
func (lm *LockManager) Check(targetPath gwtypes.VirtualPath, suppliedToken string) error {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	now := time.Now()
	for token, l := range lm.byToken {
		if l.Expired(now) {
			continue
		}
		if token == suppliedToken {
			continue
		}
		if l.Conflicts(targetPath) {
			return gwerr.New(gwerr.Locked, "path %s is locked", targetPath)
		}
	}
	return nil
}

// Lookup returns the lock held at path, if any, for PROPFIND lockdiscovery.
func (lm *LockManager) Lookup(path gwtypes.VirtualPath) (gwtypes.Lock, bool) {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	now := time.Now()
	for _, l := range lm.byToken {
		if l.Expired(now) {
			continue
		}
		if l.Path == path {
			return l, true
		}
	}
	return gwtypes.Lock{}, false
}
