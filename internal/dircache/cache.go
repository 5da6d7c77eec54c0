// Package dircache is a TTL cache of directory listings keyed by
// (mountId, normalisedSubPath, principalClass). Expiration follows a
// sweep-on-ticker model, specialized directly to this one key/value shape
// instead of carrying a generic Cache[K,V] API that nothing else in the
// gateway needs. The cache has no entry cap and no LRU eviction: entries
// leave only by TTL expiry or invalidation.
package dircache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sabouaram/storegate/internal/gwtypes"
)

// Key identifies one cached directory listing.
type Key struct {
	MountID        string
	SubPath        string
	PrincipalClass string
}

// entry pairs a listing with the moment it was stored, so expiry can be
// computed against the bucket's fixed TTL without per-item bookkeeping.
type entry struct {
	listing  gwtypes.DirectoryListing
	storedAt time.Time
}

// ttlBucket holds every key sharing one expiration duration. Mounts
// configure their own directory-cache TTL, so one process typically runs a
// handful of buckets rather than one cache per mount.
type ttlBucket struct {
	mu   sync.RWMutex
	m    map[Key]entry
	ttl  time.Duration
	stop chan struct{}
}

func newTTLBucket(ctx context.Context, ttl time.Duration) *ttlBucket {
	b := &ttlBucket{m: make(map[Key]entry), ttl: ttl, stop: make(chan struct{})}
	go b.sweep(ctx)
	return b
}

// sweep periodically drops expired entries so a cache that is written to
// but never read doesn't grow unbounded; Load also checks expiry inline so
// correctness never depends on the sweep having run yet.
func (b *ttlBucket) sweep(ctx context.Context) {
	ticker := time.NewTicker(b.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.expire()
		case <-ctx.Done():
			b.clear()
			return
		case <-b.stop:
			b.clear()
			return
		}
	}
}

func (b *ttlBucket) expire() {
	cutoff := time.Now().Add(-b.ttl)
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, v := range b.m {
		if v.storedAt.Before(cutoff) {
			delete(b.m, k)
		}
	}
}

func (b *ttlBucket) Load(key Key) (gwtypes.DirectoryListing, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.m[key]
	if !ok || time.Since(v.storedAt) > b.ttl {
		return gwtypes.DirectoryListing{}, false
	}
	return v.listing, true
}

func (b *ttlBucket) Store(key Key, listing gwtypes.DirectoryListing) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.m[key] = entry{listing: listing, storedAt: time.Now()}
}

func (b *ttlBucket) Delete(key Key) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.m, key)
}

func (b *ttlBucket) clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.m = make(map[Key]entry)
}

func (b *ttlBucket) Close() {
	close(b.stop)
}

// DirectoryCache is a process-wide singleton; callers construct one
// instance at process init.
type DirectoryCache struct {
	mu    sync.RWMutex
	byTTL map[time.Duration]*ttlBucket
	ctx   context.Context
	// keyTTL tracks which TTL bucket each key lives in, since a bucket has
	// one fixed expiration for every key it holds.
	keyTTL map[Key]time.Duration
}

// New constructs an empty DirectoryCache.
func New(ctx context.Context) *DirectoryCache {
	if ctx == nil {
		ctx = context.Background()
	}
	return &DirectoryCache{
		ctx:    ctx,
		byTTL:  make(map[time.Duration]*ttlBucket),
		keyTTL: make(map[Key]time.Duration),
	}
}

func (d *DirectoryCache) bucket(ttl time.Duration) *ttlBucket {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.byTTL[ttl]
	if !ok {
		b = newTTLBucket(d.ctx, ttl)
		d.byTTL[ttl] = b
	}
	return b
}

// Get returns the cached listing for key if present and unexpired.
func (d *DirectoryCache) Get(key Key) (gwtypes.DirectoryListing, bool) {
	d.mu.RLock()
	ttl, known := d.keyTTL[key]
	d.mu.RUnlock()
	if !known {
		return gwtypes.DirectoryListing{}, false
	}

	return d.bucket(ttl).Load(key)
}

// Put stores a listing under key with the given TTL. ttl == 0 disables
// caching for this mount.
func (d *DirectoryCache) Put(key Key, listing gwtypes.DirectoryListing, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	d.mu.Lock()
	d.keyTTL[key] = ttl
	d.mu.Unlock()

	d.bucket(ttl).Store(key, listing)
}

// InvalidateExact removes exactly one key.
func (d *DirectoryCache) InvalidateExact(key Key) {
	d.mu.Lock()
	ttl, known := d.keyTTL[key]
	delete(d.keyTTL, key)
	d.mu.Unlock()
	if known {
		d.bucket(ttl).Delete(key)
	}
}

// InvalidateByMount removes every entry for the given mount id.
func (d *DirectoryCache) InvalidateByMount(mountID string) {
	d.invalidateWhere(func(k Key) bool { return k.MountID == mountID })
}

// InvalidateByStorageConfig removes every entry whose mount resolves to the
// given storage config, given a lookup of mountID -> storageConfigID.
func (d *DirectoryCache) InvalidateByStorageConfig(mountToStorageConfig map[string]string, storageConfigID string) {
	d.invalidateWhere(func(k Key) bool {
		return mountToStorageConfig[k.MountID] == storageConfigID
	})
}

// InvalidateAncestors removes the entry for subPath and every ancestor
// directory of subPath within the given mount. Callers invalidate before
// publishing a create/delete/rename so a racing reader never observes a
// stale listing.
func (d *DirectoryCache) InvalidateAncestors(mountID, subPath string) {
	d.invalidateWhere(func(k Key) bool {
		if k.MountID != mountID {
			return false
		}
		return k.SubPath == subPath || strings.HasPrefix(subPath, k.SubPath)
	})
}

func (d *DirectoryCache) invalidateWhere(pred func(Key) bool) {
	d.mu.Lock()
	toDelete := make(map[Key]time.Duration)
	for k, ttl := range d.keyTTL {
		if pred(k) {
			toDelete[k] = ttl
			delete(d.keyTTL, k)
		}
	}
	d.mu.Unlock()

	for k, ttl := range toDelete {
		d.bucket(ttl).Delete(k)
	}
}

// Close releases every TTL bucket's background sweep goroutine.
func (d *DirectoryCache) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, b := range d.byTTL {
		b.Close()
	}
	return nil
}
