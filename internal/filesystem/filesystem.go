// Package filesystem is the operation-level façade: list, stat, mkdir,
// upload, download, rename, remove, batch-remove, batch-copy, search,
// presign-put, presign-get, update-inline, and the backend multipart
// initiate/part/complete/abort calls. Every operation enforces the
// caller's allowed prefix via PathResolver before any S3 call.
package filesystem

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sabouaram/storegate/atomic"
	liberrpool "github.com/sabouaram/storegate/errors/pool"
	"github.com/sabouaram/storegate/internal/dircache"
	"github.com/sabouaram/storegate/internal/gwconfig"
	"github.com/sabouaram/storegate/internal/gwlog"
	"github.com/sabouaram/storegate/internal/gwtypes"
	"github.com/sabouaram/storegate/internal/metastore"
	"github.com/sabouaram/storegate/internal/pathresolver"
	"github.com/sabouaram/storegate/internal/s3driver"
)

// driverEntry bundles a live S3Driver with the StorageConfig it was built
// from, so a single concurrent map covers both sides of the driver cache.
type driverEntry struct {
	driver *s3driver.Driver
	cfg    gwtypes.StorageConfig
}

// FileSystem is the composition root tying PathResolver, DirectoryCache,
// S3Driver instances and MetadataStore together: one struct holding typed
// sub-component references, no global singletons beyond the process-wide
// DirectoryCache.
type FileSystem struct {
	store    *metastore.Store
	cache    *dircache.DirectoryCache
	resolver *pathresolver.Resolver
	cfg      *gwconfig.Config
	log      *gwlog.Logger

	drivers atomic.MapTyped[string, driverEntry]
}

// New constructs a FileSystem and its PathResolver over the given store.
func New(store *metastore.Store, cfg *gwconfig.Config, log *gwlog.Logger) *FileSystem {
	fs := &FileSystem{
		store:   store,
		cache:   dircache.New(context.Background()),
		cfg:     cfg,
		log:     log,
		drivers: atomic.NewMapTyped[string, driverEntry](),
	}
	fs.resolver = pathresolver.New(fs.listMounts, fs.lookupDriver)
	return fs
}

func (fs *FileSystem) listMounts() []gwtypes.Mount {
	mounts, err := fs.store.ListMounts(context.Background())
	if err != nil {
		fs.log.Error("list mounts failed", err, nil)
		return nil
	}
	return mounts
}

func (fs *FileSystem) lookupDriver(storageConfigID string) (*s3driver.Driver, gwtypes.StorageConfig, bool) {
	if e, ok := fs.drivers.Load(storageConfigID); ok {
		return e.driver, e.cfg, true
	}

	row, found, err := fs.store.GetStorageConfig(context.Background(), storageConfigID)
	if err != nil || !found {
		return nil, gwtypes.StorageConfig{}, false
	}

	accessKey, aerr := gwconfig.Decrypt(fs.cfg.EncryptionSecret, row.AccessKeyEncrypted)
	secretKey, serr := gwconfig.Decrypt(fs.cfg.EncryptionSecret, row.SecretKeyEncrypted)
	if aerr != nil || serr != nil {
		fs.log.Error("decrypt storage credentials failed", aerr, map[string]any{"storageConfigId": storageConfigID})
		return nil, gwtypes.StorageConfig{}, false
	}

	cfg := gwtypes.StorageConfig{
		ID:                 row.ID,
		Name:               row.Name,
		Endpoint:           row.Endpoint,
		Region:             row.Region,
		Bucket:             row.Bucket,
		PathStyle:          row.PathStyle,
		ProviderType:       gwtypes.ProviderType(row.ProviderType),
		RootPrefix:         row.RootPrefix,
		DefaultSignedTtl:   time.Duration(row.DefaultSignedTtlS) * time.Second,
		TotalCapacityBytes: row.TotalCapacityBytes,
		CacheTtlSeconds:    row.CacheTtlSeconds,
	}
	if err := gwtypes.Validate.Struct(cfg); err != nil {
		fs.log.Error("storage config failed validation", err, map[string]any{"storageConfigId": storageConfigID})
		return nil, gwtypes.StorageConfig{}, false
	}

	driver, err := s3driver.New(context.Background(), cfg, accessKey, secretKey)
	if err != nil {
		fs.log.Error("construct s3 driver failed", err, map[string]any{"storageConfigId": storageConfigID})
		return nil, gwtypes.StorageConfig{}, false
	}

	fs.drivers.Store(storageConfigID, driverEntry{driver: driver, cfg: cfg})

	return driver, cfg, true
}

// resolve is the shared entry every operation calls before touching S3.
func (fs *FileSystem) resolve(raw string, auth gwtypes.AuthResult) (pathresolver.Resolution, error) {
	return fs.resolver.Resolve(raw, auth)
}

// touchAncestors performs the ancestor modification-time bookkeeping:
// after a mutation, every directory of the mount from its root down to the
// parent of the target (and the target itself when it is a directory) gets
// its modified time bumped and its cache entry invalidated before any fresh
// listing is published (invalidate-before-publish ordering). Directories are
// keyed by their mount-relative sub-path, the same key List uses.
func (fs *FileSystem) touchAncestors(ctx context.Context, mountID string, path gwtypes.VirtualPath) {
	mountPath := gwtypes.VirtualPath("/")
	for _, m := range fs.listMounts() {
		if m.ID == mountID {
			mountPath = m.NormalizedPath()
		}
	}
	now := time.Now()
	for _, anc := range path.Ancestors() {
		if !anc.HasPrefix(mountPath) {
			continue
		}
		sub := anc.TrimPrefix(mountPath)
		_ = fs.store.TouchDirModTime(ctx, mountID, sub, now)
		fs.cache.InvalidateAncestors(mountID, sub)
	}
}

// batchFailureDetail is one item's failure reason within a best-effort
// batch operation result.
type batchFailureDetail struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

func newBatchCollector() liberrpool.Pool {
	return liberrpool.New()
}

func newUploadID() string {
	return uuid.NewString()
}
