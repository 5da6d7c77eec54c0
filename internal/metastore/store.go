package metastore

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/sabouaram/storegate/internal/gwtypes"
)

// Store is the relational metadata store. It satisfies
// internal/authresolver.PrincipalStore and is consumed directly by
// internal/filesystem for mount/storage-config lookups.
type Store struct {
	db         *gorm.DB
	adminToken string
}

// New wraps an already-migrated *gorm.DB.
func New(db *gorm.DB, adminToken string) *Store {
	return &Store{db: db, adminToken: adminToken}
}

// Migrate runs AutoMigrate for every model.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}

// AdminToken returns the configured admin bearer token / basic password.
func (s *Store) AdminToken() string {
	return s.adminToken
}

func capsFromString(v string) gwtypes.CapabilitySet {
	out := gwtypes.CapabilitySet{}
	for _, c := range strings.Split(v, ",") {
		c = strings.TrimSpace(c)
		if c != "" {
			out[gwtypes.Capability(c)] = true
		}
	}
	return out
}

func capsToString(c gwtypes.CapabilitySet) string {
	parts := make([]string, 0, len(c))
	for k, v := range c {
		if v {
			parts = append(parts, string(k))
		}
	}
	return strings.Join(parts, ",")
}

// LookupApiKey finds the principal owning the given raw API key value.
func (s *Store) LookupApiKey(ctx context.Context, key string) (gwtypes.Principal, bool, error) {
	var row ApiKeyRow
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return gwtypes.Principal{}, false, nil
		}
		return gwtypes.Principal{}, false, err
	}

	return gwtypes.Principal{
		ID:           row.ID,
		Type:         gwtypes.AuthApiKey,
		BasicPath:    gwtypes.VirtualPath(row.BasicPath),
		Capabilities: capsFromString(row.Permissions),
		ExpiresAt:    row.ExpiresAt,
		LastUsed:     row.LastUsed,
	}, true, nil
}

// DeleteExpiredApiKey lazily removes an expired key the first time it is
// looked up past its expiry.
func (s *Store) DeleteExpiredApiKey(ctx context.Context, principalID string) error {
	return s.db.WithContext(ctx).Delete(&ApiKeyRow{}, "id = ?", principalID).Error
}

// TouchApiKey updates lastUsed on successful evaluation.
func (s *Store) TouchApiKey(ctx context.Context, principalID string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&ApiKeyRow{}).Where("id = ?", principalID).Update("last_used", at).Error
}

// ListMounts returns every configured mount.
func (s *Store) ListMounts(ctx context.Context) ([]gwtypes.Mount, error) {
	var rows []MountRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]gwtypes.Mount, 0, len(rows))
	for _, r := range rows {
		m := gwtypes.Mount{
			ID:              r.ID,
			MountPath:       r.MountPath,
			StorageConfigID: r.StorageConfigID,
			WebProxy:        r.WebProxy,
			CacheTtlSeconds: r.CacheTtlSeconds,
			LastUsedAt:      r.LastUsedAt,
			CreatedAt:       r.CreatedAt,
		}
		if err := gwtypes.Validate.Struct(m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// GetStorageConfig fetches a storage config row by id.
func (s *Store) GetStorageConfig(ctx context.Context, id string) (StorageConfigRow, bool, error) {
	var row StorageConfigRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return StorageConfigRow{}, false, nil
		}
		return StorageConfigRow{}, false, err
	}
	return row, true, nil
}

// ListStorageConfigs returns every configured storage backend.
func (s *Store) ListStorageConfigs(ctx context.Context) ([]StorageConfigRow, error) {
	var rows []StorageConfigRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// AdjustStorageUsage atomically increments (or, with a negative delta,
// decrements) the tracked usage for a storage config, used for capacity
// enforcement.
func (s *Store) AdjustStorageUsage(ctx context.Context, storageConfigID string, delta int64) error {
	return s.db.WithContext(ctx).Model(&StorageConfigRow{}).
		Where("id = ?", storageConfigID).
		Update("usage_bytes", gorm.Expr("usage_bytes + ?", delta)).Error
}

// TouchMountLastUsed updates a mount's lastUsedAt.
func (s *Store) TouchMountLastUsed(ctx context.Context, mountID string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&MountRow{}).Where("id = ?", mountID).Update("last_used_at", at).Error
}

// GetSetting returns a setting value, or def if unset.
func (s *Store) GetSetting(ctx context.Context, key, def string) string {
	var row Setting
	if err := s.db.WithContext(ctx).Where("key = ?", key).First(&row).Error; err != nil {
		return def
	}
	return row.Value
}

// UpsertSharedFile records a committed presigned upload for the short-link
// download path.
func (s *Store) UpsertSharedFile(ctx context.Context, f SharedFile) error {
	return s.db.WithContext(ctx).Save(&f).Error
}

// GetSharedFileBySlug resolves the short-link slug to its object record.
func (s *Store) GetSharedFileBySlug(ctx context.Context, slug string) (SharedFile, bool, error) {
	var row SharedFile
	err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return SharedFile{}, false, nil
		}
		return SharedFile{}, false, err
	}
	return row, true, nil
}

// TouchDirModTime updates (or creates) the modification-time row for a
// virtual directory, part of the ancestor modification-time bookkeeping
// every mutation performs.
func (s *Store) TouchDirModTime(ctx context.Context, mountID, subPath string, at time.Time) error {
	return s.db.WithContext(ctx).Save(&DirModTime{MountID: mountID, SubPath: subPath, Modified: at}).Error
}

// GetDirModTime returns the cached modification time for a virtual
// directory, or the zero time if none is recorded.
func (s *Store) GetDirModTime(ctx context.Context, mountID, subPath string) time.Time {
	var row DirModTime
	if err := s.db.WithContext(ctx).Where("mount_id = ? AND sub_path = ?", mountID, subPath).First(&row).Error; err != nil {
		return time.Time{}
	}
	return row.Modified
}
