// Package metastore persists principals, API keys, storage configs,
// mounts, shared-file records and settings behind a gorm-backed relational
// store. Sqlite is the default driver; postgres is available for
// production deployments.
package metastore

import "time"

// PrincipalRow is the gorm model backing gwtypes.Principal.
type PrincipalRow struct {
	ID        string `gorm:"primaryKey"`
	Type      string
	CreatedAt time.Time
}

// ApiKeyRow is the gorm model for an API key principal, with the
// capability/permission flags stored as a comma-joined string (gorm has no
// native set type).
type ApiKeyRow struct {
	ID          string `gorm:"primaryKey"`
	Key         string `gorm:"uniqueIndex"`
	BasicPath   string
	Permissions string
	ExpiresAt   *time.Time
	LastUsed    time.Time
	CreatedAt   time.Time
}

// StorageConfigRow is the gorm model for gwtypes.StorageConfig.
type StorageConfigRow struct {
	ID                 string `gorm:"primaryKey"`
	Name               string
	Endpoint           string
	Region             string
	Bucket             string
	AccessKeyEncrypted string
	SecretKeyEncrypted string
	PathStyle          bool
	ProviderType       string
	RootPrefix         string
	DefaultSignedTtlS  int
	TotalCapacityBytes *int64
	CacheTtlSeconds    int
	UsageBytes         int64
	CreatedAt          time.Time
}

// MountRow is the gorm model for gwtypes.Mount.
type MountRow struct {
	ID              string `gorm:"primaryKey"`
	MountPath       string
	StorageConfigID string
	WebProxy        bool
	CacheTtlSeconds *int
	LastUsedAt      time.Time
	CreatedAt       time.Time
}

// SharedFile is the minimal record the core reads/writes for the
// presign-commit / short-link download path: the password/view-count
// business logic belongs to the excluded short-link feature, not to this
// store.
type SharedFile struct {
	ID           string `gorm:"primaryKey"`
	Slug         string `gorm:"uniqueIndex"`
	MountID      string
	ObjectKey    string
	Filename     string
	ContentType  string
	SizeBytes    int64
	ETag         string
	CreatedAt    time.Time
}

// Setting is a single key/value row in the settings table, exposing at
// minimum webdav_upload_mode.
type Setting struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

// DirModTime caches a virtual directory's modification time, per the
// MetadataStore responsibility "cached directory modification times".
type DirModTime struct {
	MountID   string `gorm:"primaryKey"`
	SubPath   string `gorm:"primaryKey"`
	Modified  time.Time
}

// AllModels lists every gorm model for AutoMigrate.
func AllModels() []any {
	return []any{
		&PrincipalRow{},
		&ApiKeyRow{},
		&StorageConfigRow{},
		&MountRow{},
		&SharedFile{},
		&Setting{},
		&DirModTime{},
	}
}
