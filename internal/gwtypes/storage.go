package gwtypes

import "time"

// ProviderType identifies the S3-compatible backend flavor a StorageConfig
// targets, used to select retry/timeout tuning in internal/s3driver.
type ProviderType string

const (
	ProviderAWS     ProviderType = "aws"
	ProviderR2      ProviderType = "r2"
	ProviderB2      ProviderType = "b2"
	ProviderGeneric ProviderType = "generic"
)

// StorageConfig describes one S3-compatible bucket. Credentials are stored
// encrypted at rest; internal/filesystem decrypts them (gwconfig.Decrypt)
// when it builds a driver, and the decrypted form lives only in process
// memory.
type StorageConfig struct {
	ID                  string       `json:"id" gorm:"primaryKey"`
	Name                string       `json:"name" validate:"required"`
	Endpoint            string       `json:"endpoint" validate:"required"`
	Region              string       `json:"region"`
	Bucket              string       `json:"bucket" validate:"required"`
	AccessKeyEncrypted  string       `json:"-"`
	SecretKeyEncrypted  string       `json:"-"`
	PathStyle           bool         `json:"pathStyle"`
	ProviderType        ProviderType `json:"providerType" validate:"required,oneof=aws r2 b2 generic"`
	RootPrefix          string       `json:"rootPrefix"`
	DefaultSignedTtl    time.Duration `json:"defaultSignedTtl"`
	TotalCapacityBytes  *int64       `json:"totalCapacityBytes"`
	CacheTtlSeconds     int          `json:"cacheTtlSeconds"`
	CreatedAt           time.Time    `json:"createdAt"`
}

// HasCapacityLimit reports whether the config enforces a hard capacity cap.
func (s StorageConfig) HasCapacityLimit() bool {
	return s.TotalCapacityBytes != nil
}

// Mount binds a StorageConfig to a virtual path prefix.
type Mount struct {
	ID              string    `json:"id" gorm:"primaryKey"`
	MountPath       string    `json:"mountPath" validate:"required"`
	StorageConfigID string    `json:"storageConfigId" validate:"required"`
	WebProxy        bool      `json:"webProxy"`
	CacheTtlSeconds *int      `json:"cacheTtlSeconds"`
	LastUsedAt      time.Time `json:"lastUsedAt"`
	CreatedAt       time.Time `json:"createdAt"`
}

// EffectiveCacheTtl resolves the mount's cache TTL override against the
// storage config default: a mount value, when set, replaces the storage
// default (the two are not compared), and a result of 0 or less disables
// caching.
func (m Mount) EffectiveCacheTtl(storageDefault int) time.Duration {
	v := storageDefault
	if m.CacheTtlSeconds != nil {
		v = *m.CacheTtlSeconds
	}
	if v <= 0 {
		return 0
	}
	return time.Duration(v) * time.Second
}

// NormalizedPath returns the mount path in canonical directory form
// (single leading slash, trailing slash).
func (m Mount) NormalizedPath() VirtualPath {
	p, err := Canonicalize(m.MountPath)
	if err != nil {
		return "/"
	}
	if !p.IsDir() {
		p += "/"
	}
	return p
}
