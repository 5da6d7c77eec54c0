// Package gwconfig loads the gateway's boot-time configuration from YAML
// with environment overrides via spf13/viper. This is a fixed, boot-time
// component set loaded once at startup, not a hot-reloadable plugin registry
// (see DESIGN.md).
package gwconfig

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	RequestTimeout  time.Duration `mapstructure:"requestTimeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

// MetastoreConfig selects the gorm driver and DSN.
type MetastoreConfig struct {
	Driver string `mapstructure:"driver"` // sqlite | postgres
	DSN    string `mapstructure:"dsn"`
}

// AuthConfig holds the admin credential. The encryption secret used to
// decrypt stored S3 credentials is never read from YAML; it is bound from
// the environment only.
type AuthConfig struct {
	AdminToken string `mapstructure:"adminToken"`
}

// MultipartConfig tunes the Mode B streaming pipeline.
type MultipartConfig struct {
	QueueDepth      int   `mapstructure:"queueDepth"`
	PartSizeBytes   int64 `mapstructure:"partSizeBytes"`
	DirectThreshold int64 `mapstructure:"directThreshold"`
	UploadMode      string `mapstructure:"uploadMode"` // direct | multipart
}

// WebDAVConfig tunes the WebDAV surface.
type WebDAVConfig struct {
	BasePath          string        `mapstructure:"basePath"`
	DefaultLockTimeout time.Duration `mapstructure:"defaultLockTimeout"`
	MinLockTimeout     time.Duration `mapstructure:"minLockTimeout"`
	MaxLockTimeout     time.Duration `mapstructure:"maxLockTimeout"`
	LockSweepInterval  time.Duration `mapstructure:"lockSweepInterval"`
}

// Config is the full gateway configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Metastore MetastoreConfig `mapstructure:"metastore"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Multipart MultipartConfig `mapstructure:"multipart"`
	WebDAV    WebDAVConfig    `mapstructure:"webdav"`

	// EncryptionSecret decrypts stored S3 credentials. Bound from
	// ENCRYPTION_SECRET only, never from YAML.
	EncryptionSecret string `mapstructure:"-"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.requestTimeout", 30*time.Second)
	v.SetDefault("server.shutdownTimeout", 10*time.Second)

	v.SetDefault("metastore.driver", "sqlite")
	v.SetDefault("metastore.dsn", "storegate.db")

	v.SetDefault("multipart.queueDepth", 2)
	v.SetDefault("multipart.partSizeBytes", 5*1024*1024)
	v.SetDefault("multipart.directThreshold", 5*1024*1024)
	v.SetDefault("multipart.uploadMode", "multipart")

	v.SetDefault("webdav.basePath", "/dav")
	v.SetDefault("webdav.defaultLockTimeout", 600*time.Second)
	v.SetDefault("webdav.minLockTimeout", 60*time.Second)
	v.SetDefault("webdav.maxLockTimeout", 3600*time.Second)
	v.SetDefault("webdav.lockSweepInterval", 60*time.Second)
}

// Load reads configuration from the given YAML file path (optional) merged
// with STOREGATE_-prefixed environment variables, and binds
// ENCRYPTION_SECRET separately from the environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix("STOREGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	secret := viper.New()
	secret.AutomaticEnv()
	cfg.EncryptionSecret = secret.GetString("ENCRYPTION_SECRET")

	return &cfg, nil
}
