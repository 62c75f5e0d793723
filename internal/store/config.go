package store

import (
	"fmt"

	"github.com/ahrav/go-scriptbench/internal/domain"
)

// Backend names accepted in Config.Backend.
const (
	BackendFS       = "fs"
	BackendRedis    = "redis"
	BackendS3       = "s3"
	BackendPostgres = "postgres"
)

// Secrets resolves secret references (environment variable names) to values.
type Secrets interface {
	Lookup(ref string) (string, bool)
}

// Config selects and configures the artifact backend.
type Config struct {
	Backend string `yaml:"backend" json:"backend"`

	// ExistsCacheSize bounds the exists-cache. Zero uses the default;
	// a negative value disables the cache.
	ExistsCacheSize int `yaml:"exists_cache_size" json:"exists_cache_size"`

	FS       FSConfig       `yaml:"fs" json:"fs"`
	Redis    RedisConfig    `yaml:"redis" json:"redis"`
	S3       S3Config       `yaml:"s3" json:"s3"`
	Postgres PostgresConfig `yaml:"postgres" json:"postgres"`
}

// FSConfig configures the filesystem backend.
type FSConfig struct {
	// Root is the artifact directory. Empty means the pipeline output path.
	Root string `yaml:"root" json:"root"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr        string `yaml:"addr" json:"addr"`
	PasswordRef string `yaml:"password_ref" json:"password_ref"`
	DB          int    `yaml:"db" json:"db"`
	Prefix      string `yaml:"prefix" json:"prefix"`
}

// S3Config configures the object-store backend.
type S3Config struct {
	Endpoint     string `yaml:"endpoint" json:"endpoint"`
	Region       string `yaml:"region" json:"region"`
	Bucket       string `yaml:"bucket" json:"bucket"`
	Prefix       string `yaml:"prefix" json:"prefix"`
	AccessKeyRef string `yaml:"access_key_ref" json:"access_key_ref"`
	SecretKeyRef string `yaml:"secret_key_ref" json:"secret_key_ref"`
	UseSSL       bool   `yaml:"use_ssl" json:"use_ssl"`
}

// PostgresConfig configures the postgres backend.
type PostgresConfig struct {
	// DSNRef names the environment variable holding the connection string.
	DSNRef string `yaml:"dsn_ref" json:"dsn_ref"`
	Table  string `yaml:"table" json:"table"`
}

// DefaultConfig returns the filesystem backend with the default cache.
func DefaultConfig() Config {
	return Config{
		Backend: BackendFS,
		Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "scriptbench:"},
		S3: S3Config{
			Region:       "us-east-1",
			Prefix:       "scriptbench/",
			AccessKeyRef: "S3_ACCESS_KEY",
			SecretKeyRef: "S3_SECRET_KEY",
		},
		Postgres: PostgresConfig{DSNRef: "DATABASE_URL", Table: "work_units"},
	}
}

// Validate checks that the selected backend has what it needs.
func (c Config) Validate() error {
	bad := func(field, msg string) error {
		return domain.NewConfigError("store", field, fmt.Errorf("%s", msg))
	}
	switch c.Backend {
	case BackendFS:
		if c.FS.Root == "" {
			return bad("fs.root", "required")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return bad("redis.addr", "required")
		}
	case BackendS3:
		if c.S3.Endpoint == "" {
			return bad("s3.endpoint", "required")
		}
		if c.S3.Bucket == "" {
			return bad("s3.bucket", "required")
		}
	case BackendPostgres:
		if c.Postgres.DSNRef == "" {
			return bad("postgres.dsn_ref", "required")
		}
	default:
		return bad("backend", fmt.Sprintf("unknown backend %q", c.Backend))
	}
	return nil
}
