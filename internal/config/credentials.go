package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is preloaded when no other env file is named.
const DefaultEnvFile = ".env"

// Credentials is an immutable snapshot of the process environment. Adapters
// and store backends resolve credential references through it.
type Credentials struct {
	vars map[string]string
}

// LoadCredentials loads envFile into the process environment without
// overriding variables that are already set, then snapshots the
// environment. A missing envFile is not an error.
func LoadCredentials(envFile string, logger *slog.Logger) (*Credentials, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		logger.Debug("env file not found, using process environment", "file", envFile)
	}
	return SnapshotEnv(os.Environ()), nil
}

// SnapshotEnv builds Credentials from KEY=VALUE pairs.
func SnapshotEnv(environ []string) *Credentials {
	vars := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vars[k] = v
	}
	return &Credentials{vars: vars}
}

// Lookup returns the value of ref. Empty values count as missing.
func (c *Credentials) Lookup(ref string) (string, bool) {
	if c == nil {
		return "", false
	}
	v, ok := c.vars[ref]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
