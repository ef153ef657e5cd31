// Package config reads a repository's ambient TOML configuration: hash and
// compression algorithm selection, the storage backend in use, and a
// fallback author identity for commits the facade synthesizes itself.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ConfigFileName is the file read/written at a repository's root, sibling to
// HEAD and objects/.
const ConfigFileName = "config"

// User is the default author/committer identity used when a facade
// operation (e.g. EditFile) isn't given an explicit one.
type User struct {
	Name  string `toml:"name,omitempty"`
	Email string `toml:"email,omitempty"`
}

func (u *User) Empty() bool {
	return u == nil || len(u.Name) == 0 || len(u.Email) == 0
}

// Core holds the subset of repository-level settings this engine consults.
type Core struct {
	HashAlgo        string `toml:"hash-algo,omitempty"`
	CompressionAlgo string `toml:"compression-algo,omitempty"`
	StorageBackend  string `toml:"storage-backend,omitempty"`
}

// Config is the root of a repository's config file.
type Config struct {
	Core Core `toml:"core,omitempty"`
	User User `toml:"user,omitempty"`
}

// Default returns the configuration assumed when a repository carries no
// config file at all: SHA-1 hashing, zlib compression, local filesystem
// storage, no default identity.
func Default() *Config {
	return &Config{
		Core: Core{
			HashAlgo:        "sha1",
			CompressionAlgo: "zlib",
			StorageBackend:  "filesystem",
		},
	}
}

// Load reads <repoPath>/config, falling back to Default() when the file
// doesn't exist: a bare repository created outside this module (a foreign
// Git repo, say) is never required to carry one.
func Load(repoPath string) (*Config, error) {
	cfg := Default()
	p := filepath.Join(repoPath, ConfigFileName)
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if _, err := toml.DecodeFile(p, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to <repoPath>/config, creating or truncating it.
func Save(repoPath string, cfg *Config) error {
	f, err := os.Create(filepath.Join(repoPath, ConfigFileName))
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
