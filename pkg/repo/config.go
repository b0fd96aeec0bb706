package repo

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config stores repository-local settings in .silt/config.toml.
type Config struct {
	User    UserConfig    `toml:"user"`
	Storage StorageConfig `toml:"storage"`
}

// UserConfig is the default commit identity.
type UserConfig struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

// StorageConfig controls object store behavior.
type StorageConfig struct {
	Compression      bool `toml:"compression"`
	CompressionLevel int  `toml:"compression_level"`
}

func defaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Compression:      true,
			CompressionLevel: 2,
		},
	}
}

func (r *Repo) configPath() string {
	return filepath.Join(r.SiltDir, "config.toml")
}

// ReadConfig reads .silt/config.toml. A missing file returns defaults.
func (r *Repo) ReadConfig() (*Config, error) {
	cfg := defaultConfig()
	meta, err := toml.DecodeFile(r.configPath(), cfg)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("read config: unknown keys %v", undecoded)
	}
	return cfg, nil
}

// WriteConfig atomically writes .silt/config.toml.
func (r *Repo) WriteConfig(cfg *Config) error {
	if cfg == nil {
		cfg = defaultConfig()
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config: encode: %w", err)
	}

	tmp, err := os.CreateTemp(r.SiltDir, ".config-tmp-*")
	if err != nil {
		return fmt.Errorf("write config: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write config: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: close: %w", err)
	}
	if err := os.Rename(tmpName, r.configPath()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: rename: %w", err)
	}
	return nil
}

// DefaultAuthor returns the configured commit identity formatted as
// "Name <email>", or "" when unconfigured.
func (r *Repo) DefaultAuthor() (string, error) {
	cfg, err := r.ReadConfig()
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(cfg.User.Name)
	if name == "" {
		return "", nil
	}
	email := strings.TrimSpace(cfg.User.Email)
	if email == "" {
		return name, nil
	}
	return fmt.Sprintf("%s <%s>", name, email), nil
}
