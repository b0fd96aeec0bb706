package repo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/silt-vcs/silt/pkg/object"
)

// Init creates a new silt repository at path. It creates the .silt/
// directory structure: HEAD, objects/, refs/heads/, refs/tags/ and the
// reflog root. Returns an error if a .silt/ directory already exists.
func Init(path string) (*Repo, error) {
	siltDir := filepath.Join(path, ".silt")

	if _, err := os.Stat(siltDir); err == nil {
		return nil, fmt.Errorf("init: repository already exists at %s", siltDir)
	}

	dirs := []string{
		filepath.Join(siltDir, "objects"),
		filepath.Join(siltDir, "refs", "heads"),
		filepath.Join(siltDir, "refs", "tags"),
		filepath.Join(siltDir, "logs", "refs", "heads"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}

	// HEAD points at the unborn default branch. Written directly because
	// CreateSymbolicRef validates that the target exists, which no branch
	// does yet.
	headPath := filepath.Join(siltDir, "HEAD")
	if err := os.WriteFile(headPath, []byte(symrefPrefix+"refs/heads/main\n"), 0o644); err != nil {
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}

	r := &Repo{
		RootDir: path,
		SiltDir: siltDir,
	}
	cfg, err := r.ReadConfig()
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	r.Store = newStoreFromConfig(siltDir, cfg)
	return r, nil
}

// Open searches upward from path for a .silt/ directory and opens the
// repository. Returns an error if none is found.
func Open(path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	for {
		siltDir := filepath.Join(cur, ".silt")
		info, err := os.Stat(siltDir)
		if err == nil && info.IsDir() {
			r := &Repo{
				RootDir: cur,
				SiltDir: siltDir,
			}
			cfg, err := r.ReadConfig()
			if err != nil {
				return nil, fmt.Errorf("open: %w", err)
			}
			r.Store = newStoreFromConfig(siltDir, cfg)
			return r, nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("open: not a silt repository (or any parent up to /)")
		}
		cur = parent
	}
}

func newStoreFromConfig(siltDir string, cfg *Config) *object.Store {
	return object.NewStore(siltDir,
		object.WithCompression(cfg.Storage.Compression, cfg.Storage.CompressionLevel))
}
