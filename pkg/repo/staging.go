package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/silt-vcs/silt/pkg/object"
)

var (
	// ErrEmptyIndex reports tree building over an index with no entries.
	// Whether an empty commit is permitted is the caller's policy; the
	// core rejects it by default.
	ErrEmptyIndex = errors.New("index is empty")

	// ErrPathOutsideRoot reports staging of a path that escapes the
	// working-tree root.
	ErrPathOutsideRoot = errors.New("path outside working-tree root")
)

// StagingEntry records the staged state of a single file. ModTime and
// Size mirror the working file's stat data so staleness can be detected
// without re-hashing.
type StagingEntry struct {
	Path     string      `json:"path"`
	Mode     string      `json:"mode"`
	BlobHash object.Hash `json:"blob_hash"`
	ModTime  int64       `json:"mod_time"`
	Size     int64       `json:"size"`
}

// Staging holds the full staging area (index) for a repository. It is
// scoped to one working session; concurrent staging from multiple
// sessions is the caller's problem to prevent.
type Staging struct {
	Entries map[string]*StagingEntry
}

// stagingFile is the persisted form: entries as a list ordered by path,
// so the index file is deterministic and diffable.
type stagingFile struct {
	Entries []*StagingEntry `json:"entries"`
}

// indexPath returns the filesystem path to the staging index file.
func (r *Repo) indexPath() string {
	return filepath.Join(r.SiltDir, "index")
}

// ReadStaging loads the staging area from .silt/index. If the file does
// not exist, an empty Staging is returned (no error).
func (r *Repo) ReadStaging() (*Staging, error) {
	data, err := os.ReadFile(r.indexPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Staging{Entries: make(map[string]*StagingEntry)}, nil
		}
		return nil, fmt.Errorf("read staging: %w", err)
	}

	var file stagingFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("read staging: unmarshal: %w", err)
	}
	stg := &Staging{Entries: make(map[string]*StagingEntry, len(file.Entries))}
	for _, e := range file.Entries {
		stg.Entries[e.Path] = e
	}
	return stg, nil
}

// WriteStaging atomically replaces .silt/index with the given state,
// entries sorted by path.
func (r *Repo) WriteStaging(s *Staging) error {
	file := stagingFile{Entries: make([]*StagingEntry, 0, len(s.Entries))}
	for _, e := range s.Entries {
		file.Entries = append(file.Entries, e)
	}
	sort.Slice(file.Entries, func(i, j int) bool {
		return file.Entries[i].Path < file.Entries[j].Path
	})

	data, err := json.MarshalIndent(&file, "", "  ")
	if err != nil {
		return fmt.Errorf("write staging: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(r.SiltDir, ".index-tmp-*")
	if err != nil {
		return fmt.Errorf("write staging: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write staging: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write staging: close: %w", err)
	}

	if err := os.Rename(tmpName, r.indexPath()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write staging: rename: %w", err)
	}
	return nil
}

// Stage records content for path in the index, writing its blob to the
// store. The blob write is idempotent under content addressing, so
// staging the same content repeatedly stores nothing new.
func (r *Repo) Stage(path string, content []byte) error {
	relPath, err := r.repoRelPath(path)
	if err != nil {
		return fmt.Errorf("stage: %w", err)
	}

	stg, err := r.ReadStaging()
	if err != nil {
		return fmt.Errorf("stage: %w", err)
	}

	entry, err := r.stageBlob(relPath, content)
	if err != nil {
		return fmt.Errorf("stage: %w", err)
	}
	stg.Entries[relPath] = entry

	if err := r.WriteStaging(stg); err != nil {
		return fmt.Errorf("stage: %w", err)
	}
	return nil
}

// StagePaths stages the given working-tree files. Blob hashing and
// store writes run concurrently; store writes are commutative so order
// never matters. The index itself is replaced once at the end.
func (r *Repo) StagePaths(paths []string) error {
	stg, err := r.ReadStaging()
	if err != nil {
		return fmt.Errorf("stage: %w", err)
	}

	relPaths := make([]string, len(paths))
	for i, p := range paths {
		rel, err := r.repoRelPath(p)
		if err != nil {
			return fmt.Errorf("stage %q: %w", p, err)
		}
		relPaths[i] = rel
	}

	entries := make([]*StagingEntry, len(relPaths))
	p := pool.New().WithErrors().WithMaxGoroutines(runtime.GOMAXPROCS(0))
	for i, relPath := range relPaths {
		i, relPath := i, relPath
		p.Go(func() error {
			absPath := filepath.Join(r.RootDir, filepath.FromSlash(relPath))
			content, err := os.ReadFile(absPath)
			if err != nil {
				return fmt.Errorf("read %q: %w", relPath, err)
			}
			entry, err := r.stageBlob(relPath, content)
			if err != nil {
				return err
			}
			entries[i] = entry
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return fmt.Errorf("stage: %w", err)
	}

	for _, entry := range entries {
		stg.Entries[entry.Path] = entry
	}
	if err := r.WriteStaging(stg); err != nil {
		return fmt.Errorf("stage: %w", err)
	}
	return nil
}

// Unstage removes a path from the index. Unstaging an absent path is a
// no-op.
func (r *Repo) Unstage(path string) error {
	relPath, err := r.repoRelPath(path)
	if err != nil {
		return fmt.Errorf("unstage: %w", err)
	}

	stg, err := r.ReadStaging()
	if err != nil {
		return fmt.Errorf("unstage: %w", err)
	}
	if _, ok := stg.Entries[relPath]; !ok {
		return nil
	}
	delete(stg.Entries, relPath)

	if err := r.WriteStaging(stg); err != nil {
		return fmt.Errorf("unstage: %w", err)
	}
	return nil
}

// Remove unstages the given paths and, unless cached, also deletes
// them from the working tree.
func (r *Repo) Remove(paths []string, cached bool) error {
	for _, p := range paths {
		if err := r.Unstage(p); err != nil {
			return err
		}
		if cached {
			continue
		}
		relPath, err := r.repoRelPath(p)
		if err != nil {
			return fmt.Errorf("remove: %w", err)
		}
		if err := r.removeWorktreeFile(relPath); err != nil {
			return fmt.Errorf("remove: %w", err)
		}
	}
	return nil
}

// stageBlob writes content as a blob and builds the index entry for
// relPath. Stat metadata comes from the working file when present.
func (r *Repo) stageBlob(relPath string, content []byte) (*StagingEntry, error) {
	blobHash, err := r.Store.WriteBlob(&object.Blob{Data: content})
	if err != nil {
		return nil, fmt.Errorf("write blob %q: %w", relPath, err)
	}

	entry := &StagingEntry{
		Path:     relPath,
		Mode:     object.TreeModeFile,
		BlobHash: blobHash,
		ModTime:  time.Now().Unix(),
		Size:     int64(len(content)),
	}
	absPath := filepath.Join(r.RootDir, filepath.FromSlash(relPath))
	if info, err := os.Stat(absPath); err == nil {
		entry.Mode = modeFromFileInfo(info)
		entry.ModTime = info.ModTime().Unix()
		entry.Size = info.Size()
	}
	return entry, nil
}

// repoRelPath converts a path (absolute, or relative to the repo root)
// into a clean slash-separated repo-relative path. Paths escaping the
// root are rejected.
func (r *Repo) repoRelPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(r.RootDir, p)
		if err != nil {
			return "", fmt.Errorf("%q: %w", p, ErrPathOutsideRoot)
		}
		p = rel
	}
	p = filepath.ToSlash(filepath.Clean(p))
	if p == "." || p == "" {
		return "", fmt.Errorf("%q: not a file path", p)
	}
	if p == ".." || strings.HasPrefix(p, "../") {
		return "", fmt.Errorf("%q: %w", p, ErrPathOutsideRoot)
	}
	return p, nil
}
