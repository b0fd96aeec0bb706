package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/silt-vcs/silt/pkg/object"
)

// materializeTree rewrites the working tree to match the given tree:
// files the tree names are written with their recorded modes, and
// currently tracked files absent from it are removed along with any
// directories the removals emptied. Untracked files are left alone.
func (r *Repo) materializeTree(treeHash object.Hash) error {
	files, err := r.FlattenTree(treeHash)
	if err != nil {
		return fmt.Errorf("materialize tree: %w", err)
	}

	keep := make(map[string]struct{}, len(files))
	for _, f := range files {
		keep[f.Path] = struct{}{}
	}

	// Tracked set comes from the index, captured before it is rewritten.
	stg, err := r.ReadStaging()
	if err != nil {
		return fmt.Errorf("materialize tree: %w", err)
	}
	for p := range stg.Entries {
		if _, ok := keep[p]; ok {
			continue
		}
		if err := r.removeWorktreeFile(p); err != nil {
			return fmt.Errorf("materialize tree: %w", err)
		}
	}

	for _, f := range files {
		if err := r.writeWorktreeFile(f.Path, f.BlobHash, f.Mode); err != nil {
			return fmt.Errorf("materialize tree: %w", err)
		}
	}
	return nil
}

func (r *Repo) writeWorktreeFile(relPath string, blobHash object.Hash, mode string) error {
	blob, err := r.Store.ReadBlob(blobHash)
	if err != nil {
		return fmt.Errorf("read blob for %q: %w", relPath, err)
	}
	return r.writeWorktreeContent(relPath, blob.Data, mode)
}

func (r *Repo) writeWorktreeContent(relPath string, data []byte, mode string) error {
	absPath := filepath.Join(r.RootDir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return fmt.Errorf("write %q: %w", relPath, err)
	}
	if err := os.WriteFile(absPath, data, filePermFromMode(mode)); err != nil {
		return fmt.Errorf("write %q: %w", relPath, err)
	}
	// WriteFile does not change the mode of a pre-existing file.
	if err := os.Chmod(absPath, filePermFromMode(mode)); err != nil {
		return fmt.Errorf("chmod %q: %w", relPath, err)
	}
	return nil
}

func (r *Repo) removeWorktreeFile(relPath string) error {
	absPath := filepath.Join(r.RootDir, filepath.FromSlash(relPath))
	if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %q: %w", relPath, err)
	}
	r.pruneEmptyDirs(filepath.Dir(absPath))
	return nil
}

// pruneEmptyDirs removes now-empty parent directories up to the root.
// Failures are ignored: a non-empty directory is the normal stop.
func (r *Repo) pruneEmptyDirs(dir string) {
	for dirWithinRoot(dir, r.RootDir) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

func dirWithinRoot(dir, root string) bool {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." &&
		!strings.HasPrefix(rel, ".."+string(filepath.Separator)) &&
		!filepath.IsAbs(rel)
}
