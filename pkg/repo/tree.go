package repo

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/silt-vcs/silt/pkg/object"
)

// TreeFileEntry represents a single file in a flattened tree.
type TreeFileEntry struct {
	Path     string
	Mode     string
	BlobHash object.Hash
}

// BuildTree converts the flat staging entries into a hierarchical tree
// structure, writing one tree object per directory level (deepest
// first) and returning the root hash.
//
// Grouping is a pure function of the staged paths, and tree entries are
// sorted by name, so identical index states always produce identical
// root digests regardless of staging order. Unchanged subtrees dedup in
// the store for free.
func (r *Repo) BuildTree(s *Staging) (object.Hash, error) {
	if len(s.Entries) == 0 {
		return "", fmt.Errorf("build tree: %w", ErrEmptyIndex)
	}
	return r.buildTreeDir(s, "")
}

// buildTreeDir builds the tree object for the given directory prefix
// and writes it to the store, returning its hash.
func (r *Repo) buildTreeDir(s *Staging, prefix string) (object.Hash, error) {
	files := make(map[string]*StagingEntry) // name -> entry
	subdirs := make(map[string]struct{})    // immediate child dir names

	for p, entry := range s.Entries {
		var rel string
		if prefix == "" {
			rel = p
		} else {
			if !strings.HasPrefix(p, prefix+"/") {
				continue
			}
			rel = p[len(prefix)+1:]
		}

		slash := strings.IndexByte(rel, '/')
		if slash < 0 {
			files[rel] = entry
		} else {
			subdirs[rel[:slash]] = struct{}{}
		}
	}

	names := make([]string, 0, len(files)+len(subdirs))
	for name := range files {
		names = append(names, name)
	}
	for name := range subdirs {
		// A name cannot be both a file and a directory.
		if _, isFile := files[name]; !isFile {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var entries []object.TreeEntry
	for _, name := range names {
		if entry, isFile := files[name]; isFile {
			entries = append(entries, object.TreeEntry{
				Name:      name,
				Mode:      normalizeFileMode(entry.Mode),
				ChildHash: entry.BlobHash,
			})
		} else {
			childPrefix := name
			if prefix != "" {
				childPrefix = prefix + "/" + name
			}
			subHash, err := r.buildTreeDir(s, childPrefix)
			if err != nil {
				return "", fmt.Errorf("build tree %q: %w", childPrefix, err)
			}
			entries = append(entries, object.TreeEntry{
				Name:      name,
				Mode:      object.TreeModeDir,
				ChildHash: subHash,
			})
		}
	}

	treeObj := &object.TreeObj{Entries: entries}
	h, err := r.Store.WriteTree(treeObj)
	if err != nil {
		return "", fmt.Errorf("write tree (prefix=%q): %w", prefix, err)
	}
	return h, nil
}

// FlattenTree walks a tree object recursively, returning all file
// entries with their full slash-separated paths.
func (r *Repo) FlattenTree(h object.Hash) ([]TreeFileEntry, error) {
	return r.flattenTreeRec(h, "")
}

func (r *Repo) flattenTreeRec(h object.Hash, prefix string) ([]TreeFileEntry, error) {
	treeObj, err := r.Store.ReadTree(h)
	if err != nil {
		return nil, fmt.Errorf("flatten tree: read %s: %w", h, err)
	}

	var result []TreeFileEntry
	for _, entry := range treeObj.Entries {
		fullPath := entry.Name
		if prefix != "" {
			fullPath = path.Join(prefix, entry.Name)
		}

		if entry.IsDir() {
			sub, err := r.flattenTreeRec(entry.ChildHash, fullPath)
			if err != nil {
				return nil, err
			}
			result = append(result, sub...)
		} else {
			result = append(result, TreeFileEntry{
				Path:     fullPath,
				Mode:     entry.Mode,
				BlobHash: entry.ChildHash,
			})
		}
	}
	return result, nil
}

// LoadTree replaces the staging area with the contents of a stored
// tree: the inverse of BuildTree, used when switching commits.
func (r *Repo) LoadTree(h object.Hash) error {
	files, err := r.FlattenTree(h)
	if err != nil {
		return fmt.Errorf("load tree: %w", err)
	}

	stg := &Staging{Entries: make(map[string]*StagingEntry, len(files))}
	for _, f := range files {
		blob, err := r.Store.ReadBlob(f.BlobHash)
		if err != nil {
			return fmt.Errorf("load tree: read blob for %q: %w", f.Path, err)
		}
		stg.Entries[f.Path] = &StagingEntry{
			Path:     f.Path,
			Mode:     normalizeFileMode(f.Mode),
			BlobHash: f.BlobHash,
			Size:     int64(len(blob.Data)),
		}
	}

	if err := r.WriteStaging(stg); err != nil {
		return fmt.Errorf("load tree: %w", err)
	}
	return nil
}

// treeEntryAtPath descends a tree by slash-separated path and returns
// the file entry at it, if any.
func (r *Repo) treeEntryAtPath(treeHash object.Hash, relPath string) (object.TreeEntry, bool, error) {
	parts := strings.Split(relPath, "/")
	current := treeHash

	for i, part := range parts {
		treeObj, err := r.Store.ReadTree(current)
		if err != nil {
			return object.TreeEntry{}, false, fmt.Errorf("read tree %s: %w", current, err)
		}

		var (
			entry object.TreeEntry
			found bool
		)
		for _, te := range treeObj.Entries {
			if te.Name == part {
				entry = te
				found = true
				break
			}
		}
		if !found {
			return object.TreeEntry{}, false, nil
		}

		last := i == len(parts)-1
		if last {
			if entry.IsDir() {
				return object.TreeEntry{}, false, nil
			}
			return entry, true, nil
		}
		if !entry.IsDir() || entry.ChildHash == "" {
			return object.TreeEntry{}, false, nil
		}
		current = entry.ChildHash
	}

	return object.TreeEntry{}, false, nil
}
