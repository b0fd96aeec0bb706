package repo

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/silt-vcs/silt/pkg/object"
)

// Status summarizes the repository state: index against the HEAD tree,
// working tree against the index, and files the index does not know.
type Status struct {
	Branch    string // short branch name, empty when detached
	Detached  bool
	Head      object.Hash // resolved HEAD, empty on an unborn branch
	Staged    []PathChange
	Unstaged  []PathChange
	Untracked []string
}

// Clean reports whether there is nothing staged, nothing modified, and
// nothing untracked.
func (s *Status) Clean() bool {
	return len(s.Staged) == 0 && len(s.Unstaged) == 0 && len(s.Untracked) == 0
}

// Status computes the current repository status. Working-file staleness
// is decided by stat data first; only files whose size or mtime moved
// are re-hashed.
func (r *Repo) Status() (*Status, error) {
	st := &Status{}

	head, err := r.Head()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	if strings.HasPrefix(head, "refs/heads/") {
		st.Branch = strings.TrimPrefix(head, "refs/heads/")
	} else {
		st.Detached = true
	}

	if h, err := r.ResolveRef("HEAD"); err == nil {
		st.Head = h
	}

	stg, err := r.ReadStaging()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	staged, err := r.stagedChanges(st.Head, stg)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	st.Staged = staged

	unstaged, err := r.unstagedChanges(stg)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	st.Unstaged = unstaged

	untracked, err := r.untrackedFiles(stg)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	st.Untracked = untracked

	return st, nil
}

// stagedChanges compares the index against the HEAD commit's tree.
func (r *Repo) stagedChanges(headHash object.Hash, stg *Staging) ([]PathChange, error) {
	headFiles := map[string]TreeFileEntry{}
	if headHash != "" {
		commit, err := r.Store.ReadCommit(headHash)
		if err != nil {
			return nil, err
		}
		headFiles, err = r.flattenOptional(commit.TreeHash)
		if err != nil {
			return nil, err
		}
	}

	var changes []PathChange
	for p, entry := range stg.Entries {
		headEntry, tracked := headFiles[p]
		switch {
		case !tracked:
			changes = append(changes, PathChange{Path: p, Kind: ChangeAdded})
		case headEntry.BlobHash != entry.BlobHash:
			changes = append(changes, PathChange{Path: p, Kind: ChangeModified})
		case normalizeFileMode(headEntry.Mode) != normalizeFileMode(entry.Mode):
			changes = append(changes, PathChange{Path: p, Kind: ChangeModeChanged})
		}
	}
	for p := range headFiles {
		if _, staged := stg.Entries[p]; !staged {
			changes = append(changes, PathChange{Path: p, Kind: ChangeRemoved})
		}
	}

	sortPathChanges(changes)
	return changes, nil
}

// unstagedChanges compares the working tree against the index.
func (r *Repo) unstagedChanges(stg *Staging) ([]PathChange, error) {
	var changes []PathChange
	for p, entry := range stg.Entries {
		absPath := filepath.Join(r.RootDir, filepath.FromSlash(p))
		info, err := os.Stat(absPath)
		if os.IsNotExist(err) {
			changes = append(changes, PathChange{Path: p, Kind: ChangeRemoved})
			continue
		}
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			changes = append(changes, PathChange{Path: p, Kind: ChangeRemoved})
			continue
		}

		modeChanged := modeFromFileInfo(info) != normalizeFileMode(entry.Mode)

		// Stat match means the staged blob is still current.
		if !modeChanged && info.Size() == entry.Size && info.ModTime().Unix() == entry.ModTime {
			continue
		}

		data, err := os.ReadFile(absPath)
		if err != nil {
			return nil, err
		}
		switch {
		case object.HashObject(object.TypeBlob, data) != entry.BlobHash:
			changes = append(changes, PathChange{Path: p, Kind: ChangeModified})
		case modeChanged:
			changes = append(changes, PathChange{Path: p, Kind: ChangeModeChanged})
		}
	}

	sortPathChanges(changes)
	return changes, nil
}

// untrackedFiles walks the working tree for files absent from the
// index. The state directory is skipped.
func (r *Repo) untrackedFiles(stg *Staging) ([]string, error) {
	var untracked []string
	err := filepath.WalkDir(r.RootDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p == r.SiltDir {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(r.RootDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if _, tracked := stg.Entries[rel]; !tracked {
			untracked = append(untracked, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(untracked)
	return untracked, nil
}

func sortPathChanges(changes []PathChange) {
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
}
