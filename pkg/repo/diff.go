package repo

import (
	"io"
	"path"
	"sort"

	"github.com/silt-vcs/silt/pkg/object"
)

// ChangeKind classifies a single path's difference between two trees.
type ChangeKind string

const (
	ChangeAdded       ChangeKind = "added"
	ChangeRemoved     ChangeKind = "removed"
	ChangeModified    ChangeKind = "modified"
	ChangeModeChanged ChangeKind = "mode_changed"
)

// PathChange is one differing path between two trees.
type PathChange struct {
	Path string
	Kind ChangeKind
}

type diffFrame struct {
	prefix  string
	oldTree object.Hash
	newTree object.Hash
}

// diffWork is either a ready change or a subtree frame still to
// expand. Exactly one field is set.
type diffWork struct {
	change *PathChange
	frame  *diffFrame
}

// TreeDiffWalker streams the differences between two trees in
// lexicographic path order. Subtrees with equal digests are skipped
// without being read; nothing below an unexpanded frame is loaded
// until Next reaches it.
type TreeDiffWalker struct {
	repo  *Repo
	stack []diffWork
}

// DiffTrees starts a walk over the changes from oldTree to newTree.
// Either hash may be empty, which compares against an empty tree.
func (r *Repo) DiffTrees(oldTree, newTree object.Hash) *TreeDiffWalker {
	w := &TreeDiffWalker{repo: r}
	if oldTree != newTree {
		w.stack = append(w.stack, diffWork{frame: &diffFrame{oldTree: oldTree, newTree: newTree}})
	}
	return w
}

// Next returns the next changed path, or io.EOF when the walk is done.
func (w *TreeDiffWalker) Next() (PathChange, error) {
	for {
		if len(w.stack) == 0 {
			return PathChange{}, io.EOF
		}

		item := w.stack[len(w.stack)-1]
		w.stack = w.stack[:len(w.stack)-1]

		if item.change != nil {
			return *item.change, nil
		}
		if err := w.expandFrame(*item.frame); err != nil {
			return PathChange{}, err
		}
	}
}

// Collect drains the walker into a slice.
func (w *TreeDiffWalker) Collect() ([]PathChange, error) {
	var changes []PathChange
	for {
		change, err := w.Next()
		if err == io.EOF {
			return changes, nil
		}
		if err != nil {
			return nil, err
		}
		changes = append(changes, change)
	}
}

// expandFrame merges the two sorted entry lists and pushes the
// resulting work items, so changes and subtree contents come out
// interleaved in path order.
func (w *TreeDiffWalker) expandFrame(frame diffFrame) error {
	oldEntries, err := w.repo.readTreeEntries(frame.oldTree)
	if err != nil {
		return err
	}
	newEntries, err := w.repo.readTreeEntries(frame.newTree)
	if err != nil {
		return err
	}

	var items []diffWork
	i, j := 0, 0
	for i < len(oldEntries) || j < len(newEntries) {
		switch {
		case j >= len(newEntries) || (i < len(oldEntries) && oldEntries[i].Name < newEntries[j].Name):
			items = appendOneSided(items, frame.prefix, oldEntries[i], true)
			i++
		case i >= len(oldEntries) || oldEntries[i].Name > newEntries[j].Name:
			items = appendOneSided(items, frame.prefix, newEntries[j], false)
			j++
		default:
			items = appendPair(items, frame.prefix, oldEntries[i], newEntries[j])
			i++
			j++
		}
	}

	// Stack is LIFO; push in reverse so items replay in order.
	for k := len(items) - 1; k >= 0; k-- {
		w.stack = append(w.stack, items[k])
	}
	return nil
}

func appendOneSided(items []diffWork, prefix string, entry object.TreeEntry, removed bool) []diffWork {
	entryPath := path.Join(prefix, entry.Name)
	if entry.IsDir() {
		sub := &diffFrame{prefix: entryPath}
		if removed {
			sub.oldTree = entry.ChildHash
		} else {
			sub.newTree = entry.ChildHash
		}
		return append(items, diffWork{frame: sub})
	}
	kind := ChangeAdded
	if removed {
		kind = ChangeRemoved
	}
	return append(items, diffWork{change: &PathChange{Path: entryPath, Kind: kind}})
}

func appendPair(items []diffWork, prefix string, oldEntry, newEntry object.TreeEntry) []diffWork {
	entryPath := path.Join(prefix, oldEntry.Name)

	oldDir := oldEntry.IsDir()
	newDir := newEntry.IsDir()

	switch {
	case oldDir && newDir:
		if oldEntry.ChildHash != newEntry.ChildHash {
			items = append(items, diffWork{frame: &diffFrame{
				prefix:  entryPath,
				oldTree: oldEntry.ChildHash,
				newTree: newEntry.ChildHash,
			}})
		}
	case oldDir != newDir:
		// A directory replaced by a file (or vice versa) reads as the
		// old shape removed and the new shape added.
		if oldDir {
			items = append(items, diffWork{frame: &diffFrame{prefix: entryPath, oldTree: oldEntry.ChildHash}})
			items = append(items, diffWork{change: &PathChange{Path: entryPath, Kind: ChangeAdded}})
		} else {
			items = append(items, diffWork{change: &PathChange{Path: entryPath, Kind: ChangeRemoved}})
			items = append(items, diffWork{frame: &diffFrame{prefix: entryPath, newTree: newEntry.ChildHash}})
		}
	case oldEntry.ChildHash != newEntry.ChildHash:
		items = append(items, diffWork{change: &PathChange{Path: entryPath, Kind: ChangeModified}})
	case oldEntry.Mode != newEntry.Mode:
		items = append(items, diffWork{change: &PathChange{Path: entryPath, Kind: ChangeModeChanged}})
	}
	return items
}

// readTreeEntries loads a tree's entries, treating the empty hash as
// an empty tree. Marshal keeps entries sorted, so callers can merge
// the two sides with a single linear pass.
func (r *Repo) readTreeEntries(h object.Hash) ([]object.TreeEntry, error) {
	if h == "" {
		return nil, nil
	}
	tree, err := r.Store.ReadTree(h)
	if err != nil {
		return nil, err
	}
	entries := make([]object.TreeEntry, len(tree.Entries))
	copy(entries, tree.Entries)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}
