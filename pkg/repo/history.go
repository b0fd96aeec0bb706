package repo

import (
	"container/heap"
	"fmt"
	"io"

	"github.com/silt-vcs/silt/pkg/object"
)

// HistoryWalker lazily enumerates the ancestors of a commit, the start
// commit first, in topological order: a commit is always produced
// before any of its parents (generation numbers guarantee this), with
// newer timestamps winning between unrelated lineages. Each digest is
// produced at most once, diamonds included.
//
// A walker is single-use and holds no shared cursor state: every
// Ancestors call starts a fresh, restartable traversal. Traversal is
// read-only, so a consumer may simply stop calling Next at any point.
type HistoryWalker struct {
	repo     *Repo
	state    *graphTraversalState
	frontier commitMaxHeap
	visited  map[object.Hash]struct{}
}

// Ancestors returns a walker over start and all commits reachable from
// it through parent links.
func (r *Repo) Ancestors(start object.Hash) *HistoryWalker {
	w := &HistoryWalker{
		repo:    r,
		state:   r.getGraphState(),
		visited: make(map[object.Hash]struct{}),
	}
	heap.Init(&w.frontier)
	if start != "" {
		w.visited[start] = struct{}{}
		// Generation is resolved lazily on the first Next so a bad start
		// hash surfaces as the walker's first error, not here.
		heap.Push(&w.frontier, commitQueueItem{hash: start})
	}
	return w
}

// Next returns the next commit in traversal order. It returns io.EOF
// when history is exhausted.
func (w *HistoryWalker) Next() (object.Hash, *object.CommitObj, error) {
	if w.frontier.Len() == 0 {
		return "", nil, io.EOF
	}

	item := heap.Pop(&w.frontier).(commitQueueItem)
	commit, err := w.state.readCommit(w.repo, item.hash)
	if err != nil {
		return "", nil, fmt.Errorf("ancestors: %w", err)
	}

	for _, p := range commit.Parents {
		if p == "" {
			continue
		}
		if _, seen := w.visited[p]; seen {
			continue
		}
		gen, err := w.state.generation(w.repo, p)
		if err != nil {
			return "", nil, fmt.Errorf("ancestors: %w", err)
		}
		parent, err := w.state.readCommit(w.repo, p)
		if err != nil {
			return "", nil, fmt.Errorf("ancestors: %w", err)
		}
		w.visited[p] = struct{}{}
		heap.Push(&w.frontier, commitQueueItem{
			hash:       p,
			generation: gen,
			timestamp:  parent.Timestamp,
		})
	}

	return item.hash, commit, nil
}

// LogEntry pairs a commit with its digest for history listings.
type LogEntry struct {
	Hash   object.Hash
	Commit *object.CommitObj
}

// Log walks history from start and returns up to limit entries, newest
// first in traversal order. A zero or negative limit returns all
// reachable history.
func (r *Repo) Log(start object.Hash, limit int) ([]LogEntry, error) {
	var entries []LogEntry
	walker := r.Ancestors(start)
	for limit <= 0 || len(entries) < limit {
		h, commit, err := walker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("log: %w", err)
		}
		entries = append(entries, LogEntry{Hash: h, Commit: commit})
	}
	return entries, nil
}

// IsAncestor reports whether ancestor is reachable from descendant
// (a commit counts as its own ancestor).
func (r *Repo) IsAncestor(ancestor, descendant object.Hash) (bool, error) {
	if ancestor == "" || descendant == "" {
		return false, nil
	}
	state := r.getGraphState()
	ancestorGen, err := state.generation(r, ancestor)
	if err != nil {
		return false, err
	}
	descendantGen, err := state.generation(r, descendant)
	if err != nil {
		return false, err
	}
	return r.isAncestorWithGeneration(state, ancestor, descendant, ancestorGen, descendantGen)
}
