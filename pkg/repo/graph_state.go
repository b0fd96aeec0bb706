package repo

import (
	"fmt"
	"sync"

	"github.com/silt-vcs/silt/pkg/object"
)

// graphTraversalState memoizes decoded commits, generation numbers, and
// merge-base answers for one session. Commits are immutable, so the
// caches are append-only and safe to share across traversals.
type graphTraversalState struct {
	mu sync.RWMutex

	commits     map[object.Hash]*object.CommitObj
	generations map[object.Hash]uint64
	mergeBases  map[mergeBaseCacheKey]mergeBaseCacheEntry
}

type mergeBaseCacheKey struct {
	left  object.Hash
	right object.Hash
}

type mergeBaseCacheEntry struct {
	base  object.Hash
	found bool
}

func newGraphTraversalState() *graphTraversalState {
	return &graphTraversalState{
		commits:     make(map[object.Hash]*object.CommitObj),
		generations: make(map[object.Hash]uint64),
		mergeBases:  make(map[mergeBaseCacheKey]mergeBaseCacheEntry),
	}
}

// canonicalMergeBaseCacheKey orders the pair so lookups are symmetric.
func canonicalMergeBaseCacheKey(a, b object.Hash) mergeBaseCacheKey {
	if a <= b {
		return mergeBaseCacheKey{left: a, right: b}
	}
	return mergeBaseCacheKey{left: b, right: a}
}

func (s *graphTraversalState) loadMergeBase(a, b object.Hash) (mergeBaseCacheEntry, bool) {
	key := canonicalMergeBaseCacheKey(a, b)
	s.mu.RLock()
	entry, ok := s.mergeBases[key]
	s.mu.RUnlock()
	return entry, ok
}

func (s *graphTraversalState) storeMergeBase(a, b, base object.Hash, found bool) {
	key := canonicalMergeBaseCacheKey(a, b)
	s.mu.Lock()
	s.mergeBases[key] = mergeBaseCacheEntry{base: base, found: found}
	s.mu.Unlock()
}

func (s *graphTraversalState) readCommit(r *Repo, h object.Hash) (*object.CommitObj, error) {
	s.mu.RLock()
	cached, ok := s.commits[h]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	commit, err := r.Store.ReadCommit(h)
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", h, err)
	}

	s.mu.Lock()
	if existing, exists := s.commits[h]; exists {
		s.mu.Unlock()
		return existing, nil
	}
	s.commits[h] = commit
	s.mu.Unlock()
	return commit, nil
}

func (s *graphTraversalState) loadGeneration(h object.Hash) (uint64, bool) {
	s.mu.RLock()
	g, ok := s.generations[h]
	s.mu.RUnlock()
	return g, ok
}

func (s *graphTraversalState) storeGeneration(h object.Hash, g uint64) {
	s.mu.Lock()
	s.generations[h] = g
	s.mu.Unlock()
}

// generation computes the generation number of a commit: 1 for roots,
// max(parent generations)+1 otherwise. Generation strictly decreases
// along parent links, which is what makes it usable both for
// topological ordering and for merge-base pruning.
func (s *graphTraversalState) generation(r *Repo, h object.Hash) (uint64, error) {
	return s.generationRecursive(r, h, make(map[object.Hash]bool))
}

func (s *graphTraversalState) generationRecursive(r *Repo, h object.Hash, visiting map[object.Hash]bool) (uint64, error) {
	if h == "" {
		return 0, nil
	}
	if g, ok := s.loadGeneration(h); ok {
		return g, nil
	}
	if visiting[h] {
		return 0, fmt.Errorf("commit graph cycle detected at %s", h)
	}

	visiting[h] = true
	commit, err := s.readCommit(r, h)
	if err != nil {
		delete(visiting, h)
		return 0, err
	}

	var maxParentGeneration uint64
	for _, p := range commit.Parents {
		pg, err := s.generationRecursive(r, p, visiting)
		if err != nil {
			delete(visiting, h)
			return 0, err
		}
		if pg > maxParentGeneration {
			maxParentGeneration = pg
		}
	}

	generation := maxParentGeneration + 1
	s.storeGeneration(h, generation)
	delete(visiting, h)
	return generation, nil
}

// commitQueueItem is a prioritized frontier entry for graph walks.
type commitQueueItem struct {
	hash       object.Hash
	generation uint64
	timestamp  int64
}

// commitMaxHeap pops the highest generation first, breaking ties by
// newest timestamp, then smallest hash.
type commitMaxHeap []commitQueueItem

func (h commitMaxHeap) Len() int { return len(h) }

func (h commitMaxHeap) Less(i, j int) bool {
	if h[i].generation != h[j].generation {
		return h[i].generation > h[j].generation
	}
	if h[i].timestamp != h[j].timestamp {
		return h[i].timestamp > h[j].timestamp
	}
	return h[i].hash < h[j].hash
}

func (h commitMaxHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *commitMaxHeap) Push(x any) {
	*h = append(*h, x.(commitQueueItem))
}

func (h *commitMaxHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func (h commitMaxHeap) Peek() (commitQueueItem, bool) {
	if len(h) == 0 {
		return commitQueueItem{}, false
	}
	return h[0], true
}
