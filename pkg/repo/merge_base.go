package repo

import (
	"container/heap"
	"fmt"

	"github.com/silt-vcs/silt/pkg/object"
)

// Traversal safety limits: a corrupted graph must fail, not spin.
const (
	maxMergeBaseSteps = 1_000_000
	maxMergeBaseDepth = 1_000_000
)

// These vars allow tests to tighten the safety limits without affecting
// production defaults.
var (
	mergeBaseStepsLimit = maxMergeBaseSteps
	mergeBaseDepthLimit = maxMergeBaseDepth
)

func mergeBaseTraversalLimits() (maxSteps, maxDepth int) {
	maxSteps = normalizeTraversalLimit(mergeBaseStepsLimit, maxMergeBaseSteps)
	maxDepth = normalizeTraversalLimit(mergeBaseDepthLimit, maxMergeBaseDepth)
	return maxSteps, maxDepth
}

func normalizeTraversalLimit(limit, hardMax int) int {
	// Safety defaults are hard bounds; hooks may only tighten.
	if limit <= 0 || limit > hardMax {
		return hardMax
	}
	return limit
}

func mergeBaseStepsLimitError(limit int) error {
	return fmt.Errorf("find merge base: traversal exceeded maximum steps (%d)", limit)
}

func mergeBaseDepthLimitError(limit int) error {
	return fmt.Errorf("find merge base: traversal exceeded maximum depth (%d)", limit)
}

// FindMergeBase finds the lowest common ancestor of two commits. The
// search is symmetric in its arguments, uses generation numbers for
// pruning, takes a fast path when one side contains the other, and
// memoizes answers per session. Disjoint histories return ("", nil):
// no common root is permitted, not an error.
func (r *Repo) FindMergeBase(a, b object.Hash) (object.Hash, error) {
	if a == "" || b == "" {
		return "", nil
	}
	if a == b {
		return a, nil
	}

	state := r.getGraphState()
	if cached, ok := state.loadMergeBase(a, b); ok {
		if cached.found {
			return cached.base, nil
		}
		return "", nil
	}

	genA, err := state.generation(r, a)
	if err != nil {
		return "", err
	}
	genB, err := state.generation(r, b)
	if err != nil {
		return "", err
	}

	// Fast path: one side already contains the other.
	if genA <= genB {
		isAncestor, err := r.isAncestorWithGeneration(state, a, b, genA, genB)
		if err != nil {
			return "", err
		}
		if isAncestor {
			state.storeMergeBase(a, b, a, true)
			return a, nil
		}
	} else {
		isAncestor, err := r.isAncestorWithGeneration(state, b, a, genB, genA)
		if err != nil {
			return "", err
		}
		if isAncestor {
			state.storeMergeBase(a, b, b, true)
			return b, nil
		}
	}

	base, found, err := r.findMergeBaseWithPruning(state, a, b, genA, genB)
	if err != nil {
		return "", err
	}
	state.storeMergeBase(a, b, base, found)
	if !found {
		return "", nil
	}
	return base, nil
}

// isAncestorWithGeneration walks descendant's history looking for
// ancestor, pruning lineages whose generation drops below ancestor's.
func (r *Repo) isAncestorWithGeneration(state *graphTraversalState, ancestor, descendant object.Hash, ancestorGeneration, descendantGeneration uint64) (bool, error) {
	if ancestor == descendant {
		return true, nil
	}
	if ancestorGeneration > descendantGeneration {
		return false, nil
	}

	type queueItem struct {
		hash  object.Hash
		depth int
	}

	maxSteps, maxDepth := mergeBaseTraversalLimits()
	visited := map[object.Hash]struct{}{descendant: {}}
	queue := []queueItem{{hash: descendant}}
	steps := 0

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		steps++
		if steps > maxSteps {
			return false, mergeBaseStepsLimitError(maxSteps)
		}
		if item.depth > maxDepth {
			return false, mergeBaseDepthLimitError(maxDepth)
		}

		cur := item.hash
		if cur == ancestor {
			return true, nil
		}

		curGeneration, err := state.generation(r, cur)
		if err != nil {
			return false, err
		}
		if curGeneration <= ancestorGeneration {
			continue
		}

		commit, err := state.readCommit(r, cur)
		if err != nil {
			return false, err
		}
		for _, p := range commit.Parents {
			if p == "" {
				continue
			}
			if _, seen := visited[p]; seen {
				continue
			}
			parentGeneration, err := state.generation(r, p)
			if err != nil {
				return false, err
			}
			if parentGeneration < ancestorGeneration {
				continue
			}
			visited[p] = struct{}{}
			queue = append(queue, queueItem{hash: p, depth: item.depth + 1})
		}
	}

	return false, nil
}

// findMergeBaseWithPruning runs the symmetric two-frontier search:
// ancestors of a are marked as side A explores, and the first time a
// side reaches a node the other side already marked it becomes a
// candidate; generation pruning discards anything that can no longer
// beat the best candidate.
func (r *Repo) findMergeBaseWithPruning(state *graphTraversalState, a, b object.Hash, genA, genB uint64) (object.Hash, bool, error) {
	maxSteps, maxDepth := mergeBaseTraversalLimits()

	visitedA := map[object.Hash]struct{}{a: {}}
	visitedB := map[object.Hash]struct{}{b: {}}
	depthA := map[object.Hash]int{a: 0}
	depthB := map[object.Hash]int{b: 0}

	queueA := commitMaxHeap{{hash: a, generation: genA}}
	queueB := commitMaxHeap{{hash: b, generation: genB}}
	heap.Init(&queueA)
	heap.Init(&queueB)

	best := object.Hash("")
	var bestGeneration uint64
	steps := 0

	for queueA.Len() > 0 || queueB.Len() > 0 {
		if best != "" {
			topA, okA := queueA.Peek()
			topB, okB := queueB.Peek()
			if (!okA || topA.generation < bestGeneration) && (!okB || topB.generation < bestGeneration) {
				break
			}
		}

		traverseA := false
		switch {
		case queueA.Len() == 0:
			traverseA = false
		case queueB.Len() == 0:
			traverseA = true
		default:
			topA := queueA[0]
			topB := queueB[0]
			if topA.generation > topB.generation {
				traverseA = true
			} else if topA.generation < topB.generation {
				traverseA = false
			} else {
				traverseA = topA.hash <= topB.hash
			}
		}

		var item commitQueueItem
		if traverseA {
			item = heap.Pop(&queueA).(commitQueueItem)
		} else {
			item = heap.Pop(&queueB).(commitQueueItem)
		}

		steps++
		if steps > maxSteps {
			return "", false, mergeBaseStepsLimitError(maxSteps)
		}
		if best != "" && item.generation < bestGeneration {
			continue
		}

		itemDepth := 0
		if traverseA {
			itemDepth = depthA[item.hash]
		} else {
			itemDepth = depthB[item.hash]
		}
		if itemDepth > maxDepth {
			return "", false, mergeBaseDepthLimitError(maxDepth)
		}

		if traverseA {
			if _, seen := visitedB[item.hash]; seen {
				best, bestGeneration = chooseBetterMergeBase(best, bestGeneration, item.hash, item.generation)
			}
		} else {
			if _, seen := visitedA[item.hash]; seen {
				best, bestGeneration = chooseBetterMergeBase(best, bestGeneration, item.hash, item.generation)
			}
		}

		commit, err := state.readCommit(r, item.hash)
		if err != nil {
			return "", false, err
		}

		for _, p := range commit.Parents {
			if p == "" {
				continue
			}

			parentGeneration, err := state.generation(r, p)
			if err != nil {
				return "", false, err
			}
			if best != "" && parentGeneration < bestGeneration {
				continue
			}

			childDepth := itemDepth + 1
			if childDepth > maxDepth {
				return "", false, mergeBaseDepthLimitError(maxDepth)
			}

			if traverseA {
				if _, seen := visitedA[p]; seen {
					continue
				}
				visitedA[p] = struct{}{}
				depthA[p] = childDepth
				heap.Push(&queueA, commitQueueItem{hash: p, generation: parentGeneration})
				if _, seen := visitedB[p]; seen {
					best, bestGeneration = chooseBetterMergeBase(best, bestGeneration, p, parentGeneration)
				}
			} else {
				if _, seen := visitedB[p]; seen {
					continue
				}
				visitedB[p] = struct{}{}
				depthB[p] = childDepth
				heap.Push(&queueB, commitQueueItem{hash: p, generation: parentGeneration})
				if _, seen := visitedA[p]; seen {
					best, bestGeneration = chooseBetterMergeBase(best, bestGeneration, p, parentGeneration)
				}
			}
		}
	}

	if best == "" {
		return "", false, nil
	}
	return best, true, nil
}

// chooseBetterMergeBase prefers the deepest candidate (highest
// generation), then the lexicographically smaller hash, so the answer
// is stable and symmetric.
func chooseBetterMergeBase(best object.Hash, bestGeneration uint64, candidate object.Hash, candidateGeneration uint64) (object.Hash, uint64) {
	if best == "" {
		return candidate, candidateGeneration
	}
	if candidateGeneration > bestGeneration {
		return candidate, candidateGeneration
	}
	if candidateGeneration < bestGeneration {
		return best, bestGeneration
	}
	if candidate < best {
		return candidate, candidateGeneration
	}
	return best, bestGeneration
}
