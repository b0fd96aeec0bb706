package repo

import (
	"fmt"

	"github.com/silt-vcs/silt/pkg/object"
)

// GCResult summarizes one garbage collection run.
type GCResult struct {
	Scanned int
	Removed int
}

// GC removes objects unreachable from any ref, HEAD, or the staging
// index. Reachability follows object references transitively, so a
// commit kept by a branch keeps its whole tree and history alive.
func (r *Repo) GC() (*GCResult, error) {
	roots, err := r.gcRoots()
	if err != nil {
		return nil, fmt.Errorf("gc: %w", err)
	}

	reachable, err := r.Store.ReachableSet(roots)
	if err != nil {
		return nil, fmt.Errorf("gc: %w", err)
	}

	all, err := r.Store.ListObjects()
	if err != nil {
		return nil, fmt.Errorf("gc: %w", err)
	}

	result := &GCResult{Scanned: len(all)}
	for _, h := range all {
		if _, keep := reachable[h]; keep {
			continue
		}
		if err := r.Store.Remove(h); err != nil {
			return nil, fmt.Errorf("gc: %w", err)
		}
		result.Removed++
	}
	return result, nil
}

// gcRoots collects every hash that anchors liveness: all refs, the
// resolved HEAD (covers detached state), and blobs staged in the index.
func (r *Repo) gcRoots() ([]object.Hash, error) {
	var roots []object.Hash

	refs, err := r.ListRefs("refs/")
	if err != nil {
		return nil, err
	}
	for _, h := range refs {
		roots = append(roots, h)
	}

	if h, err := r.ResolveRef("HEAD"); err == nil && h != "" {
		roots = append(roots, h)
	}

	stg, err := r.ReadStaging()
	if err != nil {
		return nil, err
	}
	for _, entry := range stg.Entries {
		roots = append(roots, entry.BlobHash)
	}

	return roots, nil
}
