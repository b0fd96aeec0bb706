package repo

import (
	"sync"

	"github.com/silt-vcs/silt/pkg/object"
)

// Repo represents an opened silt repository. It is an explicit session
// value: all repository state (current branch, working directory,
// caches) hangs off it, never off process-wide globals.
type Repo struct {
	RootDir string        // working directory root
	SiltDir string        // .silt/ directory
	Store   *object.Store // content-addressed object store

	graphStateOnce sync.Once
	graphState     *graphTraversalState
}

func (r *Repo) getGraphState() *graphTraversalState {
	r.graphStateOnce.Do(func() {
		r.graphState = newGraphTraversalState()
	})
	return r.graphState
}
