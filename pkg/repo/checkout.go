package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/silt-vcs/silt/pkg/object"
)

// ErrWorktreeDirty reports a checkout attempted over uncommitted
// changes.
var ErrWorktreeDirty = errors.New("working tree has uncommitted changes")

// Checkout switches the working tree and HEAD to the given target: a
// branch name, a tag name, or a commit hash. Branch names keep HEAD
// symbolic; anything else detaches it. The working tree must be clean
// of staged and unstaged changes first.
func (r *Repo) Checkout(target string) error {
	st, err := r.Status()
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	if len(st.Staged) > 0 || len(st.Unstaged) > 0 {
		return fmt.Errorf("checkout %q: %w", target, ErrWorktreeDirty)
	}

	commitHash, branchRef, err := r.resolveCheckoutTarget(target)
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	commit, err := r.Store.ReadCommit(commitHash)
	if err != nil {
		return fmt.Errorf("checkout %q: %w", target, err)
	}

	if err := r.materializeTree(commit.TreeHash); err != nil {
		return fmt.Errorf("checkout %q: %w", target, err)
	}
	if err := r.LoadTree(commit.TreeHash); err != nil {
		return fmt.Errorf("checkout %q: %w", target, err)
	}

	if branchRef != "" {
		if err := r.CreateSymbolicRef("HEAD", branchRef); err != nil {
			return fmt.Errorf("checkout %q: %w", target, err)
		}
		return nil
	}
	if err := r.detachHead(commitHash); err != nil {
		return fmt.Errorf("checkout %q: %w", target, err)
	}
	return nil
}

// resolveCheckoutTarget maps a checkout target to the commit it names
// and, for branches, the ref HEAD should point at.
func (r *Repo) resolveCheckoutTarget(target string) (object.Hash, string, error) {
	branchRef := headsPrefix + target
	if _, _, _, exists, err := r.readRefFile(branchRef); err != nil {
		return "", "", err
	} else if exists {
		h, err := r.ResolveRef(branchRef)
		if err != nil {
			return "", "", err
		}
		return h, branchRef, nil
	}

	tagRef := tagsPrefix + target
	if _, _, _, exists, err := r.readRefFile(tagRef); err != nil {
		return "", "", err
	} else if exists {
		h, err := r.ResolveRef(tagRef)
		if err != nil {
			return "", "", err
		}
		commitHash, err := r.peelToCommit(h)
		if err != nil {
			return "", "", err
		}
		return commitHash, "", nil
	}

	if object.ValidHash(object.Hash(target)) {
		commitHash, err := r.peelToCommit(object.Hash(target))
		if err != nil {
			return "", "", err
		}
		return commitHash, "", nil
	}

	return "", "", fmt.Errorf("target %q: %w", target, ErrRefNotFound)
}

// detachHead writes a raw hash into HEAD. Written directly: UpdateRefCAS
// on HEAD would follow the symref and move the branch instead.
func (r *Repo) detachHead(h object.Hash) error {
	headPath := filepath.Join(r.SiltDir, "HEAD")
	tmp, err := os.CreateTemp(r.SiltDir, "HEAD-*")
	if err != nil {
		return fmt.Errorf("detach HEAD: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(string(h) + "\n"); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("detach HEAD: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("detach HEAD: %w", err)
	}
	if err := os.Rename(tmpName, headPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("detach HEAD: %w", err)
	}
	return nil
}

// peelToCommit follows tag objects until a commit is reached.
func (r *Repo) peelToCommit(h object.Hash) (object.Hash, error) {
	for depth := 0; depth < maxSymrefDepth; depth++ {
		objType, _, err := r.Store.Read(h)
		if err != nil {
			return "", err
		}
		switch objType {
		case object.TypeCommit:
			return h, nil
		case object.TypeTag:
			tag, err := r.Store.ReadTag(h)
			if err != nil {
				return "", err
			}
			h = tag.TargetHash
		default:
			return "", fmt.Errorf("object %s is a %s, not a commit", h, objType)
		}
	}
	return "", fmt.Errorf("tag chain from %s too deep", h)
}
