package repo

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/silt-vcs/silt/pkg/object"
)

var (
	// ErrBranchExists reports creation of a branch name already in use.
	ErrBranchExists = errors.New("branch already exists")

	// ErrDeleteCurrentBranch reports deletion of the checked-out branch.
	ErrDeleteCurrentBranch = errors.New("cannot delete the current branch")
)

const headsPrefix = "refs/heads/"

// BranchInfo is one branch in a listing.
type BranchInfo struct {
	Name    string
	Hash    object.Hash
	Current bool
}

// CreateBranch creates a branch pointing at the given commit, or at the
// current HEAD when startPoint is empty. Creation is CAS against the
// ref being unset, so two racing creations cannot both win.
func (r *Repo) CreateBranch(name string, startPoint object.Hash) error {
	if err := validateBranchName(name); err != nil {
		return err
	}

	target := startPoint
	if target == "" {
		h, err := r.ResolveRef("HEAD")
		if err != nil {
			return fmt.Errorf("create branch %q: %w", name, err)
		}
		target = h
	}
	if _, err := r.Store.ReadCommit(target); err != nil {
		return fmt.Errorf("create branch %q: %w", name, err)
	}

	if err := r.UpdateRefCAS(headsPrefix+name, target, ""); err != nil {
		if errors.Is(err, ErrRefConflict) {
			return fmt.Errorf("create branch %q: %w", name, ErrBranchExists)
		}
		return fmt.Errorf("create branch %q: %w", name, err)
	}
	return nil
}

// DeleteBranch removes a branch ref. The branch HEAD designates cannot
// be deleted.
func (r *Repo) DeleteBranch(name string) error {
	current, err := r.CurrentBranch()
	if err == nil && current == name {
		return fmt.Errorf("delete branch %q: %w", name, ErrDeleteCurrentBranch)
	}
	if err := r.DeleteRef(headsPrefix + name); err != nil {
		return fmt.Errorf("delete branch %q: %w", name, err)
	}
	return nil
}

// ListBranches returns all branches sorted by name, marking the one
// HEAD designates.
func (r *Repo) ListBranches() ([]BranchInfo, error) {
	refs, err := r.ListRefs(headsPrefix)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}

	current, _ := r.CurrentBranch()

	branches := make([]BranchInfo, 0, len(refs))
	for name, h := range refs {
		short := strings.TrimPrefix(name, headsPrefix)
		branches = append(branches, BranchInfo{
			Name:    short,
			Hash:    h,
			Current: short == current,
		})
	}
	sort.Slice(branches, func(i, j int) bool { return branches[i].Name < branches[j].Name })
	return branches, nil
}

// CurrentBranch returns the short name of the branch HEAD designates,
// or an error when HEAD is detached.
func (r *Repo) CurrentBranch() (string, error) {
	head, err := r.Head()
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(head, headsPrefix) {
		return "", fmt.Errorf("HEAD is detached at %s", head)
	}
	return strings.TrimPrefix(head, headsPrefix), nil
}

func validateBranchName(name string) error {
	if name == "" {
		return errors.New("branch name is empty")
	}
	if strings.HasPrefix(name, "-") || strings.Contains(name, "..") ||
		strings.ContainsAny(name, " ~^:?*[\\") ||
		strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") ||
		strings.HasSuffix(name, ".lock") {
		return fmt.Errorf("invalid branch name %q", name)
	}
	return nil
}
