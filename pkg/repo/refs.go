package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/silt-vcs/silt/pkg/object"
)

// A ref file holds either "<hash>\n" (direct) or "ref: <name>\n"
// (symbolic). A ref is in one of three states: Unset (no file),
// Direct, or Symbolic.

const symrefPrefix = "ref: "

// maxSymrefDepth bounds symbolic indirection so a cyclic chain fails
// fast instead of looping.
const maxSymrefDepth = 8

var (
	// ErrRefConflict reports a compare-and-swap mismatch. Expected under
	// concurrent ref advancement; callers re-resolve and retry.
	ErrRefConflict = errors.New("ref compare-and-swap conflict")

	// ErrRefNotFound reports a ref that is unset.
	ErrRefNotFound = errors.New("ref not found")

	// ErrUnresolvedRef reports a symbolic chain that is cyclic or exceeds
	// the indirection bound. Fatal to the calling operation.
	ErrUnresolvedRef = errors.New("unresolved symbolic ref")

	// ErrRefUpdatedButReflogAppendFailed marks a ref update that
	// committed even though its reflog entry could not be appended.
	ErrRefUpdatedButReflogAppendFailed = errors.New("ref updated but reflog append failed")
)

const (
	refLockRetryDelay = 5 * time.Millisecond
	refLockWaitLimit  = 2 * time.Second
)

// RefUpdateReflogError indicates the ref file update succeeded, but
// appending the corresponding reflog entry failed.
type RefUpdateReflogError struct {
	Ref     string
	OldHash object.Hash
	NewHash object.Hash
	Err     error
}

func (e *RefUpdateReflogError) Error() string {
	return fmt.Sprintf(
		"update ref %q: %s (old=%s new=%s): %v",
		e.Ref, ErrRefUpdatedButReflogAppendFailed, e.OldHash, e.NewHash, e.Err,
	)
}

func (e *RefUpdateReflogError) Unwrap() error { return e.Err }

func (e *RefUpdateReflogError) Is(target error) bool {
	return target == ErrRefUpdatedButReflogAppendFailed
}

// refFilePath maps a ref name to its file under .silt/. Bare names are
// shorthand for branches.
func (r *Repo) refFilePath(name string) string {
	if name == "HEAD" {
		return filepath.Join(r.SiltDir, "HEAD")
	}
	if strings.HasPrefix(name, "refs/") {
		return filepath.Join(r.SiltDir, filepath.FromSlash(name))
	}
	return filepath.Join(r.SiltDir, "refs", "heads", name)
}

// readRefFile reads one ref file without following indirection.
// exists is false for an Unset ref.
func (r *Repo) readRefFile(name string) (symbolic bool, target string, h object.Hash, exists bool, err error) {
	data, err := os.ReadFile(r.refFilePath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, "", "", false, nil
		}
		return false, "", "", false, fmt.Errorf("read ref %q: %w", name, err)
	}
	content := strings.TrimSpace(string(data))
	if strings.HasPrefix(content, symrefPrefix) {
		return true, strings.TrimSpace(strings.TrimPrefix(content, symrefPrefix)), "", true, nil
	}
	return false, "", object.Hash(content), true, nil
}

// Head returns the HEAD target: a ref name (e.g. "refs/heads/main")
// when HEAD is symbolic, or the raw hash string when detached.
func (r *Repo) Head() (string, error) {
	symbolic, target, h, exists, err := r.readRefFile("HEAD")
	if err != nil {
		return "", fmt.Errorf("head: %w", err)
	}
	if !exists {
		return "", fmt.Errorf("head: %w", ErrRefNotFound)
	}
	if symbolic {
		return target, nil
	}
	return string(h), nil
}

// ResolveRef resolves a ref name to an object hash, following symbolic
// indirection to a terminal direct ref. Resolution always terminates:
// chains longer than maxSymrefDepth (cycles included) fail with
// ErrUnresolvedRef, and an unset terminal fails with ErrRefNotFound.
func (r *Repo) ResolveRef(name string) (object.Hash, error) {
	cur := name
	for depth := 0; depth < maxSymrefDepth; depth++ {
		symbolic, target, h, exists, err := r.readRefFile(cur)
		if err != nil {
			return "", err
		}
		if !exists {
			return "", fmt.Errorf("resolve ref %q: %q: %w", name, cur, ErrRefNotFound)
		}
		if symbolic {
			cur = target
			continue
		}
		if h == "" {
			return "", fmt.Errorf("resolve ref %q: empty ref file %q: %w", name, cur, ErrUnresolvedRef)
		}
		return h, nil
	}
	return "", fmt.Errorf("resolve ref %q: symbolic chain exceeds depth %d: %w", name, maxSymrefDepth, ErrUnresolvedRef)
}

// resolveTerminalRefName follows symbolic indirection and returns the
// name of the terminal ref, which may be unset.
func (r *Repo) resolveTerminalRefName(name string) (string, error) {
	cur := name
	for depth := 0; depth < maxSymrefDepth; depth++ {
		symbolic, target, _, exists, err := r.readRefFile(cur)
		if err != nil {
			return "", err
		}
		if !exists || !symbolic {
			return cur, nil
		}
		cur = target
	}
	return "", fmt.Errorf("ref %q: symbolic chain exceeds depth %d: %w", name, maxSymrefDepth, ErrUnresolvedRef)
}

// UpdateRefCAS writes a hash to the named ref using lockfile + rename
// atomic semantics. Symbolic refs are written through to their terminal
// direct ref. If expectedOld is provided, the update only succeeds when
// the current stored hash matches it; pass an empty expected hash to
// require the ref to be unset. Without expectedOld the write is
// unconditional.
//
// Reflog append happens after the ref rename; if it fails, the ref
// update remains committed and a RefUpdateReflogError is returned.
func (r *Repo) UpdateRefCAS(name string, h object.Hash, expectedOld ...object.Hash) error {
	if len(expectedOld) > 1 {
		return fmt.Errorf("update ref %q: expected at most one old hash", name)
	}

	terminal, err := r.resolveTerminalRefName(name)
	if err != nil {
		return fmt.Errorf("update ref %q: %w", name, err)
	}

	refPath := r.refFilePath(terminal)
	if err := os.MkdirAll(filepath.Dir(refPath), 0o755); err != nil {
		return fmt.Errorf("update ref %q: mkdir: %w", terminal, err)
	}

	lockPath := refPath + ".lock"
	lockFile, err := acquireRefLock(lockPath)
	if err != nil {
		return fmt.Errorf("update ref %q: lock: %w", terminal, err)
	}
	cleanupLock := true
	defer func() {
		if lockFile != nil {
			_ = lockFile.Close()
		}
		if cleanupLock {
			_ = os.Remove(lockPath)
		}
	}()

	oldHash, err := readRefHash(refPath)
	if err != nil {
		return fmt.Errorf("update ref %q: read old hash: %w", terminal, err)
	}
	if len(expectedOld) == 1 && oldHash != expectedOld[0] {
		return fmt.Errorf(
			"update ref %q: %w (expected %q, found %q)",
			terminal, ErrRefConflict, expectedOld[0], oldHash,
		)
	}

	if _, err := lockFile.WriteString(string(h) + "\n"); err != nil {
		return fmt.Errorf("update ref %q: write: %w", terminal, err)
	}
	if err := lockFile.Sync(); err != nil {
		return fmt.Errorf("update ref %q: sync: %w", terminal, err)
	}
	if err := lockFile.Close(); err != nil {
		lockFile = nil
		return fmt.Errorf("update ref %q: close: %w", terminal, err)
	}
	lockFile = nil

	if err := os.Rename(lockPath, refPath); err != nil {
		return fmt.Errorf("update ref %q: rename: %w", terminal, err)
	}
	cleanupLock = false

	if err := r.appendReflog(terminal, oldHash, h, "update"); err != nil {
		return &RefUpdateReflogError{
			Ref:     terminal,
			OldHash: oldHash,
			NewHash: h,
			Err:     err,
		}
	}

	return nil
}

// CreateSymbolicRef writes name as a symbolic ref pointing at
// targetName. The target must exist: a symbolic ref may never dangle.
func (r *Repo) CreateSymbolicRef(name, targetName string) error {
	_, _, _, exists, err := r.readRefFile(targetName)
	if err != nil {
		return fmt.Errorf("create symbolic ref %q: %w", name, err)
	}
	if !exists {
		return fmt.Errorf("create symbolic ref %q: target %q: %w", name, targetName, ErrRefNotFound)
	}

	refPath := r.refFilePath(name)
	if err := os.MkdirAll(filepath.Dir(refPath), 0o755); err != nil {
		return fmt.Errorf("create symbolic ref %q: mkdir: %w", name, err)
	}
	if err := os.WriteFile(refPath, []byte(symrefPrefix+targetName+"\n"), 0o644); err != nil {
		return fmt.Errorf("create symbolic ref %q: %w", name, err)
	}
	return nil
}

// DeleteRef removes the named ref file.
func (r *Repo) DeleteRef(name string) error {
	if err := os.Remove(r.refFilePath(name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("delete ref %q: %w", name, ErrRefNotFound)
		}
		return fmt.Errorf("delete ref %q: %w", name, err)
	}
	return nil
}

// ListRefs lists direct references whose fully qualified name starts
// with prefix, e.g. "refs/heads/" or "refs/tags/". Names are returned
// fully qualified ("refs/heads/main"). An empty prefix lists all of
// "refs/".
func (r *Repo) ListRefs(prefix string) (map[string]object.Hash, error) {
	if strings.TrimSpace(prefix) == "" {
		prefix = "refs/"
	}
	dir := filepath.Join(r.SiltDir, filepath.FromSlash(prefix))

	refs := make(map[string]object.Hash)
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || strings.HasSuffix(path, ".lock") {
			return nil
		}

		rel, err := filepath.Rel(r.SiltDir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		content := strings.TrimSpace(string(data))
		if strings.HasPrefix(content, symrefPrefix) {
			return nil
		}
		refs[name] = object.Hash(content)
		return nil
	})
	if os.IsNotExist(err) {
		return refs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	return refs, nil
}

func acquireRefLock(lockPath string) (*os.File, error) {
	deadline := time.Now().Add(refLockWaitLimit)
	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if os.IsExist(err) {
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("timeout waiting for lock %q", lockPath)
			}
			time.Sleep(refLockRetryDelay)
			continue
		}
		return nil, err
	}
}

func readRefHash(refPath string) (object.Hash, error) {
	data, err := os.ReadFile(refPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return object.Hash(strings.TrimSpace(string(data))), nil
}
