package repo

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/silt-vcs/silt/pkg/object"
)

// zeroHash stands in for "no object" on either side of a transition:
// ref creation records it as the old value, deletion as the new one.
const zeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

// ReflogEntry is one recorded ref transition. On disk each entry is a
// single line, "<old> <new> <unix-ts> <reason>".
type ReflogEntry struct {
	Ref       string
	OldHash   object.Hash
	NewHash   object.Hash
	Timestamp int64
	Reason    string
}

func (e ReflogEntry) marshal() string {
	return fmt.Sprintf("%s %s %d %s\n", orZeroHash(e.OldHash), orZeroHash(e.NewHash), e.Timestamp, e.Reason)
}

func orZeroHash(h object.Hash) string {
	if strings.TrimSpace(string(h)) == "" {
		return zeroHash
	}
	return string(h)
}

// parseReflogLine decodes one log line. Lines that do not parse are
// skipped by the caller rather than failing the whole read: a torn
// final line must not make the log unreadable.
func parseReflogLine(ref, line string) (ReflogEntry, bool) {
	fields := strings.SplitN(line, " ", 4)
	if len(fields) < 4 {
		return ReflogEntry{}, false
	}
	ts, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return ReflogEntry{}, false
	}
	return ReflogEntry{
		Ref:       ref,
		OldHash:   object.Hash(fields[0]),
		NewHash:   object.Hash(fields[1]),
		Timestamp: ts,
		Reason:    fields[3],
	}, true
}

func (r *Repo) reflogPath(ref string) string {
	return filepath.Join(r.SiltDir, "logs", filepath.FromSlash(ref))
}

func (r *Repo) appendReflog(ref string, oldHash, newHash object.Hash, reason string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}
	if strings.TrimSpace(reason) == "" {
		reason = "update"
	}

	entry := ReflogEntry{
		Ref:       ref,
		OldHash:   oldHash,
		NewHash:   newHash,
		Timestamp: time.Now().Unix(),
		Reason:    reason,
	}

	logPath := r.reflogPath(ref)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("reflog %q: mkdir: %w", ref, err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("reflog %q: open: %w", ref, err)
	}
	_, writeErr := f.WriteString(entry.marshal())
	closeErr := f.Close()
	if writeErr != nil {
		return fmt.Errorf("reflog %q: append: %w", ref, writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("reflog %q: close: %w", ref, closeErr)
	}
	return nil
}

// ReadReflog returns up to limit entries for ref, newest first. An
// empty ref (or "HEAD") reads the log of the currently checked-out
// branch. A zero or negative limit returns everything; a ref with no
// log yet yields nil.
func (r *Repo) ReadReflog(ref string, limit int) ([]ReflogEntry, error) {
	refName := r.reflogTarget(ref)

	f, err := os.Open(r.reflogPath(refName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reflog %q: %w", refName, err)
	}
	defer f.Close()

	var entries []ReflogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		entry, ok := parseReflogLine(refName, strings.TrimSpace(scanner.Text()))
		if ok {
			entries = append(entries, entry)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reflog %q: %w", refName, err)
	}

	slices.Reverse(entries)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// reflogTarget maps a caller-supplied ref to the log it should read.
// HEAD follows the symref so "reflog" on a branch shows that branch's
// transitions, not the HEAD file's.
func (r *Repo) reflogTarget(ref string) string {
	switch ref = strings.TrimSpace(ref); {
	case ref == "" || ref == "HEAD":
		head, err := r.Head()
		if err == nil && strings.HasPrefix(head, "refs/") {
			return head
		}
		return "HEAD"
	case strings.HasPrefix(ref, "refs/"):
		return ref
	default:
		return "refs/heads/" + ref
	}
}
