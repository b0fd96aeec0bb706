package repo

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/silt-vcs/silt/pkg/object"
)

// ErrMergeConflicts reports that a merge stopped with unresolved paths.
var ErrMergeConflicts = errors.New("merge produced conflicts")

// MergeConflict describes one path the three-way merge could not
// resolve. The hashes name the blob each side holds; an empty hash
// means the side does not have the path.
type MergeConflict struct {
	Path   string
	Base   object.Hash
	Ours   object.Hash
	Theirs object.Hash
}

// MergeResult is the outcome of merging two trees against a common
// base. TreeHash names the merged tree; conflicted paths appear in it
// with conflict markers rendered into their content.
type MergeResult struct {
	TreeHash  object.Hash
	Conflicts []MergeConflict
}

func (m *MergeResult) HasConflicts() bool { return len(m.Conflicts) > 0 }

// MergeOutcome is the result of a branch-level merge.
type MergeOutcome struct {
	CommitHash      object.Hash
	Result          MergeResult
	FastForward     bool
	AlreadyUpToDate bool
}

type mergeSide struct {
	present bool
	hash    object.Hash
	mode    string
}

func (s mergeSide) equal(o mergeSide) bool {
	if s.present != o.present {
		return false
	}
	if !s.present {
		return true
	}
	return s.hash == o.hash && s.mode == o.mode
}

// MergeTrees performs a whole-file three-way merge of ours and theirs
// against base. Any of the tree hashes may be empty, meaning an empty
// tree. Per path: agreement wins outright, a side that matches base
// yields to the other, and anything else is a conflict — including one
// side deleting what the other modified.
func (r *Repo) MergeTrees(baseTree, oursTree, theirsTree object.Hash) (*MergeResult, error) {
	baseFiles, err := r.flattenOptional(baseTree)
	if err != nil {
		return nil, err
	}
	oursFiles, err := r.flattenOptional(oursTree)
	if err != nil {
		return nil, err
	}
	theirsFiles, err := r.flattenOptional(theirsTree)
	if err != nil {
		return nil, err
	}

	paths := make(map[string]struct{})
	for p := range baseFiles {
		paths[p] = struct{}{}
	}
	for p := range oursFiles {
		paths[p] = struct{}{}
	}
	for p := range theirsFiles {
		paths[p] = struct{}{}
	}

	sorted := make([]string, 0, len(paths))
	for p := range paths {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	result := &MergeResult{}
	merged := &Staging{Entries: make(map[string]*StagingEntry)}

	for _, p := range sorted {
		base := sideFor(baseFiles, p)
		ours := sideFor(oursFiles, p)
		theirs := sideFor(theirsFiles, p)

		var take mergeSide
		switch {
		case ours.equal(theirs):
			take = ours
		case ours.equal(base):
			take = theirs
		case theirs.equal(base):
			take = ours
		default:
			conflict := MergeConflict{Path: p, Base: base.hash, Ours: ours.hash, Theirs: theirs.hash}
			result.Conflicts = append(result.Conflicts, conflict)
			entry, err := r.stageConflictMarkers(p, ours, theirs)
			if err != nil {
				return nil, err
			}
			merged.Entries[p] = entry
			continue
		}

		if !take.present {
			continue
		}
		merged.Entries[p] = &StagingEntry{
			Path:     p,
			Mode:     normalizeFileMode(take.mode),
			BlobHash: take.hash,
		}
	}

	treeHash, err := r.writeTreeFromEntries(merged)
	if err != nil {
		return nil, err
	}
	result.TreeHash = treeHash
	return result, nil
}

// Merge merges the named branch into the current HEAD. An already
// contained branch is a no-op, a branch ahead of HEAD fast-forwards,
// and a diverged branch gets a true three-way merge: on a clean result
// a two-parent commit advances HEAD, on conflicts the merged tree (with
// markers) is materialized and ErrMergeConflicts is returned together
// with the outcome describing them.
func (r *Repo) Merge(branchName, author string) (*MergeOutcome, error) {
	headHash, err := r.ResolveRef("HEAD")
	if err != nil {
		return nil, fmt.Errorf("merge: resolve HEAD: %w", err)
	}
	branchHash, err := r.ResolveRef(branchName)
	if err != nil {
		return nil, fmt.Errorf("merge: resolve %q: %w", branchName, err)
	}

	baseHash, err := r.FindMergeBase(headHash, branchHash)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	if baseHash == branchHash {
		// Branch is already contained in HEAD (or equal to it).
		return &MergeOutcome{CommitHash: headHash, AlreadyUpToDate: true}, nil
	}

	branchCommit, err := r.Store.ReadCommit(branchHash)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	if baseHash == headHash {
		// HEAD is an ancestor of the branch: fast-forward.
		if err := r.advanceHeadTo(branchHash, headHash); err != nil {
			return nil, fmt.Errorf("merge: fast-forward: %w", err)
		}
		if err := r.materializeTree(branchCommit.TreeHash); err != nil {
			return nil, fmt.Errorf("merge: fast-forward: %w", err)
		}
		if err := r.LoadTree(branchCommit.TreeHash); err != nil {
			return nil, fmt.Errorf("merge: fast-forward: %w", err)
		}
		return &MergeOutcome{CommitHash: branchHash, FastForward: true}, nil
	}

	headCommit, err := r.Store.ReadCommit(headHash)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	var baseTree object.Hash
	if baseHash != "" {
		baseCommit, err := r.Store.ReadCommit(baseHash)
		if err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
		baseTree = baseCommit.TreeHash
	}

	mergeResult, err := r.MergeTrees(baseTree, headCommit.TreeHash, branchCommit.TreeHash)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	if err := r.materializeTree(mergeResult.TreeHash); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if err := r.LoadTree(mergeResult.TreeHash); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	outcome := &MergeOutcome{Result: *mergeResult}
	if mergeResult.HasConflicts() {
		return outcome, ErrMergeConflicts
	}

	commitHash, err := r.writeCommitAdvancingHead(&object.CommitObj{
		TreeHash:  mergeResult.TreeHash,
		Parents:   []object.Hash{headHash, branchHash},
		Author:    author,
		Committer: author,
		Timestamp: time.Now().Unix(),
		Message:   fmt.Sprintf("Merge branch %q", branchName),
	}, nil, headHash)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	outcome.CommitHash = commitHash
	return outcome, nil
}

// advanceHeadTo moves whatever HEAD designates to newHash with CAS
// against the known current value.
func (r *Repo) advanceHeadTo(newHash, expectedOld object.Hash) error {
	head, err := r.Head()
	if err != nil {
		return err
	}
	target := "HEAD"
	if strings.HasPrefix(head, "refs/") {
		target = head
	}
	return r.UpdateRefCAS(target, newHash, expectedOld)
}

func (r *Repo) flattenOptional(treeHash object.Hash) (map[string]TreeFileEntry, error) {
	if treeHash == "" {
		return map[string]TreeFileEntry{}, nil
	}
	files, err := r.FlattenTree(treeHash)
	if err != nil {
		return nil, err
	}
	byPath := make(map[string]TreeFileEntry, len(files))
	for _, f := range files {
		byPath[f.Path] = f
	}
	return byPath, nil
}

func sideFor(files map[string]TreeFileEntry, p string) mergeSide {
	f, ok := files[p]
	if !ok {
		return mergeSide{}
	}
	return mergeSide{present: true, hash: f.BlobHash, mode: normalizeFileMode(f.Mode)}
}

// stageConflictMarkers writes the marker-rendered blob for a conflicted
// path and returns its staging entry. A side that deleted the path
// contributes empty content between its markers.
func (r *Repo) stageConflictMarkers(p string, ours, theirs mergeSide) (*StagingEntry, error) {
	oursData, err := r.sideContent(ours)
	if err != nil {
		return nil, fmt.Errorf("merge %q: %w", p, err)
	}
	theirsData, err := r.sideContent(theirs)
	if err != nil {
		return nil, fmt.Errorf("merge %q: %w", p, err)
	}

	rendered := renderFileConflict(oursData, theirsData)
	blobHash, err := r.Store.WriteBlob(&object.Blob{Data: rendered})
	if err != nil {
		return nil, fmt.Errorf("merge %q: write conflict blob: %w", p, err)
	}

	mode := ours.mode
	if !ours.present {
		mode = theirs.mode
	}
	return &StagingEntry{
		Path:     p,
		Mode:     normalizeFileMode(mode),
		BlobHash: blobHash,
		Size:     int64(len(rendered)),
	}, nil
}

func (r *Repo) sideContent(s mergeSide) ([]byte, error) {
	if !s.present {
		return nil, nil
	}
	blob, err := r.Store.ReadBlob(s.hash)
	if err != nil {
		return nil, err
	}
	return blob.Data, nil
}

// renderFileConflict renders the whole-file conflict form: both sides
// in full between the usual markers.
func renderFileConflict(ours, theirs []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("<<<<<<< ours\n")
	writeSideContent(&buf, ours)
	buf.WriteString("=======\n")
	writeSideContent(&buf, theirs)
	buf.WriteString(">>>>>>> theirs\n")
	return buf.Bytes()
}

func writeSideContent(buf *bytes.Buffer, data []byte) {
	buf.Write(data)
	if len(data) > 0 && data[len(data)-1] != '\n' {
		buf.WriteByte('\n')
	}
}

// writeTreeFromEntries builds a tree from merged entries, accepting the
// empty case (which BuildTree rejects for commits).
func (r *Repo) writeTreeFromEntries(s *Staging) (object.Hash, error) {
	if len(s.Entries) == 0 {
		return r.Store.WriteTree(&object.TreeObj{})
	}
	return r.BuildTree(s)
}
