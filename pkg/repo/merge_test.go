package repo

import (
	"errors"
	"strings"
	"testing"

	"github.com/silt-vcs/silt/pkg/object"
)

func TestMergeTreesAutoResolves(t *testing.T) {
	r := newTestRepo(t)

	base := stagedTree(t, r, map[string]string{"a.txt": "a0", "b.txt": "b0"})
	ours := stagedTree(t, r, map[string]string{"a.txt": "a1", "b.txt": "b0"})
	theirs := stagedTree(t, r, map[string]string{"a.txt": "a0", "b.txt": "b1"})

	result, err := r.MergeTrees(base, ours, theirs)
	if err != nil {
		t.Fatalf("MergeTrees: %v", err)
	}
	if result.HasConflicts() {
		t.Fatalf("unexpected conflicts: %+v", result.Conflicts)
	}

	files := treeContents(t, r, result.TreeHash)
	if files["a.txt"] != "a1" {
		t.Errorf("a.txt: got %q, want ours", files["a.txt"])
	}
	if files["b.txt"] != "b1" {
		t.Errorf("b.txt: got %q, want theirs", files["b.txt"])
	}
}

func TestMergeTreesBothSidesAgree(t *testing.T) {
	r := newTestRepo(t)

	base := stagedTree(t, r, map[string]string{"f.txt": "old"})
	ours := stagedTree(t, r, map[string]string{"f.txt": "same change"})
	theirs := stagedTree(t, r, map[string]string{"f.txt": "same change"})

	result, err := r.MergeTrees(base, ours, theirs)
	if err != nil {
		t.Fatalf("MergeTrees: %v", err)
	}
	if result.HasConflicts() {
		t.Errorf("agreeing sides conflicted: %+v", result.Conflicts)
	}
	if got := treeContents(t, r, result.TreeHash)["f.txt"]; got != "same change" {
		t.Errorf("f.txt: got %q", got)
	}
}

func TestMergeTreesConflictRendersMarkers(t *testing.T) {
	r := newTestRepo(t)

	base := stagedTree(t, r, map[string]string{"f.txt": "original\n"})
	ours := stagedTree(t, r, map[string]string{"f.txt": "ours version\n"})
	theirs := stagedTree(t, r, map[string]string{"f.txt": "theirs version\n"})

	result, err := r.MergeTrees(base, ours, theirs)
	if err != nil {
		t.Fatalf("MergeTrees: %v", err)
	}
	if len(result.Conflicts) != 1 || result.Conflicts[0].Path != "f.txt" {
		t.Fatalf("conflicts: %+v", result.Conflicts)
	}

	content := treeContents(t, r, result.TreeHash)["f.txt"]
	for _, marker := range []string{"<<<<<<< ours", "ours version", "=======", "theirs version", ">>>>>>> theirs"} {
		if !strings.Contains(content, marker) {
			t.Errorf("rendered conflict missing %q:\n%s", marker, content)
		}
	}
}

func TestMergeTreesDeleteVersusModify(t *testing.T) {
	r := newTestRepo(t)

	base := stagedTree(t, r, map[string]string{"f.txt": "original\n"})
	ours := stagedTree(t, r, map[string]string{"f.txt": "modified\n"})
	theirs := stagedTree(t, r, map[string]string{"untouched.txt": "x"})
	// theirs deleted f.txt (and added an unrelated file absent elsewhere).

	result, err := r.MergeTrees(base, ours, theirs)
	if err != nil {
		t.Fatalf("MergeTrees: %v", err)
	}

	var found bool
	for _, c := range result.Conflicts {
		if c.Path == "f.txt" {
			found = true
			if c.Theirs != "" {
				t.Errorf("Theirs: got %s, want empty for deletion", c.Theirs)
			}
			if c.Ours == "" || c.Base == "" {
				t.Errorf("conflict hashes incomplete: %+v", c)
			}
		}
	}
	if !found {
		t.Fatalf("delete-vs-modify did not conflict: %+v", result.Conflicts)
	}
}

func TestMergeTreesCleanDeletion(t *testing.T) {
	r := newTestRepo(t)

	base := stagedTree(t, r, map[string]string{"f.txt": "x", "keep.txt": "k"})
	ours := stagedTree(t, r, map[string]string{"keep.txt": "k"})
	theirs := stagedTree(t, r, map[string]string{"f.txt": "x", "keep.txt": "k"})

	result, err := r.MergeTrees(base, ours, theirs)
	if err != nil {
		t.Fatalf("MergeTrees: %v", err)
	}
	if result.HasConflicts() {
		t.Fatalf("unexpected conflicts: %+v", result.Conflicts)
	}
	files := treeContents(t, r, result.TreeHash)
	if _, ok := files["f.txt"]; ok {
		t.Error("deleted file resurrected by merge")
	}
}

func TestMergeCleanCreatesTwoParentCommit(t *testing.T) {
	r, _, mainTip, sideTip := forkRepo(t)

	outcome, err := r.Merge("side", "Tester <t@example.com>")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if outcome.FastForward || outcome.AlreadyUpToDate {
		t.Fatalf("expected true merge, got %+v", outcome)
	}

	c, err := r.Store.ReadCommit(outcome.CommitHash)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if len(c.Parents) != 2 || c.Parents[0] != mainTip || c.Parents[1] != sideTip {
		t.Errorf("parents: got %v, want [%s %s]", c.Parents, mainTip, sideTip)
	}

	// Both sides' files are in the working tree.
	if readWorkFile(t, r, "main.txt") != "m" {
		t.Error("main.txt lost in merge")
	}
	if readWorkFile(t, r, "side.txt") != "s" {
		t.Error("side.txt missing after merge")
	}

	head, _ := r.ResolveRef("HEAD")
	if head != outcome.CommitHash {
		t.Errorf("HEAD = %s, want merge commit %s", head, outcome.CommitHash)
	}
}

func TestMergeFastForward(t *testing.T) {
	r := newTestRepo(t)
	base := commitFile(t, r, "f.txt", "base", "base")

	if err := r.CreateBranch("ahead", base); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := r.Checkout("ahead"); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	tip := commitFile(t, r, "f.txt", "newer", "advance")

	if err := r.Checkout("main"); err != nil {
		t.Fatalf("Checkout main: %v", err)
	}
	outcome, err := r.Merge("ahead", "Tester <t@example.com>")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !outcome.FastForward {
		t.Errorf("expected fast-forward, got %+v", outcome)
	}
	if outcome.CommitHash != tip {
		t.Errorf("commit: got %s, want %s", outcome.CommitHash, tip)
	}
	if readWorkFile(t, r, "f.txt") != "newer" {
		t.Error("working tree not updated by fast-forward")
	}

	head, _ := r.ResolveRef("refs/heads/main")
	if head != tip {
		t.Errorf("main = %s, want %s", head, tip)
	}
}

func TestMergeAlreadyUpToDate(t *testing.T) {
	r := newTestRepo(t)
	base := commitFile(t, r, "f.txt", "base", "base")

	if err := r.CreateBranch("behind", base); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	tip := commitFile(t, r, "f.txt", "ahead", "advance main")

	outcome, err := r.Merge("behind", "Tester <t@example.com>")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !outcome.AlreadyUpToDate {
		t.Errorf("expected already up to date, got %+v", outcome)
	}
	if outcome.CommitHash != tip {
		t.Errorf("commit: got %s, want current head %s", outcome.CommitHash, tip)
	}
}

func TestMergeConflictStopsWithoutCommit(t *testing.T) {
	r := newTestRepo(t)
	base := commitFile(t, r, "f.txt", "original\n", "base")

	if err := r.CreateBranch("side", base); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	mainTip := commitFile(t, r, "f.txt", "main version\n", "main change")

	if err := r.Checkout("side"); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	commitFile(t, r, "f.txt", "side version\n", "side change")

	if err := r.Checkout("main"); err != nil {
		t.Fatalf("Checkout main: %v", err)
	}
	outcome, err := r.Merge("side", "Tester <t@example.com>")
	if !errors.Is(err, ErrMergeConflicts) {
		t.Fatalf("err = %v, want ErrMergeConflicts", err)
	}
	if len(outcome.Result.Conflicts) != 1 || outcome.Result.Conflicts[0].Path != "f.txt" {
		t.Fatalf("conflicts: %+v", outcome.Result.Conflicts)
	}

	// HEAD did not move.
	head, _ := r.ResolveRef("HEAD")
	if head != mainTip {
		t.Errorf("HEAD = %s, want %s", head, mainTip)
	}

	// The working file carries markers for manual resolution.
	content := readWorkFile(t, r, "f.txt")
	if !strings.Contains(content, "<<<<<<< ours") || !strings.Contains(content, ">>>>>>> theirs") {
		t.Errorf("working file missing conflict markers:\n%s", content)
	}
}

// stagedTree builds a tree object from the given files without touching
// the repository's real index.
func stagedTree(t *testing.T, r *Repo, files map[string]string) object.Hash {
	t.Helper()
	stg := &Staging{Entries: map[string]*StagingEntry{}}
	for p, content := range files {
		blobHash, err := r.Store.WriteBlob(&object.Blob{Data: []byte(content)})
		if err != nil {
			t.Fatalf("WriteBlob: %v", err)
		}
		stg.Entries[p] = &StagingEntry{Path: p, Mode: "100644", BlobHash: blobHash}
	}
	root, err := r.BuildTree(stg)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	return root
}

func treeContents(t *testing.T, r *Repo, root object.Hash) map[string]string {
	t.Helper()
	flat, err := r.FlattenTree(root)
	if err != nil {
		t.Fatalf("FlattenTree: %v", err)
	}
	out := make(map[string]string, len(flat))
	for _, f := range flat {
		blob, err := r.Store.ReadBlob(f.BlobHash)
		if err != nil {
			t.Fatalf("ReadBlob(%s): %v", f.Path, err)
		}
		out[f.Path] = string(blob.Data)
	}
	return out
}
