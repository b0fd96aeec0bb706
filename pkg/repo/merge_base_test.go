package repo

import (
	"testing"

	"github.com/silt-vcs/silt/pkg/object"
)

// forkRepo builds a base commit on main plus one commit on each of two
// branches, and returns (base, mainTip, sideTip).
func forkRepo(t *testing.T) (*Repo, object.Hash, object.Hash, object.Hash) {
	t.Helper()
	r := newTestRepo(t)
	base := commitFile(t, r, "shared.txt", "base", "base")

	if err := r.CreateBranch("side", base); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	mainTip := commitFile(t, r, "main.txt", "m", "on main")

	if err := r.Checkout("side"); err != nil {
		t.Fatalf("Checkout side: %v", err)
	}
	sideTip := commitFile(t, r, "side.txt", "s", "on side")

	if err := r.Checkout("main"); err != nil {
		t.Fatalf("Checkout main: %v", err)
	}
	return r, base, mainTip, sideTip
}

func TestFindMergeBaseDiamond(t *testing.T) {
	r, base, mainTip, sideTip := forkRepo(t)

	got, err := r.FindMergeBase(mainTip, sideTip)
	if err != nil {
		t.Fatalf("FindMergeBase: %v", err)
	}
	if got != base {
		t.Errorf("merge base: got %s, want %s", got, base)
	}

	// Symmetric in its arguments.
	swapped, err := r.FindMergeBase(sideTip, mainTip)
	if err != nil {
		t.Fatalf("FindMergeBase swapped: %v", err)
	}
	if swapped != base {
		t.Errorf("swapped merge base: got %s, want %s", swapped, base)
	}
}

func TestFindMergeBaseAncestorFastPath(t *testing.T) {
	r := newTestRepo(t)
	h1 := commitFile(t, r, "f.txt", "one", "c1")
	h2 := commitFile(t, r, "f.txt", "two", "c2")

	got, err := r.FindMergeBase(h1, h2)
	if err != nil {
		t.Fatalf("FindMergeBase: %v", err)
	}
	if got != h1 {
		t.Errorf("merge base: got %s, want ancestor %s", got, h1)
	}
}

func TestFindMergeBaseSelf(t *testing.T) {
	r := newTestRepo(t)
	h := commitFile(t, r, "f.txt", "x", "c1")
	got, err := r.FindMergeBase(h, h)
	if err != nil {
		t.Fatalf("FindMergeBase: %v", err)
	}
	if got != h {
		t.Errorf("merge base of self: got %s, want %s", got, h)
	}
}

func TestFindMergeBaseDisjointHistories(t *testing.T) {
	r := newTestRepo(t)
	h1 := commitFile(t, r, "a.txt", "a", "rooted")

	// A second root commit with no parents, written directly.
	stageFile(t, r, "b.txt", "b")
	stg, err := r.ReadStaging()
	if err != nil {
		t.Fatalf("ReadStaging: %v", err)
	}
	treeHash, err := r.BuildTree(stg)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	h2, err := r.Store.WriteCommit(&object.CommitObj{
		TreeHash:  treeHash,
		Author:    "t",
		Timestamp: 99,
		Message:   "floating root",
	})
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}

	got, err := r.FindMergeBase(h1, h2)
	if err != nil {
		t.Fatalf("FindMergeBase: %v", err)
	}
	if got != "" {
		t.Errorf("disjoint histories: got %s, want empty", got)
	}
}

func TestFindMergeBaseEmptyArguments(t *testing.T) {
	r := newTestRepo(t)
	h := commitFile(t, r, "f.txt", "x", "c1")
	for _, pair := range [][2]object.Hash{{"", h}, {h, ""}, {"", ""}} {
		got, err := r.FindMergeBase(pair[0], pair[1])
		if err != nil {
			t.Fatalf("FindMergeBase(%q, %q): %v", pair[0], pair[1], err)
		}
		if got != "" {
			t.Errorf("FindMergeBase(%q, %q) = %s, want empty", pair[0], pair[1], got)
		}
	}
}

func TestFindMergeBaseMemoized(t *testing.T) {
	r, base, mainTip, sideTip := forkRepo(t)

	first, err := r.FindMergeBase(mainTip, sideTip)
	if err != nil {
		t.Fatalf("FindMergeBase: %v", err)
	}
	second, err := r.FindMergeBase(mainTip, sideTip)
	if err != nil {
		t.Fatalf("FindMergeBase cached: %v", err)
	}
	if first != second || first != base {
		t.Errorf("cached answer diverged: %s vs %s", first, second)
	}
}

func TestMergeBaseTraversalLimits(t *testing.T) {
	r := newTestRepo(t)
	commitFile(t, r, "f.txt", "one", "c1")
	h2 := commitFile(t, r, "f.txt", "two", "c2")
	h3 := commitFile(t, r, "f.txt", "three", "c3")

	old := mergeBaseStepsLimit
	mergeBaseStepsLimit = 1
	defer func() { mergeBaseStepsLimit = old }()

	// A fresh repo handle avoids the memoized graph state.
	r2, err := Open(r.RootDir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := r2.FindMergeBase(h2, h3); err == nil {
		t.Error("expected traversal limit error")
	}
}
