package repo

import (
	"io"
	"testing"

	"github.com/silt-vcs/silt/pkg/object"
)

func TestAncestorsLinearOrder(t *testing.T) {
	r := newTestRepo(t)
	h1 := commitFile(t, r, "f.txt", "one", "c1")
	h2 := commitFile(t, r, "f.txt", "two", "c2")
	h3 := commitFile(t, r, "f.txt", "three", "c3")

	var got []object.Hash
	walker := r.Ancestors(h3)
	for {
		h, _, err := walker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got = append(got, h)
	}

	want := []object.Hash{h3, h2, h1}
	if len(got) != len(want) {
		t.Fatalf("got %d commits, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestAncestorsDiamondVisitsOnce(t *testing.T) {
	r := newTestRepo(t)
	base := commitFile(t, r, "f.txt", "base", "base")

	if err := r.CreateBranch("side", base); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	left := commitFile(t, r, "left.txt", "l", "left")

	if err := r.Checkout("side"); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	right := commitFile(t, r, "right.txt", "r", "right")

	if err := r.Checkout("main"); err != nil {
		t.Fatalf("Checkout main: %v", err)
	}
	outcome, err := r.Merge("side", "Tester <t@example.com>")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	seen := map[object.Hash]int{}
	walker := r.Ancestors(outcome.CommitHash)
	first := true
	for {
		h, _, err := walker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		seen[h]++
		if first && h != outcome.CommitHash {
			t.Errorf("first commit: got %s, want merge %s", h, outcome.CommitHash)
		}
		first = false
		if h == base && (seen[left] == 0 || seen[right] == 0) {
			t.Error("base produced before both children")
		}
	}

	for h, n := range seen {
		if n != 1 {
			t.Errorf("commit %s produced %d times", h, n)
		}
	}
	if len(seen) != 4 {
		t.Errorf("visited %d commits, want 4", len(seen))
	}
}

func TestLogLimit(t *testing.T) {
	r := newTestRepo(t)
	commitFile(t, r, "f.txt", "one", "c1")
	commitFile(t, r, "f.txt", "two", "c2")
	h3 := commitFile(t, r, "f.txt", "three", "c3")

	entries, err := r.Log(h3, 2)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries: got %d, want 2", len(entries))
	}
	if entries[0].Hash != h3 {
		t.Errorf("first entry: got %s, want %s", entries[0].Hash, h3)
	}

	all, err := r.Log(h3, 0)
	if err != nil {
		t.Fatalf("Log all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all entries: got %d, want 3", len(all))
	}
}

func TestAncestorsEmptyStart(t *testing.T) {
	r := newTestRepo(t)
	walker := r.Ancestors("")
	if _, _, err := walker.Next(); err != io.EOF {
		t.Errorf("err = %v, want io.EOF", err)
	}
}

func TestIsAncestor(t *testing.T) {
	r := newTestRepo(t)
	h1 := commitFile(t, r, "f.txt", "one", "c1")
	h2 := commitFile(t, r, "f.txt", "two", "c2")

	cases := []struct {
		ancestor, descendant object.Hash
		want                 bool
	}{
		{h1, h2, true},
		{h2, h1, false},
		{h1, h1, true},
		{"", h2, false},
	}
	for _, tc := range cases {
		got, err := r.IsAncestor(tc.ancestor, tc.descendant)
		if err != nil {
			t.Fatalf("IsAncestor(%s, %s): %v", tc.ancestor, tc.descendant, err)
		}
		if got != tc.want {
			t.Errorf("IsAncestor(%s, %s) = %v, want %v", tc.ancestor, tc.descendant, got, tc.want)
		}
	}
}
