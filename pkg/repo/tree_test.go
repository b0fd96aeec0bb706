package repo

import (
	"errors"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/silt-vcs/silt/pkg/object"
)

func TestBuildTreeEmptyIndex(t *testing.T) {
	r := newTestRepo(t)
	stg, _ := r.ReadStaging()
	if _, err := r.BuildTree(stg); !errors.Is(err, ErrEmptyIndex) {
		t.Errorf("err = %v, want ErrEmptyIndex", err)
	}
}

func TestBuildTreeDeterministic(t *testing.T) {
	r := newTestRepo(t)
	stageFile(t, r, "b/inner.txt", "inner")
	stageFile(t, r, "a.txt", "top")

	stg, err := r.ReadStaging()
	if err != nil {
		t.Fatalf("ReadStaging: %v", err)
	}
	h1, err := r.BuildTree(stg)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	h2, err := r.BuildTree(stg)
	if err != nil {
		t.Fatalf("BuildTree again: %v", err)
	}
	if h1 != h2 {
		t.Errorf("BuildTree not deterministic: %s vs %s", h1, h2)
	}
}

func TestBuildTreeFlattenRoundTrip(t *testing.T) {
	r := newTestRepo(t)
	files := map[string]string{
		"readme.md":        "hello",
		"src/main.go":      "package main",
		"src/util/util.go": "package util",
	}
	for p, content := range files {
		stageFile(t, r, p, content)
	}

	stg, _ := r.ReadStaging()
	root, err := r.BuildTree(stg)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	flat, err := r.FlattenTree(root)
	if err != nil {
		t.Fatalf("FlattenTree: %v", err)
	}

	var gotPaths []string
	for _, f := range flat {
		gotPaths = append(gotPaths, f.Path)
	}
	sort.Strings(gotPaths)
	want := []string{"readme.md", "src/main.go", "src/util/util.go"}
	if diff := cmp.Diff(want, gotPaths); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}

	for _, f := range flat {
		blob, err := r.Store.ReadBlob(f.BlobHash)
		if err != nil {
			t.Fatalf("ReadBlob(%s): %v", f.Path, err)
		}
		if string(blob.Data) != files[f.Path] {
			t.Errorf("%s: got %q, want %q", f.Path, blob.Data, files[f.Path])
		}
	}
}

func TestBuildTreeSharesUnchangedSubtrees(t *testing.T) {
	r := newTestRepo(t)
	stageFile(t, r, "stable/fixed.txt", "never changes")
	stageFile(t, r, "volatile/changing.txt", "v1")

	stg, _ := r.ReadStaging()
	root1, err := r.BuildTree(stg)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	stageFile(t, r, "volatile/changing.txt", "v2")
	stg, _ = r.ReadStaging()
	root2, err := r.BuildTree(stg)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	if root1 == root2 {
		t.Fatal("root should change when a file changes")
	}
	sub1 := subtreeHash(t, r, root1, "stable")
	sub2 := subtreeHash(t, r, root2, "stable")
	if sub1 != sub2 {
		t.Errorf("unchanged subtree digests differ: %s vs %s", sub1, sub2)
	}
}

func subtreeHash(t *testing.T, r *Repo, root object.Hash, name string) object.Hash {
	t.Helper()
	tree, err := r.Store.ReadTree(root)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	for _, e := range tree.Entries {
		if e.Name == name {
			return e.ChildHash
		}
	}
	t.Fatalf("subtree %q not found", name)
	return ""
}

func TestLoadTreeReplacesIndex(t *testing.T) {
	r := newTestRepo(t)
	stageFile(t, r, "a.txt", "a")
	stageFile(t, r, "b.txt", "b")

	stg, _ := r.ReadStaging()
	root, err := r.BuildTree(stg)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	// Mutate the index, then restore from the tree.
	if err := r.Unstage("a.txt"); err != nil {
		t.Fatalf("Unstage: %v", err)
	}
	stageFile(t, r, "c.txt", "c")

	if err := r.LoadTree(root); err != nil {
		t.Fatalf("LoadTree: %v", err)
	}

	stg, _ = r.ReadStaging()
	if _, ok := stg.Entries["a.txt"]; !ok {
		t.Error("a.txt missing after LoadTree")
	}
	if _, ok := stg.Entries["c.txt"]; ok {
		t.Error("c.txt survived LoadTree")
	}
}
