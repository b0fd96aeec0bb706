package repo

import (
	"os"
	"path/filepath"
	"testing"
)

func removeFile(r *Repo, relPath string) error {
	return os.Remove(filepath.Join(r.RootDir, filepath.FromSlash(relPath)))
}

func TestStatusCleanAfterCommit(t *testing.T) {
	r := newTestRepo(t)
	commitFile(t, r, "f.txt", "content", "c1")

	st, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.Clean() {
		t.Errorf("not clean: %+v", st)
	}
	if st.Branch != "main" || st.Detached {
		t.Errorf("branch: %+v", st)
	}
}

func TestStatusStagedCategories(t *testing.T) {
	r := newTestRepo(t)
	commitFile(t, r, "kept.txt", "k", "base")
	commitFile(t, r, "changed.txt", "before", "add changed")

	stageFile(t, r, "new.txt", "n")
	stageFile(t, r, "changed.txt", "after")
	if err := r.Remove([]string{"kept.txt"}, false); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	st, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}

	kinds := map[string]ChangeKind{}
	for _, c := range st.Staged {
		kinds[c.Path] = c.Kind
	}
	if kinds["new.txt"] != ChangeAdded {
		t.Errorf("new.txt: %q", kinds["new.txt"])
	}
	if kinds["changed.txt"] != ChangeModified {
		t.Errorf("changed.txt: %q", kinds["changed.txt"])
	}
	if kinds["kept.txt"] != ChangeRemoved {
		t.Errorf("kept.txt: %q", kinds["kept.txt"])
	}
}

func TestStatusUnstagedModification(t *testing.T) {
	r := newTestRepo(t)
	commitFile(t, r, "f.txt", "committed", "c1")

	writeWorkFile(t, r, "f.txt", "edited after commit")

	st, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(st.Unstaged) != 1 || st.Unstaged[0].Path != "f.txt" || st.Unstaged[0].Kind != ChangeModified {
		t.Errorf("unstaged: %+v", st.Unstaged)
	}
}

func TestStatusUnstagedDeletion(t *testing.T) {
	r := newTestRepo(t)
	commitFile(t, r, "f.txt", "x", "c1")

	if err := removeFile(r, "f.txt"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	st, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(st.Unstaged) != 1 || st.Unstaged[0].Kind != ChangeRemoved {
		t.Errorf("unstaged: %+v", st.Unstaged)
	}
}

func TestStatusUntracked(t *testing.T) {
	r := newTestRepo(t)
	commitFile(t, r, "tracked.txt", "t", "c1")
	writeWorkFile(t, r, "stray.txt", "not staged")

	st, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(st.Untracked) != 1 || st.Untracked[0] != "stray.txt" {
		t.Errorf("untracked: %v", st.Untracked)
	}
}

func TestStatusUnbornBranch(t *testing.T) {
	r := newTestRepo(t)
	st, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Head != "" || st.Branch != "main" {
		t.Errorf("status: %+v", st)
	}
}
