package repo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/silt-vcs/silt/pkg/object"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return r
}

func writeWorkFile(t *testing.T, r *Repo, relPath, content string) {
	t.Helper()
	absPath := filepath.Join(r.RootDir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", relPath, err)
	}
	if err := os.WriteFile(absPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", relPath, err)
	}
}

func stageFile(t *testing.T, r *Repo, relPath, content string) {
	t.Helper()
	writeWorkFile(t, r, relPath, content)
	if err := r.StagePaths([]string{relPath}); err != nil {
		t.Fatalf("StagePaths(%s): %v", relPath, err)
	}
}

func commitFile(t *testing.T, r *Repo, relPath, content, message string) object.Hash {
	t.Helper()
	stageFile(t, r, relPath, content)
	h, err := r.Commit(message, "Tester <t@example.com>")
	if err != nil {
		t.Fatalf("Commit(%s): %v", message, err)
	}
	return h
}

func readWorkFile(t *testing.T, r *Repo, relPath string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(r.RootDir, filepath.FromSlash(relPath)))
	if err != nil {
		t.Fatalf("read %s: %v", relPath, err)
	}
	return string(data)
}
