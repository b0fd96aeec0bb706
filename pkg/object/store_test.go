package object

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir())
}

func TestStoreWriteRead(t *testing.T) {
	s := tempStore(t)
	data := []byte("hello world")
	h, err := s.Write(TypeBlob, data)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if h != HashObject(TypeBlob, data) {
		t.Errorf("hash mismatch: got %s", h)
	}

	gotType, gotData, err := s.Read(h)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if gotType != TypeBlob {
		t.Errorf("type: got %q, want %q", gotType, TypeBlob)
	}
	if !bytes.Equal(gotData, data) {
		t.Errorf("data: got %q, want %q", gotData, data)
	}
}

func TestStoreWriteIdempotent(t *testing.T) {
	s := tempStore(t)
	data := []byte("same bytes")
	h1, err := s.Write(TypeBlob, data)
	if err != nil {
		t.Fatalf("first Write: %v", err)
	}
	h2, err := s.Write(TypeBlob, data)
	if err != nil {
		t.Fatalf("second Write: %v", err)
	}
	if h1 != h2 {
		t.Errorf("hashes differ: %s vs %s", h1, h2)
	}
}

func TestStoreFanOutLayout(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	h, err := s.Write(TypeBlob, []byte("layout"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := filepath.Join(dir, "objects", string(h[:2]), string(h[2:]))
	if _, err := os.Stat(want); err != nil {
		t.Errorf("object file not at %s: %v", want, err)
	}
}

func TestStoreReadMissing(t *testing.T) {
	s := tempStore(t)
	missing := HashObject(TypeBlob, []byte("never written"))

	_, _, err := s.Read(missing)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Hash != missing {
		t.Errorf("NotFoundError.Hash = %v, want %s", err, missing)
	}

	if s.Has(missing) {
		t.Error("Has(missing) = true")
	}
}

func TestStoreReadInvalidHash(t *testing.T) {
	s := tempStore(t)
	if _, _, err := s.Read("not-a-hash"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStoreCompressionTransparent(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	// Large and repetitive, so the zstd frame wins over raw bytes.
	data := []byte(strings.Repeat("compressible line of text\n", 50))
	h, err := s.Write(TypeBlob, data)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	onDisk, err := os.ReadFile(filepath.Join(dir, "objects", string(h[:2]), string(h[2:])))
	if err != nil {
		t.Fatalf("read object file: %v", err)
	}
	if len(onDisk) >= len(data) {
		t.Errorf("on-disk size %d not smaller than payload %d", len(onDisk), len(data))
	}

	// A reader with compression disabled still sniffs and decodes.
	plain := NewStore(dir, WithCompression(false, 0))
	_, gotData, err := plain.Read(h)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(gotData, data) {
		t.Error("round trip through compressed store altered data")
	}
}

func TestStoreSmallObjectsStayRaw(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	data := []byte("tiny")
	h, err := s.Write(TypeBlob, data)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	onDisk, err := os.ReadFile(filepath.Join(dir, "objects", string(h[:2]), string(h[2:])))
	if err != nil {
		t.Fatalf("read object file: %v", err)
	}
	if !bytes.HasPrefix(onDisk, []byte("blob ")) {
		t.Errorf("small object not stored raw: %q", onDisk)
	}
}

func TestStoreCorruptEnvelope(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	h, err := s.Write(TypeBlob, []byte("will be clobbered"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	path := filepath.Join(dir, "objects", string(h[:2]), string(h[2:]))
	cases := map[string][]byte{
		"no separator":    []byte("blob 5hello"),
		"unknown type":    []byte("widget 5\x00hello"),
		"bad length":      []byte("blob five\x00hello"),
		"length mismatch": []byte("blob 99\x00hello"),
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			if err := os.WriteFile(path, contents, 0o644); err != nil {
				t.Fatalf("clobber: %v", err)
			}
			if _, _, err := s.Read(h); !errors.Is(err, ErrCorrupt) {
				t.Errorf("err = %v, want ErrCorrupt", err)
			}
		})
	}
}

func TestTypedReadMismatch(t *testing.T) {
	s := tempStore(t)
	h, err := s.WriteBlob(&Blob{Data: []byte("blob not commit")})
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}

	_, err = s.ReadCommit(h)
	var mismatch *TypeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("err = %v, want TypeMismatchError", err)
	}
	if mismatch.Got != TypeBlob || mismatch.Want != TypeCommit {
		t.Errorf("mismatch: got %q want %q", mismatch.Got, mismatch.Want)
	}
}

func TestTypedRoundTrips(t *testing.T) {
	s := tempStore(t)

	blobHash, err := s.WriteBlob(&Blob{Data: []byte("content")})
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}

	tree := &TreeObj{Entries: []TreeEntry{
		{Name: "file.txt", Mode: TreeModeFile, ChildHash: blobHash},
	}}
	treeHash, err := s.WriteTree(tree)
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}

	commit := &CommitObj{
		TreeHash:  treeHash,
		Author:    "Ada <ada@example.com>",
		Timestamp: 1700000000,
		Message:   "initial",
	}
	commitHash, err := s.WriteCommit(commit)
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}

	tagHash, err := s.WriteTag(&TagObj{
		TargetHash: commitHash,
		TargetType: TypeCommit,
		Name:       "v1",
		Tagger:     "Ada",
		Timestamp:  1700000001,
		Message:    "release",
	})
	if err != nil {
		t.Fatalf("WriteTag: %v", err)
	}

	gotTree, err := s.ReadTree(treeHash)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	if len(gotTree.Entries) != 1 || gotTree.Entries[0].ChildHash != blobHash {
		t.Errorf("tree round trip broken: %+v", gotTree)
	}

	gotCommit, err := s.ReadCommit(commitHash)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if gotCommit.TreeHash != treeHash {
		t.Errorf("commit tree: got %s, want %s", gotCommit.TreeHash, treeHash)
	}

	gotTag, err := s.ReadTag(tagHash)
	if err != nil {
		t.Fatalf("ReadTag: %v", err)
	}
	if gotTag.TargetHash != commitHash {
		t.Errorf("tag target: got %s, want %s", gotTag.TargetHash, commitHash)
	}
}
