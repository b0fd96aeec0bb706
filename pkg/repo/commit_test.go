package repo

import (
	"errors"
	"strings"
	"testing"

	"github.com/silt-vcs/silt/pkg/object"
)

func TestFirstCommitHasNoParent(t *testing.T) {
	r := newTestRepo(t)
	h := commitFile(t, r, "a.txt", "hello", "initial")

	c, err := r.Store.ReadCommit(h)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if len(c.Parents) != 0 {
		t.Errorf("parents: got %d, want 0", len(c.Parents))
	}
	if c.Message != "initial" {
		t.Errorf("message: got %q", c.Message)
	}
	if c.Committer != c.Author {
		t.Errorf("committer: got %q, want author %q", c.Committer, c.Author)
	}
}

func TestCommitChainsParents(t *testing.T) {
	r := newTestRepo(t)
	h1 := commitFile(t, r, "a.txt", "one", "c1")
	h2 := commitFile(t, r, "a.txt", "two", "c2")

	c2, err := r.Store.ReadCommit(h2)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if len(c2.Parents) != 1 || c2.Parents[0] != h1 {
		t.Errorf("parents: got %v, want [%s]", c2.Parents, h1)
	}

	head, err := r.ResolveRef("HEAD")
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	if head != h2 {
		t.Errorf("HEAD = %s, want %s", head, h2)
	}
}

func TestCommitEmptyIndexRejected(t *testing.T) {
	r := newTestRepo(t)
	if _, err := r.Commit("nothing staged", "t"); !errors.Is(err, ErrEmptyIndex) {
		t.Errorf("err = %v, want ErrEmptyIndex", err)
	}
}

func TestCommitWithSigner(t *testing.T) {
	r := newTestRepo(t)
	stageFile(t, r, "a.txt", "signed content")

	var signedPayload []byte
	signer := func(payload []byte) (string, error) {
		signedPayload = payload
		return "test-sig", nil
	}

	h, err := r.CommitWithSigner("signed", "Tester <t@example.com>", signer)
	if err != nil {
		t.Fatalf("CommitWithSigner: %v", err)
	}

	c, err := r.Store.ReadCommit(h)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if c.Signature != "test-sig" {
		t.Errorf("signature: got %q", c.Signature)
	}

	// The signed payload is the commit without its signature line.
	if strings.Contains(string(signedPayload), "signature ") {
		t.Error("signing payload contains a signature header")
	}
	want := object.CommitSigningPayload(c)
	if string(signedPayload) != string(want) {
		t.Error("signing payload does not match canonical form")
	}
}

func TestCommitSigningPayloadStable(t *testing.T) {
	c := &object.CommitObj{
		TreeHash:  object.HashObject(object.TypeTree, nil),
		Author:    "a",
		Timestamp: 1,
		Message:   "m",
	}
	unsigned := object.CommitSigningPayload(c)
	c.Signature = "sig"
	signed := object.CommitSigningPayload(c)
	if string(unsigned) != string(signed) {
		t.Error("payload changed when signature was attached")
	}
}
