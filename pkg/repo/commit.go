package repo

import (
	"fmt"
	"strings"
	"time"

	"github.com/silt-vcs/silt/pkg/object"
)

// CommitSigner signs canonical commit payload bytes and returns an
// encoded signature string to be persisted in CommitObj.Signature.
type CommitSigner func(payload []byte) (string, error)

// Commit creates a new commit from the current staging area.
//
//  1. Read staging
//  2. BuildTree from staging
//  3. Resolve HEAD to get the parent commit hash (if any)
//  4. Create CommitObj with tree hash, parent, author, timestamp, message
//  5. Write commit to store
//  6. Advance the current branch ref by compare-and-swap against the parent
func (r *Repo) Commit(message, author string) (object.Hash, error) {
	return r.CommitWithSigner(message, author, nil)
}

// CommitWithSigner creates a new commit and signs it when signer is
// provided.
func (r *Repo) CommitWithSigner(message, author string, signer CommitSigner) (object.Hash, error) {
	stg, err := r.ReadStaging()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	treeHash, err := r.BuildTree(stg)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	// Parent is resolved HEAD; a first commit on an unborn branch has none.
	var parents []object.Hash
	parentHash, err := r.ResolveRef("HEAD")
	if err == nil && parentHash != "" {
		parents = append(parents, parentHash)
	}

	commitHash, err := r.writeCommitAdvancingHead(&object.CommitObj{
		TreeHash:  treeHash,
		Parents:   parents,
		Author:    author,
		Committer: author,
		Timestamp: time.Now().Unix(),
		Message:   message,
	}, signer, parentHash)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return commitHash, nil
}

// writeCommitAdvancingHead validates the commit's tree, stores the
// commit, and CAS-advances the ref HEAD designates. expectedOld is the
// hash the branch is expected to hold ("" for an unborn branch).
func (r *Repo) writeCommitAdvancingHead(c *object.CommitObj, signer CommitSigner, expectedOld object.Hash) (object.Hash, error) {
	// A commit's tree digest must name an existing tree.
	if _, err := r.Store.ReadTree(c.TreeHash); err != nil {
		return "", fmt.Errorf("tree %s: %w", c.TreeHash, err)
	}

	if signer != nil {
		signature, err := signer(object.CommitSigningPayload(c))
		if err != nil {
			return "", fmt.Errorf("sign commit: %w", err)
		}
		c.Signature = signature
	}

	commitHash, err := r.Store.WriteCommit(c)
	if err != nil {
		return "", fmt.Errorf("write commit: %w", err)
	}

	head, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("read HEAD: %w", err)
	}

	// head is either a ref name ("refs/heads/main") or a detached hash.
	target := "HEAD"
	if strings.HasPrefix(head, "refs/") {
		target = head
	} else {
		expectedOld = object.Hash(strings.TrimSpace(head))
	}
	if err := r.UpdateRefCAS(target, commitHash, expectedOld); err != nil {
		return "", fmt.Errorf("update ref %q: %w", target, err)
	}

	return commitHash, nil
}
