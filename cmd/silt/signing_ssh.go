package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/silt-vcs/silt/pkg/repo"
	"golang.org/x/crypto/ssh"
)

const commitSignaturePrefix = "sshsig-v1"

// Key types tried, in order, when no explicit key path is given.
var defaultKeyNames = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

// newSSHCommitSigner builds a CommitSigner around an SSH private key
// and reports which key file it settled on. An empty keyPath searches
// ~/.ssh for the usual defaults.
func newSSHCommitSigner(keyPath string) (repo.CommitSigner, string, error) {
	resolved, err := resolveSigningKeyPath(keyPath)
	if err != nil {
		return nil, "", err
	}

	pem, err := os.ReadFile(resolved)
	if err != nil {
		return nil, "", fmt.Errorf("signing key %q: %w", resolved, err)
	}
	signer, err := ssh.ParsePrivateKey(pem)
	if err != nil {
		return nil, "", fmt.Errorf("signing key %q: %w", resolved, err)
	}

	sign := func(payload []byte) (string, error) {
		sig, err := signer.Sign(rand.Reader, payload)
		if err != nil {
			return "", err
		}
		return encodeCommitSignature(sig, signer.PublicKey()), nil
	}
	return sign, resolved, nil
}

// encodeCommitSignature renders a signature as a single header-safe
// token: prefix, algorithm, public key, and signature blob, colon
// separated with the binary parts base64 encoded.
func encodeCommitSignature(sig *ssh.Signature, pub ssh.PublicKey) string {
	return strings.Join([]string{
		commitSignaturePrefix,
		sig.Format,
		base64.StdEncoding.EncodeToString(pub.Marshal()),
		base64.StdEncoding.EncodeToString(sig.Blob),
	}, ":")
}

func resolveSigningKeyPath(path string) (string, error) {
	if path = strings.TrimSpace(path); path != "" {
		return expandUserPath(path)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	for _, name := range defaultKeyNames {
		candidate := filepath.Join(home, ".ssh", name)
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no SSH private key in ~/.ssh (tried %s)", strings.Join(defaultKeyNames, ", "))
}

func expandUserPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(path)
}
