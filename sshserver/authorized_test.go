package sshserver

import (
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/ssh"
)

func generateAuthorizedKey(t *testing.T) (ssh.PublicKey, []byte) {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("convert key: %v", err)
	}
	return sshPub, ssh.MarshalAuthorizedKey(sshPub)
}

func TestParseAuthorizedKeys(t *testing.T) {
	keyA, lineA := generateAuthorizedKey(t)
	_, lineB := generateAuthorizedKey(t)
	data := append(append([]byte("# board access\n"), lineA...), lineB...)

	keys, err := ParseAuthorizedKeys(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}
	if !keyAuthorized(keys, keyA) {
		t.Fatalf("expected first key to match")
	}
	stranger, _ := generateAuthorizedKey(t)
	if keyAuthorized(keys, stranger) {
		t.Fatalf("expected unknown key to be rejected")
	}
}

func TestLoadAuthorizedKeysMissingFile(t *testing.T) {
	keys, err := LoadAuthorizedKeys(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("expected missing file to be tolerated, got %v", err)
	}
	if keys != nil {
		t.Fatalf("expected nil keys for missing file")
	}
}

func TestLoadAuthorizedKeysFromFile(t *testing.T) {
	_, line := generateAuthorizedKey(t)
	path := filepath.Join(t.TempDir(), "authorized_keys")
	if err := os.WriteFile(path, line, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	keys, err := LoadAuthorizedKeys(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("expected 1 key, got %d", len(keys))
	}
}
