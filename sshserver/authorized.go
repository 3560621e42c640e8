package sshserver

import (
	"bytes"
	"fmt"
	"os"

	gliderssh "github.com/gliderlabs/ssh"
	"golang.org/x/crypto/ssh"
)

// LoadAuthorizedKeys parses an OpenSSH authorized_keys file. A missing file
// returns (nil, nil) so the caller can decide on open access.
func LoadAuthorizedKeys(path string) ([]ssh.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read authorized keys: %w", err)
	}
	return ParseAuthorizedKeys(data)
}

// ParseAuthorizedKeys parses authorized_keys content into public keys.
func ParseAuthorizedKeys(data []byte) ([]ssh.PublicKey, error) {
	var keys []ssh.PublicKey
	rest := bytes.TrimSpace(data)
	for len(rest) > 0 {
		key, _, _, remaining, err := ssh.ParseAuthorizedKey(rest)
		if err != nil {
			return nil, fmt.Errorf("parse authorized keys: %w", err)
		}
		keys = append(keys, key)
		rest = bytes.TrimSpace(remaining)
	}
	return keys, nil
}

func keyAuthorized(keys []ssh.PublicKey, candidate gliderssh.PublicKey) bool {
	for _, key := range keys {
		if gliderssh.KeysEqual(key, candidate) {
			return true
		}
	}
	return false
}
