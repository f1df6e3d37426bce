// Package token stores the GitHub API token encrypted at rest. An age
// X25519 identity generated at init time is the recipient; the token file
// is ordinary age ciphertext, so it can also be inspected with the age CLI.
package token

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
)

// Store manages the identity file and the encrypted token file.
type Store struct {
	identityPath string
	tokenPath    string
}

// NewStore creates a Store using the given paths.
func NewStore(identityPath, tokenPath string) *Store {
	return &Store{
		identityPath: identityPath,
		tokenPath:    tokenPath,
	}
}

// GenerateIdentity creates a new X25519 identity file with 0600
// permissions. An existing identity is left untouched.
func (s *Store) GenerateIdentity() error {
	if _, err := os.Stat(s.identityPath); err == nil {
		return nil
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating identity: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.identityPath), 0700); err != nil {
		return fmt.Errorf("creating identity directory: %w", err)
	}

	if err := os.WriteFile(s.identityPath, []byte(identity.String()+"\n"), 0600); err != nil {
		return fmt.Errorf("writing identity file: %w", err)
	}
	return nil
}

// SaveToken encrypts tok to the stored identity and writes the token file.
func (s *Store) SaveToken(tok string) error {
	identity, err := s.loadIdentity()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.tokenPath), 0700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	f, err := os.OpenFile(s.tokenPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating token file: %w", err)
	}
	defer f.Close()

	w, err := age.Encrypt(f, identity.Recipient())
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}

	if _, err := io.WriteString(w, tok); err != nil {
		return fmt.Errorf("writing encrypted token: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing encrypted token: %w", err)
	}

	return nil
}

// LoadToken decrypts and returns the stored token. Returns "" with no
// error when no token file exists.
func (s *Store) LoadToken() (string, error) {
	data, err := os.ReadFile(s.tokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading token file: %w", err)
	}

	identity, err := s.loadIdentity()
	if err != nil {
		return "", err
	}

	r, err := age.Decrypt(bytes.NewReader(data), identity)
	if err != nil {
		return "", fmt.Errorf("decrypting token: %w", err)
	}

	tok, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading decrypted token: %w", err)
	}

	return strings.TrimSpace(string(tok)), nil
}

// HasToken returns true if an encrypted token file exists.
func (s *Store) HasToken() bool {
	_, err := os.Stat(s.tokenPath)
	return err == nil
}

// loadIdentity reads and parses the X25519 identity file.
func (s *Store) loadIdentity() (*age.X25519Identity, error) {
	data, err := os.ReadFile(s.identityPath)
	if err != nil {
		return nil, fmt.Errorf("reading identity file: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		identity, err := age.ParseX25519Identity(line)
		if err != nil {
			return nil, fmt.Errorf("parsing identity: %w", err)
		}
		return identity, nil
	}

	return nil, fmt.Errorf("no identity found in %s", s.identityPath)
}
