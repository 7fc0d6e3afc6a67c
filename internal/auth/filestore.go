// Package auth implements saned's authorization module (spec C3): a
// credentials-file-backed CredentialStore and an MD5 challenge/response
// Provider, wired into pkg/auth's generic Authenticator. Grounded in
// sanei_auth.h's backend.users file format and challenge/response protocol.
package auth

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/saneproj/sane-net/pkg/auth"
)

// FileStore loads a "user:password:resource" credentials file, one entry
// per line (sanei_auth.h's backend.users format), and serves Lookup from an
// in-memory index. Passwords are kept exactly as the file stores them
// (plaintext): the AUTHORIZE digest is MD5(salt ‖ stored_password), so
// hashing them here would desynchronize the server's digest from what a
// conforming client computes.
type FileStore struct {
	mu    sync.RWMutex
	creds map[string]*auth.Credential // "resource/username" -> credential
}

// LoadFileStore reads path and builds a FileStore. A missing file is not an
// error: per sanei_auth.h, the absence of a credentials file means every
// resource is unauthenticated (the caller should skip AUTHORIZE entirely in
// that case, which is why an empty, non-nil store is returned).
func LoadFileStore(path string) (*FileStore, error) {
	fs := &FileStore{creds: make(map[string]*auth.Credential)}
	if path == "" {
		return fs, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fs, nil
		}
		return nil, fmt.Errorf("auth: open credentials file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("%w: line %d", auth.ErrInvalidEntry, lineNo)
		}
		username, password, resource := parts[0], parts[1], parts[2]
		fs.creds[resource+"/"+username] = &auth.Credential{
			Resource: resource,
			Username: username,
			Password: password,
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("auth: read credentials file: %w", err)
	}
	return fs, nil
}

// Lookup implements pkg/auth.CredentialStore.
func (fs *FileStore) Lookup(_ context.Context, resource, username string) (*auth.Credential, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	cred, ok := fs.creds[resource+"/"+username]
	if !ok {
		return nil, auth.ErrUnknownUser
	}
	return cred, nil
}

// HasResource reports whether resource appears in the credentials file at
// all. Per sanei_auth.h, a resource absent from the file requires no
// authorization (sanei_authorize returns SANE_STATUS_GOOD unconditionally).
func (fs *FileStore) HasResource(resource string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	for key := range fs.creds {
		if strings.HasPrefix(key, resource+"/") {
			return true
		}
	}
	return false
}
