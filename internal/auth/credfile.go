package auth

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/saneproj/sane-net/pkg/auth"
)

// ListEntries reads every entry of a credentials file for sane-netctl's
// `creds list`, in the same "user:password:resource" format FileStore
// parses, sorted by resource then username for stable listing output. A
// missing file yields an empty list rather than an error.
func ListEntries(path string) ([]auth.Credential, error) {
	fs, err := LoadFileStore(path)
	if err != nil {
		return nil, err
	}
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	entries := make([]auth.Credential, 0, len(fs.creds))
	for _, cred := range fs.creds {
		entries = append(entries, *cred)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Resource != entries[j].Resource {
			return entries[i].Resource < entries[j].Resource
		}
		return entries[i].Username < entries[j].Username
	})
	return entries, nil
}

// AddEntry appends or replaces a "user:password:resource" line in the
// credentials file at path (sane-netctl `creds add`). The password is
// stored exactly as given, in plaintext, matching the format FileStore
// reads and the digest the AUTHORIZE round trip computes over it. The
// file is created if it doesn't exist yet.
func AddEntry(path, resource, username, password string) error {
	entries, err := readRawEntries(path)
	if err != nil {
		return err
	}

	key := resource + ":" + username
	replaced := false
	for i, e := range entries {
		if e.resource+":"+e.username == key {
			entries[i].password = password
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, rawEntry{username: username, password: password, resource: resource})
	}
	return writeRawEntries(path, entries)
}

// RemoveEntry deletes the entry for username on resource from the
// credentials file at path (sane-netctl `creds remove`). It is not an
// error to remove an entry that doesn't exist.
func RemoveEntry(path, resource, username string) error {
	entries, err := readRawEntries(path)
	if err != nil {
		return err
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.username == username && e.resource == resource {
			continue
		}
		kept = append(kept, e)
	}
	return writeRawEntries(path, kept)
}

type rawEntry struct {
	username string
	password string
	resource string
}

func readRawEntries(path string) ([]rawEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("auth: open credentials file: %w", err)
	}
	defer f.Close()

	var entries []rawEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ":", 3)
		if len(parts) != 3 {
			continue
		}
		entries = append(entries, rawEntry{username: parts[0], password: parts[1], resource: parts[2]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("auth: read credentials file: %w", err)
	}
	return entries, nil
}

func writeRawEntries(path string, entries []rawEntry) error {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s:%s:%s\n", e.username, e.password, e.resource)
	}
	return os.WriteFile(path, []byte(b.String()), 0600)
}
