package auth

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/saneproj/sane-net/internal/sanerr"
)

func writeCredFile(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "backend.users")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write credentials file: %v", err)
	}
	return path
}

func TestAuthorizer_NoFileGrantsEverything(t *testing.T) {
	a, err := NewAuthorizer("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.RequiresAuth("scanner0") {
		t.Error("expected RequiresAuth false with no credentials file")
	}
	if got := a.Authorize(context.Background(), "scanner0", "chal", "anyone", "wrong"); got != sanerr.Good {
		t.Errorf("Authorize = %v, want Good", got)
	}
}

func TestAuthorizer_UnknownResourceGrantsEverything(t *testing.T) {
	path := writeCredFile(t, "alice:secret:scanner0\n")
	a, err := NewAuthorizer(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.RequiresAuth("scanner1") {
		t.Error("expected RequiresAuth false for an unlisted resource")
	}
}

func TestAuthorizer_RoundTrip(t *testing.T) {
	path := writeCredFile(t, "alice:secret:scanner0\n")
	a, err := NewAuthorizer(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.RequiresAuth("scanner0") {
		t.Fatal("expected RequiresAuth true for a listed resource")
	}

	challenge := a.NewChallenge("scanner0")
	response := computeResponse(t, challenge, "secret")

	if got := a.Authorize(context.Background(), "scanner0", challenge, "alice", response); got != sanerr.Good {
		t.Errorf("Authorize = %v, want Good", got)
	}
}

func TestAuthorizer_PlaintextResponse(t *testing.T) {
	path := writeCredFile(t, "alice:secret:scanner0\n")
	a, err := NewAuthorizer(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	challenge := a.NewChallenge("scanner0")
	if got := a.Authorize(context.Background(), "scanner0", challenge, "alice", "secret"); got != sanerr.Good {
		t.Errorf("Authorize = %v, want Good", got)
	}
}

func TestAuthorizer_WrongPassword(t *testing.T) {
	path := writeCredFile(t, "alice:secret:scanner0\n")
	a, err := NewAuthorizer(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	challenge := a.NewChallenge("scanner0")
	response := computeResponse(t, challenge, "wrong-password")

	if got := a.Authorize(context.Background(), "scanner0", challenge, "alice", response); got != sanerr.AccessDenied {
		t.Errorf("Authorize = %v, want AccessDenied", got)
	}
}

func TestAuthorizer_UnknownUser(t *testing.T) {
	path := writeCredFile(t, "alice:secret:scanner0\n")
	a, err := NewAuthorizer(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	challenge := a.NewChallenge("scanner0")
	response := computeResponse(t, challenge, "secret")

	if got := a.Authorize(context.Background(), "scanner0", challenge, "ghost", response); got != sanerr.AccessDenied {
		t.Errorf("Authorize = %v, want AccessDenied", got)
	}
}

// computeResponse reproduces the "$MD5$" digest response form a
// conforming client sends: "$MD5$" + hex(md5(salt ‖ password)).
func computeResponse(t *testing.T, challenge, password string) string {
	t.Helper()
	sum := md5.Sum([]byte(salt(challenge) + password))
	return ChallengePrefix + hex.EncodeToString(sum[:])
}
