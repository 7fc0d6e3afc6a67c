package auth

import (
	"context"
	"os"

	"github.com/saneproj/sane-net/internal/sanerr"
	pkgauth "github.com/saneproj/sane-net/pkg/auth"
)

// Authorizer is saned's entry point for resource authorization (spec C3).
// A nil *Authorizer (no credentials file configured) grants every resource,
// matching sanei_authorize's "file doesn't exist -> SANE_STATUS_GOOD" rule.
type Authorizer struct {
	store *FileStore
	auth  *pkgauth.Authenticator
}

// NewAuthorizer loads credentialsFile and builds an Authorizer. An empty
// path is valid and yields an Authorizer that grants everything.
func NewAuthorizer(credentialsFile string) (*Authorizer, error) {
	store, err := LoadFileStore(credentialsFile)
	if err != nil {
		return nil, err
	}
	return &Authorizer{
		store: store,
		auth:  pkgauth.NewAuthenticator(store, NewMD5Provider()),
	}, nil
}

// RequiresAuth reports whether resource has any entries in the credentials
// file, i.e. whether the caller must be sent a CONTROL_OPTION/OPEN/START
// reply's ResourceToAuthorize and walk the AUTHORIZE round trip before
// proceeding (spec §3.2, §4.4).
func (a *Authorizer) RequiresAuth(resource string) bool {
	if a == nil {
		return false
	}
	return a.store.HasResource(resource)
}

// NewChallenge returns a fresh challenge string for resource.
func (a *Authorizer) NewChallenge(resource string) string {
	return NewChallenge(resource, os.Getpid())
}

// Authorize verifies username/response against resource's stored
// credential and returns sanerr.Good on success or
// sanerr.AccessDenied on failure, mirroring sanei_authorize's two
// possible outcomes.
func (a *Authorizer) Authorize(ctx context.Context, resource, challenge, username, response string) sanerr.Status {
	if a == nil || !a.store.HasResource(resource) {
		return sanerr.Good
	}
	if _, err := a.auth.Authenticate(ctx, resource, username, challenge, response); err != nil {
		return sanerr.AccessDenied
	}
	return sanerr.Good
}
