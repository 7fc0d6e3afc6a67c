// Package auth provides the credential-verification abstractions shared by
// saned's AUTHORIZE handling and sane-netctl's credential-file tooling.
//
// SANE's network protocol authorizes one resource string at a time via a
// single MD5 challenge/response mechanism (spec C3, grounded in
// sanei_auth.h), rather than the pluggable multi-mechanism negotiation NFS
// or SMB need. CredentialStore and Authenticator keep the shape of a
// provider/result split so the verification logic and its storage can be
// tested independently, without the multi-provider dispatch those richer
// protocols require.
package auth

import (
	"context"
	"errors"
)

// CredentialStore resolves a username to its stored credential for a given
// resource. Implementations may back this with a flat file (the default,
// internal/auth/filestore.go) or another store.
type CredentialStore interface {
	// Lookup returns the stored credential for username accessing resource.
	// ErrUnknownUser is returned if no such entry exists.
	Lookup(ctx context.Context, resource, username string) (*Credential, error)
}

// Credential is one entry of a credentials file: a user's password,
// scoped to a resource. The password is stored as it appears in the file
// (plaintext), matching sanei_auth.h's backend.users format and the
// MD5(salt ‖ stored_password) digest the AUTHORIZE round trip computes
// over it.
type Credential struct {
	Resource string
	Username string
	Password string
}

// AuthResult is the outcome of a successful authorization.
type AuthResult struct {
	Identity Identity
	Provider string
}

// Identity is the authenticated identity SANE's AUTHORIZE round trip
// produces: a username scoped to the resource it was granted access to.
type Identity struct {
	Username  string
	Resource  string
	Anonymous bool
}

// Authenticator verifies a presented response against a CredentialStore.
// Its single provider is internal/auth's MD5 challenge verifier; the split
// from CredentialStore keeps hashing logic independent of storage so both
// can be tested and swapped separately.
type Authenticator struct {
	store    CredentialStore
	provider Provider
}

// Provider verifies a challenge/response pair against a Credential.
type Provider interface {
	// Verify reports whether response is the correct answer to challenge
	// for cred.
	Verify(cred *Credential, challenge, response string) bool
	Name() string
}

// NewAuthenticator builds an Authenticator over store using provider to
// verify responses.
func NewAuthenticator(store CredentialStore, provider Provider) *Authenticator {
	return &Authenticator{store: store, provider: provider}
}

// Authenticate resolves username's credential for resource and verifies
// response against challenge.
func (a *Authenticator) Authenticate(ctx context.Context, resource, username, challenge, response string) (*AuthResult, error) {
	cred, err := a.store.Lookup(ctx, resource, username)
	if err != nil {
		return nil, err
	}
	if !a.provider.Verify(cred, challenge, response) {
		return nil, ErrAuthFailed
	}
	return &AuthResult{
		Identity: Identity{Username: username, Resource: resource},
		Provider: a.provider.Name(),
	}, nil
}

// Standard authentication errors.
var (
	ErrAuthFailed   = errors.New("auth: authentication failed")
	ErrUnknownUser  = errors.New("auth: no credential for this user and resource")
	ErrInvalidEntry = errors.New("auth: malformed credentials file entry")
)
