package passkey

import (
	"context"

	"github.com/go-webauthn/webauthn/protocol"
)

// Authenticator is the bridge to a platform authenticator (secure enclave,
// security key, or a software token). It consumes a challenge and produces a
// signed credential response, or fails.
//
// Implementations may prompt the user through the platform's native UI; that
// prompt is the only suspension point this component owns and it is opaque to
// the orchestrator except through the returned error:
//
//   - ErrUserCancelled when the user dismisses or aborts the prompt
//   - ErrNoCredential when no credential matches an authentication challenge
//   - ErrAuthenticator for any other device-level failure
type Authenticator interface {
	// CreateCredential performs the registration operation: mint a new
	// credential for the challenge and return the signed attestation.
	CreateCredential(ctx context.Context, creation *protocol.CredentialCreation) (*protocol.CredentialCreationResponse, error)

	// GetAssertion performs the authentication operation: sign the challenge
	// with an existing matching credential and return the assertion.
	GetAssertion(ctx context.Context, assertion *protocol.CredentialAssertion) (*protocol.CredentialAssertionResponse, error)
}

// AuthenticatorFunc pairs two functions into an Authenticator. Useful for
// tests and for adapting platform calls without a named type.
type AuthenticatorFunc struct {
	Create func(ctx context.Context, creation *protocol.CredentialCreation) (*protocol.CredentialCreationResponse, error)
	Get    func(ctx context.Context, assertion *protocol.CredentialAssertion) (*protocol.CredentialAssertionResponse, error)
}

// CreateCredential executes the Create function.
func (f AuthenticatorFunc) CreateCredential(ctx context.Context, creation *protocol.CredentialCreation) (*protocol.CredentialCreationResponse, error) {
	return f.Create(ctx, creation)
}

// GetAssertion executes the Get function.
func (f AuthenticatorFunc) GetAssertion(ctx context.Context, assertion *protocol.CredentialAssertion) (*protocol.CredentialAssertionResponse, error) {
	return f.Get(ctx, assertion)
}
