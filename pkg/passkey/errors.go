package passkey

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates the supplied input is malformed. The user can
	// correct the input and retry.
	ErrValidation = errors.New("passkey: invalid input")

	// ErrNetwork indicates a transport-layer failure reaching the relying
	// party (timeout, connection refused, or a non-2xx response without a
	// structured error body). Retryable by re-issuing the ceremony.
	ErrNetwork = errors.New("passkey: network failure")

	// ErrServer indicates the relying party rejected the request with a
	// structured error. Use ServerError to access the server's message.
	ErrServer = errors.New("passkey: server rejected request")

	// ErrUserCancelled indicates the user dismissed or aborted the
	// authenticator prompt. Not an alarming failure; the ceremony may be
	// retried.
	ErrUserCancelled = errors.New("passkey: cancelled by user")

	// ErrAuthenticator indicates a device-level authenticator failure other
	// than cancellation, such as no eligible authenticator or a credential
	// already registered on the device.
	ErrAuthenticator = errors.New("passkey: authenticator failure")

	// ErrNoCredential indicates the authenticator holds no credential
	// matching the authentication challenge.
	ErrNoCredential = errors.New("passkey: no matching credential")

	// ErrServerRejected indicates verification completed but the relying
	// party reported failure. The ceremony must restart from a fresh
	// challenge.
	ErrServerRejected = errors.New("passkey: verification rejected")

	// ErrBusy indicates another ceremony is already in flight on this
	// orchestrator. Ceremonies are never queued or interleaved.
	ErrBusy = errors.New("passkey: ceremony already in progress")

	// ErrInvalidConfiguration indicates the client or orchestrator
	// configuration is invalid.
	ErrInvalidConfiguration = errors.New("passkey: invalid configuration")
)

// ServerError carries the relying party's human-readable rejection reason
// verbatim, suitable for display. It unwraps to ErrServer.
type ServerError struct {
	// Message is the message field of the server's structured error body.
	Message string
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	if e.Message == "" {
		return ErrServer.Error()
	}
	return fmt.Sprintf("passkey: server rejected request: %s", e.Message)
}

// Unwrap allows errors.Is(err, ErrServer) to match.
func (e *ServerError) Unwrap() error {
	return ErrServer
}
