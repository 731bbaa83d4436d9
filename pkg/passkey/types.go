package passkey

import (
	"time"
)

// Identity is the authenticated principal established by a successful
// ceremony. It is immutable for the lifetime of the session.
type Identity struct {
	// Email uniquely identifies the user at the relying party.
	Email string `json:"email"`

	// DisplayName is the human-readable name. When the relying party
	// supplies none, it falls back to Email.
	DisplayName string `json:"displayName,omitempty"`
}

// Session is the persisted authentication state. At most one session exists
// per store.
type Session struct {
	Identity      Identity  `json:"identity"`
	EstablishedAt time.Time `json:"establishedAt"`
}

// VerificationOutcome is the relying party's verdict on a submitted
// attestation or assertion, decoded from the verify endpoints.
type VerificationOutcome struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// CeremonyResult is the terminal outcome of a single ceremony invocation.
// It is never mutated after creation.
type CeremonyResult struct {
	// Success reports whether the ceremony completed and the relying party
	// accepted the credential response.
	Success bool

	// Identity is set on successful authentication, and on successful
	// registration when the relying party echoes the registered identity.
	Identity *Identity

	// Message is the relying party's human-readable message, when present.
	Message string

	// Err classifies the failure. Nil when Success is true.
	Err error
}

// State identifies the orchestrator's position in the ceremony state machine.
type State int

const (
	// StateIdle means no ceremony is in flight. Initial state, and the state
	// re-entered after every terminal outcome.
	StateIdle State = iota

	// StateValidating means registration input is being validated.
	StateValidating

	// StateAwaitingChallenge means a challenge has been requested from the
	// relying party.
	StateAwaitingChallenge

	// StateAwaitingAuthenticator means the platform authenticator has been
	// invoked and may be prompting the user.
	StateAwaitingAuthenticator

	// StateVerifying means the signed credential response has been submitted
	// to the relying party.
	StateVerifying

	// StateSuccess is the terminal state of an accepted ceremony.
	StateSuccess

	// StateFailed is the terminal state of a rejected or aborted ceremony.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateAwaitingChallenge:
		return "awaiting_challenge"
	case StateAwaitingAuthenticator:
		return "awaiting_authenticator"
	case StateVerifying:
		return "verifying"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is the orchestrator's observable surface: the current state and, in
// StateFailed, the classifying error.
type Status struct {
	State State
	Err   error
}
