package passkey

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// OrchestratorConfig wires the orchestrator's collaborators.
type OrchestratorConfig struct {
	// RelyingParty issues challenges and verifies signed responses.
	RelyingParty RelyingParty

	// Authenticator produces signed credential responses from challenges.
	Authenticator Authenticator

	// Sessions persists the authenticated identity. Written only by the
	// orchestrator.
	Sessions SessionStore

	// Notify, when set, is invoked synchronously on every state transition.
	// The callback must not start a ceremony reentrantly; doing so fails
	// with ErrBusy.
	Notify func(Status)
}

// Orchestrator sequences the registration and authentication ceremonies:
// challenge retrieval, authenticator invocation, server verification, and
// session-state transitions. At most one ceremony is in flight at a time;
// concurrent requests of either kind fail with ErrBusy rather than queue.
type Orchestrator struct {
	relyingParty  RelyingParty
	authenticator Authenticator
	sessions      SessionStore
	notify        func(Status)

	inFlight atomic.Bool

	mu     sync.Mutex
	status Status
}

// NewOrchestrator creates a ceremony orchestrator from the supplied
// collaborators. All three are required.
func NewOrchestrator(config OrchestratorConfig) (*Orchestrator, error) {
	if config.RelyingParty == nil {
		return nil, fmt.Errorf("%w: relying party is required", ErrInvalidConfiguration)
	}
	if config.Authenticator == nil {
		return nil, fmt.Errorf("%w: authenticator is required", ErrInvalidConfiguration)
	}
	if config.Sessions == nil {
		return nil, fmt.Errorf("%w: session store is required", ErrInvalidConfiguration)
	}

	return &Orchestrator{
		relyingParty:  config.RelyingParty,
		authenticator: config.Authenticator,
		sessions:      config.Sessions,
		notify:        config.Notify,
		status:        Status{State: StateIdle},
	}, nil
}

// Status returns the current observable state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// CurrentSession returns the session restored from the store, if any.
func (o *Orchestrator) CurrentSession() (*Session, bool) {
	return o.sessions.Load()
}

// Register runs the registration ceremony for email: validate, fetch a
// registration challenge, invoke the authenticator, and submit the
// attestation for verification.
//
// A successful registration does not establish a session; registration and
// login are distinct ceremonies.
func (o *Orchestrator) Register(ctx context.Context, email string) CeremonyResult {
	if ctx == nil {
		ctx = context.Background()
	}
	if !o.inFlight.CompareAndSwap(false, true) {
		// The in-flight ceremony's state and outcome are untouched.
		return CeremonyResult{Err: ErrBusy}
	}
	defer o.inFlight.Store(false)

	o.transition(Status{State: StateValidating})
	if !ValidEmail(email) {
		// Rejected input returns straight to Idle; the ceremony proper
		// never starts and no challenge is requested.
		o.transition(Status{State: StateIdle})
		return CeremonyResult{Err: fmt.Errorf("%w: malformed email address", ErrValidation)}
	}

	o.transition(Status{State: StateAwaitingChallenge})
	creation, err := o.relyingParty.RegistrationOptions(ctx, email)
	if err != nil {
		return o.fail(err)
	}

	o.transition(Status{State: StateAwaitingAuthenticator})
	attestation, err := o.authenticator.CreateCredential(ctx, creation)
	if err != nil {
		return o.fail(err)
	}

	o.transition(Status{State: StateVerifying})
	outcome, err := o.relyingParty.VerifyRegistration(ctx, email, attestation)
	if err != nil {
		return o.fail(err)
	}
	if !outcome.Success {
		return o.failWithMessage(ErrServerRejected, outcome.Message)
	}

	result := CeremonyResult{Success: true, Message: outcome.Message}
	if outcome.Email != "" {
		result.Identity = identityFromOutcome(outcome)
	}

	o.transition(Status{State: StateSuccess})
	o.transition(Status{State: StateIdle})
	return result
}

// Login runs the authentication ceremony: fetch an authentication challenge,
// invoke the authenticator, submit the assertion for verification, and on
// success persist the resulting identity as the session.
func (o *Orchestrator) Login(ctx context.Context) CeremonyResult {
	if ctx == nil {
		ctx = context.Background()
	}
	if !o.inFlight.CompareAndSwap(false, true) {
		return CeremonyResult{Err: ErrBusy}
	}
	defer o.inFlight.Store(false)

	o.transition(Status{State: StateAwaitingChallenge})
	assertion, err := o.relyingParty.AuthenticationOptions(ctx)
	if err != nil {
		return o.fail(err)
	}

	o.transition(Status{State: StateAwaitingAuthenticator})
	response, err := o.authenticator.GetAssertion(ctx, assertion)
	if err != nil {
		return o.fail(err)
	}

	o.transition(Status{State: StateVerifying})
	outcome, err := o.relyingParty.VerifyAuthentication(ctx, response)
	if err != nil {
		return o.fail(err)
	}
	if !outcome.Success {
		return o.failWithMessage(ErrServerRejected, outcome.Message)
	}
	if outcome.Email == "" {
		return o.fail(fmt.Errorf("%w: verification outcome carries no identity", ErrServerRejected))
	}

	identity := identityFromOutcome(outcome)
	if err := o.sessions.Save(*identity); err != nil {
		// The session is all-or-nothing: a failed save fails the ceremony.
		return o.fail(err)
	}

	o.transition(Status{State: StateSuccess})
	o.transition(Status{State: StateIdle})
	return CeremonyResult{Success: true, Identity: identity, Message: outcome.Message}
}

// Logout clears the persisted session. It is not a ceremony: it is available
// in any state, is idempotent, and never disturbs an in-flight ceremony's
// state machine. A non-nil error means the persistent record could not be
// removed; callers should treat the user as logged out regardless and may
// retry the clear.
func (o *Orchestrator) Logout() error {
	return o.sessions.Clear()
}

// fail records the terminal failure, returns the machine to Idle, and builds
// the ceremony result.
func (o *Orchestrator) fail(err error) CeremonyResult {
	return o.failWithMessage(err, "")
}

func (o *Orchestrator) failWithMessage(err error, message string) CeremonyResult {
	o.transition(Status{State: StateFailed, Err: err})
	o.transition(Status{State: StateIdle})
	return CeremonyResult{Err: err, Message: message}
}

// transition publishes a state change to Status and the Notify hook.
func (o *Orchestrator) transition(status Status) {
	o.mu.Lock()
	o.status = status
	o.mu.Unlock()

	if o.notify != nil {
		o.notify(status)
	}
}

// identityFromOutcome builds the session identity from a successful
// verification outcome, falling back to the email address when the relying
// party supplies no display name.
func identityFromOutcome(outcome *VerificationOutcome) *Identity {
	identity := &Identity{
		Email:       outcome.Email,
		DisplayName: outcome.DisplayName,
	}
	if identity.DisplayName == "" {
		identity.DisplayName = identity.Email
	}
	return identity
}
