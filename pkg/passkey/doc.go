// Package passkey provides client-side passkey (WebAuthn) registration and
// authentication against a relying-party server.
//
// The package orchestrates the full ceremony: fetch a challenge from the
// relying party, hand it to a platform authenticator, submit the signed
// response for verification, and establish a local session on success. The
// relying party's cryptographic checks and credential storage are out of
// scope; this package calls them and interprets the verdict.
//
// # Components
//
//   - Client: typed access to the four ceremony endpoints
//     (/register/options, /register/verify, /login/options, /login/verify),
//     normalizing transport failures to ErrNetwork and structured rejections
//     to ServerError.
//   - Authenticator: the bridge to a platform authenticator. Implementations
//     surface user cancellation (ErrUserCancelled), a missing credential
//     (ErrNoCredential), and other device failures (ErrAuthenticator). The
//     softtoken package provides an in-process implementation.
//   - SessionStore: a single-slot persistent session. FileSessionStore signs
//     the record so tampered storage reads as logged out.
//   - Orchestrator: the ceremony state machine
//     (Idle → Validating → AwaitingChallenge → AwaitingAuthenticator →
//     Verifying → Success|Failed), with a single-ceremony-in-flight
//     guarantee: a second request of either kind fails with ErrBusy.
//
// # Registration
//
//	client, err := passkey.NewClient(&passkey.Config{
//	    BaseURL: "https://rp.example.com/api",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store, err := passkey.NewFileSessionStore(sessionPath, signingKey)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	orch, err := passkey.NewOrchestrator(passkey.OrchestratorConfig{
//	    RelyingParty:  client,
//	    Authenticator: auth, // e.g. softtoken.New(...)
//	    Sessions:      store,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result := orch.Register(ctx, "someone@example.com")
//	if !result.Success {
//	    log.Printf("registration failed: %v", result.Err)
//	}
//
// Registration does not log the user in; registration and login are distinct
// ceremonies.
//
// # Authentication
//
//	result := orch.Login(ctx)
//	if result.Success {
//	    fmt.Printf("welcome, %s\n", result.Identity.DisplayName)
//	}
//
//	// Later, possibly after a restart:
//	if session, ok := orch.CurrentSession(); ok {
//	    fmt.Printf("signed in as %s\n", session.Identity.Email)
//	}
//
//	orch.Logout()
//
// # Failure taxonomy
//
// Every ceremony failure is classified by a sentinel matchable with
// errors.Is: ErrValidation, ErrNetwork, ErrServer (carrying the server's
// message via ServerError), ErrUserCancelled, ErrAuthenticator,
// ErrNoCredential, ErrServerRejected, and ErrBusy. Every failure returns the
// orchestrator to Idle; no partial session is ever persisted, and the user
// may always retry.
//
// # Observability
//
// OrchestratorConfig.Notify receives every state transition as a Status
// value, letting a presentation layer render progress ("touch your security
// key") without polling. Status() returns the current snapshot.
//
// # Thread safety
//
// Client and the session stores are safe for concurrent use. The
// Orchestrator admits one ceremony at a time by design; concurrent callers
// receive ErrBusy immediately.
package passkey
