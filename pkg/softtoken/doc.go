// Package softtoken provides an in-process software authenticator
// implementing the passkey.Authenticator bridge.
//
// The token mints ES256 (P-256) resident credentials, answers registration
// challenges with a "none"-format CBOR attestation object, and answers
// authentication challenges with signatures over
// authenticatorData || SHA-256(clientDataJSON), exactly as a platform
// authenticator would. Credentials live in memory for the lifetime of the
// token.
//
// A PromptFunc models the platform's user-presence UI. Returning
// ErrPromptDismissed from it makes the token fail with
// passkey.ErrUserCancelled, which is how tests exercise cancellation paths
// on demand:
//
//	token, err := softtoken.New(softtoken.Config{
//	    Origin: "https://app.example.com",
//	    Prompt: func(p softtoken.Prompt) error {
//	        fmt.Printf("approve %s for %s? ", p.Operation, p.RelyingPartyID)
//	        return nil // or softtoken.ErrPromptDismissed
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	orch, err := passkey.NewOrchestrator(passkey.OrchestratorConfig{
//	    RelyingParty:  client,
//	    Authenticator: token,
//	    Sessions:      passkey.NewMemorySessionStore(),
//	})
//
// The token is not a security boundary: keys are held unprotected in process
// memory. Use it for development and testing, never as a production
// credential store.
package softtoken
