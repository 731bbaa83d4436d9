package softtoken

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

const testOrigin = "https://app.example.com"

func newTestToken(t *testing.T, prompt PromptFunc) *Token {
	t.Helper()
	token, err := New(Config{Origin: testOrigin, Prompt: prompt})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return token
}

func creationOptions(challenge []byte) *protocol.CredentialCreation {
	return &protocol.CredentialCreation{
		Response: protocol.PublicKeyCredentialCreationOptions{
			Challenge: challenge,
			RelyingParty: protocol.RelyingPartyEntity{
				CredentialEntity: protocol.CredentialEntity{Name: "Example"},
				ID:               "example.com",
			},
			User: protocol.UserEntity{
				CredentialEntity: protocol.CredentialEntity{Name: "someone@example.com"},
				DisplayName:      "Someone",
				ID:               []byte("user-handle"),
			},
			Parameters: []protocol.CredentialParameter{
				{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgES256},
			},
		},
	}
}

func assertionOptions(challenge []byte) *protocol.CredentialAssertion {
	return &protocol.CredentialAssertion{
		Response: protocol.PublicKeyCredentialRequestOptions{
			Challenge:      challenge,
			RelyingPartyID: "example.com",
		},
	}
}

func TestNew_RequiresOrigin(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() accepted empty origin")
	}
}

func TestCreateCredential_ProducesParseableAttestation(t *testing.T) {
	token := newTestToken(t, nil)
	challenge := []byte("registration-challenge-bytes")

	response, err := token.CreateCredential(context.Background(), creationOptions(challenge))
	if err != nil {
		t.Fatalf("CreateCredential() failed: %v", err)
	}

	raw, err := json.Marshal(response)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	parsed, err := protocol.ParseCredentialCreationResponseBytes(raw)
	if err != nil {
		t.Fatalf("go-webauthn rejected the attestation response: %v", err)
	}

	clientData := parsed.Response.CollectedClientData
	if clientData.Type != protocol.CreateCeremony {
		t.Errorf("clientData type = %q, want webauthn.create", clientData.Type)
	}
	if clientData.Origin != testOrigin {
		t.Errorf("clientData origin = %q, want %q", clientData.Origin, testOrigin)
	}
	if want := base64.RawURLEncoding.EncodeToString(challenge); clientData.Challenge != want {
		t.Errorf("clientData challenge = %q, want %q", clientData.Challenge, want)
	}

	attObj := parsed.Response.AttestationObject
	if attObj.Format != "none" {
		t.Errorf("attestation format = %q, want none", attObj.Format)
	}
	rpIDHash := sha256.Sum256([]byte("example.com"))
	if string(attObj.AuthData.RPIDHash) != string(rpIDHash[:]) {
		t.Error("authData rpIdHash does not match the relying party id")
	}
	if len(attObj.AuthData.AttData.CredentialID) == 0 {
		t.Error("authData carries no credential id")
	}
	if _, err := webauthncose.ParsePublicKey(attObj.AuthData.AttData.CredentialPublicKey); err != nil {
		t.Errorf("credential public key does not parse as COSE: %v", err)
	}
}

func TestCreateCredential_RejectsUnsupportedAlgorithms(t *testing.T) {
	token := newTestToken(t, nil)
	options := creationOptions([]byte("challenge"))
	options.Response.Parameters = []protocol.CredentialParameter{
		{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgRS256},
	}

	if _, err := token.CreateCredential(context.Background(), options); !errors.Is(err, passkey.ErrAuthenticator) {
		t.Errorf("error = %v, want ErrAuthenticator", err)
	}
}

func TestCreateCredential_ExcludeListBlocksDuplicate(t *testing.T) {
	token := newTestToken(t, nil)

	first, err := token.CreateCredential(context.Background(), creationOptions([]byte("challenge-1")))
	if err != nil {
		t.Fatalf("CreateCredential() failed: %v", err)
	}

	options := creationOptions([]byte("challenge-2"))
	options.Response.CredentialExcludeList = []protocol.CredentialDescriptor{
		{Type: protocol.PublicKeyCredentialType, CredentialID: first.RawID},
	}

	if _, err := token.CreateCredential(context.Background(), options); !errors.Is(err, passkey.ErrAuthenticator) {
		t.Errorf("error = %v, want ErrAuthenticator for excluded credential", err)
	}
}

func TestGetAssertion_NoCredential(t *testing.T) {
	token := newTestToken(t, nil)

	if _, err := token.GetAssertion(context.Background(), assertionOptions([]byte("challenge"))); !errors.Is(err, passkey.ErrNoCredential) {
		t.Errorf("error = %v, want ErrNoCredential", err)
	}
}

func TestGetAssertion_SignatureVerifies(t *testing.T) {
	token := newTestToken(t, nil)

	created, err := token.CreateCredential(context.Background(), creationOptions([]byte("reg-challenge")))
	if err != nil {
		t.Fatalf("CreateCredential() failed: %v", err)
	}

	rawCreation, err := json.Marshal(created)
	if err != nil {
		t.Fatalf("marshal creation response: %v", err)
	}
	parsedCreation, err := protocol.ParseCredentialCreationResponseBytes(rawCreation)
	if err != nil {
		t.Fatalf("parse creation response: %v", err)
	}
	publicKey, err := webauthncose.ParsePublicKey(parsedCreation.Response.AttestationObject.AuthData.AttData.CredentialPublicKey)
	if err != nil {
		t.Fatalf("parse public key: %v", err)
	}

	assertion, err := token.GetAssertion(context.Background(), assertionOptions([]byte("auth-challenge")))
	if err != nil {
		t.Fatalf("GetAssertion() failed: %v", err)
	}

	if string(assertion.RawID) != string(created.RawID) {
		t.Error("assertion credential id differs from the registered credential")
	}
	if string(assertion.AssertionResponse.UserHandle) != "user-handle" {
		t.Errorf("user handle = %q, want user-handle", assertion.AssertionResponse.UserHandle)
	}

	clientDataHash := sha256.Sum256(assertion.AssertionResponse.ClientDataJSON)
	signed := append(append([]byte{}, assertion.AssertionResponse.AuthenticatorData...), clientDataHash[:]...)
	valid, err := webauthncose.VerifySignature(publicKey, signed, assertion.AssertionResponse.Signature)
	if err != nil {
		t.Fatalf("VerifySignature() failed: %v", err)
	}
	if !valid {
		t.Error("assertion signature does not verify against the registered public key")
	}
}

func TestGetAssertion_HonorsAllowList(t *testing.T) {
	token := newTestToken(t, nil)

	if _, err := token.CreateCredential(context.Background(), creationOptions([]byte("challenge"))); err != nil {
		t.Fatalf("CreateCredential() failed: %v", err)
	}

	options := assertionOptions([]byte("auth-challenge"))
	options.Response.AllowedCredentials = []protocol.CredentialDescriptor{
		{Type: protocol.PublicKeyCredentialType, CredentialID: []byte("some-other-credential")},
	}

	if _, err := token.GetAssertion(context.Background(), options); !errors.Is(err, passkey.ErrNoCredential) {
		t.Errorf("error = %v, want ErrNoCredential for unmatched allow list", err)
	}
}

func TestGetAssertion_CounterIncrements(t *testing.T) {
	token := newTestToken(t, nil)

	if _, err := token.CreateCredential(context.Background(), creationOptions([]byte("challenge"))); err != nil {
		t.Fatalf("CreateCredential() failed: %v", err)
	}

	var counters []uint32
	for i := 0; i < 2; i++ {
		assertion, err := token.GetAssertion(context.Background(), assertionOptions([]byte("auth")))
		if err != nil {
			t.Fatalf("GetAssertion() #%d failed: %v", i+1, err)
		}
		raw, err := json.Marshal(assertion)
		if err != nil {
			t.Fatalf("marshal assertion: %v", err)
		}
		parsed, err := protocol.ParseCredentialRequestResponseBytes(raw)
		if err != nil {
			t.Fatalf("parse assertion: %v", err)
		}
		counters = append(counters, parsed.Response.AuthenticatorData.Counter)
	}

	if counters[1] <= counters[0] {
		t.Errorf("counters = %v, want strictly increasing", counters)
	}
}

func TestPromptOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		prompt  PromptFunc
		wantErr error
	}{
		{
			name:    "dismissed maps to user cancelled",
			prompt:  func(Prompt) error { return ErrPromptDismissed },
			wantErr: passkey.ErrUserCancelled,
		},
		{
			name:    "other failures map to authenticator error",
			prompt:  func(Prompt) error { return errors.New("sensor unavailable") },
			wantErr: passkey.ErrAuthenticator,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := newTestToken(t, tt.prompt)
			if _, err := token.CreateCredential(context.Background(), creationOptions([]byte("challenge"))); !errors.Is(err, tt.wantErr) {
				t.Errorf("CreateCredential() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPrompt_ReceivesCeremonyDetails(t *testing.T) {
	var got Prompt
	token := newTestToken(t, func(p Prompt) error {
		got = p
		return nil
	})

	if _, err := token.CreateCredential(context.Background(), creationOptions([]byte("challenge"))); err != nil {
		t.Fatalf("CreateCredential() failed: %v", err)
	}

	if got.Operation != OperationCreate {
		t.Errorf("prompt operation = %q, want create", got.Operation)
	}
	if got.RelyingPartyID != "example.com" {
		t.Errorf("prompt rp id = %q, want example.com", got.RelyingPartyID)
	}
	if got.UserName != "someone@example.com" {
		t.Errorf("prompt user = %q, want someone@example.com", got.UserName)
	}
}
