package softtoken

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
	"github.com/google/uuid"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

// Operation identifies what the token is asking the user to approve.
type Operation string

const (
	// OperationCreate is a registration (credential creation) prompt.
	OperationCreate Operation = "create"
	// OperationGet is an authentication (assertion) prompt.
	OperationGet Operation = "get"
)

// Prompt describes a pending user-presence check.
type Prompt struct {
	// Operation is the ceremony step awaiting approval.
	Operation Operation
	// RelyingPartyID is the rp id the credential is scoped to.
	RelyingPartyID string
	// UserName is the account name, when the challenge carries one.
	UserName string
}

// ErrPromptDismissed should be returned by a PromptFunc when the user
// dismisses the prompt. It surfaces from the token as
// passkey.ErrUserCancelled.
var ErrPromptDismissed = errors.New("softtoken: prompt dismissed")

// PromptFunc approves or rejects a user-presence check. Returning nil
// approves; returning ErrPromptDismissed cancels; any other error is a
// device-level failure.
type PromptFunc func(Prompt) error

// Config holds software token configuration.
type Config struct {
	// Origin is the web origin the token asserts in clientDataJSON,
	// e.g. "https://app.example.com". Required.
	Origin string

	// Prompt models the platform's user-presence UI. When nil every
	// operation is approved, which is the useful default for tests.
	Prompt PromptFunc
}

func (c Config) validate() error {
	if c.Origin == "" {
		return errors.New("softtoken: origin must not be empty")
	}
	return nil
}

// credential is a resident key held by the token.
type credential struct {
	id         []byte
	rpID       string
	userHandle []byte
	userName   string
	key        *ecdsa.PrivateKey
	counter    uint32
}

// Token is an in-process software authenticator implementing
// passkey.Authenticator. It mints ES256 resident credentials and holds them
// in memory for the lifetime of the token.
//
// Token exists so ceremonies can run end to end without platform hardware:
// examples, integration tests, and cancellation paths all need an
// authenticator that behaves on demand.
type Token struct {
	mu     sync.Mutex
	origin string
	prompt PromptFunc
	aaguid uuid.UUID
	creds  []*credential
}

// New creates a software token.
func New(config Config) (*Token, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &Token{
		origin: config.Origin,
		prompt: config.Prompt,
		aaguid: uuid.New(),
	}, nil
}

// ctap2Mode is the canonical CBOR encoding used for authenticator outputs.
var ctap2Mode cbor.EncMode

func init() {
	var err error
	ctap2Mode, err = cbor.CTAP2EncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

// CreateCredential mints a new resident credential for the registration
// challenge and returns a "none"-format attestation response.
func (t *Token) CreateCredential(ctx context.Context, creation *protocol.CredentialCreation) (*protocol.CredentialCreationResponse, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if creation == nil {
		return nil, fmt.Errorf("%w: nil creation options", passkey.ErrAuthenticator)
	}

	options := creation.Response
	rpID := options.RelyingParty.ID
	if rpID == "" {
		return nil, fmt.Errorf("%w: challenge carries no relying party id", passkey.ErrAuthenticator)
	}
	if !supportsES256(options.Parameters) {
		return nil, fmt.Errorf("%w: relying party does not accept ES256", passkey.ErrAuthenticator)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, excluded := range options.CredentialExcludeList {
		if t.findByID(excluded.CredentialID) != nil {
			return nil, fmt.Errorf("%w: credential already registered on this device", passkey.ErrAuthenticator)
		}
	}

	if err := t.promptUser(Prompt{
		Operation:      OperationCreate,
		RelyingPartyID: rpID,
		UserName:       options.User.Name,
	}); err != nil {
		return nil, err
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: generate key: %v", passkey.ErrAuthenticator, err)
	}

	credID := make([]byte, 32)
	if _, err := rand.Read(credID); err != nil {
		return nil, fmt.Errorf("%w: generate credential id: %v", passkey.ErrAuthenticator, err)
	}

	cred := &credential{
		id:         credID,
		rpID:       rpID,
		userHandle: decodeUserID(options.User.ID),
		userName:   options.User.Name,
		key:        key,
	}

	clientData, err := clientDataJSON("webauthn.create", options.Challenge, t.origin)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", passkey.ErrAuthenticator, err)
	}

	authData, err := t.attestedAuthData(cred)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", passkey.ErrAuthenticator, err)
	}

	attObj, err := ctap2Mode.Marshal(attestationObject{
		AuthData: authData,
		Fmt:      "none",
		AttStmt:  map[string]interface{}{},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode attestation object: %v", passkey.ErrAuthenticator, err)
	}

	t.creds = append(t.creds, cred)

	return &protocol.CredentialCreationResponse{
		PublicKeyCredential: protocol.PublicKeyCredential{
			Credential: protocol.Credential{
				ID:   base64.RawURLEncoding.EncodeToString(credID),
				Type: "public-key",
			},
			RawID: credID,
		},
		AttestationResponse: protocol.AuthenticatorAttestationResponse{
			AuthenticatorResponse: protocol.AuthenticatorResponse{
				ClientDataJSON: clientData,
			},
			AttestationObject: attObj,
			Transports:        []string{"internal"},
		},
	}, nil
}

// GetAssertion signs the authentication challenge with a stored credential.
// It fails passkey.ErrNoCredential when nothing matches the relying party or
// its allow list.
func (t *Token) GetAssertion(ctx context.Context, assertion *protocol.CredentialAssertion) (*protocol.CredentialAssertionResponse, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if assertion == nil {
		return nil, fmt.Errorf("%w: nil assertion options", passkey.ErrAuthenticator)
	}

	options := assertion.Response

	t.mu.Lock()
	defer t.mu.Unlock()

	cred := t.selectCredential(options.RelyingPartyID, options.AllowedCredentials)
	if cred == nil {
		return nil, fmt.Errorf("%w: for relying party %q", passkey.ErrNoCredential, options.RelyingPartyID)
	}

	if err := t.promptUser(Prompt{
		Operation:      OperationGet,
		RelyingPartyID: cred.rpID,
		UserName:       cred.userName,
	}); err != nil {
		return nil, err
	}

	clientData, err := clientDataJSON("webauthn.get", options.Challenge, t.origin)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", passkey.ErrAuthenticator, err)
	}

	cred.counter++
	authData := assertionAuthData(cred.rpID, cred.counter)

	clientDataHash := sha256.Sum256(clientData)
	digest := sha256.Sum256(append(authData, clientDataHash[:]...))
	sig, err := ecdsa.SignASN1(rand.Reader, cred.key, digest[:])
	if err != nil {
		return nil, fmt.Errorf("%w: sign assertion: %v", passkey.ErrAuthenticator, err)
	}

	return &protocol.CredentialAssertionResponse{
		PublicKeyCredential: protocol.PublicKeyCredential{
			Credential: protocol.Credential{
				ID:   base64.RawURLEncoding.EncodeToString(cred.id),
				Type: "public-key",
			},
			RawID: cred.id,
		},
		AssertionResponse: protocol.AuthenticatorAssertionResponse{
			AuthenticatorResponse: protocol.AuthenticatorResponse{
				ClientDataJSON: clientData,
			},
			AuthenticatorData: authData,
			Signature:         sig,
			UserHandle:        cred.userHandle,
		},
	}, nil
}

// promptUser runs the configured prompt and classifies its outcome.
func (t *Token) promptUser(p Prompt) error {
	if t.prompt == nil {
		return nil
	}
	err := t.prompt(p)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrPromptDismissed):
		return fmt.Errorf("%w: %v", passkey.ErrUserCancelled, err)
	default:
		return fmt.Errorf("%w: %v", passkey.ErrAuthenticator, err)
	}
}

// findByID returns the stored credential with the given id. Caller holds mu.
func (t *Token) findByID(id []byte) *credential {
	for _, c := range t.creds {
		if bytes.Equal(c.id, id) {
			return c
		}
	}
	return nil
}

// selectCredential picks a credential scoped to rpID, restricted to the
// allow list when one is present. Caller holds mu.
func (t *Token) selectCredential(rpID string, allowed []protocol.CredentialDescriptor) *credential {
	for _, c := range t.creds {
		if rpID != "" && c.rpID != rpID {
			continue
		}
		if len(allowed) == 0 {
			return c
		}
		for _, desc := range allowed {
			if bytes.Equal(desc.CredentialID, c.id) {
				return c
			}
		}
	}
	return nil
}

// attestationObject is the CBOR registration output.
type attestationObject struct {
	AuthData []byte                 `cbor:"authData"`
	Fmt      string                 `cbor:"fmt"`
	AttStmt  map[string]interface{} `cbor:"attStmt"`
}

// coseEC2Key is the COSE_Key encoding of a P-256 public key.
type coseEC2Key struct {
	KeyType   int    `cbor:"1,keyasint"`
	Algorithm int    `cbor:"3,keyasint"`
	Curve     int    `cbor:"-1,keyasint"`
	X         []byte `cbor:"-2,keyasint"`
	Y         []byte `cbor:"-3,keyasint"`
}

const (
	authFlagUserPresent  = 0x01
	authFlagUserVerified = 0x04
	authFlagAttested     = 0x40
)

// attestedAuthData builds the authenticator data for registration:
// rpIdHash || flags || counter || AAGUID || credIdLen || credId || COSE key.
func (t *Token) attestedAuthData(cred *credential) ([]byte, error) {
	coseKey, err := ctap2Mode.Marshal(coseEC2Key{
		KeyType:   2,  // EC2
		Algorithm: -7, // ES256
		Curve:     1,  // P-256
		X:         cred.key.PublicKey.X.FillBytes(make([]byte, 32)),
		Y:         cred.key.PublicKey.Y.FillBytes(make([]byte, 32)),
	})
	if err != nil {
		return nil, fmt.Errorf("encode cose key: %w", err)
	}

	rpIDHash := sha256.Sum256([]byte(cred.rpID))

	data := make([]byte, 0, 37+16+2+len(cred.id)+len(coseKey))
	data = append(data, rpIDHash[:]...)
	data = append(data, authFlagUserPresent|authFlagUserVerified|authFlagAttested)
	data = binary.BigEndian.AppendUint32(data, cred.counter)
	data = append(data, t.aaguid[:]...)
	data = binary.BigEndian.AppendUint16(data, uint16(len(cred.id)))
	data = append(data, cred.id...)
	data = append(data, coseKey...)
	return data, nil
}

// assertionAuthData builds the authenticator data for authentication:
// rpIdHash || flags || counter.
func assertionAuthData(rpID string, counter uint32) []byte {
	rpIDHash := sha256.Sum256([]byte(rpID))
	data := make([]byte, 0, 37)
	data = append(data, rpIDHash[:]...)
	data = append(data, authFlagUserPresent|authFlagUserVerified)
	data = binary.BigEndian.AppendUint32(data, counter)
	return data
}

// clientDataJSON builds the client data the browser would produce.
func clientDataJSON(ceremony string, challenge protocol.URLEncodedBase64, origin string) ([]byte, error) {
	payload := struct {
		Type      string `json:"type"`
		Challenge string `json:"challenge"`
		Origin    string `json:"origin"`
	}{
		Type:      ceremony,
		Challenge: base64.RawURLEncoding.EncodeToString(challenge),
		Origin:    origin,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode client data: %w", err)
	}
	return data, nil
}

// supportsES256 reports whether the relying party accepts ES256 credentials.
// An empty parameter list means no restriction.
func supportsES256(params []protocol.CredentialParameter) bool {
	if len(params) == 0 {
		return true
	}
	for _, p := range params {
		if p.Algorithm == webauthncose.AlgES256 {
			return true
		}
	}
	return false
}

// decodeUserID normalizes the user handle from creation options, which is a
// base64url string after JSON decoding and raw bytes when constructed
// in-process.
func decodeUserID(id interface{}) []byte {
	switch v := id.(type) {
	case []byte:
		return v
	case protocol.URLEncodedBase64:
		return v
	case string:
		if decoded, err := base64.RawURLEncoding.DecodeString(v); err == nil {
			return decoded
		}
		return []byte(v)
	default:
		return nil
	}
}
