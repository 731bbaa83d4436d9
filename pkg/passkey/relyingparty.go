package passkey

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-webauthn/webauthn/protocol"
)

// Relying-party ceremony endpoints, resolved beneath Config.BaseURL.
const (
	pathRegisterOptions = "/register/options"
	pathRegisterVerify  = "/register/verify"
	pathLoginOptions    = "/login/options"
	pathLoginVerify     = "/login/verify"
)

// RelyingParty is the typed contract for the four ceremony endpoints.
//
// All operations share one failure-normalization rule: a transport failure,
// or a non-2xx response without a decodable {message} body, is reported as
// ErrNetwork; a structured error body is reported as *ServerError carrying
// the server's message verbatim.
type RelyingParty interface {
	// RegistrationOptions requests a fresh registration challenge for email.
	RegistrationOptions(ctx context.Context, email string) (*protocol.CredentialCreation, error)

	// VerifyRegistration submits the attestation produced by the
	// authenticator for server-side verification.
	VerifyRegistration(ctx context.Context, email string, attestation *protocol.CredentialCreationResponse) (*VerificationOutcome, error)

	// AuthenticationOptions requests a fresh authentication challenge. No
	// identity is supplied; the relying party resolves candidate
	// credentials server-side.
	AuthenticationOptions(ctx context.Context) (*protocol.CredentialAssertion, error)

	// VerifyAuthentication submits the assertion produced by the
	// authenticator for server-side verification.
	VerifyAuthentication(ctx context.Context, assertion *protocol.CredentialAssertionResponse) (*VerificationOutcome, error)
}

// Client is the HTTP implementation of RelyingParty.
// It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient HTTPClient
}

// NewClient creates a relying-party client from the given configuration.
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = newDefaultHTTPClient(config.timeout(), config.TLSConfig, config.InsecureSkipVerify, config.DisableCookies)
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpClient,
	}, nil
}

// RegistrationOptions requests a registration challenge for email.
// The email must be well-formed; malformed input fails ErrValidation without
// a server round-trip.
func (c *Client) RegistrationOptions(ctx context.Context, email string) (*protocol.CredentialCreation, error) {
	if !ValidEmail(email) {
		return nil, fmt.Errorf("%w: malformed email", ErrValidation)
	}

	var creation protocol.CredentialCreation
	req := struct {
		Email string `json:"email"`
	}{Email: email}

	if err := c.post(ctx, pathRegisterOptions, req, &creation); err != nil {
		return nil, err
	}
	return &creation, nil
}

// VerifyRegistration submits an attestation response for verification.
func (c *Client) VerifyRegistration(ctx context.Context, email string, attestation *protocol.CredentialCreationResponse) (*VerificationOutcome, error) {
	if attestation == nil {
		return nil, fmt.Errorf("%w: attestation response is nil", ErrValidation)
	}

	var outcome VerificationOutcome
	req := struct {
		Email               string                               `json:"email"`
		AttestationResponse *protocol.CredentialCreationResponse `json:"attestationResponse"`
	}{Email: email, AttestationResponse: attestation}

	if err := c.post(ctx, pathRegisterVerify, req, &outcome); err != nil {
		return nil, err
	}
	return &outcome, nil
}

// AuthenticationOptions requests an authentication challenge.
func (c *Client) AuthenticationOptions(ctx context.Context) (*protocol.CredentialAssertion, error) {
	var assertion protocol.CredentialAssertion
	if err := c.post(ctx, pathLoginOptions, nil, &assertion); err != nil {
		return nil, err
	}
	return &assertion, nil
}

// VerifyAuthentication submits an assertion response for verification.
func (c *Client) VerifyAuthentication(ctx context.Context, assertion *protocol.CredentialAssertionResponse) (*VerificationOutcome, error) {
	if assertion == nil {
		return nil, fmt.Errorf("%w: assertion response is nil", ErrValidation)
	}

	var outcome VerificationOutcome
	req := struct {
		AssertionResponse *protocol.CredentialAssertionResponse `json:"assertionResponse"`
	}{AssertionResponse: assertion}

	if err := c.post(ctx, pathLoginVerify, req, &outcome); err != nil {
		return nil, err
	}
	return &outcome, nil
}

// post issues a JSON POST to the given endpoint and decodes a 2xx body into
// out, applying the shared failure-normalization rule otherwise.
func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", ErrValidation, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Context cancellation is the caller's doing, not a network fault.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return normalizeFailure(resp.StatusCode, raw)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: malformed response body: %v", ErrNetwork, err)
	}
	return nil
}

// normalizeFailure maps a non-2xx response to the shared failure taxonomy:
// a structured {message} body becomes *ServerError, anything else ErrNetwork.
func normalizeFailure(status int, body []byte) error {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return &ServerError{Message: payload.Message}
	}
	return fmt.Errorf("%w: unexpected status %d", ErrNetwork, status)
}
