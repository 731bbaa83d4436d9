package passkey

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// DefaultTimeout is the per-request timeout applied when Config.Timeout is
// zero.
const DefaultTimeout = 30 * time.Second

// emailPattern matches the well-formedness check applied before a
// registration challenge is requested: one non-whitespace local part, an @,
// and a dotted domain.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Config contains the relying-party client and orchestrator configuration.
type Config struct {
	// BaseURL is the relying party's API root, e.g. "https://rp.example.com/api".
	// The four ceremony endpoints are resolved beneath it.
	BaseURL string

	// Timeout bounds each HTTP request to the relying party.
	// Default: DefaultTimeout.
	Timeout time.Duration

	// TLSConfig optionally overrides the client TLS configuration.
	TLSConfig *tls.Config

	// InsecureSkipVerify disables TLS certificate verification. Never enable
	// in production.
	InsecureSkipVerify bool

	// HTTPClient optionally replaces the default HTTP client. Useful for
	// testing and custom transports.
	HTTPClient HTTPClient

	// DisableCookies stops relying-party cookies from being retained and
	// replayed across ceremony requests. Relying parties commonly bind
	// ceremony state to a cookie, so cookies are kept by default.
	DisableCookies bool
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfiguration)
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("%w: base URL is required", ErrInvalidConfiguration)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: base URL %q is not absolute", ErrInvalidConfiguration, c.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: base URL scheme %q not supported", ErrInvalidConfiguration, u.Scheme)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidConfiguration)
	}
	return nil
}

// timeout returns the effective request timeout.
func (c *Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

// ValidEmail reports whether email is well-formed enough to begin a
// registration ceremony. The relying party remains the authority on whether
// the address is acceptable.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}
