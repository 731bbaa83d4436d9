package passkey

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionStore persists and restores the authenticated identity across
// process restarts. Implementations hold at most one session.
//
// Load never fails on malformed or tampered data; such data is treated as
// an absent session.
type SessionStore interface {
	// Save persists the identity, replacing any prior session.
	Save(identity Identity) error

	// Load returns the last saved session if present and well-formed.
	Load() (*Session, bool)

	// Clear removes the session. Idempotent; safe with no active session.
	Clear() error
}

// sessionClaims is the persisted session record: the identity, an
// authenticated marker, and the establishment time as iat.
type sessionClaims struct {
	Email         string `json:"email"`
	DisplayName   string `json:"name,omitempty"`
	Authenticated bool   `json:"authenticated"`
	jwt.RegisteredClaims
}

// FileSessionStore keeps the session record in a single file, serialized as
// an HMAC-signed token so that corrupted or tampered storage reads as no
// session rather than a forged one. It is safe for concurrent use.
type FileSessionStore struct {
	mu   sync.Mutex
	path string
	key  []byte
}

// NewFileSessionStore creates a file-backed session store. The signing key
// must be non-empty and stable across restarts for sessions to survive them.
func NewFileSessionStore(path string, signingKey []byte) (*FileSessionStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: session store path is required", ErrInvalidConfiguration)
	}
	if len(signingKey) == 0 {
		return nil, fmt.Errorf("%w: session signing key is required", ErrInvalidConfiguration)
	}
	return &FileSessionStore{path: path, key: signingKey}, nil
}

// Save persists the identity, replacing any prior session.
func (s *FileSessionStore) Save(identity Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	claims := sessionClaims{
		Email:         identity.Email,
		DisplayName:   identity.DisplayName,
		Authenticated: true,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return fmt.Errorf("passkey: sign session record: %w", err)
	}

	// Write-then-rename so a crash never leaves a half-written record.
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("passkey: write session record: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(token); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("passkey: write session record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("passkey: write session record: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("passkey: write session record: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("passkey: write session record: %w", err)
	}
	return nil
}

// Load returns the persisted session. Missing, malformed, or tampered
// records load as absent.
func (s *FileSessionStore) Load() (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, false
	}

	var claims sessionClaims
	token, err := jwt.ParseWithClaims(string(raw), &claims, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, false
	}
	if !claims.Authenticated || claims.Email == "" {
		return nil, false
	}

	session := &Session{
		Identity: Identity{
			Email:       claims.Email,
			DisplayName: claims.DisplayName,
		},
	}
	if claims.IssuedAt != nil {
		session.EstablishedAt = claims.IssuedAt.Time
	}
	return session, true
}

// Clear removes the session file. Idempotent.
func (s *FileSessionStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("passkey: clear session record: %w", err)
	}
	return nil
}

// MemorySessionStore holds the session in memory only. Useful for tests and
// for processes that should not persist authentication state.
type MemorySessionStore struct {
	mu      sync.Mutex
	session *Session
}

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{}
}

// Save persists the identity, replacing any prior session.
func (s *MemorySessionStore) Save(identity Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = &Session{Identity: identity, EstablishedAt: time.Now()}
	return nil
}

// Load returns the stored session, if any.
func (s *MemorySessionStore) Load() (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, false
	}
	session := *s.session
	return &session, true
}

// Clear removes the session. Idempotent.
func (s *MemorySessionStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}
