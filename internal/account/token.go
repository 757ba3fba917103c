package account

import (
	"encoding/json"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoToken is returned when no token has been stored for the account.
var ErrNoToken = errors.New("no stored token")

// Session is the persisted auth state for an account: the server-issued
// bearer token plus the identity it was issued to.
type Session struct {
	Token    string `json:"token"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	SavedAt  int64  `json:"saved_at"`
}

// TokenStore persists the bearer token for one account under its
// directory with 0600 permissions. All methods are safe for concurrent use.
type TokenStore struct {
	mu   sync.RWMutex
	path string
	cur  *Session
}

// NewTokenStore creates a store backed by the given file path. The file is
// read lazily on first access.
func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

// Load reads the stored session from disk. Returns ErrNoToken if absent.
func (s *TokenStore) Load() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *TokenStore) loadLocked() (*Session, error) {
	if s.cur != nil {
		return s.cur, nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoToken
		}
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	if sess.Token == "" {
		return nil, ErrNoToken
	}
	s.cur = &sess
	return s.cur, nil
}

// Save persists a new session, replacing any previous one.
func (s *TokenStore) Save(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.SavedAt = time.Now().UnixMilli()
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return err
	}
	s.cur = sess
	return nil
}

// Clear removes the stored session (logout).
func (s *TokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = nil
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Token returns the raw bearer token, or empty string if none is stored.
// Implements the rest.TokenSource interface.
func (s *TokenStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.loadLocked()
	if err != nil {
		return ""
	}
	return sess.Token
}

// UserID returns the stored viewer id, or 0 if none is stored.
func (s *TokenStore) UserID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.loadLocked()
	if err != nil {
		return 0
	}
	return sess.UserID
}

// Valid reports whether a token is stored and not past its expiry claim.
// The token is inspected, not verified: the signing key belongs to the
// server, the client only needs to know when to stop presenting it.
// Tokens without an exp claim are treated as valid.
func (s *TokenStore) Valid() bool {
	tok := s.Token()
	if tok == "" {
		return false
	}
	exp, err := tokenExpiry(tok)
	if err != nil {
		// Opaque (non-JWT) tokens are accepted as-is.
		return true
	}
	if exp.IsZero() {
		return true
	}
	return time.Now().Before(exp)
}

func tokenExpiry(raw string) (time.Time, error) {
	var claims jwt.RegisteredClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, &claims); err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}
