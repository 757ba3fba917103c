package account

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testStore(t *testing.T) *TokenStore {
	t.Helper()
	return NewTokenStore(filepath.Join(t.TempDir(), "token.json"))
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: "9"}
	if !exp.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(exp)
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestSaveAndLoadSession(t *testing.T) {
	s := testStore(t)

	if _, err := s.Load(); !errors.Is(err, ErrNoToken) {
		t.Fatalf("Load() error = %v, want ErrNoToken", err)
	}

	sess := &Session{Token: "abc", UserID: 9, Username: "ada"}
	if err := s.Save(sess); err != nil {
		t.Fatal(err)
	}

	// A fresh store reading the same file sees the saved session.
	s2 := NewTokenStore(s.path)
	loaded, err := s2.Load()
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Token != "abc" || loaded.UserID != 9 || loaded.Username != "ada" {
		t.Errorf("loaded = %+v, want token=abc user=9 username=ada", loaded)
	}
	if s2.Token() != "abc" {
		t.Errorf("Token() = %q, want abc", s2.Token())
	}
	if s2.UserID() != 9 {
		t.Errorf("UserID() = %d, want 9", s2.UserID())
	}
}

func TestClear(t *testing.T) {
	s := testStore(t)
	if err := s.Save(&Session{Token: "abc"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	if s.Token() != "" {
		t.Errorf("Token() after Clear = %q, want empty", s.Token())
	}
	// Clearing twice is fine.
	if err := s.Clear(); err != nil {
		t.Errorf("second Clear() error = %v", err)
	}
}

func TestValidExpiredJWT(t *testing.T) {
	s := testStore(t)
	if err := s.Save(&Session{Token: signedToken(t, time.Now().Add(-time.Hour))}); err != nil {
		t.Fatal(err)
	}
	if s.Valid() {
		t.Error("Valid() = true for expired token")
	}
}

func TestValidLiveJWT(t *testing.T) {
	s := testStore(t)
	if err := s.Save(&Session{Token: signedToken(t, time.Now().Add(time.Hour))}); err != nil {
		t.Fatal(err)
	}
	if !s.Valid() {
		t.Error("Valid() = false for unexpired token")
	}
}

func TestValidOpaqueToken(t *testing.T) {
	s := testStore(t)
	if err := s.Save(&Session{Token: "not-a-jwt"}); err != nil {
		t.Fatal(err)
	}
	if !s.Valid() {
		t.Error("Valid() = false for opaque token; only JWT expiry should invalidate")
	}
}

func TestValidNoToken(t *testing.T) {
	s := testStore(t)
	if s.Valid() {
		t.Error("Valid() = true with no stored token")
	}
}
