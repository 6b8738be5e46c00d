// Package auth answers "who is signed in". It does not implement a login flow:
// an access token obtained elsewhere is stored in a session file and read back here.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for tokens that cannot be parsed or verified.
var ErrInvalidToken = errors.New("invalid access token")

// User is the signed-in user.
type User struct {
	ID        string
	Email     string
	ExpiresAt time.Time
}

// Identity reports the current user. A nil User with a nil error means nobody is
// signed in.
type Identity interface {
	CurrentUser(ctx context.Context) (*User, error)
}

// StaticIdentity always reports the same user. A nil User means signed out.
type StaticIdentity struct {
	User *User
}

// CurrentUser implements Identity.
func (s StaticIdentity) CurrentUser(context.Context) (*User, error) {
	if s.User == nil || s.User.ID == "" {
		return nil, nil
	}
	u := *s.User
	return &u, nil
}

// tokenClaims is the internal claims type used for JWT parsing.
type tokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// TokenIdentity reads a JWT access token from a session file. The token's sub
// claim is the user id.
//
// With a secret, the HS256 signature is verified. Without one the token is parsed
// unverified, which is enough to scope requests since the remote enforces access
// itself.
type TokenIdentity struct {
	Path   string
	Secret []byte
	Now    func() time.Time
}

// NewTokenIdentity creates a TokenIdentity for the session file at path.
func NewTokenIdentity(path, secret string) *TokenIdentity {
	t := &TokenIdentity{Path: path, Now: time.Now}
	if secret != "" {
		t.Secret = []byte(secret)
	}
	return t
}

// CurrentUser implements Identity. A missing session file or an expired token
// means nobody is signed in.
func (t *TokenIdentity) CurrentUser(ctx context.Context) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(t.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return nil, nil
	}

	u, err := ParseToken(token, t.Secret, t.now())
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, nil
	}
	return u, err
}

func (t *TokenIdentity) now() time.Time {
	if t.Now == nil {
		return time.Now()
	}
	return t.Now()
}

// ParseToken extracts the user from token as of now. Expired tokens return an
// error wrapping jwt.ErrTokenExpired.
func ParseToken(token string, secret []byte, now time.Time) (*User, error) {
	var claims tokenClaims
	if len(secret) > 0 {
		_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
			return secret, nil
		},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	} else {
		if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: sub claim is required", ErrInvalidToken)
	}

	u := &User{ID: claims.Subject, Email: claims.Email}
	if claims.ExpiresAt != nil {
		u.ExpiresAt = claims.ExpiresAt.Time
		if !now.Before(u.ExpiresAt) {
			return nil, fmt.Errorf("%w: expired at %s", jwt.ErrTokenExpired, u.ExpiresAt.Format(time.RFC3339))
		}
	}
	return u, nil
}

// SaveToken writes token to the session file at path, readable only by the owner.
func SaveToken(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(strings.TrimSpace(token)+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// ClearToken removes the session file. A missing file is not an error.
func ClearToken(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}
