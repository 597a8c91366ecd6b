// Package auth resolves bearer tokens to principals.
//
// THREE KINDS OF CREDENTIAL:
//   - the admin token, one shared secret from configuration
//   - the scheduler secret (CRON_SECRET), used by the periodic sync caller
//   - per-user tokens, random strings stored on the user row
//
// The two configured secrets are compared in constant time so response timing
// says nothing about how much of a guess was right. User tokens are looked up
// by equality on a UNIQUE column.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/sakif/gridiron-picks/internal/apperror"
	"github.com/sakif/gridiron-picks/internal/model"
)

// tokenBytes is the entropy of a user token before encoding (256 bits).
const tokenBytes = 32

// GenerateToken returns a new user token: 32 random bytes, base64url without padding.
func GenerateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: reading random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

type Kind string

const (
	KindAdmin     Kind = "admin"
	KindScheduler Kind = "scheduler"
	KindUser      Kind = "user"
)

// Principal is who a request is acting as. It lives in the request context.
type Principal struct {
	Kind        Kind   `json:"kind"`
	UserID      int64  `json:"userId,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

func (p *Principal) IsAdmin() bool {
	return p.Kind == KindAdmin
}

// CanActFor reports whether p may read or write data owned by userID.
// Admins may act for anyone, users only for themselves, the scheduler for no one.
func (p *Principal) CanActFor(userID int64) bool {
	switch p.Kind {
	case KindAdmin:
		return true
	case KindUser:
		return p.UserID == userID
	default:
		return false
	}
}

// UserLookup is the slice of the user store the authenticator needs.
type UserLookup interface {
	GetUserByToken(ctx context.Context, token string) (*model.User, error)
}

type Authenticator struct {
	adminToken string
	cronSecret string
	users      UserLookup
}

// NewAuthenticator builds an Authenticator. An empty adminToken or cronSecret
// disables that kind of credential entirely.
func NewAuthenticator(adminToken, cronSecret string, users UserLookup) *Authenticator {
	return &Authenticator{
		adminToken: adminToken,
		cronSecret: cronSecret,
		users:      users,
	}
}

// Authenticate resolves an Authorization header value to a principal.
// The admin token is checked first, then the scheduler secret, then user tokens.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (*Principal, error) {
	token, err := bearerToken(header)
	if err != nil {
		return nil, err
	}

	if secretEqual(token, a.adminToken) {
		return &Principal{Kind: KindAdmin}, nil
	}
	if secretEqual(token, a.cronSecret) {
		return &Principal{Kind: KindScheduler}, nil
	}

	user, err := a.users.GetUserByToken(ctx, token)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("invalid token")
		}
		return nil, fmt.Errorf("auth: looking up token: %w", err)
	}
	return &Principal{Kind: KindUser, UserID: user.ID, DisplayName: user.DisplayName}, nil
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", apperror.Unauthorized("missing bearer token")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", apperror.Unauthorized("malformed authorization header")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", apperror.Unauthorized("missing bearer token")
	}
	return token, nil
}

// secretEqual compares a presented token with a configured secret in constant
// time. An unset secret never matches.
func secretEqual(presented, secret string) bool {
	if secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) == 1
}
