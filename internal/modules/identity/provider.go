// README: Identity service contract (sign-up, sign-in, token verification) and its errors.
package identity

import (
	"context"

	"newber/internal/apperr"
	"newber/internal/types"
)

// RoleClaim is the custom token claim carrying the user's role.
const RoleClaim = "role"

type Credentials struct {
	Email    string
	Password string
}

type Session struct {
	UID   types.ID
	Token string
}

// Token holds the verified token data used by downstream middleware.
type Token struct {
	UID    string
	Claims map[string]interface{}
}

// TokenVerifier verifies a raw ID token string and returns token data.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*Token, error)
}

type Provider interface {
	TokenVerifier
	SignUp(ctx context.Context, c Credentials, displayName string) (types.ID, error)
	SignIn(ctx context.Context, c Credentials) (Session, error)
	UpdateEmail(ctx context.Context, uid types.ID, email string) error
	SetRole(ctx context.Context, uid types.ID, role string) error
	// SignOut invalidates every session of uid.
	SignOut(ctx context.Context, uid types.ID) error
	// DeleteAccount removes uid and its sessions. Deleting a missing account is not an error.
	DeleteAccount(ctx context.Context, uid types.ID) error
}

var (
	ErrEmailTaken         = apperr.Auth("email address is already in use", nil)
	ErrInvalidCredentials = apperr.Auth("invalid email or password", nil)
	ErrInvalidToken       = apperr.Auth("invalid or expired token", nil)
)
