// README: Firebase Auth identity provider; password sign-in goes through Identity Toolkit.
package identity

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"

	"newber/internal/apperr"
	"newber/internal/types"
)

// Firebase is the production Provider backed by the Firebase Admin SDK.
type Firebase struct {
	client  *auth.Client
	toolkit *identitytoolkit.Service
}

// NewFirebase needs the project's web API key because the Admin SDK cannot check passwords.
func NewFirebase(ctx context.Context, app *firebase.App, apiKey string) (*Firebase, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase app.Auth: %w", err)
	}
	toolkit, err := identitytoolkit.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("identitytoolkit.NewService: %w", err)
	}
	return &Firebase{client: client, toolkit: toolkit}, nil
}

func (f *Firebase) SignUp(ctx context.Context, c Credentials, displayName string) (types.ID, error) {
	params := (&auth.UserToCreate{}).
		Email(c.Email).
		Password(c.Password).
		DisplayName(displayName)
	u, err := f.client.CreateUser(ctx, params)
	if auth.IsEmailAlreadyExists(err) {
		return "", ErrEmailTaken
	}
	if err != nil {
		return "", apperr.Auth("could not create account", err)
	}
	return types.ID(u.UID), nil
}

func (f *Firebase) SignIn(ctx context.Context, c Credentials) (Session, error) {
	resp, err := f.toolkit.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             c.Email,
		Password:          c.Password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return Session{}, apperr.Auth(ErrInvalidCredentials.Msg, err)
	}
	return Session{UID: types.ID(resp.LocalId), Token: resp.IdToken}, nil
}

func (f *Firebase) VerifyIDToken(ctx context.Context, idToken string) (*Token, error) {
	t, err := f.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, apperr.Auth(ErrInvalidToken.Msg, err)
	}
	return &Token{UID: t.UID, Claims: t.Claims}, nil
}

func (f *Firebase) UpdateEmail(ctx context.Context, uid types.ID, email string) error {
	_, err := f.client.UpdateUser(ctx, string(uid), (&auth.UserToUpdate{}).Email(email))
	if auth.IsEmailAlreadyExists(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return apperr.Auth("email could not be updated", err)
	}
	return nil
}

func (f *Firebase) SetRole(ctx context.Context, uid types.ID, role string) error {
	if err := f.client.SetCustomUserClaims(ctx, string(uid), map[string]interface{}{RoleClaim: role}); err != nil {
		return apperr.Auth("could not set account role", err)
	}
	return nil
}

func (f *Firebase) SignOut(ctx context.Context, uid types.ID) error {
	if err := f.client.RevokeRefreshTokens(ctx, string(uid)); err != nil {
		return apperr.Auth("sign out failed", err)
	}
	return nil
}

func (f *Firebase) DeleteAccount(ctx context.Context, uid types.ID) error {
	err := f.client.DeleteUser(ctx, string(uid))
	if err != nil && !auth.IsUserNotFound(err) {
		return apperr.Auth("could not delete account", err)
	}
	return nil
}
