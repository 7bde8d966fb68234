/*
Package identity resolves bearer tokens into stored users.

A token is accepted only when it parses, has not expired and names a user that still
exists; display name and color always come from storage, never from the token claims.
*/
package identity

import (
	"context"
	"errors"

	"duochat/internal/app/user"
	"duochat/internal/pkg/auth/jwt"
	"duochat/internal/pkg/errs"
	"duochat/internal/pkg/logx"
)

// UserFinder is the storage lookup the verifier needs.
type UserFinder interface {
	FindUser(ctx context.Context, id string) (user.User, error)
}

// Verifier checks tokens signed with a single HMAC secret.
type Verifier struct {
	secret string
	users  UserFinder
}

// NewVerifier returns a Verifier that validates tokens with secret and loads users from users.
func NewVerifier(secret string, users UserFinder) *Verifier {
	return &Verifier{secret: secret, users: users}
}

// VerifyToken returns the user the token identifies. Invalid tokens and unknown users yield
// ErrUnauthorized; storage failures yield ErrStorageUnavailable.
func (v *Verifier) VerifyToken(ctx context.Context, token string) (user.User, error) {
	if token == "" {
		return user.User{}, errs.NewError(errs.ErrUnauthorized)
	}

	payload, err := jwt.ParseToken(token, v.secret)
	if err != nil {
		return user.User{}, errs.Wrap(errs.ErrUnauthorized, err)
	}

	u, err := v.users.FindUser(ctx, payload.ID)
	if errors.Is(err, user.ErrNotFound) {
		logx.Warn("Token names an unknown user", "user_id", payload.ID)
		return user.User{}, errs.NewError(errs.ErrUnauthorized)
	}
	if err != nil {
		return user.User{}, errs.Wrap(errs.ErrStorageUnavailable, err)
	}

	return u, nil
}
