package handler

import (
	"net/http"

	"duochat/internal/app/chat"
	"duochat/internal/app/db"
	"duochat/internal/app/identity"
	"duochat/internal/app/user"
	"duochat/internal/configs"
	"duochat/internal/pkg/auth/jwt"
)

// AppDeps bundles what the HTTP handlers need.
type AppDeps struct {
	Hub      *chat.Hub
	Config   *configs.AppConfig
	Store    db.Store
	Identity *identity.Verifier
}

// authenticate resolves the request's bearer token to its stored user.
func (d *AppDeps) authenticate(r *http.Request) (user.User, error) {
	return d.Identity.VerifyToken(r.Context(), jwt.TokenFromRequest(r))
}
