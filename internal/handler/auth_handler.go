/*
Package handler provides the HTTP handlers and routing for the duochat server.

This file handles account registration and login.
*/
package handler

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"duochat/internal/app/db"
	"duochat/internal/app/user"
	"duochat/internal/pkg/auth/jwt"
	"duochat/internal/pkg/errs"
	"duochat/internal/pkg/logx"
	"duochat/internal/pkg/randx"
	"duochat/internal/pkg/req"
	"duochat/internal/pkg/resp"
)

const (
	minPasswordLength = 6

	// bcrypt ignores input past 72 bytes.
	maxPasswordBytes = 72
)

type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"required,max=50"`
	Password string `json:"password"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token string    `json:"token"`
	User  user.User `json:"user"`
}

// HandleRegister creates an account with a random profile color and signs it in.
func HandleRegister(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if payload := jwt.GetPayloadFromContext(r); payload != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAlreadyLoggedIn))
			return
		}

		var input RegisterInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		name := strings.TrimSpace(input.Name)
		if name == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if len(input.Password) < minPasswordLength || len(input.Password) > maxPasswordBytes {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidPassword))
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			logx.Error(err, "register: password hashing failed")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		color, err := randx.ProfileColor()
		if err != nil {
			logx.Warn("register: falling back to default color", "error", err.Error())
			color = user.DefaultColor
		}

		account, err := deps.Store.CreateAccount(r.Context(), input.Email, name, string(hashedPassword), color)
		if err != nil {
			if db.IsUniqueViolation(err) {
				logx.Warn("registration conflict: email already exists")
				resp.RespondError(w, r, errs.NewError(errs.ErrUserAlreadyExists))
				return
			}

			logx.Error(err, "failed to create user in database")
			resp.RespondError(w, r, errs.Wrap(errs.ErrStorageUnavailable, err))
			return
		}

		respondWithToken(w, r, deps, account.User)
	}
}

// HandleLogin verifies credentials and issues a token.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if payload := jwt.GetPayloadFromContext(r); payload != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAlreadyLoggedIn))
			return
		}

		var input LoginInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		account, err := deps.Store.FindAccountByEmail(r.Context(), input.Email)
		if errors.Is(err, user.ErrNotFound) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}
		if err != nil {
			logx.Error(err, "login: account lookup failed")
			resp.RespondError(w, r, errs.Wrap(errs.ErrStorageUnavailable, err))
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(input.Password)); err != nil {
			logx.Warn("login: password mismatch", "user_id", account.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		respondWithToken(w, r, deps, account.User)
	}
}

func respondWithToken(w http.ResponseWriter, r *http.Request, deps *AppDeps, u user.User) {
	token, err := jwt.GenerateToken(&jwt.Payload{ID: u.ID, Name: u.Name}, deps.Config.JWTSecret, jwt.UserIdentityExpiration)
	if err != nil {
		logx.Error(err, "jwt generation failed", "user_id", u.ID)
		resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
		return
	}

	resp.RespondSuccess(w, r, AuthResponse{Token: token, User: u})
}
