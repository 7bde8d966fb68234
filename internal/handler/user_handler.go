package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"duochat/internal/app/user"
	"duochat/internal/pkg/errs"
	"duochat/internal/pkg/logx"
	"duochat/internal/pkg/req"
	"duochat/internal/pkg/resp"
)

type UpdateProfileInput struct {
	Name  string `json:"name" validate:"required,max=50"`
	Color string `json:"color"`
}

// HandleGetUserProfile returns the caller's profile.
func HandleGetUserProfile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me, err := deps.authenticate(r)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"user": me})
	}
}

// HandleUpdateUserProfile changes the caller's display name and, when given, color.
// Messages already sent keep the color they were sent with.
func HandleUpdateUserProfile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me, err := deps.authenticate(r)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		var input UpdateProfileInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		name := strings.TrimSpace(input.Name)
		if name == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		color := me.Color
		if input.Color != "" {
			if !user.ValidColor(input.Color) {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidColor))
				return
			}
			color = user.NormalizeColor(input.Color)
		}

		updated, err := deps.Store.UpdateProfile(r.Context(), me.ID, name, color)
		if errors.Is(err, user.ErrNotFound) {
			resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
			return
		}
		if err != nil {
			logx.Error(err, "update_profile: store update failed", "user_id", me.ID)
			resp.RespondError(w, r, errs.Wrap(errs.ErrStorageUnavailable, err))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"user": updated})
	}
}

// HandleListUsers returns every registered user.
func HandleListUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := deps.authenticate(r); err != nil {
			resp.RespondError(w, r, err)
			return
		}

		users, err := deps.Store.ListUsers(r.Context())
		if err != nil {
			logx.Error(err, "list_users: query failed")
			resp.RespondError(w, r, errs.Wrap(errs.ErrStorageUnavailable, err))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"users": users})
	}
}

// HandleGetUser returns the public profile of the user named by the id path parameter.
func HandleGetUser(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := deps.authenticate(r); err != nil {
			resp.RespondError(w, r, err)
			return
		}

		id := chi.URLParam(r, "id")
		found, err := deps.Store.FindUser(r.Context(), id)
		if errors.Is(err, user.ErrNotFound) {
			resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
			return
		}
		if err != nil {
			logx.Error(err, "get_user: store lookup failed", "user_id", id)
			resp.RespondError(w, r, errs.Wrap(errs.ErrStorageUnavailable, err))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"user": found})
	}
}

// HandleListOnlineUsers returns the profiles of users with at least one live connection.
func HandleListOnlineUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := deps.authenticate(r); err != nil {
			resp.RespondError(w, r, err)
			return
		}

		users, err := deps.Hub.OnlineUsers(r.Context())
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"users": users})
	}
}
