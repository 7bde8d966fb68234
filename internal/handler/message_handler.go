package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"duochat/internal/pkg/errs"
	"duochat/internal/pkg/req"
	"duochat/internal/pkg/resp"
)

type SendMessageInput struct {
	Content     string `json:"content"`
	ReceiverID  string `json:"receiverId" validate:"required"`
	SenderColor string `json:"senderColor"`
}

// HandleSendMessage sends a message through the router, so live channels of both
// participants receive it exactly as if it had been sent over a websocket.
func HandleSendMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me, err := deps.authenticate(r)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		var input SendMessageInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		saved, err := deps.Hub.Router().Send(r.Context(), nil, me.ID, input.ReceiverID, input.Content, input.SenderColor)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondJSON(w, r, http.StatusCreated, resp.JSONResponse{Code: 0, Message: "success", Data: saved})
	}
}

// HandleGetConversation returns the caller's conversation with otherUserId, oldest first.
func HandleGetConversation(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me, err := deps.authenticate(r)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		otherUserID := chi.URLParam(r, "otherUserId")
		if otherUserID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		messages, err := deps.Hub.Conversations().GetConversation(r.Context(), me.ID, otherUserID)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"messages": messages})
	}
}

// HandleGetUnread returns the caller's unread messages, newest first.
func HandleGetUnread(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me, err := deps.authenticate(r)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		messages, err := deps.Hub.Conversations().GetUnreadForUser(r.Context(), me.ID)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"messages": messages})
	}
}

// HandleGetReceived returns every message addressed to the caller, read or not, newest first.
func HandleGetReceived(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me, err := deps.authenticate(r)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		messages, err := deps.Hub.Conversations().GetReceivedForUser(r.Context(), me.ID)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"messages": messages})
	}
}

// HandleMarkRead marks a message read; only its receiver may do so.
func HandleMarkRead(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me, err := deps.authenticate(r)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		updated, err := deps.Hub.Conversations().MarkRead(r.Context(), chi.URLParam(r, "id"), me.ID)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, updated)
	}
}
