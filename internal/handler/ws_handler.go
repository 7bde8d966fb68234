package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"duochat/internal/app/chat"
	"duochat/internal/pkg/errs"
	"duochat/internal/pkg/limiter"
	"duochat/internal/pkg/logx"
	"duochat/internal/pkg/resp"
)

// HandleWebSocket authenticates the caller, upgrades the connection and runs the client
// until it disconnects. Authentication happens before the upgrade, so a bad token gets a
// plain HTTP 401 and never touches the registry.
func HandleWebSocket(deps *AppDeps, upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := limiter.ClientIP(r)
		if !rateLimiter.Allow(ip) {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", logx.AnonymizeIP(ip))
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		me, err := deps.authenticate(r)
		if err != nil {
			logx.Info("WebSocket connection rejected: authentication failed.", "error", err.Error())
			resp.RespondError(w, r, err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := chat.NewClient(deps.Hub, conn, me)

		if err := deps.Hub.Connect(r.Context(), client); err != nil {
			logx.Warn("WebSocket connection rejected after upgrade", "user_id", me.ID, "error", err.Error())
			client.Reject(err)
			return
		}

		logx.Info("WebSocket connection established", "user_id", me.ID, "channel_id", client.ID())

		go client.WritePump()
		client.ReadPump()
	}
}
