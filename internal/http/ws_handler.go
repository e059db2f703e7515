package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/example/roombook/internal/realtime"
)

// WSHandler upgrades authenticated requests to websocket connections and
// hands them to the realtime registry.
type WSHandler struct {
	registry  *realtime.Registry
	upgrader  websocket.Upgrader
	responder responder
	logger    *slog.Logger
	sendBuf   int
}

func NewWSHandler(registry *realtime.Registry, logger *slog.Logger) *WSHandler {
	return NewWSHandlerWithBuffer(registry, logger, 32)
}

// NewWSHandlerWithBuffer constructs a handler with an explicit per-client
// send buffer size. Events beyond the buffer are dropped for that client.
func NewWSHandlerWithBuffer(registry *realtime.Registry, logger *slog.Logger, sendBuf int) *WSHandler {
	base := defaultLogger(logger)
	if sendBuf <= 0 {
		sendBuf = 32
	}
	return &WSHandler{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		responder: newResponder(base),
		logger:    base,
		sendBuf:   sendBuf,
	}
}

func (h *WSHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "WSHandler", operation, attrs...)
}

// Connect upgrades the request and binds the connection to the
// authenticated principal. The session is registered server-side from the
// validated principal, so a client cannot claim another identity; the
// userRegistered message a client sends afterwards only refreshes its own
// entry.
func (h *WSHandler) Connect(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.registry == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok || principal.UserID == "" {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error to the client.
		h.log(r.Context(), "Connect").ErrorContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	client := realtime.NewClient(conn, h.sendBuf, h.logger)
	h.registry.Register(client, principal.UserID, principal.Role, principal.OrganizationID)

	h.log(r.Context(), "Connect", "user_id", principal.UserID).InfoContext(r.Context(), "websocket client connected")

	go client.WritePump()
	go client.ReadPump(h.registry)
}
