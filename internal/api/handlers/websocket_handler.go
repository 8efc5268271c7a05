package handlers

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	ws "github.com/isdelr/tasks-be/internal/websocket"
	"github.com/rs/zerolog/hlog"
)

// WebSocketHandler upgrades HTTP connections to a live task feed for the
// authenticated owner.
type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocketHandler. Browsers may only
// connect from allowedOrigins; clients sending no Origin are accepted.
func NewWebSocketHandler(hub *ws.Hub, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// Serve handles the WebSocket connection request.
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}

	client := ws.NewClient(h.hub, conn, owner(r))
	if !h.hub.Join(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go func() {
		client.ReadPump(h.handleIncomingWSMessage)
		h.hub.Leave(client)
	}()
}

// handleIncomingWSMessage processes messages received from a websocket client.
// The feed is server-push; clients may only ping.
func (h *WebSocketHandler) handleIncomingWSMessage(client *ws.Client, message []byte) {
	var msg ws.Message
	if err := json.Unmarshal(message, &msg); err != nil {
		h.hub.Reply(client, ws.NewErrorMessage("Invalid message"))
		return
	}

	switch msg.Action {
	case ws.ActionPing:
		h.hub.Reply(client, ws.NewPongMessage())
	default:
		h.hub.Reply(client, ws.NewErrorMessage("Unknown action: "+msg.Action))
	}
}

