package websocket

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"rideon-backend/internal/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The SPA is served from a different origin in development.
		return true
	},
}

// Handler upgrades the connection and registers it with the hub.
// Identity and role arrive as handshake parameters: either a signed
// token, or plain userId/userType query params. A connection that
// announces neither stays unregistered: it may ping but joins no
// channel.
func Handler(hub *Hub, jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("userId")
		userType := r.URL.Query().Get("userType")

		if token := r.URL.Query().Get("token"); token != "" {
			claims, err := middleware.ParseToken(token, jwtSecret)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			userID = claims.UserID
			userType = claims.UserType
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.logger.Warn("websocket upgrade failed", "error", err)
			return
		}

		client := NewClient(uuid.New().String(), userID, userType, conn, hub)
		hub.register <- client

		go client.WritePump()
		go client.ReadPump()

		hub.logger.Info("websocket connection established",
			"connection_id", client.ID, "user_id", userID, "user_type", userType)
	}
}
