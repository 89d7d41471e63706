package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/richxcame/truckroute/pkg/logger"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser origin policy is enforced by the CORS layer in front of the API.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeSession upgrades the request and attaches the connection to the
// session's room. The caller has already verified the session exists.
func ServeSession(c *gin.Context, hub *Hub, sessionID string) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("failed to upgrade websocket",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return
	}

	client := NewClient(uuid.New().String(), sessionID, conn, hub)
	hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
