package server

import (
	"log/slog"

	"inkwell/internal/models"
	"inkwell/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebSocketUpgrade rejects plain HTTP requests to the realtime endpoint.
func (s *Server) WebSocketUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return models.RespondWithError(c, fiber.StatusUpgradeRequired,
			models.NewValidationError("WebSocket upgrade required"))
	}
	c.Locals("allowed", true)
	return c.Next()
}

// WebSocketHandler serves GET /api/ws. The connection joins its user's room
// only after it sends {"event":"register","userId":N} for the authenticated user.
func (s *Server) WebSocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, ok := conn.Locals("userID").(uint)
		if !ok || userID == 0 {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"error","message":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		client := notifications.NewClient(s.registry, conn, userID)
		slog.Info("websocket connected", slog.Uint64("user_id", uint64(userID)), slog.String("client_id", client.ID))

		go client.WritePump()
		client.ReadPump()

		slog.Info("websocket disconnected", slog.Uint64("user_id", uint64(userID)), slog.String("client_id", client.ID))
	})
}
