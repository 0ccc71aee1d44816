package server

import (
	"errors"

	"chirp/internal/middleware"
	"chirp/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebsocketHandler streams realtime events to the authenticated user.
// Inbound frames only refresh presence.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals("userID").(string)
		if userID == "" {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			reason := "connection rejected"
			if errors.Is(err, notifications.ErrServerFull) || errors.Is(err, notifications.ErrUserFull) {
				reason = err.Error()
			}
			middleware.Logger.Warn("websocket registration failed", "user_id", userID, "error", err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+reason+`"}`))
			_ = conn.Close()
			return
		}

		middleware.Logger.Debug("websocket connected", "user_id", userID)
		go client.WritePump()
		client.ReadPump()
	})
}
