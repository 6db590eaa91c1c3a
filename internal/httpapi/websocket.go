package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// websocketUpgrade gates the WS route to genuine upgrade requests.
func (s *Server) websocketUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// handleWebSocket pushes the conversation's stage events over a WebSocket.
// One-directional: the client only listens. The connection closes when the
// client goes away or the broker shuts down.
func (s *Server) handleWebSocket(c *websocket.Conn) {
	defer func() { _ = c.Close() }()

	conversationID := c.Params("id")
	sub, cancel := s.broker.Subscribe(conversationID)
	defer cancel()

	// Drain reads so close frames are processed; signals client departure.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case envelope, ok := <-sub:
			if !ok {
				return
			}
			if err := c.WriteJSON(envelope); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
