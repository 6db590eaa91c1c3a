package httpapi

import (
	"bufio"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// heartbeatInterval keeps idle SSE connections alive through proxies.
const heartbeatInterval = 15 * time.Second

// streamEvents serves the conversation's stage events as Server-Sent
// Events. The subscription lives as long as the client keeps reading;
// a write failure or a broker shutdown ends the stream.
func (s *Server) streamEvents(c *fiber.Ctx) error {
	conversationID := c.Params("id")

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		sub, cancel := s.broker.Subscribe(conversationID)
		defer cancel()

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case envelope, ok := <-sub:
				if !ok {
					return
				}
				data, err := json.Marshal(envelope)
				if err != nil {
					continue
				}
				if _, err := w.WriteString("event: " + envelope.Type + "\n"); err != nil {
					return
				}
				if _, err := w.WriteString("data: " + string(data) + "\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			case <-heartbeat.C:
				if _, err := w.WriteString(": heartbeat\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))

	return nil
}
