package handlers

import (
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"github.com/trilogue/trilogue-backend/internal/services"
)

// DiscussionEvents streams round progress events for one discussion over a
// websocket. The connection is read-only from the client's perspective;
// incoming frames are drained only to detect disconnects.
func DiscussionEvents(svc *services.Services) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		discussionID, _ := c.Locals("discussion_id").(string)
		if discussionID == "" {
			c.Close()
			return
		}

		events, cancel := svc.Events.Subscribe(discussionID)
		defer cancel()

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
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := c.WriteJSON(ev); err != nil {
					logrus.WithError(err).Debug("websocket write failed")
					return
				}
			case <-done:
				return
			}
		}
	}
}
