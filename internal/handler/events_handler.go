package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/markwise-app/markwise-api/internal/service"
)

// EventsHandler streams evaluation lifecycle events over a websocket so
// clients can watch long-running grading runs finish.
type EventsHandler struct {
	events service.EvaluationEvents
	logger zerolog.Logger
}

// NewEventsHandler creates an events handler instance.
func NewEventsHandler(events service.EvaluationEvents, logger zerolog.Logger) *EventsHandler {
	return &EventsHandler{
		events: events,
		logger: logger.With().Str("component", "events_handler").Logger(),
	}
}

// Register binds the websocket route under the provided router group.
func (h *EventsHandler) Register(router fiber.Router) {
	router.Use("/events", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/events", websocket.New(h.handleConnection))
}

func (h *EventsHandler) handleConnection(conn *websocket.Conn) {
	events, cancel := h.events.Subscribe()
	defer cancel()

	h.logger.Info().Msg("events websocket connected")
	defer h.logger.Info().Msg("events websocket disconnected")

	// Drain the read side so close frames are processed; clients never
	// send application data on this stream.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Debug().Err(err).Msg("events websocket write failed")
				return
			}
		case <-done:
			return
		}
	}
}
