package websocket

import (
	"context"
	"errors"
)

// EventNotification is pushed to a user's room when a notification is created.
const EventNotification = "notification"

// ErrHubStopped is returned when publishing after shutdown.
var ErrHubStopped = errors.New("websocket hub stopped")

// Message defines the structure for websocket messages.
type Message struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// Publisher delivers real-time events to every connection a user has open.
// Delivery is best-effort: users without a live connection miss the event.
type Publisher interface {
	PublishToUser(ctx context.Context, userID, event string, payload interface{}) error
}
