package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sajilotantra/sajilotantra-be/internal/metrics"
)

// delivery is a message addressed to every client in a room.
type delivery struct {
	room    string
	message []byte
}

// Hub maintains the set of active clients and routes messages to rooms.
// All map access happens on the Run goroutine.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// A map of user IDs to the set of connections that user has open.
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	deliver    chan delivery
	done       chan struct{}

	metrics *metrics.Metrics
}

// NewHub creates a new Hub.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan delivery, 64),
		done:       make(chan struct{}),
		metrics:    m,
	}
}

// Run starts the Hub's message processing loop. It returns when ctx is done,
// after closing every client's send channel.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			log.Info().Msg("Websocket hub stopped")
			return
		case client := <-h.register:
			h.clients[client] = true
			if client.UserID != "" {
				h.addToRoom(client, client.UserID)
			}
			h.metrics.ClientConnected(1)
			log.Info().Int("total_clients", len(h.clients)).Str("user_id", client.UserID).Msg("Client connected")
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				log.Info().Int("total_clients", len(h.clients)).Str("user_id", client.UserID).Msg("Client disconnected")
			}
		case d := <-h.deliver:
			h.broadcastTo(d.room, d.message)
		}
	}
}

// Join registers a client. It is a no-op once the hub has stopped.
func (h *Hub) Join(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Leave unregisters a client. It is a no-op once the hub has stopped.
func (h *Hub) Leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// SendToRoom queues message for every client in room.
func (h *Hub) SendToRoom(ctx context.Context, room string, message []byte) error {
	select {
	case h.deliver <- delivery{room: room, message: message}:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishToUser implements Publisher for a single-instance deployment.
func (h *Hub) PublishToUser(ctx context.Context, userID, event string, payload interface{}) error {
	msg, err := Encode(event, payload)
	if err != nil {
		return err
	}
	return h.SendToRoom(ctx, userID, msg)
}

func (h *Hub) broadcastTo(room string, message []byte) {
	subs, ok := h.rooms[room]
	if !ok || len(subs) == 0 {
		h.metrics.EventPublished("no_recipient")
		return
	}
	for client := range subs {
		select {
		case client.Send <- message:
			h.metrics.EventPublished("delivered")
		default:
			// Slow consumer; disconnect rather than block the hub.
			h.metrics.EventPublished("dropped")
			h.drop(client)
		}
	}
}

func (h *Hub) drop(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)
	h.removeFromRoom(client)
	h.metrics.ClientConnected(-1)
}

func (h *Hub) addToRoom(client *Client, room string) {
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true
}

func (h *Hub) removeFromRoom(client *Client) {
	if subs, ok := h.rooms[client.UserID]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.rooms, client.UserID)
		}
	}
}

// Encode builds the wire form of an event.
func Encode(event string, payload interface{}) ([]byte, error) {
	b, err := json.Marshal(Message{Event: event, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", event, err)
	}
	return b, nil
}
