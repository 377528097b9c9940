package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DefaultChannel is the Redis pub/sub channel shared by all API instances.
const DefaultChannel = "sajilotantra:realtime"

type envelope struct {
	Room    string          `json:"room"`
	Message json.RawMessage `json:"message"`
}

// RedisBridge fans events out through Redis so that every instance delivers
// to the clients connected to it.
type RedisBridge struct {
	rdb     *redis.Client
	hub     *Hub
	channel string
}

// NewRedisBridge creates a bridge between rdb and the local hub.
func NewRedisBridge(rdb *redis.Client, hub *Hub, channel string) *RedisBridge {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBridge{rdb: rdb, hub: hub, channel: channel}
}

// PublishToUser implements Publisher.
func (b *RedisBridge) PublishToUser(ctx context.Context, userID, event string, payload interface{}) error {
	msg, err := Encode(event, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(envelope{Room: userID, Message: msg})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Run subscribes to the channel and forwards messages to the local hub until ctx is done.
// ready, if non-nil, is closed once the subscription is confirmed.
func (b *RedisBridge) Run(ctx context.Context, ready chan<- struct{}) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}
	if ready != nil {
		close(ready)
	}
	log.Info().Str("channel", b.channel).Msg("Subscribed to realtime channel")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
				log.Warn().Err(err).Msg("Discarding malformed realtime envelope")
				continue
			}
			if err := b.hub.SendToRoom(ctx, env.Room, env.Message); err != nil {
				return nil
			}
		}
	}
}
