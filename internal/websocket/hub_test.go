package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func fakeClient(hub *Hub, userID string, buffer int) *Client {
	return &Client{hub: hub, Send: make(chan []byte, buffer), UserID: userID}
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestPublishReachesOnlyTheUsersRoom(t *testing.T) {
	hub, _ := startHub(t)
	alice1 := fakeClient(hub, "alice", 4)
	alice2 := fakeClient(hub, "alice", 4)
	bob := fakeClient(hub, "bob", 4)
	hub.Join(alice1)
	hub.Join(alice2)
	hub.Join(bob)

	require.NoError(t, hub.PublishToUser(context.Background(), "alice", EventNotification, map[string]string{"title": "Post Liked"}))

	for _, c := range []*Client{alice1, alice2} {
		var msg Message
		require.NoError(t, json.Unmarshal(receive(t, c), &msg))
		assert.Equal(t, EventNotification, msg.Event)
		assert.Equal(t, "Post Liked", msg.Payload.(map[string]interface{})["title"])
	}

	// Bob's channel stays empty; a follow-up message to bob arrives first.
	require.NoError(t, hub.PublishToUser(context.Background(), "bob", "ping", nil))
	var msg Message
	require.NoError(t, json.Unmarshal(receive(t, bob), &msg))
	assert.Equal(t, "ping", msg.Event)
}

func TestLeaveClosesSendChannel(t *testing.T) {
	hub, _ := startHub(t)
	c := fakeClient(hub, "alice", 1)
	hub.Join(c)
	hub.Leave(c)

	select {
	case _, ok := <-c.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	hub, _ := startHub(t)
	slow := fakeClient(hub, "alice", 1)
	marker := fakeClient(hub, "marker", 1)
	hub.Join(slow)
	hub.Join(marker)

	ctx := context.Background()
	require.NoError(t, hub.SendToRoom(ctx, "alice", []byte("one")))
	require.NoError(t, hub.SendToRoom(ctx, "alice", []byte("two")))
	// Deliveries are processed in order, so once the marker arrives both
	// messages for alice have been handled.
	require.NoError(t, hub.SendToRoom(ctx, "marker", []byte("sync")))
	receive(t, marker)

	assert.Equal(t, []byte("one"), receive(t, slow))
	select {
	case _, ok := <-slow.Send:
		assert.False(t, ok, "slow client should have been disconnected")
	case <-time.After(time.Second):
		t.Fatal("slow client not dropped")
	}
}

func TestPublishAfterStop(t *testing.T) {
	hub, cancel := startHub(t)
	c := fakeClient(hub, "alice", 1)
	hub.Join(c)
	cancel()

	<-hub.done
	assert.ErrorIs(t, hub.SendToRoom(context.Background(), "alice", []byte("x")), ErrHubStopped)
	hub.Leave(c) // must not block
}
