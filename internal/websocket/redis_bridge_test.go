package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisBridgeFansOutToLocalHub(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	hub, _ := startHub(t)
	c := fakeClient(hub, "alice", 4)
	hub.Join(c)

	bridge := NewRedisBridge(rdb, hub, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan struct{})
	errc := make(chan error, 1)
	go func() { errc <- bridge.Run(ctx, ready) }()

	select {
	case <-ready:
	case err := <-errc:
		t.Fatalf("bridge stopped early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not ready")
	}

	require.NoError(t, bridge.PublishToUser(ctx, "alice", EventNotification, map[string]string{"title": "New Comment"}))

	var msg Message
	require.NoError(t, json.Unmarshal(receive(t, c), &msg))
	assert.Equal(t, EventNotification, msg.Event)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not stop")
	}
}
