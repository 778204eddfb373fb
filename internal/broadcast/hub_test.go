package broadcast_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/auctionhub/auction-core/internal/broadcast"
)

func TestHub_PublishDeliversToSubscriber(t *testing.T) {
	hub := broadcast.NewHub(zap.NewNop())
	go hub.Run()
	defer hub.Stop()

	client, unsubscribe := hub.Subscribe("s1")
	client.Start()
	defer unsubscribe()

	// Give the register channel a moment to be drained by Run's loop.
	time.Sleep(10 * time.Millisecond)

	hub.Publish("s1", broadcast.TypeLeaderboardUpdate, map[string]int{"rank": 1})

	select {
	case msg := <-client.Recv():
		assert.Contains(t, string(msg), broadcast.TypeLeaderboardUpdate)
	case <-time.After(time.Second):
		t.Fatal("expected a snapshot to be delivered")
	}
}

func TestHub_PublishIgnoresOtherSessions(t *testing.T) {
	hub := broadcast.NewHub(zap.NewNop())
	go hub.Run()
	defer hub.Stop()

	client, unsubscribe := hub.Subscribe("s1")
	client.Start()
	defer unsubscribe()
	time.Sleep(10 * time.Millisecond)

	hub.Publish("other-session", broadcast.TypeLeaderboardUpdate, map[string]int{"rank": 1})

	select {
	case <-client.Recv():
		t.Fatal("did not expect a snapshot for a different session")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_NotifyPushesProviderSnapshot(t *testing.T) {
	hub := broadcast.NewHub(zap.NewNop())
	hub.SetSnapshotProvider(func(_ context.Context, sessionID string) (interface{}, error) {
		return map[string]string{"session_id": sessionID, "top": "u1"}, nil
	})
	go hub.Run()
	defer hub.Stop()

	client, unsubscribe := hub.Subscribe("s1")
	client.Start()
	defer unsubscribe()
	time.Sleep(10 * time.Millisecond)

	hub.Notify("s1")

	select {
	case msg := <-client.Recv():
		assert.Contains(t, string(msg), `"top":"u1"`)
		assert.Contains(t, string(msg), broadcast.TypeLeaderboardUpdate)
	case <-time.After(time.Second):
		t.Fatal("expected the provider-built snapshot to be delivered")
	}
}

func TestHub_NotifyWithoutSubscribersIsNoOp(t *testing.T) {
	hub := broadcast.NewHub(zap.NewNop())
	hub.SetSnapshotProvider(func(_ context.Context, _ string) (interface{}, error) {
		t.Fatal("provider must not run when nobody is subscribed")
		return nil, nil
	})
	go hub.Run()
	defer hub.Stop()

	hub.Notify("s1")
	time.Sleep(20 * time.Millisecond)
}
