package broker

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jb-8200/asdlc-coord/internal/config"
	"github.com/jb-8200/asdlc-coord/internal/kvstore"
	"github.com/jb-8200/asdlc-coord/internal/message"
)

func newTestClient(t *testing.T, identity string) (*Client, kvstore.Adapter) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("starting miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	adapter := kvstore.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	cfg := config.FromEnv("")
	return New(adapter, cfg, identity, zerolog.Nop()), adapter
}

// Scenario 1: publish then query.
func TestPublishThenQuery(t *testing.T) {
	ctx := context.Background()
	backend, _ := newTestClient(t, "backend")

	env, err := backend.Publish(ctx, message.TypeReadyForReview, "agent/P03-F02", "Ready for review", "backend", "orchestrator", true)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	results, err := backend.Query(ctx, message.Query{ToInstance: "orchestrator", PendingOnly: true})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Query returned %d results, want 1", len(results))
	}
	got := results[0]
	if got.From != "backend" || got.Type != message.TypeReadyForReview || got.Acknowledged || got.Payload.Subject != "agent/P03-F02" {
		t.Fatalf("Query result = %+v, want from=backend type=READY_FOR_REVIEW acknowledged=false subject=agent/P03-F02", got)
	}
	if got.ID != env.ID {
		t.Fatalf("Query result id = %s, want %s", got.ID, env.ID)
	}
}

// Scenario 2: acknowledge is idempotent.
func TestAcknowledgeIdempotent(t *testing.T) {
	ctx := context.Background()
	backend, _ := newTestClient(t, "backend")

	env, err := backend.Publish(ctx, message.TypeReadyForReview, "x", "y", "backend", "orchestrator", true)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	for i := 0; i < 2; i++ {
		ok, err := backend.Acknowledge(ctx, env.ID, "orchestrator", "ok")
		if err != nil {
			t.Fatalf("Acknowledge call %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("Acknowledge call %d returned false, want true", i)
		}
	}

	results, err := backend.Query(ctx, message.Query{ToInstance: "orchestrator", PendingOnly: true})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("Query(pending_only) after ack returned %d results, want 0", len(results))
	}

	got, ok, err := backend.Get(ctx, env.ID)
	if err != nil || !ok {
		t.Fatalf("Get = (_, %v, %v), want (_, true, nil)", ok, err)
	}
	if !got.Acknowledged || got.AckBy != "orchestrator" || got.AckComment != "ok" {
		t.Fatalf("Get after ack = %+v, want acknowledged=true ack_by=orchestrator ack_comment=ok", got)
	}
}

func TestAcknowledgeNotFound(t *testing.T) {
	ctx := context.Background()
	backend, _ := newTestClient(t, "backend")

	ok, err := backend.Acknowledge(ctx, "msg-deadbeef", "orchestrator", "")
	if err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if ok {
		t.Fatal("Acknowledge on unknown id returned true, want false")
	}
}

func TestPublishRejectsMismatchedIdentity(t *testing.T) {
	ctx := context.Background()
	backend, _ := newTestClient(t, "backend")

	_, err := backend.Publish(ctx, message.TypeGeneral, "x", "y", "frontend", "orchestrator", false)
	if err == nil {
		t.Fatal("Publish with from != client identity: want error, got nil")
	}
}

func TestPublishRejectsUnknownSender(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t, "unknown")

	_, err := c.Publish(ctx, message.TypeGeneral, "x", "y", "unknown", "orchestrator", false)
	if err == nil {
		t.Fatal("Publish with from=unknown: want error, got nil")
	}
}

// Scenario 5: staleness, inclusive at exactly the threshold.
func TestPresenceStaleness(t *testing.T) {
	ctx := context.Background()
	frontend, adapter := newTestClient(t, "frontend")

	if err := frontend.Register(ctx, "frontend", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}
	sixMinutesAgo := time.Now().UTC().Add(-6 * time.Minute).Unix()
	if err := adapter.HSet(ctx, config.FromEnv("").PresenceKey(), map[string]string{
		"frontend.last_heartbeat": itoa(sixMinutesAgo),
	}); err != nil {
		t.Fatalf("forcing stale heartbeat: %v", err)
	}

	presence, err := frontend.GetPresence(ctx, 5*time.Minute)
	if err != nil {
		t.Fatalf("GetPresence: %v", err)
	}
	p := presence["frontend"]
	if p.Active {
		t.Fatal("Active = true, want false for a 6-minute-old heartbeat")
	}
	if !p.Stale {
		t.Fatal("Stale = false, want true for a 6-minute-old heartbeat")
	}
	if p.SecondsSinceHeartbeat < 350 || p.SecondsSinceHeartbeat > 370 {
		t.Fatalf("SecondsSinceHeartbeat = %v, want ~360", p.SecondsSinceHeartbeat)
	}

	if err := frontend.Heartbeat(ctx, "frontend"); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	presence, err = frontend.GetPresence(ctx, 5*time.Minute)
	if err != nil {
		t.Fatalf("GetPresence: %v", err)
	}
	if !presence["frontend"].Active {
		t.Fatal("Active = false after fresh heartbeat, want true")
	}
}

func TestPresenceStalenessInclusiveBoundary(t *testing.T) {
	now := time.Now().UTC()
	exactlyThreshold := now.Add(-5 * time.Minute)
	if !message.IsStale(&exactlyThreshold, now, 5*time.Minute) {
		t.Fatal("IsStale at exactly the threshold = false, want true (inclusive)")
	}
}

// Scenario 6: offline fan-out.
func TestOfflineFanOut(t *testing.T) {
	ctx := context.Background()
	backend, _ := newTestClient(t, "backend")

	env, err := backend.Publish(ctx, message.TypeGeneral, "x", "y", "backend", "frontend", false)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	notifications, err := backend.PopNotifications(ctx, "frontend", 100)
	if err != nil {
		t.Fatalf("PopNotifications: %v", err)
	}
	if len(notifications) != 1 || notifications[0].MessageID != env.ID {
		t.Fatalf("PopNotifications = %+v, want one entry with message_id %s", notifications, env.ID)
	}

	notifications, err = backend.PopNotifications(ctx, "frontend", 100)
	if err != nil {
		t.Fatalf("second PopNotifications: %v", err)
	}
	if len(notifications) != 0 {
		t.Fatalf("second PopNotifications = %+v, want empty", notifications)
	}
}

func TestPopNotificationsZeroLimit(t *testing.T) {
	ctx := context.Background()
	backend, _ := newTestClient(t, "backend")
	if _, err := backend.Publish(ctx, message.TypeGeneral, "x", "y", "backend", "frontend", false); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	notifications, err := backend.PopNotifications(ctx, "frontend", 0)
	if err != nil {
		t.Fatalf("PopNotifications(limit=0): %v", err)
	}
	if len(notifications) != 0 {
		t.Fatalf("PopNotifications(limit=0) = %+v, want empty", notifications)
	}

	remaining, err := backend.PopNotifications(ctx, "frontend", 100)
	if err != nil {
		t.Fatalf("PopNotifications after zero-limit call: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatal("PopNotifications(limit=0) touched the list, want untouched")
	}
}

func TestEmptyQueryReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t, "backend")

	results, err := c.Query(ctx, message.Query{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("Query on empty broker = %v, want []", results)
	}
}

func TestBroadcastFanOutAddsToEveryKnownInbox(t *testing.T) {
	ctx := context.Background()
	backend, _ := newTestClient(t, "backend")

	if err := backend.Register(ctx, "backend", ""); err != nil {
		t.Fatalf("Register backend: %v", err)
	}
	if err := backend.Register(ctx, "frontend", ""); err != nil {
		t.Fatalf("Register frontend: %v", err)
	}

	env, err := backend.Publish(ctx, message.TypeGeneral, "x", "y", "backend", "all", false)
	if err != nil {
		t.Fatalf("Publish to all: %v", err)
	}

	for _, inst := range []string{"backend", "frontend"} {
		results, err := backend.Query(ctx, message.Query{ToInstance: inst})
		if err != nil {
			t.Fatalf("Query(to=%s): %v", inst, err)
		}
		if len(results) != 1 || results[0].ID != env.ID {
			t.Fatalf("Query(to=%s) = %+v, want the broadcast envelope", inst, results)
		}
	}
}

func TestConcurrentPublishDistinctIDs(t *testing.T) {
	ctx := context.Background()
	backend, _ := newTestClient(t, "backend")

	const n = 20
	ids := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			env, err := backend.Publish(ctx, message.TypeHeartbeat, "x", "y", "backend", "orchestrator", false)
			ids[i], errs[i] = env.ID, err
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i, id := range ids {
		if errs[i] != nil {
			t.Fatalf("Publish #%d: %v", i, errs[i])
		}
		if seen[id] {
			t.Fatalf("duplicate message id %s", id)
		}
		seen[id] = true
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

func TestSubscribeReceivesLivePublish(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	orchestrator, adapter := newTestClient(t, "orchestrator")
	backend := New(adapter, config.FromEnv(""), "backend", zerolog.Nop())

	sub, err := orchestrator.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	env, err := backend.Publish(ctx, message.TypeGeneral, "x", "y", "backend", "orchestrator", false)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var got message.NotificationEvent
		if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
			t.Fatalf("unmarshal live payload: %v", err)
		}
		if got.MessageID != env.ID {
			t.Fatalf("live notification message_id = %s, want %s", got.MessageID, env.ID)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for live notification")
	}
}

func TestSubscribeReceivesBroadcast(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	frontend, adapter := newTestClient(t, "frontend")
	orchestrator := New(adapter, config.FromEnv(""), "orchestrator", zerolog.Nop())

	sub, err := frontend.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	env, err := orchestrator.Publish(ctx, message.TypeGeneral, "x", "y", "orchestrator", "all", false)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var got message.NotificationEvent
		if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
			t.Fatalf("unmarshal live payload: %v", err)
		}
		if got.MessageID != env.ID {
			t.Fatalf("live notification message_id = %s, want %s", got.MessageID, env.ID)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for broadcast live notification")
	}
}
