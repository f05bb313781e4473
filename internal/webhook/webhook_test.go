package webhook_test

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"telegram-botapi-gateway/internal/client"
	"telegram-botapi-gateway/internal/tqueue"
	"telegram-botapi-gateway/internal/webhook"
)

func openQueue(t *testing.T) *tqueue.Store {
	t.Helper()
	store, err := tqueue.Open(filepath.Join(t.TempDir(), "tqueue.bbolt"))
	if err != nil {
		t.Fatalf("open tqueue: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestVerifiedFiresOnFirstSuccessfulDelivery(t *testing.T) {
	t.Parallel()

	var failing atomic.Bool
	failing.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := openQueue(t)
	const botID = "999:token"

	var verified, successes, errors atomic.Int32
	d := webhook.Start(webhook.Options{
		BotID:  botID,
		Target: client.WebhookTarget{URL: srv.URL, MaxConnections: 1},
		Events: client.WebhookEvents{
			Verified: func(string) { verified.Add(1) },
			Success:  func() { successes.Add(1) },
			Error:    func(int, string) { errors.Add(1) },
		},
		Queue: store,
	})
	defer d.Close()

	// Пустая очередь: подтверждать нечего.
	time.Sleep(200 * time.Millisecond)
	if verified.Load() != 0 {
		t.Fatal("verified before any delivery")
	}

	push := func() {
		t.Helper()
		if _, err := store.Push(botID, tqueue.Event{
			Kind: "message", QueueID: 1,
			Payload:  []byte(`{"message_id":1}`),
			ExpireAt: time.Now().Unix() + 3600,
		}); err != nil {
			t.Fatalf("push: %v", err)
		}
		d.Notify()
	}

	// Приёмник отвечает 500: доставки нет, подтверждения тоже.
	push()
	waitFor(t, "delivery error", func() bool { return errors.Load() > 0 })
	if verified.Load() != 0 {
		t.Fatal("verified while receiver is failing")
	}

	// Первый 2xx подтверждает установку.
	failing.Store(false)
	waitFor(t, "first delivery", func() bool { return successes.Load() >= 1 })
	if got := verified.Load(); got != 1 {
		t.Fatalf("verified = %d after first delivery, want 1", got)
	}

	// Повторные доставки подтверждение не дублируют.
	push()
	waitFor(t, "second delivery", func() bool { return successes.Load() >= 2 })
	if got := verified.Load(); got != 1 {
		t.Fatalf("verified = %d after repeat deliveries, want 1", got)
	}
}
