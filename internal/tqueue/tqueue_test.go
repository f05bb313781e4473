package tqueue_test

import (
	"path/filepath"
	"testing"
	"time"

	"telegram-botapi-gateway/internal/tqueue"
)

func openStore(t *testing.T) *tqueue.Store {
	t.Helper()
	s, err := tqueue.Open(filepath.Join(t.TempDir(), "tqueue.bbolt"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPushGetOrder(t *testing.T) {
	t.Parallel()
	s := openStore(t)

	for i := 0; i < 3; i++ {
		id, err := s.Push("bot", tqueue.Event{Kind: "message", Payload: []byte{byte(i)}})
		if err != nil {
			t.Fatalf("Push: %v", err)
		}
		if id != uint64(i+1) {
			t.Fatalf("Push id = %d, want %d", id, i+1)
		}
	}

	events, err := s.Get("bot", 1, 10, 1<<20)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("Get returned %d events, want 3", len(events))
	}
	for i, ev := range events {
		if ev.ID != uint64(i+1) || ev.Payload[0] != byte(i) {
			t.Fatalf("event %d out of order: %+v", i, ev)
		}
	}

	// Чтение с середины.
	events, _ = s.Get("bot", 3, 10, 1<<20)
	if len(events) != 1 || events[0].ID != 3 {
		t.Fatalf("Get(from=3) = %+v, want single id 3", events)
	}
}

func TestGetLimits(t *testing.T) {
	t.Parallel()
	s := openStore(t)

	big := make([]byte, 100)
	for i := 0; i < 5; i++ {
		if _, err := s.Push("bot", tqueue.Event{Kind: "message", Payload: big}); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}

	events, _ := s.Get("bot", 1, 2, 1<<20)
	if len(events) != 2 {
		t.Fatalf("limit ignored: got %d events", len(events))
	}

	// Байтовый лимит мягкий: первое событие отдаётся даже при превышении.
	events, _ = s.Get("bot", 1, 10, 50)
	if len(events) != 1 {
		t.Fatalf("byte limit: got %d events, want 1", len(events))
	}
	events, _ = s.Get("bot", 1, 10, 150)
	if len(events) != 1 {
		t.Fatalf("byte limit 150: got %d events, want 1", len(events))
	}
}

func TestExpiredRemovedOnRead(t *testing.T) {
	t.Parallel()
	s := openStore(t)

	base := time.Now()
	s.SetClock(func() time.Time { return base })

	if _, err := s.Push("bot", tqueue.Event{Kind: "callback_query", ExpireAt: base.Unix() + 10}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if _, err := s.Push("bot", tqueue.Event{Kind: "message", ExpireAt: base.Unix() + 1000}); err != nil {
		t.Fatalf("Push: %v", err)
	}

	s.SetClock(func() time.Time { return base.Add(100 * time.Second) })
	events, err := s.Get("bot", 1, 10, 1<<20)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(events) != 1 || events[0].ID != 2 {
		t.Fatalf("Get after expiry = %+v, want single id 2", events)
	}

	// Просроченное событие удалено физически.
	if n, _ := s.Size("bot"); n != 1 {
		t.Fatalf("Size = %d, want 1", n)
	}
}

func TestDeleteUpToAndHead(t *testing.T) {
	t.Parallel()
	s := openStore(t)

	for i := 0; i < 4; i++ {
		if _, err := s.Push("bot", tqueue.Event{Kind: "message"}); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}
	if err := s.DeleteUpTo("bot", 3); err != nil {
		t.Fatalf("DeleteUpTo: %v", err)
	}
	head, err := s.Head("bot")
	if err != nil || head != 3 {
		t.Fatalf("Head = %d, %v, want 3", head, err)
	}
}

func TestTruncateHead(t *testing.T) {
	t.Parallel()
	s := openStore(t)

	for i := 0; i < 3; i++ {
		if _, err := s.Push("bot", tqueue.Event{Kind: "message"}); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}
	if err := s.TruncateHead("bot", 2); err != nil {
		t.Fatalf("TruncateHead: %v", err)
	}
	if head, _ := s.Head("bot"); head != 3 {
		t.Fatalf("Head after truncate = %d, want 3", head)
	}
}

func TestClearKeepsSequence(t *testing.T) {
	t.Parallel()
	s := openStore(t)

	if _, err := s.Push("bot", tqueue.Event{Kind: "message"}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := s.Clear("bot"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n, _ := s.Size("bot"); n != 0 {
		t.Fatalf("Size after clear = %d, want 0", n)
	}

	// Идентификаторы монотонны на всю жизнь бота: sequence переживает очистку.
	id, err := s.Push("bot", tqueue.Event{Kind: "message"})
	if err != nil || id != 2 {
		t.Fatalf("Push after clear id = %d, %v, want 2", id, err)
	}
}

func TestBotsIsolated(t *testing.T) {
	t.Parallel()
	s := openStore(t)

	if _, err := s.Push("a", tqueue.Event{Kind: "message"}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	events, _ := s.Get("b", 1, 10, 1<<20)
	if len(events) != 0 {
		t.Fatalf("bot b sees %d foreign events", len(events))
	}
}

func TestBulkDeletionRemovesEveryEvent(t *testing.T) {
	t.Parallel()
	s := openStore(t)

	fill := func(bot string, n int) {
		t.Helper()
		for i := 0; i < n; i++ {
			if _, err := s.Push(bot, tqueue.Event{Kind: "message"}); err != nil {
				t.Fatalf("Push: %v", err)
			}
		}
	}

	// Удаление префикса не оставляет дыр при большом числе событий.
	fill("upto", 100)
	if err := s.DeleteUpTo("upto", 61); err != nil {
		t.Fatalf("DeleteUpTo: %v", err)
	}
	if n, _ := s.Size("upto"); n != 40 {
		t.Fatalf("Size after DeleteUpTo = %d, want 40", n)
	}
	if head, _ := s.Head("upto"); head != 61 {
		t.Fatalf("Head after DeleteUpTo = %d, want 61", head)
	}

	fill("head", 100)
	if err := s.TruncateHead("head", 55); err != nil {
		t.Fatalf("TruncateHead: %v", err)
	}
	if n, _ := s.Size("head"); n != 45 {
		t.Fatalf("Size after TruncateHead = %d, want 45", n)
	}
	if head, _ := s.Head("head"); head != 56 {
		t.Fatalf("Head after TruncateHead = %d, want 56", head)
	}

	fill("clear", 100)
	if err := s.Clear("clear"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n, _ := s.Size("clear"); n != 0 {
		t.Fatalf("Size after Clear = %d, want 0", n)
	}
}
