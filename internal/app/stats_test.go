package app

import (
	"testing"
	"time"
)

func TestBotStatsWindow(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	s := newBotStats(func() time.Time { return now })

	for i := 0; i < 3; i++ {
		s.UpdateEmitted()
	}
	now = now.Add(30 * time.Second)
	s.UpdateEmitted()
	s.UpdateEmitted()

	if got := s.UpdatesPerMinute(); got != 5 {
		t.Fatalf("UpdatesPerMinute = %d, want 5", got)
	}

	// Первая тройка выпадает из окна, свежая пара остаётся.
	now = now.Add(35 * time.Second)
	if got := s.UpdatesPerMinute(); got != 2 {
		t.Fatalf("UpdatesPerMinute after 65s = %d, want 2", got)
	}

	// Накопительные счётчики окно не чистит.
	_, updates := s.Totals()
	if updates != 5 {
		t.Fatalf("Totals updates = %d, want 5", updates)
	}
}

func TestBotStatsBucketReuse(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	s := newBotStats(func() time.Time { return now })

	s.UpdateEmitted()
	// Через ровно 60 секунд секундная корзина переиспользуется и обнуляется.
	now = now.Add(60 * time.Second)
	s.UpdateEmitted()

	if got := s.UpdatesPerMinute(); got != 1 {
		t.Fatalf("UpdatesPerMinute = %d, want 1", got)
	}
}

func TestBotStatsRequests(t *testing.T) {
	t.Parallel()

	s := newBotStats(nil)
	s.RequestServed()
	s.RequestServed()
	requests, _ := s.Totals()
	if requests != 2 {
		t.Fatalf("Totals requests = %d, want 2", requests)
	}
}
