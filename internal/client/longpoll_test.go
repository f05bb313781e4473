package client

import (
	"encoding/json"
	"testing"
	"time"

	"telegram-botapi-gateway/internal/botapi"
	"telegram-botapi-gateway/internal/tdapi"
	"telegram-botapi-gateway/internal/tqueue"
)

func TestEncodeUpdates(t *testing.T) {
	t.Parallel()

	events := []tqueue.Event{
		{ID: 1, Kind: "message", Payload: []byte(`{"message_id":1}`)},
		{ID: 2, Kind: "callback_query", Payload: []byte(`{"id":"77"}`)},
	}
	got := encodeUpdates(events)

	want := `[{"update_id":1,"message":{"message_id":1}},{"update_id":2,"callback_query":{"id":"77"}}]`
	if string(got) != want {
		t.Fatalf("encodeUpdates = %s, want %s", got, want)
	}
	if !json.Valid(got) {
		t.Fatalf("invalid JSON: %s", got)
	}

	if string(encodeUpdates(nil)) != "[]" {
		t.Fatalf("empty = %s", encodeUpdates(nil))
	}
}

func TestGetUpdatesAllowedUpdatesPersistsMask(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	c := env.c

	q := botapi.NewQuery("getupdates", map[string]string{
		"allowed_updates": `["message","callback_query"]`,
	}, nil)
	c.handleGetUpdates(q)

	if a := awaitAnswer(t, q); a == nil || a.Err != nil || string(a.Result) != "[]" {
		t.Fatalf("getUpdates answer = %+v", a)
	}
	want := uint32(1)<<uint32(UpdateTypeMessage) | uint32(1)<<uint32(UpdateTypeCallbackQuery)
	if c.allowedUpdateTypes != want {
		t.Fatalf("allowed mask = %#x, want %#x", c.allowedUpdateTypes, want)
	}

	var found bool
	for _, cmd := range env.bus.commands() {
		if opt, ok := cmd.Req.(tdapi.SetOption); ok && opt.Name == "xallowed_update_types" {
			found = true
			if v, okInt := opt.Value.(tdapi.OptionInteger); !okInt || v.Value != int64(want) {
				t.Fatalf("option value = %+v, want %d", opt.Value, want)
			}
		}
	}
	if !found {
		t.Fatal("xallowed_update_types option not sent")
	}
}

func TestGetUpdatesAntiHammer(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	c := env.c

	now := time.Now()
	c.now = func() time.Time { return now }

	// Первый короткий опрос отвечается сразу.
	q1 := botapi.NewQuery("getupdates", nil, nil)
	c.handleGetUpdates(q1)
	if a := awaitAnswer(t, q1); a == nil || a.Err != nil || string(a.Result) != "[]" {
		t.Fatalf("first poll = %+v", a)
	}

	// Повтор того же offset в трёхсекундном окне получает навязанный timeout.
	now = now.Add(time.Second)
	q2 := botapi.NewQuery("getupdates", nil, nil)
	c.handleGetUpdates(q2)
	if awaitAnswer(t, q2) != nil {
		t.Fatal("hammered poll answered immediately")
	}
	if c.parked == nil || c.parked.q != q2 {
		t.Fatal("hammered poll not parked")
	}
	if c.parked.limit != defaultUpdatesLimit {
		t.Fatalf("limit = %d, want %d", c.parked.limit, defaultUpdatesLimit)
	}

	// Совсем плотный повтор дополнительно режет limit до единицы.
	now = now.Add(100 * time.Millisecond)
	q3 := botapi.NewQuery("getupdates", nil, nil)
	c.handleGetUpdates(q3)
	if a := awaitAnswer(t, q2); a == nil || a.Err != nil || string(a.Result) != "[]" {
		t.Fatalf("displaced poll = %+v", a)
	}
	if c.parked == nil || c.parked.q != q3 || c.parked.limit != 1 {
		t.Fatalf("tight repoll: parked = %+v", c.parked)
	}
}

