package client

import (
	"testing"
	"time"

	"telegram-botapi-gateway/internal/tdapi"
)

func TestNewMessageQueueSerializesPrefetch(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	c := env.c

	now := time.Now()
	c.now = func() time.Time { return now }

	msg1 := &tdapi.Message{
		ID: 1 << messageIDShift, ChatID: 5, Date: now.Unix(), SenderUserID: 7,
		Content: tdapi.ContentSticker{SetID: 42},
	}
	msg2 := &tdapi.Message{
		ID: 2 << messageIDShift, ChatID: 5, Date: now.Unix(), SenderUserID: 7,
		Content: tdapi.ContentSticker{SetID: 43},
	}

	c.enqueueNewMessage(msg1, false)
	cmds := env.bus.commands()
	if len(cmds) != 1 {
		t.Fatalf("commands after first enqueue = %d, want 1", len(cmds))
	}
	if req, ok := cmds[0].Req.(tdapi.GetStickerSet); !ok || req.SetID != 42 {
		t.Fatalf("first prefetch = %+v", cmds[0].Req)
	}

	// Очередь чата держит не больше одного незавершённого запроса.
	c.enqueueNewMessage(msg2, false)
	if got := len(env.bus.commands()); got != 1 {
		t.Fatalf("commands with prefetch in flight = %d, want 1", got)
	}

	// Ответ двигает голову: сообщение эмитируется, следующий шаг уходит.
	c.completeRequest(cmds[0].ID, tdapi.Response{Result: &tdapi.StickerSet{ID: 42, Name: "packa"}})
	events, err := env.queue.Get(c.botID(), 0, 10, 1<<20)
	if err != nil || len(events) != 1 || events[0].Kind != "message" {
		t.Fatalf("after first resolve: events = %+v, err = %v", events, err)
	}
	cmds = env.bus.commands()
	if len(cmds) != 2 {
		t.Fatalf("commands after first resolve = %d, want 2", len(cmds))
	}
	if req, ok := cmds[1].Req.(tdapi.GetStickerSet); !ok || req.SetID != 43 {
		t.Fatalf("second prefetch = %+v", cmds[1].Req)
	}

	c.completeRequest(cmds[1].ID, tdapi.Response{Result: &tdapi.StickerSet{ID: 43, Name: "packb"}})
	events, err = env.queue.Get(c.botID(), 0, 10, 1<<20)
	if err != nil || len(events) != 2 {
		t.Fatalf("after second resolve: events = %+v, err = %v", events, err)
	}
	if len(c.newMessageQueues) != 0 {
		t.Fatalf("queues not drained: %d left", len(c.newMessageQueues))
	}
}

func TestNewMessageQueuePrefetchFailureStillEmits(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	c := env.c

	now := time.Now()
	c.now = func() time.Time { return now }

	msg := &tdapi.Message{
		ID: 1 << messageIDShift, ChatID: 5, Date: now.Unix(), SenderUserID: 7,
		Content: tdapi.ContentSticker{SetID: 42},
	}
	c.enqueueNewMessage(msg, false)
	cmds := env.bus.commands()
	if len(cmds) != 1 {
		t.Fatalf("commands = %d, want 1", len(cmds))
	}

	// Неудачный шаг не повторяется: апдейт уходит с частичной информацией.
	c.completeRequest(cmds[0].ID, tdapi.Response{Err: &tdapi.Error{Code: 404, Message: "STICKERSET_INVALID"}})
	events, err := env.queue.Get(c.botID(), 0, 10, 1<<20)
	if err != nil || len(events) != 1 {
		t.Fatalf("events after failed prefetch = %+v, err = %v", events, err)
	}
	if len(env.bus.commands()) != 1 {
		t.Fatal("failed prefetch retried")
	}
}
