package client

import (
	"encoding/json"
	"strings"
	"testing"

	"telegram-botapi-gateway/internal/botapi"
	"telegram-botapi-gateway/internal/tdapi"
)

func TestMultisendAggregatesResults(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	c := env.c

	c.cache.PutChat(&tdapi.Chat{ID: 5, Kind: tdapi.ChatKindPrivate{UserID: 5}})

	q := botapi.NewQuery("sendmediagroup", nil, nil)
	id := c.newSendQuery(q, 2, false)
	c.registerYetUnsent(5, 101, id, 0)
	c.registerYetUnsent(5, 102, id, 1)
	if c.yetUnsentCount[5] != 2 {
		t.Fatalf("yetUnsentCount = %d, want 2", c.yetUnsentCount[5])
	}

	c.onSendSucceeded(&tdapi.Message{
		ID: 1 << messageIDShift, ChatID: 5, Date: 1, Content: tdapi.ContentText{Text: "a"},
	}, 101)
	if awaitAnswer(t, q) != nil {
		t.Fatal("answered before all parts landed")
	}

	c.onSendSucceeded(&tdapi.Message{
		ID: 2 << messageIDShift, ChatID: 5, Date: 1, Content: tdapi.ContentText{Text: "b"},
	}, 102)
	a := awaitAnswer(t, q)
	if a == nil || a.Err != nil {
		t.Fatalf("answer = %+v", a)
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(a.Result, &parts); err != nil || len(parts) != 2 {
		t.Fatalf("result = %s (err %v)", a.Result, err)
	}
	if len(c.yetUnsentCount) != 0 || len(c.sendQueries) != 0 {
		t.Fatalf("tracker not drained: counts=%v queries=%d", c.yetUnsentCount, len(c.sendQueries))
	}
}

func TestMultisendFailurePrefixesPartNumber(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	c := env.c

	c.cache.PutChat(&tdapi.Chat{ID: 5, Kind: tdapi.ChatKindPrivate{UserID: 5}})

	q := botapi.NewQuery("sendmediagroup", nil, nil)
	id := c.newSendQuery(q, 2, false)
	c.registerYetUnsent(5, 101, id, 0)
	c.registerYetUnsent(5, 102, id, 1)

	c.onSendSucceeded(&tdapi.Message{
		ID: 1 << messageIDShift, ChatID: 5, Date: 1, Content: tdapi.ContentText{Text: "a"},
	}, 101)
	c.onSendFailed(&tdapi.Message{ID: 0, ChatID: 5}, 102, tdapi.Error{Code: 400, Message: "MEDIA_EMPTY"})

	a := awaitAnswer(t, q)
	if a == nil || a.Err == nil || a.Err.Code != 400 {
		t.Fatalf("answer = %+v", a)
	}
	if !strings.Contains(a.Err.Message, "Failed to send message #2") {
		t.Fatalf("error message = %q", a.Err.Message)
	}
	if len(c.yetUnsentCount) != 0 {
		t.Fatalf("yetUnsentCount not drained: %v", c.yetUnsentCount)
	}
}

func TestMultisendTerminalErrorOverridesPartErrors(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	c := env.c

	q := botapi.NewQuery("sendmediagroup", nil, nil)
	id := c.newSendQuery(q, 2, false)
	c.registerYetUnsent(5, 101, id, 0)
	c.registerYetUnsent(5, 102, id, 1)

	c.onSendFailed(&tdapi.Message{ID: 0, ChatID: 5}, 101, tdapi.Error{Code: 400, Message: "MEDIA_EMPTY"})
	c.onSendFailed(&tdapi.Message{ID: 0, ChatID: 5}, 102, tdapi.Error{Code: 429, Message: "Too Many Requests: retry after 17"})

	a := awaitAnswer(t, q)
	if a == nil || a.Err == nil || a.Err.Code != 429 || a.Err.RetryAfter != 17 {
		t.Fatalf("answer = %+v", a)
	}
	if strings.Contains(a.Err.Message, "Failed to send message") {
		t.Fatalf("terminal error kept part prefix: %q", a.Err.Message)
	}
}

func TestSendFailureDeletesOrphanedMessage(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	c := env.c

	q := botapi.NewQuery("sendmessage", nil, nil)
	id := c.newSendQuery(q, 1, false)
	c.registerYetUnsent(5, 101, id, 0)

	// Провал с уже присвоенным постоянным id: сообщение осталось в чате
	// и подлежит удалению.
	c.onSendFailed(&tdapi.Message{ID: 7 << messageIDShift, ChatID: 5}, 101,
		tdapi.Error{Code: 400, Message: "USER_BANNED_IN_CHANNEL"})

	var deleted bool
	for _, cmd := range env.bus.commands() {
		if del, ok := cmd.Req.(tdapi.DeleteMessages); ok {
			deleted = true
			if del.ChatID != 5 || len(del.MessageIDs) != 1 || del.MessageIDs[0] != 7<<messageIDShift {
				t.Fatalf("delete request = %+v", del)
			}
		}
	}
	if !deleted {
		t.Fatal("orphaned message not deleted")
	}
	// USER_BANNED_IN_CHANNEL переводится синонимом Bot API.
	if a := awaitAnswer(t, q); a == nil || a.Err == nil || a.Err.Code != 403 {
		t.Fatalf("answer = %+v", a)
	}
}

func TestCheckSendCapDebouncesOverflow(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	c := env.c

	c.yetUnsentCount[5] = MaxConcurrentlySentChatMessages

	q := botapi.NewQuery("sendmessage", nil, nil)
	if c.checkSendCap(q, 5, 1) {
		t.Fatal("overflow admitted")
	}
	// Отказ дебаунсится, мгновенного ответа нет.
	if awaitAnswer(t, q) != nil {
		t.Fatal("overflow answered without debounce")
	}

	if !c.checkSendCap(botapi.NewQuery("sendmessage", nil, nil), 6, 1) {
		t.Fatal("other chat rejected")
	}
}
