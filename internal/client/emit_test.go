package client

import (
	"testing"

	"telegram-botapi-gateway/internal/tdapi"
)

// drainQueue снимает все события из буфера бота.
func drainQueue(t *testing.T, env *testEnv) []queuedEvent {
	t.Helper()
	events, err := env.queue.Get(env.c.botID(), 0, 100, 1<<20)
	if err != nil {
		t.Fatalf("read queue: %v", err)
	}
	out := make([]queuedEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, queuedEvent{Kind: ev.Kind, QueueID: ev.QueueID})
	}
	if err := env.queue.Clear(env.c.botID()); err != nil {
		t.Fatalf("clear queue: %v", err)
	}
	return out
}

type queuedEvent struct {
	Kind    string
	QueueID int64
}

func TestEmitQueueIDDomains(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	c := env.c

	// my_chat_member упорядочивается по чату.
	c.emitChatMember(tdapi.UpdateChatMember{
		ChatID: 10, UserID: 12345, ActorUserID: 3, Date: 1, IsBotMember: true,
		OldStatus: tdapi.ChatMemberStatusMember, NewStatus: tdapi.ChatMemberStatusLeft,
	})
	got := drainQueue(t, env)
	if len(got) != 1 || got[0].Kind != "my_chat_member" || got[0].QueueID != 10+5<<queueIDDomainShift {
		t.Fatalf("my_chat_member = %+v", got)
	}

	// chat_member — по затронутому пользователю.
	c.emitChatMember(tdapi.UpdateChatMember{
		ChatID: 10, UserID: 20, ActorUserID: 3, Date: 1,
		OldStatus: tdapi.ChatMemberStatusLeft, NewStatus: tdapi.ChatMemberStatusMember,
	})
	got = drainQueue(t, env)
	if len(got) != 1 || got[0].Kind != "chat_member" || got[0].QueueID != 20+6<<queueIDDomainShift {
		t.Fatalf("chat_member = %+v", got)
	}

	// chat_join_request — по заявителю.
	c.emitChatJoinRequest(tdapi.UpdateNewChatJoinRequest{ChatID: 10, UserID: 20, UserChatID: 20, Date: 1})
	got = drainQueue(t, env)
	if len(got) != 1 || got[0].Kind != "chat_join_request" || got[0].QueueID != 20+6<<queueIDDomainShift {
		t.Fatalf("chat_join_request = %+v", got)
	}

	// Бизнес-сообщения и их удаления — по чату сообщения.
	c.emitBusinessMessageUpdate("conn", &tdapi.Message{
		ID: 1 << messageIDShift, ChatID: 77, Date: 1, Content: tdapi.ContentText{Text: "hi"},
	}, false)
	got = drainQueue(t, env)
	if len(got) != 1 || got[0].Kind != "business_message" || got[0].QueueID != 77+11<<queueIDDomainShift {
		t.Fatalf("business_message = %+v", got)
	}

	c.emitDeletedBusinessMessages(tdapi.UpdateBusinessMessagesDeleted{
		ConnectionID: "conn", ChatID: 77, MessageIDs: []int64{1 << messageIDShift},
	})
	got = drainQueue(t, env)
	if len(got) != 1 || got[0].Kind != "deleted_business_messages" || got[0].QueueID != 77+11<<queueIDDomainShift {
		t.Fatalf("deleted_business_messages = %+v", got)
	}
}
