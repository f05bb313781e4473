package client

import (
	"testing"
	"time"

	"telegram-botapi-gateway/internal/tdapi"
)

func TestIsRejectedContent(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		content tdapi.MessageContent
		want    bool
	}{
		{name: "text", content: tdapi.ContentText{Text: "hi"}, want: false},
		{name: "photo", content: tdapi.ContentPhoto{}, want: false},
		{name: "expiredPhoto", content: tdapi.ContentPhoto{IsExpired: true}, want: true},
		{name: "video", content: tdapi.ContentVideo{}, want: false},
		{name: "expiredVideo", content: tdapi.ContentVideo{IsExpired: true}, want: true},
		{name: "gameScore", content: tdapi.ContentGameScore{}, want: true},
		{name: "payment", content: tdapi.ContentPaymentSuccessful{}, want: true},
		{name: "call", content: tdapi.ContentCall{}, want: true},
		{name: "contactRegistered", content: tdapi.ContentContactRegistered{}, want: true},
		{name: "passport", content: tdapi.ContentPassportDataSent{}, want: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := isRejectedContent(tc.content); got != tc.want {
				t.Fatalf("isRejectedContent(%T) = %v, want %v", tc.content, got, tc.want)
			}
		})
	}
}

func TestShouldEmitMessageSkipsPreAuthBacklog(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	c := env.c

	base := time.Unix(100000, 0)
	c.now = func() time.Time { return base }
	c.authorizationDate = 99000

	c.cache.PutChat(&tdapi.Chat{
		ID:   -1001,
		Kind: tdapi.ChatKindSupergroup{SupergroupID: 1001},
	})
	c.cache.PutChat(&tdapi.Chat{
		ID:   42,
		Kind: tdapi.ChatKindPrivate{UserID: 42},
	})

	backlog := &tdapi.Message{ChatID: -1001, Date: 98000, SenderUserID: 7, Content: tdapi.ContentText{Text: "old"}}
	if c.shouldEmitMessage(backlog, false) {
		t.Fatal("supergroup backlog before authorization emitted")
	}

	fresh := &tdapi.Message{ChatID: -1001, Date: 99500, SenderUserID: 7, Content: tdapi.ContentText{Text: "new"}}
	if !c.shouldEmitMessage(fresh, false) {
		t.Fatal("supergroup message after authorization dropped")
	}

	// Личные диалоги под отсечку не попадают.
	private := &tdapi.Message{ChatID: 42, Date: 98000, SenderUserID: 42, Content: tdapi.ContentText{Text: "dm"}}
	if !c.shouldEmitMessage(private, false) {
		t.Fatal("private message before authorization dropped")
	}
}
