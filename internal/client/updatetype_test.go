package client

import (
	"reflect"
	"testing"
)

func TestParseAllowedUpdates(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
		want uint32
	}{
		{name: "empty", raw: "", want: defaultAllowedUpdateTypes},
		{name: "garbage", raw: "not json", want: defaultAllowedUpdateTypes},
		{name: "emptyArray", raw: "[]", want: defaultAllowedUpdateTypes},
		{name: "unknownOnly", raw: `["no_such_update"]`, want: defaultAllowedUpdateTypes},
		{
			name: "subset",
			raw:  `["message","callback_query"]`,
			want: 1<<uint32(UpdateTypeMessage) | 1<<uint32(UpdateTypeCallbackQuery),
		},
		{
			name: "caseAndSpaces",
			raw:  `[" Message ","POLL"]`,
			want: 1<<uint32(UpdateTypeMessage) | 1<<uint32(UpdateTypePoll),
		},
		{
			// Внутренние custom-виды не включаются по имени.
			name: "customIgnored",
			raw:  `["custom_event","message"]`,
			want: 1 << uint32(UpdateTypeMessage),
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := parseAllowedUpdates(tc.raw); got != tc.want {
				t.Fatalf("parseAllowedUpdates(%q) = %b, want %b", tc.raw, got, tc.want)
			}
		})
	}
}

func TestAllowedUpdateNames(t *testing.T) {
	t.Parallel()

	mask := uint32(1<<uint32(UpdateTypePoll) | 1<<uint32(UpdateTypeMessage))
	want := []string{"message", "poll"}
	if got := allowedUpdateNames(mask); !reflect.DeepEqual(got, want) {
		t.Fatalf("allowedUpdateNames() = %v, want %v", got, want)
	}

	// Custom-виды не попадают в выдачу даже при установленном бите.
	mask = 1 << uint32(UpdateTypeCustomEvent)
	if got := allowedUpdateNames(mask); got != nil {
		t.Fatalf("allowedUpdateNames(custom) = %v, want nil", got)
	}
}

func TestWebhookQueueID(t *testing.T) {
	t.Parallel()

	const subject = int64(123456)

	// Апдейты одной категории про одного субъекта делят очередь.
	if webhookQueueID(UpdateTypeMessage, subject) != webhookQueueID(UpdateTypeEditedMessage, subject) {
		t.Fatal("message and edited_message must share a queue")
	}

	// Разные категории про одного субъекта живут в разных очередях.
	seen := map[int64]UpdateType{}
	for _, ut := range []UpdateType{
		UpdateTypeMessage, UpdateTypeInlineQuery, UpdateTypeChosenInlineResult,
		UpdateTypeCallbackQuery, UpdateTypeShippingQuery, UpdateTypeMyChatMember,
		UpdateTypeChatMember, UpdateTypeChatBoost, UpdateTypeMessageReaction,
		UpdateTypeMessageReactionCount, UpdateTypeBusinessConnection, UpdateTypeBusinessMessage,
	} {
		id := webhookQueueID(ut, subject)
		if prev, dup := seen[id]; dup {
			t.Fatalf("queue id collision between %s and %s", prev.Name(), ut.Name())
		}
		seen[id] = ut
	}
}

func TestUpdateTTL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		ut   UpdateType
		want int64
	}{
		{UpdateTypeMessage, 86400},
		{UpdateTypeChatMember, 86400},
		{UpdateTypeInlineQuery, 3600},
		{UpdateTypeCallbackQuery, 3600},
		{UpdateTypePreCheckoutQuery, 3600},
	}
	for _, tc := range cases {
		if got := updateTTL(tc.ut); got != tc.want {
			t.Fatalf("updateTTL(%s) = %d, want %d", tc.ut.Name(), got, tc.want)
		}
	}
}
