package client

import (
	"context"
	"testing"
	"time"

	"telegram-botapi-gateway/internal/botapi"
	"telegram-botapi-gateway/internal/tdapi"
)

// awaitAnswer снимает ответ с запроса; nil — запрос ещё не отвечен.
func awaitAnswer(t *testing.T, q *botapi.Query) *botapi.Answer {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	a := q.Await(ctx)
	if a.Err != nil && a.Err.Code == 500 && a.Err.Message == "Internal Server Error: request timeout" {
		return nil
	}
	return &a
}

func TestMessageIDArg(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		arg     string
		want    int64
		wantOK  bool
	}{
		{name: "valid", arg: "5", want: 5 << messageIDShift, wantOK: true},
		{name: "withSpaces", arg: "  7  ", want: 7 << messageIDShift, wantOK: true},
		{name: "missing", arg: "", wantOK: false},
		{name: "garbage", arg: "abc", wantOK: false},
		{name: "zero", arg: "0", wantOK: false},
		{name: "negative", arg: "-3", wantOK: false},
		{name: "overflow", arg: "3000000000", wantOK: false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			args := map[string]string{}
			if tc.arg != "" {
				args["message_id"] = tc.arg
			}
			q := botapi.NewQuery("deleteMessage", args, nil)
			got, ok := messageIDArg(q, "message_id")
			if ok != tc.wantOK || got != tc.want {
				t.Fatalf("messageIDArg(%q) = %d, %v, want %d, %v", tc.arg, got, ok, tc.want, tc.wantOK)
			}
			a := awaitAnswer(t, q)
			if tc.wantOK && a != nil {
				t.Fatalf("query answered prematurely: %+v", a)
			}
			if !tc.wantOK {
				if a == nil || a.Err == nil || a.Err.Code != 400 {
					t.Fatalf("query not answered with 400: %+v", a)
				}
			}
		})
	}
}

func TestMessageIDsArg(t *testing.T) {
	t.Parallel()

	q := botapi.NewQuery("deleteMessages", map[string]string{"message_ids": "[1,2,3]"}, nil)
	ids, ok := messageIDsArg(q, "message_ids")
	if !ok || len(ids) != 3 || ids[0] != 1<<messageIDShift || ids[2] != 3<<messageIDShift {
		t.Fatalf("messageIDsArg = %v, %v", ids, ok)
	}

	for name, raw := range map[string]string{
		"missing":  "",
		"empty":    "[]",
		"zeroID":   "[1,0]",
		"overflow": "[3000000000]",
		"broken":   "[1,",
	} {
		q := botapi.NewQuery("deleteMessages", map[string]string{"message_ids": raw}, nil)
		if _, ok := messageIDsArg(q, "message_ids"); ok {
			t.Fatalf("%s: messageIDsArg(%q) succeeded", name, raw)
		}
		if a := awaitAnswer(t, q); a == nil || a.Err == nil || a.Err.Code != 400 {
			t.Fatalf("%s: query not answered with 400", name)
		}
	}
}

func TestThreadIDArg(t *testing.T) {
	t.Parallel()

	if got := threadIDArg(botapi.NewQuery("sendMessage", nil, nil)); got != 0 {
		t.Fatalf("missing thread id = %d, want 0", got)
	}
	q := botapi.NewQuery("sendMessage", map[string]string{"message_thread_id": "7"}, nil)
	if got := threadIDArg(q); got != 7<<messageIDShift {
		t.Fatalf("thread id = %d, want %d", got, int64(7)<<messageIDShift)
	}
	q = botapi.NewQuery("sendMessage", map[string]string{"message_thread_id": "-4"}, nil)
	if got := threadIDArg(q); got != 0 {
		t.Fatalf("negative thread id = %d, want 0", got)
	}
}

func TestParseSendOptions(t *testing.T) {
	t.Parallel()

	q := botapi.NewQuery("sendMessage", map[string]string{
		"disable_notification": "true",
		"protect_content":      "1",
		"message_effect_id":    "5046509860389126442",
		"paid_star_count":      "25",
	}, nil)
	got := parseSendOptions(q)
	want := tdapi.SendOptions{
		DisableNotification: true,
		ProtectContent:      true,
		EffectID:            5046509860389126442,
		PaidStarCount:       25,
	}
	if got != want {
		t.Fatalf("parseSendOptions = %+v, want %+v", got, want)
	}

	if got := parseSendOptions(botapi.NewQuery("sendMessage", nil, nil)); got != (tdapi.SendOptions{}) {
		t.Fatalf("defaults = %+v", got)
	}
}

func TestParseReplyTo(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		args   map[string]string
		want   *tdapi.ReplyToMessage
		wantOK bool
	}{
		{
			name:   "none",
			args:   map[string]string{},
			want:   nil,
			wantOK: true,
		},
		{
			name:   "legacy",
			args:   map[string]string{"reply_to_message_id": "9"},
			want:   &tdapi.ReplyToMessage{ChatID: 100, MessageID: 9 << messageIDShift},
			wantOK: true,
		},
		{
			name:   "parameters",
			args:   map[string]string{"reply_parameters": `{"message_id":4}`},
			want:   &tdapi.ReplyToMessage{ChatID: 100, MessageID: 4 << messageIDShift},
			wantOK: true,
		},
		{
			name:   "parametersOtherChat",
			args:   map[string]string{"reply_parameters": `{"message_id":4,"chat_id":-200}`},
			want:   &tdapi.ReplyToMessage{ChatID: -200, MessageID: 4 << messageIDShift},
			wantOK: true,
		},
		{
			name:   "parametersWinOverLegacy",
			args:   map[string]string{"reply_parameters": `{"message_id":4}`, "reply_to_message_id": "9"},
			want:   &tdapi.ReplyToMessage{ChatID: 100, MessageID: 4 << messageIDShift},
			wantOK: true,
		},
		{
			name:   "overflowID",
			args:   map[string]string{"reply_parameters": `{"message_id":3000000000}`},
			wantOK: false,
		},
		{
			name:   "brokenJSON",
			args:   map[string]string{"reply_parameters": `{broken`},
			wantOK: false,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			q := botapi.NewQuery("sendMessage", tc.args, nil)
			got, ok := parseReplyTo(q, 100)
			if ok != tc.wantOK {
				t.Fatalf("parseReplyTo ok = %v, want %v", ok, tc.wantOK)
			}
			if !tc.wantOK {
				if a := awaitAnswer(t, q); a == nil || a.Err == nil || a.Err.Code != 400 {
					t.Fatalf("query not answered with 400: %+v", a)
				}
				return
			}
			if tc.want == nil {
				if got != nil {
					t.Fatalf("parseReplyTo = %+v, want nil", got)
				}
				return
			}
			if got == nil || *got != *tc.want {
				t.Fatalf("parseReplyTo = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestInputFileRefLocalPath(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	c := env.c
	c.opts.LocalMode = true

	q := botapi.NewQuery("senddocument", map[string]string{
		"document": "file:///tmp/my%20file.bin",
	}, nil)
	ref, cerr := c.inputFileRef(q, "document")
	if cerr != nil {
		t.Fatalf("inputFileRef: %+v", cerr)
	}
	if ref["@type"] != "inputFileLocal" || ref["path"] != "/tmp/my file.bin" {
		t.Fatalf("ref = %#v", ref)
	}

	// Битый percent-escape — ошибка аргумента.
	q = botapi.NewQuery("senddocument", map[string]string{
		"document": "file:///tmp/%zz.bin",
	}, nil)
	if _, cerr = c.inputFileRef(q, "document"); cerr == nil || cerr.Code != 400 {
		t.Fatalf("broken escape: %+v", cerr)
	}

	// Вне локального режима file:// запрещён.
	c.opts.LocalMode = false
	q = botapi.NewQuery("senddocument", map[string]string{
		"document": "file:///tmp/my%20file.bin",
	}, nil)
	if _, cerr = c.inputFileRef(q, "document"); cerr == nil || cerr.Code != 400 {
		t.Fatalf("non-local mode: %+v", cerr)
	}
}
