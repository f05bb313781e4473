package client

import (
	"encoding/json"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"telegram-botapi-gateway/internal/tdapi"
)

func TestMergeRawJSON(t *testing.T) {
	t.Parallel()

	m := map[string]any{"existing": "old"}
	mergeRawJSON(m, json.RawMessage(`{"a":1,"existing":"new","obj":{"k":"v"}}`), zap.NewNop())

	if string(m["a"].(json.RawMessage)) != "1" {
		t.Fatalf("a = %v", m["a"])
	}
	if string(m["existing"].(json.RawMessage)) != `"new"` {
		t.Fatalf("existing not overwritten: %v", m["existing"])
	}
	if string(m["obj"].(json.RawMessage)) != `{"k":"v"}` {
		t.Fatalf("obj = %v", m["obj"])
	}

	// Пустой и битый JSON не трогают карту.
	before := len(m)
	mergeRawJSON(m, nil, zap.NewNop())
	mergeRawJSON(m, json.RawMessage(`{broken`), zap.NewNop())
	if len(m) != before {
		t.Fatalf("map changed by empty/broken input: %v", m)
	}
}

func TestRenderInlineKeyboard(t *testing.T) {
	t.Parallel()

	kb := &tdapi.InlineKeyboard{Rows: [][]tdapi.InlineButton{
		{
			{Text: "open", Kind: tdapi.ButtonURL{URL: "https://example.org"}},
			{Text: "tap", Kind: tdapi.ButtonCallback{Data: []byte("payload")}},
		},
		{
			{Text: "inline", Kind: tdapi.ButtonSwitchInline{Query: "q", CurrentChat: true}},
			{Text: "app", Kind: tdapi.ButtonWebApp{URL: "https://app.example.org"}},
			{Text: "buy", Kind: tdapi.ButtonPay{}},
		},
	}}

	got := renderInlineKeyboard(kb)
	want := map[string]any{"inline_keyboard": [][]map[string]any{
		{
			{"text": "open", "url": "https://example.org"},
			{"text": "tap", "callback_data": "payload"},
		},
		{
			{"text": "inline", "switch_inline_query_current_chat": "q"},
			{"text": "app", "web_app": map[string]any{"url": "https://app.example.org"}},
			{"text": "buy", "pay": true},
		},
	}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("renderInlineKeyboard = %#v, want %#v", got, want)
	}

	if renderInlineKeyboard(&tdapi.RawMarkup{}) != nil {
		t.Fatal("raw markup rendered as inline keyboard")
	}
	if renderInlineKeyboard(nil) != nil {
		t.Fatal("nil markup rendered")
	}
}

func TestRenderInlineKeyboardLoginURL(t *testing.T) {
	t.Parallel()

	kb := &tdapi.InlineKeyboard{Rows: [][]tdapi.InlineButton{{
		{Text: "login", Kind: tdapi.ButtonLoginURL{URL: "https://example.org/auth", ForwardText: "fwd"}},
	}}}
	got := renderInlineKeyboard(kb)
	rows := got["inline_keyboard"].([][]map[string]any)
	login, ok := rows[0][0]["login_url"].(map[string]any)
	if !ok || login["url"] != "https://example.org/auth" || login["forward_text"] != "fwd" {
		t.Fatalf("login_url = %#v", rows[0][0])
	}
}

func TestRenderChatMemberStatus(t *testing.T) {
	t.Parallel()

	want := map[tdapi.ChatMemberStatus]string{
		tdapi.ChatMemberStatusCreator:       "creator",
		tdapi.ChatMemberStatusAdministrator: "administrator",
		tdapi.ChatMemberStatusRestricted:    "restricted",
		tdapi.ChatMemberStatusLeft:          "left",
		tdapi.ChatMemberStatusKicked:        "kicked",
		tdapi.ChatMemberStatusMember:        "member",
	}
	for status, name := range want {
		if got := renderChatMemberStatus(status); got != name {
			t.Fatalf("renderChatMemberStatus(%v) = %q, want %q", status, got, name)
		}
	}
}
