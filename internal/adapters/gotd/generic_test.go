package gotd

import (
	"encoding/json"
	"testing"

	"github.com/gotd/td/tg"

	"telegram-botapi-gateway/internal/tdapi"
)

func TestGenericFields(t *testing.T) {
	t.Parallel()

	f := genericFields{
		"s":   "text",
		"i":   int64(42),
		"fl":  float64(7),
		"b":   true,
		"j":   json.RawMessage(`{"x":1}`),
		"m":   map[string]any{"k": "v"},
	}

	if f.str("s") != "text" || f.str("missing") != "" {
		t.Fatal("str")
	}
	if f.int64v("i") != 42 || f.int64v("fl") != 7 || f.int64v("missing") != 0 {
		t.Fatal("int64v")
	}
	if !f.boolv("b") || f.boolv("missing") {
		t.Fatal("boolv")
	}
	if string(f.raw("j")) != `{"x":1}` {
		t.Fatalf("raw json = %s", f.raw("j"))
	}
	if string(f.raw("m")) != `{"k":"v"}` {
		t.Fatalf("raw map = %s", f.raw("m"))
	}
	if f.raw("missing") != nil {
		t.Fatal("raw missing")
	}
}

func TestCommandScope(t *testing.T) {
	t.Parallel()

	b := testBus()
	b.peers.putUser(&tg.User{ID: 5, AccessHash: 55})
	b.peers.putChat(&tg.Channel{ID: 9, AccessHash: 99})
	channelChatID := zeroChannelID - 9

	cases := []struct {
		name    string
		raw     string
		want    func(tg.BotCommandScopeClass) bool
		wantErr bool
	}{
		{name: "empty", raw: "", want: func(s tg.BotCommandScopeClass) bool {
			_, ok := s.(*tg.BotCommandScopeDefault)
			return ok
		}},
		{name: "allPrivate", raw: `{"type":"all_private_chats"}`, want: func(s tg.BotCommandScopeClass) bool {
			_, ok := s.(*tg.BotCommandScopeUsers)
			return ok
		}},
		{name: "chat", raw: `{"type":"chat","chat_id":` + itoa(channelChatID) + `}`, want: func(s tg.BotCommandScopeClass) bool {
			p, ok := s.(*tg.BotCommandScopePeer)
			if !ok {
				return false
			}
			ch, ok := p.Peer.(*tg.InputPeerChannel)
			return ok && ch.ChannelID == 9
		}},
		{name: "chatMember", raw: `{"type":"chat_member","chat_id":` + itoa(channelChatID) + `,"user_id":5}`, want: func(s tg.BotCommandScopeClass) bool {
			p, ok := s.(*tg.BotCommandScopePeerUser)
			return ok && p.UserID.(*tg.InputUser).UserID == 5
		}},
		{name: "unknownChat", raw: `{"type":"chat","chat_id":123}`, wantErr: true},
		{name: "unknownType", raw: `{"type":"per_planet"}`, wantErr: true},
		{name: "broken", raw: `{{`, wantErr: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			scope, perr := b.commandScope(json.RawMessage(tc.raw))
			if tc.wantErr {
				if perr == nil {
					t.Fatalf("commandScope(%s) succeeded, want error", tc.raw)
				}
				return
			}
			if perr != nil {
				t.Fatalf("commandScope(%s): %+v", tc.raw, perr)
			}
			if !tc.want(scope) {
				t.Fatalf("commandScope(%s) = %#v", tc.raw, scope)
			}
		})
	}
}

func itoa(v int64) string {
	data, _ := json.Marshal(v)
	return string(data)
}

func TestBannedRights(t *testing.T) {
	t.Parallel()

	rights, perr := bannedRights(json.RawMessage(`{
		"can_send_messages": true,
		"can_send_photos": true,
		"can_invite_users": true
	}`))
	if perr != nil {
		t.Fatalf("bannedRights: %+v", perr)
	}
	// Права — обратные запреты: разрешённое снято, неупомянутое запрещено.
	if rights.SendMessages || rights.SendPhotos || rights.InviteUsers {
		t.Fatalf("granted permissions still banned: %+v", rights)
	}
	if !rights.SendVideos || !rights.SendPolls || !rights.ChangeInfo || !rights.PinMessages {
		t.Fatalf("omitted permissions not banned: %+v", rights)
	}

	if _, perr := bannedRights(json.RawMessage(`{{`)); perr == nil {
		t.Fatal("broken permissions accepted")
	}
}

func TestGenericMarkup(t *testing.T) {
	t.Parallel()

	b := testBus()

	// Inline-клавиатура в форме Bot API.
	markup := b.genericMarkup(json.RawMessage(`{"inline_keyboard":[[
		{"text":"go","url":"https://example.org"},
		{"text":"cb","callback_data":"data"},
		{"text":"sw","switch_inline_query":""}
	]]}`))
	inline, ok := markup.(*tg.ReplyInlineMarkup)
	if !ok || len(inline.Rows) != 1 || len(inline.Rows[0].Buttons) != 3 {
		t.Fatalf("genericMarkup inline = %#v", markup)
	}
	if u, ok := inline.Rows[0].Buttons[0].(*tg.KeyboardButtonURL); !ok || u.URL != "https://example.org" {
		t.Fatalf("url button = %#v", inline.Rows[0].Buttons[0])
	}
	if c, ok := inline.Rows[0].Buttons[1].(*tg.KeyboardButtonCallback); !ok || string(c.Data) != "data" {
		t.Fatalf("callback button = %#v", inline.Rows[0].Buttons[1])
	}
	if s, ok := inline.Rows[0].Buttons[2].(*tg.KeyboardButtonSwitchInline); !ok || s.SamePeer {
		t.Fatalf("switch button = %#v", inline.Rows[0].Buttons[2])
	}

	// Reply-клавиатура распознаётся по отсутствию inline_keyboard.
	if _, ok := b.genericMarkup(json.RawMessage(`{"remove_keyboard":true}`)).(*tg.ReplyKeyboardHide); !ok {
		t.Fatal("remove_keyboard not recognized")
	}

	// Карта от ядра (отрендеренная inline-клавиатура) тоже разбирается.
	rendered := map[string]any{"inline_keyboard": []any{[]any{map[string]any{"text": "x", "callback_data": "y"}}}}
	if _, ok := b.genericMarkup(rendered).(*tg.ReplyInlineMarkup); !ok {
		t.Fatal("rendered map not recognized")
	}

	if b.genericMarkup(nil) != nil {
		t.Fatal("nil markup")
	}
}

func TestParticipantStatuses(t *testing.T) {
	t.Parallel()

	if got := chatParticipantStatus(&tg.ChatParticipantCreator{}); got != tdapi.ChatMemberStatusCreator {
		t.Fatalf("creator = %v", got)
	}
	if got := chatParticipantStatus(&tg.ChatParticipantAdmin{}); got != tdapi.ChatMemberStatusAdministrator {
		t.Fatalf("admin = %v", got)
	}
	if got := chatParticipantStatus(&tg.ChatParticipant{}); got != tdapi.ChatMemberStatusMember {
		t.Fatalf("member = %v", got)
	}

	cases := []struct {
		name string
		p    tg.ChannelParticipantClass
		want tdapi.ChatMemberStatus
	}{
		{name: "creator", p: &tg.ChannelParticipantCreator{}, want: tdapi.ChatMemberStatusCreator},
		{name: "admin", p: &tg.ChannelParticipantAdmin{}, want: tdapi.ChatMemberStatusAdministrator},
		{name: "member", p: &tg.ChannelParticipant{}, want: tdapi.ChatMemberStatusMember},
		{name: "left", p: &tg.ChannelParticipantLeft{}, want: tdapi.ChatMemberStatusLeft},
		{
			name: "kicked",
			p:    &tg.ChannelParticipantBanned{BannedRights: tg.ChatBannedRights{ViewMessages: true}},
			want: tdapi.ChatMemberStatusKicked,
		},
		{
			name: "restricted",
			p:    &tg.ChannelParticipantBanned{BannedRights: tg.ChatBannedRights{SendMessages: true}},
			want: tdapi.ChatMemberStatusRestricted,
		},
		{
			name: "bannedAndGone",
			p:    &tg.ChannelParticipantBanned{Left: true},
			want: tdapi.ChatMemberStatusKicked,
		},
	}
	for _, tc := range cases {
		if got := channelParticipantStatus(tc.p); got != tc.want {
			t.Fatalf("channelParticipantStatus(%s) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestMemberStatusName(t *testing.T) {
	t.Parallel()

	want := map[tdapi.ChatMemberStatus]string{
		tdapi.ChatMemberStatusCreator:       "creator",
		tdapi.ChatMemberStatusAdministrator: "administrator",
		tdapi.ChatMemberStatusMember:        "member",
		tdapi.ChatMemberStatusRestricted:    "restricted",
		tdapi.ChatMemberStatusLeft:          "left",
		tdapi.ChatMemberStatusKicked:        "kicked",
	}
	for status, name := range want {
		if got := memberStatusName(status); got != name {
			t.Fatalf("memberStatusName(%v) = %q, want %q", status, got, name)
		}
	}
}
