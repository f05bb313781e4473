package gotd

import (
	"encoding/json"
	"testing"

	"github.com/gotd/td/tg"

	"telegram-botapi-gateway/internal/tdapi"
)

func testBus() *Bus {
	return &Bus{peers: newPeerStore()}
}

func TestConvertEntities(t *testing.T) {
	t.Parallel()

	b := testBus()
	b.peers.putUser(&tg.User{ID: 7, AccessHash: 77})

	raw := json.RawMessage(`[
		{"type":"bold","offset":0,"length":2},
		{"type":"text_link","offset":3,"length":4,"url":"https://example.org"},
		{"type":"pre","offset":8,"length":5,"language":"go"},
		{"type":"custom_emoji","offset":14,"length":2,"custom_emoji_id":"123"},
		{"type":"text_mention","offset":17,"length":3,"user":{"id":7}},
		{"type":"no_such_entity","offset":0,"length":1}
	]`)

	entities, err := b.convertEntities(raw)
	if err != nil {
		t.Fatalf("convertEntities: %v", err)
	}
	if len(entities) != 5 {
		t.Fatalf("got %d entities, want 5 (unknown type dropped)", len(entities))
	}

	if e, ok := entities[0].(*tg.MessageEntityBold); !ok || e.Length != 2 {
		t.Fatalf("entities[0] = %#v", entities[0])
	}
	if e, ok := entities[1].(*tg.MessageEntityTextURL); !ok || e.URL != "https://example.org" {
		t.Fatalf("entities[1] = %#v", entities[1])
	}
	if e, ok := entities[2].(*tg.MessageEntityPre); !ok || e.Language != "go" {
		t.Fatalf("entities[2] = %#v", entities[2])
	}
	if e, ok := entities[3].(*tg.MessageEntityCustomEmoji); !ok || e.DocumentID != 123 {
		t.Fatalf("entities[3] = %#v", entities[3])
	}
	if e, ok := entities[4].(*tg.InputMessageEntityMentionName); !ok {
		t.Fatalf("entities[4] = %#v", entities[4])
	} else if u, ok := e.UserID.(*tg.InputUser); !ok || u.UserID != 7 {
		t.Fatalf("entities[4] = %#v", entities[4])
	}
}

func TestConvertEntitiesUnknownMention(t *testing.T) {
	t.Parallel()

	b := testBus()
	// Упоминание неизвестного пользователя тихо пропускается: без access hash
	// сущность не собрать.
	entities, err := b.convertEntities(json.RawMessage(`[{"type":"text_mention","offset":0,"length":1,"user":{"id":404}}]`))
	if err != nil || len(entities) != 0 {
		t.Fatalf("convertEntities = %v, %v, want empty", entities, err)
	}
}

func TestParseTextFieldsHTML(t *testing.T) {
	t.Parallel()

	b := testBus()
	text, entities, perr := b.parseTextFields(textFields{text: "<b>bold</b> tail", parseMode: "HTML"})
	if perr != nil {
		t.Fatalf("parseTextFields: %+v", perr)
	}
	if text != "bold tail" {
		t.Fatalf("text = %q, want %q", text, "bold tail")
	}
	if len(entities) != 1 {
		t.Fatalf("got %d entities, want 1", len(entities))
	}
	if e, ok := entities[0].(*tg.MessageEntityBold); !ok || e.Offset != 0 || e.Length != 4 {
		t.Fatalf("entity = %#v", entities[0])
	}
}

func TestParseTextFieldsExplicitEntitiesWin(t *testing.T) {
	t.Parallel()

	b := testBus()
	// Явные entities отключают разбор parse_mode.
	text, entities, perr := b.parseTextFields(textFields{
		text:      "<b>raw</b>",
		parseMode: "HTML",
		entities:  json.RawMessage(`[{"type":"italic","offset":0,"length":3}]`),
	})
	if perr != nil {
		t.Fatalf("parseTextFields: %+v", perr)
	}
	if text != "<b>raw</b>" || len(entities) != 1 {
		t.Fatalf("text=%q entities=%d", text, len(entities))
	}
}

func TestTextContent(t *testing.T) {
	t.Parallel()

	if tf, ok := textContent(tdapi.ContentText{Text: "hi"}); !ok || tf.text != "hi" {
		t.Fatalf("ContentText = %+v, %v", tf, ok)
	}

	raw := tdapi.ContentRaw{
		Type: "inputMessageText",
		JSON: json.RawMessage(`{"text":"x","parse_mode":"HTML","link_preview_options":{"is_disabled":true}}`),
	}
	tf, ok := textContent(raw)
	if !ok || tf.text != "x" || tf.parseMode != "HTML" || !tf.noWebPreview {
		t.Fatalf("ContentRaw = %+v, %v", tf, ok)
	}

	if _, ok := textContent(tdapi.ContentRaw{Type: "inputMessagePhoto", JSON: json.RawMessage(`{}`)}); ok {
		t.Fatal("media content parsed as text")
	}
}

func TestBuildRawMarkup(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
		want func(tg.ReplyMarkupClass) bool
	}{
		{
			name: "remove",
			raw:  `{"remove_keyboard":true,"selective":true}`,
			want: func(m tg.ReplyMarkupClass) bool {
				h, ok := m.(*tg.ReplyKeyboardHide)
				return ok && h.Selective
			},
		},
		{
			name: "forceReply",
			raw:  `{"force_reply":true,"input_field_placeholder":"say it"}`,
			want: func(m tg.ReplyMarkupClass) bool {
				f, ok := m.(*tg.ReplyKeyboardForceReply)
				return ok && f.Placeholder == "say it"
			},
		},
		{
			name: "keyboardStrings",
			raw:  `{"keyboard":[["a","b"],["c"]],"resize_keyboard":true}`,
			want: func(m tg.ReplyMarkupClass) bool {
				kb, ok := m.(*tg.ReplyKeyboardMarkup)
				return ok && kb.Resize && len(kb.Rows) == 2 && len(kb.Rows[0].Buttons) == 2
			},
		},
		{
			name: "keyboardObjects",
			raw:  `{"keyboard":[[{"text":"share","request_contact":true},{"text":"geo","request_location":true}]]}`,
			want: func(m tg.ReplyMarkupClass) bool {
				kb, ok := m.(*tg.ReplyKeyboardMarkup)
				if !ok || len(kb.Rows) != 1 {
					return false
				}
				_, contact := kb.Rows[0].Buttons[0].(*tg.KeyboardButtonRequestPhone)
				_, geo := kb.Rows[0].Buttons[1].(*tg.KeyboardButtonRequestGeoLocation)
				return contact && geo
			},
		},
		{
			name: "empty",
			raw:  `{}`,
			want: func(m tg.ReplyMarkupClass) bool { return m == nil },
		},
		{
			name: "broken",
			raw:  `{{{`,
			want: func(m tg.ReplyMarkupClass) bool { return m == nil },
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := buildRawMarkup(json.RawMessage(tc.raw)); !tc.want(got) {
				t.Fatalf("buildRawMarkup(%s) = %#v", tc.raw, got)
			}
		})
	}
}

func TestJSONHelpers(t *testing.T) {
	t.Parallel()

	if got := jsonString(json.RawMessage(`"abc"`)); got != "abc" {
		t.Fatalf("jsonString = %q", got)
	}
	if got := jsonFloat(json.RawMessage(`"2.5"`)); got != 2.5 {
		t.Fatalf("jsonFloat string = %v", got)
	}
	if got := jsonFloat(json.RawMessage(`3`)); got != 3 {
		t.Fatalf("jsonFloat number = %v", got)
	}
	if !jsonBool(json.RawMessage(`true`)) || !jsonBool(json.RawMessage(`"yes"`)) {
		t.Fatal("jsonBool")
	}
	if jsonBoolDefault(nil, true) != true {
		t.Fatal("jsonBoolDefault empty")
	}
	if got := jsonInt(json.RawMessage(`-100123`)); got != -100123 {
		t.Fatalf("jsonInt = %d", got)
	}
	if got := jsonInt(json.RawMessage(`"77"`)); got != 77 {
		t.Fatalf("jsonInt string = %d", got)
	}
}
