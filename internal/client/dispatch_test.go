package client

import (
	"encoding/json"
	"testing"

	"telegram-botapi-gateway/internal/botapi"
	"telegram-botapi-gateway/internal/tdapi"
)

func TestCustomRequestMethods(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	c := env.c

	spec, ok := genericMethods["sendcustomrequest"]
	if !ok {
		t.Fatal("sendcustomrequest not routed")
	}
	q := botapi.NewQuery("sendcustomrequest", map[string]string{
		"method":     "getPremiumGiveawayInfo",
		"parameters": `{"chat_id":1}`,
	}, nil)
	c.handleGeneric(q, spec)

	cmds := env.bus.commands()
	if len(cmds) != 1 {
		t.Fatalf("commands sent = %d, want 1", len(cmds))
	}
	g, ok := cmds[0].Req.(tdapi.Generic)
	if !ok || g.Method != "sendCustomRequest" {
		t.Fatalf("request = %+v", cmds[0].Req)
	}
	if g.Fields["method"] != "getPremiumGiveawayInfo" || g.Fields["parameters"] != `{"chat_id":1}` {
		t.Fatalf("fields = %+v", g.Fields)
	}

	// Прозрачный ответ.
	c.completeRequest(cmds[0].ID, tdapi.Response{Result: tdapi.OkResult{}})
	if a := awaitAnswer(t, q); a == nil || a.Err != nil || string(a.Result) != "true" {
		t.Fatalf("answer = %+v", a)
	}
}

func TestAnswerCustomQueryMethod(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	c := env.c

	spec, ok := genericMethods["answercustomquery"]
	if !ok {
		t.Fatal("answercustomquery not routed")
	}
	q := botapi.NewQuery("answercustomquery", map[string]string{
		"custom_query_id": "987",
		"data":            `{"ok":1}`,
	}, nil)
	c.handleGeneric(q, spec)

	cmds := env.bus.commands()
	if len(cmds) != 1 {
		t.Fatalf("commands sent = %d, want 1", len(cmds))
	}
	g, ok := cmds[0].Req.(tdapi.Generic)
	if !ok || g.Method != "answerCustomQuery" {
		t.Fatalf("request = %+v", cmds[0].Req)
	}
	if g.Fields["custom_query_id"] != int64(987) || g.Fields["data"] != `{"ok":1}` {
		t.Fatalf("fields = %+v", g.Fields)
	}

	// Нечисловой id — ошибка аргумента.
	bad := botapi.NewQuery("answercustomquery", map[string]string{
		"custom_query_id": "abc",
		"data":            "{}",
	}, nil)
	c.handleGeneric(bad, spec)
	if a := awaitAnswer(t, bad); a == nil || a.Err == nil || a.Err.Code != 400 {
		t.Fatalf("bad id answer = %+v", a)
	}
}

func TestMediaThumbnailLegacyField(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	c := env.c
	spec := mediaSends["senddocument"]

	// Легаси thumb подхватывается, когда thumbnail отсутствует.
	q := botapi.NewQuery("senddocument", map[string]string{"document": "fileid"},
		map[string]botapi.UploadedFile{
			"thumb": {FieldName: "thumb", Path: "/tmp/thumb.jpg", Size: 10},
		})
	content, cerr := c.buildMediaContent(q, spec)
	if cerr != nil {
		t.Fatalf("buildMediaContent: %+v", cerr)
	}
	fields := decodeContentFields(t, content)
	thumb, ok := fields["thumbnail"].(map[string]any)
	if !ok || thumb["path"] != "/tmp/thumb.jpg" {
		t.Fatalf("thumbnail = %#v", fields["thumbnail"])
	}

	// Основное имя поля имеет приоритет.
	q = botapi.NewQuery("senddocument", map[string]string{"document": "fileid"},
		map[string]botapi.UploadedFile{
			"thumbnail": {FieldName: "thumbnail", Path: "/tmp/new.jpg", Size: 10},
			"thumb":     {FieldName: "thumb", Path: "/tmp/old.jpg", Size: 10},
		})
	content, cerr = c.buildMediaContent(q, spec)
	if cerr != nil {
		t.Fatalf("buildMediaContent: %+v", cerr)
	}
	fields = decodeContentFields(t, content)
	thumb, ok = fields["thumbnail"].(map[string]any)
	if !ok || thumb["path"] != "/tmp/new.jpg" {
		t.Fatalf("thumbnail priority = %#v", fields["thumbnail"])
	}
}

func decodeContentFields(t *testing.T, content tdapi.MessageContent) map[string]any {
	t.Helper()
	raw, ok := content.(tdapi.ContentRaw)
	if !ok {
		t.Fatalf("content = %T, want ContentRaw", content)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw.JSON, &fields); err != nil {
		t.Fatalf("decode content: %v", err)
	}
	return fields
}
