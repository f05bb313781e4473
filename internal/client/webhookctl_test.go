package client

import (
	"testing"
	"time"

	"telegram-botapi-gateway/internal/botapi"
	"telegram-botapi-gateway/internal/tdapi"
)

func TestSetWebhookDisplacesParkedGetUpdates(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	c := env.c

	gq := botapi.NewQuery("getupdates", map[string]string{"timeout": "50"}, nil)
	c.handleGetUpdates(gq)
	if c.parked == nil {
		t.Fatal("getUpdates not parked on empty queue")
	}

	sq := botapi.NewQuery("setwebhook", map[string]string{"url": "https://example.org/hook"}, nil)
	c.handleSetWebhook(sq)

	a := awaitAnswer(t, gq)
	if a == nil || a.Err == nil || a.Err.Code != 409 {
		t.Fatalf("parked getUpdates answer = %+v, want 409", a)
	}
	if a.Err.Message != "Conflict: terminated by setWebhook request" {
		t.Fatalf("parked getUpdates message = %q", a.Err.Message)
	}
	if c.parked != nil {
		t.Fatal("parked query not dropped")
	}

	// Установка завершается верификацией первой доставки.
	if env.factoryCalls != 1 {
		t.Fatalf("factory calls = %d, want 1", env.factoryCalls)
	}
	if awaitAnswer(t, sq) != nil {
		t.Fatal("setWebhook answered before verification")
	}
	env.events.Verified("93.184.216.34")
	env.runPosted()
	sa := awaitAnswer(t, sq)
	if sa == nil || sa.Err != nil || string(sa.Result) != "true" {
		t.Fatalf("setWebhook answer = %+v", sa)
	}
	if c.webhook.cachedIP != "93.184.216.34" {
		t.Fatalf("cached ip = %q", c.webhook.cachedIP)
	}

	// При активном вебхуке getUpdates отвечается конфликтом сразу.
	gq2 := botapi.NewQuery("getupdates", nil, nil)
	c.handleGetUpdates(gq2)
	if a := awaitAnswer(t, gq2); a == nil || a.Err == nil || a.Err.Code != 409 {
		t.Fatalf("getUpdates under webhook = %+v, want 409", a)
	}
}

func TestSetWebhookSupersedesPendingInstall(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	c := env.c

	now := time.Now()
	c.now = func() time.Time { return now }

	s1 := botapi.NewQuery("setwebhook", map[string]string{"url": "https://a.example.org/hook"}, nil)
	c.handleSetWebhook(s1)
	if env.factoryCalls != 1 || !c.webhook.installing {
		t.Fatalf("first install not in flight: calls=%d installing=%v", env.factoryCalls, c.webhook.installing)
	}
	first := env.delivery

	now = now.Add(2 * time.Second)
	s2 := botapi.NewQuery("setwebhook", map[string]string{"url": "https://b.example.org/hook"}, nil)
	c.handleSetWebhook(s2)

	a1 := awaitAnswer(t, s1)
	if a1 == nil || a1.Err == nil || a1.Err.Code != 409 ||
		a1.Err.Message != "Conflict: terminated by other setWebhook" {
		t.Fatalf("superseded setWebhook answer = %+v", a1)
	}
	if first.closed != 1 {
		t.Fatalf("old delivery Close calls = %d, want 1", first.closed)
	}

	// Новый актор стартует из колбэка Closed старого.
	env.events.Closed(0)
	env.runPosted()
	if env.factoryCalls != 2 {
		t.Fatalf("factory calls = %d, want 2", env.factoryCalls)
	}
	env.events.Verified("")
	env.runPosted()
	a2 := awaitAnswer(t, s2)
	if a2 == nil || a2.Err != nil || string(a2.Result) != "true" {
		t.Fatalf("second setWebhook answer = %+v", a2)
	}
	if c.webhook.url != "https://b.example.org/hook" {
		t.Fatalf("webhook url = %q", c.webhook.url)
	}
}

func TestSetWebhookIdenticalParamsUpdatesMaskOnly(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	c := env.c

	now := time.Now()
	c.now = func() time.Time { return now }

	s1 := botapi.NewQuery("setwebhook", map[string]string{"url": "https://a.example.org/hook"}, nil)
	c.handleSetWebhook(s1)
	env.events.Verified("")
	env.runPosted()
	if a := awaitAnswer(t, s1); a == nil || a.Err != nil {
		t.Fatalf("install answer = %+v", a)
	}

	now = now.Add(2 * time.Second)
	s2 := botapi.NewQuery("setwebhook", map[string]string{
		"url":             "https://a.example.org/hook",
		"allowed_updates": `["message"]`,
	}, nil)
	c.handleSetWebhook(s2)

	a := awaitAnswer(t, s2)
	if a == nil || a.Err != nil || string(a.Result) != "true" {
		t.Fatalf("identical setWebhook answer = %+v", a)
	}
	if a.Description != "Webhook is already set" {
		t.Fatalf("description = %q", a.Description)
	}
	if env.factoryCalls != 1 {
		t.Fatalf("delivery restarted: factory calls = %d", env.factoryCalls)
	}

	wantMask := uint32(1) << uint32(UpdateTypeMessage)
	if c.allowedUpdateTypes != wantMask {
		t.Fatalf("allowed mask = %#x, want %#x", c.allowedUpdateTypes, wantMask)
	}
	p, ok, err := env.whdb.Get(c.opts.Token, c.dc())
	if err != nil || !ok || p.AllowedTypes != wantMask {
		t.Fatalf("persisted mask = %#x, ok=%v, err=%v, want %#x", p.AllowedTypes, ok, err, wantMask)
	}

	// Маска уходит и в персистентную опцию нативного клиента.
	cmds := env.bus.commands()
	var foundOption bool
	for _, cmd := range cmds {
		if opt, okOpt := cmd.Req.(tdapi.SetOption); okOpt && opt.Name == "xallowed_update_types" {
			foundOption = true
			if v, okInt := opt.Value.(tdapi.OptionInteger); !okInt || v.Value != int64(wantMask) {
				t.Fatalf("option value = %+v, want %d", opt.Value, wantMask)
			}
		}
	}
	if !foundOption {
		t.Fatal("xallowed_update_types option not sent")
	}
}
