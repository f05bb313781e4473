package client

import (
	"testing"
	"time"

	"telegram-botapi-gateway/internal/botapi"
)

func TestAdmitQuery(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	c := env.c

	now := time.Now()
	c.now = func() time.Time { return now }
	c.opts.StartTime = now.Add(-2 * time.Minute)

	send := func() *botapi.Query { return botapi.NewQuery("sendmessage", nil, nil) }
	upload := func() *botapi.Query {
		return botapi.NewQuery("senddocument", nil, map[string]botapi.UploadedFile{
			"document": {FieldName: "document", Path: "/tmp/doc.bin", Size: 100},
		})
	}

	if err := c.admitQuery(send()); err != nil {
		t.Fatalf("idle admission: %+v", err)
	}

	c.activeRequests = baseRequestLimit + 1
	if err := c.admitQuery(send()); err == nil || err.Code != 429 || err.RetryAfter != floodRetryAfter {
		t.Fatalf("over request limit: %+v", err)
	}

	// Локальные методы не нагружают нативный клиент и проходят всегда.
	if err := c.admitQuery(botapi.NewQuery("getupdates", nil, nil)); err != nil {
		t.Fatalf("local method rejected: %+v", err)
	}

	// В стартовом окне admission выключен.
	c.opts.StartTime = now.Add(-10 * time.Second)
	if err := c.admitQuery(send()); err != nil {
		t.Fatalf("startup grace: %+v", err)
	}
	c.opts.StartTime = now.Add(-2 * time.Minute)

	c.activeRequests = 0
	c.activeUploadCount = baseUploadCountLimit + 1
	if err := c.admitQuery(upload()); err == nil || err.Code != 429 {
		t.Fatalf("over upload count: %+v", err)
	}
	if err := c.admitQuery(send()); err != nil {
		t.Fatalf("upload limit hit non-upload request: %+v", err)
	}

	c.activeUploadCount = 0
	c.activeUploadBytes = maxUploadBytes + 1
	if err := c.admitQuery(upload()); err == nil || err.Code != 429 {
		t.Fatalf("over upload bytes: %+v", err)
	}
}

func TestRequestCounters(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	c := env.c

	q := botapi.NewQuery("senddocument", nil, map[string]botapi.UploadedFile{
		"document": {FieldName: "document", Path: "/tmp/doc.bin", Size: 4096},
	})
	c.beginRequest(q)
	if c.activeRequests != 1 || c.activeUploadCount != 1 || c.activeUploadBytes != 4096 {
		t.Fatalf("begin: reqs=%d uploads=%d bytes=%d",
			c.activeRequests, c.activeUploadCount, c.activeUploadBytes)
	}
	c.endRequest(q)
	if c.activeRequests != 0 || c.activeUploadCount != 0 || c.activeUploadBytes != 0 {
		t.Fatalf("end: reqs=%d uploads=%d bytes=%d",
			c.activeRequests, c.activeUploadCount, c.activeUploadBytes)
	}
}
