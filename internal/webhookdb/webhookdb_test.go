package webhookdb_test

import (
	"path/filepath"
	"reflect"
	"testing"

	"telegram-botapi-gateway/internal/webhookdb"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		p    webhookdb.Params
	}{
		{name: "bareURL", p: webhookdb.Params{URL: "https://example.org/hook"}},
		{
			name: "allMarkers",
			p: webhookdb.Params{
				URL:            "https://example.org/hook?x=1",
				HasCertificate: true,
				MaxConnections: 40,
				IPAddress:      "10.0.0.7",
				FixIPAddress:   true,
				SecretToken:    "s3cret",
				AllowedTypes:   0b1010101,
			},
		},
		{
			name: "highBitMask",
			p: webhookdb.Params{
				URL:          "https://h.example/",
				AllowedTypes: 1 << 31,
			},
		},
		{name: "onlySecret", p: webhookdb.Params{URL: "https://h/", SecretToken: "abc"}},
		{name: "empty", p: webhookdb.Params{}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			encoded := webhookdb.Encode(tc.p)
			got := webhookdb.Decode(encoded)
			if !reflect.DeepEqual(got, tc.p) {
				t.Fatalf("Decode(Encode()) = %+v, want %+v (encoded %q)", got, tc.p, encoded)
			}
		})
	}
}

func TestDecodeUnknownMarkerIsURL(t *testing.T) {
	t.Parallel()

	// Неизвестный маркер — начало URL; формат расширяется только слева.
	got := webhookdb.Decode("#future_stuff/https://example.org/")
	if got.URL != "#future_stuff/https://example.org/" {
		t.Fatalf("Decode() URL = %q", got.URL)
	}
}

func TestDBRoundTrip(t *testing.T) {
	t.Parallel()

	db, err := webhookdb.Open(filepath.Join(t.TempDir(), "wh.bbolt"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	p := webhookdb.Params{URL: "https://example.org/hook", SecretToken: "tok", MaxConnections: 4}
	if err := db.Put("123:abc", 2, p); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := db.Get("123:abc", 2)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if !reflect.DeepEqual(got, p) {
		t.Fatalf("Get = %+v, want %+v", got, p)
	}

	// Другой dc — другая запись.
	if _, ok, _ := db.Get("123:abc", 1); ok {
		t.Fatal("Get(dc=1) found unexpected row")
	}

	if err := db.Delete("123:abc", 2); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := db.Get("123:abc", 2); ok {
		t.Fatal("row survived Delete")
	}
}
