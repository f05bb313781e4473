package web

import (
	"strings"
	"testing"
)

func TestSplitBotPath(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		rest       string
		wantToken  string
		wantMethod string
		wantOK     bool
	}{
		{name: "plain", rest: "123:abc/sendMessage", wantToken: "123:abc", wantMethod: "sendMessage", wantOK: true},
		{name: "noSlash", rest: "123:abc", wantOK: false},
		{name: "emptyToken", rest: "/sendMessage", wantOK: false},
		{name: "emptyMethod", rest: "123:abc/", wantOK: false},
		{name: "extraSlash", rest: "123:abc/send/message", wantOK: false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			token, method, ok := splitBotPath(tc.rest)
			if ok != tc.wantOK || token != tc.wantToken || method != tc.wantMethod {
				t.Fatalf("splitBotPath(%q) = %q, %q, %v, want %q, %q, %v",
					tc.rest, token, method, ok, tc.wantToken, tc.wantMethod, tc.wantOK)
			}
		})
	}
}

func TestRedactToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		path string
		want string
	}{
		{
			name: "method",
			path: "/bot123456:ABC-secret/sendMessage",
			want: "/bot123456:***/sendMessage",
		},
		{
			name: "file",
			path: "/file/bot123456:ABC-secret/files/photo_1.bin",
			want: "/file/bot123456:***/files/photo_1.bin",
		},
		{
			name: "tokenOnly",
			path: "/bot123456:ABC-secret",
			want: "/bot123456:***",
		},
		{name: "noToken", path: "/stats", want: "/stats"},
		{name: "noColon", path: "/bot123456/sendMessage", want: "/bot123456/sendMessage"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := redactToken(tc.path); got != tc.want {
				t.Fatalf("redactToken(%q) = %q, want %q", tc.path, got, tc.want)
			}
		})
	}
}

func TestParseJSONBody(t *testing.T) {
	t.Parallel()

	args := map[string]string{}
	body := `{"chat_id": 42, "text": "hi there", "reply_markup": {"inline_keyboard": []}, "flag": true}`
	if err := parseJSONBody(strings.NewReader(body), args); err != nil {
		t.Fatalf("parseJSONBody: %v", err)
	}

	// Строки разворачиваются как есть, остальное остаётся сырым JSON.
	want := map[string]string{
		"chat_id":      "42",
		"text":         "hi there",
		"reply_markup": `{"inline_keyboard": []}`,
		"flag":         "true",
	}
	for k, v := range want {
		if args[k] != v {
			t.Fatalf("args[%q] = %q, want %q", k, args[k], v)
		}
	}
}

func TestParseJSONBodyErrors(t *testing.T) {
	t.Parallel()

	if err := parseJSONBody(strings.NewReader(""), map[string]string{}); err != nil {
		t.Fatalf("empty body: %v, want nil", err)
	}
	if err := parseJSONBody(strings.NewReader("{broken"), map[string]string{}); err == nil || err.Code != 400 {
		t.Fatalf("broken body err = %v, want 400", err)
	}
}
