package botapi_test

import (
	"testing"

	"telegram-botapi-gateway/internal/botapi"
)

func TestNewErrorPrefixing(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		code    int
		message string
		want    string
	}{
		{name: "lowercased", code: 400, message: "Chat not found", want: "Bad Request: chat not found"},
		{name: "alreadyLower", code: 400, message: "chat not found", want: "Bad Request: chat not found"},
		{name: "alreadyPrefixed", code: 400, message: "Bad Request: chat not found", want: "Bad Request: chat not found"},
		{name: "constantKept", code: 400, message: "FLOOD_WAIT_3", want: "Bad Request: FLOOD_WAIT_3"},
		{name: "shortConstant", code: 400, message: "A_B", want: "Bad Request: A_B"},
		{name: "unauthorized", code: 401, message: "Unauthorized", want: "Unauthorized"},
		{name: "internal", code: 500, message: "Restart", want: "Internal Server Error: restart"},
		{name: "unknownCode", code: 418, message: "whatever", want: "whatever"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := botapi.NewError(tc.code, tc.message)
			if got.Code != tc.code || got.Message != tc.want {
				t.Fatalf("NewError(%d, %q) = {%d %q}, want {%d %q}",
					tc.code, tc.message, got.Code, got.Message, tc.code, tc.want)
			}
		})
	}
}

func TestTranslateNative(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		code       int
		message    string
		wantCode   int
		wantMsg    string
		wantRetry  int
	}{
		{
			name: "synonym", code: 400, message: "CHAT_NOT_FOUND",
			wantCode: 400, wantMsg: "Bad Request: chat not found",
		},
		{
			name: "synonymOverridesCode", code: 406, message: "USER_IS_BLOCKED",
			wantCode: 403, wantMsg: "Forbidden: bot was blocked by the user",
		},
		{
			name: "floodWithRetry", code: 429, message: "Too Many Requests: retry after 17",
			wantCode: 429, wantMsg: "Too Many Requests: retry after 17", wantRetry: 17,
		},
		{
			name: "floodWithoutRetry", code: 429, message: "FLOOD_PREMIUM_WAIT",
			wantCode: 429, wantMsg: "Too Many Requests: retry after 0",
		},
		{
			name: "serverError", code: 500, message: "Request aborted",
			wantCode: 500, wantMsg: "Internal Server Error: request aborted",
		},
		{
			name: "unknownBecomesBadRequest", code: 0, message: "MESSAGE_EMPTY",
			wantCode: 400, wantMsg: "Bad Request: MESSAGE_EMPTY",
		},
		{
			name: "conflictKept", code: 409, message: "Conflict: terminated by setWebhook request",
			wantCode: 409, wantMsg: "Conflict: terminated by setWebhook request",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := botapi.TranslateNative(tc.code, tc.message)
			if got.Code != tc.wantCode || got.Message != tc.wantMsg || got.RetryAfter != tc.wantRetry {
				t.Fatalf("TranslateNative(%d, %q) = {%d %q retry=%d}, want {%d %q retry=%d}",
					tc.code, tc.message, got.Code, got.Message, got.RetryAfter,
					tc.wantCode, tc.wantMsg, tc.wantRetry)
			}
		})
	}
}
