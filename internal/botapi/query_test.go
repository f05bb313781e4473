package botapi_test

import (
	"context"
	"encoding/json"
	"testing"

	"telegram-botapi-gateway/internal/botapi"
)

func TestQueryMethodLowercased(t *testing.T) {
	t.Parallel()

	q := botapi.NewQuery("SendMessage", nil, nil)
	if q.Method() != "sendmessage" {
		t.Fatalf("Method() = %q, want %q", q.Method(), "sendmessage")
	}
}

func TestQueryIntArg(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		args map[string]string
		want int64
	}{
		{name: "missing", args: nil, want: 10},
		{name: "empty", args: map[string]string{"limit": ""}, want: 10},
		{name: "garbage", args: map[string]string{"limit": "abc"}, want: 10},
		{name: "plain", args: map[string]string{"limit": "50"}, want: 50},
		{name: "clampLow", args: map[string]string{"limit": "-3"}, want: 1},
		{name: "clampHigh", args: map[string]string{"limit": "500"}, want: 100},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			q := botapi.NewQuery("getupdates", tc.args, nil)
			if got := q.IntArg("limit", 10, 1, 100); got != tc.want {
				t.Fatalf("IntArg() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestQueryBoolArg(t *testing.T) {
	t.Parallel()

	q := botapi.NewQuery("m", map[string]string{
		"a": "true", "b": "1", "c": "Yes", "d": "false", "e": "junk",
	}, nil)
	for name, want := range map[string]bool{"a": true, "b": true, "c": true, "d": false, "e": false, "f": false} {
		if got := q.BoolArg(name); got != want {
			t.Fatalf("BoolArg(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestQueryJSONArg(t *testing.T) {
	t.Parallel()

	q := botapi.NewQuery("m", map[string]string{
		"good": `{"x":1}`,
		"bad":  `{x}`,
	}, nil)

	var out map[string]int
	ok, err := q.JSONArg("good", &out)
	if !ok || err != nil || out["x"] != 1 {
		t.Fatalf("JSONArg(good) = %v, %v, out=%v", ok, err, out)
	}

	ok, err = q.JSONArg("missing", &out)
	if ok || err != nil {
		t.Fatalf("JSONArg(missing) = %v, %v, want false, nil", ok, err)
	}

	if _, err = q.JSONArg("bad", &out); err == nil || err.Code != 400 {
		t.Fatalf("JSONArg(bad) err = %v, want 400", err)
	}
}

func TestQueryAnswerOnce(t *testing.T) {
	t.Parallel()

	q := botapi.NewQuery("m", nil, nil)
	calls := 0
	q.OnAnswer(func() { calls++ })

	q.AnswerOK(json.RawMessage(`true`))
	q.AnswerError(botapi.Internal("late")) // игнорируется

	a := q.Await(context.Background())
	if a.Err != nil || string(a.Result) != "true" {
		t.Fatalf("Await() = %+v, want result true", a)
	}
	if calls != 1 {
		t.Fatalf("OnAnswer called %d times, want 1", calls)
	}
}

func TestQueryAwaitCancelled(t *testing.T) {
	t.Parallel()

	q := botapi.NewQuery("m", nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := q.Await(ctx)
	if a.Err == nil || a.Err.Code != 500 {
		t.Fatalf("Await(cancelled) = %+v, want 500", a)
	}
}

func TestQueryTotalFileSize(t *testing.T) {
	t.Parallel()

	q := botapi.NewQuery("m", nil, map[string]botapi.UploadedFile{
		"photo":    {FieldName: "photo", Size: 100},
		"document": {FieldName: "document", Size: 250},
	})
	if got := q.TotalFileSize(); got != 350 {
		t.Fatalf("TotalFileSize() = %d, want 350", got)
	}
	if !q.HasFiles() {
		t.Fatal("HasFiles() = false, want true")
	}
}
