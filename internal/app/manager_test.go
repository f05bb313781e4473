package app

import "testing"

func TestParseToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		token  string
		wantID int64
		wantOK bool
	}{
		{name: "plain", token: "123456:ABC-def_ghi", wantID: 123456, wantOK: true},
		{name: "noColon", token: "123456", wantOK: false},
		{name: "emptyID", token: ":secret", wantOK: false},
		{name: "emptySecret", token: "123:", wantOK: false},
		{name: "nonNumericID", token: "abc:secret", wantOK: false},
		{name: "zeroID", token: "0:secret", wantOK: false},
		{name: "negativeID", token: "-5:secret", wantOK: false},
		{name: "colonFirstWins", token: "12:34:56", wantID: 12, wantOK: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			id, ok := parseToken(tc.token)
			if ok != tc.wantOK || id != tc.wantID {
				t.Fatalf("parseToken(%q) = %d, %v, want %d, %v", tc.token, id, ok, tc.wantID, tc.wantOK)
			}
		})
	}
}
