package client

import "testing"

func TestAsClientMessageID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		internal int64
		want     int64
	}{
		{name: "round", internal: 5 << messageIDShift, want: 5},
		{name: "one", internal: 1 << messageIDShift, want: 1},
		{name: "notRound", internal: 5<<messageIDShift + 7, want: 0},
		{name: "zero", internal: 0, want: 0},
		{name: "negative", internal: -(3 << messageIDShift), want: 0},
		{name: "overflowsInt32", internal: (int64(1) << 40) << messageIDShift, want: 0},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := asClientMessageID(tc.internal); got != tc.want {
				t.Fatalf("asClientMessageID(%d) = %d, want %d", tc.internal, got, tc.want)
			}
		})
	}
}

func TestAsTdlibMessageID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		external int64
		want     int64
	}{
		{name: "plain", external: 7, want: 7 << messageIDShift},
		{name: "maxInt32", external: maxClientMessageID, want: maxClientMessageID << messageIDShift},
		{name: "zero", external: 0, want: 0},
		{name: "negative", external: -1, want: 0},
		{name: "tooBig", external: maxClientMessageID + 1, want: 0},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := asTdlibMessageID(tc.external); got != tc.want {
				t.Fatalf("asTdlibMessageID(%d) = %d, want %d", tc.external, got, tc.want)
			}
		})
	}
}

func TestMessageIDRoundTrip(t *testing.T) {
	t.Parallel()

	for _, ext := range []int64{1, 42, 1000000, maxClientMessageID} {
		if got := asClientMessageID(asTdlibMessageID(ext)); got != ext {
			t.Fatalf("round trip of %d = %d", ext, got)
		}
	}
}
