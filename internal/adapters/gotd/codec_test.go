package gotd

import (
	"testing"

	"github.com/gotd/td/tg"
)

func TestFileRefRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		ref  fileRef
	}{
		{
			name: "photo",
			ref: fileRef{
				Kind:          fileKindPhoto,
				ID:            123456789,
				AccessHash:    -987654321,
				FileReference: []byte{1, 2, 3, 4},
				ThumbSize:     "x",
				Size:          2048,
			},
		},
		{
			name: "documentNoReference",
			ref: fileRef{
				Kind:          fileKindDocument,
				ID:            1,
				AccessHash:    2,
				FileReference: []byte{},
			},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			encoded := encodeFileRef(tc.ref)
			got, err := decodeFileRef(encoded)
			if err != nil {
				t.Fatalf("decodeFileRef: %v", err)
			}
			if got.Kind != tc.ref.Kind || got.ID != tc.ref.ID || got.AccessHash != tc.ref.AccessHash ||
				got.ThumbSize != tc.ref.ThumbSize || got.Size != tc.ref.Size ||
				string(got.FileReference) != string(tc.ref.FileReference) {
				t.Fatalf("round trip = %+v, want %+v", got, tc.ref)
			}
		})
	}
}

func TestDecodeFileRefRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "!!!", "AQ", "not base64 at all ***"} {
		if _, err := decodeFileRef(s); err == nil {
			t.Fatalf("decodeFileRef(%q) succeeded, want error", s)
		}
	}
}

func TestUniqueFileID(t *testing.T) {
	t.Parallel()

	a := fileRef{Kind: fileKindPhoto, ID: 7, AccessHash: 100, FileReference: []byte{1}}
	b := fileRef{Kind: fileKindPhoto, ID: 7, AccessHash: 200, FileReference: []byte{2}, ThumbSize: "m"}
	c := fileRef{Kind: fileKindDocument, ID: 7}

	if uniqueFileID(a) != uniqueFileID(b) {
		t.Fatal("unique id must ignore access hash and file reference")
	}
	if uniqueFileID(a) == uniqueFileID(c) {
		t.Fatal("unique id must distinguish file kinds")
	}
}

func TestChatIDFromPeer(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		peer tg.PeerClass
		want int64
	}{
		{name: "user", peer: &tg.PeerUser{UserID: 42}, want: 42},
		{name: "basicGroup", peer: &tg.PeerChat{ChatID: 42}, want: -42},
		{name: "channel", peer: &tg.PeerChannel{ChannelID: 42}, want: zeroChannelID - 42},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := chatIDFromPeer(tc.peer); got != tc.want {
				t.Fatalf("chatIDFromPeer = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestChannelIDFromChat(t *testing.T) {
	t.Parallel()

	if id, ok := channelIDFromChat(zeroChannelID - 42); !ok || id != 42 {
		t.Fatalf("channelIDFromChat(channel) = %d, %v", id, ok)
	}
	if _, ok := channelIDFromChat(42); ok {
		t.Fatal("user id mistaken for channel")
	}
	if _, ok := channelIDFromChat(-42); ok {
		t.Fatal("basic group id mistaken for channel")
	}
}

func TestMessageIDMapping(t *testing.T) {
	t.Parallel()

	for _, id := range []int{1, 42, 1 << 20} {
		if got := mtprotoMessageID(internalMessageID(id)); got != id {
			t.Fatalf("message id round trip of %d = %d", id, got)
		}
	}
}

func TestPeerStoreInputPeer(t *testing.T) {
	t.Parallel()

	s := newPeerStore()
	s.putUser(&tg.User{ID: 10, AccessHash: 111})
	s.putChat(&tg.Chat{ID: 20})
	s.putChat(&tg.Channel{ID: 30, AccessHash: 333})

	if p, ok := s.inputPeer(10); !ok {
		t.Fatal("user peer not found")
	} else if u, ok := p.(*tg.InputPeerUser); !ok || u.AccessHash != 111 {
		t.Fatalf("user peer = %#v", p)
	}

	if p, ok := s.inputPeer(-20); !ok {
		t.Fatal("chat peer not found")
	} else if c, ok := p.(*tg.InputPeerChat); !ok || c.ChatID != 20 {
		t.Fatalf("chat peer = %#v", p)
	}

	if p, ok := s.inputPeer(zeroChannelID - 30); !ok {
		t.Fatal("channel peer not found")
	} else if ch, ok := p.(*tg.InputPeerChannel); !ok || ch.AccessHash != 333 {
		t.Fatalf("channel peer = %#v", p)
	}

	// Неизвестные пользователи и каналы не резолвятся.
	if _, ok := s.inputPeer(999); ok {
		t.Fatal("unknown user resolved")
	}
	if _, ok := s.inputPeer(zeroChannelID - 999); ok {
		t.Fatal("unknown channel resolved")
	}
}
