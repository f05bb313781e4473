package gotd

// Реестр пиров. MTProto требует access hash для обращения к пользователям и
// каналам; хэши собираются из сущностей апдейтов и результатов разрешения.
// Идентификаторы чатов держатся в форме нативного клиента: личный диалог —
// положительный id пользователя, basic group — отрицательный id, канал и
// супергруппа — смещение от zeroChannelID.

import (
	"sync"

	"github.com/gotd/td/tg"
)

const (
	// zeroChannelID — база идентификаторов каналов в пространстве чатов.
	zeroChannelID = int64(-1000000000000)

	// messageIDShift — сдвиг серверного id сообщения во внутреннюю форму.
	messageIDShift = 20
)

// internalMessageID переводит MTProto-id сообщения во внутреннюю 64-битную форму.
func internalMessageID(id int) int64 { return int64(id) << messageIDShift }

// mtprotoMessageID — обратное преобразование.
func mtprotoMessageID(internal int64) int { return int(internal >> messageIDShift) }

// chatIDFromPeer отображает MTProto-пира в идентификатор чата.
func chatIDFromPeer(p tg.PeerClass) int64 {
	switch p := p.(type) {
	case *tg.PeerUser:
		return p.UserID
	case *tg.PeerChat:
		return -p.ChatID
	case *tg.PeerChannel:
		return zeroChannelID - p.ChannelID
	}
	return 0
}

// channelIDFromChat выделяет id канала из идентификатора чата; false — чат
// не является каналом/супергруппой.
func channelIDFromChat(chatID int64) (int64, bool) {
	if chatID <= zeroChannelID {
		return zeroChannelID - chatID, true
	}
	return 0, false
}

// peerStore — потокобезопасный реестр access hash'ей.
type peerStore struct {
	mu          sync.Mutex
	users       map[int64]int64
	chats       map[int64]bool
	channels    map[int64]int64
	stickerSets map[int64]int64
}

func newPeerStore() *peerStore {
	return &peerStore{
		users:       make(map[int64]int64),
		chats:       make(map[int64]bool),
		channels:    make(map[int64]int64),
		stickerSets: make(map[int64]int64),
	}
}

func (s *peerStore) putUser(u *tg.User) {
	if u == nil {
		return
	}
	s.mu.Lock()
	s.users[u.ID] = u.AccessHash
	s.mu.Unlock()
}

func (s *peerStore) putChat(c tg.ChatClass) {
	switch c := c.(type) {
	case *tg.Chat:
		s.mu.Lock()
		s.chats[c.ID] = true
		s.mu.Unlock()
	case *tg.ChatForbidden:
		s.mu.Lock()
		s.chats[c.ID] = true
		s.mu.Unlock()
	case *tg.Channel:
		s.mu.Lock()
		s.channels[c.ID] = c.AccessHash
		s.mu.Unlock()
	case *tg.ChannelForbidden:
		s.mu.Lock()
		s.channels[c.ID] = c.AccessHash
		s.mu.Unlock()
	}
}

// observe собирает хэши из сущностей одного апдейта.
func (s *peerStore) observe(e tg.Entities) {
	for _, u := range e.Users {
		s.putUser(u)
	}
	for _, c := range e.Chats {
		s.mu.Lock()
		s.chats[c.ID] = true
		s.mu.Unlock()
	}
	for _, c := range e.Channels {
		s.mu.Lock()
		s.channels[c.ID] = c.AccessHash
		s.mu.Unlock()
	}
}

// inputPeer строит InputPeer по идентификатору чата; false — пир неизвестен.
func (s *peerStore) inputPeer(chatID int64) (tg.InputPeerClass, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case chatID > 0:
		hash, ok := s.users[chatID]
		if !ok {
			return nil, false
		}
		return &tg.InputPeerUser{UserID: chatID, AccessHash: hash}, true
	case chatID <= zeroChannelID:
		id := zeroChannelID - chatID
		hash, ok := s.channels[id]
		if !ok {
			return nil, false
		}
		return &tg.InputPeerChannel{ChannelID: id, AccessHash: hash}, true
	case chatID < 0:
		return &tg.InputPeerChat{ChatID: -chatID}, true
	}
	return nil, false
}

// inputUser строит InputUser; false — пользователь неизвестен.
func (s *peerStore) inputUser(userID int64) (tg.InputUserClass, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hash, ok := s.users[userID]
	if !ok {
		return nil, false
	}
	return &tg.InputUser{UserID: userID, AccessHash: hash}, true
}

// inputPeerUser строит InputPeer пользователя; false — пользователь неизвестен.
func (s *peerStore) inputPeerUser(userID int64) (tg.InputPeerClass, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hash, ok := s.users[userID]
	if !ok {
		return nil, false
	}
	return &tg.InputPeerUser{UserID: userID, AccessHash: hash}, true
}

// inputChannel строит InputChannel по идентификатору чата; false — не канал
// либо канал неизвестен.
func (s *peerStore) inputChannel(chatID int64) (tg.InputChannelClass, bool) {
	id, ok := channelIDFromChat(chatID)
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	hash, ok := s.channels[id]
	if !ok {
		return nil, false
	}
	return &tg.InputChannel{ChannelID: id, AccessHash: hash}, true
}

func (s *peerStore) putStickerSet(id, accessHash int64) {
	s.mu.Lock()
	s.stickerSets[id] = accessHash
	s.mu.Unlock()
}

func (s *peerStore) stickerSet(id int64) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hash, ok := s.stickerSets[id]
	return hash, ok
}
