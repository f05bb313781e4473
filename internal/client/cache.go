package client

// Кэш сущностей: проекции пользователей, чатов, групп, супергрупп,
// бизнес-соединений, имена наборов стикеров и снимки сообщений, ключованные
// (chat_id, message_id). Единственный писатель — ингестор апдейтов; кэш живёт
// в состоянии актора и не требует синхронизации.

import "telegram-botapi-gateway/internal/tdapi"

// messageKey — ключ кэша сообщений.
type messageKey struct {
	chatID    int64
	messageID int64
}

// Cache — кэш сущностей одного Client.
type Cache struct {
	users       map[int64]*tdapi.User
	chats       map[int64]*tdapi.Chat
	groups      map[int64]*tdapi.BasicGroup
	supergroups map[int64]*tdapi.Supergroup
	business    map[string]*tdapi.BusinessConnection
	stickerSets map[int64]string
	messages    map[messageKey]*tdapi.Message
}

// newCache создаёт пустой кэш.
func newCache() *Cache {
	return &Cache{
		users:       make(map[int64]*tdapi.User),
		chats:       make(map[int64]*tdapi.Chat),
		groups:      make(map[int64]*tdapi.BasicGroup),
		supergroups: make(map[int64]*tdapi.Supergroup),
		business:    make(map[string]*tdapi.BusinessConnection),
		stickerSets: make(map[int64]string),
		messages:    make(map[messageKey]*tdapi.Message),
	}
}

// PutUser — идемпотентный упсерт пользователя.
func (c *Cache) PutUser(u *tdapi.User) {
	if u != nil {
		c.users[u.ID] = u
	}
}

// User возвращает пользователя по id; nil, если не известен.
func (c *Cache) User(id int64) *tdapi.User { return c.users[id] }

// PutChat — упсерт чата.
func (c *Cache) PutChat(ch *tdapi.Chat) {
	if ch != nil {
		c.chats[ch.ID] = ch
	}
}

// Chat возвращает чат по id; nil, если не известен.
func (c *Cache) Chat(id int64) *tdapi.Chat { return c.chats[id] }

// EnsureChat возвращает чат, создавая заглушку с Kind=Unknown, если чат ещё
// не наблюдался: сущности создаются при первой ссылке и живут до конца Client.
func (c *Cache) EnsureChat(id int64) *tdapi.Chat {
	if ch := c.chats[id]; ch != nil {
		return ch
	}
	ch := &tdapi.Chat{ID: id, Kind: tdapi.ChatKindUnknown{}}
	c.chats[id] = ch
	return ch
}

// PutGroup — упсерт basic group.
func (c *Cache) PutGroup(g *tdapi.BasicGroup) {
	if g != nil {
		c.groups[g.ID] = g
	}
}

// Group возвращает basic group по id.
func (c *Cache) Group(id int64) *tdapi.BasicGroup { return c.groups[id] }

// PutSupergroup — упсерт супергруппы/канала.
func (c *Cache) PutSupergroup(s *tdapi.Supergroup) {
	if s != nil {
		c.supergroups[s.ID] = s
	}
}

// Supergroup возвращает супергруппу по id.
func (c *Cache) Supergroup(id int64) *tdapi.Supergroup { return c.supergroups[id] }

// PutBusinessConnection — упсерт бизнес-соединения.
func (c *Cache) PutBusinessConnection(b *tdapi.BusinessConnection) {
	if b != nil {
		c.business[b.ID] = b
	}
}

// BusinessConnection возвращает бизнес-соединение по id.
func (c *Cache) BusinessConnection(id string) *tdapi.BusinessConnection {
	return c.business[id]
}

// PutStickerSetName запоминает имя набора стикеров.
func (c *Cache) PutStickerSetName(setID int64, name string) {
	if setID != 0 && name != "" {
		c.stickerSets[setID] = name
	}
}

// StickerSetName возвращает имя набора; пустая строка — набор не гидратирован.
func (c *Cache) StickerSetName(setID int64) string { return c.stickerSets[setID] }

// PutMessage кладёт снимок сообщения. Для одного (chat_id, message_id) в кэше
// не бывает двух разных значений: повторный Put заменяет снимок целиком.
func (c *Cache) PutMessage(m *tdapi.Message) {
	if m != nil {
		c.messages[messageKey{m.ChatID, m.ID}] = m
	}
}

// Message возвращает снимок сообщения; nil, если не кэшировано.
func (c *Cache) Message(chatID, messageID int64) *tdapi.Message {
	return c.messages[messageKey{chatID, messageID}]
}

// DeleteMessage выбрасывает снимок из кэша.
func (c *Cache) DeleteMessage(chatID, messageID int64) {
	delete(c.messages, messageKey{chatID, messageID})
}

// ApplyEdit накатывает правку (дату и клавиатуру) на кэшированный снимок.
// Возвращает снимок либо nil, если сообщение не кэшировано.
func (c *Cache) ApplyEdit(chatID, messageID, editDate int64, markup tdapi.ReplyMarkup) *tdapi.Message {
	m := c.Message(chatID, messageID)
	if m == nil {
		return nil
	}
	m.EditDate = editDate
	m.ReplyMarkup = markup
	return m
}

// ApplyContent заменяет контент кэшированного снимка. Возвращает снимок и
// признак фактического изменения: побайтно идентичные правки не считаются.
func (c *Cache) ApplyContent(chatID, messageID int64, content tdapi.MessageContent) (*tdapi.Message, bool) {
	m := c.Message(chatID, messageID)
	if m == nil {
		return nil, false
	}
	if contentEqual(m.Content, content) {
		return m, false
	}
	m.Content = content
	return m, true
}

// contentEqual сравнивает контент на идентичность (для подавления пустых правок).
func contentEqual(a, b tdapi.MessageContent) bool {
	switch x := a.(type) {
	case tdapi.ContentText:
		y, ok := b.(tdapi.ContentText)
		return ok && x == y
	case tdapi.ContentSticker:
		y, ok := b.(tdapi.ContentSticker)
		return ok && x == y
	case tdapi.ContentRaw:
		y, ok := b.(tdapi.ContentRaw)
		return ok && x.Type == y.Type && string(x.JSON) == string(y.JSON)
	default:
		return false
	}
}
