package client

// Очереди разрешения: пер-ключевые последовательные очереди, гарантирующие,
// что перед эмиссией апдейта (или ответом на запрос) догружены зависимые
// данные — отвеченное сообщение, имена наборов стикеров, базовое сообщение
// callback-запроса, user id бота из login-url кнопки. Инвариант: на ключ —
// не больше одного незавершённого нативного запроса (защёлка hasActiveRequest).

import (
	"go.uber.org/zap"

	"telegram-botapi-gateway/internal/botapi"
	"telegram-botapi-gateway/internal/tdapi"
)

// resolveQueue — последовательная очередь одного ключа.
type resolveQueue[T any] struct {
	items            []T
	hasActiveRequest bool
}

// prefetch — один недостающий шаг: команда и применение её ответа.
type prefetch struct {
	req   tdapi.Request
	apply func(tdapi.Response)
}

// --- Новые сообщения -------------------------------------------------------

// messageToResolve — элемент new_message_queue.
type messageToResolve struct {
	msg      *tdapi.Message
	isEdited bool

	triedReply      bool
	triedContentSet bool
	triedReplySet   bool
}

// enqueueNewMessage ставит сообщение в очередь чата и пинает обработку,
// если защёлка свободна.
func (c *Client) enqueueNewMessage(msg *tdapi.Message, isEdited bool) {
	q := c.newMessageQueues[msg.ChatID]
	if q == nil {
		q = &resolveQueue[*messageToResolve]{}
		c.newMessageQueues[msg.ChatID] = q
	}
	q.items = append(q.items, &messageToResolve{msg: msg, isEdited: isEdited})
	if !q.hasActiveRequest {
		c.processNewMessageQueue(msg.ChatID)
	}
}

// processNewMessageQueue дренирует очередь чата: для головы выполняет
// недостающие шаги по одному, затем эмитирует и переходит к следующей.
func (c *Client) processNewMessageQueue(chatID int64) {
	q := c.newMessageQueues[chatID]
	if q == nil {
		return
	}
	for len(q.items) > 0 {
		item := q.items[0]
		if p := c.nextMessagePrefetch(item); p != nil {
			q.hasActiveRequest = true
			c.sendRequest(p.req, func(resp tdapi.Response) {
				p.apply(resp)
				q.hasActiveRequest = false
				c.processNewMessageQueue(chatID)
			})
			return
		}
		q.items = q.items[1:]
		c.emitMessageUpdate(item.msg, item.isEdited)
	}
	delete(c.newMessageQueues, chatID)
}

// nextMessagePrefetch возвращает первый недостающий шаг подготовки сообщения
// либо nil, когда всё на месте. Флаги tried* гарантируют прогресс при ошибках:
// неудачный шаг не повторяется, апдейт уходит с частичной информацией.
func (c *Client) nextMessagePrefetch(item *messageToResolve) *prefetch {
	msg := item.msg

	if !item.triedReply && msg.ReplyTo != nil && msg.ReplyTo.ChatID == msg.ChatID &&
		c.cache.Message(msg.ChatID, msg.ReplyTo.MessageID) == nil {
		item.triedReply = true
		return &prefetch{
			req: tdapi.GetRepliedMessage{ChatID: msg.ChatID, MessageID: msg.ID},
			apply: func(resp tdapi.Response) {
				if m, ok := resp.Result.(*tdapi.Message); ok {
					c.cache.PutMessage(m)
				}
			},
		}
	}

	if !item.triedContentSet {
		item.triedContentSet = true
		if p := c.stickerSetPrefetch(tdapi.StickerSetID(msg.Content)); p != nil {
			return p
		}
	}

	if !item.triedReplySet && msg.ReplyTo != nil {
		item.triedReplySet = true
		if replied := c.cache.Message(msg.ReplyTo.ChatID, msg.ReplyTo.MessageID); replied != nil {
			if p := c.stickerSetPrefetch(tdapi.StickerSetID(replied.Content)); p != nil {
				return p
			}
		}
	}
	return nil
}

// stickerSetPrefetch строит шаг гидратации имени набора стикеров; nil, если
// набор неизвестен сообщению либо имя уже в кэше.
func (c *Client) stickerSetPrefetch(setID int64) *prefetch {
	if setID == 0 || c.cache.StickerSetName(setID) != "" {
		return nil
	}
	return &prefetch{
		req: tdapi.GetStickerSet{SetID: setID},
		apply: func(resp tdapi.Response) {
			if s, ok := resp.Result.(*tdapi.StickerSet); ok {
				c.cache.PutStickerSetName(s.ID, s.Name)
			} else if resp.Err != nil {
				c.log.Debug("sticker set fetch failed",
					zap.Int64("set_id", setID), zap.String("error", resp.Err.Message))
			}
		},
	}
}

// --- Бизнес-сообщения ------------------------------------------------------

// businessMessageToResolve — элемент new_business_message_queue.
type businessMessageToResolve struct {
	connectionID string
	msg          *tdapi.Message
	isEdited     bool

	triedContentSet bool
	triedReplySet   bool
}

func (c *Client) enqueueBusinessMessage(connectionID string, msg *tdapi.Message, isEdited bool) {
	q := c.businessMessageQueues[connectionID]
	if q == nil {
		q = &resolveQueue[*businessMessageToResolve]{}
		c.businessMessageQueues[connectionID] = q
	}
	q.items = append(q.items, &businessMessageToResolve{connectionID: connectionID, msg: msg, isEdited: isEdited})
	if !q.hasActiveRequest {
		c.processBusinessMessageQueue(connectionID)
	}
}

func (c *Client) processBusinessMessageQueue(connectionID string) {
	q := c.businessMessageQueues[connectionID]
	if q == nil {
		return
	}
	for len(q.items) > 0 {
		item := q.items[0]
		if p := c.nextBusinessMessagePrefetch(item); p != nil {
			q.hasActiveRequest = true
			c.sendRequest(p.req, func(resp tdapi.Response) {
				p.apply(resp)
				q.hasActiveRequest = false
				c.processBusinessMessageQueue(connectionID)
			})
			return
		}
		q.items = q.items[1:]
		c.emitBusinessMessageUpdate(item.connectionID, item.msg, item.isEdited)
	}
	delete(c.businessMessageQueues, connectionID)
}

// nextBusinessMessagePrefetch: бизнес-сообщение несёт ответное сообщение в
// себе, поэтому догружаются только имена наборов стикеров.
func (c *Client) nextBusinessMessagePrefetch(item *businessMessageToResolve) *prefetch {
	if !item.triedContentSet {
		item.triedContentSet = true
		if p := c.stickerSetPrefetch(tdapi.StickerSetID(item.msg.Content)); p != nil {
			return p
		}
	}
	if !item.triedReplySet && item.msg.BusinessReplyTo != nil {
		item.triedReplySet = true
		if p := c.stickerSetPrefetch(tdapi.StickerSetID(item.msg.BusinessReplyTo.Content)); p != nil {
			return p
		}
	}
	return nil
}

// --- Callback-запросы ------------------------------------------------------

// Стадии подготовки callback-запроса.
const (
	callbackStateMessage = iota // выбрать базовое сообщение
	callbackStateReply          // выбрать отвеченное сообщение
	callbackStateStickers       // гидратировать имена наборов
)

// callbackToResolve — элемент new_callback_query_queue.
type callbackToResolve struct {
	ev    tdapi.UpdateNewCallbackQuery
	state int

	messageUnavailable bool
	triedReply         bool
	triedBaseSet       bool
	triedReplySet      bool
}

func (c *Client) enqueueCallbackQuery(ev tdapi.UpdateNewCallbackQuery) {
	q := c.callbackQueues[ev.SenderUserID]
	if q == nil {
		q = &resolveQueue[*callbackToResolve]{}
		c.callbackQueues[ev.SenderUserID] = q
	}
	q.items = append(q.items, &callbackToResolve{ev: ev})
	if !q.hasActiveRequest {
		c.processCallbackQueue(ev.SenderUserID)
	}
}

func (c *Client) processCallbackQueue(userID int64) {
	q := c.callbackQueues[userID]
	if q == nil {
		return
	}
	for len(q.items) > 0 {
		item := q.items[0]
		if p := c.nextCallbackPrefetch(item); p != nil {
			q.hasActiveRequest = true
			c.sendRequest(p.req, func(resp tdapi.Response) {
				p.apply(resp)
				q.hasActiveRequest = false
				c.processCallbackQueue(userID)
			})
			return
		}
		q.items = q.items[1:]
		if item.messageUnavailable {
			// Базовое сообщение недоступно: callback-запрос отдать нечем.
			c.log.Debug("dropping callback query without base message",
				zap.Int64("chat_id", item.ev.ChatID), zap.Int64("message_id", item.ev.MessageID))
			continue
		}
		c.emitCallbackQuery(item.ev)
	}
	delete(c.callbackQueues, userID)
}

// nextCallbackPrefetch — трёхстадийная машина подготовки callback-запроса.
func (c *Client) nextCallbackPrefetch(item *callbackToResolve) *prefetch {
	ev := item.ev

	if item.state == callbackStateMessage {
		item.state = callbackStateReply
		if c.cache.Message(ev.ChatID, ev.MessageID) == nil {
			return &prefetch{
				req: tdapi.GetCallbackQueryMessage{
					ChatID: ev.ChatID, MessageID: ev.MessageID, CallbackQueryID: ev.ID,
				},
				apply: func(resp tdapi.Response) {
					if m, ok := resp.Result.(*tdapi.Message); ok {
						c.cache.PutMessage(m)
					} else {
						item.messageUnavailable = true
					}
				},
			}
		}
	}

	base := c.cache.Message(ev.ChatID, ev.MessageID)
	if base == nil {
		item.messageUnavailable = true
		return nil
	}

	if item.state == callbackStateReply {
		item.state = callbackStateStickers
		if !item.triedReply && base.ReplyTo != nil && base.ReplyTo.ChatID == base.ChatID &&
			c.cache.Message(base.ChatID, base.ReplyTo.MessageID) == nil {
			item.triedReply = true
			return &prefetch{
				req: tdapi.GetRepliedMessage{ChatID: base.ChatID, MessageID: base.ID},
				apply: func(resp tdapi.Response) {
					if m, ok := resp.Result.(*tdapi.Message); ok {
						c.cache.PutMessage(m)
					}
				},
			}
		}
	}

	if !item.triedBaseSet {
		item.triedBaseSet = true
		if p := c.stickerSetPrefetch(tdapi.StickerSetID(base.Content)); p != nil {
			return p
		}
	}
	if !item.triedReplySet && base.ReplyTo != nil {
		item.triedReplySet = true
		if replied := c.cache.Message(base.ReplyTo.ChatID, base.ReplyTo.MessageID); replied != nil {
			if p := c.stickerSetPrefetch(tdapi.StickerSetID(replied.Content)); p != nil {
				return p
			}
		}
	}
	return nil
}

// --- Бизнес-callback-запросы ----------------------------------------------

// businessCallbackToResolve — элемент одношаговой очереди: сообщение встроено
// в событие, догружаются только имена наборов стикеров.
type businessCallbackToResolve struct {
	ev tdapi.UpdateNewBusinessCallbackQuery

	triedContentSet bool
	triedReplySet   bool
}

func (c *Client) enqueueBusinessCallbackQuery(ev tdapi.UpdateNewBusinessCallbackQuery) {
	q := c.businessCallbackQueues[ev.SenderUserID]
	if q == nil {
		q = &resolveQueue[*businessCallbackToResolve]{}
		c.businessCallbackQueues[ev.SenderUserID] = q
	}
	q.items = append(q.items, &businessCallbackToResolve{ev: ev})
	if !q.hasActiveRequest {
		c.processBusinessCallbackQueue(ev.SenderUserID)
	}
}

func (c *Client) processBusinessCallbackQueue(userID int64) {
	q := c.businessCallbackQueues[userID]
	if q == nil {
		return
	}
	for len(q.items) > 0 {
		item := q.items[0]
		if p := c.nextBusinessCallbackPrefetch(item); p != nil {
			q.hasActiveRequest = true
			c.sendRequest(p.req, func(resp tdapi.Response) {
				p.apply(resp)
				q.hasActiveRequest = false
				c.processBusinessCallbackQueue(userID)
			})
			return
		}
		q.items = q.items[1:]
		c.emitBusinessCallbackQuery(item.ev)
	}
	delete(c.businessCallbackQueues, userID)
}

func (c *Client) nextBusinessCallbackPrefetch(item *businessCallbackToResolve) *prefetch {
	if item.ev.Message == nil {
		return nil
	}
	if !item.triedContentSet {
		item.triedContentSet = true
		if p := c.stickerSetPrefetch(tdapi.StickerSetID(item.ev.Message.Content)); p != nil {
			return p
		}
	}
	if !item.triedReplySet && item.ev.Message.BusinessReplyTo != nil {
		item.triedReplySet = true
		if p := c.stickerSetPrefetch(tdapi.StickerSetID(item.ev.Message.BusinessReplyTo.Content)); p != nil {
			return p
		}
	}
	return nil
}

// --- Разрешение @username login-url кнопок ---------------------------------

// pendingBotResolve — запрос, ожидающий разрешения имён ботов из login-url
// кнопок. pendingCount падает по мере прихода ответов; первый «не бот /
// не найден» проваливает запрос.
type pendingBotResolve struct {
	q         *botapi.Query
	usernames map[string]bool
	pending   int
	done      func(markup tdapi.ReplyMarkup)
	markup    tdapi.ReplyMarkup
	failed    bool
}

// tempLoginID выдаёт (или возвращает существующий) отрицательный временный id
// для неразрешённого @username: монотонные кратные 1000.
func (c *Client) tempLoginID(username string) int64 {
	if id, ok := c.tempUsernameIDs[username]; ok {
		return id
	}
	c.nextTempUsernameID -= 1000
	id := c.nextTempUsernameID
	c.tempUsernameIDs[username] = id
	c.tempUsernameByID[id] = username
	return id
}

// resolveBotUsernames разрешает все временные id в markup. Когда все имена уже
// известны, done вызывается синхронно; иначе — по мере прихода ответов
// searchPublicChat. При провале разрешения запрос отвечается ошибкой, done не
// вызывается.
func (c *Client) resolveBotUsernames(q *botapi.Query, markup tdapi.ReplyMarkup, done func(tdapi.ReplyMarkup)) {
	unresolved := c.collectUnresolvedUsernames(markup)
	if len(unresolved) == 0 {
		if m, err := c.rewriteLoginIDs(markup); err != nil {
			q.AnswerError(err)
		} else {
			done(m)
		}
		return
	}

	pr := &pendingBotResolve{
		q:         q,
		usernames: make(map[string]bool, len(unresolved)),
		pending:   len(unresolved),
		done:      done,
		markup:    markup,
	}
	for _, username := range unresolved {
		pr.usernames[username] = true
		first := len(c.usernameWaiters[username]) == 0
		c.usernameWaiters[username] = append(c.usernameWaiters[username], pr)
		if first {
			c.searchBotUsername(username)
		}
	}
}

// collectUnresolvedUsernames возвращает имена из markup, ещё не имеющие записи
// в resolvedBots.
func (c *Client) collectUnresolvedUsernames(markup tdapi.ReplyMarkup) []string {
	kb, ok := markup.(*tdapi.InlineKeyboard)
	if !ok {
		return nil
	}
	var out []string
	seen := map[string]bool{}
	for _, row := range kb.Rows {
		for _, btn := range row {
			login, ok := btn.Kind.(tdapi.ButtonLoginURL)
			if !ok {
				continue
			}
			username := c.tempUsernameByID[-abs64(login.ID)]
			if username == "" {
				continue
			}
			if _, resolved := c.resolvedBots[username]; !resolved && !seen[username] {
				seen[username] = true
				out = append(out, username)
			}
		}
	}
	return out
}

// searchBotUsername выполняет searchPublicChat и уведомляет всех ожидателей.
func (c *Client) searchBotUsername(username string) {
	c.sendRequest(tdapi.SearchPublicChat{Username: username}, func(resp tdapi.Response) {
		var botID int64
		if chat, ok := resp.Result.(*tdapi.Chat); ok {
			if private, ok := chat.Kind.(tdapi.ChatKindPrivate); ok {
				if u := c.cache.User(private.UserID); u != nil && u.Kind == tdapi.UserKindBot {
					botID = private.UserID
				}
			}
		}
		c.resolvedBots[username] = botID

		waiters := c.usernameWaiters[username]
		delete(c.usernameWaiters, username)
		for _, pr := range waiters {
			if pr.failed {
				continue
			}
			if botID == 0 {
				pr.failed = true
				pr.q.AnswerError(botapi.BadRequestf("bot %q not found", username))
				continue
			}
			pr.pending--
			if pr.pending == 0 {
				if m, err := c.rewriteLoginIDs(pr.markup); err != nil {
					pr.q.AnswerError(err)
				} else {
					pr.done(m)
				}
			}
		}
	})
}

// rewriteLoginIDs заменяет временные id login-url кнопок на реальные user id,
// сохраняя знаковый бит request_write_access.
func (c *Client) rewriteLoginIDs(markup tdapi.ReplyMarkup) (tdapi.ReplyMarkup, *botapi.Error) {
	kb, ok := markup.(*tdapi.InlineKeyboard)
	if !ok {
		return markup, nil
	}
	for i, row := range kb.Rows {
		for j, btn := range row {
			login, ok := btn.Kind.(tdapi.ButtonLoginURL)
			if !ok {
				continue
			}
			username := c.tempUsernameByID[-abs64(login.ID)]
			if username == "" {
				continue
			}
			botID := c.resolvedBots[username]
			if botID == 0 {
				return nil, botapi.BadRequestf("bot %q not found", username)
			}
			newID := botID
			if login.ID < 0 {
				newID = -botID
			}
			login.ID = newID
			kb.Rows[i][j].Kind = login
		}
	}
	return kb, nil
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
