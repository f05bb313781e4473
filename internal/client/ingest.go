package client

// Ингестор событий нативного клиента: единственная точка входа handleEvent.
// До завершения авторизации почти все события копятся в буфере и
// проигрываются после Ready; обрабатываются только переходы FSM, ключевые
// опции и упсерты пользователей.

import (
	"strconv"
	"time"

	"go.uber.org/zap"

	"telegram-botapi-gateway/internal/tdapi"
)

// messageFreshness — максимальный возраст эмитируемого сообщения, секунды.
const messageFreshness = 86400

// handleEvent обрабатывает одно событие шины в горутине актора.
func (c *Client) handleEvent(ev tdapi.Event) {
	switch v := ev.(type) {
	case tdapi.ResponseEvent:
		c.completeRequest(v.ID, v.Response)
		return
	case tdapi.UpdateAuthorizationState:
		c.handleAuthState(v.State)
		return
	case tdapi.UpdateConnectionState:
		c.handleConnectionState(v.State)
		return
	case tdapi.UpdateOption:
		c.handleOption(v)
		return
	case tdapi.UpdateUser:
		c.cache.PutUser(v.User)
		return
	}

	if !c.authorized {
		c.preAuthBuffer = append(c.preAuthBuffer, ev)
		return
	}
	c.handleUpdate(ev)
}

// flushPreAuthBuffer проигрывает события, накопленные до Ready.
func (c *Client) flushPreAuthBuffer() {
	buffered := c.preAuthBuffer
	c.preAuthBuffer = nil
	for _, ev := range buffered {
		c.handleUpdate(ev)
	}
}

// handleUpdate — обработка события после авторизации.
func (c *Client) handleUpdate(ev tdapi.Event) {
	switch v := ev.(type) {
	case tdapi.UpdateNewMessage:
		c.onNewMessage(v.Message)
	case tdapi.UpdateMessageEdited:
		if msg := c.cache.ApplyEdit(v.ChatID, v.MessageID, v.EditDate, v.ReplyMarkup); msg != nil {
			if c.shouldEmitMessage(msg, true) {
				c.enqueueNewMessage(msg, true)
			}
		}
	case tdapi.UpdateMessageContent:
		msg, changed := c.cache.ApplyContent(v.ChatID, v.MessageID, v.Content)
		// Непоменявшийся контент — служебный повтор, наружу не идёт.
		if msg != nil && changed && c.shouldEmitMessage(msg, true) {
			c.enqueueNewMessage(msg, true)
		}
	case tdapi.UpdateDeleteMessages:
		if v.IsPermanent {
			for _, id := range v.MessageIDs {
				c.cache.DeleteMessage(v.ChatID, id)
			}
		}
	case tdapi.UpdateMessageSendSucceeded:
		c.onSendSucceeded(v.Message, v.OldMessageID)
	case tdapi.UpdateMessageSendFailed:
		c.onSendFailed(v.Message, v.OldMessageID, v.Error)

	case tdapi.UpdateBasicGroup:
		c.cache.PutGroup(v.Group)
	case tdapi.UpdateSupergroup:
		c.cache.PutSupergroup(v.Supergroup)
	case tdapi.UpdateNewChat:
		c.cache.PutChat(v.Chat)
	case tdapi.UpdateChatTitle:
		if chat := c.cache.Chat(v.ChatID); chat != nil {
			chat.Title = v.Title
		}
	case tdapi.UpdateChatPermissions:
		if chat := c.cache.Chat(v.ChatID); chat != nil {
			chat.Permissions = v.Permissions
		}
	case tdapi.UpdateBusinessConnection:
		c.cache.PutBusinessConnection(v.Connection)
		c.emitBusinessConnection(v.Connection)
	case tdapi.UpdateFile:
		c.onFileUpdate(v.File)

	case tdapi.UpdateNewInlineQuery:
		c.emitInlineQuery(v)
	case tdapi.UpdateNewChosenInlineResult:
		c.emitChosenInlineResult(v)
	case tdapi.UpdateNewCallbackQuery:
		c.enqueueCallbackQuery(v)
	case tdapi.UpdateNewInlineCallbackQuery:
		c.emitInlineCallbackQuery(v)
	case tdapi.UpdateNewBusinessCallbackQuery:
		c.enqueueBusinessCallbackQuery(v)
	case tdapi.UpdateNewShippingQuery:
		c.emitShippingQuery(v)
	case tdapi.UpdateNewPreCheckoutQuery:
		c.emitPreCheckoutQuery(v)
	case tdapi.UpdatePoll:
		c.emitPoll(v)
	case tdapi.UpdatePollAnswer:
		c.emitPollAnswer(v)
	case tdapi.UpdateChatMember:
		c.emitChatMember(v)
	case tdapi.UpdateNewChatJoinRequest:
		c.emitChatJoinRequest(v)
	case tdapi.UpdateChatBoost:
		c.emitChatBoost(v)
	case tdapi.UpdateMessageReaction:
		c.emitMessageReaction(v)
	case tdapi.UpdateMessageReactions:
		c.emitMessageReactionCount(v)

	case tdapi.UpdateNewBusinessMessage:
		if c.shouldEmitBusinessMessage(v.Message) {
			c.enqueueBusinessMessage(v.ConnectionID, v.Message, false)
		}
	case tdapi.UpdateBusinessMessageEdited:
		if c.shouldEmitBusinessMessage(v.Message) {
			c.enqueueBusinessMessage(v.ConnectionID, v.Message, true)
		}
	case tdapi.UpdateBusinessMessagesDeleted:
		c.emitDeletedBusinessMessages(v)

	case tdapi.UpdateNewCustomEvent:
		c.emitCustomEvent(v)
	case tdapi.UpdateNewCustomQuery:
		c.emitCustomQuery(v)
	}
}

// onNewMessage — входящее (или эхо исходящего) сообщение.
func (c *Client) onNewMessage(msg *tdapi.Message) {
	// Эхо собственной незавершённой отправки: ответ придёт терминальным
	// событием отправки, эмитировать его как апдейт нельзя.
	if _, pending := c.yetUnsent[messageKey{msg.ChatID, msg.ID}]; pending {
		return
	}
	if !c.shouldEmitMessage(msg, false) {
		// Недоэмитированные сообщения всё равно кэшируются: на них могут
		// ссылаться callback-запросы и ответы.
		c.cache.PutMessage(msg)
		return
	}
	c.cache.PutMessage(msg)
	c.enqueueNewMessage(msg, false)
}

// shouldEmitMessage применяет правила фильтрации сообщений.
func (c *Client) shouldEmitMessage(msg *tdapi.Message, isEdited bool) bool {
	if msg.SelfDestruct || msg.IsImport {
		return false
	}
	date := msg.Date
	if isEdited && msg.EditDate != 0 {
		date = msg.EditDate
	}
	if c.unixNow()-date > messageFreshness {
		return false
	}
	// Бэклог супергрупп и каналов до авторизации бота не эмитируется.
	if c.authorizationDate > 0 && msg.Date < c.authorizationDate {
		if ch := c.cache.Chat(msg.ChatID); ch != nil {
			if _, super := ch.Kind.(tdapi.ChatKindSupergroup); super {
				return false
			}
		}
	}
	// Сообщения самого бота наружу не идут; исключение — сервисные события
	// из белого списка (о них боту положено знать даже о собственных).
	if msg.IsOutgoing && msg.SenderUserID == c.myID && !isServiceWhitelisted(msg.Content) {
		return false
	}
	if isRejectedContent(msg.Content) {
		return false
	}
	return true
}

// shouldEmitBusinessMessage — фильтрация бизнес-сообщений: свежесть и
// список отклонённого контента; исходящие бизнес-сообщения эмитируются.
func (c *Client) shouldEmitBusinessMessage(msg *tdapi.Message) bool {
	if msg == nil || msg.SelfDestruct {
		return false
	}
	if c.unixNow()-msg.Date > messageFreshness {
		return false
	}
	return !isRejectedContent(msg.Content)
}

// isServiceWhitelisted — сервисный контент, эмитируемый даже для исходящих.
func isServiceWhitelisted(content tdapi.MessageContent) bool {
	switch content.(type) {
	case tdapi.ContentNewChatMembers, tdapi.ContentChatMemberLeft, tdapi.ContentPinnedMessage:
		return true
	}
	return false
}

// isRejectedContent — контент, не имеющий представления в Bot API; сюда же
// просроченные фото и видео, от которых остался только факт удаления.
func isRejectedContent(content tdapi.MessageContent) bool {
	switch v := content.(type) {
	case tdapi.ContentGameScore, tdapi.ContentPaymentSuccessful, tdapi.ContentCall,
		tdapi.ContentContactRegistered, tdapi.ContentPassportDataSent:
		return true
	case tdapi.ContentPhoto:
		return v.IsExpired
	case tdapi.ContentVideo:
		return v.IsExpired
	}
	return false
}

// handleConnectionState отслеживает моменты рассинхронизации: из них строится
// last_synchronization_error_date в getWebhookInfo.
func (c *Client) handleConnectionState(state tdapi.ConnectionState) {
	switch state {
	case tdapi.ConnectionStateWaitingForNetwork, tdapi.ConnectionStateConnecting:
		if c.disconnectedAt.IsZero() {
			c.disconnectedAt = c.now()
			c.lastSyncErrorAt = c.now()
		}
	case tdapi.ConnectionStateReady:
		c.disconnectedAt = time.Time{}
	}
}

// handleOption применяет process-wide опцию нативного клиента.
func (c *Client) handleOption(ev tdapi.UpdateOption) {
	switch ev.Name {
	case "my_id":
		if id := optionInt(ev.Value); id != 0 {
			c.myID = id
		}
	case "group_anonymous_bot_user_id":
		c.groupAnonymousBotUserID = optionInt(ev.Value)
	case "channel_bot_user_id":
		c.channelBotUserID = optionInt(ev.Value)
	case "telegram_service_notifications_chat_id":
		c.serviceNotificationsChatID = optionInt(ev.Value)
	case "authorization_date":
		c.authorizationDate = optionInt(ev.Value)
	case "unix_time":
		offset := optionInt(ev.Value) - c.now().Unix()
		if offset > c.unixTimeOffset {
			c.unixTimeOffset = offset
			if c.authorized {
				advanceSharedUnixTimeOffset(offset)
			}
		}
	case "xallowed_update_types":
		// Персистентная маска допущенных видов; хранится как неотрицательное
		// 32-битное значение.
		if v := optionInt(ev.Value); v >= 0 {
			c.allowedUpdateTypes = uint32(v)
		}
	default:
		c.log.Debug("option ignored", zap.String("name", ev.Name))
	}
}

// optionInt извлекает целое значение опции; строковые значения парсятся.
func optionInt(v tdapi.OptionValue) int64 {
	switch o := v.(type) {
	case tdapi.OptionInteger:
		return o.Value
	case tdapi.OptionString:
		n, _ := strconv.ParseInt(o.Value, 10, 64)
		return n
	}
	return 0
}

// onFileUpdate будит ожидающих завершения скачивания файла.
func (c *Client) onFileUpdate(f *tdapi.File) {
	listeners := c.downloadListeners[f.ID]
	if len(listeners) == 0 {
		return
	}
	if !f.DownloadCompleted && f.DownloadError == nil {
		return
	}
	delete(c.downloadListeners, f.ID)
	for _, q := range listeners {
		c.answerFileQuery(q, f)
	}
}
