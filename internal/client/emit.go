package client

// Эмиттер апдейтов: последняя миля перед TQueue. Проверяет маску допущенных
// видов, сериализует полезную нагрузку, отбрасывает невмещающиеся в бюджет
// события и будит доставку — webhook-актора либо запаркованный getUpdates.

import (
	"encoding/json"
	"strconv"

	"go.uber.org/zap"

	"telegram-botapi-gateway/internal/tdapi"
	"telegram-botapi-gateway/internal/tqueue"
)

// maxUpdatePayloadBytes — бюджет сериализованного апдейта.
const maxUpdatePayloadBytes = 64 << 10

// emitUpdate кладёт апдейт вида t о субъекте subject в TQueue.
func (c *Client) emitUpdate(t UpdateType, subject int64, payload map[string]any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		c.log.Error("encode update", zap.String("kind", t.Name()), zap.Error(err))
		return
	}
	c.emitRaw(t, subject, raw)
}

// emitRaw — то же с готовым JSON.
func (c *Client) emitRaw(t UpdateType, subject int64, raw json.RawMessage) {
	// Внутренние custom-виды не подчиняются маске allowed_updates.
	internal := t == UpdateTypeCustomEvent || t == UpdateTypeCustomQuery
	if !internal && c.allowedUpdateTypes&(1<<uint32(t)) == 0 {
		return
	}
	if len(raw) > maxUpdatePayloadBytes {
		c.log.Warn("update payload over budget, dropped",
			zap.String("kind", t.Name()), zap.Int("size", len(raw)))
		return
	}
	_, err := c.opts.Queue.Push(c.botID(), tqueue.Event{
		Kind:     t.Name(),
		QueueID:  webhookQueueID(t, subject),
		Payload:  raw,
		ExpireAt: c.unixNow() + updateTTL(t),
	})
	if err != nil {
		c.log.Error("push update", zap.String("kind", t.Name()), zap.Error(err))
		return
	}
	if c.opts.Stats != nil {
		c.opts.Stats.UpdateEmitted()
	}
	c.notifyDelivery()
}

// notifyDelivery будит активный канал доставки.
func (c *Client) notifyDelivery() {
	if c.webhook.delivery != nil {
		c.webhook.delivery.Notify()
		return
	}
	c.wakeLongPoll()
}

// emitMessageUpdate — message / edited_message / channel_post / edited_channel_post.
func (c *Client) emitMessageUpdate(msg *tdapi.Message, isEdited bool) {
	t := UpdateTypeMessage
	switch {
	case msg.IsChannelPost && isEdited:
		t = UpdateTypeEditedChannelPost
	case msg.IsChannelPost:
		t = UpdateTypeChannelPost
	case isEdited:
		t = UpdateTypeEditedMessage
	}
	c.emitUpdate(t, msg.ChatID, c.renderMessage(msg, true))
}

// emitBusinessMessageUpdate — business_message / edited_business_message.
func (c *Client) emitBusinessMessageUpdate(connectionID string, msg *tdapi.Message, isEdited bool) {
	t := UpdateTypeBusinessMessage
	if isEdited {
		t = UpdateTypeEditedBusinessMessage
	}
	c.emitUpdate(t, msg.ChatID, c.renderMessage(msg, true))
}

// emitDeletedBusinessMessages — deleted_business_messages.
func (c *Client) emitDeletedBusinessMessages(ev tdapi.UpdateBusinessMessagesDeleted) {
	ids := make([]int64, 0, len(ev.MessageIDs))
	for _, id := range ev.MessageIDs {
		ids = append(ids, asClientMessageID(id))
	}
	c.emitUpdate(UpdateTypeDeletedBusinessMessages, ev.ChatID, map[string]any{
		"business_connection_id": ev.ConnectionID,
		"chat":                   c.renderChatRef(ev.ChatID),
		"message_ids":            ids,
	})
}

// emitCallbackQuery — callback_query из чата; базовое сообщение уже в кэше.
func (c *Client) emitCallbackQuery(ev tdapi.UpdateNewCallbackQuery) {
	payload := map[string]any{
		"id":            strconv.FormatInt(ev.ID, 10),
		"from":          c.renderUserRef(ev.SenderUserID),
		"chat_instance": strconv.FormatInt(ev.ChatInstance, 10),
	}
	if base := c.cache.Message(ev.ChatID, ev.MessageID); base != nil {
		payload["message"] = c.renderMessage(base, true)
	}
	applyCallbackPayload(payload, ev.Payload)
	c.emitUpdate(UpdateTypeCallbackQuery, ev.SenderUserID, payload)
}

// emitInlineCallbackQuery — callback_query из inline-сообщения; подготовка
// не нужна, событие самодостаточно.
func (c *Client) emitInlineCallbackQuery(ev tdapi.UpdateNewInlineCallbackQuery) {
	payload := map[string]any{
		"id":                strconv.FormatInt(ev.ID, 10),
		"from":              c.renderUserRef(ev.SenderUserID),
		"inline_message_id": ev.InlineMessageID,
		"chat_instance":     strconv.FormatInt(ev.ChatInstance, 10),
	}
	applyCallbackPayload(payload, ev.Payload)
	c.emitUpdate(UpdateTypeCallbackQuery, ev.SenderUserID, payload)
}

// emitBusinessCallbackQuery — callback_query бизнес-сообщения.
func (c *Client) emitBusinessCallbackQuery(ev tdapi.UpdateNewBusinessCallbackQuery) {
	payload := map[string]any{
		"id":                     strconv.FormatInt(ev.ID, 10),
		"from":                   c.renderUserRef(ev.SenderUserID),
		"business_connection_id": ev.ConnectionID,
		"chat_instance":          strconv.FormatInt(ev.ChatInstance, 10),
	}
	if ev.Message != nil {
		payload["message"] = c.renderMessage(ev.Message, true)
	}
	applyCallbackPayload(payload, ev.Payload)
	c.emitUpdate(UpdateTypeCallbackQuery, ev.SenderUserID, payload)
}

func applyCallbackPayload(m map[string]any, p tdapi.CallbackPayload) {
	switch v := p.(type) {
	case tdapi.CallbackPayloadData:
		m["data"] = string(v.Data)
	case tdapi.CallbackPayloadGame:
		m["game_short_name"] = v.ShortName
	}
}

// emitInlineQuery — inline_query.
func (c *Client) emitInlineQuery(ev tdapi.UpdateNewInlineQuery) {
	payload := map[string]any{
		"id":     strconv.FormatInt(ev.ID, 10),
		"from":   c.renderUserRef(ev.SenderUserID),
		"query":  ev.Query,
		"offset": ev.Offset,
	}
	if ev.ChatType != "" {
		payload["chat_type"] = ev.ChatType
	}
	c.emitUpdate(UpdateTypeInlineQuery, ev.SenderUserID, payload)
}

// emitChosenInlineResult — chosen_inline_result.
func (c *Client) emitChosenInlineResult(ev tdapi.UpdateNewChosenInlineResult) {
	payload := map[string]any{
		"result_id": ev.ResultID,
		"from":      c.renderUserRef(ev.SenderUserID),
		"query":     ev.Query,
	}
	if ev.InlineMessageID != "" {
		payload["inline_message_id"] = ev.InlineMessageID
	}
	c.emitUpdate(UpdateTypeChosenInlineResult, ev.SenderUserID, payload)
}

// emitShippingQuery — shipping_query. Адрес приходит готовым JSON.
func (c *Client) emitShippingQuery(ev tdapi.UpdateNewShippingQuery) {
	payload := map[string]any{
		"id":              strconv.FormatInt(ev.ID, 10),
		"from":            c.renderUserRef(ev.SenderUserID),
		"invoice_payload": ev.InvoicePayload,
	}
	if ev.ShippingAddress != "" {
		payload["shipping_address"] = json.RawMessage(ev.ShippingAddress)
	}
	c.emitUpdate(UpdateTypeShippingQuery, ev.SenderUserID, payload)
}

// emitPreCheckoutQuery — pre_checkout_query.
func (c *Client) emitPreCheckoutQuery(ev tdapi.UpdateNewPreCheckoutQuery) {
	c.emitUpdate(UpdateTypePreCheckoutQuery, ev.SenderUserID, map[string]any{
		"id":              strconv.FormatInt(ev.ID, 10),
		"from":            c.renderUserRef(ev.SenderUserID),
		"currency":        ev.Currency,
		"total_amount":    ev.TotalAmount,
		"invoice_payload": string(ev.InvoicePayload),
	})
}

// emitPoll — poll; объект опроса приходит готовым JSON.
func (c *Client) emitPoll(ev tdapi.UpdatePoll) {
	c.emitRaw(UpdateTypePoll, ev.PollID, ev.JSON)
}

// emitPollAnswer — poll_answer.
func (c *Client) emitPollAnswer(ev tdapi.UpdatePollAnswer) {
	c.emitUpdate(UpdateTypePollAnswer, ev.PollID, map[string]any{
		"poll_id":    strconv.FormatInt(ev.PollID, 10),
		"user":       c.renderUserRef(ev.VoterUserID),
		"option_ids": ev.OptionIDs,
	})
}

// emitChatMember — my_chat_member либо chat_member.
func (c *Client) emitChatMember(ev tdapi.UpdateChatMember) {
	t := UpdateTypeChatMember
	if ev.IsBotMember {
		t = UpdateTypeMyChatMember
	}
	payload := map[string]any{
		"chat": c.renderChatRef(ev.ChatID),
		"from": c.renderUserRef(ev.ActorUserID),
		"date": ev.Date,
		"old_chat_member": map[string]any{
			"user":   c.renderUserRef(ev.UserID),
			"status": renderChatMemberStatus(ev.OldStatus),
		},
		"new_chat_member": map[string]any{
			"user":   c.renderUserRef(ev.UserID),
			"status": renderChatMemberStatus(ev.NewStatus),
		},
	}
	if ev.InviteLink != "" {
		payload["invite_link"] = map[string]any{"invite_link": ev.InviteLink}
	}
	if ev.ViaJoinRequest {
		payload["via_join_request"] = true
	}
	// my_chat_member упорядочивается по чату, chat_member — по затронутому
	// пользователю.
	subject := ev.ChatID
	if t == UpdateTypeChatMember {
		subject = ev.UserID
	}
	c.emitUpdate(t, subject, payload)
}

// emitChatJoinRequest — chat_join_request.
func (c *Client) emitChatJoinRequest(ev tdapi.UpdateNewChatJoinRequest) {
	payload := map[string]any{
		"chat":         c.renderChatRef(ev.ChatID),
		"from":         c.renderUserRef(ev.UserID),
		"user_chat_id": ev.UserChatID,
		"date":         ev.Date,
	}
	if ev.Bio != "" {
		payload["bio"] = ev.Bio
	}
	if ev.InviteLink != "" {
		payload["invite_link"] = map[string]any{"invite_link": ev.InviteLink}
	}
	c.emitUpdate(UpdateTypeChatJoinRequest, ev.UserID, payload)
}

// emitChatBoost — chat_boost либо removed_chat_boost; тело буста — готовый JSON.
func (c *Client) emitChatBoost(ev tdapi.UpdateChatBoost) {
	t := UpdateTypeChatBoost
	if ev.Removed {
		t = UpdateTypeRemovedChatBoost
	}
	payload := map[string]any{"chat": c.renderChatRef(ev.ChatID)}
	mergeRawJSON(payload, ev.JSON, c.log)
	c.emitUpdate(t, ev.ChatID, payload)
}

// emitMessageReaction — message_reaction.
func (c *Client) emitMessageReaction(ev tdapi.UpdateMessageReaction) {
	payload := map[string]any{
		"chat":       c.renderChatRef(ev.ChatID),
		"message_id": asClientMessageID(ev.MessageID),
		"date":       ev.Date,
	}
	if ev.UserID != 0 {
		payload["user"] = c.renderUserRef(ev.UserID)
	}
	mergeRawJSON(payload, ev.JSON, c.log)
	c.emitUpdate(UpdateTypeMessageReaction, ev.ChatID, payload)
}

// emitMessageReactionCount — message_reaction_count.
func (c *Client) emitMessageReactionCount(ev tdapi.UpdateMessageReactions) {
	payload := map[string]any{
		"chat":       c.renderChatRef(ev.ChatID),
		"message_id": asClientMessageID(ev.MessageID),
		"date":       ev.Date,
	}
	mergeRawJSON(payload, ev.JSON, c.log)
	c.emitUpdate(UpdateTypeMessageReactionCount, ev.ChatID, payload)
}

// emitBusinessConnection — business_connection.
func (c *Client) emitBusinessConnection(conn *tdapi.BusinessConnection) {
	c.emitUpdate(UpdateTypeBusinessConnection, conn.UserChatID, map[string]any{
		"id":           conn.ID,
		"user":         c.renderUserRef(conn.UserID),
		"user_chat_id": conn.UserChatID,
		"date":         conn.Date,
		"can_reply":    conn.CanReply,
		"is_enabled":   conn.IsEnabled,
	})
}

// emitCustomEvent — внутренний custom_event; тело прозрачно.
func (c *Client) emitCustomEvent(ev tdapi.UpdateNewCustomEvent) {
	c.emitRaw(UpdateTypeCustomEvent, 0, ev.Event)
}

// emitCustomQuery — внутренний custom_query.
func (c *Client) emitCustomQuery(ev tdapi.UpdateNewCustomQuery) {
	c.emitUpdate(UpdateTypeCustomQuery, 0, map[string]any{
		"query_id": strconv.FormatInt(ev.ID, 10),
		"data":     string(ev.Data),
		"timeout":  ev.Timeout,
	})
}
