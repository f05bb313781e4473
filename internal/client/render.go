package client

// Рендер объектов кэша в JSON формы Bot API. Идентификаторы чатов нативный
// клиент уже отдаёт во внешней форме (отрицательные для групп и каналов),
// внутренние id сообщений ужимаются сдвигом в 32-битные внешние.

import (
	"encoding/json"
	"strconv"

	"go.uber.org/zap"

	"telegram-botapi-gateway/internal/tdapi"
)

// renderMessageJSON сериализует сообщение в форму Bot API.
func (c *Client) renderMessageJSON(msg *tdapi.Message) json.RawMessage {
	raw, err := json.Marshal(c.renderMessage(msg, true))
	if err != nil {
		c.log.Error("encode message", zap.Error(err))
		return json.RawMessage(`{}`)
	}
	return raw
}

// renderMessage строит объект сообщения. withReply управляет вложением
// reply_to_message: вложенное сообщение рендерится без собственного ответа.
func (c *Client) renderMessage(msg *tdapi.Message, withReply bool) map[string]any {
	m := map[string]any{
		"message_id": asClientMessageID(msg.ID),
		"date":       msg.Date,
		"chat":       c.renderChatRef(msg.ChatID),
	}
	if msg.SenderUserID != 0 {
		m["from"] = c.renderUserRef(msg.SenderUserID)
	}
	if msg.SenderChatID != 0 {
		m["sender_chat"] = c.renderChatRef(msg.SenderChatID)
	}
	if msg.IsTopicMessage && msg.ThreadID != 0 {
		m["message_thread_id"] = asClientMessageID(msg.ThreadID)
		m["is_topic_message"] = true
	}
	if msg.ViaBotUserID != 0 {
		m["via_bot"] = c.renderUserRef(msg.ViaBotUserID)
	}
	if msg.EditDate != 0 {
		m["edit_date"] = msg.EditDate
	}
	if msg.AuthorSignature != "" {
		m["author_signature"] = msg.AuthorSignature
	}
	if msg.MediaAlbumID != 0 {
		m["media_group_id"] = strconv.FormatInt(msg.MediaAlbumID, 10)
	}
	if msg.EffectID != 0 {
		m["effect_id"] = strconv.FormatInt(msg.EffectID, 10)
	}
	if msg.IsFromOffline {
		m["is_from_offline"] = true
	}
	if !msg.CanBeSaved {
		m["has_protected_content"] = true
	}
	if msg.SenderBoostCount != 0 {
		m["sender_boost_count"] = msg.SenderBoostCount
	}
	if msg.ForwardOrigin != nil {
		m["forward_origin"] = c.renderForwardOrigin(msg.ForwardOrigin, msg.InitialSendDate)
	}
	if withReply && msg.ReplyTo != nil && msg.ReplyTo.ChatID == msg.ChatID {
		if replied := c.cache.Message(msg.ReplyTo.ChatID, msg.ReplyTo.MessageID); replied != nil {
			m["reply_to_message"] = c.renderMessage(replied, false)
		}
	}
	if msg.ReplyToStory != nil {
		m["reply_to_story"] = map[string]any{
			"chat": c.renderChatRef(msg.ReplyToStory.SenderChatID),
			"id":   msg.ReplyToStory.StoryID,
		}
	}
	if msg.BusinessConnectionID != "" {
		m["business_connection_id"] = msg.BusinessConnectionID
		if msg.BusinessReplyTo != nil && withReply {
			m["reply_to_message"] = c.renderMessage(msg.BusinessReplyTo, false)
		}
	}
	if msg.BusinessSenderBotID != 0 {
		m["sender_business_bot"] = c.renderUserRef(msg.BusinessSenderBotID)
	}
	c.renderContentInto(m, msg.ChatID, msg.Content)
	if markup := renderInlineKeyboard(msg.ReplyMarkup); markup != nil {
		m["reply_markup"] = markup
	}
	return m
}

// renderContentInto раскладывает контент по полям объекта сообщения.
func (c *Client) renderContentInto(m map[string]any, chatID int64, content tdapi.MessageContent) {
	switch v := content.(type) {
	case tdapi.ContentText:
		m["text"] = v.Text
	case tdapi.ContentSticker:
		sticker := map[string]any{
			"emoji":       v.Emoji,
			"is_animated": v.IsAnimated,
			"is_video":    v.IsVideo,
		}
		if name := c.cache.StickerSetName(v.SetID); name != "" {
			sticker["set_name"] = name
		}
		m["sticker"] = sticker
	case tdapi.ContentPhoto:
		// Просроченное фото рендерится пустым списком размеров.
		m["photo"] = []any{}
		if v.Caption != "" {
			m["caption"] = v.Caption
		}
	case tdapi.ContentVideo:
		m["video"] = map[string]any{}
		if v.Caption != "" {
			m["caption"] = v.Caption
		}
	case tdapi.ContentGame:
		m["game"] = map[string]any{"title": v.Title}
	case tdapi.ContentNewChatMembers:
		members := make([]any, 0, len(v.UserIDs))
		for _, id := range v.UserIDs {
			members = append(members, c.renderUserRef(id))
		}
		m["new_chat_members"] = members
	case tdapi.ContentChatMemberLeft:
		m["left_chat_member"] = c.renderUserRef(v.UserID)
	case tdapi.ContentPinnedMessage:
		if pinned := c.cache.Message(chatID, v.MessageID); pinned != nil {
			m["pinned_message"] = c.renderMessage(pinned, false)
		}
	case tdapi.ContentRaw:
		mergeRawJSON(m, v.JSON, c.log)
	}
}

// mergeRawJSON вливает поля готового JSON-объекта в карту сообщения.
func mergeRawJSON(m map[string]any, raw json.RawMessage, log *zap.Logger) {
	if len(raw) == 0 {
		return
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		log.Warn("malformed raw content", zap.Error(err))
		return
	}
	for k, v := range fields {
		m[k] = v
	}
}

// renderUserRef — объект пользователя; для неизвестного — только id.
func (c *Client) renderUserRef(userID int64) map[string]any {
	u := c.cache.User(userID)
	if u == nil {
		return map[string]any{"id": userID, "first_name": "", "is_bot": false}
	}
	m := map[string]any{
		"id":         u.ID,
		"is_bot":     u.Kind == tdapi.UserKindBot,
		"first_name": u.FirstName,
	}
	if u.LastName != "" {
		m["last_name"] = u.LastName
	}
	if len(u.ActiveUsernames) > 0 {
		m["username"] = u.ActiveUsernames[0]
	}
	if u.LanguageCode != "" {
		m["language_code"] = u.LanguageCode
	}
	if u.IsPremium {
		m["is_premium"] = true
	}
	if u.AddedToAttachmentMenu {
		m["added_to_attachment_menu"] = true
	}
	return m
}

// renderChatRef — компактный объект чата для конверта сообщения.
func (c *Client) renderChatRef(chatID int64) map[string]any {
	m := map[string]any{"id": chatID}
	chat := c.cache.Chat(chatID)
	if chat == nil {
		m["type"] = "private"
		return m
	}
	switch kind := chat.Kind.(type) {
	case tdapi.ChatKindPrivate:
		m["type"] = "private"
		if u := c.cache.User(kind.UserID); u != nil {
			m["first_name"] = u.FirstName
			if u.LastName != "" {
				m["last_name"] = u.LastName
			}
			if len(u.ActiveUsernames) > 0 {
				m["username"] = u.ActiveUsernames[0]
			}
		}
	case tdapi.ChatKindGroup:
		m["type"] = "group"
		m["title"] = chat.Title
	case tdapi.ChatKindSupergroup:
		if kind.IsChannel {
			m["type"] = "channel"
		} else {
			m["type"] = "supergroup"
		}
		m["title"] = chat.Title
		if sg := c.cache.Supergroup(kind.SupergroupID); sg != nil {
			if len(sg.ActiveUsernames) > 0 {
				m["username"] = sg.ActiveUsernames[0]
			}
			if sg.IsForum {
				m["is_forum"] = true
			}
		}
	default:
		m["type"] = "private"
	}
	return m
}

// renderChatFull — развёрнутый объект чата для getChat.
func (c *Client) renderChatFull(chatID int64) map[string]any {
	m := c.renderChatRef(chatID)
	chat := c.cache.Chat(chatID)
	if chat == nil {
		return m
	}
	if chat.MessageAutoDeleteTime != 0 {
		m["message_auto_delete_time"] = chat.MessageAutoDeleteTime
	}
	if chat.HasProtectedContent {
		m["has_protected_content"] = true
	}
	if chat.MaxReactionCount != 0 {
		m["max_reaction_count"] = chat.MaxReactionCount
	}
	if chat.AccentColorID != 0 {
		m["accent_color_id"] = chat.AccentColorID
	}
	if len(chat.AvailableReactions) > 0 {
		reactions := make([]any, 0, len(chat.AvailableReactions))
		for _, r := range chat.AvailableReactions {
			reactions = append(reactions, map[string]any{"type": "emoji", "emoji": r})
		}
		m["available_reactions"] = reactions
	}

	switch kind := chat.Kind.(type) {
	case tdapi.ChatKindPrivate:
		if u := c.cache.User(kind.UserID); u != nil {
			if u.Bio != "" {
				m["bio"] = u.Bio
			}
			if u.HasPrivateForwards {
				m["has_private_forwards"] = true
			}
			if u.HasRestrictedVoiceAndVideoMessages {
				m["has_restricted_voice_and_video_messages"] = true
			}
			if u.PersonalChatID != 0 {
				m["personal_chat"] = c.renderChatRef(u.PersonalChatID)
			}
		}
	case tdapi.ChatKindGroup:
		m["permissions"] = chat.Permissions
		if g := c.cache.Group(kind.GroupID); g != nil {
			if g.Description != "" {
				m["description"] = g.Description
			}
			if g.InviteLink != "" {
				m["invite_link"] = g.InviteLink
			}
		}
	case tdapi.ChatKindSupergroup:
		if !kind.IsChannel {
			m["permissions"] = chat.Permissions
		}
		if sg := c.cache.Supergroup(kind.SupergroupID); sg != nil {
			if len(sg.ActiveUsernames) > 1 {
				m["active_usernames"] = sg.ActiveUsernames
			}
			if sg.Description != "" {
				m["description"] = sg.Description
			}
			if sg.InviteLink != "" {
				m["invite_link"] = sg.InviteLink
			}
			if sg.SlowModeDelay != 0 {
				m["slow_mode_delay"] = sg.SlowModeDelay
			}
			if sg.UnrestrictBoostCount != 0 {
				m["unrestrict_boost_count"] = sg.UnrestrictBoostCount
			}
			if sg.LinkedChatID != 0 {
				m["linked_chat_id"] = sg.LinkedChatID
			}
			if sg.Location != nil {
				m["location"] = map[string]any{
					"location": map[string]any{
						"latitude":  sg.Location.Latitude,
						"longitude": sg.Location.Longitude,
					},
					"address": sg.Location.Address,
				}
			}
			if sg.JoinToSendMessages {
				m["join_to_send_messages"] = true
			}
			if sg.JoinByRequest {
				m["join_by_request"] = true
			}
			if name := c.cache.StickerSetName(sg.StickerSetID); name != "" {
				m["sticker_set_name"] = name
			}
			if name := c.cache.StickerSetName(sg.CustomEmojiStickerSetID); name != "" {
				m["custom_emoji_sticker_set_name"] = name
			}
			if sg.CanSetStickerSet {
				m["can_set_sticker_set"] = true
			}
			if sg.HasHiddenMembers {
				m["has_hidden_members"] = true
			}
			if sg.HasAggressiveAntiSpamEnabled {
				m["has_aggressive_anti_spam_enabled"] = true
			}
			if sg.IsAllHistoryAvailable && !kind.IsChannel {
				m["has_visible_history"] = true
			}
		}
	}
	return m
}

// renderForwardOrigin — объект происхождения пересланного сообщения.
func (c *Client) renderForwardOrigin(origin tdapi.ForwardOrigin, date int64) map[string]any {
	switch v := origin.(type) {
	case tdapi.ForwardOriginUser:
		return map[string]any{
			"type":        "user",
			"sender_user": c.renderUserRef(v.UserID),
			"date":        date,
		}
	case tdapi.ForwardOriginHiddenUser:
		return map[string]any{
			"type":             "hidden_user",
			"sender_user_name": v.Name,
			"date":             date,
		}
	case tdapi.ForwardOriginChat:
		m := map[string]any{
			"type":        "chat",
			"sender_chat": c.renderChatRef(v.ChatID),
			"date":        date,
		}
		if v.AuthorSignature != "" {
			m["author_signature"] = v.AuthorSignature
		}
		return m
	case tdapi.ForwardOriginChannel:
		m := map[string]any{
			"type":       "channel",
			"chat":       c.renderChatRef(v.ChatID),
			"message_id": asClientMessageID(v.MessageID),
			"date":       date,
		}
		if v.AuthorSignature != "" {
			m["author_signature"] = v.AuthorSignature
		}
		return m
	}
	return nil
}

// renderInlineKeyboard — inline-клавиатура сообщения; прочая разметка в
// объекте сообщения Bot API не показывается.
func renderInlineKeyboard(markup tdapi.ReplyMarkup) map[string]any {
	kb, ok := markup.(*tdapi.InlineKeyboard)
	if !ok {
		return nil
	}
	rows := make([][]map[string]any, 0, len(kb.Rows))
	for _, row := range kb.Rows {
		out := make([]map[string]any, 0, len(row))
		for _, btn := range row {
			b := map[string]any{"text": btn.Text}
			switch kind := btn.Kind.(type) {
			case tdapi.ButtonURL:
				b["url"] = kind.URL
			case tdapi.ButtonCallback:
				b["callback_data"] = string(kind.Data)
			case tdapi.ButtonLoginURL:
				login := map[string]any{"url": kind.URL}
				if kind.ForwardText != "" {
					login["forward_text"] = kind.ForwardText
				}
				b["login_url"] = login
			case tdapi.ButtonSwitchInline:
				if kind.CurrentChat {
					b["switch_inline_query_current_chat"] = kind.Query
				} else {
					b["switch_inline_query"] = kind.Query
				}
			case tdapi.ButtonWebApp:
				b["web_app"] = map[string]any{"url": kind.URL}
			case tdapi.ButtonPay:
				b["pay"] = true
			}
			out = append(out, b)
		}
		rows = append(rows, out)
	}
	return map[string]any{"inline_keyboard": rows}
}

// renderChatMemberStatus — имя статуса участника в терминах Bot API.
func renderChatMemberStatus(s tdapi.ChatMemberStatus) string {
	switch s {
	case tdapi.ChatMemberStatusCreator:
		return "creator"
	case tdapi.ChatMemberStatusAdministrator:
		return "administrator"
	case tdapi.ChatMemberStatusRestricted:
		return "restricted"
	case tdapi.ChatMemberStatusLeft:
		return "left"
	case tdapi.ChatMemberStatusKicked:
		return "kicked"
	default:
		return "member"
	}
}
