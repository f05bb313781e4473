package client

// Виды апдейтов Bot API, 32-битная маска allowed_updates и построение
// webhook_queue_id. Порядок видов фиксирован: по нему кодируется
// персистентная маска, менять его нельзя.

import (
	"encoding/json"
	"strings"
)

// UpdateType — вид апдейта Bot API.
type UpdateType int

const (
	UpdateTypeMessage UpdateType = iota
	UpdateTypeEditedMessage
	UpdateTypeChannelPost
	UpdateTypeEditedChannelPost
	UpdateTypeInlineQuery
	UpdateTypeChosenInlineResult
	UpdateTypeCallbackQuery
	UpdateTypeCustomEvent
	UpdateTypeCustomQuery
	UpdateTypeShippingQuery
	UpdateTypePreCheckoutQuery
	UpdateTypePoll
	UpdateTypePollAnswer
	UpdateTypeMyChatMember
	UpdateTypeChatMember
	UpdateTypeChatJoinRequest
	UpdateTypeChatBoost
	UpdateTypeRemovedChatBoost
	UpdateTypeMessageReaction
	UpdateTypeMessageReactionCount
	UpdateTypeBusinessConnection
	UpdateTypeBusinessMessage
	UpdateTypeEditedBusinessMessage
	UpdateTypeDeletedBusinessMessages

	updateTypeCount
)

// updateTypeNames — имена видов в JSON Bot API, индекс — значение UpdateType.
var updateTypeNames = [updateTypeCount]string{
	"message",
	"edited_message",
	"channel_post",
	"edited_channel_post",
	"inline_query",
	"chosen_inline_result",
	"callback_query",
	"custom_event",
	"custom_query",
	"shipping_query",
	"pre_checkout_query",
	"poll",
	"poll_answer",
	"my_chat_member",
	"chat_member",
	"chat_join_request",
	"chat_boost",
	"removed_chat_boost",
	"message_reaction",
	"message_reaction_count",
	"business_connection",
	"business_message",
	"edited_business_message",
	"deleted_business_messages",
}

// Name возвращает имя вида апдейта в JSON Bot API.
func (t UpdateType) Name() string {
	if t < 0 || t >= updateTypeCount {
		return "unknown"
	}
	return updateTypeNames[t]
}

// defaultAllowedUpdateTypes — маска по умолчанию: все виды, кроме двух
// внутренних custom-видов.
const defaultAllowedUpdateTypes uint32 = (1<<uint32(updateTypeCount) - 1) &^
	(1<<uint32(UpdateTypeCustomEvent) | 1<<uint32(UpdateTypeCustomQuery))

// parseAllowedUpdates разбирает JSON-массив имён видов в маску.
// Пустой или нечитаемый вход даёт маску по умолчанию; неизвестные имена
// игнорируются. Пустой валидный массив тоже означает «по умолчанию».
func parseAllowedUpdates(raw string) uint32 {
	if raw == "" {
		return defaultAllowedUpdateTypes
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return defaultAllowedUpdateTypes
	}
	var mask uint32
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		for i := UpdateType(0); i < updateTypeCount; i++ {
			if i == UpdateTypeCustomEvent || i == UpdateTypeCustomQuery {
				continue
			}
			if updateTypeNames[i] == name {
				mask |= 1 << uint32(i)
			}
		}
	}
	if mask == 0 {
		return defaultAllowedUpdateTypes
	}
	return mask
}

// allowedUpdateNames возвращает имена видов, включённых в маске, в порядке enum.
// Используется в getWebhookInfo.
func allowedUpdateNames(mask uint32) []string {
	var out []string
	for i := UpdateType(0); i < updateTypeCount; i++ {
		if i == UpdateTypeCustomEvent || i == UpdateTypeCustomQuery {
			continue
		}
		if mask&(1<<uint32(i)) != 0 {
			out = append(out, updateTypeNames[i])
		}
	}
	return out
}

// Смещения webhook_queue_id по категориям: апдейты об одном субъекте в разных
// категориях должны попадать в разные очереди доставки.
const queueIDDomainShift = 33

// webhookQueueID строит 64-битную метку очереди для вида апдейта и субъекта.
// subject — chat_id, user_id или poll_id в зависимости от категории.
func webhookQueueID(t UpdateType, subject int64) int64 {
	var domain int64
	switch t {
	case UpdateTypeMessage, UpdateTypeEditedMessage, UpdateTypeChannelPost, UpdateTypeEditedChannelPost:
		domain = 0
	case UpdateTypeInlineQuery:
		domain = 1
	case UpdateTypeChosenInlineResult:
		domain = 2
	case UpdateTypeCallbackQuery:
		domain = 3
	case UpdateTypeShippingQuery, UpdateTypePreCheckoutQuery:
		domain = 4
	case UpdateTypeMyChatMember:
		domain = 5
	case UpdateTypeChatMember, UpdateTypeChatJoinRequest:
		domain = 6
	case UpdateTypeChatBoost, UpdateTypeRemovedChatBoost:
		domain = 7
	case UpdateTypeMessageReaction:
		domain = 8
	case UpdateTypeMessageReactionCount:
		domain = 9
	case UpdateTypeBusinessConnection:
		domain = 10
	case UpdateTypeBusinessMessage, UpdateTypeEditedBusinessMessage, UpdateTypeDeletedBusinessMessages:
		domain = 11
	case UpdateTypePoll, UpdateTypePollAnswer:
		domain = 0 // субъект — id опроса, домен не нужен
	default:
		domain = 0
	}
	return subject + domain<<queueIDDomainShift
}

// updateTTL возвращает срок жизни апдейта в буфере, секунды.
// Диалоговые запросы (inline, callback, платёжные) протухают быстрее сообщений.
func updateTTL(t UpdateType) int64 {
	switch t {
	case UpdateTypeInlineQuery, UpdateTypeChosenInlineResult,
		UpdateTypeCallbackQuery, UpdateTypeShippingQuery, UpdateTypePreCheckoutQuery,
		UpdateTypeCustomQuery:
		return 3600
	default:
		return 86400
	}
}
