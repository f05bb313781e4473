package tdapi

// Контент сообщений и inline-клавиатуры — запечатанные суммы.
// Шлюзу не нужен полный перечень контента нативного клиента: значимы текст,
// стикеры (ради имени набора), сервисные сообщения из белого списка эмиссии и
// контент из списка отклонения (§ фильтрация ингестора). Остальное едет как
// ContentRaw и сериализуется прозрачно.

import "encoding/json"

// MessageContent — контент сообщения.
type MessageContent interface{ isMessageContent() }

// ContentText — текстовое сообщение.
type ContentText struct {
	Text string
}

// ContentSticker — стикер; SetID используется для гидратации имени набора.
type ContentSticker struct {
	SetID  int64
	Emoji  string
	IsAnimated bool
	IsVideo    bool
}

// ContentPhoto — фотография. IsExpired — фото, уже удалённое сервером.
type ContentPhoto struct {
	IsExpired bool
	Caption   string
}

// ContentVideo — видео. IsExpired — просроченное видео.
type ContentVideo struct {
	IsExpired bool
	Caption   string
}

// ContentGame — игра.
type ContentGame struct {
	Title string
}

// ContentGameScore — сервисное сообщение об очках игры. Не эмитируется.
type ContentGameScore struct {
	GameMessageID int64
	Score         int32
}

// ContentPaymentSuccessful — сервисное сообщение об успешном платеже. Не эмитируется.
type ContentPaymentSuccessful struct {
	InvoicePayload string
	Currency       string
	TotalAmount    int64
}

// ContentCall — сообщение о звонке. Не эмитируется.
type ContentCall struct {
	Duration int32
}

// ContentContactRegistered — «пользователь зарегистрировался». Не эмитируется.
type ContentContactRegistered struct{}

// ContentPassportDataSent — паспортные данные отправлены. Не эмитируется.
type ContentPassportDataSent struct{}

// ContentNewChatMembers — сервисное сообщение о вступлении; в белом списке эмиссии.
type ContentNewChatMembers struct {
	UserIDs []int64
}

// ContentChatMemberLeft — сервисное сообщение о выходе; в белом списке эмиссии.
type ContentChatMemberLeft struct {
	UserID int64
}

// ContentPinnedMessage — сервисное сообщение о закрепе; в белом списке эмиссии.
type ContentPinnedMessage struct {
	MessageID int64
}

// ContentRaw — прочий контент, сериализуемый прозрачно: тип + готовый JSON.
type ContentRaw struct {
	Type string
	JSON json.RawMessage
}

func (ContentText) isMessageContent()              {}
func (ContentSticker) isMessageContent()           {}
func (ContentPhoto) isMessageContent()             {}
func (ContentVideo) isMessageContent()             {}
func (ContentGame) isMessageContent()              {}
func (ContentGameScore) isMessageContent()         {}
func (ContentPaymentSuccessful) isMessageContent() {}
func (ContentCall) isMessageContent()              {}
func (ContentContactRegistered) isMessageContent() {}
func (ContentPassportDataSent) isMessageContent()  {}
func (ContentNewChatMembers) isMessageContent()    {}
func (ContentChatMemberLeft) isMessageContent()    {}
func (ContentPinnedMessage) isMessageContent()     {}
func (ContentRaw) isMessageContent()               {}

// StickerSetID возвращает id набора стикеров, если контент — стикер; иначе 0.
func StickerSetID(c MessageContent) int64 {
	if s, ok := c.(ContentSticker); ok {
		return s.SetID
	}
	return 0
}

// ReplyMarkup — клавиатура сообщения.
type ReplyMarkup interface{ isReplyMarkup() }

// InlineKeyboard — inline-клавиатура.
type InlineKeyboard struct {
	Rows [][]InlineButton
}

// RawMarkup — прочая разметка (reply-клавиатуры и т.п.), прозрачный JSON.
type RawMarkup struct {
	JSON json.RawMessage
}

func (*InlineKeyboard) isReplyMarkup() {}
func (*RawMarkup) isReplyMarkup()      {}

// InlineButton — кнопка inline-клавиатуры.
type InlineButton struct {
	Text string
	Kind InlineButtonKind
}

// InlineButtonKind — вариант действия кнопки.
type InlineButtonKind interface{ isInlineButtonKind() }

// ButtonURL — открыть URL.
type ButtonURL struct{ URL string }

// ButtonCallback — callback-кнопка с произвольными данными.
type ButtonCallback struct{ Data []byte }

// ButtonLoginURL — login-url кнопка. ID кодирует пользователя-бота; знак
// несёт бит request_write_access, отрицательные значения кратные 1000 —
// временные идентификаторы неразрешённых @username (см. client/resolve).
type ButtonLoginURL struct {
	URL         string
	ID          int64
	ForwardText string
}

// ButtonSwitchInline — переключение в inline-режим.
type ButtonSwitchInline struct {
	Query          string
	CurrentChat    bool
}

// ButtonWebApp — кнопка Web App.
type ButtonWebApp struct{ URL string }

// ButtonPay — платёжная кнопка.
type ButtonPay struct{}

func (ButtonURL) isInlineButtonKind()          {}
func (ButtonCallback) isInlineButtonKind()     {}
func (ButtonLoginURL) isInlineButtonKind()     {}
func (ButtonSwitchInline) isInlineButtonKind() {}
func (ButtonWebApp) isInlineButtonKind()       {}
func (ButtonPay) isInlineButtonKind()          {}
