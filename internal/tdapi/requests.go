package tdapi

// Команды шине. Типизированы команды ядра (отправка, правка, выборка зависимых
// данных, авторизация, файлы); «длинный хвост» административных методов едет
// через Generic: имя нативного метода + поля.

// OptionValue — значение опции нативного клиента.
type OptionValue interface{ isOptionValue() }

// OptionInteger — целочисленная опция.
type OptionInteger struct{ Value int64 }

// OptionString — строковая опция.
type OptionString struct{ Value string }

// OptionBoolean — булева опция.
type OptionBoolean struct{ Value bool }

// OptionEmpty — сброшенная опция.
type OptionEmpty struct{}

func (OptionInteger) isOptionValue() {}
func (OptionString) isOptionValue()  {}
func (OptionBoolean) isOptionValue() {}
func (OptionEmpty) isOptionValue()   {}

// SetTdlibParameters — инициализация нативного клиента.
type SetTdlibParameters struct {
	DatabaseDirectory string
	UseTestDC         bool
	APIID             int
	APIHash           string
	DeviceModel       string
	ApplicationVersion string
}

// SetOption — установка опции нативного клиента.
type SetOption struct {
	Name  string
	Value OptionValue
}

// CheckAuthenticationBotToken — вход по токену бота.
type CheckAuthenticationBotToken struct{ Token string }

// GetMe — запрос собственного пользователя.
type GetMe struct{}

// LogOut — выход с удалением данных на сервере.
type LogOut struct{}

// Close — закрытие нативного клиента.
type Close struct{}

// SendOptions — общие опции отправки.
type SendOptions struct {
	DisableNotification bool
	ProtectContent      bool
	EffectID            int64
	PaidStarCount       int64
}

// SendMessage — отправка одного сообщения.
type SendMessage struct {
	ChatID      int64
	ThreadID    int64
	ReplyTo     *ReplyToMessage
	Options     SendOptions
	Content     MessageContent
	ReplyMarkup ReplyMarkup
	BusinessConnectionID string
}

// SendMessageAlbum — отправка медиагруппы.
type SendMessageAlbum struct {
	ChatID   int64
	ThreadID int64
	ReplyTo  *ReplyToMessage
	Options  SendOptions
	Contents []MessageContent
	BusinessConnectionID string
}

// ForwardMessages — пересылка или копирование сообщений.
type ForwardMessages struct {
	ChatID        int64
	ThreadID      int64
	FromChatID    int64
	MessageIDs    []int64
	Options       SendOptions
	SendCopy      bool
	RemoveCaption bool
}

// EditMessageText — правка текста.
type EditMessageText struct {
	ChatID      int64
	MessageID   int64
	Content     MessageContent
	ReplyMarkup ReplyMarkup
}

// EditMessageMedia — замена медиа.
type EditMessageMedia struct {
	ChatID      int64
	MessageID   int64
	Content     MessageContent
	ReplyMarkup ReplyMarkup
}

// EditMessageCaption — правка подписи.
type EditMessageCaption struct {
	ChatID      int64
	MessageID   int64
	Caption     string
	ReplyMarkup ReplyMarkup
}

// EditMessageReplyMarkup — замена клавиатуры.
type EditMessageReplyMarkup struct {
	ChatID      int64
	MessageID   int64
	ReplyMarkup ReplyMarkup
}

// DeleteMessages — удаление сообщений.
type DeleteMessages struct {
	ChatID     int64
	MessageIDs []int64
}

// GetMessage — выборка сообщения по id.
type GetMessage struct {
	ChatID    int64
	MessageID int64
}

// GetRepliedMessage — выборка сообщения, на которое отвечают.
type GetRepliedMessage struct {
	ChatID    int64
	MessageID int64
}

// GetCallbackQueryMessage — выборка базового сообщения callback-запроса.
type GetCallbackQueryMessage struct {
	ChatID          int64
	MessageID       int64
	CallbackQueryID int64
}

// GetChat — выборка чата по id.
type GetChat struct{ ChatID int64 }

// GetStickerSet — выборка набора стикеров (ради имени).
type GetStickerSet struct{ SetID int64 }

// SearchPublicChat — разрешение @username в чат/пользователя.
type SearchPublicChat struct{ Username string }

// GetRemoteFile — выборка файла по remote id.
type GetRemoteFile struct{ FileID string }

// DownloadFile — запуск скачивания файла.
type DownloadFile struct {
	FileID   int32
	Priority int32
}

// Generic — команда «длинного хвоста»: имя нативного метода и поля.
// Ответ приходит как RawResult и пробрасывается в Bot API прозрачно.
type Generic struct {
	Method string
	Fields map[string]any
}

func (SetTdlibParameters) isRequest()          {}
func (SetOption) isRequest()                   {}
func (CheckAuthenticationBotToken) isRequest() {}
func (GetMe) isRequest()                       {}
func (LogOut) isRequest()                      {}
func (Close) isRequest()                       {}
func (SendMessage) isRequest()                 {}
func (SendMessageAlbum) isRequest()            {}
func (ForwardMessages) isRequest()             {}
func (EditMessageText) isRequest()             {}
func (EditMessageMedia) isRequest()            {}
func (EditMessageCaption) isRequest()          {}
func (EditMessageReplyMarkup) isRequest()      {}
func (DeleteMessages) isRequest()              {}
func (GetMessage) isRequest()                  {}
func (GetRepliedMessage) isRequest()           {}
func (GetCallbackQueryMessage) isRequest()     {}
func (GetChat) isRequest()                     {}
func (GetStickerSet) isRequest()               {}
func (SearchPublicChat) isRequest()            {}
func (GetRemoteFile) isRequest()               {}
func (DownloadFile) isRequest()                {}
func (Generic) isRequest()                     {}
