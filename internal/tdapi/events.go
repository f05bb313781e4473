package tdapi

// Несолицитированные события нативного клиента. Каждому событию соответствует
// ровно один путь в ингесторе Client (internal/client/ingest.go).

// AuthState — состояние авторизации нативного клиента.
type AuthState int

const (
	AuthStateWaitTdlibParameters AuthState = iota
	AuthStateWaitPhoneNumber
	AuthStateReady
	AuthStateLoggingOut
	AuthStateClosing
	AuthStateClosed
)

// ConnectionState — состояние соединения.
type ConnectionState int

const (
	ConnectionStateReady ConnectionState = iota
	ConnectionStateConnecting
	ConnectionStateUpdating
	ConnectionStateWaitingForNetwork
)

// UpdateAuthorizationState — переход FSM авторизации.
type UpdateAuthorizationState struct{ State AuthState }

// UpdateConnectionState — смена состояния соединения.
type UpdateConnectionState struct{ State ConnectionState }

// UpdateOption — изменение process-wide опции.
type UpdateOption struct {
	Name  string
	Value OptionValue
}

// UpdateNewMessage — новое сообщение.
type UpdateNewMessage struct{ Message *Message }

// UpdateMessageEdited — правка сообщения (дата и клавиатура).
type UpdateMessageEdited struct {
	ChatID      int64
	MessageID   int64
	EditDate    int64
	ReplyMarkup ReplyMarkup
}

// UpdateMessageContent — замена контента сообщения.
type UpdateMessageContent struct {
	ChatID    int64
	MessageID int64
	Content   MessageContent
}

// UpdateDeleteMessages — удаление сообщений.
type UpdateDeleteMessages struct {
	ChatID      int64
	MessageIDs  []int64
	IsPermanent bool
}

// UpdateMessageSendSucceeded — отправка завершилась; сообщение получило
// постоянный id вместо временного.
type UpdateMessageSendSucceeded struct {
	Message      *Message
	OldMessageID int64
}

// UpdateMessageSendFailed — отправка не удалась.
type UpdateMessageSendFailed struct {
	Message      *Message
	OldMessageID int64
	Error        Error
}

// UpdateUser — упсерт пользователя.
type UpdateUser struct{ User *User }

// UpdateBasicGroup — упсерт basic group.
type UpdateBasicGroup struct{ Group *BasicGroup }

// UpdateSupergroup — упсерт супергруппы/канала.
type UpdateSupergroup struct{ Supergroup *Supergroup }

// UpdateNewChat — появление чата в поле зрения клиента.
type UpdateNewChat struct{ Chat *Chat }

// UpdateChatTitle — смена заголовка чата.
type UpdateChatTitle struct {
	ChatID int64
	Title  string
}

// UpdateChatPermissions — смена прав чата.
type UpdateChatPermissions struct {
	ChatID      int64
	Permissions ChatPermissions
}

// UpdateBusinessConnection — упсерт бизнес-соединения.
type UpdateBusinessConnection struct{ Connection *BusinessConnection }

// UpdateFile — прогресс скачивания/загрузки файла.
type UpdateFile struct{ File *File }

// UpdateNewInlineQuery — входящий inline-запрос.
type UpdateNewInlineQuery struct {
	ID           int64
	SenderUserID int64
	Query        string
	Offset       string
	ChatType     string
}

// UpdateNewChosenInlineResult — выбранный inline-результат.
type UpdateNewChosenInlineResult struct {
	SenderUserID    int64
	Query           string
	ResultID        string
	InlineMessageID string
}

// UpdateNewCallbackQuery — callback-запрос из чата.
type UpdateNewCallbackQuery struct {
	ID           int64
	SenderUserID int64
	ChatID       int64
	MessageID    int64
	ChatInstance int64
	Payload      CallbackPayload
}

// UpdateNewInlineCallbackQuery — callback-запрос из inline-сообщения.
type UpdateNewInlineCallbackQuery struct {
	ID              int64
	SenderUserID    int64
	InlineMessageID string
	ChatInstance    int64
	Payload         CallbackPayload
}

// UpdateNewBusinessCallbackQuery — callback-запрос бизнес-сообщения;
// базовое сообщение приходит в самом событии.
type UpdateNewBusinessCallbackQuery struct {
	ID           int64
	SenderUserID int64
	ConnectionID string
	Message      *Message
	ChatInstance int64
	Payload      CallbackPayload
}

// CallbackPayload — данные callback-кнопки.
type CallbackPayload interface{ isCallbackPayload() }

// CallbackPayloadData — обычные callback-данные.
type CallbackPayloadData struct{ Data []byte }

// CallbackPayloadGame — игровой callback.
type CallbackPayloadGame struct{ ShortName string }

func (CallbackPayloadData) isCallbackPayload() {}
func (CallbackPayloadGame) isCallbackPayload() {}

// UpdateNewShippingQuery — запрос адреса доставки.
type UpdateNewShippingQuery struct {
	ID              int64
	SenderUserID    int64
	InvoicePayload  string
	ShippingAddress string
}

// UpdateNewPreCheckoutQuery — pre-checkout платежа.
type UpdateNewPreCheckoutQuery struct {
	ID             int64
	SenderUserID   int64
	Currency       string
	TotalAmount    int64
	InvoicePayload []byte
}

// UpdatePoll — изменение опроса.
type UpdatePoll struct {
	PollID int64
	JSON   []byte
}

// UpdatePollAnswer — голос в опросе.
type UpdatePollAnswer struct {
	PollID    int64
	VoterUserID int64
	OptionIDs []int32
}

// UpdateChatMember — изменение статуса участника.
type UpdateChatMember struct {
	ChatID       int64
	ActorUserID  int64
	Date         int64
	UserID       int64
	IsBotMember  bool // изменение касается самого бота (my_chat_member)
	OldStatus    ChatMemberStatus
	NewStatus    ChatMemberStatus
	InviteLink   string
	ViaJoinRequest bool
}

// UpdateNewChatJoinRequest — заявка на вступление.
type UpdateNewChatJoinRequest struct {
	ChatID     int64
	UserID     int64
	UserChatID int64
	Date       int64
	Bio        string
	InviteLink string
}

// UpdateChatBoost — буст чата; Removed — буст снят.
type UpdateChatBoost struct {
	ChatID  int64
	Removed bool
	JSON    []byte
}

// UpdateMessageReaction — реакция пользователя на сообщение.
type UpdateMessageReaction struct {
	ChatID    int64
	MessageID int64
	UserID    int64
	Date      int64
	JSON      []byte
}

// UpdateMessageReactions — анонимные счётчики реакций.
type UpdateMessageReactions struct {
	ChatID    int64
	MessageID int64
	Date      int64
	JSON      []byte
}

// UpdateNewBusinessMessage — новое бизнес-сообщение.
type UpdateNewBusinessMessage struct {
	ConnectionID string
	Message      *Message
}

// UpdateBusinessMessageEdited — правка бизнес-сообщения.
type UpdateBusinessMessageEdited struct {
	ConnectionID string
	Message      *Message
}

// UpdateBusinessMessagesDeleted — удаление бизнес-сообщений.
type UpdateBusinessMessagesDeleted struct {
	ConnectionID string
	ChatID       int64
	MessageIDs   []int64
}

// UpdateNewCustomEvent — внутреннее «custom» событие сервера.
type UpdateNewCustomEvent struct{ Event []byte }

// UpdateNewCustomQuery — внутренний «custom» запрос с таймаутом.
type UpdateNewCustomQuery struct {
	ID      int64
	Data    []byte
	Timeout int32
}

func (UpdateAuthorizationState) isEvent()       {}
func (UpdateConnectionState) isEvent()          {}
func (UpdateOption) isEvent()                   {}
func (UpdateNewMessage) isEvent()               {}
func (UpdateMessageEdited) isEvent()            {}
func (UpdateMessageContent) isEvent()           {}
func (UpdateDeleteMessages) isEvent()           {}
func (UpdateMessageSendSucceeded) isEvent()     {}
func (UpdateMessageSendFailed) isEvent()        {}
func (UpdateUser) isEvent()                     {}
func (UpdateBasicGroup) isEvent()               {}
func (UpdateSupergroup) isEvent()               {}
func (UpdateNewChat) isEvent()                  {}
func (UpdateChatTitle) isEvent()                {}
func (UpdateChatPermissions) isEvent()          {}
func (UpdateBusinessConnection) isEvent()       {}
func (UpdateFile) isEvent()                     {}
func (UpdateNewInlineQuery) isEvent()           {}
func (UpdateNewChosenInlineResult) isEvent()    {}
func (UpdateNewCallbackQuery) isEvent()         {}
func (UpdateNewInlineCallbackQuery) isEvent()   {}
func (UpdateNewBusinessCallbackQuery) isEvent() {}
func (UpdateNewShippingQuery) isEvent()         {}
func (UpdateNewPreCheckoutQuery) isEvent()      {}
func (UpdatePoll) isEvent()                     {}
func (UpdatePollAnswer) isEvent()               {}
func (UpdateChatMember) isEvent()               {}
func (UpdateNewChatJoinRequest) isEvent()       {}
func (UpdateChatBoost) isEvent()                {}
func (UpdateMessageReaction) isEvent()          {}
func (UpdateMessageReactions) isEvent()         {}
func (UpdateNewBusinessMessage) isEvent()       {}
func (UpdateBusinessMessageEdited) isEvent()    {}
func (UpdateBusinessMessagesDeleted) isEvent()  {}
func (UpdateNewCustomEvent) isEvent()           {}
func (UpdateNewCustomQuery) isEvent()           {}
