package tdapi

// Объекты шины: пользователи, чаты, сообщения и их составные части.
// Клиентский кэш хранит собственные проекции этих объектов (internal/client),
// здесь — форма, в которой их отдаёт нативный клиент.

import "encoding/json"

// UserKind — вариант учётной записи.
type UserKind int

const (
	UserKindUnknown UserKind = iota
	UserKindRegular
	UserKindBot
	UserKindDeleted
)

// BotInfo — свойства бота; имеет смысл только при UserKindBot.
type BotInfo struct {
	CanJoinGroups           bool
	CanReadAllGroupMessages bool
	IsInline                bool
	InlineQueryPlaceholder  string
	CanConnectToBusiness    bool
	HasMainWebApp           bool
}

// User — пользователь или бот, как его знает нативный клиент.
type User struct {
	ID               int64
	FirstName        string
	LastName         string
	ActiveUsernames  []string
	EditableUsername string
	LanguageCode     string
	IsPremium        bool
	AddedToAttachmentMenu bool
	HaveAccess       bool
	Kind             UserKind
	Bot              *BotInfo
	ProfilePhotoID   int64
	Bio              string
	Birthdate        string
	BusinessInfo     string
	PersonalChatID   int64
	HasPrivateForwards             bool
	HasRestrictedVoiceAndVideoMessages bool
}

func (*User) isObject() {}

// ChatKind — дискриминатор вида чата.
type ChatKind interface{ isChatKind() }

// ChatKindPrivate — личный диалог с пользователем.
type ChatKindPrivate struct{ UserID int64 }

// ChatKindGroup — легаси basic group.
type ChatKindGroup struct{ GroupID int64 }

// ChatKindSupergroup — супергруппа либо канал.
type ChatKindSupergroup struct {
	SupergroupID int64
	IsChannel    bool
}

// ChatKindUnknown — заглушка, когда известен только id.
type ChatKindUnknown struct{}

func (ChatKindPrivate) isChatKind()    {}
func (ChatKindGroup) isChatKind()      {}
func (ChatKindSupergroup) isChatKind() {}
func (ChatKindUnknown) isChatKind()    {}

// ChatPermissions — права участников по умолчанию.
type ChatPermissions struct {
	CanSendMessages       bool `json:"can_send_messages"`
	CanSendAudios         bool `json:"can_send_audios"`
	CanSendDocuments      bool `json:"can_send_documents"`
	CanSendPhotos         bool `json:"can_send_photos"`
	CanSendVideos         bool `json:"can_send_videos"`
	CanSendVideoNotes     bool `json:"can_send_video_notes"`
	CanSendVoiceNotes     bool `json:"can_send_voice_notes"`
	CanSendPolls          bool `json:"can_send_polls"`
	CanSendOtherMessages  bool `json:"can_send_other_messages"`
	CanAddWebPagePreviews bool `json:"can_add_web_page_previews"`
	CanChangeInfo         bool `json:"can_change_info"`
	CanInviteUsers        bool `json:"can_invite_users"`
	CanPinMessages        bool `json:"can_pin_messages"`
	CanManageTopics       bool `json:"can_manage_topics"`
}

// Chat — чат любого вида.
type Chat struct {
	ID                    int64
	Title                 string
	Kind                  ChatKind
	Permissions           ChatPermissions
	PhotoSmallFileID      string
	PhotoBigFileID        string
	MessageAutoDeleteTime int32
	EmojiStatusCustomEmojiID int64
	AvailableReactions    []string
	MaxReactionCount      int32
	AccentColorID         int32
	BackgroundCustomEmojiID int64
	ProfileAccentColorID  int32
	ProfileBackgroundCustomEmojiID int64
	HasProtectedContent   bool
}

func (*Chat) isObject() {}

// ChatMemberStatus — статус бота (или пользователя) в группе.
type ChatMemberStatus int

const (
	ChatMemberStatusMember ChatMemberStatus = iota
	ChatMemberStatusCreator
	ChatMemberStatusAdministrator
	ChatMemberStatusRestricted
	ChatMemberStatusLeft
	ChatMemberStatusKicked
)

// BasicGroup — легаси группа.
type BasicGroup struct {
	ID                     int64
	MemberCount            int32
	Status                 ChatMemberStatus
	IsActive               bool
	UpgradedToSupergroupID int64
	Description            string
	InviteLink             string
	PhotoSmallFileID       string
	PhotoBigFileID         string
}

func (*BasicGroup) isObject() {}

// SupergroupLocation — геопозиция location-супергруппы.
type SupergroupLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
}

// Supergroup — супергруппа или канал.
type Supergroup struct {
	ID                       int64
	ActiveUsernames          []string
	EditableUsername         string
	Date                     int64
	Status                   ChatMemberStatus
	IsChannel                bool
	IsForum                  bool
	HasLocation              bool
	JoinToSendMessages       bool
	JoinByRequest            bool
	Description              string
	InviteLink               string
	StickerSetID             int64
	CustomEmojiStickerSetID  int64
	CanSetStickerSet         bool
	IsAllHistoryAvailable    bool
	SlowModeDelay            int32
	UnrestrictBoostCount     int32
	LinkedChatID             int64
	Location                 *SupergroupLocation
	HasHiddenMembers         bool
	HasAggressiveAntiSpamEnabled bool
}

func (*Supergroup) isObject() {}

// BusinessConnection — связь бота с бизнес-аккаунтом.
type BusinessConnection struct {
	ID         string
	UserID     int64
	UserChatID int64
	Date       int64
	CanReply   bool
	IsEnabled  bool
}

func (*BusinessConnection) isObject() {}

// ForwardOrigin — происхождение пересланного сообщения.
type ForwardOrigin interface{ isForwardOrigin() }

// ForwardOriginUser — переслано от видимого пользователя.
type ForwardOriginUser struct{ UserID int64 }

// ForwardOriginHiddenUser — отправитель скрыл себя; осталось только имя.
type ForwardOriginHiddenUser struct{ Name string }

// ForwardOriginChat — переслано от имени чата.
type ForwardOriginChat struct {
	ChatID          int64
	AuthorSignature string
}

// ForwardOriginChannel — переслано из канала.
type ForwardOriginChannel struct {
	ChatID          int64
	MessageID       int64
	AuthorSignature string
}

func (ForwardOriginUser) isForwardOrigin()       {}
func (ForwardOriginHiddenUser) isForwardOrigin() {}
func (ForwardOriginChat) isForwardOrigin()       {}
func (ForwardOriginChannel) isForwardOrigin()    {}

// ReplyToMessage — ссылка на сообщение, на которое отвечают.
type ReplyToMessage struct {
	ChatID    int64
	MessageID int64
}

// ReplyToStory — ответ на историю.
type ReplyToStory struct {
	SenderChatID int64
	StoryID      int32
}

// Message — сообщение в форме нативного клиента. Идентификаторы внутренние
// (64-битные); внешние 32-битные получаются сдвигом (см. client/messageid).
type Message struct {
	ID              int64
	ChatID          int64
	ThreadID        int64
	Date            int64
	EditDate        int64
	MediaAlbumID    int64
	ViaBotUserID    int64
	InitialSendDate int64
	ForwardOrigin   ForwardOrigin
	SenderUserID    int64
	SenderChatID    int64
	CanBeSaved      bool
	IsFromOffline   bool
	IsTopicMessage  bool
	IsOutgoing      bool
	IsChannelPost   bool
	AuthorSignature string
	SenderBoostCount int32
	EffectID        int64
	ReplyTo         *ReplyToMessage
	ReplyToStory    *ReplyToStory
	Content         MessageContent
	ReplyMarkup     ReplyMarkup
	SelfDestruct    bool
	IsImport        bool

	// Заполняются для сообщений бизнес-соединений.
	BusinessConnectionID string
	BusinessReplyTo      *Message
	BusinessSenderBotID  int64
}

func (*Message) isObject() {}

// StickerSet — минимальная проекция набора стикеров: шлюзу нужно только имя.
type StickerSet struct {
	ID    int64
	Name  string
	Title string
}

func (*StickerSet) isObject() {}

// File — файл нативного клиента.
type File struct {
	ID                 int32
	RemoteID           string
	RemoteUniqueID     string
	Size               int64
	ExpectedSize       int64
	LocalPath          string
	DownloadCompleted  bool
	DownloadingActive  bool
	DownloadError      *Error
}

func (*File) isObject() {}

// OkResult — пустой успешный ответ.
type OkResult struct{}

func (OkResult) isObject() {}

// Messages — список сообщений (ответ forward/copy и т.п.).
type Messages struct{ List []*Message }

func (*Messages) isObject() {}

// RawResult — непрозрачный JSON-результат команд «длинного хвоста», который
// шлюз пробрасывает в ответ Bot API без интерпретации.
type RawResult struct{ JSON json.RawMessage }

func (*RawResult) isObject() {}
