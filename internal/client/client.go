package client

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"telegram-botapi-gateway/internal/botapi"
	"telegram-botapi-gateway/internal/infra/fsched"
	"telegram-botapi-gateway/internal/infra/throttle"
	"telegram-botapi-gateway/internal/tdapi"
	"telegram-botapi-gateway/internal/tqueue"
	"telegram-botapi-gateway/internal/webhookdb"
)

// MaxConcurrentlySentChatMessages — потолок одновременно неотправленных
// сообщений в один чат; сверх него отправка получает синтетический 429.
const MaxConcurrentlySentChatMessages = 1000

// sharedUnixTimeOffset — общий для процесса сдвиг unix-времени нативных
// клиентов относительно локальных часов. Продвигается только вперёд.
var sharedUnixTimeOffset atomic.Int64

// advanceSharedUnixTimeOffset поднимает общий сдвиг до offset, если тот больше.
func advanceSharedUnixTimeOffset(offset int64) {
	for {
		cur := sharedUnixTimeOffset.Load()
		if offset <= cur || sharedUnixTimeOffset.CompareAndSwap(cur, offset) {
			return
		}
	}
}

// Stats — счётчики бота, разделяемые с актором статистики.
type Stats interface {
	RequestServed()
	UpdateEmitted()
	UpdatesPerMinute() int
}

// WebhookEvents — колбэки жизненного цикла webhook-актора. Реализация обязана
// доставлять их в почтовый ящик Client (фабрика оборачивает их в post).
type WebhookEvents struct {
	Verified func(cachedIP string)
	Success  func()
	Error    func(status int, description string)
	Closed   func(status int)
}

// WebhookTarget — параметры запускаемого webhook-актора.
type WebhookTarget struct {
	URL            string
	MaxConnections int
	IPAddress      string
	FixIPAddress   bool
	SecretToken    string
	CertPath       string // путь до cert.pem; пусто — без клиентского сертификата
}

// WebhookDelivery — ручка запущенного webhook-актора.
type WebhookDelivery interface {
	// Notify будит актора: в TQueue появилось новое событие.
	Notify()
	// Close начинает остановку; завершение придёт колбэком Closed.
	Close()
}

// WebhookFactory создаёт и запускает webhook-актора для цели target.
type WebhookFactory func(botID string, target WebhookTarget, events WebhookEvents) WebhookDelivery

// Options — зависимости и параметры Client. Все коллабораторы передаются
// конструктору: синглтонов в ядре нет.
type Options struct {
	Token     string
	BotUserID int64 // числовой префикс токена
	Dir       string
	APIID     int
	APIHash   string
	TestDC    bool
	LocalMode bool

	Bus            tdapi.Bus
	Queue          *tqueue.Store
	WebhookDB      *webhookdb.DB
	WebhookFactory WebhookFactory
	Stats          Stats
	FS             *fsched.Scheduler
	Pacer          *throttle.UploadPacer

	StartTime time.Time // запуск процесса; первые 60 секунд админission смягчён
	Log       *zap.Logger
}

// Client — актор одного бота. Все поля состояния принадлежат горутине run;
// извне допустимы только post/Execute и чтение канала Done.
type Client struct {
	opts Options
	log  *zap.Logger

	mailbox chan func()
	done    chan struct{}
	stopped atomic.Bool
	wg      sync.WaitGroup

	now func() time.Time

	cache *Cache

	// Реестр ожидающих запросов и очередь команд (до готовности авторизации).
	nextRequestID uint64
	pending       map[uint64]func(tdapi.Response)
	cmdQueue      []*botapi.Query

	// FSM авторизации и закрытия.
	authState       tdapi.AuthState
	authorized      bool
	wasAuthorized   bool
	loggingOut      bool
	closing         bool
	clearTQueue     bool
	apiIDInvalid    bool
	nextAuthAttempt time.Time
	finishedFlag    bool
	loginBackoff    backoff.BackOff
	myID            int64

	// Значения process-wide опций нативного клиента.
	groupAnonymousBotUserID int64
	channelBotUserID        int64
	serviceNotificationsChatID int64
	authorizationDate       int64
	unixTimeOffset          int64
	lastSyncErrorAt         time.Time
	disconnectedAt          time.Time

	// Буфер апдейтов до завершения авторизации.
	preAuthBuffer []tdapi.Event

	// Маска допущенных видов апдейтов.
	allowedUpdateTypes uint32

	// Трекер отправки.
	yetUnsent       map[messageKey]sentRef // (chat, temp_id) -> часть агрегата
	yetUnsentCount  map[int64]int         // chat -> число неотправленных
	sendQueries     map[uint64]*pendingSend
	nextSendQueryID uint64

	// Очереди разрешения.
	newMessageQueues       map[int64]*resolveQueue[*messageToResolve]
	businessMessageQueues  map[string]*resolveQueue[*businessMessageToResolve]
	callbackQueues         map[int64]*resolveQueue[*callbackToResolve]
	businessCallbackQueues map[int64]*resolveQueue[*businessCallbackToResolve]

	// Разрешение @username login-url кнопок.
	tempUsernameIDs    map[string]int64
	tempUsernameByID   map[int64]string
	nextTempUsernameID int64
	resolvedBots       map[string]int64 // username -> user id; 0 — «не бот/не найден»
	usernameWaiters    map[string][]*pendingBotResolve

	// Long-poll.
	parked          *parkedGetUpdates
	cursor          uint64 // первый невыданный id TQueue
	lastPollOffset  int64
	lastPollAt      time.Time

	// Webhook.
	webhook webhookState

	// Слушатели скачивания файлов: file id -> ожидающие запросы getFile.
	downloadListeners map[int32][]*botapi.Query

	// Лимитер.
	activeRequests    int
	activeUploadBytes int64
	activeUploadCount int
}

// New создаёт Client. Запуск — Run; до него актор не живёт.
func New(opts Options) *Client {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		opts:    opts,
		log:     log,
		mailbox: make(chan func(), 1024),
		done:    make(chan struct{}),
		now:     time.Now,
		cache:   newCache(),

		pending: make(map[uint64]func(tdapi.Response)),

		allowedUpdateTypes: defaultAllowedUpdateTypes,

		yetUnsent:      make(map[messageKey]sentRef),
		yetUnsentCount: make(map[int64]int),
		sendQueries:    make(map[uint64]*pendingSend),

		newMessageQueues:       make(map[int64]*resolveQueue[*messageToResolve]),
		businessMessageQueues:  make(map[string]*resolveQueue[*businessMessageToResolve]),
		callbackQueues:         make(map[int64]*resolveQueue[*callbackToResolve]),
		businessCallbackQueues: make(map[int64]*resolveQueue[*businessCallbackToResolve]),

		tempUsernameIDs:  make(map[string]int64),
		tempUsernameByID: make(map[int64]string),
		resolvedBots:     make(map[string]int64),
		usernameWaiters:  make(map[string][]*pendingBotResolve),

		downloadListeners: make(map[int32][]*botapi.Query),
	}
	c.myID = opts.BotUserID
	return c
}

// Done закрывается после полного завершения актора.
func (c *Client) Done() <-chan struct{} { return c.done }

// Run запускает мост шины и цикл актора; блокируется до остановки.
// Отмена контекста инициирует закрытие через FSM.
func (c *Client) Run(ctx context.Context) {
	defer close(c.done)

	busCtx, busCancel := context.WithCancel(context.Background())
	defer busCancel()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.opts.Bus.Run(busCtx); err != nil && busCtx.Err() == nil {
			c.log.Warn("native bus stopped", zap.Error(err))
		}
	}()

	events := c.opts.Bus.Events()
	for {
		select {
		case <-ctx.Done():
			// Внешняя остановка: просим нативный клиент закрыться и дорабатываем
			// до Closed штатным путём FSM.
			c.beginClose(false)
			ctx = context.Background()
		case fn := <-c.mailbox:
			fn()
		case ev, ok := <-events:
			if !ok {
				events = nil
				break
			}
			c.handleEvent(ev)
		}
		if c.finished() {
			busCancel()
			c.wg.Wait()
			c.drainMailbox()
			return
		}
	}
}

// post доставляет замыкание в почтовый ящик актора. После остановки — дроп.
func (c *Client) post(fn func()) {
	if c.stopped.Load() {
		return
	}
	select {
	case c.mailbox <- fn:
	case <-c.done:
	}
}

// drainMailbox отвечает ошибкой закрытия всем запросам, застрявшим в ящике.
func (c *Client) drainMailbox() {
	c.stopped.Store(true)
	for {
		select {
		case fn := <-c.mailbox:
			fn()
		default:
			return
		}
	}
}

// Execute принимает HTTP-запрос. Вызывается из HTTP-слоя; ответ придёт через
// q.Await. После остановки актора запрос немедленно получает ошибку закрытия.
func (c *Client) Execute(q *botapi.Query) {
	if c.stopped.Load() {
		q.AnswerError(c.closingError())
		return
	}
	c.post(func() { c.processQuery(q) })
}

// scheduleAfter постит замыкание в ящик через d. Используется для дебаунсов,
// пейсинга загрузок и таймеров long-poll; сам таймер живёт вне актора.
func (c *Client) scheduleAfter(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, func() { c.post(fn) })
}

// unixNow возвращает текущее unix-время с учётом большего из сдвигов:
// пер-клиентского и общего для процесса.
func (c *Client) unixNow() int64 {
	off := c.unixTimeOffset
	if shared := sharedUnixTimeOffset.Load(); shared > off {
		off = shared
	}
	return c.now().Unix() + off
}

// botID возвращает строковый ключ бота для TQueue (числовой id из токена).
func (c *Client) botID() string {
	return c.opts.Token
}
