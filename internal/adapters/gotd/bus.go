// Package gotd — production-мост шины tdapi поверх MTProto-клиента gotd.
// Мост эмулирует FSM авторизации нативного клиента (параметры → токен →
// готовность), транслирует типизированные команды ядра в вызовы Telegram API
// и проецирует входящие апдейты в события tdapi. Команды «длинного хвоста»
// поддержаны выборочно; неподдержанные получают детерминированную ошибку.
package gotd

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/gotd/contrib/middleware/floodwait"
	"github.com/gotd/contrib/middleware/ratelimit"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/dcs"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"telegram-botapi-gateway/internal/tdapi"
)

const (
	// eventBuffer — ёмкость канала событий к Client-актору.
	eventBuffer = 1024

	// requestBuffer — ёмкость очереди команд мосту.
	requestBuffer = 1024

	// throttleRPS — локальный потолок частоты RPC одного бота.
	throttleRPS = 30
)

// Options — параметры моста одного бота.
type Options struct {
	Token   string
	Dir     string // каталог данных бота: сессия и скачанные файлы
	APIID   int
	APIHash string
	TestDC  bool
	Log     *zap.Logger
}

// pendingRequest — команда с корреляционным идентификатором.
type pendingRequest struct {
	id  uint64
	req tdapi.Request
}

// Bus — мост tdapi.Bus поверх gotd.
type Bus struct {
	opts Options
	log  *zap.Logger

	events   chan tdapi.Event
	requests chan pendingRequest

	// Доступ к API появляется после входа; до него команды отвечаются FSM.
	api   atomic.Pointer[tg.Client]
	peers *peerStore
	files *fileRegistry

	// FSM-эмуляция: параметры получены, вход запрошен. Под тем же мьютексом —
	// реестр объявленных ядру сущностей.
	mu          sync.Mutex
	seen        map[string]bool
	paramsSet   bool
	authStarted bool
	authDone    chan struct{} // закрывается по готовности либо провалу входа
	authErr     *tdapi.Error

	selfID atomic.Int64

	clientCancel context.CancelFunc
	closeOnce    sync.Once
	closedCh     chan struct{}
}

// New создаёт мост; запуск — Run.
func New(opts Options) *Bus {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		opts:     opts,
		log:      log,
		events:   make(chan tdapi.Event, eventBuffer),
		requests: make(chan pendingRequest, requestBuffer),
		peers:    newPeerStore(),
		files:    newFileRegistry(),
		seen:     make(map[string]bool),
		authDone: make(chan struct{}),
		closedCh: make(chan struct{}),
	}
}

// Events — поток событий моста.
func (b *Bus) Events() <-chan tdapi.Event { return b.events }

// Send ставит команду в очередь моста. Не блокирует: при переполнении очереди
// команда получает синтетическую 500.
func (b *Bus) Send(id uint64, req tdapi.Request) {
	select {
	case b.requests <- pendingRequest{id: id, req: req}:
	default:
		b.respond(id, tdapi.Response{Err: &tdapi.Error{Code: 500, Message: "Bridge queue overflow"}})
	}
}

// Run запускает цикл обработки команд; блокируется до отмены контекста и
// завершения MTProto-клиента. Канал событий закрывается на выходе.
func (b *Bus) Run(ctx context.Context) error {
	defer close(b.events)

	b.emit(tdapi.UpdateAuthorizationState{State: tdapi.AuthStateWaitTdlibParameters})

	for {
		select {
		case <-ctx.Done():
			b.beginClose()
			<-b.closedCh
			return ctx.Err()
		case pr := <-b.requests:
			b.handleRequest(ctx, pr)
		case <-b.closedCh:
			return nil
		}
	}
}

// emit доставляет событие актору; переполнение канала блокирует мост —
// актор обязан вычитывать события без длительных пауз.
func (b *Bus) emit(ev tdapi.Event) {
	b.events <- ev
}

// respond доставляет ответ на команду.
func (b *Bus) respond(id uint64, resp tdapi.Response) {
	b.emit(tdapi.ResponseEvent{ID: id, Response: resp})
}

func (b *Bus) respondOK(id uint64) {
	b.respond(id, tdapi.Response{Result: tdapi.OkResult{}})
}

func (b *Bus) respondErr(id uint64, code int, message string) {
	b.respond(id, tdapi.Response{Err: &tdapi.Error{Code: code, Message: message}})
}

// handleRequest обрабатывает одну команду. FSM-команды обслуживаются на месте,
// остальные требуют готового клиента и уходят в RPC-вызовы.
func (b *Bus) handleRequest(ctx context.Context, pr pendingRequest) {
	switch req := pr.req.(type) {
	case tdapi.SetTdlibParameters:
		b.mu.Lock()
		b.paramsSet = true
		started := b.authStarted
		b.mu.Unlock()
		b.respondOK(pr.id)
		if !started {
			b.emit(tdapi.UpdateAuthorizationState{State: tdapi.AuthStateWaitPhoneNumber})
		}
	case tdapi.SetOption:
		// Опции нативного клиента мосту не нужны; xallowed_update_types
		// хранит сам актор, остальные — тюнинг производительности tdlib.
		b.respondOK(pr.id)
	case tdapi.CheckAuthenticationBotToken:
		b.startAuth(ctx, pr.id, req.Token)
	case tdapi.Close:
		b.respondOK(pr.id)
		b.beginClose()
	case tdapi.LogOut:
		b.respondOK(pr.id)
		b.logOut(ctx)
	default:
		api := b.api.Load()
		if api == nil {
			b.respondErr(pr.id, 401, "Unauthorized")
			return
		}
		b.dispatchRPC(ctx, api, pr)
	}
}

// startAuth поднимает MTProto-клиента и выполняет вход по токену.
// Ответ на команду уходит после исхода входа.
func (b *Bus) startAuth(ctx context.Context, reqID uint64, token string) {
	b.mu.Lock()
	if b.authStarted {
		b.mu.Unlock()
		// Повторная попытка после ошибки: ждём исход текущей.
		go b.awaitAuth(reqID)
		return
	}
	b.authStarted = true
	b.mu.Unlock()

	clientCtx, cancel := context.WithCancel(context.Background())
	b.clientCancel = cancel

	go func() {
		err := b.runClient(clientCtx, token)
		if err != nil && clientCtx.Err() == nil {
			b.log.Warn("mtproto client stopped", zap.Error(err))
		}
		b.finishClose()
	}()
	go b.awaitAuth(reqID)
	_ = ctx
}

// awaitAuth отвечает на CheckAuthenticationBotToken по исходу входа.
func (b *Bus) awaitAuth(reqID uint64) {
	<-b.authDone
	b.mu.Lock()
	authErr := b.authErr
	b.mu.Unlock()
	if authErr != nil {
		b.respond(reqID, tdapi.Response{Err: authErr})
		return
	}
	b.respondOK(reqID)
}

// runClient — жизненный цикл MTProto-клиента: сессия в каталоге бота,
// floodwait и локальный ratelimit как у любого клиента gotd.
func (b *Bus) runClient(ctx context.Context, token string) error {
	dispatcher := tg.NewUpdateDispatcher()
	b.bindHandlers(&dispatcher)

	waiter := floodwait.NewWaiter()

	options := telegram.Options{
		SessionStorage: &session.FileStorage{Path: sessionPath(b.opts.Dir)},
		UpdateHandler:  dispatcher,
		Middlewares: []telegram.Middleware{
			waiter,
			ratelimit.New(rate.Limit(throttleRPS), throttleRPS*2),
		},
		OnDead: func() {
			b.emit(tdapi.UpdateConnectionState{State: tdapi.ConnectionStateConnecting})
		},
		Device: telegram.DeviceConfig{
			DeviceModel:   "server",
			SystemVersion: "botapi",
			AppVersion:    "1.0",
		},
	}
	if b.opts.TestDC {
		options.DCList = dcs.Test()
	}

	client := telegram.NewClient(b.opts.APIID, b.opts.APIHash, options)

	return waiter.Run(ctx, func(ctx context.Context) error {
		return client.Run(ctx, func(ctx context.Context) error {
			if err := b.login(ctx, client, token); err != nil {
				b.failAuth(err)
				return err
			}
			b.api.Store(client.API())
			b.announceReady(ctx, client)
			<-ctx.Done()
			return ctx.Err()
		})
	})
}

// login выполняет вход по токену, если сессия ещё не авторизована.
func (b *Bus) login(ctx context.Context, client *telegram.Client, token string) error {
	status, err := client.Auth().Status(ctx)
	if err != nil {
		return errors.Wrap(err, "auth status")
	}
	if !status.Authorized {
		if _, err := client.Auth().Bot(ctx, token); err != nil {
			return errors.Wrap(err, "bot login")
		}
	}
	return nil
}

// failAuth фиксирует исход неудачного входа и переводит FSM в провал.
func (b *Bus) failAuth(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.authErr != nil {
		return
	}
	b.authErr = translateError(err)
	select {
	case <-b.authDone:
	default:
		close(b.authDone)
	}
}

// translateError переводит ошибку gotd в форму нативного клиента.
func translateError(err error) *tdapi.Error {
	if wait, ok := tgerr.AsFloodWait(err); ok {
		return &tdapi.Error{
			Code:    429,
			Message: "Too Many Requests: retry after " + strconv.Itoa(int(wait/time.Second)+1),
		}
	}
	var rpcErr *tgerr.Error
	if errors.As(err, &rpcErr) {
		code := rpcErr.Code
		if code == 400 && rpcErr.Type == "ACCESS_TOKEN_INVALID" {
			code = 401
		}
		return &tdapi.Error{Code: code, Message: rpcErr.Type}
	}
	return &tdapi.Error{Code: 500, Message: err.Error()}
}

// announceReady публикует личность бота и переводит FSM в готовность.
func (b *Bus) announceReady(ctx context.Context, client *telegram.Client) {
	self, err := client.Self(ctx)
	if err != nil {
		b.failAuth(errors.Wrap(err, "self"))
		return
	}
	b.selfID.Store(self.ID)
	b.peers.putUser(self)

	b.emit(tdapi.UpdateOption{Name: "my_id", Value: tdapi.OptionInteger{Value: self.ID}})
	b.emit(tdapi.UpdateOption{Name: "authorization_date", Value: tdapi.OptionInteger{Value: time.Now().Unix()}})
	b.emit(tdapi.UpdateUser{User: projectUser(self)})
	b.emit(tdapi.UpdateConnectionState{State: tdapi.ConnectionStateReady})

	b.mu.Lock()
	select {
	case <-b.authDone:
	default:
		close(b.authDone)
	}
	b.mu.Unlock()

	b.emit(tdapi.UpdateAuthorizationState{State: tdapi.AuthStateReady})
}

// logOut разлогинивает бота на сервере и закрывает мост.
func (b *Bus) logOut(ctx context.Context) {
	b.emit(tdapi.UpdateAuthorizationState{State: tdapi.AuthStateLoggingOut})
	if api := b.api.Load(); api != nil {
		callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if _, err := api.AuthLogOut(callCtx); err != nil {
			b.log.Warn("logout", zap.Error(err))
		}
		cancel()
	}
	b.beginClose()
}

// beginClose инициирует остановку MTProto-клиента и закрытие FSM.
func (b *Bus) beginClose() {
	b.closeOnce.Do(func() {
		b.emit(tdapi.UpdateAuthorizationState{State: tdapi.AuthStateClosing})
		b.mu.Lock()
		if b.authErr == nil {
			b.authErr = &tdapi.Error{Code: 500, Message: "Request aborted"}
		}
		select {
		case <-b.authDone:
		default:
			close(b.authDone)
		}
		started := b.authStarted
		b.mu.Unlock()

		if b.clientCancel != nil {
			b.clientCancel()
		}
		if !started {
			// Клиент не поднимался: закрыть больше нечего.
			b.finishClose()
		}
	})
}

// finishClose — терминальное событие FSM; идемпотентно.
func (b *Bus) finishClose() {
	select {
	case <-b.closedCh:
		return
	default:
	}
	b.emit(tdapi.UpdateAuthorizationState{State: tdapi.AuthStateClosed})
	close(b.closedCh)
}

func sessionPath(dir string) string {
	return dir + "/session.json"
}
