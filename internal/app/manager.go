package app

// Менеджер клиентов: реестр Client-акторов по токену. Client создаётся лениво
// при первом запросе бота и живёт, пока им пользуются; простаивающие дольше
// idle-таймаута закрываются, завершившиеся вычищаются из реестра с секундной
// паузой — уборка каталога бота должна закончиться раньше, чем тот же токен
// поднимет нового актора.

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"telegram-botapi-gateway/internal/botapi"
	"telegram-botapi-gateway/internal/client"
	"telegram-botapi-gateway/internal/infra/config"
	"telegram-botapi-gateway/internal/infra/fsched"
	"telegram-botapi-gateway/internal/infra/throttle"
	"telegram-botapi-gateway/internal/tdapi"
	"telegram-botapi-gateway/internal/tqueue"
	"telegram-botapi-gateway/internal/webhookdb"
)

const (
	// recycleDelay — пауза между завершением актора и удалением его записи.
	recycleDelay = time.Second

	// reaperInterval — период проверки простаивающих клиентов.
	reaperInterval = time.Minute
)

// BusFactory создаёт мост нативного клиента для бота с данным токеном;
// dir — каталог рабочих данных бота.
type BusFactory func(token, dir string) tdapi.Bus

// ManagerOptions — зависимости менеджера.
type ManagerOptions struct {
	Env            config.EnvConfig
	Queue          *tqueue.Store
	WebhookDB      *webhookdb.DB
	FS             *fsched.Scheduler
	Pacer          *throttle.UploadPacer
	Bus            BusFactory
	WebhookFactory client.WebhookFactory
	Log            *zap.Logger
}

// managed — запись реестра: актор, его контекст и счётчики.
type managed struct {
	c        *client.Client
	cancel   context.CancelFunc
	stats    *BotStats
	lastUsed time.Time
}

// Manager — реестр Client-акторов процесса.
type Manager struct {
	opts      ManagerOptions
	log       *zap.Logger
	startTime time.Time

	mu      sync.Mutex
	clients map[string]*managed
	closed  bool

	runCtx context.Context
	wg     sync.WaitGroup
}

// NewManager создаёт менеджер; акторы поднимаются лениво из Execute.
func NewManager(opts ManagerOptions) *Manager {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		opts:      opts,
		log:       log,
		startTime: time.Now(),
		clients:   make(map[string]*managed),
	}
}

// Run держит менеджер до отмены контекста, затем закрывает всех клиентов и
// дожидается их завершения.
func (m *Manager) Run(ctx context.Context) {
	m.mu.Lock()
	m.runCtx = ctx
	m.mu.Unlock()

	ticker := time.NewTicker(reaperInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return
		case <-ticker.C:
			m.reapIdle()
		}
	}
}

// Execute направляет HTTP-запрос актору бота, создавая его при необходимости.
func (m *Manager) Execute(token string, q *botapi.Query) {
	botUserID, ok := parseToken(token)
	if !ok {
		q.AnswerError(botapi.Unauthorized("Unauthorized"))
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		q.AnswerError(botapi.Internal("restart"))
		return
	}
	entry := m.clients[token]
	if entry == nil {
		entry = m.startClient(token, botUserID)
		m.clients[token] = entry
	}
	entry.lastUsed = time.Now()
	c := entry.c
	m.mu.Unlock()

	c.Execute(q)
}

// startClient поднимает актора бота. Вызывается под мьютексом.
func (m *Manager) startClient(token string, botUserID int64) *managed {
	dir := filepath.Join(m.opts.Env.DataDir, strconv.FormatInt(botUserID, 10))
	stats := newBotStats(nil)

	c := client.New(client.Options{
		Token:     token,
		BotUserID: botUserID,
		Dir:       dir,
		APIID:     m.opts.Env.APIID,
		APIHash:   m.opts.Env.APIHash,
		TestDC:    m.opts.Env.TestDC,
		LocalMode: m.opts.Env.LocalMode,

		Bus:            m.opts.Bus(token, dir),
		Queue:          m.opts.Queue,
		WebhookDB:      m.opts.WebhookDB,
		WebhookFactory: m.opts.WebhookFactory,
		Stats:          stats,
		FS:             m.opts.FS,
		Pacer:          m.opts.Pacer,

		StartTime: m.startTime,
		Log:       m.log.With(zap.Int64("bot_id", botUserID)),
	})

	base := m.runCtx
	if base == nil {
		base = context.Background()
	}
	ctx, cancel := context.WithCancel(base)
	entry := &managed{c: c, cancel: cancel, stats: stats}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		c.Run(ctx)
		cancel()
		// Секундная пауза перед вычисткой: уборка каталога идёт через fsched
		// и не должна пересечься с каталогом нового актора того же токена.
		time.Sleep(recycleDelay)
		m.mu.Lock()
		if m.clients[token] == entry {
			delete(m.clients, token)
		}
		m.mu.Unlock()
	}()

	m.log.Info("client started", zap.Int64("bot_id", botUserID))
	return entry
}

// reapIdle закрывает клиентов, простаивающих дольше idle-таймаута.
func (m *Manager) reapIdle() {
	idle := time.Duration(m.opts.Env.ClientIdleTimeoutSec) * time.Second
	cutoff := time.Now().Add(-idle)

	m.mu.Lock()
	var victims []*managed
	for _, entry := range m.clients {
		if entry.lastUsed.Before(cutoff) {
			victims = append(victims, entry)
		}
	}
	m.mu.Unlock()

	for _, entry := range victims {
		entry.cancel()
	}
	if len(victims) > 0 {
		m.log.Info("idle clients closed", zap.Int("count", len(victims)))
	}
}

// shutdown закрывает всех клиентов и ждёт их завершения.
func (m *Manager) shutdown() {
	m.mu.Lock()
	m.closed = true
	entries := make([]*managed, 0, len(m.clients))
	for _, entry := range m.clients {
		entries = append(entries, entry)
	}
	m.mu.Unlock()

	for _, entry := range entries {
		entry.cancel()
	}
	m.wg.Wait()
}

// BotSnapshot — строка статистики одного бота.
type BotSnapshot struct {
	BotID            int64  `json:"id"`
	RequestsTotal    uint64 `json:"request_count"`
	UpdatesTotal     uint64 `json:"update_count"`
	UpdatesPerMinute int    `json:"updates_per_minute"`
}

// Snapshot возвращает статистику живых ботов.
func (m *Manager) Snapshot() []BotSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]BotSnapshot, 0, len(m.clients))
	for token, entry := range m.clients {
		id, _ := parseToken(token)
		req, upd := entry.stats.Totals()
		out = append(out, BotSnapshot{
			BotID:            id,
			RequestsTotal:    req,
			UpdatesTotal:     upd,
			UpdatesPerMinute: entry.stats.UpdatesPerMinute(),
		})
	}
	return out
}

// parseToken проверяет форму токена "<bot_id>:<secret>" и возвращает числовой id.
func parseToken(token string) (int64, bool) {
	i := strings.IndexByte(token, ':')
	if i <= 0 || i == len(token)-1 {
		return 0, false
	}
	id, err := strconv.ParseInt(token[:i], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
