package client

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"telegram-botapi-gateway/internal/tdapi"
	"telegram-botapi-gateway/internal/tqueue"
	"telegram-botapi-gateway/internal/webhookdb"
)

// fakeBus записывает отправленные команды; ответы тест подаёт сам через
// completeRequest.
type fakeBus struct {
	mu     sync.Mutex
	sent   []sentCommand
	events chan tdapi.Event
}

type sentCommand struct {
	ID  uint64
	Req tdapi.Request
}

func newFakeBus() *fakeBus { return &fakeBus{events: make(chan tdapi.Event, 64)} }

func (b *fakeBus) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (b *fakeBus) Send(id uint64, req tdapi.Request) {
	b.mu.Lock()
	b.sent = append(b.sent, sentCommand{ID: id, Req: req})
	b.mu.Unlock()
}

func (b *fakeBus) Events() <-chan tdapi.Event { return b.events }

func (b *fakeBus) commands() []sentCommand {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]sentCommand, len(b.sent))
	copy(out, b.sent)
	return out
}

// stubDelivery — ручка webhook-актора без самого актора.
type stubDelivery struct {
	notified int
	closed   int
}

func (d *stubDelivery) Notify() { d.notified++ }
func (d *stubDelivery) Close()  { d.closed++ }

// testEnv собирает Client с фейковой шиной и настоящими хранилищами.
type testEnv struct {
	c     *Client
	bus   *fakeBus
	queue *tqueue.Store
	whdb  *webhookdb.DB

	factoryCalls int
	delivery     *stubDelivery
	events       WebhookEvents
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	queue, err := tqueue.Open(filepath.Join(dir, "tqueue.bbolt"))
	if err != nil {
		t.Fatalf("open tqueue: %v", err)
	}
	t.Cleanup(func() { _ = queue.Close() })

	whdb, err := webhookdb.Open(filepath.Join(dir, "webhooks.bbolt"))
	if err != nil {
		t.Fatalf("open webhook db: %v", err)
	}
	t.Cleanup(func() { _ = whdb.Close() })

	env := &testEnv{bus: newFakeBus(), queue: queue, whdb: whdb}
	env.c = New(Options{
		Token:     "12345:token",
		BotUserID: 12345,
		Dir:       dir,
		Bus:       env.bus,
		Queue:     queue,
		WebhookDB: whdb,
		WebhookFactory: func(botID string, target WebhookTarget, events WebhookEvents) WebhookDelivery {
			env.factoryCalls++
			env.delivery = &stubDelivery{}
			env.events = events
			return env.delivery
		},
		StartTime: time.Now(),
	})
	return env
}

// runPosted исполняет замыкания, уже лежащие в почтовом ящике актора.
// Тесты зовут обработчики напрямую, поэтому актор не запущен.
func (e *testEnv) runPosted() {
	for {
		select {
		case fn := <-e.c.mailbox:
			fn()
		default:
			return
		}
	}
}
