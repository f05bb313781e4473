// Package fsched — выделенный планировщик файловых операций.
// Client-актор не должен блокироваться на диске: копирование сертификата,
// удаление cert.pem и rmrf каталога бота выполняются здесь, а результат
// возвращается актору через его собственный почтовый ящик (done-колбэк).
//
// Планировщик последовательный: операции над каталогом одного бота не должны
// гоняться друг с другом (установка сертификата vs удаление каталога).
package fsched

import (
	"context"
	"sync"

	"telegram-botapi-gateway/internal/infra/logger"
)

// job — единица работы: функция на диске и колбэк доставки результата.
// deliver обязан быть неблокирующим постом в почтовый ящик заказчика.
type job struct {
	run     func() error
	deliver func(error)
}

// Scheduler — последовательный исполнитель файловых операций.
// Потокобезопасен: Submit можно звать из любых горутин. Start/Stop идемпотентны.
type Scheduler struct {
	jobs chan job

	runOnce  sync.Once
	stopOnce sync.Once
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// queueDepth — ёмкость очереди заданий. Файловых операций мало (установка и
// снятие вебхуков, logout), поэтому небольшого буфера достаточно.
const queueDepth = 64

// New создаёт планировщик; запуск выполняется отдельно через Start.
func New() *Scheduler {
	return &Scheduler{jobs: make(chan job, queueDepth)}
}

// Start запускает воркера; повторный вызов безопасно игнорируется.
func (s *Scheduler) Start(ctx context.Context) {
	s.runOnce.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		s.cancel = cancel
		s.wg.Add(1)
		go s.loop(runCtx)
	})
}

// Stop останавливает воркера и дожидается завершения текущего задания.
// Задания, оставшиеся в очереди, получают ошибку контекста через deliver.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
	})
}

// Submit ставит файловую операцию в очередь. deliver вызывается ровно один раз
// с результатом run (или с ошибкой переполнения, если очередь забита).
// deliver может быть nil для fire-and-forget операций.
func (s *Scheduler) Submit(run func() error, deliver func(error)) {
	if deliver == nil {
		deliver = func(err error) {
			if err != nil {
				logger.Warnf("fsched: background file op failed: %v", err)
			}
		}
	}
	select {
	case s.jobs <- job{run: run, deliver: deliver}:
	default:
		// Переполнение очереди — признак деградации диска; не блокируем актора.
		deliver(ErrQueueFull)
	}
}

// loop последовательно исполняет задания до отмены контекста.
func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			// Дренируем хвост, чтобы заказчики не зависли в ожидании ответа.
			for {
				select {
				case j := <-s.jobs:
					j.deliver(ctx.Err())
				default:
					return
				}
			}
		case j := <-s.jobs:
			j.deliver(j.run())
		}
	}
}
