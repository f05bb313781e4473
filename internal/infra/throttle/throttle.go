// Package throttle — локальные ограничители скорости шлюза.
// В основе — токен-бакеты golang.org/x/time/rate. Здесь живёт UploadPacer:
// дозатор крупных загрузок, растягивающий отправку больших файлов во времени,
// чтобы не упереться во flood-контроль нативного клиента раньше, чем мы сами
// успеем отказать с Retry-After.

package throttle

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Пороговые значения дозатора. Интервал между двумя загрузками одного «размерного
// ведра» равен clamp(size·1e-7, minDelay, maxDelay); ёмкость ведра — одна секунда
// накопленного кредита; ожидание дольше maxWait означает немедленный отказ.
const (
	// MinPacedSize — с какого размера файла включается дозирование.
	MinPacedSize = 100_000

	minDelay = 200 * time.Millisecond
	maxDelay = 900 * time.Millisecond
	// MaxWait — максимальная очередь на отправку; дальше честнее отказать сразу.
	MaxWait = 5 * time.Second

	bucketCapacity = time.Second
)

// UploadPacer ограничивает частоту крупных загрузок по размерным вёдрам.
// Потокобезопасен. Ведро определяется вычисленным интервалом: файлы с одинаковым
// требуемым темпом делят общий лимитер.
type UploadPacer struct {
	mu      sync.Mutex
	buckets map[time.Duration]*rate.Limiter
	now     func() time.Time // подменяется в тестах
}

// NewUploadPacer создаёт дозатор. nowFn == nil означает time.Now.
func NewUploadPacer(nowFn func() time.Time) *UploadPacer {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &UploadPacer{
		buckets: make(map[time.Duration]*rate.Limiter),
		now:     nowFn,
	}
}

// DelayFor возвращает требуемый интервал между загрузками файла данного размера.
func DelayFor(size int64) time.Duration {
	d := time.Duration(float64(size) * 100) // size·1e-7 секунд = size·100 наносекунд
	if d < minDelay {
		d = minDelay
	}
	if d > maxDelay {
		d = maxDelay
	}
	return d
}

// Reserve бронирует слот отправки для файла размера size.
// Возвращает (0, true) — можно отправлять сразу; (d, true) — отправку нужно
// отложить на d; (0, false) — очередь длиннее MaxWait, запрос следует отклонить.
// Файлы меньше MinPacedSize не дозируются.
func (p *UploadPacer) Reserve(size int64) (time.Duration, bool) {
	if size < MinPacedSize {
		return 0, true
	}

	interval := DelayFor(size)

	p.mu.Lock()
	lim, ok := p.buckets[interval]
	if !ok {
		// Ёмкость ведра — секунда кредита: burst = целых интервалов в секунде.
		burst := int(bucketCapacity / interval)
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Every(interval), burst)
		p.buckets[interval] = lim
	}
	p.mu.Unlock()

	now := p.now()
	res := lim.ReserveN(now, 1)
	delay := res.DelayFrom(now)
	if delay > MaxWait {
		res.CancelAt(now)
		return 0, false
	}
	return delay, true
}
