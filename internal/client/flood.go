package client

// Локальный flood-контроль: admission по числу активных запросов и объёму
// загрузок, дозирование крупных файлов, 3-секундный дебаунс синтетических 429.
// Смысл лимитов — отказать быстрее, чем это сделает нативный клиент.

import (
	"time"

	"telegram-botapi-gateway/internal/botapi"
	"telegram-botapi-gateway/internal/infra/throttle"
)

const (
	// startupGrace — первые секунды после старта процесса admission не работает:
	// рестарт сервера не должен отбрасывать восстанавливающийся трафик.
	startupGrace = 60 * time.Second

	// floodRetryAfter — retry_after синтетических отказов лимитера, секунды.
	floodRetryAfter = 60

	// floodDebounce — пауза перед ответом синтетическим 429 на превышение
	// пер-чатового потолка: мгновенный отказ провоцирует hot-loop у клиента.
	floodDebounce = 3 * time.Second

	// baseRequestLimit и baseUploadCountLimit — основания admission-формул;
	// к ним прибавляется слагаемое от частоты апдейтов бота.
	baseRequestLimit     = 500
	baseUploadCountLimit = 100

	// maxUploadBytes — потолок суммарного объёма активных загрузок.
	maxUploadBytes = int64(4) << 30
)

// localMethods обходят admission: они не нагружают нативный клиент.
var localMethods = map[string]bool{
	"close":          true,
	"logout":         true,
	"getme":          true,
	"getupdates":     true,
	"setwebhook":     true,
	"deletewebhook":  true,
	"getwebhookinfo": true,
}

// admitQuery решает, пускать ли запрос. Возвращает nil при допуске; иначе —
// готовую ошибку 429. Учёт активных запросов ведёт вызывающий.
func (c *Client) admitQuery(q *botapi.Query) *botapi.Error {
	if localMethods[q.Method()] {
		return nil
	}
	if c.now().Sub(c.opts.StartTime) < startupGrace {
		return nil
	}

	upm := 0
	if c.opts.Stats != nil {
		upm = c.opts.Stats.UpdatesPerMinute()
	}

	if c.activeRequests > baseRequestLimit+upm {
		return botapi.TooManyRequests(floodRetryAfter)
	}
	if q.HasFiles() {
		if c.activeUploadBytes > maxUploadBytes {
			return botapi.TooManyRequests(floodRetryAfter)
		}
		if c.activeUploadCount > baseUploadCountLimit+upm/5 {
			return botapi.TooManyRequests(floodRetryAfter)
		}
	}
	return nil
}

// paceUpload дозирует крупные загрузки. Возвращает true, если запрос обработан
// асинхронно (отложен либо отклонён) и вызывающий должен выйти.
// В локальном режиме дозирование выключено.
func (c *Client) paceUpload(q *botapi.Query) bool {
	if c.opts.LocalMode || !q.HasFiles() {
		return false
	}
	size := q.TotalFileSize()
	if size < throttle.MinPacedSize {
		return false
	}
	delay, ok := c.opts.Pacer.Reserve(size)
	if !ok {
		q.AnswerError(botapi.TooManyRequests(floodRetryAfter))
		return true
	}
	if delay <= 0 {
		return false
	}
	// Переигрываем диспетчеризацию после паузы; admission выполнится заново.
	c.scheduleAfter(delay, func() { c.processQuery(q) })
	return true
}

// beginRequest/endRequest ведут счётчики admission вокруг обработки запроса.
func (c *Client) beginRequest(q *botapi.Query) {
	c.activeRequests++
	if q.HasFiles() {
		c.activeUploadCount++
		c.activeUploadBytes += q.TotalFileSize()
	}
	if c.opts.Stats != nil {
		c.opts.Stats.RequestServed()
	}
}

func (c *Client) endRequest(q *botapi.Query) {
	c.activeRequests--
	if q.HasFiles() {
		c.activeUploadCount--
		c.activeUploadBytes -= q.TotalFileSize()
	}
}

// failWithFloodDebounce отвечает синтетическим 429 после дебаунс-паузы.
func (c *Client) failWithFloodDebounce(q *botapi.Query) {
	c.scheduleAfter(floodDebounce, func() {
		q.AnswerError(botapi.TooManyRequests(floodRetryAfter))
	})
}
