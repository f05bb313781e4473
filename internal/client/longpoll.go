package client

// getUpdates: выдача буфера апдейтов с long-poll парковкой. Одновременно жив
// не больше одного запаркованного запроса; новый getUpdates вытесняет старый
// пустым ответом. Побудки от эмиттера коалесцируются короткой задержкой,
// чтобы ответ забирал пачку апдейтов, а не по одному.

import (
	"bytes"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"

	"telegram-botapi-gateway/internal/botapi"
	"telegram-botapi-gateway/internal/tqueue"
)

const (
	// longPollMaxTimeout — потолок параметра timeout.
	longPollMaxTimeout = 50 * time.Second

	// longPollWaitAfter — задержка ответа после первой побудки: даёт шанс
	// догнать соседним апдейтам.
	longPollWaitAfter = 500 * time.Millisecond

	// longPollMaxDelay — потолок суммарной задержки от первой побудки.
	longPollMaxDelay = 500 * time.Millisecond

	// Анти-долбёжка: повторному короткому getUpdates с тем же offset в окне
	// навязывается timeout, в узком окне — ещё и limit = 1.
	antiHammerWindow      = 3 * time.Second
	antiHammerLimitWindow = 500 * time.Millisecond
	antiHammerTimeout     = 3

	// getUpdatesByteBudget — мягкий потолок суммарного объёма ответа.
	getUpdatesByteBudget = 4 << 20

	defaultUpdatesLimit = 100
)

// parkedGetUpdates — запаркованный long-poll.
type parkedGetUpdates struct {
	q          *botapi.Query
	limit      int
	timer      *time.Timer
	flushTimer *time.Timer
	firstWake  time.Time
}

// handleGetUpdates — вход метода getUpdates.
func (c *Client) handleGetUpdates(q *botapi.Query) {
	if c.webhook.url != "" {
		q.AnswerError(botapi.Conflict(
			"can't use getUpdates method while webhook is active; use deleteWebhook to delete the webhook first"))
		return
	}

	offset := q.IntArg("offset", 0, math.MinInt64, math.MaxInt64)
	limit := q.IntArg("limit", defaultUpdatesLimit, 1, 100)
	timeoutSec := q.IntArg("timeout", 0, 0, int64(longPollMaxTimeout/time.Second))

	// Переданный allowed_updates перезаписывает и персистит маску.
	if q.HasArg("allowed_updates") {
		c.applyAllowedMask(parseAllowedUpdates(q.Arg("allowed_updates")))
	}

	if offset > 0 {
		// Подтверждение: всё до offset доставлено.
		if err := c.opts.Queue.DeleteUpTo(c.botID(), uint64(offset)); err != nil {
			c.log.Error("confirm updates", zap.Error(err))
		}
		if uint64(offset) > c.cursor {
			c.cursor = uint64(offset)
		}
	} else if offset < 0 {
		// Отрицательный offset: оставить только последние |offset| событий.
		size, err := c.opts.Queue.Size(c.botID())
		if err == nil && size+int(offset) > 0 {
			if err := c.opts.Queue.TruncateHead(c.botID(), size+int(offset)); err != nil {
				c.log.Error("truncate updates", zap.Error(err))
			}
		}
		c.cursor = 0
	}

	// Анти-долбёжка: короткий повтор того же offset получает навязанный
	// long-poll, а совсем плотный повтор — ещё и единичный limit.
	if timeoutSec <= 0 && offset == c.lastPollOffset && !c.lastPollAt.IsZero() {
		if since := c.now().Sub(c.lastPollAt); since < antiHammerWindow {
			timeoutSec = antiHammerTimeout
			if since < antiHammerLimitWindow {
				limit = 1
			}
		}
	}
	c.lastPollAt = c.now()
	c.lastPollOffset = offset

	// Новый запрос вытесняет запаркованный.
	if c.parked != nil {
		c.answerParkedEmpty()
	}

	events, err := c.opts.Queue.Get(c.botID(), c.cursor, int(limit), getUpdatesByteBudget)
	if err != nil {
		c.log.Error("read updates", zap.Error(err))
		q.AnswerError(botapi.Internal("update storage failure"))
		return
	}
	if len(events) > 0 {
		q.AnswerOK(encodeUpdates(events))
		return
	}

	if timeoutSec <= 0 {
		q.AnswerOK(emptyUpdates)
		return
	}

	p := &parkedGetUpdates{q: q, limit: int(limit)}
	p.timer = c.scheduleAfter(time.Duration(timeoutSec)*time.Second, func() {
		if c.parked == p {
			c.parked = nil
			q.AnswerOK(emptyUpdates)
		}
	})
	c.parked = p
}

var emptyUpdates = []byte("[]")

// wakeLongPoll будит запаркованный getUpdates после появления апдейта.
// Ответ откладывается на longPollWaitAfter, но не дальше longPollMaxDelay
// от первой побудки.
func (c *Client) wakeLongPoll() {
	p := c.parked
	if p == nil {
		return
	}
	now := c.now()
	if p.firstWake.IsZero() {
		p.firstWake = now
	}
	delay := longPollWaitAfter
	if rest := longPollMaxDelay - now.Sub(p.firstWake); rest < delay {
		delay = rest
	}
	if delay <= 0 {
		c.flushParked(p)
		return
	}
	if p.flushTimer != nil {
		return
	}
	p.flushTimer = c.scheduleAfter(delay, func() {
		if c.parked == p {
			c.flushParked(p)
		}
	})
}

// flushParked отвечает запаркованному запросу накопившимися апдейтами.
func (c *Client) flushParked(p *parkedGetUpdates) {
	events, err := c.opts.Queue.Get(c.botID(), c.cursor, p.limit, getUpdatesByteBudget)
	if err != nil {
		c.log.Error("read updates", zap.Error(err))
		c.dropParked(p)
		p.q.AnswerError(botapi.Internal("update storage failure"))
		return
	}
	if len(events) == 0 {
		// Апдейт протух или ушёл мимо маски; парковка продолжается.
		p.firstWake = time.Time{}
		p.flushTimer = nil
		return
	}
	c.dropParked(p)
	p.q.AnswerOK(encodeUpdates(events))
}

// answerParkedEmpty вытесняет запаркованный запрос пустым ответом.
func (c *Client) answerParkedEmpty() {
	p := c.parked
	if p == nil {
		return
	}
	c.dropParked(p)
	p.q.AnswerOK(emptyUpdates)
}

// failParkedGetUpdates отвечает запаркованному запросу ошибкой (закрытие).
func (c *Client) failParkedGetUpdates(err *botapi.Error) {
	p := c.parked
	if p == nil {
		return
	}
	c.dropParked(p)
	p.q.AnswerError(err)
}

func (c *Client) dropParked(p *parkedGetUpdates) {
	if c.parked == p {
		c.parked = nil
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	if p.flushTimer != nil {
		p.flushTimer.Stop()
	}
}

// encodeUpdates строит JSON-массив апдейтов: update_id + полезная нагрузка
// под именем вида.
func encodeUpdates(events []tqueue.Event) []byte {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, ev := range events {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(`{"update_id":`)
		buf.WriteString(strconv.FormatUint(ev.ID, 10))
		buf.WriteString(`,"`)
		buf.WriteString(ev.Kind)
		buf.WriteString(`":`)
		buf.Write(ev.Payload)
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes()
}
