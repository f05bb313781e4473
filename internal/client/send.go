package client

// Трекер отправки. На каждую исходящую отправку регистрируется соответствие
// (chat_id, временный message_id) → запрос; терминальные события нативного
// клиента (send-succeeded / send-failed) закрывают учёт, агрегируют результаты
// мультиотправок и отвечают исходному HTTP-запросу. Здесь же пер-чатовый
// потолок одновременных отправок.

import (
	"encoding/json"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"telegram-botapi-gateway/internal/botapi"
	"telegram-botapi-gateway/internal/tdapi"
)

// sentRef — значение yetUnsent: какой запрос и какая его часть ждёт сообщение.
type sentRef struct {
	queryID uint64
	index   int
}

// pendingSend — агрегат одной отправки (возможно, множественной).
type pendingSend struct {
	query          *botapi.Query
	isMultisend    bool
	onlyMessageIDs bool // copyMessages: в ответ идут только id сообщений
	total          int
	awaited        int
	results        []json.RawMessage // по индексам частей
	err            *botapi.Error
	errTerminal    bool
}

// newSendQuery регистрирует агрегат отправки на total сообщений.
func (c *Client) newSendQuery(q *botapi.Query, total int, onlyIDs bool) uint64 {
	c.nextSendQueryID++
	id := c.nextSendQueryID
	c.sendQueries[id] = &pendingSend{
		query:          q,
		isMultisend:    total > 1,
		onlyMessageIDs: onlyIDs,
		total:          total,
		awaited:        total,
		results:        make([]json.RawMessage, total),
	}
	return id
}

// checkSendCap проверяет пер-чатовый потолок для count новых сообщений.
// Превышение отвечает синтетическим 429 после дебаунса; возвращает false.
func (c *Client) checkSendCap(q *botapi.Query, chatID int64, count int) bool {
	if c.yetUnsentCount[chatID]+count > MaxConcurrentlySentChatMessages {
		c.failWithFloodDebounce(q)
		return false
	}
	return true
}

// registerYetUnsent связывает временный id сообщения с частью агрегата.
// Счётчик чата инкрементируется до фактической отправки (инвариант №2).
func (c *Client) registerYetUnsent(chatID, tempMessageID int64, queryID uint64, index int) {
	c.yetUnsent[messageKey{chatID, tempMessageID}] = sentRef{queryID: queryID, index: index}
	c.yetUnsentCount[chatID]++
}

// onSendPartRejected обрабатывает синхронный отказ нативного клиента на одну
// часть агрегата (сообщение не получило даже временного id).
func (c *Client) onSendPartRejected(queryID uint64, index int, err tdapi.Error) {
	ps := c.sendQueries[queryID]
	if ps == nil {
		return
	}
	c.accumulateSendError(ps, index, botapi.TranslateNative(err.Code, err.Message))
	c.finishSendPart(queryID, ps)
}

// onSendSucceeded обрабатывает событие успешной отправки: временный id заменён
// постоянным, сообщение кэшируется, результат дописывается в агрегат.
func (c *Client) onSendSucceeded(msg *tdapi.Message, oldMessageID int64) {
	ref, ok := c.takeYetUnsent(msg.ChatID, oldMessageID)
	if !ok {
		return
	}
	c.cache.PutMessage(msg)

	ps := c.sendQueries[ref.queryID]
	if ps == nil {
		return
	}
	if ps.onlyMessageIDs {
		ps.results[ref.index], _ = json.Marshal(map[string]int64{
			"message_id": asClientMessageID(msg.ID),
		})
	} else {
		ps.results[ref.index] = c.renderMessageJSON(msg)
	}
	c.finishSendPart(ref.queryID, ps)
}

// onSendFailed обрабатывает событие неуспешной отправки.
func (c *Client) onSendFailed(msg *tdapi.Message, oldMessageID int64, nerr tdapi.Error) {
	ref, ok := c.takeYetUnsent(msg.ChatID, oldMessageID)
	if !ok {
		return
	}

	// Ненулевой постоянный id при провале — осиротевшее сообщение; его
	// удаление best-effort, ошибка удаления никого не интересует.
	if msg.ID != 0 && msg.ID != oldMessageID {
		c.sendRequest(tdapi.DeleteMessages{ChatID: msg.ChatID, MessageIDs: []int64{msg.ID}}, nil)
	}

	ps := c.sendQueries[ref.queryID]
	if ps == nil {
		return
	}
	c.accumulateSendError(ps, ref.index, botapi.TranslateNative(nerr.Code, nerr.Message))
	c.finishSendPart(ref.queryID, ps)
}

// takeYetUnsent снимает учёт временного сообщения и декрементирует счётчик чата.
func (c *Client) takeYetUnsent(chatID, tempMessageID int64) (sentRef, bool) {
	key := messageKey{chatID, tempMessageID}
	ref, ok := c.yetUnsent[key]
	if !ok {
		return sentRef{}, false
	}
	delete(c.yetUnsent, key)
	if n := c.yetUnsentCount[chatID]; n <= 1 {
		delete(c.yetUnsentCount, chatID)
	} else {
		c.yetUnsentCount[chatID] = n - 1
	}
	return ref, true
}

// accumulateSendError применяет политику агрегации ошибок мультиотправки:
// первый «терминальный» код (401/429/5xx либо групповой провал) перекрывает
// остальные; прочие ошибки получают префикс с номером сообщения.
func (c *Client) accumulateSendError(ps *pendingSend, index int, err *botapi.Error) {
	if ps.errTerminal {
		return
	}
	terminal := err.Code == 401 || err.Code == 429 || err.Code >= 500 ||
		strings.Contains(err.Message, "Group send failed")
	if ps.err == nil || terminal {
		if ps.isMultisend && !terminal {
			err = &botapi.Error{
				Code:       err.Code,
				Message:    "Bad Request: Failed to send message #" + strconv.Itoa(index+1) + ": " + err.Message,
				RetryAfter: err.RetryAfter,
			}
		}
		ps.err = err
		ps.errTerminal = terminal
	}
}

// finishSendPart закрывает одну часть агрегата; на нуле ожиданий — ответ.
func (c *Client) finishSendPart(queryID uint64, ps *pendingSend) {
	ps.awaited--
	if ps.awaited > 0 {
		return
	}
	delete(c.sendQueries, queryID)

	if ps.err != nil {
		ps.query.AnswerError(ps.err)
		return
	}
	if !ps.isMultisend && !ps.onlyMessageIDs {
		ps.query.AnswerOK(ps.results[0])
		return
	}
	arr, err := json.Marshal(ps.results)
	if err != nil {
		c.log.Error("encode multisend result", zap.Error(err))
		ps.query.AnswerError(botapi.Internal("response encoding failed"))
		return
	}
	ps.query.AnswerOK(arr)
}

// failSendQueries отвечает ошибкой всем незавершённым агрегатам (закрытие).
func (c *Client) failSendQueries(err *botapi.Error) {
	for id, ps := range c.sendQueries {
		delete(c.sendQueries, id)
		ps.query.AnswerError(err)
	}
	c.yetUnsent = make(map[messageKey]sentRef)
	c.yetUnsentCount = make(map[int64]int)
}
