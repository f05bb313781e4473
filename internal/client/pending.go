package client

// Реестр ожидающих запросов к нативному клиенту и очередь команд HTTP.
// Корреляционные идентификаторы монотонны в пределах Client; колбэк живёт от
// отправки до первого ответа. Очередь команд дренируется по готовности
// авторизации в порядке FIFO.

import (
	"telegram-botapi-gateway/internal/botapi"
	"telegram-botapi-gateway/internal/tdapi"
)

// sendRequest отправляет команду нативному клиенту и регистрирует колбэк.
// Вызывается только из горутины актора.
func (c *Client) sendRequest(req tdapi.Request, fn func(tdapi.Response)) {
	c.nextRequestID++
	id := c.nextRequestID
	if fn != nil {
		c.pending[id] = fn
	}
	c.opts.Bus.Send(id, req)
}

// completeRequest доставляет ответ колбэку и снимает его с учёта.
func (c *Client) completeRequest(id uint64, resp tdapi.Response) {
	fn, ok := c.pending[id]
	if !ok {
		return
	}
	delete(c.pending, id)
	fn(resp)
}

// failAllPending отвечает ошибкой всем ожидающим колбэкам; вызывается при
// терминальном закрытии нативного клиента.
func (c *Client) failAllPending(err tdapi.Error) {
	for id, fn := range c.pending {
		delete(c.pending, id)
		fn(tdapi.Response{Err: &err})
	}
}

// enqueueCommand ставит HTTP-запрос в очередь до готовности авторизации.
func (c *Client) enqueueCommand(q *botapi.Query) {
	c.cmdQueue = append(c.cmdQueue, q)
}

// drainCommandQueue обрабатывает накопленные команды в порядке поступления.
// Вызывается при переходе в Ready и после каждого изменения гейта.
func (c *Client) drainCommandQueue() {
	for len(c.cmdQueue) > 0 && c.authorized && !c.loggingOut && !c.closing {
		q := c.cmdQueue[0]
		c.cmdQueue = c.cmdQueue[1:]
		c.dispatchQuery(q)
	}
}

// failCommandQueue отвечает ошибкой закрытия всем запаркованным командам.
func (c *Client) failCommandQueue(err *botapi.Error) {
	for _, q := range c.cmdQueue {
		q.AnswerError(err)
	}
	c.cmdQueue = nil
}
