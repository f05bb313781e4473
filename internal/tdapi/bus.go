// Package tdapi описывает шину нативного клиента Telegram, какой её видит
// Client-актор шлюза: команды с корреляционными идентификаторами, ответы и
// несолицитированные события. Реализация шины (production-мост на gotd либо
// in-memory фейк в тестах) живёт в адаптерах; ядро знает только эти типы.
//
// Варианты команд/событий/объектов — запечатанные суммы: каждый тип несёт
// маркерный метод, switch по ним исчерпывающий.
package tdapi

import "context"

// Request — команда нативному клиенту.
type Request interface{ isRequest() }

// Object — объект, возвращаемый нативным клиентом в ответах.
type Object interface{ isObject() }

// Event — несолицитированное событие нативного клиента либо ответ на команду.
type Event interface{ isEvent() }

// Error — ошибка нативного клиента: код и «сырое» сообщение.
// Перевод в таксономию Bot API выполняет слой botapi.
type Error struct {
	Code    int
	Message string
}

// Response — ответ на команду: либо Err, либо Result (возможно OkResult).
type Response struct {
	Err    *Error
	Result Object
}

// ResponseEvent доставляет ответ на команду с корреляционным идентификатором,
// который Client выдал при отправке.
type ResponseEvent struct {
	ID       uint64
	Response Response
}

func (ResponseEvent) isEvent() {}

// Bus — контракт моста к нативному клиенту. Send не блокирует: ответ приходит
// событием ResponseEvent в Events. Канал Events закрывается после завершения Run.
type Bus interface {
	// Run запускает мост и блокируется до остановки.
	Run(ctx context.Context) error
	// Send отправляет команду; ответ придёт как ResponseEvent{ID: id}.
	Send(id uint64, req Request)
	// Events — поток событий и ответов в порядке их возникновения.
	Events() <-chan Event
}
