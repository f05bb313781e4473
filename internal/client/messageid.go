// Package client реализует движок одного бота: конечный автомат
// запрос/ответ, конвейер доставки апдейтов (long-poll и webhook) и
// вспомогательные очереди разрешения. Один экземпляр Client обслуживает один
// токен бота и живёт как однопоточный актор: все мутации состояния происходят
// в горутине run, внешние входы постятся в почтовый ящик.
package client

// Кодек идентификаторов сообщений. Наружу Bot API отдаёт последовательные
// 32-битные номера; нативный клиент оперирует 64-битными, равными внешнему
// номеру, сдвинутому на 20 бит. Некруглые внутренние id (locally-scheduled
// сообщения) наружу не конвертируются.

const messageIDShift = 20

// maxClientMessageID — потолок внешнего 32-битного id.
const maxClientMessageID = int64(int32(^uint32(0) >> 1))

// asClientMessageID переводит внутренний id во внешний. Возвращает 0, если id
// не конвертируется (не кратен 1<<20 либо не влезает в int32) — вызывающий
// обязан превратить это в «message not found».
func asClientMessageID(internal int64) int64 {
	if internal <= 0 || internal&((1<<messageIDShift)-1) != 0 {
		return 0
	}
	external := internal >> messageIDShift
	if external > int64(int32(^uint32(0)>>1)) {
		return 0
	}
	return external
}

// asTdlibMessageID переводит внешний id во внутренний. Возвращает 0 для
// неположительных и переполняющих значений.
func asTdlibMessageID(external int64) int64 {
	if external <= 0 || external > int64(int32(^uint32(0)>>1)) {
		return 0
	}
	return external << messageIDShift
}
