// Package botapi — общие типы HTTP-поверхности Bot API: запрос (Query), ответ
// и таксономия ошибок. Ошибки несут код Bot API (400/401/403/404/409/429/500),
// человекочитаемое описание и опциональный retry_after. Здесь же — перевод
// «сырых» ошибок нативного клиента в формулировки Bot API и каноническое
// префиксование описаний.

package botapi

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Error — ошибка уровня Bot API. Реализует error; RetryAfter() отдаёт серверную
// паузу для извлечения общим троттлером (ненулевое значение сериализуется
// в parameters.retry_after ответа).
type Error struct {
	Code       int
	Message    string
	RetryAfter int // секунды; 0 — нет рекомендации
}

// Error возвращает описание в виде "<code>: <message>".
func (e *Error) Error() string {
	return strconv.Itoa(e.Code) + ": " + e.Message
}

// RetryAfterDuration возвращает рекомендованную паузу; 0 — нет рекомендации.
func (e *Error) RetryAfterDuration() time.Duration {
	return time.Duration(e.RetryAfter) * time.Second
}

// NewError создаёт ошибку с каноническим префиксом для кода.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: prefixed(code, message)}
}

// BadRequest — ошибка 400 с префиксом "Bad Request: ".
func BadRequest(message string) *Error { return NewError(400, message) }

// BadRequestf — форматированная ошибка 400.
func BadRequestf(format string, a ...any) *Error {
	return NewError(400, fmt.Sprintf(format, a...))
}

// Unauthorized — ошибка 401.
func Unauthorized(message string) *Error { return NewError(401, message) }

// Forbidden — ошибка 403.
func Forbidden(message string) *Error { return NewError(403, message) }

// NotFound — ошибка 404; используется только для неизвестных имён методов.
func NotFound(message string) *Error { return NewError(404, message) }

// Conflict — ошибка 409 (переключение режимов long-poll/webhook).
func Conflict(message string) *Error { return NewError(409, message) }

// TooManyRequests — ошибка 429 с retry_after.
func TooManyRequests(retryAfter int) *Error {
	return &Error{
		Code:       429,
		Message:    fmt.Sprintf("Too Many Requests: retry after %d", retryAfter),
		RetryAfter: retryAfter,
	}
}

// Internal — ошибка 500.
func Internal(message string) *Error { return NewError(500, message) }

// codePrefix возвращает канонический префикс описания для кода Bot API.
func codePrefix(code int) string {
	switch code {
	case 400:
		return "Bad Request"
	case 401:
		return "Unauthorized"
	case 403:
		return "Forbidden"
	case 404:
		return "Not Found"
	case 409:
		return "Conflict"
	case 429:
		return "Too Many Requests"
	case 500:
		return "Internal Server Error"
	default:
		return ""
	}
}

// prefixed дописывает канонический префикс кода, если описание им ещё не начинается.
// Первая буква хвоста понижается, кроме случая, когда вторая буква заглавная или
// подчёркивание: такие строки похожи на опакованные константы (FLOOD_WAIT и т.п.)
// и должны сохраниться как есть.
func prefixed(code int, message string) string {
	p := codePrefix(code)
	if p == "" || strings.HasPrefix(message, p) {
		return message
	}
	if len(message) > 0 {
		first := message[0]
		if first >= 'A' && first <= 'Z' {
			keep := len(message) > 1 && (message[1] == '_' || (message[1] >= 'A' && message[1] <= 'Z'))
			if !keep {
				message = string(first+'a'-'A') + message[1:]
			}
		}
	}
	return p + ": " + message
}

// tooManyRequestsPrefix — формат нативной flood-ошибки с явным retry after.
const tooManyRequestsPrefix = "Too Many Requests: retry after "

// nativeSynonyms переводит известные строки нативного клиента в формулировки
// Bot API. Пары {код, сообщение}; нулевой код означает «оставить исходный».
var nativeSynonyms = map[string]struct {
	code    int
	message string
}{
	"MESSAGE_NOT_MODIFIED": {400, "message is not modified: specified new message content and reply markup are exactly the same as a current content and reply markup of the message"},
	"WC_CONVERT_URL_INVALID": {400, "Wrong HTTP URL specified"},
	"EXTERNAL_URL_INVALID":   {400, "Wrong HTTP URL specified"},
	"MESSAGE_ID_INVALID":     {400, "message to be replied not found"},
	"USER_IS_BLOCKED":        {403, "bot was blocked by the user"},
	"USER_IS_BOT":            {403, "bot can't send messages to bots"},
	"INPUT_USER_DEACTIVATED": {403, "user is deactivated"},
	"CHAT_NOT_FOUND":         {400, "chat not found"},
	"PEER_ID_INVALID":        {400, "chat not found"},
	"USER_BANNED_IN_CHANNEL": {403, "bot was banned from the supergroup chat"},
	"BOT_METHOD_INVALID":     {400, "method is not available for bots"},
}

// TranslateNative переводит ошибку нативного клиента {code, message} в ошибку
// Bot API: известные константы заменяются синонимами, flood-ошибки получают
// распарсенный retry_after, остальные коды нормализуются к таксономии Bot API.
func TranslateNative(code int, message string) *Error {
	if syn, ok := nativeSynonyms[message]; ok {
		return NewError(syn.code, syn.message)
	}

	if strings.HasPrefix(message, tooManyRequestsPrefix) {
		if ra, err := strconv.Atoi(strings.TrimSpace(message[len(tooManyRequestsPrefix):])); err == nil && ra >= 0 {
			return TooManyRequests(ra)
		}
	}

	switch {
	case code == 401 || code == 403 || code == 404 || code == 409:
		return NewError(code, message)
	case code == 429:
		return TooManyRequests(0)
	case code >= 500:
		return Internal(message)
	default:
		return NewError(400, message)
	}
}
