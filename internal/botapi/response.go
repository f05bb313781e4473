package botapi

// Сериализация конверта ответа Bot API:
// {"ok":true,"result":...} либо {"ok":false,"error_code":N,"description":"...",
// "parameters":{"retry_after":N}}. Конверт пишется HTTP-слоем и webhook-актором
// (последний читает retry_after из ответов приёмника).

import (
	"encoding/json"
	"net/http"
	"strconv"
	"unicode/utf8"
)

// ResponseParameters — блок parameters конверта ошибки.
type ResponseParameters struct {
	RetryAfter     int   `json:"retry_after,omitempty"`
	MigrateToChatID int64 `json:"migrate_to_chat_id,omitempty"`
}

// Envelope — конверт ответа Bot API.
type Envelope struct {
	OK          bool                `json:"ok"`
	Result      json.RawMessage     `json:"result,omitempty"`
	ErrorCode   int                 `json:"error_code,omitempty"`
	Description string              `json:"description,omitempty"`
	Parameters  *ResponseParameters `json:"parameters,omitempty"`
}

// EncodeAnswer превращает Answer в байты конверта и HTTP-статус.
func EncodeAnswer(a Answer) ([]byte, int) {
	if a.Err != nil {
		env := Envelope{
			OK:          false,
			ErrorCode:   a.Err.Code,
			Description: SanitizeUTF8(a.Err.Message),
		}
		if a.Err.RetryAfter > 0 {
			env.Parameters = &ResponseParameters{RetryAfter: a.Err.RetryAfter}
		}
		body, _ := json.Marshal(env)
		return body, a.Err.Code
	}

	result := a.Result
	if len(result) == 0 {
		result = json.RawMessage("true")
	}
	body, err := json.Marshal(Envelope{OK: true, Result: result, Description: SanitizeUTF8(a.Description)})
	if err != nil {
		body, _ = json.Marshal(Envelope{OK: false, ErrorCode: 500, Description: "Internal Server Error: response encoding failed"})
		return body, http.StatusInternalServerError
	}
	return body, http.StatusOK
}

// WriteAnswer сериализует Answer в http.ResponseWriter, включая заголовок
// Retry-After для 429 — некоторые клиенты читают его вместо parameters.
func WriteAnswer(w http.ResponseWriter, a Answer) {
	body, status := EncodeAnswer(a)
	w.Header().Set("Content-Type", "application/json")
	if a.Err != nil && a.Err.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(a.Err.RetryAfter))
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// SanitizeUTF8 перекодирует строку, пришедшую от сетевого пира, в валидный UTF-8,
// заменяя битые байты на U+FFFD. Строки не отбрасываются: payload счета или URL
// вебхука должен дойти до владельца бота даже в повреждённом виде.
func SanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	out := make([]rune, 0, len(s))
	for _, r := range s {
		out = append(out, r)
	}
	return string(out)
}
