package botapi

// Query — единица работы Client-актора: один HTTP-запрос Bot API.
// HTTP-слой парсит метод, аргументы и multipart-файлы, создаёт Query и отдаёт
// её Client; ответ доставляется через канал ёмкости 1. Повторный Answer
// безопасно игнорируется (ответить можно ровно один раз: успех, ошибка или
// ошибка закрытия Client).

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"
)

// UploadedFile описывает файл, принятый HTTP-слоем (multipart-поле).
// Path указывает на временный файл на диске; Size нужен лимитеру загрузок.
type UploadedFile struct {
	FieldName string
	FileName  string
	Path      string
	Size      int64
}

// Answer — результат обработки Query: либо готовый JSON результата, либо ошибка.
// Description — необязательное человекочитаемое пояснение успешного ответа
// («Webhook is already set» и подобные).
type Answer struct {
	Result      json.RawMessage
	Description string
	Err         *Error
}

// Query несёт имя метода (в нижнем регистре), аргументы и файлы запроса.
// Потокобезопасность: аргументы неизменяемы после создания; Answer защищён Once.
type Query struct {
	method  string
	args    map[string]string
	files   map[string]UploadedFile
	arrived time.Time

	answerOnce sync.Once
	answerCh   chan Answer
	onAnswer   func()
}

// NewQuery создаёт Query. Имя метода приводится к нижнему регистру:
// поверхность Bot API нечувствительна к регистру имён методов.
func NewQuery(method string, args map[string]string, files map[string]UploadedFile) *Query {
	if args == nil {
		args = map[string]string{}
	}
	if files == nil {
		files = map[string]UploadedFile{}
	}
	return &Query{
		method:   strings.ToLower(method),
		args:     args,
		files:    files,
		arrived:  time.Now(),
		answerCh: make(chan Answer, 1),
	}
}

// Method возвращает имя метода в нижнем регистре.
func (q *Query) Method() string { return q.method }

// ArrivedAt возвращает время поступления запроса.
func (q *Query) ArrivedAt() time.Time { return q.arrived }

// HasArg сообщает, присутствует ли аргумент (даже пустой).
func (q *Query) HasArg(name string) bool {
	_, ok := q.args[name]
	return ok
}

// Arg возвращает строковый аргумент; отсутствие — пустая строка.
func (q *Query) Arg(name string) string { return q.args[name] }

// File возвращает multipart-файл по имени поля.
func (q *Query) File(field string) (UploadedFile, bool) {
	f, ok := q.files[field]
	return f, ok
}

// Files возвращает все multipart-файлы запроса.
func (q *Query) Files() map[string]UploadedFile { return q.files }

// HasFiles сообщает, несёт ли запрос загружаемые файлы.
func (q *Query) HasFiles() bool { return len(q.files) > 0 }

// TotalFileSize возвращает суммарный размер загружаемых файлов в байтах.
func (q *Query) TotalFileSize() int64 {
	var total int64
	for _, f := range q.files {
		total += f.Size
	}
	return total
}

// IntArg извлекает целочисленный аргумент с дефолтом и границами.
// Выход за границы прижимается к ближайшей допустимой величине; мусор → дефолт.
func (q *Query) IntArg(name string, def, min, max int64) int64 {
	raw, ok := q.args[name]
	if !ok || raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// BoolArg извлекает булев аргумент: true/1/yes считаются истиной.
func (q *Query) BoolArg(name string) bool {
	switch strings.ToLower(q.args[name]) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

// JSONArg декодирует аргумент как JSON в out. Пустой аргумент — не ошибка,
// out остаётся нетронутым, возвращается false.
func (q *Query) JSONArg(name string, out any) (bool, *Error) {
	raw := q.args[name]
	if raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, BadRequestf("can't parse %s: %s", name, err.Error())
	}
	return true, nil
}

// OnAnswer регистрирует колбэк, вызываемый ровно один раз в момент ответа.
// Регистрация допустима только до первой возможности ответа.
func (q *Query) OnAnswer(fn func()) { q.onAnswer = fn }

// AnswerOK отвечает на запрос готовым JSON результата. Повторные ответы игнорируются.
func (q *Query) AnswerOK(result json.RawMessage) {
	q.answerOnce.Do(func() {
		q.answerCh <- Answer{Result: result}
		if q.onAnswer != nil {
			q.onAnswer()
		}
	})
}

// AnswerOKDescription отвечает успехом с пояснением в поле description конверта.
func (q *Query) AnswerOKDescription(result json.RawMessage, description string) {
	q.answerOnce.Do(func() {
		q.answerCh <- Answer{Result: result, Description: description}
		if q.onAnswer != nil {
			q.onAnswer()
		}
	})
}

// AnswerError отвечает ошибкой Bot API. Повторные ответы игнорируются.
func (q *Query) AnswerError(err *Error) {
	if err == nil {
		err = Internal("Internal Server Error")
	}
	q.answerOnce.Do(func() {
		q.answerCh <- Answer{Err: err}
		if q.onAnswer != nil {
			q.onAnswer()
		}
	})
}

// Await блокирует до ответа или отмены контекста. При отмене возвращается
// синтетическая 500: HTTP-клиент уже ушёл, но форма ответа должна быть валидной.
func (q *Query) Await(ctx context.Context) Answer {
	select {
	case a := <-q.answerCh:
		return a
	case <-ctx.Done():
		return Answer{Err: Internal("Request timeout")}
	}
}
