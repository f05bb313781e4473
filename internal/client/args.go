package client

// Разбор структурных аргументов Bot API: chat_id (число либо @username),
// идентификаторы сообщений, reply-параметры, опции отправки, клавиатуры и
// ссылки на входные файлы. Все разборщики отвечают на запрос сами при
// невалидном входе и сигнализируют об этом вызывающему.

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"telegram-botapi-gateway/internal/botapi"
	"telegram-botapi-gateway/internal/tdapi"
)

// resolveChatID разбирает chat_id: число → синхронно, @username → через
// searchPublicChat. При ошибке запрос уже отвечен.
func (c *Client) resolveChatID(q *botapi.Query, name string, cont func(chatID int64)) {
	raw := strings.TrimSpace(q.Arg(name))
	if raw == "" {
		q.AnswerError(botapi.BadRequest("chat_id is empty"))
		return
	}
	if strings.HasPrefix(raw, "@") {
		username := raw[1:]
		c.sendRequest(tdapi.SearchPublicChat{Username: username}, func(resp tdapi.Response) {
			chat, ok := resp.Result.(*tdapi.Chat)
			if !ok {
				q.AnswerError(botapi.BadRequest("chat not found"))
				return
			}
			cont(chat.ID)
		})
		return
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		q.AnswerError(botapi.BadRequest("chat not found"))
		return
	}
	cont(id)
}

// messageIDArg извлекает внешний message_id и возвращает внутренний id.
func messageIDArg(q *botapi.Query, name string) (int64, bool) {
	raw := strings.TrimSpace(q.Arg(name))
	if raw == "" {
		q.AnswerError(botapi.BadRequest("message identifier is not specified"))
		return 0, false
	}
	ext, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || asTdlibMessageID(ext) == 0 {
		q.AnswerError(botapi.BadRequest("message identifier is not valid"))
		return 0, false
	}
	return asTdlibMessageID(ext), true
}

// messageIDsArg извлекает JSON-массив внешних id и возвращает внутренние.
func messageIDsArg(q *botapi.Query, name string) ([]int64, bool) {
	var ext []int64
	ok, err := q.JSONArg(name, &ext)
	if err != nil {
		q.AnswerError(err)
		return nil, false
	}
	if !ok || len(ext) == 0 {
		q.AnswerError(botapi.BadRequest("message identifiers are not specified"))
		return nil, false
	}
	ids := make([]int64, 0, len(ext))
	for _, e := range ext {
		id := asTdlibMessageID(e)
		if id == 0 {
			q.AnswerError(botapi.BadRequest("message identifier is not valid"))
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

// threadIDArg — message_thread_id во внутренней форме; 0 — не задан.
func threadIDArg(q *botapi.Query) int64 {
	ext := q.IntArg("message_thread_id", 0, 0, maxClientMessageID)
	return asTdlibMessageID(ext)
}

// parseSendOptions собирает общие опции отправки.
func parseSendOptions(q *botapi.Query) tdapi.SendOptions {
	return tdapi.SendOptions{
		DisableNotification: q.BoolArg("disable_notification"),
		ProtectContent:      q.BoolArg("protect_content"),
		EffectID:            q.IntArg("message_effect_id", 0, 0, int64(^uint64(0)>>1)),
		PaidStarCount:       q.IntArg("paid_star_count", 0, 0, 1_000_000),
	}
}

// replyParameters — проекция reply_parameters.
type replyParameters struct {
	MessageID                int64           `json:"message_id"`
	ChatID                   json.RawMessage `json:"chat_id"`
	AllowSendingWithoutReply bool            `json:"allow_sending_without_reply"`
}

// parseReplyTo извлекает ссылку на отвечаемое сообщение: reply_parameters
// либо легаси reply_to_message_id. nil — ответа нет. При ошибке запрос отвечен.
func parseReplyTo(q *botapi.Query, chatID int64) (*tdapi.ReplyToMessage, bool) {
	var rp replyParameters
	ok, err := q.JSONArg("reply_parameters", &rp)
	if err != nil {
		q.AnswerError(err)
		return nil, false
	}
	if ok && rp.MessageID != 0 {
		replyChat := chatID
		if len(rp.ChatID) > 0 {
			// Числовой chat_id другого чата; @username в reply_parameters
			// поддерживается только для публичных чатов и идёт мимо ядра.
			if id, perr := strconv.ParseInt(strings.Trim(string(rp.ChatID), `"`), 10, 64); perr == nil {
				replyChat = id
			}
		}
		internal := asTdlibMessageID(rp.MessageID)
		if internal == 0 {
			q.AnswerError(botapi.BadRequest("message to be replied not found"))
			return nil, false
		}
		return &tdapi.ReplyToMessage{ChatID: replyChat, MessageID: internal}, true
	}
	if ext := q.IntArg("reply_to_message_id", 0, 0, maxClientMessageID); ext != 0 {
		return &tdapi.ReplyToMessage{ChatID: chatID, MessageID: asTdlibMessageID(ext)}, true
	}
	return nil, true
}

// Сырые формы клавиатур Bot API.
type rawInlineButton struct {
	Text                         string          `json:"text"`
	URL                          string          `json:"url"`
	CallbackData                 string          `json:"callback_data"`
	WebApp                       *struct{ URL string `json:"url"` } `json:"web_app"`
	LoginURL                     *rawLoginURL    `json:"login_url"`
	SwitchInlineQuery            *string         `json:"switch_inline_query"`
	SwitchInlineQueryCurrentChat *string         `json:"switch_inline_query_current_chat"`
	CallbackGame                 json.RawMessage `json:"callback_game"`
	Pay                          bool            `json:"pay"`
}

type rawLoginURL struct {
	URL                string `json:"url"`
	ForwardText        string `json:"forward_text"`
	BotUsername        string `json:"bot_username"`
	RequestWriteAccess bool   `json:"request_write_access"`
}

type rawReplyMarkup struct {
	InlineKeyboard [][]rawInlineButton `json:"inline_keyboard"`
}

// parseReplyMarkup разбирает reply_markup. Inline-клавиатуры типизируются
// (ради разрешения login-url ботов), прочая разметка едет прозрачно.
// nil — разметки нет. При ошибке запрос отвечен.
func (c *Client) parseReplyMarkup(q *botapi.Query) (tdapi.ReplyMarkup, bool) {
	raw := q.Arg("reply_markup")
	if raw == "" {
		return nil, true
	}
	var rm rawReplyMarkup
	if err := json.Unmarshal([]byte(raw), &rm); err != nil {
		q.AnswerError(botapi.BadRequestf("can't parse reply keyboard markup: %s", err.Error()))
		return nil, false
	}
	if rm.InlineKeyboard == nil {
		return &tdapi.RawMarkup{JSON: json.RawMessage(raw)}, true
	}

	kb := &tdapi.InlineKeyboard{Rows: make([][]tdapi.InlineButton, 0, len(rm.InlineKeyboard))}
	for _, row := range rm.InlineKeyboard {
		out := make([]tdapi.InlineButton, 0, len(row))
		for _, btn := range row {
			kind, ok := c.inlineButtonKind(q, btn)
			if !ok {
				return nil, false
			}
			out = append(out, tdapi.InlineButton{Text: btn.Text, Kind: kind})
		}
		kb.Rows = append(kb.Rows, out)
	}
	return kb, true
}

// inlineButtonKind классифицирует одну inline-кнопку.
func (c *Client) inlineButtonKind(q *botapi.Query, btn rawInlineButton) (tdapi.InlineButtonKind, bool) {
	switch {
	case btn.LoginURL != nil:
		if btn.LoginURL.URL == "" {
			q.AnswerError(botapi.BadRequest("LOGIN_URL_INVALID"))
			return nil, false
		}
		var id int64
		if btn.LoginURL.BotUsername == "" {
			id = c.myID
		} else if known := c.resolvedBots[strings.TrimPrefix(btn.LoginURL.BotUsername, "@")]; known != 0 {
			id = known
		} else {
			id = -c.tempLoginID(strings.TrimPrefix(btn.LoginURL.BotUsername, "@"))
		}
		if btn.LoginURL.RequestWriteAccess {
			id = -abs64(id)
		} else {
			id = abs64(id)
		}
		return tdapi.ButtonLoginURL{URL: btn.LoginURL.URL, ID: id, ForwardText: btn.LoginURL.ForwardText}, true
	case btn.CallbackData != "":
		return tdapi.ButtonCallback{Data: []byte(btn.CallbackData)}, true
	case btn.WebApp != nil:
		return tdapi.ButtonWebApp{URL: btn.WebApp.URL}, true
	case btn.SwitchInlineQuery != nil:
		return tdapi.ButtonSwitchInline{Query: *btn.SwitchInlineQuery}, true
	case btn.SwitchInlineQueryCurrentChat != nil:
		return tdapi.ButtonSwitchInline{Query: *btn.SwitchInlineQueryCurrentChat, CurrentChat: true}, true
	case btn.Pay:
		return tdapi.ButtonPay{}, true
	case btn.URL != "":
		return tdapi.ButtonURL{URL: btn.URL}, true
	case len(btn.CallbackGame) > 0:
		return tdapi.ButtonCallback{Data: nil}, true
	default:
		q.AnswerError(botapi.BadRequest("can't parse inline keyboard button: text buttons are unallowed in the inline keyboard"))
		return nil, false
	}
}

// markupNeedsResolution сообщает, остались ли в клавиатуре временные id
// неразрешённых login-url ботов.
func (c *Client) markupNeedsResolution(markup tdapi.ReplyMarkup) bool {
	kb, ok := markup.(*tdapi.InlineKeyboard)
	if !ok {
		return false
	}
	for _, row := range kb.Rows {
		for _, btn := range row {
			if login, ok := btn.Kind.(tdapi.ButtonLoginURL); ok {
				if _, isTemp := c.tempUsernameByID[-abs64(login.ID)]; isTemp {
					return true
				}
			}
		}
	}
	return false
}

// withReplyMarkup разбирает клавиатуру и при необходимости дорешивает
// login-url ботов, после чего зовёт cont.
func (c *Client) withReplyMarkup(q *botapi.Query, cont func(markup tdapi.ReplyMarkup)) {
	markup, ok := c.parseReplyMarkup(q)
	if !ok {
		return
	}
	if markup == nil || !c.markupNeedsResolution(markup) {
		cont(markup)
		return
	}
	c.resolveBotUsernames(q, markup, cont)
}

// inputFileRef строит ссылку на входной файл для нативного клиента:
// multipart-файл, attach://, удалённый URL, локальный file:// (только в
// локальном режиме) либо file_id.
func (c *Client) inputFileRef(q *botapi.Query, field string) (map[string]any, *botapi.Error) {
	if f, ok := q.File(field); ok {
		return map[string]any{"@type": "inputFileLocal", "path": f.Path}, nil
	}
	raw := strings.TrimSpace(q.Arg(field))
	if raw == "" {
		return nil, nil
	}
	switch {
	case strings.HasPrefix(raw, "attach://"):
		name := raw[len("attach://"):]
		f, ok := q.File(name)
		if !ok {
			return nil, botapi.BadRequestf("file not found in request: %q", name)
		}
		return map[string]any{"@type": "inputFileLocal", "path": f.Path}, nil
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return map[string]any{"@type": "inputFileURL", "url": raw}, nil
	case strings.HasPrefix(raw, "file://"):
		if !c.opts.LocalMode {
			return nil, botapi.BadRequest("Wrong file identifier/HTTP URL specified")
		}
		path, err := url.PathUnescape(strings.TrimPrefix(raw, "file://"))
		if err != nil {
			return nil, botapi.BadRequest("Wrong file identifier/HTTP URL specified")
		}
		return map[string]any{"@type": "inputFileLocal", "path": path}, nil
	default:
		return map[string]any{"@type": "inputFileRemote", "id": raw}, nil
	}
}
