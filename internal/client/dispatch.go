package client

// Маршрутизация методов Bot API. Ядро (отправка, правка, доставка апдейтов,
// вебхук, файлы) обслуживается типизированными обработчиками; длинный хвост
// административных методов описан таблицей genericMethods и едет через
// tdapi.Generic с прозрачным ответом. Имена методов нечувствительны к
// регистру; легаси-имена заведены как алиасы.

import (
	"encoding/json"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"telegram-botapi-gateway/internal/botapi"
	"telegram-botapi-gateway/internal/tdapi"
)

// maxDownloadSize — потолок размера файла для getFile вне локального режима.
const maxDownloadSize = int64(20) << 20

var trueResult = json.RawMessage("true")

// dispatchQuery направляет запрос обработчику; неизвестный метод — 404.
func (c *Client) dispatchQuery(q *botapi.Query) {
	h, core := coreHandlers[q.Method()]
	spec, generic := genericMethods[q.Method()]
	if !core && !generic {
		q.AnswerError(botapi.NotFound("Not Found"))
		return
	}
	c.beginRequest(q)
	q.OnAnswer(func() { c.post(func() { c.endRequest(q) }) })
	if core {
		h(c, q)
		return
	}
	c.handleGeneric(q, spec)
}

// coreHandlers — типизированные обработчики ядра.
var coreHandlers = map[string]func(*Client, *botapi.Query){
	"getme":          (*Client).handleGetMe,
	"close":          (*Client).handleClose,
	"logout":         (*Client).handleLogOut,
	"getupdates":     (*Client).handleGetUpdates,
	"setwebhook":     (*Client).handleSetWebhook,
	"deletewebhook":  (*Client).handleDeleteWebhook,
	"getwebhookinfo": (*Client).handleGetWebhookInfo,

	"sendmessage":    (*Client).handleSendMessage,
	"sendmediagroup": (*Client).handleSendMediaGroup,

	"forwardmessage":  func(c *Client, q *botapi.Query) { c.handleForward(q, false, false) },
	"forwardmessages": func(c *Client, q *botapi.Query) { c.handleForward(q, true, false) },
	"copymessage":     func(c *Client, q *botapi.Query) { c.handleForward(q, false, true) },
	"copymessages":    func(c *Client, q *botapi.Query) { c.handleForward(q, true, true) },

	"editmessagetext":        (*Client).handleEditMessageText,
	"editmessagecaption":     (*Client).handleEditMessageCaption,
	"editmessagemedia":       (*Client).handleEditMessageMedia,
	"editmessagereplymarkup": (*Client).handleEditMessageReplyMarkup,

	"deletemessage":  (*Client).handleDeleteMessage,
	"deletemessages": (*Client).handleDeleteMessages,

	"getchat": (*Client).handleGetChat,
	"getfile": (*Client).handleGetFile,
}

func init() {
	for name, spec := range mediaSends {
		s := spec
		coreHandlers[name] = func(c *Client, q *botapi.Query) { c.handleSendMedia(q, s) }
	}
}

// --- getMe / close / logOut ------------------------------------------------

func (c *Client) handleGetMe(q *botapi.Query) {
	if !c.authorized {
		q.AnswerError(botapi.Unauthorized("Unauthorized"))
		return
	}
	u := c.cache.User(c.myID)
	if u == nil {
		q.AnswerError(botapi.Internal("bot user is not loaded yet"))
		return
	}
	m := c.renderUserRef(u.ID)
	if u.Bot != nil {
		m["can_join_groups"] = u.Bot.CanJoinGroups
		m["can_read_all_group_messages"] = u.Bot.CanReadAllGroupMessages
		m["supports_inline_queries"] = u.Bot.IsInline
		m["can_connect_to_business"] = u.Bot.CanConnectToBusiness
		m["has_main_web_app"] = u.Bot.HasMainWebApp
	}
	raw, err := json.Marshal(m)
	if err != nil {
		q.AnswerError(botapi.Internal("response encoding failed"))
		return
	}
	q.AnswerOK(raw)
}

// handleClose перезапускает клиента: ответ уходит сразу, закрытие — штатным FSM.
func (c *Client) handleClose(q *botapi.Query) {
	q.AnswerOK(trueResult)
	c.beginClose(false)
}

// handleLogOut разлогинивает бота с удалением локальных данных и буфера.
func (c *Client) handleLogOut(q *botapi.Query) {
	q.AnswerOK(trueResult)
	c.clearTQueue = true
	c.beginClose(true)
}

// --- Отправка --------------------------------------------------------------

// buildInputText собирает inputMessageText из text/parse_mode/entities.
func buildInputText(q *botapi.Query, field string) (tdapi.MessageContent, *botapi.Error) {
	text := q.Arg(field)
	if text == "" {
		return nil, botapi.BadRequest("message text is empty")
	}
	fields := map[string]any{"text": text}
	if pm := q.Arg("parse_mode"); pm != "" {
		fields["parse_mode"] = pm
	}
	if ent := q.Arg("entities"); ent != "" {
		fields["entities"] = json.RawMessage(ent)
	}
	if lp := q.Arg("link_preview_options"); lp != "" {
		fields["link_preview_options"] = json.RawMessage(lp)
	} else if q.BoolArg("disable_web_page_preview") {
		fields["link_preview_options"] = map[string]any{"is_disabled": true}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, botapi.Internal("request encoding failed")
	}
	return tdapi.ContentRaw{Type: "inputMessageText", JSON: raw}, nil
}

func (c *Client) handleSendMessage(q *botapi.Query) {
	content, cerr := buildInputText(q, "text")
	if cerr != nil {
		q.AnswerError(cerr)
		return
	}
	c.resolveChatID(q, "chat_id", func(chatID int64) {
		replyTo, ok := parseReplyTo(q, chatID)
		if !ok {
			return
		}
		c.withReplyMarkup(q, func(markup tdapi.ReplyMarkup) {
			c.performSend(q, chatID, tdapi.SendMessage{
				ChatID:               chatID,
				ThreadID:             threadIDArg(q),
				ReplyTo:              replyTo,
				Options:              parseSendOptions(q),
				Content:              content,
				ReplyMarkup:          markup,
				BusinessConnectionID: q.Arg("business_connection_id"),
			})
		})
	})
}

// mediaSpec — описание одного метода send<Media>.
type mediaSpec struct {
	contentType string // тип входного контента нативного клиента
	fileField   string // имя поля файла; пусто — файла нет (location, poll...)
	hasThumb    bool
	hasCaption  bool
	passthrough []string // прочие аргументы, уходящие в контент как есть
}

var mediaSends = map[string]mediaSpec{
	"sendphoto": {contentType: "inputMessagePhoto", fileField: "photo", hasCaption: true,
		passthrough: []string{"has_spoiler", "show_caption_above_media"}},
	"sendaudio": {contentType: "inputMessageAudio", fileField: "audio", hasThumb: true, hasCaption: true,
		passthrough: []string{"duration", "performer", "title"}},
	"senddocument": {contentType: "inputMessageDocument", fileField: "document", hasThumb: true, hasCaption: true,
		passthrough: []string{"disable_content_type_detection"}},
	"sendvideo": {contentType: "inputMessageVideo", fileField: "video", hasThumb: true, hasCaption: true,
		passthrough: []string{"duration", "width", "height", "supports_streaming", "has_spoiler", "show_caption_above_media", "cover", "start_timestamp"}},
	"sendanimation": {contentType: "inputMessageAnimation", fileField: "animation", hasThumb: true, hasCaption: true,
		passthrough: []string{"duration", "width", "height", "has_spoiler", "show_caption_above_media"}},
	"sendvoice": {contentType: "inputMessageVoiceNote", fileField: "voice", hasCaption: true,
		passthrough: []string{"duration"}},
	"sendvideonote": {contentType: "inputMessageVideoNote", fileField: "video_note", hasThumb: true,
		passthrough: []string{"duration", "length"}},
	"sendsticker": {contentType: "inputMessageSticker", fileField: "sticker",
		passthrough: []string{"emoji"}},
	"sendpaidmedia": {contentType: "inputMessagePaidMedia", hasCaption: true,
		passthrough: []string{"star_count", "media", "payload", "show_caption_above_media"}},
	"sendlocation": {contentType: "inputMessageLocation",
		passthrough: []string{"latitude", "longitude", "horizontal_accuracy", "live_period", "heading", "proximity_alert_radius"}},
	"sendvenue": {contentType: "inputMessageVenue",
		passthrough: []string{"latitude", "longitude", "title", "address", "foursquare_id", "foursquare_type", "google_place_id", "google_place_type"}},
	"sendcontact": {contentType: "inputMessageContact",
		passthrough: []string{"phone_number", "first_name", "last_name", "vcard"}},
	"sendpoll": {contentType: "inputMessagePoll",
		passthrough: []string{"question", "question_parse_mode", "question_entities", "options", "is_anonymous", "type", "allows_multiple_answers", "correct_option_id", "explanation", "explanation_parse_mode", "explanation_entities", "open_period", "close_date", "is_closed"}},
	"senddice": {contentType: "inputMessageDice",
		passthrough: []string{"emoji"}},
	"sendgame": {contentType: "inputMessageGame",
		passthrough: []string{"game_short_name"}},
	"sendinvoice": {contentType: "inputMessageInvoice",
		passthrough: []string{"title", "description", "payload", "provider_token", "currency", "prices", "max_tip_amount", "suggested_tip_amounts", "start_parameter", "provider_data", "photo_url", "photo_size", "photo_width", "photo_height", "need_name", "need_phone_number", "need_email", "need_shipping_address", "send_phone_number_to_provider", "send_email_to_provider", "is_flexible"}},
}

func (c *Client) handleSendMedia(q *botapi.Query, spec mediaSpec) {
	content, cerr := c.buildMediaContent(q, spec)
	if cerr != nil {
		q.AnswerError(cerr)
		return
	}
	c.resolveChatID(q, "chat_id", func(chatID int64) {
		replyTo, ok := parseReplyTo(q, chatID)
		if !ok {
			return
		}
		c.withReplyMarkup(q, func(markup tdapi.ReplyMarkup) {
			c.performSend(q, chatID, tdapi.SendMessage{
				ChatID:               chatID,
				ThreadID:             threadIDArg(q),
				ReplyTo:              replyTo,
				Options:              parseSendOptions(q),
				Content:              content,
				ReplyMarkup:          markup,
				BusinessConnectionID: q.Arg("business_connection_id"),
			})
		})
	})
}

// buildMediaContent собирает входной контент send<Media> по описанию.
func (c *Client) buildMediaContent(q *botapi.Query, spec mediaSpec) (tdapi.MessageContent, *botapi.Error) {
	fields := map[string]any{}
	if spec.fileField != "" {
		ref, err := c.inputFileRef(q, spec.fileField)
		if err != nil {
			return nil, err
		}
		if ref == nil {
			return nil, botapi.BadRequestf("there is no %s in the request", spec.fileField)
		}
		fields[spec.fileField] = ref
	}
	if spec.hasThumb {
		ref, err := c.inputFileRef(q, "thumbnail")
		if err != nil {
			return nil, err
		}
		if ref == nil {
			// Легаси-имя поля.
			if ref, err = c.inputFileRef(q, "thumb"); err != nil {
				return nil, err
			}
		}
		if ref != nil {
			fields["thumbnail"] = ref
		}
	}
	if spec.hasCaption {
		if caption := q.Arg("caption"); caption != "" {
			fields["caption"] = caption
		}
		if pm := q.Arg("parse_mode"); pm != "" {
			fields["parse_mode"] = pm
		}
		if ent := q.Arg("caption_entities"); ent != "" {
			fields["caption_entities"] = json.RawMessage(ent)
		}
	}
	for _, name := range spec.passthrough {
		if v := q.Arg(name); v != "" {
			fields[name] = passthroughValue(v)
		}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, botapi.Internal("request encoding failed")
	}
	return tdapi.ContentRaw{Type: spec.contentType, JSON: raw}, nil
}

// passthroughValue подбирает JSON-форму сырого аргумента: JSON остаётся JSON,
// числа и булевы — скалярами, прочее — строкой.
func passthroughValue(v string) any {
	switch {
	case v == "true":
		return true
	case v == "false":
		return false
	case len(v) > 0 && (v[0] == '[' || v[0] == '{'):
		return json.RawMessage(v)
	default:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		return v
	}
}

// performSend регистрирует агрегат на одно сообщение и отправляет его.
// Счётчик чата резервируется до получения временного id.
func (c *Client) performSend(q *botapi.Query, chatID int64, req tdapi.SendMessage) {
	if !c.checkSendCap(q, chatID, 1) {
		return
	}
	queryID := c.newSendQuery(q, 1, false)
	c.yetUnsentCount[chatID]++
	c.sendRequest(req, func(resp tdapi.Response) {
		c.releaseSendReservation(chatID)
		if resp.Err != nil {
			c.onSendPartRejected(queryID, 0, *resp.Err)
			return
		}
		msg, ok := resp.Result.(*tdapi.Message)
		if !ok {
			c.onSendPartRejected(queryID, 0, tdapi.Error{Code: 500, Message: "Unexpected send response"})
			return
		}
		c.registerYetUnsent(chatID, msg.ID, queryID, 0)
	})
}

// releaseSendReservation снимает резерв счётчика, сделанный до отправки.
func (c *Client) releaseSendReservation(chatID int64) {
	if n := c.yetUnsentCount[chatID]; n <= 1 {
		delete(c.yetUnsentCount, chatID)
	} else {
		c.yetUnsentCount[chatID] = n - 1
	}
}

// handleSendMediaGroup — отправка альбома.
func (c *Client) handleSendMediaGroup(q *botapi.Query) {
	var items []map[string]json.RawMessage
	ok, jerr := q.JSONArg("media", &items)
	if jerr != nil {
		q.AnswerError(jerr)
		return
	}
	if !ok || len(items) < 2 || len(items) > 10 {
		q.AnswerError(botapi.BadRequest("media group must include 2-10 items"))
		return
	}
	contents := make([]tdapi.MessageContent, 0, len(items))
	for _, item := range items {
		var mediaType string
		if err := json.Unmarshal(item["type"], &mediaType); err != nil || mediaType == "" {
			q.AnswerError(botapi.BadRequest("invalid media group item type"))
			return
		}
		fields := map[string]any{}
		for k, v := range item {
			if k == "type" {
				continue
			}
			if k == "media" {
				var src string
				if err := json.Unmarshal(v, &src); err != nil {
					q.AnswerError(botapi.BadRequest("invalid media source"))
					return
				}
				ref, ferr := c.mediaSourceRef(q, src)
				if ferr != nil {
					q.AnswerError(ferr)
					return
				}
				fields[k] = ref
				continue
			}
			fields[k] = v
		}
		raw, err := json.Marshal(fields)
		if err != nil {
			q.AnswerError(botapi.Internal("request encoding failed"))
			return
		}
		contents = append(contents, tdapi.ContentRaw{
			Type: inputContentType(mediaType),
			JSON: raw,
		})
	}

	c.resolveChatID(q, "chat_id", func(chatID int64) {
		replyTo, ok := parseReplyTo(q, chatID)
		if !ok {
			return
		}
		if !c.checkSendCap(q, chatID, len(contents)) {
			return
		}
		queryID := c.newSendQuery(q, len(contents), false)
		c.yetUnsentCount[chatID] += len(contents)
		c.sendRequest(tdapi.SendMessageAlbum{
			ChatID:               chatID,
			ThreadID:             threadIDArg(q),
			ReplyTo:              replyTo,
			Options:              parseSendOptions(q),
			Contents:             contents,
			BusinessConnectionID: q.Arg("business_connection_id"),
		}, func(resp tdapi.Response) {
			for range contents {
				c.releaseSendReservation(chatID)
			}
			if resp.Err != nil {
				for i := range contents {
					c.onSendPartRejected(queryID, i, *resp.Err)
				}
				return
			}
			msgs, ok := resp.Result.(*tdapi.Messages)
			if !ok {
				for i := range contents {
					c.onSendPartRejected(queryID, i, tdapi.Error{Code: 500, Message: "Unexpected send response"})
				}
				return
			}
			c.registerSendParts(chatID, queryID, msgs.List)
		})
	})
}

// registerSendParts регистрирует временные сообщения мультиотправки;
// отсутствующие части закрываются отказом.
func (c *Client) registerSendParts(chatID int64, queryID uint64, msgs []*tdapi.Message) {
	for i, msg := range msgs {
		if msg == nil {
			c.onSendPartRejected(queryID, i, tdapi.Error{Code: 400, Message: "Group send failed"})
			continue
		}
		c.registerYetUnsent(chatID, msg.ID, queryID, i)
	}
}

// inputContentType превращает тип медиа Bot API в имя входного контента
// нативного клиента: photo → inputMessagePhoto.
func inputContentType(mediaType string) string {
	if mediaType == "" {
		return "inputMessageDocument"
	}
	return "inputMessage" + strings.ToUpper(mediaType[:1]) + mediaType[1:]
}

// mediaSourceRef — ссылка на медиа из элемента альбома.
func (c *Client) mediaSourceRef(q *botapi.Query, src string) (map[string]any, *botapi.Error) {
	switch {
	case strings.HasPrefix(src, "attach://"):
		name := src[len("attach://"):]
		f, ok := q.File(name)
		if !ok {
			return nil, botapi.BadRequestf("file not found in request: %q", name)
		}
		return map[string]any{"@type": "inputFileLocal", "path": f.Path}, nil
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return map[string]any{"@type": "inputFileURL", "url": src}, nil
	default:
		return map[string]any{"@type": "inputFileRemote", "id": src}, nil
	}
}

// handleForward — forwardMessage(s) / copyMessage(s).
func (c *Client) handleForward(q *botapi.Query, multi, copyMode bool) {
	var ids []int64
	if multi {
		var ok bool
		if ids, ok = messageIDsArg(q, "message_ids"); !ok {
			return
		}
	} else {
		id, ok := messageIDArg(q, "message_id")
		if !ok {
			return
		}
		ids = []int64{id}
	}

	c.resolveChatID(q, "chat_id", func(chatID int64) {
		c.resolveChatID(q, "from_chat_id", func(fromChatID int64) {
			if !c.checkSendCap(q, chatID, len(ids)) {
				return
			}
			queryID := c.newSendQuery(q, len(ids), copyMode)
			c.yetUnsentCount[chatID] += len(ids)
			c.sendRequest(tdapi.ForwardMessages{
				ChatID:        chatID,
				ThreadID:      threadIDArg(q),
				FromChatID:    fromChatID,
				MessageIDs:    ids,
				Options:       parseSendOptions(q),
				SendCopy:      copyMode,
				RemoveCaption: copyMode && q.BoolArg("remove_caption"),
			}, func(resp tdapi.Response) {
				for range ids {
					c.releaseSendReservation(chatID)
				}
				if resp.Err != nil {
					for i := range ids {
						c.onSendPartRejected(queryID, i, *resp.Err)
					}
					return
				}
				msgs, ok := resp.Result.(*tdapi.Messages)
				if !ok {
					for i := range ids {
						c.onSendPartRejected(queryID, i, tdapi.Error{Code: 500, Message: "Unexpected send response"})
					}
					return
				}
				for i, msg := range msgs.List {
					if msg == nil {
						c.onSendPartRejected(queryID, i, tdapi.Error{Code: 400, Message: "message to forward not found"})
						continue
					}
					c.registerYetUnsent(chatID, msg.ID, queryID, i)
				}
			})
		})
	})
}

// --- Правки ----------------------------------------------------------------

func (c *Client) handleEditMessageText(q *botapi.Query) {
	content, cerr := buildInputText(q, "text")
	if cerr != nil {
		q.AnswerError(cerr)
		return
	}
	if q.Arg("inline_message_id") != "" {
		c.editInline(q, "editInlineMessageText", map[string]any{"input_message_content": contentFields(content)})
		return
	}
	c.performEdit(q, func(chatID, messageID int64, markup tdapi.ReplyMarkup) tdapi.Request {
		return tdapi.EditMessageText{ChatID: chatID, MessageID: messageID, Content: content, ReplyMarkup: markup}
	})
}

func (c *Client) handleEditMessageCaption(q *botapi.Query) {
	if q.Arg("inline_message_id") != "" {
		c.editInline(q, "editInlineMessageCaption", map[string]any{"caption": q.Arg("caption")})
		return
	}
	c.performEdit(q, func(chatID, messageID int64, markup tdapi.ReplyMarkup) tdapi.Request {
		return tdapi.EditMessageCaption{ChatID: chatID, MessageID: messageID, Caption: q.Arg("caption"), ReplyMarkup: markup}
	})
}

func (c *Client) handleEditMessageMedia(q *botapi.Query) {
	var item map[string]json.RawMessage
	ok, jerr := q.JSONArg("media", &item)
	if jerr != nil {
		q.AnswerError(jerr)
		return
	}
	if !ok {
		q.AnswerError(botapi.BadRequest("media is empty"))
		return
	}
	var mediaType string
	if err := json.Unmarshal(item["type"], &mediaType); err != nil || mediaType == "" {
		q.AnswerError(botapi.BadRequest("invalid media type"))
		return
	}
	fields := map[string]any{}
	for k, v := range item {
		if k == "type" {
			continue
		}
		if k == "media" {
			var src string
			if err := json.Unmarshal(v, &src); err != nil {
				q.AnswerError(botapi.BadRequest("invalid media source"))
				return
			}
			ref, ferr := c.mediaSourceRef(q, src)
			if ferr != nil {
				q.AnswerError(ferr)
				return
			}
			fields[k] = ref
			continue
		}
		fields[k] = v
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		q.AnswerError(botapi.Internal("request encoding failed"))
		return
	}
	content := tdapi.ContentRaw{Type: inputContentType(mediaType), JSON: raw}

	if q.Arg("inline_message_id") != "" {
		c.editInline(q, "editInlineMessageMedia", map[string]any{"input_message_content": contentFields(content)})
		return
	}
	c.performEdit(q, func(chatID, messageID int64, markup tdapi.ReplyMarkup) tdapi.Request {
		return tdapi.EditMessageMedia{ChatID: chatID, MessageID: messageID, Content: content, ReplyMarkup: markup}
	})
}

func (c *Client) handleEditMessageReplyMarkup(q *botapi.Query) {
	if q.Arg("inline_message_id") != "" {
		c.editInline(q, "editInlineMessageReplyMarkup", nil)
		return
	}
	c.performEdit(q, func(chatID, messageID int64, markup tdapi.ReplyMarkup) tdapi.Request {
		return tdapi.EditMessageReplyMarkup{ChatID: chatID, MessageID: messageID, ReplyMarkup: markup}
	})
}

// performEdit — общий каркас правок адресуемых сообщений.
func (c *Client) performEdit(q *botapi.Query, build func(chatID, messageID int64, markup tdapi.ReplyMarkup) tdapi.Request) {
	messageID, ok := messageIDArg(q, "message_id")
	if !ok {
		return
	}
	c.resolveChatID(q, "chat_id", func(chatID int64) {
		c.withReplyMarkup(q, func(markup tdapi.ReplyMarkup) {
			c.sendRequest(build(chatID, messageID, markup), func(resp tdapi.Response) {
				if resp.Err != nil {
					q.AnswerError(botapi.TranslateNative(resp.Err.Code, resp.Err.Message))
					return
				}
				msg, ok := resp.Result.(*tdapi.Message)
				if !ok {
					q.AnswerOK(trueResult)
					return
				}
				c.cache.PutMessage(msg)
				q.AnswerOK(c.renderMessageJSON(msg))
			})
		})
	})
}

// editInline — правка inline-сообщения через Generic; ответ всегда true.
func (c *Client) editInline(q *botapi.Query, method string, extra map[string]any) {
	c.withReplyMarkup(q, func(markup tdapi.ReplyMarkup) {
		fields := map[string]any{"inline_message_id": q.Arg("inline_message_id")}
		for k, v := range extra {
			fields[k] = v
		}
		if markup != nil {
			fields["reply_markup"] = markupFields(markup)
		}
		c.sendRequest(tdapi.Generic{Method: method, Fields: fields}, func(resp tdapi.Response) {
			if resp.Err != nil {
				q.AnswerError(botapi.TranslateNative(resp.Err.Code, resp.Err.Message))
				return
			}
			q.AnswerOK(trueResult)
		})
	})
}

// contentFields — представление контента для Generic-команд.
func contentFields(content tdapi.MessageContent) map[string]any {
	raw, ok := content.(tdapi.ContentRaw)
	if !ok {
		return nil
	}
	return map[string]any{"@type": raw.Type, "fields": json.RawMessage(raw.JSON)}
}

// markupFields — представление клавиатуры для Generic-команд.
func markupFields(markup tdapi.ReplyMarkup) any {
	switch m := markup.(type) {
	case *tdapi.RawMarkup:
		return json.RawMessage(m.JSON)
	case *tdapi.InlineKeyboard:
		return renderInlineKeyboard(m)
	}
	return nil
}

// --- Удаление --------------------------------------------------------------

func (c *Client) handleDeleteMessage(q *botapi.Query) {
	id, ok := messageIDArg(q, "message_id")
	if !ok {
		return
	}
	c.deleteByIDs(q, []int64{id})
}

func (c *Client) handleDeleteMessages(q *botapi.Query) {
	ids, ok := messageIDsArg(q, "message_ids")
	if !ok {
		return
	}
	c.deleteByIDs(q, ids)
}

func (c *Client) deleteByIDs(q *botapi.Query, ids []int64) {
	c.resolveChatID(q, "chat_id", func(chatID int64) {
		c.sendRequest(tdapi.DeleteMessages{ChatID: chatID, MessageIDs: ids}, func(resp tdapi.Response) {
			if resp.Err != nil {
				q.AnswerError(botapi.TranslateNative(resp.Err.Code, resp.Err.Message))
				return
			}
			for _, id := range ids {
				c.cache.DeleteMessage(chatID, id)
			}
			q.AnswerOK(trueResult)
		})
	})
}

// --- Чаты и файлы ----------------------------------------------------------

func (c *Client) handleGetChat(q *botapi.Query) {
	c.resolveChatID(q, "chat_id", func(chatID int64) {
		answer := func() {
			raw, err := json.Marshal(c.renderChatFull(chatID))
			if err != nil {
				q.AnswerError(botapi.Internal("response encoding failed"))
				return
			}
			q.AnswerOK(raw)
		}
		if c.cache.Chat(chatID) != nil {
			answer()
			return
		}
		c.sendRequest(tdapi.GetChat{ChatID: chatID}, func(resp tdapi.Response) {
			if resp.Err != nil {
				q.AnswerError(botapi.TranslateNative(resp.Err.Code, resp.Err.Message))
				return
			}
			if chat, ok := resp.Result.(*tdapi.Chat); ok {
				c.cache.PutChat(chat)
			}
			answer()
		})
	})
}

func (c *Client) handleGetFile(q *botapi.Query) {
	fileID := strings.TrimSpace(q.Arg("file_id"))
	if fileID == "" {
		q.AnswerError(botapi.BadRequest("file_id is empty"))
		return
	}
	c.sendRequest(tdapi.GetRemoteFile{FileID: fileID}, func(resp tdapi.Response) {
		if resp.Err != nil {
			q.AnswerError(botapi.BadRequest("invalid file_id"))
			return
		}
		f, ok := resp.Result.(*tdapi.File)
		if !ok {
			q.AnswerError(botapi.Internal("unexpected file response"))
			return
		}
		size := f.Size
		if size == 0 {
			size = f.ExpectedSize
		}
		if !c.opts.LocalMode && size > maxDownloadSize {
			q.AnswerError(botapi.BadRequest("file is too big"))
			return
		}
		if f.DownloadCompleted {
			c.answerFileQuery(q, f)
			return
		}
		c.downloadListeners[f.ID] = append(c.downloadListeners[f.ID], q)
		c.sendRequest(tdapi.DownloadFile{FileID: f.ID, Priority: 1}, nil)
	})
}

// answerFileQuery отвечает на getFile объектом файла.
func (c *Client) answerFileQuery(q *botapi.Query, f *tdapi.File) {
	if f.DownloadError != nil {
		q.AnswerError(botapi.TranslateNative(f.DownloadError.Code, f.DownloadError.Message))
		return
	}
	m := map[string]any{
		"file_id":        f.RemoteID,
		"file_unique_id": f.RemoteUniqueID,
	}
	if f.Size != 0 {
		m["file_size"] = f.Size
	}
	if f.LocalPath != "" {
		m["file_path"] = f.LocalPath
	}
	raw, err := json.Marshal(m)
	if err != nil {
		q.AnswerError(botapi.Internal("response encoding failed"))
		return
	}
	q.AnswerOK(raw)
}

// --- Длинный хвост через Generic -------------------------------------------

// argKind — способ конверсии аргумента Bot API в поле нативной команды.
type argKind int

const (
	argString argKind = iota
	argInt
	argFloat
	argBool
	argJSON     // сырой JSON как есть
	argIDString // строковый числовой id (callback_query_id и т.п.)
	argMessageID
	argMessageIDs
	argFile
	argUserID
)

type genericArg struct {
	name     string
	kind     argKind
	required bool
}

// genericSpec — описание метода длинного хвоста.
type genericSpec struct {
	native  string
	hasChat bool
	args    []genericArg
}

func ga(name string, kind argKind) genericArg        { return genericArg{name: name, kind: kind} }
func gaReq(name string, kind argKind) genericArg     { return genericArg{name: name, kind: kind, required: true} }
func chatOp(native string, args ...genericArg) genericSpec {
	return genericSpec{native: native, hasChat: true, args: args}
}
func plainOp(native string, args ...genericArg) genericSpec {
	return genericSpec{native: native, args: args}
}

// genericMethods — таблица длинного хвоста. Ключи — имена методов Bot API в
// нижнем регистре, включая легаси-алиасы.
var genericMethods = map[string]genericSpec{
	"banchatmember": chatOp("banChatMember",
		gaReq("user_id", argUserID), ga("until_date", argInt), ga("revoke_messages", argBool)),
	"unbanchatmember": chatOp("unbanChatMember",
		gaReq("user_id", argUserID), ga("only_if_banned", argBool)),
	"restrictchatmember": chatOp("restrictChatMember",
		gaReq("user_id", argUserID), gaReq("permissions", argJSON),
		ga("until_date", argInt), ga("use_independent_chat_permissions", argBool)),
	"promotechatmember": chatOp("promoteChatMember",
		gaReq("user_id", argUserID),
		ga("is_anonymous", argBool), ga("can_manage_chat", argBool), ga("can_change_info", argBool),
		ga("can_post_messages", argBool), ga("can_edit_messages", argBool), ga("can_delete_messages", argBool),
		ga("can_manage_video_chats", argBool), ga("can_invite_users", argBool), ga("can_restrict_members", argBool),
		ga("can_pin_messages", argBool), ga("can_manage_topics", argBool), ga("can_promote_members", argBool),
		ga("can_post_stories", argBool), ga("can_edit_stories", argBool), ga("can_delete_stories", argBool)),
	"setchatadministratorcustomtitle": chatOp("setChatAdministratorCustomTitle",
		gaReq("user_id", argUserID), gaReq("custom_title", argString)),
	"banchatsenderchat":   chatOp("banChatSenderChat", gaReq("sender_chat_id", argInt)),
	"unbanchatsenderchat": chatOp("unbanChatSenderChat", gaReq("sender_chat_id", argInt)),
	"setchatpermissions": chatOp("setChatPermissions",
		gaReq("permissions", argJSON), ga("use_independent_chat_permissions", argBool)),
	"exportchatinvitelink": chatOp("exportChatInviteLink"),
	"createchatinvitelink": chatOp("createChatInviteLink",
		ga("name", argString), ga("expire_date", argInt), ga("member_limit", argInt), ga("creates_join_request", argBool)),
	"editchatinvitelink": chatOp("editChatInviteLink",
		gaReq("invite_link", argString), ga("name", argString), ga("expire_date", argInt),
		ga("member_limit", argInt), ga("creates_join_request", argBool)),
	"revokechatinvitelink":   chatOp("revokeChatInviteLink", gaReq("invite_link", argString)),
	"approvechatjoinrequest": chatOp("approveChatJoinRequest", gaReq("user_id", argUserID)),
	"declinechatjoinrequest": chatOp("declineChatJoinRequest", gaReq("user_id", argUserID)),
	"setchatphoto":           chatOp("setChatPhoto", gaReq("photo", argFile)),
	"deletechatphoto":        chatOp("deleteChatPhoto"),
	"setchattitle":           chatOp("setChatTitle", gaReq("title", argString)),
	"setchatdescription":     chatOp("setChatDescription", ga("description", argString)),
	"pinchatmessage": chatOp("pinChatMessage",
		gaReq("message_id", argMessageID), ga("disable_notification", argBool), ga("business_connection_id", argString)),
	"unpinchatmessage": chatOp("unpinChatMessage",
		ga("message_id", argMessageID), ga("business_connection_id", argString)),
	"unpinallchatmessages": chatOp("unpinAllChatMessages"),
	"leavechat":            chatOp("leaveChat"),
	"getchatadministrators": chatOp("getChatAdministrators"),
	"getchatmembercount":    chatOp("getChatMemberCount"),
	"getchatmember":         chatOp("getChatMember", gaReq("user_id", argUserID)),
	"setchatstickerset":     chatOp("setChatStickerSet", gaReq("sticker_set_name", argString)),
	"deletechatstickerset":  chatOp("deleteChatStickerSet"),

	"getforumtopiciconstickers": plainOp("getForumTopicIconStickers"),
	"createforumtopic": chatOp("createForumTopic",
		gaReq("name", argString), ga("icon_color", argInt), ga("icon_custom_emoji_id", argString)),
	"editforumtopic": chatOp("editForumTopic",
		gaReq("message_thread_id", argMessageID), ga("name", argString), ga("icon_custom_emoji_id", argString)),
	"closeforumtopic":  chatOp("closeForumTopic", gaReq("message_thread_id", argMessageID)),
	"reopenforumtopic": chatOp("reopenForumTopic", gaReq("message_thread_id", argMessageID)),
	"deleteforumtopic": chatOp("deleteForumTopic", gaReq("message_thread_id", argMessageID)),
	"unpinallforumtopicmessages": chatOp("unpinAllForumTopicMessages",
		gaReq("message_thread_id", argMessageID)),
	"editgeneralforumtopic":             chatOp("editGeneralForumTopic", gaReq("name", argString)),
	"closegeneralforumtopic":            chatOp("closeGeneralForumTopic"),
	"reopengeneralforumtopic":           chatOp("reopenGeneralForumTopic"),
	"hidegeneralforumtopic":             chatOp("hideGeneralForumTopic"),
	"unhidegeneralforumtopic":           chatOp("unhideGeneralForumTopic"),
	"unpinallgeneralforumtopicmessages": chatOp("unpinAllGeneralForumTopicMessages"),

	"setmessagereaction": chatOp("setMessageReaction",
		gaReq("message_id", argMessageID), ga("reaction", argJSON), ga("is_big", argBool)),

	"getuserprofilephotos": plainOp("getUserProfilePhotos",
		gaReq("user_id", argUserID), ga("offset", argInt), ga("limit", argInt)),
	"getuserchatboosts": chatOp("getUserChatBoosts", gaReq("user_id", argUserID)),

	"answercallbackquery": plainOp("answerCallbackQuery",
		gaReq("callback_query_id", argIDString), ga("text", argString), ga("show_alert", argBool),
		ga("url", argString), ga("cache_time", argInt)),
	"answerinlinequery": plainOp("answerInlineQuery",
		gaReq("inline_query_id", argIDString), gaReq("results", argJSON), ga("cache_time", argInt),
		ga("is_personal", argBool), ga("next_offset", argString), ga("button", argJSON)),
	"answerwebappquery": plainOp("answerWebAppQuery",
		gaReq("web_app_query_id", argString), gaReq("result", argJSON)),
	"answershippingquery": plainOp("answerShippingQuery",
		gaReq("shipping_query_id", argIDString), gaReq("ok", argBool),
		ga("shipping_options", argJSON), ga("error_message", argString)),
	"answerprecheckoutquery": plainOp("answerPreCheckoutQuery",
		gaReq("pre_checkout_query_id", argIDString), gaReq("ok", argBool), ga("error_message", argString)),

	"setgamescore": plainOp("setGameScore",
		ga("chat_id", argInt), ga("message_id", argMessageID), ga("inline_message_id", argString),
		gaReq("user_id", argUserID), gaReq("score", argInt), ga("force", argBool), ga("disable_edit_message", argBool)),
	"getgamehighscores": plainOp("getGameHighScores",
		ga("chat_id", argInt), ga("message_id", argMessageID), ga("inline_message_id", argString),
		gaReq("user_id", argUserID)),

	"setmycommands": plainOp("setMyCommands",
		gaReq("commands", argJSON), ga("scope", argJSON), ga("language_code", argString)),
	"deletemycommands": plainOp("deleteMyCommands", ga("scope", argJSON), ga("language_code", argString)),
	"getmycommands":    plainOp("getMyCommands", ga("scope", argJSON), ga("language_code", argString)),
	"setmyname":        plainOp("setMyName", ga("name", argString), ga("language_code", argString)),
	"getmyname":        plainOp("getMyName", ga("language_code", argString)),
	"setmydescription": plainOp("setMyDescription", ga("description", argString), ga("language_code", argString)),
	"getmydescription": plainOp("getMyDescription", ga("language_code", argString)),
	"setmyshortdescription": plainOp("setMyShortDescription",
		ga("short_description", argString), ga("language_code", argString)),
	"getmyshortdescription": plainOp("getMyShortDescription", ga("language_code", argString)),
	"setchatmenubutton": plainOp("setChatMenuButton",
		ga("chat_id", argInt), ga("menu_button", argJSON)),
	"getchatmenubutton": plainOp("getChatMenuButton", ga("chat_id", argInt)),
	"setmydefaultadministratorrights": plainOp("setMyDefaultAdministratorRights",
		ga("rights", argJSON), ga("for_channels", argBool)),
	"getmydefaultadministratorrights": plainOp("getMyDefaultAdministratorRights", ga("for_channels", argBool)),

	"getstickerset":          plainOp("getStickerSet", gaReq("name", argString)),
	"getcustomemojistickers": plainOp("getCustomEmojiStickers", gaReq("custom_emoji_ids", argJSON)),
	"uploadstickerfile": plainOp("uploadStickerFile",
		gaReq("user_id", argUserID), gaReq("sticker", argFile), gaReq("sticker_format", argString)),
	"createnewstickerset": plainOp("createNewStickerSet",
		gaReq("user_id", argUserID), gaReq("name", argString), gaReq("title", argString),
		gaReq("stickers", argJSON), ga("sticker_type", argString), ga("needs_repainting", argBool)),
	"addstickertoset": plainOp("addStickerToSet",
		gaReq("user_id", argUserID), gaReq("name", argString), gaReq("sticker", argJSON)),
	"setstickerpositioninset": plainOp("setStickerPositionInSet",
		gaReq("sticker", argString), gaReq("position", argInt)),
	"deletestickerfromset": plainOp("deleteStickerFromSet", gaReq("sticker", argString)),
	"replacestickerinset": plainOp("replaceStickerInSet",
		gaReq("user_id", argUserID), gaReq("name", argString), gaReq("old_sticker", argString), gaReq("sticker", argJSON)),
	"setstickeremojilist": plainOp("setStickerEmojiList",
		gaReq("sticker", argString), gaReq("emoji_list", argJSON)),
	"setstickerkeywords": plainOp("setStickerKeywords",
		gaReq("sticker", argString), ga("keywords", argJSON)),
	"setstickermaskposition": plainOp("setStickerMaskPosition",
		gaReq("sticker", argString), ga("mask_position", argJSON)),
	"setstickersettitle": plainOp("setStickerSetTitle",
		gaReq("name", argString), gaReq("title", argString)),
	"setstickersetthumbnail": plainOp("setStickerSetThumbnail",
		gaReq("user_id", argUserID), gaReq("name", argString), ga("thumbnail", argFile), ga("format", argString)),
	"setcustomemojistickersetthumbnail": plainOp("setCustomEmojiStickerSetThumbnail",
		gaReq("name", argString), ga("custom_emoji_id", argString)),
	"deletestickerset": plainOp("deleteStickerSet", gaReq("name", argString)),

	"stoppoll": chatOp("stopPoll", gaReq("message_id", argMessageID), ga("reply_markup", argJSON)),
	"editmessagelivelocation": chatOp("editMessageLiveLocation",
		ga("message_id", argMessageID), ga("inline_message_id", argString),
		gaReq("latitude", argFloat), gaReq("longitude", argFloat),
		ga("live_period", argInt), ga("horizontal_accuracy", argFloat),
		ga("heading", argInt), ga("proximity_alert_radius", argInt), ga("reply_markup", argJSON)),
	"stopmessagelivelocation": chatOp("stopMessageLiveLocation",
		ga("message_id", argMessageID), ga("inline_message_id", argString), ga("reply_markup", argJSON)),

	"createinvoicelink": plainOp("createInvoiceLink",
		gaReq("title", argString), gaReq("description", argString), gaReq("payload", argString),
		ga("provider_token", argString), gaReq("currency", argString), gaReq("prices", argJSON),
		ga("subscription_period", argInt), ga("max_tip_amount", argInt), ga("suggested_tip_amounts", argJSON),
		ga("provider_data", argString), ga("photo_url", argString), ga("photo_size", argInt),
		ga("photo_width", argInt), ga("photo_height", argInt), ga("need_name", argBool),
		ga("need_phone_number", argBool), ga("need_email", argBool), ga("need_shipping_address", argBool),
		ga("send_phone_number_to_provider", argBool), ga("send_email_to_provider", argBool), ga("is_flexible", argBool)),
	"refundstarpayment": plainOp("refundStarPayment",
		gaReq("user_id", argUserID), gaReq("telegram_payment_charge_id", argString)),
	"getstartransactions": plainOp("getStarTransactions", ga("offset", argInt), ga("limit", argInt)),
	"setpassportdataerrors": plainOp("setPassportDataErrors",
		gaReq("user_id", argUserID), gaReq("errors", argJSON)),

	"getbusinessconnection": plainOp("getBusinessConnection",
		gaReq("business_connection_id", argString)),

	"getavailablegifts": plainOp("getAvailableGifts"),
	"sendgift": plainOp("sendGift",
		ga("user_id", argUserID), ga("chat_id", argInt), gaReq("gift_id", argString),
		ga("pay_for_upgrade", argBool), ga("text", argString), ga("text_parse_mode", argString),
		ga("text_entities", argJSON)),

	"sendcustomrequest": plainOp("sendCustomRequest",
		gaReq("method", argString), ga("parameters", argString)),
	"answercustomquery": plainOp("answerCustomQuery",
		gaReq("custom_query_id", argIDString), gaReq("data", argString)),
}

func init() {
	// Легаси-алиасы.
	genericMethods["kickchatmember"] = genericMethods["banchatmember"]
	genericMethods["getchatmemberscount"] = genericMethods["getchatmembercount"]
	genericMethods["setstickersetthumb"] = genericMethods["setstickersetthumbnail"]
}

// handleGeneric конвертирует аргументы по описанию и шлёт Generic-команду.
func (c *Client) handleGeneric(q *botapi.Query, spec genericSpec) {
	fields := map[string]any{}
	for _, a := range spec.args {
		if !c.applyGenericArg(q, a, fields) {
			return
		}
	}
	finish := func() {
		c.sendRequest(tdapi.Generic{Method: spec.native, Fields: fields}, func(resp tdapi.Response) {
			c.answerGeneric(q, resp)
		})
	}
	if spec.hasChat {
		c.resolveChatID(q, "chat_id", func(chatID int64) {
			fields["chat_id"] = chatID
			finish()
		})
		return
	}
	finish()
}

// applyGenericArg конвертирует один аргумент; false — запрос уже отвечен ошибкой.
func (c *Client) applyGenericArg(q *botapi.Query, a genericArg, fields map[string]any) bool {
	raw := q.Arg(a.name)
	if raw == "" && a.kind != argFile {
		if a.required {
			q.AnswerError(botapi.BadRequestf("%s is empty", a.name))
			return false
		}
		return true
	}
	switch a.kind {
	case argString:
		fields[a.name] = raw
	case argInt, argUserID:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			q.AnswerError(botapi.BadRequestf("can't parse %s", a.name))
			return false
		}
		fields[a.name] = v
	case argFloat:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			q.AnswerError(botapi.BadRequestf("can't parse %s", a.name))
			return false
		}
		fields[a.name] = v
	case argBool:
		fields[a.name] = q.BoolArg(a.name)
	case argJSON:
		fields[a.name] = json.RawMessage(raw)
	case argIDString:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			q.AnswerError(botapi.BadRequestf("invalid %s", a.name))
			return false
		}
		fields[a.name] = v
	case argMessageID:
		ext, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || asTdlibMessageID(ext) == 0 {
			q.AnswerError(botapi.BadRequest("message identifier is not valid"))
			return false
		}
		fields[a.name] = asTdlibMessageID(ext)
	case argMessageIDs:
		ids, ok := messageIDsArg(q, a.name)
		if !ok {
			return false
		}
		fields[a.name] = ids
	case argFile:
		ref, err := c.inputFileRef(q, a.name)
		if err != nil {
			q.AnswerError(err)
			return false
		}
		if ref == nil {
			if a.required {
				q.AnswerError(botapi.BadRequestf("there is no %s in the request", a.name))
				return false
			}
			return true
		}
		fields[a.name] = ref
	}
	return true
}

// answerGeneric транслирует ответ нативного клиента в ответ Bot API.
func (c *Client) answerGeneric(q *botapi.Query, resp tdapi.Response) {
	if resp.Err != nil {
		q.AnswerError(botapi.TranslateNative(resp.Err.Code, resp.Err.Message))
		return
	}
	switch r := resp.Result.(type) {
	case tdapi.OkResult:
		q.AnswerOK(trueResult)
	case *tdapi.RawResult:
		q.AnswerOK(r.JSON)
	case *tdapi.Message:
		c.cache.PutMessage(r)
		q.AnswerOK(c.renderMessageJSON(r))
	default:
		c.log.Debug("generic result of unexpected shape", zap.String("method", q.Method()))
		q.AnswerOK(trueResult)
	}
}
