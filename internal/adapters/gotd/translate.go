package gotd

// Трансляция типизированных команд ядра в вызовы Telegram API. Входной контент
// приходит в форме нативного клиента (inputMessage*); мост разбирает его,
// загружает локальные файлы и собирает MTProto-запросы.

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gotd/td/telegram/message/entity"
	"github.com/gotd/td/telegram/message/html"
	"github.com/gotd/td/telegram/uploader"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"telegram-botapi-gateway/internal/tdapi"
)

// rpcTimeout — потолок одного вызова; с запасом на загрузку файлов.
const rpcTimeout = 5 * time.Minute

// dispatchRPC транслирует команду, требующую готового клиента.
func (b *Bus) dispatchRPC(ctx context.Context, api *tg.Client, pr pendingRequest) {
	callCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	switch req := pr.req.(type) {
	case tdapi.GetMe:
		b.handleRPCGetMe(callCtx, api, pr.id)
	case tdapi.SendMessage:
		b.handleRPCSendMessage(callCtx, api, pr.id, req)
	case tdapi.SendMessageAlbum:
		b.handleRPCSendAlbum(callCtx, api, pr.id, req)
	case tdapi.ForwardMessages:
		b.handleRPCForward(callCtx, api, pr.id, req)
	case tdapi.EditMessageText, tdapi.EditMessageMedia, tdapi.EditMessageCaption, tdapi.EditMessageReplyMarkup:
		b.handleRPCEdit(callCtx, api, pr.id, pr.req)
	case tdapi.DeleteMessages:
		b.handleRPCDelete(callCtx, api, pr.id, req)
	case tdapi.GetMessage:
		b.handleRPCGetMessage(callCtx, api, pr.id, req.ChatID, req.MessageID)
	case tdapi.GetRepliedMessage:
		b.handleRPCGetReplied(callCtx, api, pr.id, req)
	case tdapi.GetCallbackQueryMessage:
		b.handleRPCGetMessage(callCtx, api, pr.id, req.ChatID, req.MessageID)
	case tdapi.GetChat:
		b.handleRPCGetChat(callCtx, api, pr.id, req.ChatID)
	case tdapi.GetStickerSet:
		b.handleRPCGetStickerSet(callCtx, api, pr.id, req.SetID)
	case tdapi.SearchPublicChat:
		b.handleRPCResolveUsername(callCtx, api, pr.id, req.Username)
	case tdapi.GetRemoteFile:
		b.handleGetRemoteFile(pr.id, req)
	case tdapi.DownloadFile:
		b.handleDownloadFile(ctx, api, pr.id, req)
	case tdapi.Generic:
		b.handleRPCGeneric(callCtx, api, pr.id, req)
	default:
		b.respondErr(pr.id, 500, "unsupported bridge request")
	}
}

func (b *Bus) respondRPCError(id uint64, err error) {
	b.respond(id, tdapi.Response{Err: translateError(err)})
}

func (b *Bus) handleRPCGetMe(ctx context.Context, api *tg.Client, id uint64) {
	users, err := api.UsersGetUsers(ctx, []tg.InputUserClass{&tg.InputUserSelf{}})
	if err != nil {
		b.respondRPCError(id, err)
		return
	}
	for _, u := range users {
		if user, ok := u.(*tg.User); ok {
			b.peers.putUser(user)
			b.respond(id, tdapi.Response{Result: projectUser(user)})
			return
		}
	}
	b.respondErr(id, 500, "self user missing in response")
}

// --- Отправка ---------------------------------------------------------------

// sendTarget — разобранные общие параметры отправки.
type sendTarget struct {
	peer    tg.InputPeerClass
	replyTo tg.InputReplyToClass
}

// resolveTarget строит пира и заголовок ответа.
func (b *Bus) resolveTarget(chatID, threadID int64, replyTo *tdapi.ReplyToMessage) (sendTarget, *tdapi.Error) {
	peer, ok := b.peers.inputPeer(chatID)
	if !ok {
		return sendTarget{}, &tdapi.Error{Code: 400, Message: "CHAT_NOT_FOUND"}
	}
	t := sendTarget{peer: peer}
	switch {
	case replyTo != nil:
		hdr := &tg.InputReplyToMessage{ReplyToMsgID: mtprotoMessageID(replyTo.MessageID)}
		if threadID != 0 {
			hdr.TopMsgID = mtprotoMessageID(threadID)
		}
		if replyTo.ChatID != 0 && replyTo.ChatID != chatID {
			if p, ok := b.peers.inputPeer(replyTo.ChatID); ok {
				hdr.ReplyToPeerID = p
			}
		}
		t.replyTo = hdr
	case threadID != 0:
		t.replyTo = &tg.InputReplyToMessage{
			ReplyToMsgID: mtprotoMessageID(threadID),
			TopMsgID:     mtprotoMessageID(threadID),
		}
	}
	return t, nil
}

func (b *Bus) handleRPCSendMessage(ctx context.Context, api *tg.Client, id uint64, req tdapi.SendMessage) {
	target, terr := b.resolveTarget(req.ChatID, req.ThreadID, req.ReplyTo)
	if terr != nil {
		b.respond(id, tdapi.Response{Err: terr})
		return
	}
	markup := b.buildMarkup(req.ReplyMarkup)
	randID := rand.Int64()

	if text, ok := textContent(req.Content); ok {
		msg, entities, perr := b.parseTextFields(text)
		if perr != nil {
			b.respond(id, tdapi.Response{Err: perr})
			return
		}
		sendReq := &tg.MessagesSendMessageRequest{
			Peer:        target.peer,
			Message:     msg,
			RandomID:    randID,
			Silent:      req.Options.DisableNotification,
			Noforwards:  req.Options.ProtectContent,
			NoWebpage:   text.noWebPreview,
			Entities:    entities,
			ReplyMarkup: markup,
			Effect:      req.Options.EffectID,
		}
		if target.replyTo != nil {
			sendReq.ReplyTo = target.replyTo
		}
		updates, err := api.MessagesSendMessage(ctx, sendReq)
		if err != nil {
			b.respondRPCError(id, err)
			return
		}
		b.finishSend(id, req.ChatID, randID, msg, updates)
		return
	}

	media, caption, capEntities, merr := b.buildMedia(ctx, api, target.peer, req.Content)
	if merr != nil {
		b.respond(id, tdapi.Response{Err: merr})
		return
	}
	sendReq := &tg.MessagesSendMediaRequest{
		Peer:        target.peer,
		Media:       media,
		Message:     caption,
		RandomID:    randID,
		Silent:      req.Options.DisableNotification,
		Noforwards:  req.Options.ProtectContent,
		Entities:    capEntities,
		ReplyMarkup: markup,
		Effect:      req.Options.EffectID,
	}
	if target.replyTo != nil {
		sendReq.ReplyTo = target.replyTo
	}
	updates, err := api.MessagesSendMedia(ctx, sendReq)
	if err != nil {
		b.respondRPCError(id, err)
		return
	}
	b.finishSend(id, req.ChatID, randID, caption, updates)
}

// finishSend извлекает отправленное сообщение и отвечает им; следом уходит
// событие успешной отправки с тем же id, завершающее учёт ядра.
func (b *Bus) finishSend(id uint64, chatID int64, randID int64, text string, updates tg.UpdatesClass) {
	msg := b.extractSentMessage(updates, randID, chatID, text)
	if msg == nil {
		b.respondErr(id, 500, "sent message missing in response")
		return
	}
	b.respond(id, tdapi.Response{Result: msg})
	b.emit(tdapi.UpdateMessageSendSucceeded{Message: msg, OldMessageID: msg.ID})
}

func (b *Bus) handleRPCSendAlbum(ctx context.Context, api *tg.Client, id uint64, req tdapi.SendMessageAlbum) {
	target, terr := b.resolveTarget(req.ChatID, req.ThreadID, req.ReplyTo)
	if terr != nil {
		b.respond(id, tdapi.Response{Err: terr})
		return
	}

	multi := make([]tg.InputSingleMedia, 0, len(req.Contents))
	randIDs := make([]int64, 0, len(req.Contents))
	for _, content := range req.Contents {
		media, caption, capEntities, merr := b.buildMedia(ctx, api, target.peer, content)
		if merr != nil {
			b.respond(id, tdapi.Response{Err: merr})
			return
		}
		prepared, err := preuploadMedia(ctx, api, target.peer, media)
		if err != nil {
			b.respondRPCError(id, err)
			return
		}
		randID := rand.Int64()
		randIDs = append(randIDs, randID)
		multi = append(multi, tg.InputSingleMedia{
			Media:    prepared,
			RandomID: randID,
			Message:  caption,
			Entities: capEntities,
		})
	}

	sendReq := &tg.MessagesSendMultiMediaRequest{
		Peer:       target.peer,
		MultiMedia: multi,
		Silent:     req.Options.DisableNotification,
		Noforwards: req.Options.ProtectContent,
	}
	if target.replyTo != nil {
		sendReq.ReplyTo = target.replyTo
	}
	updates, err := api.MessagesSendMultiMedia(ctx, sendReq)
	if err != nil {
		b.respondRPCError(id, err)
		return
	}
	b.finishSendMany(id, randIDs, updates)
}

// finishSendMany отвечает списком сообщений в порядке random id.
func (b *Bus) finishSendMany(id uint64, randIDs []int64, updates tg.UpdatesClass) {
	byRand := b.collectSentMessages(updates)
	list := make([]*tdapi.Message, len(randIDs))
	for i, r := range randIDs {
		if msg := byRand[r]; msg != nil {
			list[i] = msg
			b.emit(tdapi.UpdateMessageSendSucceeded{Message: msg, OldMessageID: msg.ID})
		}
	}
	b.respond(id, tdapi.Response{Result: &tdapi.Messages{List: list}})
}

func (b *Bus) handleRPCForward(ctx context.Context, api *tg.Client, id uint64, req tdapi.ForwardMessages) {
	if req.SendCopy {
		b.handleRPCCopy(ctx, api, id, req)
		return
	}
	toPeer, ok := b.peers.inputPeer(req.ChatID)
	if !ok {
		b.respondErr(id, 400, "CHAT_NOT_FOUND")
		return
	}
	fromPeer, ok := b.peers.inputPeer(req.FromChatID)
	if !ok {
		b.respondErr(id, 400, "CHAT_NOT_FOUND")
		return
	}

	ids := make([]int, 0, len(req.MessageIDs))
	randIDs := make([]int64, 0, len(req.MessageIDs))
	for _, mid := range req.MessageIDs {
		ids = append(ids, mtprotoMessageID(mid))
		randIDs = append(randIDs, rand.Int64())
	}
	fwdReq := &tg.MessagesForwardMessagesRequest{
		FromPeer:   fromPeer,
		ToPeer:     toPeer,
		ID:         ids,
		RandomID:   randIDs,
		Silent:     req.Options.DisableNotification,
		Noforwards: req.Options.ProtectContent,
	}
	if req.ThreadID != 0 {
		fwdReq.TopMsgID = mtprotoMessageID(req.ThreadID)
	}
	updates, err := api.MessagesForwardMessages(ctx, fwdReq)
	if err != nil {
		b.respondRPCError(id, err)
		return
	}
	b.finishSendMany(id, randIDs, updates)
}

// handleRPCCopy копирует сообщения: исходники перечитываются и отправляются
// заново от имени бота.
func (b *Bus) handleRPCCopy(ctx context.Context, api *tg.Client, id uint64, req tdapi.ForwardMessages) {
	toPeer, ok := b.peers.inputPeer(req.ChatID)
	if !ok {
		b.respondErr(id, 400, "CHAT_NOT_FOUND")
		return
	}
	sources, err := b.fetchMessages(ctx, api, req.FromChatID, req.MessageIDs)
	if err != nil {
		b.respondRPCError(id, err)
		return
	}

	list := make([]*tdapi.Message, len(req.MessageIDs))
	for i, mid := range req.MessageIDs {
		src := sources[mtprotoMessageID(mid)]
		if src == nil {
			continue
		}
		randID := rand.Int64()
		text := src.Message
		if req.RemoveCaption && src.Media != nil {
			text = ""
		}
		var updates tg.UpdatesClass
		if src.Media == nil {
			updates, err = api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
				Peer:     toPeer,
				Message:  text,
				RandomID: randID,
				Silent:   req.Options.DisableNotification,
				Entities: src.Entities,
			})
		} else {
			media := inputMediaFromMessage(src.Media)
			if media == nil {
				continue
			}
			updates, err = api.MessagesSendMedia(ctx, &tg.MessagesSendMediaRequest{
				Peer:     toPeer,
				Media:    media,
				Message:  text,
				RandomID: randID,
				Silent:   req.Options.DisableNotification,
				Entities: src.Entities,
			})
		}
		if err != nil {
			b.respondRPCError(id, err)
			return
		}
		if msg := b.extractSentMessage(updates, randID, req.ChatID, text); msg != nil {
			list[i] = msg
			b.emit(tdapi.UpdateMessageSendSucceeded{Message: msg, OldMessageID: msg.ID})
		}
	}
	b.respond(id, tdapi.Response{Result: &tdapi.Messages{List: list}})
}

// --- Правки и удаление ------------------------------------------------------

func (b *Bus) handleRPCEdit(ctx context.Context, api *tg.Client, id uint64, req tdapi.Request) {
	var (
		chatID, messageID int64
		markup            tdapi.ReplyMarkup
	)
	edit := &tg.MessagesEditMessageRequest{}

	switch r := req.(type) {
	case tdapi.EditMessageText:
		chatID, messageID, markup = r.ChatID, r.MessageID, r.ReplyMarkup
		text, ok := textContent(r.Content)
		if !ok {
			b.respondErr(id, 400, "MESSAGE_EMPTY")
			return
		}
		msg, entities, perr := b.parseTextFields(text)
		if perr != nil {
			b.respond(id, tdapi.Response{Err: perr})
			return
		}
		edit.Message = msg
		edit.Entities = entities
		edit.NoWebpage = text.noWebPreview
	case tdapi.EditMessageCaption:
		chatID, messageID, markup = r.ChatID, r.MessageID, r.ReplyMarkup
		edit.Message = r.Caption
	case tdapi.EditMessageMedia:
		chatID, messageID, markup = r.ChatID, r.MessageID, r.ReplyMarkup
		peer, ok := b.peers.inputPeer(r.ChatID)
		if !ok {
			b.respondErr(id, 400, "CHAT_NOT_FOUND")
			return
		}
		media, caption, entities, merr := b.buildMedia(ctx, api, peer, r.Content)
		if merr != nil {
			b.respond(id, tdapi.Response{Err: merr})
			return
		}
		edit.Media = media
		edit.Message = caption
		edit.Entities = entities
	case tdapi.EditMessageReplyMarkup:
		chatID, messageID, markup = r.ChatID, r.MessageID, r.ReplyMarkup
	default:
		b.respondErr(id, 500, "unsupported edit request")
		return
	}

	peer, ok := b.peers.inputPeer(chatID)
	if !ok {
		b.respondErr(id, 400, "CHAT_NOT_FOUND")
		return
	}
	edit.Peer = peer
	edit.ID = mtprotoMessageID(messageID)
	edit.ReplyMarkup = b.buildMarkup(markup)

	updates, err := api.MessagesEditMessage(ctx, edit)
	if err != nil {
		b.respondRPCError(id, err)
		return
	}
	if msg := b.extractEditedMessage(updates, edit.ID); msg != nil {
		b.respond(id, tdapi.Response{Result: msg})
		return
	}
	b.respond(id, tdapi.Response{Result: tdapi.OkResult{}})
}

func (b *Bus) handleRPCDelete(ctx context.Context, api *tg.Client, id uint64, req tdapi.DeleteMessages) {
	ids := make([]int, 0, len(req.MessageIDs))
	for _, mid := range req.MessageIDs {
		ids = append(ids, mtprotoMessageID(mid))
	}
	if channel, ok := b.peers.inputChannel(req.ChatID); ok {
		if _, err := api.ChannelsDeleteMessages(ctx, &tg.ChannelsDeleteMessagesRequest{
			Channel: channel,
			ID:      ids,
		}); err != nil {
			b.respondRPCError(id, err)
			return
		}
		b.respondOK(id)
		return
	}
	if _, err := api.MessagesDeleteMessages(ctx, &tg.MessagesDeleteMessagesRequest{
		Revoke: true,
		ID:     ids,
	}); err != nil {
		b.respondRPCError(id, err)
		return
	}
	b.respondOK(id)
}

// --- Выборки ----------------------------------------------------------------

func (b *Bus) handleRPCGetMessage(ctx context.Context, api *tg.Client, id uint64, chatID, messageID int64) {
	found, err := b.fetchMessages(ctx, api, chatID, []int64{messageID})
	if err != nil {
		b.respondRPCError(id, err)
		return
	}
	src := found[mtprotoMessageID(messageID)]
	if src == nil {
		b.respondErr(id, 400, "MESSAGE_ID_INVALID")
		return
	}
	b.respond(id, tdapi.Response{Result: b.projectMessage(src)})
}

func (b *Bus) handleRPCGetReplied(ctx context.Context, api *tg.Client, id uint64, req tdapi.GetRepliedMessage) {
	found, err := b.fetchMessages(ctx, api, req.ChatID, []int64{req.MessageID})
	if err != nil {
		b.respondRPCError(id, err)
		return
	}
	src := found[mtprotoMessageID(req.MessageID)]
	if src == nil {
		b.respondErr(id, 400, "MESSAGE_ID_INVALID")
		return
	}
	hdr, ok := src.GetReplyTo()
	if !ok {
		b.respondErr(id, 400, "MESSAGE_ID_INVALID")
		return
	}
	reply, ok := hdr.(*tg.MessageReplyHeader)
	if !ok {
		b.respondErr(id, 400, "MESSAGE_ID_INVALID")
		return
	}
	replyID, ok := reply.GetReplyToMsgID()
	if !ok {
		b.respondErr(id, 400, "MESSAGE_ID_INVALID")
		return
	}
	replyChat := req.ChatID
	if peer, ok := reply.GetReplyToPeerID(); ok {
		replyChat = chatIDFromPeer(peer)
	}
	b.handleRPCGetMessage(ctx, api, id, replyChat, internalMessageID(replyID))
}

// fetchMessages перечитывает сообщения чата; ключи карты — MTProto-id.
func (b *Bus) fetchMessages(ctx context.Context, api *tg.Client, chatID int64, messageIDs []int64) (map[int]*tg.Message, error) {
	ids := make([]tg.InputMessageClass, 0, len(messageIDs))
	for _, mid := range messageIDs {
		ids = append(ids, &tg.InputMessageID{ID: mtprotoMessageID(mid)})
	}

	var (
		res tg.MessagesMessagesClass
		err error
	)
	if channel, ok := b.peers.inputChannel(chatID); ok {
		res, err = api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{Channel: channel, ID: ids})
	} else {
		res, err = api.MessagesGetMessages(ctx, ids)
	}
	if err != nil {
		return nil, err
	}

	out := make(map[int]*tg.Message)
	var messages []tg.MessageClass
	switch m := res.(type) {
	case *tg.MessagesMessages:
		b.announceSlices(m.Users, m.Chats)
		messages = m.Messages
	case *tg.MessagesMessagesSlice:
		b.announceSlices(m.Users, m.Chats)
		messages = m.Messages
	case *tg.MessagesChannelMessages:
		b.announceSlices(m.Users, m.Chats)
		messages = m.Messages
	}
	for _, mc := range messages {
		if msg, ok := mc.(*tg.Message); ok {
			out[msg.ID] = msg
		}
	}
	return out, nil
}

func (b *Bus) handleRPCGetChat(ctx context.Context, api *tg.Client, id uint64, chatID int64) {
	switch {
	case chatID > 0:
		user, ok := b.peers.inputUser(chatID)
		if !ok {
			b.respondErr(id, 400, "CHAT_NOT_FOUND")
			return
		}
		full, err := api.UsersGetFullUser(ctx, user)
		if err != nil {
			b.respondRPCError(id, err)
			return
		}
		b.announceSlices(full.Users, full.Chats)
		b.respond(id, tdapi.Response{Result: &tdapi.Chat{
			ID:          chatID,
			Kind:        tdapi.ChatKindPrivate{UserID: chatID},
			Permissions: allPermissions(),
		}})
	case chatID <= zeroChannelID:
		channel, ok := b.peers.inputChannel(chatID)
		if !ok {
			b.respondErr(id, 400, "CHAT_NOT_FOUND")
			return
		}
		chats, err := api.ChannelsGetChannels(ctx, []tg.InputChannelClass{channel})
		if err != nil {
			b.respondRPCError(id, err)
			return
		}
		for _, c := range chats.GetChats() {
			if ch, ok := c.(*tg.Channel); ok {
				b.peers.putChat(ch)
				b.emit(tdapi.UpdateSupergroup{Supergroup: projectSupergroup(ch)})
				b.respond(id, tdapi.Response{Result: projectChannelChat(ch)})
				return
			}
		}
		b.respondErr(id, 400, "CHAT_NOT_FOUND")
	default:
		chats, err := api.MessagesGetChats(ctx, []int64{-chatID})
		if err != nil {
			b.respondRPCError(id, err)
			return
		}
		for _, c := range chats.GetChats() {
			if chat, ok := c.(*tg.Chat); ok {
				b.peers.putChat(chat)
				b.emit(tdapi.UpdateBasicGroup{Group: projectBasicGroup(chat)})
				b.respond(id, tdapi.Response{Result: projectGroupChat(chat)})
				return
			}
		}
		b.respondErr(id, 400, "CHAT_NOT_FOUND")
	}
}

func (b *Bus) handleRPCGetStickerSet(ctx context.Context, api *tg.Client, id uint64, setID int64) {
	hash, ok := b.peers.stickerSet(setID)
	if !ok {
		b.respondErr(id, 400, "STICKERSET_INVALID")
		return
	}
	res, err := api.MessagesGetStickerSet(ctx, &tg.MessagesGetStickerSetRequest{
		Stickerset: &tg.InputStickerSetID{ID: setID, AccessHash: hash},
	})
	if err != nil {
		b.respondRPCError(id, err)
		return
	}
	set, ok := res.(*tg.MessagesStickerSet)
	if !ok {
		b.respondErr(id, 400, "STICKERSET_INVALID")
		return
	}
	b.respond(id, tdapi.Response{Result: &tdapi.StickerSet{
		ID:    set.Set.ID,
		Name:  set.Set.ShortName,
		Title: set.Set.Title,
	}})
}

func (b *Bus) handleRPCResolveUsername(ctx context.Context, api *tg.Client, id uint64, username string) {
	res, err := api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{
		Username: strings.TrimPrefix(username, "@"),
	})
	if err != nil {
		b.respondRPCError(id, err)
		return
	}
	b.announceSlices(res.Users, res.Chats)

	switch peer := res.Peer.(type) {
	case *tg.PeerUser:
		b.respond(id, tdapi.Response{Result: &tdapi.Chat{
			ID:          peer.UserID,
			Kind:        tdapi.ChatKindPrivate{UserID: peer.UserID},
			Permissions: allPermissions(),
		}})
	case *tg.PeerChannel:
		for _, c := range res.Chats {
			if ch, ok := c.(*tg.Channel); ok && ch.ID == peer.ChannelID {
				b.respond(id, tdapi.Response{Result: projectChannelChat(ch)})
				return
			}
		}
		b.respondErr(id, 400, "USERNAME_NOT_OCCUPIED")
	case *tg.PeerChat:
		for _, c := range res.Chats {
			if chat, ok := c.(*tg.Chat); ok && chat.ID == peer.ChatID {
				b.respond(id, tdapi.Response{Result: projectGroupChat(chat)})
				return
			}
		}
		b.respondErr(id, 400, "USERNAME_NOT_OCCUPIED")
	default:
		b.respondErr(id, 400, "USERNAME_NOT_OCCUPIED")
	}
}

// announceSlices объявляет сущности из срезов ответа.
func (b *Bus) announceSlices(users []tg.UserClass, chats []tg.ChatClass) {
	e := tg.Entities{
		Users:    make(map[int64]*tg.User),
		Chats:    make(map[int64]*tg.Chat),
		Channels: make(map[int64]*tg.Channel),
	}
	for _, uc := range users {
		if u, ok := uc.(*tg.User); ok {
			e.Users[u.ID] = u
		}
	}
	for _, cc := range chats {
		switch c := cc.(type) {
		case *tg.Chat:
			e.Chats[c.ID] = c
		case *tg.Channel:
			e.Channels[c.ID] = c
		}
	}
	b.announce(e)
}

// --- Извлечение отправленных сообщений --------------------------------------

// extractSentMessage находит отправленное сообщение в ответе по random id.
func (b *Bus) extractSentMessage(updates tg.UpdatesClass, randID, chatID int64, text string) *tdapi.Message {
	if short, ok := updates.(*tg.UpdateShortSentMessage); ok {
		return &tdapi.Message{
			ID:         internalMessageID(short.ID),
			ChatID:     chatID,
			Date:       int64(short.Date),
			IsOutgoing: true,
			Content:    tdapi.ContentText{Text: text},
		}
	}
	byRand := b.collectSentMessages(updates)
	return byRand[randID]
}

// collectSentMessages строит карту random id → сообщение из полного ответа.
func (b *Bus) collectSentMessages(updates tg.UpdatesClass) map[int64]*tdapi.Message {
	out := make(map[int64]*tdapi.Message)

	var ups []tg.UpdateClass
	switch u := updates.(type) {
	case *tg.Updates:
		b.announceSlices(u.Users, u.Chats)
		ups = u.Updates
	case *tg.UpdatesCombined:
		b.announceSlices(u.Users, u.Chats)
		ups = u.Updates
	default:
		return out
	}

	randByMsgID := make(map[int]int64)
	for _, up := range ups {
		if m, ok := up.(*tg.UpdateMessageID); ok {
			randByMsgID[m.ID] = m.RandomID
		}
	}
	for _, up := range ups {
		var msg tg.MessageClass
		switch m := up.(type) {
		case *tg.UpdateNewMessage:
			msg = m.Message
		case *tg.UpdateNewChannelMessage:
			msg = m.Message
		case *tg.UpdateNewScheduledMessage:
			msg = m.Message
		default:
			continue
		}
		if projected := b.projectMessageClass(msg); projected != nil {
			if randID, ok := randByMsgID[mtprotoMessageID(projected.ID)]; ok {
				out[randID] = projected
			}
		}
	}
	return out
}

// extractEditedMessage находит правленое сообщение в ответе edit-вызова.
func (b *Bus) extractEditedMessage(updates tg.UpdatesClass, msgID int) *tdapi.Message {
	var ups []tg.UpdateClass
	switch u := updates.(type) {
	case *tg.Updates:
		b.announceSlices(u.Users, u.Chats)
		ups = u.Updates
	case *tg.UpdatesCombined:
		b.announceSlices(u.Users, u.Chats)
		ups = u.Updates
	default:
		return nil
	}
	for _, up := range ups {
		var msg tg.MessageClass
		switch m := up.(type) {
		case *tg.UpdateEditMessage:
			msg = m.Message
		case *tg.UpdateEditChannelMessage:
			msg = m.Message
		default:
			continue
		}
		projected := b.projectMessageClass(msg)
		if projected != nil && mtprotoMessageID(projected.ID) == msgID {
			return projected
		}
	}
	return nil
}

// --- Контент ----------------------------------------------------------------

// textFields — разобранный inputMessageText.
type textFields struct {
	text         string
	parseMode    string
	entities     json.RawMessage
	noWebPreview bool
}

// textContent выделяет текстовый контент; false — контент медийный.
func textContent(content tdapi.MessageContent) (textFields, bool) {
	switch c := content.(type) {
	case tdapi.ContentText:
		return textFields{text: c.Text}, true
	case tdapi.ContentRaw:
		if c.Type != "inputMessageText" {
			return textFields{}, false
		}
		var raw struct {
			Text               string          `json:"text"`
			ParseMode          string          `json:"parse_mode"`
			Entities           json.RawMessage `json:"entities"`
			LinkPreviewOptions struct {
				IsDisabled bool `json:"is_disabled"`
			} `json:"link_preview_options"`
		}
		if err := json.Unmarshal(c.JSON, &raw); err != nil {
			return textFields{}, false
		}
		return textFields{
			text:         raw.Text,
			parseMode:    raw.ParseMode,
			entities:     raw.Entities,
			noWebPreview: raw.LinkPreviewOptions.IsDisabled,
		}, true
	}
	return textFields{}, false
}

// parseTextFields превращает текст с разметкой в строку и MTProto-сущности.
// HTML разбирается парсером gotd; Markdown-режимы мост не разбирает и передаёт
// текст как есть.
func (b *Bus) parseTextFields(t textFields) (string, []tg.MessageEntityClass, *tdapi.Error) {
	if len(t.entities) > 0 {
		entities, err := b.convertEntities(t.entities)
		if err != nil {
			return "", nil, &tdapi.Error{Code: 400, Message: "ENTITIES_INVALID"}
		}
		return t.text, entities, nil
	}
	if strings.EqualFold(t.parseMode, "html") {
		var eb entity.Builder
		if err := html.HTML(strings.NewReader(t.text), &eb, html.Options{}); err != nil {
			return "", nil, &tdapi.Error{Code: 400, Message: "ENTITIES_INVALID"}
		}
		msg, entities := eb.Complete()
		return msg, entities, nil
	}
	return t.text, nil, nil
}

// botEntity — сущность разметки в форме Bot API.
type botEntity struct {
	Type     string `json:"type"`
	Offset   int    `json:"offset"`
	Length   int    `json:"length"`
	URL      string `json:"url"`
	Language string `json:"language"`
	User     *struct {
		ID int64 `json:"id"`
	} `json:"user"`
	CustomEmojiID string `json:"custom_emoji_id"`
}

// convertEntities переводит сущности Bot API в MTProto-форму.
func (b *Bus) convertEntities(raw json.RawMessage) ([]tg.MessageEntityClass, error) {
	var src []botEntity
	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, err
	}
	out := make([]tg.MessageEntityClass, 0, len(src))
	for _, e := range src {
		switch e.Type {
		case "bold":
			out = append(out, &tg.MessageEntityBold{Offset: e.Offset, Length: e.Length})
		case "italic":
			out = append(out, &tg.MessageEntityItalic{Offset: e.Offset, Length: e.Length})
		case "underline":
			out = append(out, &tg.MessageEntityUnderline{Offset: e.Offset, Length: e.Length})
		case "strikethrough":
			out = append(out, &tg.MessageEntityStrike{Offset: e.Offset, Length: e.Length})
		case "spoiler":
			out = append(out, &tg.MessageEntitySpoiler{Offset: e.Offset, Length: e.Length})
		case "code":
			out = append(out, &tg.MessageEntityCode{Offset: e.Offset, Length: e.Length})
		case "pre":
			out = append(out, &tg.MessageEntityPre{Offset: e.Offset, Length: e.Length, Language: e.Language})
		case "text_link":
			out = append(out, &tg.MessageEntityTextURL{Offset: e.Offset, Length: e.Length, URL: e.URL})
		case "mention":
			out = append(out, &tg.MessageEntityMention{Offset: e.Offset, Length: e.Length})
		case "hashtag":
			out = append(out, &tg.MessageEntityHashtag{Offset: e.Offset, Length: e.Length})
		case "cashtag":
			out = append(out, &tg.MessageEntityCashtag{Offset: e.Offset, Length: e.Length})
		case "bot_command":
			out = append(out, &tg.MessageEntityBotCommand{Offset: e.Offset, Length: e.Length})
		case "url":
			out = append(out, &tg.MessageEntityURL{Offset: e.Offset, Length: e.Length})
		case "email":
			out = append(out, &tg.MessageEntityEmail{Offset: e.Offset, Length: e.Length})
		case "phone_number":
			out = append(out, &tg.MessageEntityPhone{Offset: e.Offset, Length: e.Length})
		case "blockquote":
			out = append(out, &tg.MessageEntityBlockquote{Offset: e.Offset, Length: e.Length})
		case "custom_emoji":
			docID, err := strconv.ParseInt(e.CustomEmojiID, 10, 64)
			if err != nil {
				continue
			}
			out = append(out, &tg.MessageEntityCustomEmoji{Offset: e.Offset, Length: e.Length, DocumentID: docID})
		case "text_mention":
			if e.User == nil {
				continue
			}
			if user, ok := b.peers.inputUser(e.User.ID); ok {
				if iu, ok := user.(*tg.InputUser); ok {
					out = append(out, &tg.InputMessageEntityMentionName{
						Offset: e.Offset, Length: e.Length,
						UserID: &tg.InputUser{UserID: iu.UserID, AccessHash: iu.AccessHash},
					})
				}
			}
		}
	}
	return out, nil
}

// inputFileJSON — файловая ссылка нативного клиента.
type inputFileJSON struct {
	Type string `json:"@type"`
	Path string `json:"path"`
	URL  string `json:"url"`
	ID   string `json:"id"`
}

// mediaFileField — имя файлового поля по типу контента.
var mediaFileField = map[string]string{
	"inputMessagePhoto":     "photo",
	"inputMessageAudio":     "audio",
	"inputMessageDocument":  "document",
	"inputMessageVideo":     "video",
	"inputMessageAnimation": "animation",
	"inputMessageVoiceNote": "voice",
	"inputMessageVideoNote": "video_note",
	"inputMessageSticker":   "sticker",
}

// buildMedia собирает InputMedia из контента нативной формы. Возвращает медиа,
// подпись и её сущности.
func (b *Bus) buildMedia(ctx context.Context, api *tg.Client, peer tg.InputPeerClass, content tdapi.MessageContent) (tg.InputMediaClass, string, []tg.MessageEntityClass, *tdapi.Error) {
	raw, ok := content.(tdapi.ContentRaw)
	if !ok {
		return nil, "", nil, &tdapi.Error{Code: 400, Message: "MEDIA_EMPTY"}
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw.JSON, &fields); err != nil {
		return nil, "", nil, &tdapi.Error{Code: 400, Message: "MEDIA_EMPTY"}
	}

	caption, capEntities, perr := b.parseTextFields(textFields{
		text:      jsonString(fields["caption"]),
		parseMode: jsonString(fields["parse_mode"]),
		entities:  fields["caption_entities"],
	})
	if perr != nil {
		return nil, "", nil, perr
	}

	media, merr := b.buildMediaValue(ctx, api, raw.Type, fields)
	if merr != nil {
		return nil, "", nil, merr
	}
	return media, caption, capEntities, nil
}

// buildMediaValue строит InputMedia по типу контента.
func (b *Bus) buildMediaValue(ctx context.Context, api *tg.Client, contentType string, fields map[string]json.RawMessage) (tg.InputMediaClass, *tdapi.Error) {
	if field, ok := mediaFileField[contentType]; ok {
		var ref inputFileJSON
		if err := json.Unmarshal(fields[field], &ref); err != nil {
			return nil, &tdapi.Error{Code: 400, Message: "MEDIA_EMPTY"}
		}
		return b.mediaFromFileRef(ctx, api, contentType, ref, fields)
	}

	switch contentType {
	case "inputMessageLocation":
		return &tg.InputMediaGeoPoint{GeoPoint: &tg.InputGeoPoint{
			Lat:  jsonFloat(fields["latitude"]),
			Long: jsonFloat(fields["longitude"]),
		}}, nil
	case "inputMessageVenue":
		return &tg.InputMediaVenue{
			GeoPoint: &tg.InputGeoPoint{
				Lat:  jsonFloat(fields["latitude"]),
				Long: jsonFloat(fields["longitude"]),
			},
			Title:    jsonString(fields["title"]),
			Address:  jsonString(fields["address"]),
			VenueID:  jsonString(fields["foursquare_id"]),
			Provider: "foursquare",
		}, nil
	case "inputMessageContact":
		return &tg.InputMediaContact{
			PhoneNumber: jsonString(fields["phone_number"]),
			FirstName:   jsonString(fields["first_name"]),
			LastName:    jsonString(fields["last_name"]),
			Vcard:       jsonString(fields["vcard"]),
		}, nil
	case "inputMessageDice":
		emoji := jsonString(fields["emoji"])
		if emoji == "" {
			emoji = "🎲"
		}
		return &tg.InputMediaDice{Emoticon: emoji}, nil
	case "inputMessagePoll":
		return buildPollMedia(fields)
	case "inputMessageGame":
		return &tg.InputMediaGame{ID: &tg.InputGameShortName{
			BotID:     &tg.InputUserSelf{},
			ShortName: jsonString(fields["game_short_name"]),
		}}, nil
	case "inputMessageInvoice":
		return buildInvoiceMedia(fields)
	}
	return nil, &tdapi.Error{Code: 400, Message: "METHOD_NOT_SUPPORTED"}
}

// mediaFromFileRef строит InputMedia из файловой ссылки: локальные файлы
// загружаются, URL и file_id передаются сервером.
func (b *Bus) mediaFromFileRef(ctx context.Context, api *tg.Client, contentType string, ref inputFileJSON, fields map[string]json.RawMessage) (tg.InputMediaClass, *tdapi.Error) {
	isPhoto := contentType == "inputMessagePhoto"

	switch ref.Type {
	case "inputFileLocal":
		file, err := uploader.NewUploader(api).FromPath(ctx, ref.Path)
		if err != nil {
			b.log.Warn("upload failed", zap.String("path", ref.Path), zap.Error(err))
			return nil, &tdapi.Error{Code: 400, Message: "FILE_UPLOAD_FAILED"}
		}
		if isPhoto {
			return &tg.InputMediaUploadedPhoto{File: file}, nil
		}
		return &tg.InputMediaUploadedDocument{
			File:       file,
			MimeType:   "application/octet-stream",
			Attributes: documentAttributes(contentType, filepath.Base(ref.Path), fields),
		}, nil
	case "inputFileURL":
		if isPhoto {
			return &tg.InputMediaPhotoExternal{URL: ref.URL}, nil
		}
		return &tg.InputMediaDocumentExternal{URL: ref.URL}, nil
	case "inputFileRemote":
		fr, err := decodeFileRef(ref.ID)
		if err != nil {
			return nil, &tdapi.Error{Code: 400, Message: "WRONG_FILE_ID"}
		}
		switch fr.Kind {
		case fileKindPhoto:
			return &tg.InputMediaPhoto{ID: &tg.InputPhoto{
				ID: fr.ID, AccessHash: fr.AccessHash, FileReference: fr.FileReference,
			}}, nil
		case fileKindDocument:
			return &tg.InputMediaDocument{ID: &tg.InputDocument{
				ID: fr.ID, AccessHash: fr.AccessHash, FileReference: fr.FileReference,
			}}, nil
		}
		return nil, &tdapi.Error{Code: 400, Message: "WRONG_FILE_ID"}
	}
	return nil, &tdapi.Error{Code: 400, Message: "MEDIA_EMPTY"}
}

// documentAttributes — атрибуты загружаемого документа по типу контента.
func documentAttributes(contentType, fileName string, fields map[string]json.RawMessage) []tg.DocumentAttributeClass {
	attrs := []tg.DocumentAttributeClass{&tg.DocumentAttributeFilename{FileName: fileName}}
	switch contentType {
	case "inputMessageAudio":
		attrs = append(attrs, &tg.DocumentAttributeAudio{
			Duration:  int(jsonFloat(fields["duration"])),
			Title:     jsonString(fields["title"]),
			Performer: jsonString(fields["performer"]),
		})
	case "inputMessageVoiceNote":
		attrs = append(attrs, &tg.DocumentAttributeAudio{
			Voice:    true,
			Duration: int(jsonFloat(fields["duration"])),
		})
	case "inputMessageVideo":
		attrs = append(attrs, &tg.DocumentAttributeVideo{
			Duration:          jsonFloat(fields["duration"]),
			W:                 int(jsonFloat(fields["width"])),
			H:                 int(jsonFloat(fields["height"])),
			SupportsStreaming: true,
		})
	case "inputMessageVideoNote":
		side := int(jsonFloat(fields["length"]))
		attrs = append(attrs, &tg.DocumentAttributeVideo{
			RoundMessage: true,
			Duration:     jsonFloat(fields["duration"]),
			W:            side,
			H:            side,
		})
	case "inputMessageAnimation":
		attrs = append(attrs, &tg.DocumentAttributeAnimated{})
	}
	return attrs
}

// buildPollMedia собирает опрос.
func buildPollMedia(fields map[string]json.RawMessage) (tg.InputMediaClass, *tdapi.Error) {
	question := jsonString(fields["question"])
	var options []string
	if raw, ok := fields["options"]; ok {
		// Варианты приходят либо строками, либо объектами {text}.
		var objs []struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(raw, &objs); err == nil {
			for _, o := range objs {
				options = append(options, o.Text)
			}
		} else if err := json.Unmarshal(raw, &options); err != nil {
			return nil, &tdapi.Error{Code: 400, Message: "POLL_ANSWERS_INVALID"}
		}
	}
	if question == "" || len(options) < 2 {
		return nil, &tdapi.Error{Code: 400, Message: "POLL_ANSWERS_INVALID"}
	}

	answers := make([]tg.PollAnswer, 0, len(options))
	for i, text := range options {
		answers = append(answers, tg.PollAnswer{
			Text:   tg.TextWithEntities{Text: text},
			Option: []byte{byte(i)},
		})
	}
	poll := tg.Poll{
		ID:             rand.Int64(),
		Question:       tg.TextWithEntities{Text: question},
		Answers:        answers,
		Closed:         jsonBool(fields["is_closed"]),
		PublicVoters:   !jsonBoolDefault(fields["is_anonymous"], true),
		MultipleChoice: jsonBool(fields["allows_multiple_answers"]),
		Quiz:           jsonString(fields["type"]) == "quiz",
	}
	media := &tg.InputMediaPoll{Poll: poll}
	if poll.Quiz {
		if raw, ok := fields["correct_option_id"]; ok {
			media.CorrectAnswers = [][]byte{{byte(jsonFloat(raw))}}
		}
		if expl := jsonString(fields["explanation"]); expl != "" {
			media.Solution = expl
		}
	}
	return media, nil
}

// buildInvoiceMedia собирает инвойс.
func buildInvoiceMedia(fields map[string]json.RawMessage) (tg.InputMediaClass, *tdapi.Error) {
	var prices []struct {
		Label  string `json:"label"`
		Amount int64  `json:"amount"`
	}
	if err := json.Unmarshal(fields["prices"], &prices); err != nil || len(prices) == 0 {
		return nil, &tdapi.Error{Code: 400, Message: "INVOICE_PAYLOAD_INVALID"}
	}
	labeled := make([]tg.LabeledPrice, 0, len(prices))
	for _, p := range prices {
		labeled = append(labeled, tg.LabeledPrice{Label: p.Label, Amount: p.Amount})
	}
	media := &tg.InputMediaInvoice{
		Title:       jsonString(fields["title"]),
		Description: jsonString(fields["description"]),
		Payload:     []byte(jsonString(fields["payload"])),
		Provider:    jsonString(fields["provider_token"]),
		Invoice: tg.Invoice{
			Currency:                   jsonString(fields["currency"]),
			Prices:                     labeled,
			MaxTipAmount:               int64(jsonFloat(fields["max_tip_amount"])),
			NameRequested:              jsonBool(fields["need_name"]),
			PhoneRequested:             jsonBool(fields["need_phone_number"]),
			EmailRequested:             jsonBool(fields["need_email"]),
			ShippingAddressRequested:   jsonBool(fields["need_shipping_address"]),
			PhoneToProvider:            jsonBool(fields["send_phone_number_to_provider"]),
			EmailToProvider:            jsonBool(fields["send_email_to_provider"]),
			Flexible:                   jsonBool(fields["is_flexible"]),
		},
		StartParam: jsonString(fields["start_parameter"]),
	}
	if url := jsonString(fields["photo_url"]); url != "" {
		media.Photo = tg.InputWebDocument{URL: url, MimeType: "image/jpeg"}
	}
	return media, nil
}

// preuploadMedia доводит загружаемое медиа до серверного: альбомы требуют
// готовых ссылок в каждом элементе.
func preuploadMedia(ctx context.Context, api *tg.Client, peer tg.InputPeerClass, media tg.InputMediaClass) (tg.InputMediaClass, error) {
	switch media.(type) {
	case *tg.InputMediaUploadedPhoto, *tg.InputMediaUploadedDocument,
		*tg.InputMediaPhotoExternal, *tg.InputMediaDocumentExternal:
	default:
		return media, nil
	}
	res, err := api.MessagesUploadMedia(ctx, &tg.MessagesUploadMediaRequest{Peer: peer, Media: media})
	if err != nil {
		return nil, err
	}
	if converted := inputMediaFromMessage(res); converted != nil {
		return converted, nil
	}
	return media, nil
}

// inputMediaFromMessage переводит серверное медиа обратно во входную форму.
func inputMediaFromMessage(media tg.MessageMediaClass) tg.InputMediaClass {
	switch md := media.(type) {
	case *tg.MessageMediaPhoto:
		if photo, ok := md.Photo.(*tg.Photo); ok {
			return &tg.InputMediaPhoto{ID: &tg.InputPhoto{
				ID: photo.ID, AccessHash: photo.AccessHash, FileReference: photo.FileReference,
			}}
		}
	case *tg.MessageMediaDocument:
		if doc, ok := md.Document.(*tg.Document); ok {
			return &tg.InputMediaDocument{ID: &tg.InputDocument{
				ID: doc.ID, AccessHash: doc.AccessHash, FileReference: doc.FileReference,
			}}
		}
	}
	return nil
}

// --- Клавиатуры -------------------------------------------------------------

// buildMarkup переводит клавиатуру в MTProto-форму; nil — без клавиатуры.
func (b *Bus) buildMarkup(markup tdapi.ReplyMarkup) tg.ReplyMarkupClass {
	switch m := markup.(type) {
	case *tdapi.InlineKeyboard:
		rows := make([]tg.KeyboardButtonRow, 0, len(m.Rows))
		for _, row := range m.Rows {
			buttons := make([]tg.KeyboardButtonClass, 0, len(row))
			for _, btn := range row {
				buttons = append(buttons, b.buildInlineButton(btn))
			}
			rows = append(rows, tg.KeyboardButtonRow{Buttons: buttons})
		}
		return &tg.ReplyInlineMarkup{Rows: rows}
	case *tdapi.RawMarkup:
		return buildRawMarkup(m.JSON)
	}
	return nil
}

// buildInlineButton переводит одну inline-кнопку.
func (b *Bus) buildInlineButton(btn tdapi.InlineButton) tg.KeyboardButtonClass {
	switch k := btn.Kind.(type) {
	case tdapi.ButtonURL:
		return &tg.KeyboardButtonURL{Text: btn.Text, URL: k.URL}
	case tdapi.ButtonCallback:
		return &tg.KeyboardButtonCallback{Text: btn.Text, Data: k.Data}
	case tdapi.ButtonSwitchInline:
		return &tg.KeyboardButtonSwitchInline{Text: btn.Text, Query: k.Query, SamePeer: k.CurrentChat}
	case tdapi.ButtonWebApp:
		return &tg.KeyboardButtonWebView{Text: btn.Text, URL: k.URL}
	case tdapi.ButtonPay:
		return &tg.KeyboardButtonBuy{Text: btn.Text}
	case tdapi.ButtonLoginURL:
		botID := k.ID
		requestWrite := false
		if botID < 0 {
			requestWrite = true
			botID = -botID
		}
		var botUser tg.InputUserClass = &tg.InputUserSelf{}
		if botID != 0 && botID != b.selfID.Load() {
			if u, ok := b.peers.inputUser(botID); ok {
				botUser = u
			}
		}
		return &tg.InputKeyboardButtonURLAuth{
			Text:               btn.Text,
			FwdText:            k.ForwardText,
			URL:                k.URL,
			Bot:                botUser,
			RequestWriteAccess: requestWrite,
		}
	}
	return &tg.KeyboardButton{Text: btn.Text}
}

// rawKeyboard — reply-клавиатура в форме Bot API.
type rawKeyboard struct {
	Keyboard              [][]json.RawMessage `json:"keyboard"`
	ResizeKeyboard        bool                `json:"resize_keyboard"`
	OneTimeKeyboard       bool                `json:"one_time_keyboard"`
	IsPersistent          bool                `json:"is_persistent"`
	Selective             bool                `json:"selective"`
	InputFieldPlaceholder string              `json:"input_field_placeholder"`
	RemoveKeyboard        bool                `json:"remove_keyboard"`
	ForceReply            bool                `json:"force_reply"`
}

// buildRawMarkup разбирает reply-клавиатуру, её снятие и force reply.
func buildRawMarkup(raw json.RawMessage) tg.ReplyMarkupClass {
	var kb rawKeyboard
	if err := json.Unmarshal(raw, &kb); err != nil {
		return nil
	}
	switch {
	case kb.RemoveKeyboard:
		return &tg.ReplyKeyboardHide{Selective: kb.Selective}
	case kb.ForceReply:
		return &tg.ReplyKeyboardForceReply{
			Selective:   kb.Selective,
			SingleUse:   kb.OneTimeKeyboard,
			Placeholder: kb.InputFieldPlaceholder,
		}
	case len(kb.Keyboard) > 0:
		rows := make([]tg.KeyboardButtonRow, 0, len(kb.Keyboard))
		for _, row := range kb.Keyboard {
			buttons := make([]tg.KeyboardButtonClass, 0, len(row))
			for _, btnRaw := range row {
				buttons = append(buttons, buildReplyButton(btnRaw))
			}
			if len(buttons) > 0 {
				rows = append(rows, tg.KeyboardButtonRow{Buttons: buttons})
			}
		}
		return &tg.ReplyKeyboardMarkup{
			Rows:        rows,
			Resize:      kb.ResizeKeyboard,
			SingleUse:   kb.OneTimeKeyboard,
			Selective:   kb.Selective,
			Persistent:  kb.IsPersistent,
			Placeholder: kb.InputFieldPlaceholder,
		}
	}
	return nil
}

// buildReplyButton — кнопка reply-клавиатуры: строка либо объект.
func buildReplyButton(raw json.RawMessage) tg.KeyboardButtonClass {
	var text string
	if json.Unmarshal(raw, &text) == nil {
		return &tg.KeyboardButton{Text: text}
	}
	var btn struct {
		Text            string `json:"text"`
		RequestContact  bool   `json:"request_contact"`
		RequestLocation bool   `json:"request_location"`
		WebApp          *struct {
			URL string `json:"url"`
		} `json:"web_app"`
	}
	if err := json.Unmarshal(raw, &btn); err != nil {
		return &tg.KeyboardButton{Text: ""}
	}
	switch {
	case btn.RequestContact:
		return &tg.KeyboardButtonRequestPhone{Text: btn.Text}
	case btn.RequestLocation:
		return &tg.KeyboardButtonRequestGeoLocation{Text: btn.Text}
	case btn.WebApp != nil:
		return &tg.KeyboardButtonSimpleWebView{Text: btn.Text, URL: btn.WebApp.URL}
	}
	return &tg.KeyboardButton{Text: btn.Text}
}

// --- JSON-поля --------------------------------------------------------------

func jsonString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return strings.Trim(string(raw), `"`)
}

func jsonFloat(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if json.Unmarshal(raw, &f) == nil {
		return f
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return 0
}

func jsonBool(raw json.RawMessage) bool {
	return jsonBoolDefault(raw, false)
}

func jsonBoolDefault(raw json.RawMessage, def bool) bool {
	if len(raw) == 0 {
		return def
	}
	var v bool
	if json.Unmarshal(raw, &v) == nil {
		return v
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		switch strings.ToLower(s) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return def
}
