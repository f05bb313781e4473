package gotd

// Проекция MTProto-апдейтов в события шины. Сущности апдейтов (пользователи и
// чаты) объявляются ядру при первом появлении — кэш Client строится из этих
// объявлений, как из апдейтов нативного клиента.

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/gotd/td/tg"

	"telegram-botapi-gateway/internal/tdapi"
)

// ctxT — сокращение для подписей обработчиков диспетчера.
type ctxT = context.Context

// bindHandlers подписывает проекции на диспетчер апдейтов.
func (b *Bus) bindHandlers(d *tg.UpdateDispatcher) {
	d.OnNewMessage(func(ctx ctxT, e tg.Entities, u *tg.UpdateNewMessage) error {
		b.onMessage(e, u.Message)
		return nil
	})
	d.OnNewChannelMessage(func(ctx ctxT, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
		b.onMessage(e, u.Message)
		return nil
	})
	d.OnEditMessage(func(ctx ctxT, e tg.Entities, u *tg.UpdateEditMessage) error {
		b.onEdited(e, u.Message)
		return nil
	})
	d.OnEditChannelMessage(func(ctx ctxT, e tg.Entities, u *tg.UpdateEditChannelMessage) error {
		b.onEdited(e, u.Message)
		return nil
	})
	d.OnDeleteChannelMessages(func(ctx ctxT, e tg.Entities, u *tg.UpdateDeleteChannelMessages) error {
		ids := make([]int64, 0, len(u.Messages))
		for _, id := range u.Messages {
			ids = append(ids, internalMessageID(id))
		}
		b.emit(tdapi.UpdateDeleteMessages{
			ChatID:      zeroChannelID - u.ChannelID,
			MessageIDs:  ids,
			IsPermanent: true,
		})
		return nil
	})
	d.OnBotCallbackQuery(func(ctx ctxT, e tg.Entities, u *tg.UpdateBotCallbackQuery) error {
		b.announce(e)
		ev := tdapi.UpdateNewCallbackQuery{
			ID:           u.QueryID,
			SenderUserID: u.UserID,
			ChatID:       chatIDFromPeer(u.Peer),
			MessageID:    internalMessageID(u.MsgID),
			ChatInstance: u.ChatInstance,
		}
		ev.Payload = callbackPayload(u.Data, u.GameShortName)
		b.emit(ev)
		return nil
	})
	d.OnInlineBotCallbackQuery(func(ctx ctxT, e tg.Entities, u *tg.UpdateInlineBotCallbackQuery) error {
		b.announce(e)
		b.emit(tdapi.UpdateNewInlineCallbackQuery{
			ID:              u.QueryID,
			SenderUserID:    u.UserID,
			InlineMessageID: encodeInlineMessageID(u.MsgID),
			ChatInstance:    u.ChatInstance,
			Payload:         callbackPayload(u.Data, u.GameShortName),
		})
		return nil
	})
	d.OnBotInlineQuery(func(ctx ctxT, e tg.Entities, u *tg.UpdateBotInlineQuery) error {
		b.announce(e)
		b.emit(tdapi.UpdateNewInlineQuery{
			ID:           u.QueryID,
			SenderUserID: u.UserID,
			Query:        u.Query,
			Offset:       u.Offset,
			ChatType:     inlineChatType(u.PeerType),
		})
		return nil
	})
	d.OnBotInlineSend(func(ctx ctxT, e tg.Entities, u *tg.UpdateBotInlineSend) error {
		b.announce(e)
		ev := tdapi.UpdateNewChosenInlineResult{
			SenderUserID: u.UserID,
			Query:        u.Query,
			ResultID:     u.ID,
		}
		if msgID, ok := u.GetMsgID(); ok {
			ev.InlineMessageID = encodeInlineMessageID(msgID)
		}
		b.emit(ev)
		return nil
	})
	d.OnBotShippingQuery(func(ctx ctxT, e tg.Entities, u *tg.UpdateBotShippingQuery) error {
		b.announce(e)
		b.emit(tdapi.UpdateNewShippingQuery{
			ID:              u.QueryID,
			SenderUserID:    u.UserID,
			InvoicePayload:  string(u.Payload),
			ShippingAddress: shippingAddressJSON(u.ShippingAddress),
		})
		return nil
	})
	d.OnBotPrecheckoutQuery(func(ctx ctxT, e tg.Entities, u *tg.UpdateBotPrecheckoutQuery) error {
		b.announce(e)
		b.emit(tdapi.UpdateNewPreCheckoutQuery{
			ID:             u.QueryID,
			SenderUserID:   u.UserID,
			Currency:       u.Currency,
			TotalAmount:    u.TotalAmount,
			InvoicePayload: u.Payload,
		})
		return nil
	})
	d.OnChatParticipant(func(ctx ctxT, e tg.Entities, u *tg.UpdateChatParticipant) error {
		b.announce(e)
		ev := tdapi.UpdateChatMember{
			ChatID:      -u.ChatID,
			ActorUserID: u.ActorID,
			Date:        int64(u.Date),
			UserID:      u.UserID,
			IsBotMember: u.UserID == b.selfID.Load(),
			OldStatus:   tdapi.ChatMemberStatusLeft,
			NewStatus:   tdapi.ChatMemberStatusLeft,
		}
		if p, ok := u.GetPrevParticipant(); ok {
			ev.OldStatus = chatParticipantStatus(p)
		}
		if p, ok := u.GetNewParticipant(); ok {
			ev.NewStatus = chatParticipantStatus(p)
		}
		ev.InviteLink = inviteLink(u.Invite)
		b.emit(ev)
		return nil
	})
	d.OnChannelParticipant(func(ctx ctxT, e tg.Entities, u *tg.UpdateChannelParticipant) error {
		b.announce(e)
		ev := tdapi.UpdateChatMember{
			ChatID:      zeroChannelID - u.ChannelID,
			ActorUserID: u.ActorID,
			Date:        int64(u.Date),
			UserID:      u.UserID,
			IsBotMember: u.UserID == b.selfID.Load(),
			OldStatus:   tdapi.ChatMemberStatusLeft,
			NewStatus:   tdapi.ChatMemberStatusLeft,
		}
		if p, ok := u.GetPrevParticipant(); ok {
			ev.OldStatus = channelParticipantStatus(p)
		}
		if p, ok := u.GetNewParticipant(); ok {
			ev.NewStatus = channelParticipantStatus(p)
		}
		ev.InviteLink = inviteLink(u.Invite)
		b.emit(ev)
		return nil
	})
	d.OnBotChatInviteRequester(func(ctx ctxT, e tg.Entities, u *tg.UpdateBotChatInviteRequester) error {
		b.announce(e)
		b.emit(tdapi.UpdateNewChatJoinRequest{
			ChatID:     chatIDFromPeer(u.Peer),
			UserID:     u.UserID,
			UserChatID: u.UserID,
			Date:       int64(u.Date),
			Bio:        u.About,
			InviteLink: inviteLink(u.Invite),
		})
		return nil
	})
	d.OnMessagePollVote(func(ctx ctxT, e tg.Entities, u *tg.UpdateMessagePollVote) error {
		b.announce(e)
		voter := chatIDFromPeer(u.Peer)
		if voter <= 0 {
			return nil
		}
		ids := make([]int32, 0, len(u.Options))
		for i := range u.Options {
			ids = append(ids, int32(i))
		}
		b.emit(tdapi.UpdatePollAnswer{PollID: u.PollID, VoterUserID: voter, OptionIDs: ids})
		return nil
	})
}

// onMessage проецирует входящее сообщение.
func (b *Bus) onMessage(e tg.Entities, msg tg.MessageClass) {
	b.announce(e)
	m := b.projectMessageClass(msg)
	if m == nil {
		return
	}
	b.emit(tdapi.UpdateNewMessage{Message: m})
}

// onEdited проецирует правку: сначала контент, затем факт правки.
func (b *Bus) onEdited(e tg.Entities, msg tg.MessageClass) {
	b.announce(e)
	m := b.projectMessageClass(msg)
	if m == nil {
		return
	}
	b.emit(tdapi.UpdateMessageContent{ChatID: m.ChatID, MessageID: m.ID, Content: m.Content})
	b.emit(tdapi.UpdateMessageEdited{
		ChatID:      m.ChatID,
		MessageID:   m.ID,
		EditDate:    m.EditDate,
		ReplyMarkup: m.ReplyMarkup,
	})
}

// announce объявляет ядру сущности апдейта, не виденные ранее.
func (b *Bus) announce(e tg.Entities) {
	b.peers.observe(e)
	for _, u := range e.Users {
		if b.markSeen('u', u.ID) {
			b.emit(tdapi.UpdateUser{User: projectUser(u)})
		}
	}
	for _, c := range e.Chats {
		if b.markSeen('g', c.ID) {
			b.emit(tdapi.UpdateBasicGroup{Group: projectBasicGroup(c)})
			b.emit(tdapi.UpdateNewChat{Chat: projectGroupChat(c)})
		}
	}
	for _, ch := range e.Channels {
		if b.markSeen('c', ch.ID) {
			b.emit(tdapi.UpdateSupergroup{Supergroup: projectSupergroup(ch)})
			b.emit(tdapi.UpdateNewChat{Chat: projectChannelChat(ch)})
		}
	}
}

// markSeen отмечает сущность; true — впервые.
func (b *Bus) markSeen(kind byte, id int64) bool {
	key := string(rune(kind)) + strconv.FormatInt(id, 10)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.seen[key] {
		return false
	}
	b.seen[key] = true
	return true
}

// projectMessageClass проецирует сообщение любого вида; nil — не проецируется.
func (b *Bus) projectMessageClass(msg tg.MessageClass) *tdapi.Message {
	switch m := msg.(type) {
	case *tg.Message:
		return b.projectMessage(m)
	case *tg.MessageService:
		return b.projectServiceMessage(m)
	}
	return nil
}

// projectMessage — обычное сообщение.
func (b *Bus) projectMessage(m *tg.Message) *tdapi.Message {
	out := &tdapi.Message{
		ID:              internalMessageID(m.ID),
		ChatID:          chatIDFromPeer(m.PeerID),
		Date:            int64(m.Date),
		EditDate:        int64(m.EditDate),
		IsOutgoing:      m.Out,
		IsChannelPost:   m.Post,
		AuthorSignature: m.PostAuthor,
		MediaAlbumID:    m.GroupedID,
		ViaBotUserID:    m.ViaBotID,
		EffectID:        m.Effect,
		CanBeSaved:      !m.Noforwards,
	}
	b.fillSender(out, m.FromID, m.Post)
	fillReplyTo(out, m.ReplyTo)
	if fwd, ok := m.GetFwdFrom(); ok {
		out.ForwardOrigin = forwardOrigin(fwd)
	}
	out.Content = b.projectContent(m)
	out.ReplyMarkup = projectMarkup(m.ReplyMarkup)
	return out
}

// projectServiceMessage — сервисные сообщения из белого списка эмиссии.
func (b *Bus) projectServiceMessage(m *tg.MessageService) *tdapi.Message {
	out := &tdapi.Message{
		ID:         internalMessageID(m.ID),
		ChatID:     chatIDFromPeer(m.PeerID),
		Date:       int64(m.Date),
		IsOutgoing: m.Out,
	}
	b.fillSender(out, m.FromID, false)
	fillReplyTo(out, m.ReplyTo)

	switch a := m.Action.(type) {
	case *tg.MessageActionChatAddUser:
		out.Content = tdapi.ContentNewChatMembers{UserIDs: a.Users}
	case *tg.MessageActionChatJoinedByLink:
		out.Content = tdapi.ContentNewChatMembers{UserIDs: []int64{out.SenderUserID}}
	case *tg.MessageActionChatDeleteUser:
		out.Content = tdapi.ContentChatMemberLeft{UserID: a.UserID}
	case *tg.MessageActionPinMessage:
		if out.ReplyTo != nil {
			out.Content = tdapi.ContentPinnedMessage{MessageID: out.ReplyTo.MessageID}
		}
	case *tg.MessageActionChatEditTitle:
		out.Content = rawContent("messageChatChangeTitle", map[string]any{"new_chat_title": a.Title})
	case *tg.MessageActionChatCreate:
		out.Content = rawContent("messageBasicGroupChatCreate", map[string]any{"group_chat_created": true})
	case *tg.MessageActionChannelCreate:
		out.Content = rawContent("messageSupergroupChatCreate", map[string]any{"supergroup_chat_created": true})
	case *tg.MessageActionChatDeletePhoto:
		out.Content = rawContent("messageChatDeletePhoto", map[string]any{"delete_chat_photo": true})
	default:
		return nil
	}
	return out
}

// fillSender определяет отправителя.
func (b *Bus) fillSender(out *tdapi.Message, from tg.PeerClass, post bool) {
	switch p := from.(type) {
	case *tg.PeerUser:
		out.SenderUserID = p.UserID
	case *tg.PeerChat, *tg.PeerChannel:
		out.SenderChatID = chatIDFromPeer(from)
	default:
		if post {
			out.SenderChatID = out.ChatID
		}
	}
}

// fillReplyTo заполняет ссылку ответа.
func fillReplyTo(out *tdapi.Message, hdr tg.MessageReplyHeaderClass) {
	switch h := hdr.(type) {
	case *tg.MessageReplyHeader:
		if id, ok := h.GetReplyToMsgID(); ok {
			chatID := out.ChatID
			if peer, ok := h.GetReplyToPeerID(); ok {
				chatID = chatIDFromPeer(peer)
			}
			out.ReplyTo = &tdapi.ReplyToMessage{ChatID: chatID, MessageID: internalMessageID(id)}
		}
	case *tg.MessageReplyStoryHeader:
		out.ReplyToStory = &tdapi.ReplyToStory{
			SenderChatID: chatIDFromPeer(h.Peer),
			StoryID:      int32(h.StoryID),
		}
	}
}

// forwardOrigin проецирует заголовок пересылки.
func forwardOrigin(fwd tg.MessageFwdHeader) tdapi.ForwardOrigin {
	hdr := &fwd
	if name, ok := hdr.GetFromName(); ok && hdr.FromID == nil {
		return tdapi.ForwardOriginHiddenUser{Name: name}
	}
	switch p := hdr.FromID.(type) {
	case *tg.PeerUser:
		return tdapi.ForwardOriginUser{UserID: p.UserID}
	case *tg.PeerChannel:
		if postID, ok := hdr.GetChannelPost(); ok {
			return tdapi.ForwardOriginChannel{
				ChatID:          chatIDFromPeer(p),
				MessageID:       internalMessageID(postID),
				AuthorSignature: hdr.PostAuthor,
			}
		}
		return tdapi.ForwardOriginChat{ChatID: chatIDFromPeer(p), AuthorSignature: hdr.PostAuthor}
	case *tg.PeerChat:
		return tdapi.ForwardOriginChat{ChatID: chatIDFromPeer(p), AuthorSignature: hdr.PostAuthor}
	}
	return nil
}

// projectContent проецирует контент сообщения. Медиа раскладывается в готовые
// поля Bot API с файловыми ссылками моста.
func (b *Bus) projectContent(m *tg.Message) tdapi.MessageContent {
	media, hasMedia := m.GetMedia()
	if !hasMedia {
		return tdapi.ContentText{Text: m.Message}
	}
	switch md := media.(type) {
	case *tg.MessageMediaPhoto:
		photo, ok := md.Photo.(*tg.Photo)
		if !ok {
			return tdapi.ContentPhoto{IsExpired: true, Caption: m.Message}
		}
		return rawContent("messagePhoto", withCaption(m.Message, map[string]any{
			"photo": photoSizes(photo),
		}))
	case *tg.MessageMediaDocument:
		doc, ok := md.Document.(*tg.Document)
		if !ok {
			return tdapi.ContentVideo{IsExpired: true, Caption: m.Message}
		}
		return b.projectDocument(doc, m.Message)
	case *tg.MessageMediaContact:
		contact := map[string]any{
			"phone_number": md.PhoneNumber,
			"first_name":   md.FirstName,
		}
		if md.LastName != "" {
			contact["last_name"] = md.LastName
		}
		if md.UserID != 0 {
			contact["user_id"] = md.UserID
		}
		return rawContent("messageContact", map[string]any{"contact": contact})
	case *tg.MessageMediaGeo:
		if geo, ok := md.Geo.(*tg.GeoPoint); ok {
			return rawContent("messageLocation", map[string]any{
				"location": map[string]any{"latitude": geo.Lat, "longitude": geo.Long},
			})
		}
	case *tg.MessageMediaVenue:
		venue := map[string]any{
			"title":   md.Title,
			"address": md.Address,
		}
		if geo, ok := md.Geo.(*tg.GeoPoint); ok {
			venue["location"] = map[string]any{"latitude": geo.Lat, "longitude": geo.Long}
		}
		if md.VenueID != "" {
			venue["foursquare_id"] = md.VenueID
		}
		return rawContent("messageVenue", map[string]any{"venue": venue})
	case *tg.MessageMediaDice:
		return rawContent("messageDice", map[string]any{
			"dice": map[string]any{"emoji": md.Emoticon, "value": md.Value},
		})
	case *tg.MessageMediaPoll:
		return rawContent("messagePoll", map[string]any{"poll": projectPoll(&md.Poll, &md.Results)})
	case *tg.MessageMediaGame:
		return tdapi.ContentGame{Title: md.Game.Title}
	}
	if m.Message != "" {
		return tdapi.ContentText{Text: m.Message}
	}
	return tdapi.ContentRaw{Type: "messageUnsupported"}
}

// projectDocument раскладывает документ по виду из атрибутов.
func (b *Bus) projectDocument(doc *tg.Document, caption string) tdapi.MessageContent {
	fileID := encodeFileRef(fileRef{
		Kind:          fileKindDocument,
		ID:            doc.ID,
		AccessHash:    doc.AccessHash,
		FileReference: doc.FileReference,
		Size:          doc.Size,
	})
	base := map[string]any{
		"file_id":        fileID,
		"file_unique_id": uniqueFileID(fileRef{Kind: fileKindDocument, ID: doc.ID}),
		"file_size":      doc.Size,
		"mime_type":      doc.MimeType,
	}

	key := "document"
	kind := "messageDocument"
	for _, attr := range doc.Attributes {
		switch a := attr.(type) {
		case *tg.DocumentAttributeSticker:
			if set, ok := a.Stickerset.(*tg.InputStickerSetID); ok {
				b.peers.putStickerSet(set.ID, set.AccessHash)
				return tdapi.ContentSticker{
					SetID:      set.ID,
					Emoji:      a.Alt,
					IsAnimated: doc.MimeType == "application/x-tgsticker",
					IsVideo:    doc.MimeType == "video/webm",
				}
			}
		case *tg.DocumentAttributeAudio:
			base["duration"] = a.Duration
			if a.Voice {
				key, kind = "voice", "messageVoiceNote"
			} else {
				key, kind = "audio", "messageAudio"
				if a.Title != "" {
					base["title"] = a.Title
				}
				if a.Performer != "" {
					base["performer"] = a.Performer
				}
			}
		case *tg.DocumentAttributeVideo:
			base["duration"] = int(a.Duration)
			base["width"] = a.W
			base["height"] = a.H
			if a.RoundMessage {
				key, kind = "video_note", "messageVideoNote"
				base["length"] = a.W
			} else if key != "animation" {
				key, kind = "video", "messageVideo"
			}
		case *tg.DocumentAttributeAnimated:
			key, kind = "animation", "messageAnimation"
		case *tg.DocumentAttributeFilename:
			base["file_name"] = a.FileName
		}
	}
	return rawContent(kind, withCaption(caption, map[string]any{key: base}))
}

// photoSizes — массив размеров фото в форме Bot API.
func photoSizes(photo *tg.Photo) []map[string]any {
	out := make([]map[string]any, 0, len(photo.Sizes))
	for _, s := range photo.Sizes {
		var typ string
		var w, h, size int
		switch ps := s.(type) {
		case *tg.PhotoSize:
			typ, w, h, size = ps.Type, ps.W, ps.H, ps.Size
		case *tg.PhotoSizeProgressive:
			typ, w, h = ps.Type, ps.W, ps.H
			if n := len(ps.Sizes); n > 0 {
				size = ps.Sizes[n-1]
			}
		default:
			continue
		}
		fileID := encodeFileRef(fileRef{
			Kind:          fileKindPhoto,
			ID:            photo.ID,
			AccessHash:    photo.AccessHash,
			FileReference: photo.FileReference,
			ThumbSize:     typ,
			Size:          int64(size),
		})
		out = append(out, map[string]any{
			"file_id":        fileID,
			"file_unique_id": uniqueFileID(fileRef{Kind: fileKindPhoto, ID: photo.ID, ThumbSize: typ}),
			"width":          w,
			"height":         h,
			"file_size":      size,
		})
	}
	return out
}

// projectPoll — минимальная проекция опроса.
func projectPoll(poll *tg.Poll, results *tg.PollResults) map[string]any {
	options := make([]map[string]any, 0, len(poll.Answers))
	for i, a := range poll.Answers {
		voters := 0
		if results != nil && i < len(results.Results) {
			voters = results.Results[i].Voters
		}
		options = append(options, map[string]any{"text": a.Text.Text, "voter_count": voters})
	}
	kind := "regular"
	if poll.Quiz {
		kind = "quiz"
	}
	total := 0
	if results != nil {
		total = results.TotalVoters
	}
	return map[string]any{
		"id":                      strconv.FormatInt(poll.ID, 10),
		"question":                poll.Question.Text,
		"options":                 options,
		"total_voter_count":       total,
		"is_closed":               poll.Closed,
		"is_anonymous":            !poll.PublicVoters,
		"type":                    kind,
		"allows_multiple_answers": poll.MultipleChoice,
	}
}

// projectMarkup проецирует входящую inline-клавиатуру.
func projectMarkup(markup tg.ReplyMarkupClass) tdapi.ReplyMarkup {
	inline, ok := markup.(*tg.ReplyInlineMarkup)
	if !ok {
		return nil
	}
	rows := make([][]tdapi.InlineButton, 0, len(inline.Rows))
	for _, row := range inline.Rows {
		out := make([]tdapi.InlineButton, 0, len(row.Buttons))
		for _, btn := range row.Buttons {
			switch bt := btn.(type) {
			case *tg.KeyboardButtonURL:
				out = append(out, tdapi.InlineButton{Text: bt.Text, Kind: tdapi.ButtonURL{URL: bt.URL}})
			case *tg.KeyboardButtonCallback:
				out = append(out, tdapi.InlineButton{Text: bt.Text, Kind: tdapi.ButtonCallback{Data: bt.Data}})
			case *tg.KeyboardButtonURLAuth:
				out = append(out, tdapi.InlineButton{Text: bt.Text, Kind: tdapi.ButtonLoginURL{
					URL:         bt.URL,
					ID:          int64(bt.ButtonID),
					ForwardText: bt.FwdText,
				}})
			case *tg.KeyboardButtonSwitchInline:
				out = append(out, tdapi.InlineButton{Text: bt.Text, Kind: tdapi.ButtonSwitchInline{
					Query:       bt.Query,
					CurrentChat: bt.SamePeer,
				}})
			case *tg.KeyboardButtonWebView:
				out = append(out, tdapi.InlineButton{Text: bt.Text, Kind: tdapi.ButtonWebApp{URL: bt.URL}})
			case *tg.KeyboardButtonBuy:
				out = append(out, tdapi.InlineButton{Text: bt.Text, Kind: tdapi.ButtonPay{}})
			case *tg.KeyboardButtonGame:
				out = append(out, tdapi.InlineButton{Text: bt.Text, Kind: tdapi.ButtonCallback{Data: nil}})
			}
		}
		if len(out) > 0 {
			rows = append(rows, out)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	return &tdapi.InlineKeyboard{Rows: rows}
}

// projectUser — проекция пользователя.
func projectUser(u *tg.User) *tdapi.User {
	out := &tdapi.User{
		ID:                    u.ID,
		FirstName:             u.FirstName,
		LastName:              u.LastName,
		LanguageCode:          u.LangCode,
		IsPremium:             u.Premium,
		AddedToAttachmentMenu: u.BotAttachMenu,
		HaveAccess:            !u.Min,
		Kind:                  tdapi.UserKindRegular,
	}
	if u.Username != "" {
		out.ActiveUsernames = append(out.ActiveUsernames, u.Username)
		out.EditableUsername = u.Username
	}
	for _, un := range u.Usernames {
		if un.Active && un.Username != out.EditableUsername {
			out.ActiveUsernames = append(out.ActiveUsernames, un.Username)
		}
	}
	switch {
	case u.Deleted:
		out.Kind = tdapi.UserKindDeleted
	case u.Bot:
		out.Kind = tdapi.UserKindBot
		out.Bot = &tdapi.BotInfo{
			CanJoinGroups:           !u.BotNochats,
			CanReadAllGroupMessages: u.BotChatHistory,
			IsInline:                u.BotInlinePlaceholder != "",
			InlineQueryPlaceholder:  u.BotInlinePlaceholder,
			CanConnectToBusiness:    u.BotBusiness,
			HasMainWebApp:           u.BotHasMainApp,
		}
	}
	return out
}

// projectBasicGroup — проекция basic group.
func projectBasicGroup(c *tg.Chat) *tdapi.BasicGroup {
	g := &tdapi.BasicGroup{
		ID:          c.ID,
		MemberCount: int32(c.ParticipantsCount),
		IsActive:    !c.Deactivated,
		Status:      tdapi.ChatMemberStatusMember,
	}
	switch {
	case c.Creator:
		g.Status = tdapi.ChatMemberStatusCreator
	case c.Left:
		g.Status = tdapi.ChatMemberStatusLeft
	}
	if migrated, ok := c.GetMigratedTo(); ok {
		if ch, ok := migrated.(*tg.InputChannel); ok {
			g.UpgradedToSupergroupID = ch.ChannelID
		}
	}
	return g
}

// projectGroupChat — объект чата basic group.
func projectGroupChat(c *tg.Chat) *tdapi.Chat {
	chat := &tdapi.Chat{
		ID:    -c.ID,
		Title: c.Title,
		Kind:  tdapi.ChatKindGroup{GroupID: c.ID},
	}
	if rights, ok := c.GetDefaultBannedRights(); ok {
		chat.Permissions = permissionsFromBanned(rights)
	} else {
		chat.Permissions = allPermissions()
	}
	return chat
}

// projectSupergroup — проекция супергруппы/канала.
func projectSupergroup(ch *tg.Channel) *tdapi.Supergroup {
	sg := &tdapi.Supergroup{
		ID:             ch.ID,
		Date:           int64(ch.Date),
		IsChannel:      ch.Broadcast,
		IsForum:        ch.Forum,
		JoinToSendMessages: ch.JoinToSend,
		JoinByRequest:  ch.JoinRequest,
		Status:         tdapi.ChatMemberStatusMember,
	}
	switch {
	case ch.Creator:
		sg.Status = tdapi.ChatMemberStatusCreator
	case ch.Left:
		sg.Status = tdapi.ChatMemberStatusLeft
	}
	if ch.Username != "" {
		sg.ActiveUsernames = append(sg.ActiveUsernames, ch.Username)
		sg.EditableUsername = ch.Username
	}
	for _, un := range ch.Usernames {
		if un.Active && un.Username != sg.EditableUsername {
			sg.ActiveUsernames = append(sg.ActiveUsernames, un.Username)
		}
	}
	return sg
}

// projectChannelChat — объект чата канала/супергруппы.
func projectChannelChat(ch *tg.Channel) *tdapi.Chat {
	chat := &tdapi.Chat{
		ID:    zeroChannelID - ch.ID,
		Title: ch.Title,
		Kind:  tdapi.ChatKindSupergroup{SupergroupID: ch.ID, IsChannel: ch.Broadcast},
		HasProtectedContent: ch.Noforwards,
	}
	if rights, ok := ch.GetDefaultBannedRights(); ok {
		chat.Permissions = permissionsFromBanned(rights)
	} else {
		chat.Permissions = allPermissions()
	}
	return chat
}

// permissionsFromBanned инвертирует banned rights в права по умолчанию.
func permissionsFromBanned(r tg.ChatBannedRights) tdapi.ChatPermissions {
	return tdapi.ChatPermissions{
		CanSendMessages:       !r.SendMessages,
		CanSendAudios:         !r.SendAudios,
		CanSendDocuments:      !r.SendDocs,
		CanSendPhotos:         !r.SendPhotos,
		CanSendVideos:         !r.SendVideos,
		CanSendVideoNotes:     !r.SendRoundvideos,
		CanSendVoiceNotes:     !r.SendVoices,
		CanSendPolls:          !r.SendPolls,
		CanSendOtherMessages:  !r.SendStickers && !r.SendGifs && !r.SendGames && !r.SendInline,
		CanAddWebPagePreviews: !r.EmbedLinks,
		CanChangeInfo:         !r.ChangeInfo,
		CanInviteUsers:        !r.InviteUsers,
		CanPinMessages:        !r.PinMessages,
		CanManageTopics:       !r.ManageTopics,
	}
}

func allPermissions() tdapi.ChatPermissions {
	return tdapi.ChatPermissions{
		CanSendMessages: true, CanSendAudios: true, CanSendDocuments: true,
		CanSendPhotos: true, CanSendVideos: true, CanSendVideoNotes: true,
		CanSendVoiceNotes: true, CanSendPolls: true, CanSendOtherMessages: true,
		CanAddWebPagePreviews: true, CanChangeInfo: true, CanInviteUsers: true,
		CanPinMessages: true, CanManageTopics: true,
	}
}

// callbackPayload выбирает данные callback-кнопки.
func callbackPayload(data []byte, game string) tdapi.CallbackPayload {
	if game != "" {
		return tdapi.CallbackPayloadGame{ShortName: game}
	}
	return tdapi.CallbackPayloadData{Data: data}
}

// inlineChatType — строковый тип чата inline-запроса Bot API.
func inlineChatType(pt tg.InlineQueryPeerTypeClass) string {
	switch pt.(type) {
	case *tg.InlineQueryPeerTypeSameBotPM:
		return "sender"
	case *tg.InlineQueryPeerTypePM, *tg.InlineQueryPeerTypeBotPM:
		return "private"
	case *tg.InlineQueryPeerTypeChat:
		return "group"
	case *tg.InlineQueryPeerTypeMegagroup:
		return "supergroup"
	case *tg.InlineQueryPeerTypeBroadcast:
		return "channel"
	}
	return ""
}

// inviteLink извлекает ссылку приглашения.
func inviteLink(invite tg.ExportedChatInviteClass) string {
	if link, ok := invite.(*tg.ChatInviteExported); ok {
		return link.Link
	}
	return ""
}

// shippingAddressJSON — адрес доставки в форме Bot API.
func shippingAddressJSON(a tg.PostAddress) string {
	raw, err := json.Marshal(map[string]string{
		"country_code": a.CountryISO2,
		"state":        a.State,
		"city":         a.City,
		"street_line1": a.StreetLine1,
		"street_line2": a.StreetLine2,
		"post_code":    a.PostCode,
	})
	if err != nil {
		return ""
	}
	return string(raw)
}

// rawContent собирает ContentRaw из готовых полей Bot API.
func rawContent(kind string, fields map[string]any) tdapi.MessageContent {
	raw, err := json.Marshal(fields)
	if err != nil {
		return tdapi.ContentRaw{Type: kind}
	}
	return tdapi.ContentRaw{Type: kind, JSON: raw}
}

// withCaption добавляет подпись к полям медиа.
func withCaption(caption string, fields map[string]any) map[string]any {
	if caption != "" {
		fields["caption"] = caption
	}
	return fields
}
