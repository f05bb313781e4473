package gotd

// Generic-команды — «длинный хвост» методов, которые ядро шлёт без
// типизированного запроса: плоская карта полей, сконвертированных по описанию
// метода. Мост покрывает подмножество прямыми MTProto-вызовами; на остальное
// отвечает METHOD_NOT_SUPPORTED, и шлюз вернёт её клиенту как Bad Request.

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/gotd/td/tg"

	"telegram-botapi-gateway/internal/tdapi"
)

func (b *Bus) handleRPCGeneric(ctx context.Context, api *tg.Client, id uint64, req tdapi.Generic) {
	f := genericFields(req.Fields)
	switch req.Method {
	case "answerCallbackQuery":
		b.genericAnswerCallback(ctx, api, id, f)
	case "answerShippingQuery":
		b.genericAnswerShipping(ctx, api, id, f)
	case "answerPreCheckoutQuery":
		b.genericAnswerPreCheckout(ctx, api, id, f)
	case "setMyCommands":
		b.genericSetCommands(ctx, api, id, f)
	case "deleteMyCommands":
		b.genericDeleteCommands(ctx, api, id, f)
	case "getMyCommands":
		b.genericGetCommands(ctx, api, id, f)
	case "leaveChat":
		b.genericLeaveChat(ctx, api, id, f)
	case "getChatMemberCount":
		b.genericMemberCount(ctx, api, id, f)
	case "getChatMember":
		b.genericGetMember(ctx, api, id, f)
	case "banChatMember":
		b.genericBanMember(ctx, api, id, f)
	case "unbanChatMember":
		b.genericUnbanMember(ctx, api, id, f)
	case "restrictChatMember":
		b.genericRestrictMember(ctx, api, id, f)
	case "promoteChatMember":
		b.genericPromoteMember(ctx, api, id, f)
	case "pinChatMessage":
		b.genericPin(ctx, api, id, f, false)
	case "unpinChatMessage":
		b.genericPin(ctx, api, id, f, true)
	case "unpinAllChatMessages":
		b.genericUnpinAll(ctx, api, id, f)
	case "setChatTitle":
		b.genericSetTitle(ctx, api, id, f)
	case "setChatDescription":
		b.genericSetDescription(ctx, api, id, f)
	case "setMessageReaction":
		b.genericSetReaction(ctx, api, id, f)
	case "exportChatInviteLink":
		b.genericExportInvite(ctx, api, id, f)
	case "approveChatJoinRequest":
		b.genericJoinRequest(ctx, api, id, f, true)
	case "declineChatJoinRequest":
		b.genericJoinRequest(ctx, api, id, f, false)
	case "editInlineMessageText", "editInlineMessageCaption",
		"editInlineMessageMedia", "editInlineMessageReplyMarkup":
		b.genericEditInline(ctx, api, id, req.Method, f)
	default:
		b.respondErr(id, 400, "METHOD_NOT_SUPPORTED")
	}
}

// --- Поля команды -----------------------------------------------------------

// genericFields — типизированный доступ к полям Generic-команды. Значения
// кладёт ядро: строки, int64, float64, bool и json.RawMessage.
type genericFields map[string]any

func (f genericFields) str(key string) string {
	v, _ := f[key].(string)
	return v
}

func (f genericFields) int64v(key string) int64 {
	switch v := f[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

func (f genericFields) boolv(key string) bool {
	v, _ := f[key].(bool)
	return v
}

// raw отдаёт поле как JSON независимо от того, в каком виде его положило ядро.
func (f genericFields) raw(key string) json.RawMessage {
	switch v := f[key].(type) {
	case nil:
		return nil
	case json.RawMessage:
		return v
	case string:
		return json.RawMessage(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		return data
	}
}

// peer разрешает chat_id команды в пира.
func (b *Bus) genericPeer(f genericFields) (tg.InputPeerClass, int64, *tdapi.Error) {
	chatID := f.int64v("chat_id")
	peer, ok := b.peers.inputPeer(chatID)
	if !ok {
		return nil, chatID, &tdapi.Error{Code: 400, Message: "CHAT_NOT_FOUND"}
	}
	return peer, chatID, nil
}

func (b *Bus) genericUser(f genericFields) (tg.InputUserClass, *tdapi.Error) {
	user, ok := b.peers.inputUser(f.int64v("user_id"))
	if !ok {
		return nil, &tdapi.Error{Code: 400, Message: "PEER_ID_INVALID"}
	}
	return user, nil
}

// --- Ответы на запросы ботов ------------------------------------------------

func (b *Bus) genericAnswerCallback(ctx context.Context, api *tg.Client, id uint64, f genericFields) {
	_, err := api.MessagesSetBotCallbackAnswer(ctx, &tg.MessagesSetBotCallbackAnswerRequest{
		QueryID:   f.int64v("callback_query_id"),
		Alert:     f.boolv("show_alert"),
		Message:   f.str("text"),
		URL:       f.str("url"),
		CacheTime: int(f.int64v("cache_time")),
	})
	b.finishGeneric(id, err)
}

func (b *Bus) genericAnswerShipping(ctx context.Context, api *tg.Client, id uint64, f genericFields) {
	var options []struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Prices []struct {
			Label  string `json:"label"`
			Amount int64  `json:"amount"`
		} `json:"prices"`
	}
	if raw := f.raw("shipping_options"); len(raw) > 0 {
		if err := json.Unmarshal(raw, &options); err != nil {
			b.respondErr(id, 400, "can't parse shipping options")
			return
		}
	}
	req := &tg.MessagesSetBotShippingResultsRequest{
		QueryID: f.int64v("shipping_query_id"),
		Error:   f.str("error_message"),
	}
	for _, o := range options {
		opt := tg.ShippingOption{ID: o.ID, Title: o.Title}
		for _, p := range o.Prices {
			opt.Prices = append(opt.Prices, tg.LabeledPrice{Label: p.Label, Amount: p.Amount})
		}
		req.ShippingOptions = append(req.ShippingOptions, opt)
	}
	_, err := api.MessagesSetBotShippingResults(ctx, req)
	b.finishGeneric(id, err)
}

func (b *Bus) genericAnswerPreCheckout(ctx context.Context, api *tg.Client, id uint64, f genericFields) {
	_, err := api.MessagesSetBotPrecheckoutResults(ctx, &tg.MessagesSetBotPrecheckoutResultsRequest{
		QueryID: f.int64v("pre_checkout_query_id"),
		Success: f.boolv("ok"),
		Error:   f.str("error_message"),
	})
	b.finishGeneric(id, err)
}

// --- Команды бота -----------------------------------------------------------

// commandScope переводит область команд Bot API в MTProto-форму.
func (b *Bus) commandScope(raw json.RawMessage) (tg.BotCommandScopeClass, *tdapi.Error) {
	if len(raw) == 0 {
		return &tg.BotCommandScopeDefault{}, nil
	}
	var s struct {
		Type   string          `json:"type"`
		ChatID json.RawMessage `json:"chat_id"`
		UserID int64           `json:"user_id"`
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, &tdapi.Error{Code: 400, Message: "can't parse scope"}
	}
	peerOf := func() (tg.InputPeerClass, *tdapi.Error) {
		peer, ok := b.peers.inputPeer(jsonInt(s.ChatID))
		if !ok {
			return nil, &tdapi.Error{Code: 400, Message: "CHAT_NOT_FOUND"}
		}
		return peer, nil
	}
	switch s.Type {
	case "", "default":
		return &tg.BotCommandScopeDefault{}, nil
	case "all_private_chats":
		return &tg.BotCommandScopeUsers{}, nil
	case "all_group_chats":
		return &tg.BotCommandScopeChats{}, nil
	case "all_chat_administrators":
		return &tg.BotCommandScopeChatAdmins{}, nil
	case "chat":
		peer, perr := peerOf()
		if perr != nil {
			return nil, perr
		}
		return &tg.BotCommandScopePeer{Peer: peer}, nil
	case "chat_administrators":
		peer, perr := peerOf()
		if perr != nil {
			return nil, perr
		}
		return &tg.BotCommandScopePeerAdmins{Peer: peer}, nil
	case "chat_member":
		peer, perr := peerOf()
		if perr != nil {
			return nil, perr
		}
		user, ok := b.peers.inputUser(s.UserID)
		if !ok {
			return nil, &tdapi.Error{Code: 400, Message: "PEER_ID_INVALID"}
		}
		return &tg.BotCommandScopePeerUser{Peer: peer, UserID: user}, nil
	}
	return nil, &tdapi.Error{Code: 400, Message: "unsupported scope type"}
}

func (b *Bus) genericSetCommands(ctx context.Context, api *tg.Client, id uint64, f genericFields) {
	scope, perr := b.commandScope(f.raw("scope"))
	if perr != nil {
		b.respond(id, tdapi.Response{Err: perr})
		return
	}
	var commands []struct {
		Command     string `json:"command"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(f.raw("commands"), &commands); err != nil {
		b.respondErr(id, 400, "can't parse commands")
		return
	}
	req := &tg.BotsSetBotCommandsRequest{Scope: scope, LangCode: f.str("language_code")}
	for _, c := range commands {
		req.Commands = append(req.Commands, tg.BotCommand{Command: c.Command, Description: c.Description})
	}
	_, err := api.BotsSetBotCommands(ctx, req)
	b.finishGeneric(id, err)
}

func (b *Bus) genericDeleteCommands(ctx context.Context, api *tg.Client, id uint64, f genericFields) {
	scope, perr := b.commandScope(f.raw("scope"))
	if perr != nil {
		b.respond(id, tdapi.Response{Err: perr})
		return
	}
	_, err := api.BotsResetBotCommands(ctx, &tg.BotsResetBotCommandsRequest{
		Scope:    scope,
		LangCode: f.str("language_code"),
	})
	b.finishGeneric(id, err)
}

func (b *Bus) genericGetCommands(ctx context.Context, api *tg.Client, id uint64, f genericFields) {
	scope, perr := b.commandScope(f.raw("scope"))
	if perr != nil {
		b.respond(id, tdapi.Response{Err: perr})
		return
	}
	commands, err := api.BotsGetBotCommands(ctx, &tg.BotsGetBotCommandsRequest{
		Scope:    scope,
		LangCode: f.str("language_code"),
	})
	if err != nil {
		b.respondRPCError(id, err)
		return
	}
	out := make([]map[string]string, 0, len(commands))
	for _, c := range commands {
		out = append(out, map[string]string{"command": c.Command, "description": c.Description})
	}
	data, _ := json.Marshal(out)
	b.respond(id, tdapi.Response{Result: &tdapi.RawResult{JSON: data}})
}

// --- Управление чатом -------------------------------------------------------

func (b *Bus) genericLeaveChat(ctx context.Context, api *tg.Client, id uint64, f genericFields) {
	_, chatID, perr := b.genericPeer(f)
	if perr != nil {
		b.respond(id, tdapi.Response{Err: perr})
		return
	}
	if channel, ok := b.peers.inputChannel(chatID); ok {
		_, err := api.ChannelsLeaveChannel(ctx, channel)
		b.finishGeneric(id, err)
		return
	}
	_, err := api.MessagesDeleteChatUser(ctx, &tg.MessagesDeleteChatUserRequest{
		ChatID: -chatID,
		UserID: &tg.InputUserSelf{},
	})
	b.finishGeneric(id, err)
}

func (b *Bus) genericMemberCount(ctx context.Context, api *tg.Client, id uint64, f genericFields) {
	_, chatID, perr := b.genericPeer(f)
	if perr != nil {
		b.respond(id, tdapi.Response{Err: perr})
		return
	}
	count := 0
	if channel, ok := b.peers.inputChannel(chatID); ok {
		full, err := api.ChannelsGetFullChannel(ctx, channel)
		if err != nil {
			b.respondRPCError(id, err)
			return
		}
		if cf, ok := full.FullChat.(*tg.ChannelFull); ok {
			count = cf.ParticipantsCount
		}
	} else {
		full, err := api.MessagesGetFullChat(ctx, -chatID)
		if err != nil {
			b.respondRPCError(id, err)
			return
		}
		if cf, ok := full.FullChat.(*tg.ChatFull); ok {
			if p, ok := cf.Participants.(*tg.ChatParticipants); ok {
				count = len(p.Participants)
			}
		}
	}
	b.respond(id, tdapi.Response{Result: &tdapi.RawResult{JSON: json.RawMessage(strconv.Itoa(count))}})
}

func (b *Bus) genericGetMember(ctx context.Context, api *tg.Client, id uint64, f genericFields) {
	_, chatID, perr := b.genericPeer(f)
	if perr != nil {
		b.respond(id, tdapi.Response{Err: perr})
		return
	}
	userID := f.int64v("user_id")

	if channel, ok := b.peers.inputChannel(chatID); ok {
		participant, ok := b.peers.inputPeerUser(userID)
		if !ok {
			b.respondErr(id, 400, "PEER_ID_INVALID")
			return
		}
		res, err := api.ChannelsGetParticipant(ctx, &tg.ChannelsGetParticipantRequest{
			Channel:     channel,
			Participant: participant,
		})
		if err != nil {
			b.respondRPCError(id, err)
			return
		}
		b.answerMember(id, memberStatusName(channelParticipantStatus(res.Participant)), findUser(res.Users, userID))
		return
	}

	full, err := api.MessagesGetFullChat(ctx, -chatID)
	if err != nil {
		b.respondRPCError(id, err)
		return
	}
	status := tdapi.ChatMemberStatusLeft
	if cf, ok := full.FullChat.(*tg.ChatFull); ok {
		if list, ok := cf.Participants.(*tg.ChatParticipants); ok {
			for _, p := range list.Participants {
				if p.GetUserID() == userID {
					status = chatParticipantStatus(p)
					break
				}
			}
		}
	}
	b.answerMember(id, memberStatusName(status), findUser(full.Users, userID))
}

// answerMember собирает результат getChatMember в форме Bot API.
func (b *Bus) answerMember(id uint64, status string, user *tg.User) {
	if user == nil {
		b.respondErr(id, 400, "PARTICIPANT_ID_INVALID")
		return
	}
	data, _ := json.Marshal(map[string]any{
		"status": status,
		"user":   botUserJSON(user),
	})
	b.respond(id, tdapi.Response{Result: &tdapi.RawResult{JSON: data}})
}

func (b *Bus) genericBanMember(ctx context.Context, api *tg.Client, id uint64, f genericFields) {
	_, chatID, perr := b.genericPeer(f)
	if perr != nil {
		b.respond(id, tdapi.Response{Err: perr})
		return
	}
	if channel, ok := b.peers.inputChannel(chatID); ok {
		participant, ok := b.peers.inputPeerUser(f.int64v("user_id"))
		if !ok {
			b.respondErr(id, 400, "PEER_ID_INVALID")
			return
		}
		_, err := api.ChannelsEditBanned(ctx, &tg.ChannelsEditBannedRequest{
			Channel:     channel,
			Participant: participant,
			BannedRights: tg.ChatBannedRights{
				ViewMessages: true,
				UntilDate:    int(f.int64v("until_date")),
			},
		})
		b.finishGeneric(id, err)
		return
	}
	user, uerr := b.genericUser(f)
	if uerr != nil {
		b.respond(id, tdapi.Response{Err: uerr})
		return
	}
	_, err := api.MessagesDeleteChatUser(ctx, &tg.MessagesDeleteChatUserRequest{
		ChatID:        -chatID,
		UserID:        user,
		RevokeHistory: f.boolv("revoke_messages"),
	})
	b.finishGeneric(id, err)
}

func (b *Bus) genericUnbanMember(ctx context.Context, api *tg.Client, id uint64, f genericFields) {
	_, chatID, perr := b.genericPeer(f)
	if perr != nil {
		b.respond(id, tdapi.Response{Err: perr})
		return
	}
	channel, ok := b.peers.inputChannel(chatID)
	if !ok {
		// В легаси-группах нет бан-листа, снимать нечего.
		b.respondOK(id)
		return
	}
	participant, ok := b.peers.inputPeerUser(f.int64v("user_id"))
	if !ok {
		b.respondErr(id, 400, "PEER_ID_INVALID")
		return
	}
	_, err := api.ChannelsEditBanned(ctx, &tg.ChannelsEditBannedRequest{
		Channel:      channel,
		Participant:  participant,
		BannedRights: tg.ChatBannedRights{},
	})
	b.finishGeneric(id, err)
}

func (b *Bus) genericRestrictMember(ctx context.Context, api *tg.Client, id uint64, f genericFields) {
	_, chatID, perr := b.genericPeer(f)
	if perr != nil {
		b.respond(id, tdapi.Response{Err: perr})
		return
	}
	channel, ok := b.peers.inputChannel(chatID)
	if !ok {
		b.respondErr(id, 400, "method is available for supergroup and channel chats only")
		return
	}
	participant, ok := b.peers.inputPeerUser(f.int64v("user_id"))
	if !ok {
		b.respondErr(id, 400, "PEER_ID_INVALID")
		return
	}
	rights, rerr := bannedRights(f.raw("permissions"))
	if rerr != nil {
		b.respond(id, tdapi.Response{Err: rerr})
		return
	}
	rights.UntilDate = int(f.int64v("until_date"))
	_, err := api.ChannelsEditBanned(ctx, &tg.ChannelsEditBannedRequest{
		Channel:      channel,
		Participant:  participant,
		BannedRights: rights,
	})
	b.finishGeneric(id, err)
}

// bannedRights переводит разрешения Bot API в ограничения MTProto: правам
// соответствуют обратные запреты.
func bannedRights(raw json.RawMessage) (tg.ChatBannedRights, *tdapi.Error) {
	var p struct {
		CanSendMessages       bool `json:"can_send_messages"`
		CanSendAudios         bool `json:"can_send_audios"`
		CanSendDocuments      bool `json:"can_send_documents"`
		CanSendPhotos         bool `json:"can_send_photos"`
		CanSendVideos         bool `json:"can_send_videos"`
		CanSendVideoNotes     bool `json:"can_send_video_notes"`
		CanSendVoiceNotes     bool `json:"can_send_voice_notes"`
		CanSendPolls          bool `json:"can_send_polls"`
		CanSendOtherMessages  bool `json:"can_send_other_messages"`
		CanAddWebPagePreviews bool `json:"can_add_web_page_previews"`
		CanChangeInfo         bool `json:"can_change_info"`
		CanInviteUsers        bool `json:"can_invite_users"`
		CanPinMessages        bool `json:"can_pin_messages"`
		CanManageTopics       bool `json:"can_manage_topics"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return tg.ChatBannedRights{}, &tdapi.Error{Code: 400, Message: "can't parse permissions"}
	}
	return tg.ChatBannedRights{
		SendMessages: !p.CanSendMessages,
		SendPlain:    !p.CanSendMessages,
		SendAudios:   !p.CanSendAudios,
		SendDocs:     !p.CanSendDocuments,
		SendPhotos:   !p.CanSendPhotos,
		SendVideos:   !p.CanSendVideos,
		SendRoundvideos: !p.CanSendVideoNotes,
		SendVoices:   !p.CanSendVoiceNotes,
		SendPolls:    !p.CanSendPolls,
		SendStickers: !p.CanSendOtherMessages,
		SendGifs:     !p.CanSendOtherMessages,
		SendGames:    !p.CanSendOtherMessages,
		SendInline:   !p.CanSendOtherMessages,
		EmbedLinks:   !p.CanAddWebPagePreviews,
		ChangeInfo:   !p.CanChangeInfo,
		InviteUsers:  !p.CanInviteUsers,
		PinMessages:  !p.CanPinMessages,
		ManageTopics: !p.CanManageTopics,
	}, nil
}

func (b *Bus) genericPromoteMember(ctx context.Context, api *tg.Client, id uint64, f genericFields) {
	_, chatID, perr := b.genericPeer(f)
	if perr != nil {
		b.respond(id, tdapi.Response{Err: perr})
		return
	}
	channel, ok := b.peers.inputChannel(chatID)
	if !ok {
		b.respondErr(id, 400, "method is available for supergroup and channel chats only")
		return
	}
	user, uerr := b.genericUser(f)
	if uerr != nil {
		b.respond(id, tdapi.Response{Err: uerr})
		return
	}
	_, err := api.ChannelsEditAdmin(ctx, &tg.ChannelsEditAdminRequest{
		Channel: channel,
		UserID:  user,
		AdminRights: tg.ChatAdminRights{
			Anonymous:      f.boolv("is_anonymous"),
			Other:          f.boolv("can_manage_chat"),
			ChangeInfo:     f.boolv("can_change_info"),
			PostMessages:   f.boolv("can_post_messages"),
			EditMessages:   f.boolv("can_edit_messages"),
			DeleteMessages: f.boolv("can_delete_messages"),
			ManageCall:     f.boolv("can_manage_video_chats"),
			InviteUsers:    f.boolv("can_invite_users"),
			BanUsers:       f.boolv("can_restrict_members"),
			PinMessages:    f.boolv("can_pin_messages"),
			ManageTopics:   f.boolv("can_manage_topics"),
			AddAdmins:      f.boolv("can_promote_members"),
			PostStories:    f.boolv("can_post_stories"),
			EditStories:    f.boolv("can_edit_stories"),
			DeleteStories:  f.boolv("can_delete_stories"),
		},
	})
	b.finishGeneric(id, err)
}

func (b *Bus) genericPin(ctx context.Context, api *tg.Client, id uint64, f genericFields, unpin bool) {
	peer, _, perr := b.genericPeer(f)
	if perr != nil {
		b.respond(id, tdapi.Response{Err: perr})
		return
	}
	msgID := mtprotoMessageID(f.int64v("message_id"))
	if unpin && msgID == 0 {
		// Без message_id снимается последнее закреплённое сообщение.
		found, err := b.lastPinnedID(ctx, api, peer)
		if err != nil {
			b.respondRPCError(id, err)
			return
		}
		if found == 0 {
			b.respondErr(id, 400, "MESSAGE_ID_INVALID")
			return
		}
		msgID = found
	}
	_, err := api.MessagesUpdatePinnedMessage(ctx, &tg.MessagesUpdatePinnedMessageRequest{
		Peer:   peer,
		ID:     msgID,
		Silent: f.boolv("disable_notification"),
		Unpin:  unpin,
	})
	b.finishGeneric(id, err)
}

// lastPinnedID ищет последнее закреплённое сообщение чата; 0 — закреплённых нет.
func (b *Bus) lastPinnedID(ctx context.Context, api *tg.Client, peer tg.InputPeerClass) (int, error) {
	res, err := api.MessagesSearch(ctx, &tg.MessagesSearchRequest{
		Peer:   peer,
		Filter: &tg.InputMessagesFilterPinned{},
		Limit:  1,
	})
	if err != nil {
		return 0, err
	}
	var list []tg.MessageClass
	switch r := res.(type) {
	case *tg.MessagesMessages:
		list = r.Messages
	case *tg.MessagesMessagesSlice:
		list = r.Messages
	case *tg.MessagesChannelMessages:
		list = r.Messages
	}
	for _, m := range list {
		if msg, ok := m.(*tg.Message); ok {
			return msg.ID, nil
		}
	}
	return 0, nil
}

func (b *Bus) genericUnpinAll(ctx context.Context, api *tg.Client, id uint64, f genericFields) {
	peer, _, perr := b.genericPeer(f)
	if perr != nil {
		b.respond(id, tdapi.Response{Err: perr})
		return
	}
	_, err := api.MessagesUnpinAllMessages(ctx, &tg.MessagesUnpinAllMessagesRequest{Peer: peer})
	b.finishGeneric(id, err)
}

func (b *Bus) genericSetTitle(ctx context.Context, api *tg.Client, id uint64, f genericFields) {
	_, chatID, perr := b.genericPeer(f)
	if perr != nil {
		b.respond(id, tdapi.Response{Err: perr})
		return
	}
	if channel, ok := b.peers.inputChannel(chatID); ok {
		_, err := api.ChannelsEditTitle(ctx, &tg.ChannelsEditTitleRequest{
			Channel: channel,
			Title:   f.str("title"),
		})
		b.finishGeneric(id, err)
		return
	}
	_, err := api.MessagesEditChatTitle(ctx, &tg.MessagesEditChatTitleRequest{
		ChatID: -chatID,
		Title:  f.str("title"),
	})
	b.finishGeneric(id, err)
}

func (b *Bus) genericSetDescription(ctx context.Context, api *tg.Client, id uint64, f genericFields) {
	peer, _, perr := b.genericPeer(f)
	if perr != nil {
		b.respond(id, tdapi.Response{Err: perr})
		return
	}
	_, err := api.MessagesEditChatAbout(ctx, &tg.MessagesEditChatAboutRequest{
		Peer:  peer,
		About: f.str("description"),
	})
	b.finishGeneric(id, err)
}

func (b *Bus) genericSetReaction(ctx context.Context, api *tg.Client, id uint64, f genericFields) {
	peer, _, perr := b.genericPeer(f)
	if perr != nil {
		b.respond(id, tdapi.Response{Err: perr})
		return
	}
	var reactions []struct {
		Type          string `json:"type"`
		Emoji         string `json:"emoji"`
		CustomEmojiID string `json:"custom_emoji_id"`
	}
	if raw := f.raw("reaction"); len(raw) > 0 {
		if err := json.Unmarshal(raw, &reactions); err != nil {
			b.respondErr(id, 400, "can't parse reaction")
			return
		}
	}
	req := &tg.MessagesSendReactionRequest{
		Peer:  peer,
		MsgID: mtprotoMessageID(f.int64v("message_id")),
		Big:   f.boolv("is_big"),
	}
	for _, r := range reactions {
		switch r.Type {
		case "custom_emoji":
			docID, err := strconv.ParseInt(r.CustomEmojiID, 10, 64)
			if err != nil {
				b.respondErr(id, 400, "can't parse reaction")
				return
			}
			req.Reaction = append(req.Reaction, &tg.ReactionCustomEmoji{DocumentID: docID})
		default:
			req.Reaction = append(req.Reaction, &tg.ReactionEmoji{Emoticon: r.Emoji})
		}
	}
	_, err := api.MessagesSendReaction(ctx, req)
	b.finishGeneric(id, err)
}

func (b *Bus) genericExportInvite(ctx context.Context, api *tg.Client, id uint64, f genericFields) {
	peer, _, perr := b.genericPeer(f)
	if perr != nil {
		b.respond(id, tdapi.Response{Err: perr})
		return
	}
	invite, err := api.MessagesExportChatInvite(ctx, &tg.MessagesExportChatInviteRequest{
		Peer:                  peer,
		LegacyRevokePermanent: true,
	})
	if err != nil {
		b.respondRPCError(id, err)
		return
	}
	exported, ok := invite.(*tg.ChatInviteExported)
	if !ok {
		b.respondErr(id, 500, "unexpected invite shape")
		return
	}
	data, _ := json.Marshal(exported.Link)
	b.respond(id, tdapi.Response{Result: &tdapi.RawResult{JSON: data}})
}

func (b *Bus) genericJoinRequest(ctx context.Context, api *tg.Client, id uint64, f genericFields, approve bool) {
	peer, _, perr := b.genericPeer(f)
	if perr != nil {
		b.respond(id, tdapi.Response{Err: perr})
		return
	}
	user, uerr := b.genericUser(f)
	if uerr != nil {
		b.respond(id, tdapi.Response{Err: uerr})
		return
	}
	_, err := api.MessagesHideChatJoinRequest(ctx, &tg.MessagesHideChatJoinRequestRequest{
		Approved: approve,
		Peer:     peer,
		UserID:   user,
	})
	b.finishGeneric(id, err)
}

// --- Правка inline-сообщений ------------------------------------------------

func (b *Bus) genericEditInline(ctx context.Context, api *tg.Client, id uint64, method string, f genericFields) {
	msgID, err := decodeInlineMessageID(f.str("inline_message_id"))
	if err != nil {
		b.respondErr(id, 400, "MESSAGE_ID_INVALID")
		return
	}
	req := &tg.MessagesEditInlineBotMessageRequest{ID: msgID}

	switch method {
	case "editInlineMessageText":
		ctype, cfields := genericContent(f["input_message_content"])
		t, ok := textContent(tdapi.ContentRaw{Type: ctype, JSON: cfields})
		if !ok {
			b.respondErr(id, 400, "MESSAGE_EMPTY")
			return
		}
		text, entities, perr := b.parseTextFields(t)
		if perr != nil {
			b.respond(id, tdapi.Response{Err: perr})
			return
		}
		req.Message = text
		req.Entities = entities
		req.NoWebpage = t.noWebPreview
	case "editInlineMessageCaption":
		req.Message = f.str("caption")
	case "editInlineMessageMedia":
		ctype, cfields := genericContent(f["input_message_content"])
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(cfields, &fields); err != nil {
			b.respondErr(id, 400, "MEDIA_EMPTY")
			return
		}
		media, merr := b.buildMediaValue(ctx, api, ctype, fields)
		if merr != nil {
			b.respond(id, tdapi.Response{Err: merr})
			return
		}
		// Загружаемое медиа нельзя передать в inline-правку напрямую.
		media, err = preuploadMedia(ctx, api, &tg.InputPeerSelf{}, media)
		if err != nil {
			b.respondRPCError(id, err)
			return
		}
		caption, capEntities, perr := b.parseTextFields(textFields{
			text:      jsonString(fields["caption"]),
			parseMode: jsonString(fields["parse_mode"]),
			entities:  fields["caption_entities"],
		})
		if perr != nil {
			b.respond(id, tdapi.Response{Err: perr})
			return
		}
		req.Media = media
		req.Message = caption
		req.Entities = capEntities
	}

	if markup := b.genericMarkup(f["reply_markup"]); markup != nil {
		req.ReplyMarkup = markup
	}

	_, err = api.MessagesEditInlineBotMessage(ctx, req)
	b.finishGeneric(id, err)
}

// genericContent раскрывает карту контента, собранную ядром.
func genericContent(v any) (string, json.RawMessage) {
	m, ok := v.(map[string]any)
	if !ok {
		return "", nil
	}
	ctype, _ := m["@type"].(string)
	switch raw := m["fields"].(type) {
	case json.RawMessage:
		return ctype, raw
	case string:
		return ctype, json.RawMessage(raw)
	}
	return ctype, nil
}

// genericMarkup разбирает клавиатуру в том виде, в каком её положило ядро:
// JSON Bot API либо уже отрендеренная inline-клавиатура.
func (b *Bus) genericMarkup(v any) tg.ReplyMarkupClass {
	var raw json.RawMessage
	switch m := v.(type) {
	case nil:
		return nil
	case json.RawMessage:
		raw = m
	case string:
		raw = json.RawMessage(m)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		raw = data
	}
	var kb struct {
		InlineKeyboard [][]json.RawMessage `json:"inline_keyboard"`
	}
	if err := json.Unmarshal(raw, &kb); err == nil && len(kb.InlineKeyboard) > 0 {
		rows := make([]tg.KeyboardButtonRow, 0, len(kb.InlineKeyboard))
		for _, row := range kb.InlineKeyboard {
			buttons := make([]tg.KeyboardButtonClass, 0, len(row))
			for _, btnRaw := range row {
				if btn := b.rawInlineButton(btnRaw); btn != nil {
					buttons = append(buttons, btn)
				}
			}
			if len(buttons) > 0 {
				rows = append(rows, tg.KeyboardButtonRow{Buttons: buttons})
			}
		}
		return &tg.ReplyInlineMarkup{Rows: rows}
	}
	return buildRawMarkup(raw)
}

// rawInlineButton — inline-кнопка из JSON Bot API.
func (b *Bus) rawInlineButton(raw json.RawMessage) tg.KeyboardButtonClass {
	var btn struct {
		Text                         string  `json:"text"`
		URL                          string  `json:"url"`
		CallbackData                 string  `json:"callback_data"`
		SwitchInlineQuery            *string `json:"switch_inline_query"`
		SwitchInlineQueryCurrentChat *string `json:"switch_inline_query_current_chat"`
		Pay                          bool    `json:"pay"`
		LoginURL                     *struct {
			URL                string `json:"url"`
			ForwardText        string `json:"forward_text"`
			RequestWriteAccess bool   `json:"request_write_access"`
		} `json:"login_url"`
		WebApp *struct {
			URL string `json:"url"`
		} `json:"web_app"`
	}
	if err := json.Unmarshal(raw, &btn); err != nil {
		return nil
	}
	switch {
	case btn.CallbackData != "":
		return &tg.KeyboardButtonCallback{Text: btn.Text, Data: []byte(btn.CallbackData)}
	case btn.URL != "":
		return &tg.KeyboardButtonURL{Text: btn.Text, URL: btn.URL}
	case btn.SwitchInlineQuery != nil:
		return &tg.KeyboardButtonSwitchInline{Text: btn.Text, Query: *btn.SwitchInlineQuery}
	case btn.SwitchInlineQueryCurrentChat != nil:
		return &tg.KeyboardButtonSwitchInline{Text: btn.Text, Query: *btn.SwitchInlineQueryCurrentChat, SamePeer: true}
	case btn.LoginURL != nil:
		return &tg.InputKeyboardButtonURLAuth{
			Text:               btn.Text,
			URL:                btn.LoginURL.URL,
			FwdText:            btn.LoginURL.ForwardText,
			Bot:                &tg.InputUserSelf{},
			RequestWriteAccess: btn.LoginURL.RequestWriteAccess,
		}
	case btn.WebApp != nil:
		return &tg.KeyboardButtonWebView{Text: btn.Text, URL: btn.WebApp.URL}
	case btn.Pay:
		return &tg.KeyboardButtonBuy{Text: btn.Text}
	}
	return &tg.KeyboardButton{Text: btn.Text}
}

// --- Статусы участников -----------------------------------------------------

func chatParticipantStatus(p tg.ChatParticipantClass) tdapi.ChatMemberStatus {
	switch p.(type) {
	case *tg.ChatParticipantCreator:
		return tdapi.ChatMemberStatusCreator
	case *tg.ChatParticipantAdmin:
		return tdapi.ChatMemberStatusAdministrator
	}
	return tdapi.ChatMemberStatusMember
}

func channelParticipantStatus(p tg.ChannelParticipantClass) tdapi.ChatMemberStatus {
	switch p := p.(type) {
	case *tg.ChannelParticipantCreator:
		return tdapi.ChatMemberStatusCreator
	case *tg.ChannelParticipantAdmin:
		return tdapi.ChatMemberStatusAdministrator
	case *tg.ChannelParticipantBanned:
		if p.Left || p.BannedRights.ViewMessages {
			return tdapi.ChatMemberStatusKicked
		}
		return tdapi.ChatMemberStatusRestricted
	case *tg.ChannelParticipantLeft:
		return tdapi.ChatMemberStatusLeft
	}
	return tdapi.ChatMemberStatusMember
}

// memberStatusName — имя статуса в терминах Bot API.
func memberStatusName(s tdapi.ChatMemberStatus) string {
	switch s {
	case tdapi.ChatMemberStatusCreator:
		return "creator"
	case tdapi.ChatMemberStatusAdministrator:
		return "administrator"
	case tdapi.ChatMemberStatusRestricted:
		return "restricted"
	case tdapi.ChatMemberStatusLeft:
		return "left"
	case tdapi.ChatMemberStatusKicked:
		return "kicked"
	}
	return "member"
}

// --- Вспомогательное --------------------------------------------------------

// finishGeneric завершает команду без содержательного результата.
func (b *Bus) finishGeneric(id uint64, err error) {
	if err != nil {
		b.respondRPCError(id, err)
		return
	}
	b.respondOK(id)
}

// botUserJSON — пользователь в форме Bot API.
func botUserJSON(u *tg.User) map[string]any {
	out := map[string]any{
		"id":         u.ID,
		"is_bot":     u.Bot,
		"first_name": u.FirstName,
	}
	if u.LastName != "" {
		out["last_name"] = u.LastName
	}
	if u.Username != "" {
		out["username"] = u.Username
	}
	if u.LangCode != "" {
		out["language_code"] = u.LangCode
	}
	return out
}

func findUser(users []tg.UserClass, id int64) *tg.User {
	for _, u := range users {
		if user, ok := u.(*tg.User); ok && user.ID == id {
			return user
		}
	}
	return nil
}

func jsonInt(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var v int64
	if json.Unmarshal(raw, &v) == nil {
		return v
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return v
		}
	}
	return 0
}
