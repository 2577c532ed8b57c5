package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"quic-chat-system/internal/auth"
	"quic-chat-system/internal/errors"
	"quic-chat-system/internal/models"
	"quic-chat-system/internal/protocol"
	"quic-chat-system/internal/service"
)

// Dispatcher maps a tagged command to a service call and builds the
// uniform response envelope. It is the only place domain errors become wire
// strings, and the only place the online registry is updated from command
// side effects.
type Dispatcher struct {
	auth     *service.AuthService
	friends  *service.FriendService
	chats    *service.ChatService
	tokens   *auth.TokenIssuer
	registry *Registry
}

// NewDispatcher wires the dispatcher to its services and the registry.
func NewDispatcher(authSvc *service.AuthService, friends *service.FriendService, chats *service.ChatService, tokens *auth.TokenIssuer, registry *Registry) *Dispatcher {
	return &Dispatcher{
		auth:     authSvc,
		friends:  friends,
		chats:    chats,
		tokens:   tokens,
		registry: registry,
	}
}

// session identifies the connection a request arrived on, so successful
// logins can bind the user to the connection's push stream.
type session struct {
	connID string
	push   io.Writer
}

// Dispatch routes one request and returns the response together with the
// ids of users whose clients should be woken after the response has been
// written. sess may be nil in tests that exercise routing only.
func (d *Dispatcher) Dispatch(ctx context.Context, req *protocol.Request, sess *session) (protocol.Response, []int64) {
	cmd := req.Command

	// Login and Register are the only commands that work without a token.
	if cmd.Type != protocol.CmdLogin && cmd.Type != protocol.CmdRegister {
		if req.JWT == nil || *req.JWT == "" {
			return protocol.ErrResponse("No token provided"), nil
		}
	}

	token := ""
	if req.JWT != nil {
		token = *req.JWT
	}

	switch cmd.Type {
	case protocol.CmdRegister:
		payload, err := decode[protocol.AuthPayload](cmd.Data)
		if err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		result, err := d.auth.Register(ctx, payload.Username, payload.Password)
		if err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		d.bind(result.UserID, sess)
		return ok(result.Token, "Registered", protocol.RegisterData{UserID: result.UserID}), nil

	case protocol.CmdLogin:
		payload, err := decode[protocol.AuthPayload](cmd.Data)
		if err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		result, err := d.auth.Login(ctx, payload.Username, payload.Password)
		if err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		d.bind(result.UserID, sess)
		return ok(result.Token, "Logged In", nil), nil

	case protocol.CmdLogout:
		userID, err := d.tokens.ValidateToken(token)
		if err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		// Evict before responding so later notifications cannot race the
		// closing connection.
		d.registry.Unregister(userID)
		return ok("", "Logged Out", nil), nil

	case protocol.CmdGetInfo:
		user, err := d.auth.GetInfo(ctx, token)
		if err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		return ok("", "", protocol.UserInfo{ID: user.ID, Username: user.Username}), nil

	case protocol.CmdUpdateProfile:
		payload, err := decode[protocol.UpdateProfilePayload](cmd.Data)
		if err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		if err := d.auth.UpdatePassword(ctx, token, payload.NewPassword); err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		return ok("", "Profile updated", nil), nil

	case protocol.CmdSendFriendRequest:
		payload, err := decode[protocol.SendFriendRequestPayload](cmd.Data)
		if err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		receiverID, err := d.friends.SendFriendRequest(ctx, token, payload.ReceiverUsername)
		if err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		return ok("", "Friend request sent", nil), []int64{receiverID}

	case protocol.CmdAcceptFriendRequest:
		payload, err := decode[protocol.AcceptFriendRequestPayload](cmd.Data)
		if err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		if err := d.friends.AcceptFriendRequest(ctx, token, payload.SenderID); err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		return ok("", "Friend request accepted", nil), []int64{payload.SenderID}

	case protocol.CmdDeclineFriendRequest:
		payload, err := decode[protocol.DeclineFriendRequestPayload](cmd.Data)
		if err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		if err := d.friends.DeclineFriendRequest(ctx, token, payload.SenderID); err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		return ok("", "Friend request declined", nil), []int64{payload.SenderID}

	case protocol.CmdCancelFriendRequest:
		payload, err := decode[protocol.CancelFriendRequestPayload](cmd.Data)
		if err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		if err := d.friends.CancelFriendRequest(ctx, token, payload.ReceiverID); err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		return ok("", "Friend request cancelled", nil), []int64{payload.ReceiverID}

	case protocol.CmdGetFriendRequests:
		requests, err := d.friends.GetFriendRequests(ctx, token)
		if err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		return ok("", "", protocol.FriendRequestsData{
			Incoming: toUserInfos(requests.Incoming),
			Outgoing: toUserInfos(requests.Outgoing),
		}), nil

	case protocol.CmdRemoveFriend:
		payload, err := decode[protocol.RemoveFriendPayload](cmd.Data)
		if err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		if err := d.friends.RemoveFriend(ctx, token, payload.FriendID); err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		return ok("", "Friend removed", nil), []int64{payload.FriendID}

	case protocol.CmdBlockUser:
		payload, err := decode[protocol.BlockUserPayload](cmd.Data)
		if err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		if err := d.friends.BlockUser(ctx, token, payload.BlockedID); err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		return ok("", "User blocked", nil), []int64{payload.BlockedID}

	case protocol.CmdGetFriends:
		friends, err := d.friends.GetFriends(ctx, token)
		if err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		return ok("", "", protocol.FriendsData{Users: toUserInfos(friends)}), nil

	case protocol.CmdCreateChat:
		payload, err := decode[protocol.CreateChatPayload](cmd.Data)
		if err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		members, err := d.chats.CreateChat(ctx, token, payload.Name, payload.IsGroup, payload.MemberIDs)
		if err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		return ok("", "Chat created", nil), members

	case protocol.CmdSendMessage:
		payload, err := decode[protocol.SendMessagePayload](cmd.Data)
		if err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		result, err := d.chats.SendMessage(ctx, token, payload.ChatID, payload.Content)
		if err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		return ok("", "Message sent", nil), result.MemberIDs

	case protocol.CmdGetChats:
		payload, err := decode[protocol.GetChatsPayload](cmd.Data)
		if err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		summaries, err := d.chats.GetChats(ctx, token, payload.Page, payload.PageSize)
		if err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		entries := make([]protocol.ChatEntry, 0, len(summaries))
		for _, s := range summaries {
			entries = append(entries, protocol.ChatEntry{
				ID:          s.ID,
				ChatName:    s.ChatName,
				UnreadCount: s.UnreadCount,
			})
		}
		return ok("", "", protocol.ChatsData{Chats: entries}), nil

	case protocol.CmdGetChatMessages:
		payload, err := decode[protocol.GetChatMessagesPayload](cmd.Data)
		if err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		page, err := d.chats.GetChatMessages(ctx, token, payload.ChatID, payload.Page, payload.PageSize)
		if err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		entries := make([]protocol.ChatMessageEntry, 0, len(page.Messages))
		for _, m := range page.Messages {
			entries = append(entries, protocol.ChatMessageEntry{
				UserID:   m.SenderID,
				Username: m.SenderUsername,
				Content:  m.Content,
			})
		}
		return ok("", "", protocol.ChatMessagesData{ID: page.ChatID, Messages: entries}), nil

	case protocol.CmdGetChatPages:
		payload, err := decode[protocol.GetChatPagesPayload](cmd.Data)
		if err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		count, err := d.chats.GetChatPages(ctx, token, payload.ChatID, payload.PageSize)
		if err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		return ok("", "", protocol.CountData{Count: count}), nil

	case protocol.CmdGetChatsPages:
		payload, err := decode[protocol.GetChatsPagesPayload](cmd.Data)
		if err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		count, err := d.chats.GetChatsPages(ctx, token, payload.PageSize)
		if err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		return ok("", "", protocol.CountData{Count: count}), nil

	case protocol.CmdMarkMessagesRead:
		payload, err := decode[protocol.MarkMessagesReadPayload](cmd.Data)
		if err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		if err := d.chats.MarkMessagesRead(ctx, token, payload.ChatID); err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		return ok("", "Messages marked read", nil), nil

	case protocol.CmdGetUnreadMessageCount:
		count, err := d.chats.GetUnreadMessageCount(ctx, token)
		if err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		return ok("", "", protocol.CountData{Count: count}), nil

	case protocol.CmdGetUnreadChatMessageCount:
		payload, err := decode[protocol.GetUnreadChatMessageCountPayload](cmd.Data)
		if err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		count, err := d.chats.GetUnreadChatMessageCount(ctx, token, payload.ChatID)
		if err != nil {
			return protocol.ErrResponse(err.Error()), nil
		}
		return ok("", "", protocol.CountData{Count: count}), nil

	default:
		return protocol.ErrResponse(
			errors.Newf(errors.KindRequestInvalid, "unknown command %q", cmd.Type).Error()), nil
	}
}

// bind registers the user's push stream after a successful login or
// registration.
func (d *Dispatcher) bind(userID int64, sess *session) {
	if sess == nil || sess.push == nil {
		return
	}
	d.registry.Register(userID, sess.connID, sess.push)
	slog.Debug("User bound to push stream", "user_id", userID, "conn_id", sess.connID)
}

// decode unmarshals a command payload, treating a nil payload as the empty
// object so parameterless commands need no data field.
func decode[T any](raw json.RawMessage) (T, error) {
	var payload T
	if len(raw) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		var zero T
		return zero, errors.Newf(errors.KindRequestInvalid, "malformed payload: %v", err)
	}
	return payload, nil
}

// ok builds a success envelope, panicking only on unmarshalable data values
// — a programming error, since every payload type here is a plain struct.
func ok(token, msg string, data any) protocol.Response {
	resp, err := protocol.OkResponse(token, msg, data)
	if err != nil {
		panic(err)
	}
	return resp
}

func toUserInfos(users []models.User) []protocol.UserInfo {
	out := make([]protocol.UserInfo, 0, len(users))
	for _, u := range users {
		out = append(out, protocol.UserInfo{ID: u.ID, Username: u.Username})
	}
	return out
}
