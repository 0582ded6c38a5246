/*
Package handler provides the HTTP handler for WebSocket connection upgrading
and the inbound message flow.

The upgrade endpoint is the single connection point of the system. It requires
an authenticated identity before ConnectionRegistry.Register is called;
unauthenticated upgrade attempts never touch the registry.
*/
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"chatcore/internal/app/chat"
	"chatcore/internal/app/db"
	"chatcore/internal/pkg/auth/jwt"
	"chatcore/internal/pkg/errs"
	"chatcore/internal/pkg/limiter"
	"chatcore/internal/pkg/logx"
	"chatcore/internal/pkg/randx"
	"chatcore/internal/pkg/resp"
)

// maximum allowed size (in bytes) for message content.
const maxContentBytes = 5000

// MessagePayload is the wire form of one chat message, used both in pushed
// events and in history responses.
type MessagePayload struct {
	ID       string    `json:"id"`
	ChatID   string    `json:"chat_id"`
	SenderID string    `json:"sender_id"`
	Content  string    `json:"content"`
	SentAt   time.Time `json:"sent_at"`
}

// HandleWebSocket creates the HandlerFunc processing WebSocket connection requests.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := limiter.ClientIP(r)

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			logx.Warn("WebSocket connection rejected: Missing or invalid identity token")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		wsConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		conn := chat.NewConnection(wsConn, identity.UserID, handleInbound(deps))

		if err := deps.Registry.Register(conn); err != nil {
			logx.Warn("WebSocket registration failed", "user_id", identity.UserID, "error", err)
			conn.Close()
			return
		}

		go conn.WritePump()

		logx.Info("WebSocket connection established", "user_id", identity.UserID, "conn_id", conn.ID())

		// ReadPump blocks until the connection dies; the registry entry is
		// removed afterwards so later dispatches skip this connection.
		conn.ReadPump(r.Context())
		deps.Registry.Unregister(conn)
	}
}

// handleInbound builds the callback invoked for every parsed client payload.
func handleInbound(deps *AppDeps) chat.InboundFunc {
	return func(ctx context.Context, c *chat.Connection, env chat.InboundEnvelope) {
		switch env.Type {
		case "new_message":
			handleNewMessage(ctx, deps, c, env)

		case "load_chat":
			handleLoadChat(ctx, deps, c, env)

		case "load_rooms":
			handleLoadRooms(deps, c)

		default:
			logx.Warn("Client sent unsupported payload type", "type", env.Type, "user_id", c.UserID())
		}
	}
}

// NewMessageData is the client payload carried in a new_message envelope.
type NewMessageData struct {
	Content string `json:"content"`
}

// handleNewMessage validates, persists, and publishes one chat message.
// Errors are reported back on the sending connection only; they never reach
// other participants.
func handleNewMessage(ctx context.Context, deps *AppDeps, c *chat.Connection, env chat.InboundEnvelope) {
	if !randx.IsValidID(env.ChatID) {
		sendInboundError(c, errs.NewError(errs.ErrInvalidParams))
		return
	}

	var data NewMessageData
	if env.Data == nil || json.Unmarshal(env.Data, &data) != nil {
		sendInboundError(c, errs.NewError(errs.ErrInvalidParams))
		return
	}

	if data.Content == "" {
		sendInboundError(c, errs.NewError(errs.ErrMessageContentEmpty))
		return
	}
	if len(data.Content) > maxContentBytes {
		sendInboundError(c, errs.NewError(errs.ErrMessageContentTooLong))
		return
	}

	participants, err := roomParticipants(ctx, deps, env.ChatID)
	if err != nil {
		sendInboundError(c, errs.NewError(errs.ErrRoomNotFound))
		return
	}

	sender := c.UserID()
	if !contains(participants, sender) {
		logx.Warn("Sender is not part of the chat room", "user_id", sender, "chat_id", env.ChatID)
		sendInboundError(c, errs.NewError(errs.ErrNotParticipant))
		return
	}

	message := MessagePayload{
		ID:       randx.MessageID(),
		ChatID:   env.ChatID,
		SenderID: sender,
		Content:  data.Content,
		SentAt:   time.Now().UTC(),
	}

	if err := deps.Store.InsertMessage(ctx, db.MessageRow{
		ID:       message.ID,
		ChatID:   message.ChatID,
		SenderID: message.SenderID,
		Content:  message.Content,
		SentAt:   message.SentAt,
	}); err != nil {
		logx.Error(err, "Failed to persist message", "chat_id", env.ChatID)
		sendInboundError(c, errs.NewError(errs.ErrUnknown))
		return
	}

	if err := deps.Store.TouchRoom(ctx, message.ChatID, message.SentAt); err != nil {
		logx.Error(err, "Failed to touch room", "chat_id", env.ChatID)
	}

	event, err := buildMessageEvent(deps, message)
	if err != nil {
		sendInboundError(c, errs.NewError(errs.ErrUnknown))
		return
	}

	if _, err := deps.Notifier.Publish(event); err != nil {
		if errors.Is(err, chat.ErrUnknownRoom) {
			sendInboundError(c, errs.NewError(errs.ErrRoomNotFound))
			return
		}

		logx.Error(err, "Failed to publish message event", "chat_id", env.ChatID)
		sendInboundError(c, errs.NewError(errs.ErrUnknown))
	}
}

// buildMessageEvent picks the event variant matching the room kind.
func buildMessageEvent(deps *AppDeps, message MessagePayload) (chat.Event, error) {
	data, err := json.Marshal(message)
	if err != nil {
		return nil, err
	}

	kind, err := roomKind(deps, message.ChatID)
	if err != nil {
		return nil, err
	}

	if kind == chat.RoomPersonal {
		return chat.PersonalMessageEvent{
			RoomID:   message.ChatID,
			SenderID: message.SenderID,
			Data:     data,
			SentAt:   message.SentAt,
		}, nil
	}

	return chat.GroupMessageEvent{
		RoomID:   message.ChatID,
		SenderID: message.SenderID,
		Data:     data,
		SentAt:   message.SentAt,
	}, nil
}

// roomParticipants resolves the room's participant set, rehydrating the
// router from the store when the room predates this process.
func roomParticipants(ctx context.Context, deps *AppDeps, chatID string) ([]string, error) {
	participants, err := deps.Notifier.Participants(chatID)
	if err == nil {
		return participants, nil
	}

	room, dbErr := deps.Store.GetChatRoom(ctx, chatID)
	if dbErr != nil {
		return nil, err
	}

	deps.Notifier.SeedRoom(room.ID, chat.RoomKind(room.Kind), room.Name, room.Participants)
	return room.Participants, nil
}

// roomKind reads the room kind from the router's table.
func roomKind(deps *AppDeps, chatID string) (chat.RoomKind, error) {
	kind, err := deps.Notifier.RoomKindOf(chatID)
	if err != nil {
		return "", err
	}
	return kind, nil
}

// ChatHistoryEnvelope is the reply to a load_chat request.
type ChatHistoryEnvelope struct {
	Type     string           `json:"type"`
	ChatID   string           `json:"chat_id"`
	Messages []MessagePayload `json:"messages"`
}

// LoadChatData is the optional client payload of a load_chat envelope. Before
// carries the paging cursor for older history pages.
type LoadChatData struct {
	Before string `json:"before,omitempty"`
}

// handleLoadChat replies with a page of the room's messages on the requesting
// connection, newest first. A before cursor pages back through history.
func handleLoadChat(ctx context.Context, deps *AppDeps, c *chat.Connection, env chat.InboundEnvelope) {
	if !randx.IsValidID(env.ChatID) {
		sendInboundError(c, errs.NewError(errs.ErrInvalidParams))
		return
	}

	var data LoadChatData
	if env.Data != nil && json.Unmarshal(env.Data, &data) != nil {
		sendInboundError(c, errs.NewError(errs.ErrInvalidParams))
		return
	}

	before, err := parseBeforeCursor(data.Before)
	if err != nil {
		sendInboundError(c, errs.NewError(errs.ErrInvalidParams))
		return
	}

	participants, err := roomParticipants(ctx, deps, env.ChatID)
	if err != nil {
		sendInboundError(c, errs.NewError(errs.ErrRoomNotFound))
		return
	}

	if !contains(participants, c.UserID()) {
		sendInboundError(c, errs.NewError(errs.ErrNotParticipant))
		return
	}

	rows, err := deps.Store.ListMessages(ctx, env.ChatID, before, defaultListLimit)
	if err != nil {
		logx.Error(err, "Failed to load chat history", "chat_id", env.ChatID)
		sendInboundError(c, errs.NewError(errs.ErrUnknown))
		return
	}

	messages := make([]MessagePayload, 0, len(rows))
	for _, m := range rows {
		messages = append(messages, MessagePayload{
			ID:       m.ID,
			ChatID:   m.ChatID,
			SenderID: m.SenderID,
			Content:  m.Content,
			SentAt:   m.SentAt,
		})
	}

	reply, err := json.Marshal(ChatHistoryEnvelope{
		Type:     "chat_history",
		ChatID:   env.ChatID,
		Messages: messages,
	})
	if err != nil {
		logx.Error(err, "Failed to marshal chat history", "chat_id", env.ChatID)
		return
	}

	if err := c.Enqueue(reply); err != nil {
		logx.Warn("Failed to queue chat history", "conn_id", c.ID(), "error", err)
	}
}

// RoomListEnvelope is the reply to a load_rooms request: the connection
// owner's cached room summaries, newest activity first.
type RoomListEnvelope struct {
	Type  string             `json:"type"`
	Rooms []chat.RoomSummary `json:"rooms"`
}

func handleLoadRooms(deps *AppDeps, c *chat.Connection) {
	reply, err := json.Marshal(RoomListEnvelope{
		Type:  "room_list",
		Rooms: deps.Notifier.Rooms(c.UserID()),
	})
	if err != nil {
		logx.Error(err, "Failed to marshal room list", "user_id", c.UserID())
		return
	}

	if err := c.Enqueue(reply); err != nil {
		logx.Warn("Failed to queue room list", "conn_id", c.ID(), "error", err)
	}
}

// ErrorEnvelope reports a rejected inbound payload back to its sender.
type ErrorEnvelope struct {
	Type    string `json:"type"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func sendInboundError(c *chat.Connection, customErr *errs.CustomError) {
	payload, err := json.Marshal(ErrorEnvelope{
		Type:    "error",
		Code:    customErr.Code,
		Message: customErr.Message,
	})
	if err != nil {
		return
	}

	if err := c.Enqueue(payload); err != nil {
		logx.Warn("Failed to queue error envelope", "conn_id", c.ID(), "error", err)
	}
}
