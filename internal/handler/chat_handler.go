/*
Package handler provides HTTP handler functions for chat room creation and
message history. Room creation persists the room first, then publishes a
new_chat_room event through the notifier so every participant's cache and live
connections are updated.
*/
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"chatcore/internal/app/chat"
	"chatcore/internal/app/db"
	"chatcore/internal/pkg/auth/jwt"
	"chatcore/internal/pkg/errs"
	"chatcore/internal/pkg/logx"
	"chatcore/internal/pkg/randx"
	"chatcore/internal/pkg/req"
	"chatcore/internal/pkg/resp"
)

const (
	// maximum number of participants accepted for a group room.
	maxGroupParticipants = 100

	// page size for room and message listings.
	defaultListLimit = 50
)

type CreatePersonalChatInput struct {
	// Participants must contain exactly two user ids, one of them the caller.
	Participants []string `json:"participants"`
}

// HandleCreatePersonalChat creates (or reuses) the one-to-one room between the
// caller and another user, then notifies both participants.
func HandleCreatePersonalChat(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input CreatePersonalChatInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if len(input.Participants) != 2 || !contains(input.Participants, identity.UserID) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParticipants))
			return
		}

		other := input.Participants[0]
		if other == identity.UserID {
			other = input.Participants[1]
		}
		if other == identity.UserID || !randx.IsValidID(other) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParticipants))
			return
		}

		room, err := deps.Store.FindPersonalRoomBetween(r.Context(), identity.UserID, other)
		var chatID string
		var lastUpdated time.Time

		switch {
		case err == nil:
			// Reuse the existing room; re-publishing its summary is idempotent
			// for every participant's cache.
			existing, err := deps.Store.GetChatRoom(r.Context(), room)
			if err != nil {
				logx.Error(err, "Failed to fetch existing personal room", "chat_id", room)
				resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
				return
			}
			chatID = existing.ID
			lastUpdated = existing.LastUpdated

		case db.IsNotFound(err):
			chatID = randx.ChatID()
			lastUpdated = time.Now().UTC()

			if err := deps.Store.CreateChatRoom(r.Context(), db.ChatRoomRow{
				ID:           chatID,
				Name:         nil,
				Kind:         string(chat.RoomPersonal),
				LastUpdated:  lastUpdated,
				Participants: []string{identity.UserID, other},
			}); err != nil {
				logx.Error(err, "Failed to persist personal room", "chat_id", chatID)
				resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
				return
			}

		default:
			logx.Error(err, "Failed to look up personal room")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		event := chat.NewChatRoomEvent{
			Room: chat.RoomSummary{
				ChatID:      chatID,
				ChatName:    nil,
				LastUpdated: lastUpdated,
			},
			Kind:         chat.RoomPersonal,
			Participants: []string{identity.UserID, other},
		}

		if _, err := deps.Notifier.Publish(event); err != nil {
			logx.Error(err, "Failed to publish new_chat_room event", "chat_id", chatID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"chat_id": chatID,
		})
	}
}

type CreateGroupChatInput struct {
	Name         string   `json:"name"`
	Participants []string `json:"participants"`
}

// HandleCreateGroupChat creates a group room. The caller is always included;
// duplicate participants are dropped while preserving order.
func HandleCreateGroupChat(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input CreateGroupChatInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		raw := append([]string{identity.UserID}, input.Participants...)

		seen := make(map[string]struct{}, len(raw))
		participants := make([]string, 0, len(raw))
		for _, id := range raw {
			if id == "" || !randx.IsValidID(id) {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParticipants))
				return
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			participants = append(participants, id)
		}

		if len(participants) < 2 || len(participants) > maxGroupParticipants {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParticipants))
			return
		}

		chatID := randx.ChatID()
		lastUpdated := time.Now().UTC()

		var name *string
		if input.Name != "" {
			name = &input.Name
		}

		if err := deps.Store.CreateChatRoom(r.Context(), db.ChatRoomRow{
			ID:           chatID,
			Name:         name,
			Kind:         string(chat.RoomGroup),
			LastUpdated:  lastUpdated,
			Participants: participants,
		}); err != nil {
			logx.Error(err, "Failed to persist group room", "chat_id", chatID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		event := chat.NewChatRoomEvent{
			Room: chat.RoomSummary{
				ChatID:      chatID,
				ChatName:    name,
				LastUpdated: lastUpdated,
			},
			Kind:         chat.RoomGroup,
			Participants: participants,
		}

		if _, err := deps.Notifier.Publish(event); err != nil {
			logx.Error(err, "Failed to publish new_chat_room event", "chat_id", chatID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"chat_id": chatID,
		})
	}
}

// HandleListRooms returns the caller's rooms from the store, newest activity
// first, and seeds the router so follow-up messages to these rooms route
// without a fresh new_chat_room event (e.g. after a server restart).
func HandleListRooms(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		rooms, err := deps.Store.ListRoomsByUser(r.Context(), identity.UserID, defaultListLimit)
		if err != nil {
			logx.Error(err, "Failed to list rooms", "user_id", identity.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		summaries := make([]chat.RoomSummary, 0, len(rooms))
		for _, room := range rooms {
			deps.Notifier.SeedRoom(room.ID, chat.RoomKind(room.Kind), room.Name, room.Participants)
			summaries = append(summaries, chat.RoomSummary{
				ChatID:      room.ID,
				ChatName:    room.Name,
				LastUpdated: room.LastUpdated,
			})
		}

		resp.RespondSuccess(w, r, summaries)
	}
}

// HandleListMessages returns a page of messages of a room the caller
// participates in, newest first. The optional before query parameter (RFC 3339)
// pages back through older history.
func HandleListMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		chatID := chi.URLParam(r, "chatID")
		if !randx.IsValidID(chatID) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		before, err := parseBeforeCursor(r.URL.Query().Get("before"))
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		room, err := deps.Store.GetChatRoom(r.Context(), chatID)
		if err != nil {
			if db.IsNotFound(err) {
				resp.RespondError(w, r, errs.NewError(errs.ErrRoomNotFound))
				return
			}

			logx.Error(err, "Failed to fetch room", "chat_id", chatID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		if !contains(room.Participants, identity.UserID) {
			resp.RespondError(w, r, errs.NewError(errs.ErrNotParticipant))
			return
		}

		messages, err := deps.Store.ListMessages(r.Context(), chatID, before, defaultListLimit)
		if err != nil {
			logx.Error(err, "Failed to list messages", "chat_id", chatID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		out := make([]MessagePayload, 0, len(messages))
		for _, m := range messages {
			out = append(out, MessagePayload{
				ID:       m.ID,
				ChatID:   m.ChatID,
				SenderID: m.SenderID,
				Content:  m.Content,
				SentAt:   m.SentAt,
			})
		}

		resp.RespondSuccess(w, r, out)
	}
}

// parseBeforeCursor parses the optional history paging cursor: the sent_at of
// the oldest message the client already holds, RFC 3339. Empty means "newest
// page".
func parseBeforeCursor(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, raw)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
