package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"chatcore/internal/pkg/auth/jwt"
	"chatcore/internal/pkg/errs"
	"chatcore/internal/pkg/randx"
	"chatcore/internal/pkg/resp"
)

func TestParseBeforeCursor(t *testing.T) {
	req := require.New(t)

	before, err := parseBeforeCursor("")
	req.NoError(err)
	req.True(before.IsZero())

	before, err = parseBeforeCursor("2026-03-01T12:00:00Z")
	req.NoError(err)
	req.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), before)

	before, err = parseBeforeCursor("2026-03-01T12:00:00.123456789Z")
	req.NoError(err)
	req.Equal(123456789, before.Nanosecond())

	_, err = parseBeforeCursor("1756728000000")
	req.Error(err)

	_, err = parseBeforeCursor("yesterday")
	req.Error(err)
}

// listMessagesRequest builds an authenticated request with the chat id bound
// as a chi URL parameter.
func listMessagesRequest(chatID, userID, query string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/chat/"+chatID+"/messages"+query, nil)

	ctx := context.WithValue(r.Context(), jwt.ContextAuthPayloadKey, &jwt.Payload{UserID: userID})

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("chatID", chatID)
	ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)

	return r.WithContext(ctx)
}

func TestHandleListMessagesRejectsInvalidCursor(t *testing.T) {
	req := require.New(t)

	// Store stays nil: an invalid cursor must be rejected before any query runs.
	deps := &AppDeps{}
	handler := HandleListMessages(deps)

	w := httptest.NewRecorder()
	handler(w, listMessagesRequest(randx.ChatID(), randx.UserID(), "?before=not-a-timestamp"))

	var body resp.JSONResponse
	req.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	req.Equal(errs.ErrInvalidParams, body.Code)
}

func TestHandleListMessagesRejectsAnonymousCaller(t *testing.T) {
	req := require.New(t)

	deps := &AppDeps{}
	handler := HandleListMessages(deps)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/chat/"+randx.ChatID()+"/messages", nil)
	handler(w, r)

	req.Equal(http.StatusUnauthorized, w.Code)

	var body resp.JSONResponse
	req.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	req.Equal(errs.ErrUnauthorized, body.Code)
}
