/*
Package handler provides HTTP handler functions for user profile access.
*/
package handler

import (
	"net/http"

	"chatcore/internal/app/db"
	"chatcore/internal/app/user"
	"chatcore/internal/pkg/auth/jwt"
	"chatcore/internal/pkg/errs"
	"chatcore/internal/pkg/logx"
	"chatcore/internal/pkg/resp"
)

// HandleGetProfile returns the authenticated user's account information.
func HandleGetProfile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		account, err := deps.Store.GetUserByID(r.Context(), identity.UserID)
		if err != nil {
			if db.IsNotFound(err) {
				resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
				return
			}

			logx.Error(err, "Failed to fetch user profile", "user_id", identity.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, user.User{
			ID:       account.ID,
			Username: account.Username,
		})
	}
}
