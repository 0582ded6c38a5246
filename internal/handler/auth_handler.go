/*
Package handler provides HTTP handler functions for user authentication.
*/
package handler

import (
	"net/http"
	"regexp"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"chatcore/internal/app/db"
	"chatcore/internal/pkg/auth/jwt"
	"chatcore/internal/pkg/errs"
	"chatcore/internal/pkg/logx"
	"chatcore/internal/pkg/randx"
	"chatcore/internal/pkg/req"
	"chatcore/internal/pkg/resp"
)

var usernameRegex = regexp.MustCompile(`^[a-z0-9_]{4,20}$`)

const (
	minPasswordLen = 6
	maxPasswordLen = 50
)

type RegisterInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleRegister processes the request to create a new account from a
// username and password.
func HandleRegister(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input RegisterInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if !usernameRegex.MatchString(input.Username) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidUsername))
			return
		}

		passwordLen := utf8.RuneCountInString(input.Password)
		if passwordLen < minPasswordLen || passwordLen > maxPasswordLen {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidPassword))
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			logx.Error(err, "Failed to hash password")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		userID := randx.UserID()

		if err := deps.Store.CreateUser(r.Context(), userID, input.Username, string(hashedPassword)); err != nil {
			if db.IsUniqueViolation(err) {
				resp.RespondError(w, r, errs.NewError(errs.ErrUserAlreadyExists))
				return
			}

			logx.Error(err, "Failed to create user", "username", input.Username)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		logx.Info("User registered", "user_id", userID, "username", input.Username)

		resp.RespondSuccess(w, r, map[string]any{
			"id":       userID,
			"username": input.Username,
		})
	}
}

type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleLogin verifies credentials and issues an identity token.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input LoginInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		account, err := deps.Store.GetUserByUsername(r.Context(), input.Username)
		if err != nil {
			if db.IsNotFound(err) {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
				return
			}

			logx.Error(err, "Failed to fetch user", "username", input.Username)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(input.Password)); err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		payload := &jwt.Payload{
			UserID:   account.ID,
			Username: account.Username,
		}

		tokenString, err := jwt.GenerateToken(payload, deps.Config.JWTSecret, jwt.UserIdentityExpiration)
		if err != nil {
			logx.Error(err, "Failed to generate identity token", "user_id", account.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"token": tokenString,
			"user": map[string]any{
				"id":       account.ID,
				"username": account.Username,
			},
		})
	}
}
