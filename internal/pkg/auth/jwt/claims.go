package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the JWT claims for a chatcore identity token.
// It embeds the standard claims required by the JWT specification plus the
// custom claims the server needs to associate a connection with a user.
type Payload struct {
	// StandardClaims embeds Exp (Expiration), Iat (Issued At), and Iss
	// (Issuer), which drive token validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// UserID is the unique identifier of the authenticated user.
	UserID string `json:"user_id"`

	// Username is the account name, carried for logging and display.
	Username string `json:"username"`
}
