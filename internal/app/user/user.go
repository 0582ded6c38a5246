/*
Package user contains the core data structure for user identity.

It defines the basic representation of an account holder within the chat
system, used for passing user information both internally and to clients.
*/
package user

// User represents the basic identity of an account holder.
// Fields carry JSON tags for serialization in API responses.
type User struct {
	// ID is the unique identifier of the user (UUID).
	ID string `json:"id"`

	// Username is the unique account name used to sign in.
	Username string `json:"username"`
}
