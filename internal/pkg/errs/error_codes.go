/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific business or system errors both internally
and in responses to clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON is malformed.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates trailing content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate exceeded the set limit.
	ErrRateLimitExceeded = 1005
)

// 2xxx: Chat Room and Message Business Logic Errors
const (
	// ErrRoomTypeInvalid indicates an invalid chat room kind in a creation request.
	ErrRoomTypeInvalid = 2101

	// ErrRoomNotFound indicates that the referenced chat room does not exist.
	ErrRoomNotFound = 2102

	// ErrInvalidParticipants indicates an unusable participant set, e.g. a
	// personal chat without exactly two participants including the creator.
	ErrInvalidParticipants = 2103

	// ErrNotParticipant indicates the acting user is not part of the chat room.
	ErrNotParticipant = 2104

	// ErrMessageContentTooLong indicates the message content exceeded the length limit.
	ErrMessageContentTooLong = 2201

	// ErrMessageContentEmpty indicates the message carried no content.
	ErrMessageContentEmpty = 2202
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrInvalidUsername indicates the username does not meet format requirements.
	ErrInvalidUsername = 3001

	// ErrInvalidPassword indicates the password does not meet length requirements.
	ErrInvalidPassword = 3002

	// ErrUserAlreadyExists indicates the username is already taken.
	ErrUserAlreadyExists = 3003

	// ErrInvalidCredentials indicates a failed username/password check.
	ErrInvalidCredentials = 3004

	// ErrUserNotFound indicates the account does not exist.
	ErrUserNotFound = 3005

	// ErrUnauthorized indicates a missing or invalid identity token.
	ErrUnauthorized = 3006

	// ErrConnectionRejected indicates the websocket connection could not be
	// admitted to the registry.
	ErrConnectionRejected = 3007
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified internal server error.
	ErrUnknown = 5000
)
