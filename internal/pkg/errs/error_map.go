/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to
standardize HTTP responses and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
// A zero Status defaults to HTTP 200 with the business code carrying the error.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format."},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format."},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data."},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Chat Room and Message Business Logic Errors
	ErrRoomTypeInvalid:       {Code: ErrRoomTypeInvalid, Message: "Invalid chat type."},
	ErrRoomNotFound:          {Code: ErrRoomNotFound, Message: "Chat room not found.", Status: http.StatusNotFound},
	ErrInvalidParticipants:   {Code: ErrInvalidParticipants, Message: "Invalid chat participants."},
	ErrNotParticipant:        {Code: ErrNotParticipant, Message: "You are not part of this chat.", Status: http.StatusForbidden},
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message is too long."},
	ErrMessageContentEmpty:   {Code: ErrMessageContentEmpty, Message: "Message is empty."},

	// 3xxx: User, Session, and Security Errors
	ErrInvalidUsername:    {Code: ErrInvalidUsername, Message: "Invalid username."},
	ErrInvalidPassword:    {Code: ErrInvalidPassword, Message: "Invalid password."},
	ErrUserAlreadyExists:  {Code: ErrUserAlreadyExists, Message: "Username is already taken."},
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Message: "Incorrect username or password."},
	ErrUserNotFound:       {Code: ErrUserNotFound, Message: "Account not found.", Status: http.StatusNotFound},
	ErrUnauthorized:       {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrConnectionRejected: {Code: ErrConnectionRejected, Message: "Connection could not be established."},

	// 5xxx: Internal System Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
