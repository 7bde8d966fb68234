package errs

import "net/http"

// errorMap holds the template CustomError for every application code.
// A zero Status means HTTP 200 with the error carried in the envelope.
var errorMap = map[int]CustomError{
	// 1xxx
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},
	ErrUnsupportedEvent:     {Code: ErrUnsupportedEvent, Message: "Unsupported event type: %s."},

	// 2xxx
	ErrMessageContentEmpty:   {Code: ErrMessageContentEmpty, Message: "Message cannot be empty.", Status: http.StatusBadRequest},
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message exceeds the %d byte limit.", Status: http.StatusBadRequest},
	ErrReceiverNotFound:      {Code: ErrReceiverNotFound, Message: "Recipient not found.", Status: http.StatusBadRequest},
	ErrSelfMessage:           {Code: ErrSelfMessage, Message: "You cannot message yourself.", Status: http.StatusBadRequest},
	ErrMessageNotFound:       {Code: ErrMessageNotFound, Message: "Message not found.", Status: http.StatusNotFound},
	ErrNotMessageReceiver:    {Code: ErrNotMessageReceiver, Message: "Only the recipient can mark this message as read.", Status: http.StatusForbidden},
	ErrInvalidColor:          {Code: ErrInvalidColor, Message: "Color must be a #RRGGBB value.", Status: http.StatusBadRequest},

	// 3xxx
	ErrUnauthorized:       {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Message: "Incorrect email or password.", Status: http.StatusUnauthorized},
	ErrUserAlreadyExists:  {Code: ErrUserAlreadyExists, Message: "Email is already registered.", Status: http.StatusConflict},
	ErrUserNotFound:       {Code: ErrUserNotFound, Message: "Account not found.", Status: http.StatusNotFound},
	ErrAlreadyLoggedIn:    {Code: ErrAlreadyLoggedIn, Message: "You are already signed in."},
	ErrInvalidPassword:    {Code: ErrInvalidPassword, Message: "Invalid password."},

	// 5xxx
	ErrUnknown:            {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrStorageUnavailable: {Code: ErrStorageUnavailable, Message: "Storage is temporarily unavailable. Please retry.", Status: http.StatusServiceUnavailable},
}
