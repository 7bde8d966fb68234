/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific business or system failures both inside the server
and on the wire, in HTTP responses and in websocket error events.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body is not valid JSON for the target shape.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates trailing content after the JSON document.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007

	// ErrUnsupportedEvent indicates a websocket event type the server does not handle.
	ErrUnsupportedEvent = 1008
)

// 2xxx: Messaging Errors
const (
	// ErrMessageContentEmpty indicates an empty or whitespace-only message body.
	ErrMessageContentEmpty = 2201

	// ErrMessageContentTooLong indicates that the message exceeded the maximum length limit.
	ErrMessageContentTooLong = 2202

	// ErrReceiverNotFound indicates that the receiver id does not resolve to a known user.
	ErrReceiverNotFound = 2203

	// ErrSelfMessage indicates an attempt to send a message to oneself.
	ErrSelfMessage = 2204

	// ErrMessageNotFound indicates that the message id does not exist.
	ErrMessageNotFound = 2301

	// ErrNotMessageReceiver indicates that only the receiver may acknowledge a message.
	ErrNotMessageReceiver = 2302

	// ErrInvalidColor indicates a display color that is not a #RRGGBB value.
	ErrInvalidColor = 2401
)

// 3xxx: Identity and Session Errors
const (
	// ErrUnauthorized indicates a missing, malformed, expired or unknown identity token.
	ErrUnauthorized = 3001

	// ErrInvalidCredentials indicates a failed login.
	ErrInvalidCredentials = 3002

	// ErrUserAlreadyExists indicates that the email is already registered.
	ErrUserAlreadyExists = 3003

	// ErrUserNotFound indicates that the account does not exist.
	ErrUserNotFound = 3004

	// ErrAlreadyLoggedIn indicates that a signed-in caller hit an anonymous-only endpoint.
	ErrAlreadyLoggedIn = 3005

	// ErrInvalidPassword indicates a password outside the accepted length range.
	ErrInvalidPassword = 3006
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrStorageUnavailable indicates that the persistence layer failed; the call may be retried.
	ErrStorageUnavailable = 5001
)
