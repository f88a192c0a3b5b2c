package handlers

// User-facing error messages
const (
	ErrInvalidJSON           = "Invalid JSON body"
	ErrUnauthorized          = "Unauthorized"
	ErrNotFound              = "Not found"
	ErrTooManyRequests       = "Too many requests. Please try again later."
	ErrInternalServerError   = "Internal server error"
	ErrInvalidProgressRecord = "Progress record is malformed"
	ErrNoSuggestion          = "No username suggestion is available right now"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20
