package handlers

const (
	maxBodyBytes = 1 << 20

	ErrInvalidBody         = "Invalid request body"
	ErrUnauthorized        = "Unauthorized"
	ErrNotFound            = "Not found"
	ErrTooManyRequests     = "Too many requests"
	ErrInternalServerError = "Internal server error"
)
