package errors

import (
	"errors"
	"fmt"
	"time"
)

// Common errors used throughout the application
var (
	// Database errors
	ErrNoteNotFound  = errors.New("note not found")
	ErrDatabaseQuery = errors.New("database query failed")

	// Validation errors
	ErrEmptyTitle       = errors.New("title cannot be empty")
	ErrEmptyContent     = errors.New("content cannot be empty")
	ErrEmptySearchQuery = errors.New("search query cannot be empty")
	ErrInvalidSortField = errors.New("invalid sort field (use created_at, updated_at or title)")
	ErrInvalidPage      = errors.New("page must be a positive integer")
	ErrInvalidLimit     = errors.New("limit must be between 1 and 100")

	// Auth errors
	ErrInvalidAPIKey = errors.New("invalid API key")
)

// RateLimitError is returned when the creation window is exhausted. It
// carries the limit and window so callers can build a retry hint.
type RateLimitError struct {
	Limit  int
	Window time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: max %d requests per %s", e.Limit, e.Window)
}

// IsValidation reports whether err is one of the user-correctable input
// errors that map to a 400 response.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyTitle) ||
		errors.Is(err, ErrEmptyContent) ||
		errors.Is(err, ErrEmptySearchQuery) ||
		errors.Is(err, ErrInvalidSortField) ||
		errors.Is(err, ErrInvalidPage) ||
		errors.Is(err, ErrInvalidLimit)
}
