package services

import (
	"errors"
	"fmt"

	"github.com/justsurfingit/jobsync/internal/database"
)

var (
	// ErrNotFound wraps the store's not-found so handlers need only one check.
	ErrNotFound     = database.ErrNotFound
	ErrInvalidMerge = errors.New("cannot merge a record into itself")
	ErrCodeTaken    = errors.New("this email code is already taken")
	ErrRateLimited  = errors.New("daily forwarding limit reached")
)

// ValidationError reports bad input caught before any write.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

func notFound(what, id string) error {
	return fmt.Errorf("%s %q: %w", what, id, ErrNotFound)
}
