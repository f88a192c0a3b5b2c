package service

import "errors"

var (
	// ErrNotFound is returned when a username has no record
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when a token does not grant access to a username
	ErrForbidden = errors.New("forbidden")
	// ErrNoSuggestion is returned when no free username could be generated
	ErrNoSuggestion = errors.New("no username suggestion available")
)
