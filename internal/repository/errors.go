package repository

import "errors"

var (
	// ErrNotFound is returned when a row does not exist
	ErrNotFound = errors.New("not found")
	// ErrUsernameTaken is returned when creating a user that already exists
	ErrUsernameTaken = errors.New("username already taken")
)
