package repository

import "errors"

var (
	// ErrUserNotFound is returned when a user is not found
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameAlreadyExists is returned when a user with the same username already exists
	ErrUsernameAlreadyExists = errors.New("username already registered")
	// ErrEmailAlreadyExists is returned when a user with the same email already exists
	ErrEmailAlreadyExists = errors.New("email already registered")
	// ErrEventNotFound is returned when an event is not found
	ErrEventNotFound = errors.New("event not found")
	// ErrVersionNotFound is returned when a version snapshot is not found
	ErrVersionNotFound = errors.New("version not found")
)
