package store

import "errors"

var (
	// ErrPostNotFound indicates the referenced post does not exist.
	ErrPostNotFound = errors.New("post not found")
	// ErrUsernameTaken indicates a signup collided with an existing username.
	ErrUsernameTaken = errors.New("username already taken")
)
