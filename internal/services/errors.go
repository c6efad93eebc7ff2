// Package services holds the messenger's application logic: account
// registration and login, contact listing, and the lifecycle of direct
// messages. Services validate and normalize input, then speak to storage
// only through the Executor interface, never to a concrete backend.
//
// This file centralizes the service-level error values. Translating them
// into HTTP status codes is the handler layer's job.
package services

import "errors"

// Account errors.
var (
	// ErrEmptyUsername is returned when a username is blank after trimming.
	ErrEmptyUsername = errors.New("username is empty")

	// ErrEmptyPassword is returned when a password is empty.
	ErrEmptyPassword = errors.New("password is empty")

	// ErrUsernameTaken is returned when registering a username that already
	// exists (exact, case-sensitive match).
	ErrUsernameTaken = errors.New("username already exists")

	// ErrInvalidCredentials is returned when no user matches the given
	// username and password.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrInvalidUser is returned for a non-positive user id.
	ErrInvalidUser = errors.New("invalid user id")
)

// Message errors.
var (
	// ErrEmptyContent is returned when message content is blank after
	// trimming.
	ErrEmptyContent = errors.New("message content is empty")

	// ErrMessageNotFound indicates that the message to edit or delete does
	// not exist.
	ErrMessageNotFound = errors.New("message not found")
)
