package services

import "errors"

// Sentinel errors returned by the service layer. Handlers map these to HTTP
// status codes; anything else is treated as an internal error.
var (
	ErrDuplicateUser      = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTaskNotFound       = errors.New("task not found")
	ErrInvalidRecurrence  = errors.New("invalid recurrence expression")
)
