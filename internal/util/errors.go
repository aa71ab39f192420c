package util

import "errors"

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrSessionNotFound  = errors.New("training session not found")
	ErrSessionNotActive = errors.New("training session is not active")
	ErrInvalidInput     = errors.New("invalid input")
	ErrPermissionDenied = errors.New("permission denied")
)
