package session

import "errors"

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionEnded     = errors.New("session ended")
	ErrNoActiveRoute    = errors.New("no active route")
	ErrAdvisoryNotFound = errors.New("advisory not found")
)
