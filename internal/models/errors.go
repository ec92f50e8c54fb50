package models

import "errors"

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrSourceUnavailable   = errors.New("source unavailable")
	ErrFetchFailed         = errors.New("fetch failed")
	ErrEmptyContent        = errors.New("empty content")
	ErrSynthesisFailed     = errors.New("synthesis failed")
	ErrSessionPrecondition = errors.New("session precondition unmet")
	ErrModelUnavailable    = errors.New("generative model client unavailable")
	ErrSessionInactive     = errors.New("persona session is not active")
	ErrTurnFailed          = errors.New("turn failed")
	ErrRecordNotFound      = errors.New("record not found")
)
