package es

import "errors"

var (
	ErrQueueFull        = errors.New("event queue full")
	ErrUnknownService   = errors.New("no service at this priority")
	ErrServiceFailed    = errors.New("service failed to initialise")
	ErrDuplicateService = errors.New("priority already in use")
	ErrTimerUnbound     = errors.New("timer has no destination service")
	ErrInvalidTimer     = errors.New("invalid timer id")
	ErrUnknownState     = errors.New("state has no during function")
	ErrNameTaken        = errors.New("event kind already named")
)
