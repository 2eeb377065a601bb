package scheduler

import "errors"

var (
	// ErrInvalidRange is returned for windows or date ranges whose start is not before their end.
	ErrInvalidRange = errors.New("scheduler: invalid range")
	// ErrSlotUnavailable marks a selection whose availability window no longer exists.
	ErrSlotUnavailable = errors.New("scheduler: slot no longer available")
	// ErrInvalidWindow is returned for availability windows missing identifying fields.
	ErrInvalidWindow = errors.New("scheduler: invalid availability window")
	// ErrDuplicateWindow is returned when two windows share the same slot key.
	ErrDuplicateWindow = errors.New("scheduler: duplicate availability window")
	// ErrInvalidSlotKey is returned when a slot key string cannot be decoded.
	ErrInvalidSlotKey = errors.New("scheduler: invalid slot key")
	// ErrOverEnrolled is returned when a session lists more students than it admits.
	ErrOverEnrolled = errors.New("scheduler: more students enrolled than the session admits")
)
