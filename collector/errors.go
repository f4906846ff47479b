package collector

import "errors"

var (
	// ErrClosed is returned by Collect after Close.
	ErrClosed = errors.New("collector: closed")

	// ErrBroadcast wraps transport failures of the status request broadcast.
	ErrBroadcast = errors.New("collector: broadcast failed")

	// ErrNilRegistry is returned by New when registry is nil.
	ErrNilRegistry = errors.New("collector: registry is nil")

	// ErrNilBus is returned by New when the bus or thread registry is nil.
	ErrNilBus = errors.New("collector: bus is nil")
)
