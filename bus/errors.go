package bus

import "errors"

var (
	// ErrClosed is returned by sends on a closed transport.
	ErrClosed = errors.New("bus: transport closed")

	// ErrUnknownThread is returned when a directed send names no endpoint.
	ErrUnknownThread = errors.New("bus: unknown thread")

	// ErrNilHandler is returned when subscribing a nil handler.
	ErrNilHandler = errors.New("bus: handler is nil")

	// ErrMailboxFull is returned when a recipient cannot accept a message in time.
	ErrMailboxFull = errors.New("bus: mailbox full")
)
