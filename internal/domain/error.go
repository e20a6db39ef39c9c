package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidVolume indicates that the volume value is out of range.
	ErrInvalidVolume = errors.New("volume must be between 0 and 100")

	// ErrInvalidEndpoint indicates an endpoint that cannot be dialed.
	ErrInvalidEndpoint = errors.New("invalid endpoint")

	// ErrUnknownDeviceClass is returned by ParseDeviceClass.
	ErrUnknownDeviceClass = errors.New("unknown device class")

	// ErrNotConnected is reported for sends without an active connection attempt.
	ErrNotConnected = errors.New("command channel is not connected")

	// ErrOutboxFull is reported when too many sends are pending.
	ErrOutboxFull = errors.New("command outbox is full")

	// ErrChannelClosed is reported for sends dropped by Close or a failed attempt.
	ErrChannelClosed = errors.New("command channel closed")

	// ErrEmptyBody indicates a status response without content.
	ErrEmptyBody = errors.New("status response has no body")

	// ErrInvalidUTF8 indicates a status response that is not UTF-8 text.
	ErrInvalidUTF8 = errors.New("status response is not valid UTF-8")

	// ErrBodyTooLarge indicates a status response exceeding the read limit.
	ErrBodyTooLarge = errors.New("status response too large")
)

// ConnectionError reports a failure to establish the command channel.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SendError reports a command that could not be written.
type SendError struct {
	Command string
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send %q: %v", e.Command, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// FetchError reports a failed status query, including undecodable bodies.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
