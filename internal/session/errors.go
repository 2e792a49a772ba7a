package session

import "errors"

var (
	// ErrNotOpen is returned by any operation performed after Close,
	// or before Open.
	ErrNotOpen = errors.New("session: not open")
	// ErrDeviceAbsent is returned by Open when the device node cannot
	// be found at all.
	ErrDeviceAbsent = errors.New("session: device absent")
	// ErrDeviceIO wraps a lower-level I/O failure talking to the
	// device once it is known to exist.
	ErrDeviceIO = errors.New("session: device I/O error")
	// ErrCommandBusy is returned when a command is issued while
	// another is still pending dispatch.
	ErrCommandBusy = errors.New("session: a command is already pending")
	// ErrConfigOutOfRange is returned by Configure when the requested
	// sampling frequency falls outside the configured table.
	ErrConfigOutOfRange = errors.New("session: requested sampling frequency out of range")
	// ErrAlreadyStarted is returned by Start when the session is
	// already capturing.
	ErrAlreadyStarted = errors.New("session: already started")
	// ErrAlreadyStopped is returned by Stop when the session is not
	// currently capturing.
	ErrAlreadyStopped = errors.New("session: already stopped")
)
