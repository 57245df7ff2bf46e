package domain

import "errors"

// ErrConfiguration is returned when settings or client parameters are invalid,
// for instance an unknown protocol name or a malformed host list.
var ErrConfiguration = errors.New("invalid configuration")

// ErrBackendConnectivity is returned when the key-value backend cannot be reached
// or a backend call fails.
var ErrBackendConnectivity = errors.New("backend unavailable")

// ErrCorruptData is returned when a stored value cannot be interpreted as a session record.
var ErrCorruptData = errors.New("corrupt session data")

// ErrInvalidSession is returned when a nil session or a session without an ID is saved.
var ErrInvalidSession = errors.New("invalid session")
