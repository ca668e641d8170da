package terminal

import "errors"

// Sentinel errors for the terminal package.
var (
	// ErrPTYNotSupported is returned when PTY is not supported on this platform.
	ErrPTYNotSupported = errors.New("PTY not supported on this platform")

	// ErrInvalidSize is returned when a PTY size is zero.
	ErrInvalidSize = errors.New("invalid terminal size")
)
