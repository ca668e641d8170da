package mutation

import "errors"

// Sentinel errors for the mutation package.
var (
	// ErrClosed is returned by blocking operations after Close.
	ErrClosed = errors.New("mutation: coordinator closed")

	// ErrRunning is returned when Run is called while another Run is active.
	ErrRunning = errors.New("mutation: already running")
)
