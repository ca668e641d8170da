package trigger

import "errors"

// Sentinel errors for the trigger package.
var (
	// ErrUnknownAction is returned for an action name with no implementation.
	ErrUnknownAction = errors.New("unknown trigger action")

	// ErrMissingParam is returned when an action lacks a required parameter.
	ErrMissingParam = errors.New("missing trigger parameter")

	// ErrNoHandler is returned when a Lua script does not define on_match.
	ErrNoHandler = errors.New("lua script does not define on_match")
)
