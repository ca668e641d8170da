package join

import "errors"

// ErrJoinTimeout is returned when the lane could not be acquired before the
// join's context was done.
var ErrJoinTimeout = errors.New("join: lane not acquired")
