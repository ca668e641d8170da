package config

import (
	"errors"
	"fmt"
)

var (
	// ErrValidationFailed matches every ValidationError.
	ErrValidationFailed = errors.New("invalid configuration")

	// ErrUnsupportedFormat is returned for files that are neither TOML nor YAML.
	ErrUnsupportedFormat = errors.New("unsupported config format")
)

// ParseError reports a file that could not be decoded. Line and Column are
// zero when the decoder does not know the position.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	pos := e.Path
	if e.Line > 0 {
		pos = fmt.Sprintf("%s:%d", pos, e.Line)
		if e.Column > 0 {
			pos = fmt.Sprintf("%s:%d", pos, e.Column)
		}
	}
	return fmt.Sprintf("decode %s: %s", pos, e.Message)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError is one rejected setting. Path uses the dotted file keys,
// or the environment variable name for overrides.
type ValidationError struct {
	Path    string
	Message string
	Value   any
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s (got %v)", e.Path, e.Message, e.Value)
}

// Is reports whether target is ErrValidationFailed.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}
