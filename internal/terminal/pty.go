package terminal

import (
	"io"
	"os"
	"os/exec"
)

// PTY is the master side of a pseudo-terminal.
type PTY interface {
	io.ReadWriteCloser

	// File returns the master file.
	File() *os.File

	// Resize changes the window size seen by the child.
	Resize(cols, rows uint16) error
}

// StartPTY starts cmd with a new PTY as its controlling terminal.
func StartPTY(cmd *exec.Cmd, cols, rows uint16) (PTY, error) {
	if cols == 0 || rows == 0 {
		return nil, ErrInvalidSize
	}
	return startPTY(cmd, cols, rows)
}
