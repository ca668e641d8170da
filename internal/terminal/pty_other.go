//go:build !linux && !darwin

package terminal

import "os/exec"

func startPTY(*exec.Cmd, uint16, uint16) (PTY, error) {
	return nil, ErrPTYNotSupported
}
