//go:build linux || darwin

package terminal

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func startPTY(cmd *exec.Cmd, cols, rows uint16) (PTY, error) {
	master, slave, err := openPTY()
	if err != nil {
		return nil, fmt.Errorf("open pty: %w", err)
	}

	if err := setWinSize(master, cols, rows); err != nil {
		master.Close()
		slave.Close()
		return nil, fmt.Errorf("set pty size: %w", err)
	}

	cmd.Stdin = slave
	cmd.Stdout = slave
	cmd.Stderr = slave
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setsid = true
	cmd.SysProcAttr.Setctty = true

	if err := cmd.Start(); err != nil {
		master.Close()
		slave.Close()
		return nil, err
	}

	// The child holds its own copy.
	slave.Close()

	return &unixPTY{master: master}, nil
}

type unixPTY struct {
	master *os.File
}

func (p *unixPTY) File() *os.File                 { return p.master }
func (p *unixPTY) Read(buf []byte) (int, error)   { return p.master.Read(buf) }
func (p *unixPTY) Write(data []byte) (int, error) { return p.master.Write(data) }
func (p *unixPTY) Close() error                   { return p.master.Close() }

func (p *unixPTY) Resize(cols, rows uint16) error {
	if cols == 0 || rows == 0 {
		return ErrInvalidSize
	}
	return setWinSize(p.master, cols, rows)
}

func setWinSize(f *os.File, cols, rows uint16) error {
	return unix.IoctlSetWinsize(int(f.Fd()), unix.TIOCSWINSZ, &unix.Winsize{Row: rows, Col: cols})
}
