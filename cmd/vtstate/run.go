package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/vtstate/internal/config"
	"github.com/dshills/vtstate/internal/logging"
	"github.com/dshills/vtstate/internal/mutation"
	"github.com/dshills/vtstate/internal/mutation/prompt"
	"github.com/dshills/vtstate/internal/mutation/sideeffect"
	"github.com/dshills/vtstate/internal/renderer"
	"github.com/dshills/vtstate/internal/terminal"
)

// errShellExited ends the session when the shell goes away.
var errShellExited = errors.New("shell exited")

type runOptions struct {
	command string
	shell   string
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start an interactive session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSession(cmd, root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.command, "command", "", "send this command once the first prompt is ready")
	cmd.Flags().StringVar(&opts.shell, "shell", "", "shell to run (overrides the configuration)")
	return cmd
}

func runSession(cmd *cobra.Command, root *rootOptions, opts *runOptions) error {
	cfg, err := loadConfig(root.configPath)
	if err != nil {
		return err
	}
	if opts.shell != "" {
		cfg.Terminal.Shell = opts.shell
	}

	logFile := cfg.Log.File
	if logFile == "" {
		logFile = filepath.Join(os.TempDir(), "vtstate.log")
	}
	log, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: []string{logFile},
	})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	var finiOnce sync.Once
	fini := func() { finiOnce.Do(screen.Fini) }
	defer fini()

	w, h := screen.Size()
	cols, rows := max(w-renderer.GutterWidth, 1), max(h-1, 1)

	g, ctx := errgroup.WithContext(cmd.Context())

	shell := exec.CommandContext(ctx, cfg.Terminal.Shell)
	shell.Env = append(os.Environ(), "TERM=xterm-256color")
	pty, err := terminal.StartPTY(shell, uint16(cols), uint16(rows))
	if err != nil {
		return fmt.Errorf("start %s: %w", cfg.Terminal.Shell, err)
	}
	defer pty.Close()

	home, _ := os.UserHomeDir()
	r := renderer.New(screen,
		renderer.WithShell(pty),
		renderer.WithLogger(log.Named("renderer")),
		renderer.WithHome(home))

	c := mutation.New(append(coordinatorOptions(cfg, log),
		mutation.WithSize(cols, rows))...)
	defer c.Close()
	c.SetDelegate(r)
	c.AddMarkObserver(r)
	if err := applyConfig(c, cfg, log); err != nil {
		return err
	}

	log.Info("session started",
		zap.String("shell", cfg.Terminal.Shell),
		zap.Int("cols", cols),
		zap.Int("rows", rows))

	g.Go(func() error { return c.Run(ctx) })
	g.Go(func() error { return renderer.Consume(ctx, c) })
	g.Go(func() error { return readShell(ctx, pty, c) })
	g.Go(func() error {
		err := shell.Wait()
		log.Info("shell exited", zap.Error(err))
		return errShellExited
	})
	g.Go(func() error { return r.PollEvents(ctx, &ptyHost{pty: pty, c: c, log: log}) })
	g.Go(func() error {
		<-ctx.Done()
		fini()
		return nil
	})
	if root.configPath != "" {
		g.Go(func() error {
			return config.Watch(ctx, root.configPath, log.Named("config"), func(cfg *config.Config) {
				if err := applyConfig(c, cfg, log); err != nil {
					log.Warn("reloaded configuration not applied", zap.Error(err))
				}
			})
		})
	}
	if opts.command != "" {
		g.Go(func() error {
			sendWhenReady(ctx, c, opts.command, log)
			return nil
		})
	}

	err = g.Wait()
	if errors.Is(err, errShellExited) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// readShell tokenizes PTY output and submits it to the mutation path.
func readShell(ctx context.Context, pty terminal.PTY, c *mutation.Coordinator) error {
	tk := terminal.NewTokenizer()
	buf := make([]byte, 32*1024)
	for {
		n, err := pty.Read(buf)
		if n > 0 {
			if tokens := tk.Feed(buf[:n]); len(tokens) > 0 {
				if err := c.Submit(ctx, tokens); err != nil {
					return err
				}
			}
		}
		if err != nil {
			// Linux reports EIO once the child side closes.
			return errShellExited
		}
	}
}

// sendWhenReady waits for the shell to show a prompt, then sends command
// through the composer path so its echo is verified. If no prompt appears
// in time the command is written directly. The checks run on the mutation
// path.
func sendWhenReady(ctx context.Context, c *mutation.Coordinator, command string, log *zap.Logger) {
	line := command + "\r"
	sent := make(chan struct{})
	done := false // mutation path only
	attempt := func(force bool) func(*mutation.State) {
		return func(s *mutation.State) {
			switch {
			case done:
				return
			case s.PromptState() == prompt.EnteringCommand:
				s.SendComposerCommand(line)
			case force:
				log.Warn("no prompt seen; sending command without echo verification")
				s.AddJoinedSideEffect(mutation.EffectFunc(func(d mutation.Delegate, _ sideeffect.Flags) {
					d.WriteToShell([]byte(line))
				}))
			default:
				return
			}
			done = true
			close(sent)
		}
	}

	deadline := time.NewTimer(composerTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sent:
			return
		case <-deadline.C:
			c.Dispatch(attempt(true))
		case <-tick.C:
			c.Dispatch(attempt(false))
		}
	}
}

// ptyHost forwards user input to the shell and the coordinator.
type ptyHost struct {
	pty terminal.PTY
	c   *mutation.Coordinator
	log *zap.Logger
}

func (h *ptyHost) WriteInput(data []byte) {
	if _, err := h.pty.Write(data); err != nil {
		h.log.Warn("write input failed", zap.Error(err))
	}
}

func (h *ptyHost) AllowNextReport() {
	h.c.AllowNextReport()
}

func (h *ptyHost) Resize(cols, rows int) {
	h.c.Resize(cols, rows)
	if err := h.pty.Resize(uint16(cols), uint16(rows)); err != nil {
		h.log.Warn("resize pty failed", zap.Error(err))
	}
}
