package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/vtstate/internal/config"
	"github.com/dshills/vtstate/internal/mutation"
	"github.com/dshills/vtstate/internal/mutation/echo"
	"github.com/dshills/vtstate/internal/trigger"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "vtstate",
		Short: "Terminal state core with shell integration and triggers",
		Long: `vtstate runs a shell in a pseudo-terminal and tracks its state: the
prompt lifecycle reported by shell integration, marks and annotations,
device reports and user-defined triggers.

Run without a subcommand to start an interactive session.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSession(cmd, opts, &runOptions{})
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "configuration file (TOML or YAML)")

	cmd.AddCommand(newRunCmd(opts), newReplayCmd(opts), newVersionCmd())
	return cmd
}

// loadConfig reads path over the defaults. An empty path uses defaults and
// the environment only.
func loadConfig(path string) (*config.Config, error) {
	return config.Load(path)
}

func echoPolicy(cfg config.EchoConfig) echo.Policy {
	// Validate has already rejected unknown names.
	onTimeout, _ := echo.ParseFallback(cfg.OnTimeout)
	onMismatch, _ := echo.ParseFallback(cfg.OnMismatch)
	return echo.Policy{OnTimeout: onTimeout, OnMismatch: onMismatch}
}

func coordinatorOptions(cfg *config.Config, log *zap.Logger) []mutation.Option {
	return []mutation.Option{
		mutation.WithLogger(log),
		mutation.WithSize(cfg.Terminal.Cols, cfg.Terminal.Rows),
		mutation.WithScrollback(cfg.Terminal.Scrollback),
		mutation.WithReportCeiling(cfg.Reports.Ceiling),
		mutation.WithEcho(cfg.Echo.Window.Duration, echoPolicy(cfg.Echo)),
	}
}

// applyConfig pushes the reloadable parts of cfg into c.
func applyConfig(c *mutation.Coordinator, cfg *config.Config, log *zap.Logger) error {
	triggers, err := trigger.FromConfig(cfg.Triggers, 0)
	if err != nil {
		return fmt.Errorf("build triggers: %w", err)
	}
	c.SetTriggers(triggers)
	c.SetEcho(cfg.Echo.Window.Duration, echoPolicy(cfg.Echo))
	log.Info("configuration applied",
		zap.Int("triggers", len(triggers)),
		zap.Duration("echo_window", cfg.Echo.Window.Duration))
	return nil
}

// composerTimeout bounds how long --command waits for a prompt.
const composerTimeout = 5 * time.Second
