package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/dshills/vtstate/internal/logging"
	"github.com/dshills/vtstate/internal/mutation"
	"github.com/dshills/vtstate/internal/terminal"
)

type replayOptions struct {
	format    string
	chunk     int
	logLevel  string
	noHistory bool
}

func newReplayCmd(root *rootOptions) *cobra.Command {
	opts := &replayOptions{}
	cmd := &cobra.Command{
		Use:   "replay [file]",
		Short: "Feed recorded terminal output through the core and print the result",
		Long: `replay reads raw terminal output (from a file, or stdin when the file is
omitted or "-") and applies it without a display. It prints the final
screen, prompt state, session variables and marks.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "-"
			if len(args) == 1 {
				name = args[0]
			}
			return runReplay(cmd, root, opts, name)
		},
	}
	cmd.Flags().StringVarP(&opts.format, "output", "o", "text", "output format: text or yaml")
	cmd.Flags().IntVar(&opts.chunk, "chunk", 4096, "bytes per batch")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "warn", "log level, written to stderr")
	cmd.Flags().BoolVar(&opts.noHistory, "no-history", false, "omit scrollback from the output")
	return cmd
}

type replaySummary struct {
	Prompt    string            `yaml:"prompt"`
	Title     string            `yaml:"title,omitempty"`
	Cwd       string            `yaml:"cwd,omitempty"`
	Variables map[string]string `yaml:"variables,omitempty"`
	Marks     []replayMark      `yaml:"marks,omitempty"`
	History   []string          `yaml:"history,omitempty"`
	Screen    []string          `yaml:"screen"`
}

type replayMark struct {
	Kind   string `yaml:"kind"`
	Line   int64  `yaml:"line"`
	Column int    `yaml:"column"`
	Label  string `yaml:"label,omitempty"`
}

func runReplay(cmd *cobra.Command, root *rootOptions, opts *replayOptions, name string) error {
	if opts.format != "text" && opts.format != "yaml" {
		return fmt.Errorf("unknown output format %q", opts.format)
	}
	if opts.chunk <= 0 {
		return fmt.Errorf("chunk must be positive, got %d", opts.chunk)
	}
	cfg, err := loadConfig(root.configPath)
	if err != nil {
		return err
	}
	log, err := logging.New(logging.Options{Level: opts.logLevel, Format: "console"})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	in := cmd.InOrStdin()
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	c := mutation.New(coordinatorOptions(cfg, log)...)
	defer c.Close()
	if err := applyConfig(c, cfg, log); err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := replay(ctx, c, in, opts.chunk); err != nil {
		return err
	}
	summary, err := summarize(ctx, c, !opts.noHistory)
	if err != nil {
		return err
	}
	log.Debug("replay finished", zap.Any("stats", c.Stats()))

	out := cmd.OutOrStdout()
	if opts.format == "yaml" {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(summary); err != nil {
			return err
		}
		return enc.Close()
	}
	return writeText(out, summary)
}

// replay applies in to c in batches of chunk bytes. Effects are drained
// without a delegate so throttled reports and paused effects are released.
func replay(ctx context.Context, c *mutation.Coordinator, in io.Reader, chunk int) error {
	tk := terminal.NewTokenizer()
	buf := make([]byte, chunk)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			if err := c.Process(ctx, tk.Feed(buf[:n])); err != nil {
				return err
			}
			c.PerformSideEffects()
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}
	// Run callbacks scheduled by the last batch and any tokens held behind
	// an alert.
	for {
		if err := c.Process(ctx, nil); err != nil {
			return err
		}
		paused := c.Paused()
		c.PerformSideEffects()
		if !paused {
			return nil
		}
	}
}

func summarize(ctx context.Context, c *mutation.Coordinator, history bool) (*replaySummary, error) {
	sum := &replaySummary{}
	err := c.PerformJoined(ctx, func(_ context.Context, s *mutation.State) {
		sum.Prompt = s.PromptState().String()
		sum.Title = s.Title()
		sum.Cwd = s.WorkingDirectory()
		sum.Variables = s.Variables()

		screen := s.Screen()
		if history {
			h := screen.History()
			for i := 0; i < h.Len(); i++ {
				sum.History = append(sum.History, h.Line(i).Text())
			}
		}
		for y := 0; y < screen.Height(); y++ {
			sum.Screen = append(sum.Screen, screen.LineText(y))
		}
		for len(sum.Screen) > 0 && sum.Screen[len(sum.Screen)-1] == "" {
			sum.Screen = sum.Screen[:len(sum.Screen)-1]
		}
	})
	if err != nil {
		return nil, err
	}

	for _, e := range c.Snapshot().All() {
		at := terminal.CoordFromLinear(e.Interval.Start)
		sum.Marks = append(sum.Marks, replayMark{
			Kind:   e.Kind.String(),
			Line:   at.AbsY,
			Column: at.X,
			Label:  e.Label,
		})
	}
	return sum, nil
}

func writeText(w io.Writer, sum *replaySummary) error {
	var b strings.Builder
	for _, line := range sum.History {
		b.WriteString(line + "\n")
	}
	for _, line := range sum.Screen {
		b.WriteString(line + "\n")
	}
	b.WriteString("--\n")
	fmt.Fprintf(&b, "prompt: %s\n", sum.Prompt)
	if sum.Title != "" {
		fmt.Fprintf(&b, "title: %s\n", sum.Title)
	}
	if sum.Cwd != "" {
		fmt.Fprintf(&b, "cwd: %s\n", sum.Cwd)
	}

	names := make([]string, 0, len(sum.Variables))
	for name := range sum.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "var %s=%s\n", name, sum.Variables[name])
	}
	for _, m := range sum.Marks {
		fmt.Fprintf(&b, "%s %d:%d %s\n", m.Kind, m.Line, m.Column, m.Label)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
