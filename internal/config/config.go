package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"
)

// Config is the complete vtstate configuration.
type Config struct {
	Terminal TerminalConfig  `toml:"terminal" yaml:"terminal"`
	Echo     EchoConfig      `toml:"echo" yaml:"echo"`
	Reports  ReportsConfig   `toml:"reports" yaml:"reports"`
	Log      LogConfig       `toml:"log" yaml:"log"`
	Triggers []TriggerConfig `toml:"triggers" yaml:"triggers"`
}

// TerminalConfig configures the PTY and grid.
type TerminalConfig struct {
	// Shell is the program started in the PTY.
	Shell string `toml:"shell" yaml:"shell"`

	// Cols and Rows size the grid when the display size is unknown.
	Cols int `toml:"cols" yaml:"cols"`
	Rows int `toml:"rows" yaml:"rows"`

	// Scrollback is the number of history lines kept.
	Scrollback int `toml:"scrollback" yaml:"scrollback"`
}

// EchoConfig configures the echo probe.
type EchoConfig struct {
	// Window is how long to wait for a sent command to be echoed.
	Window Duration `toml:"window" yaml:"window"`

	// OnTimeout and OnMismatch are "advance" or "reset".
	OnTimeout  string `toml:"on_timeout" yaml:"on_timeout"`
	OnMismatch string `toml:"on_mismatch" yaml:"on_mismatch"`
}

// ReportsConfig configures the report throttle.
type ReportsConfig struct {
	// Ceiling is the number of unanswered reports allowed in flight.
	Ceiling int `toml:"ceiling" yaml:"ceiling"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`

	// File receives log output. The run command needs one because the
	// display owns the terminal.
	File string `toml:"file" yaml:"file"`
}

// TriggerConfig describes one trigger.
type TriggerConfig struct {
	Name    string `toml:"name" yaml:"name"`
	Pattern string `toml:"pattern" yaml:"pattern"`

	// Action is set_variable, mark, highlight, alert, capture or lua.
	Action string `toml:"action" yaml:"action"`

	// Params are action arguments, for example the variable name.
	Params map[string]string `toml:"params" yaml:"params"`

	// Script is the Lua source for the lua action.
	Script string `toml:"script" yaml:"script"`

	Disabled bool `toml:"disabled" yaml:"disabled"`
}

// Duration is a time.Duration written as a string such as "500ms".
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}
	return &Config{
		Terminal: TerminalConfig{
			Shell:      shell,
			Cols:       80,
			Rows:       24,
			Scrollback: 10000,
		},
		Echo: EchoConfig{
			Window:     Duration{time.Second},
			OnTimeout:  "advance",
			OnMismatch: "advance",
		},
		Reports: ReportsConfig{Ceiling: 10},
		Log:     LogConfig{Level: "info", Format: "json"},
	}
}

var triggerActions = map[string]bool{
	"set_variable": true,
	"mark":         true,
	"highlight":    true,
	"alert":        true,
	"capture":      true,
	"lua":          true,
}

// Validate checks every setting and returns all failures joined.
func (c *Config) Validate() error {
	var errs []error
	add := func(path, msg string, v any) {
		errs = append(errs, &ValidationError{Path: path, Message: msg, Value: v})
	}

	if c.Terminal.Shell == "" {
		add("terminal.shell", "must not be empty", c.Terminal.Shell)
	}
	if c.Terminal.Cols < 2 || c.Terminal.Cols > 1000 {
		add("terminal.cols", "must be between 2 and 1000", c.Terminal.Cols)
	}
	if c.Terminal.Rows < 2 || c.Terminal.Rows > 1000 {
		add("terminal.rows", "must be between 2 and 1000", c.Terminal.Rows)
	}
	if c.Terminal.Scrollback < 0 {
		add("terminal.scrollback", "must not be negative", c.Terminal.Scrollback)
	}
	if c.Echo.Window.Duration <= 0 {
		add("echo.window", "must be positive", c.Echo.Window)
	}
	for path, v := range map[string]string{"echo.on_timeout": c.Echo.OnTimeout, "echo.on_mismatch": c.Echo.OnMismatch} {
		if v != "advance" && v != "reset" {
			add(path, `must be "advance" or "reset"`, v)
		}
	}
	if c.Reports.Ceiling < 1 {
		add("reports.ceiling", "must be at least 1", c.Reports.Ceiling)
	}

	seen := make(map[string]bool)
	for i, tr := range c.Triggers {
		path := fmt.Sprintf("triggers[%d]", i)
		if tr.Name == "" {
			add(path+".name", "must not be empty", tr.Name)
		} else if seen[tr.Name] {
			add(path+".name", "duplicate trigger name", tr.Name)
		}
		seen[tr.Name] = true

		if _, err := regexp.Compile(tr.Pattern); err != nil || tr.Pattern == "" {
			add(path+".pattern", "must be a valid regular expression", tr.Pattern)
		}
		if !triggerActions[tr.Action] {
			add(path+".action", "unknown action", tr.Action)
		}
		if tr.Action == "lua" && tr.Script == "" {
			add(path+".script", "required for lua action", tr.Script)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
