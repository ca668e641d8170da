// Package config loads vtstate settings.
//
// Settings come from, in increasing precedence:
//
//  1. Built-in defaults (Default)
//  2. A TOML or YAML file, chosen by extension
//  3. VTSTATE_* environment variables
//
// The result is validated before it is returned. A Watcher reloads the file
// when it changes and hands the new Config to a callback.
//
// # Example
//
//	[terminal]
//	shell = "/bin/zsh"
//	scrollback = 5000
//
//	[echo]
//	window = "750ms"
//	on_mismatch = "reset"
//
//	[[triggers]]
//	name = "errors"
//	pattern = "(?i)error: (.*)"
//	action = "highlight"
package config
