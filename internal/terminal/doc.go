// Package terminal provides the byte-level pieces that feed the mutation
// core: a tokenizer, the character grid, and a PTY to run a shell in.
//
// # Architecture
//
//   - Tokenizer: turns PTY output into Tokens (text, C0 controls, CSI, OSC,
//     ESC). It does not interpret them.
//   - Screen: the grid of Lines and Cells with cursor, scroll region,
//     alternate screen and scrollback History. Screen.Apply executes the
//     grid-level tokens; shell integration and reports are handled by the
//     caller.
//   - Frame: an immutable copy of the grid for rendering.
//   - ColorMap: palette and default color overrides.
//   - PTY: platform pseudo-terminal.
//
// # Thread Safety
//
// Tokenizer, Screen and ColorMap are owned by a single goroutine and are not
// safe for concurrent use. Frames are immutable and may be shared.
package terminal
