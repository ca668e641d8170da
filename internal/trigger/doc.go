// Package trigger matches completed terminal lines against regular
// expressions and runs an action for each match.
//
// Actions never touch terminal state directly. They act through a Host,
// which the mutation coordinator implements, so every effect of a trigger
// lands on the mutation path and is delivered to the display through the
// side-effect queue like any other change.
//
// # Actions
//
//   - set_variable: store an expanded template in the session scope
//   - mark: add a mark on the matched line
//   - highlight: annotate the matched columns
//   - alert: ask the display to alert the user
//   - capture: after all triggers for the line ran, store every group
//   - lua: call on_match(line, groups) in a sandboxed Lua state
//
// Templates use regexp.Expand syntax: $0 is the whole match, $1 the first
// group, ${name} a named group.
package trigger
