package trigger

import "strconv"

// SetVariableAction stores an expanded template in the session scope.
type SetVariableAction struct {
	Name  string
	Value string
}

// Perform implements Action.
func (a *SetVariableAction) Perform(m Match, host Host) error {
	host.SetVariable(a.Name, m.Expand(a.Value))
	return nil
}

// AddMarkAction marks the matched line.
type AddMarkAction struct {
	Label string
}

// Perform implements Action.
func (a *AddMarkAction) Perform(m Match, host Host) error {
	host.AddMark(m.Line.Y, m.Expand(a.Label))
	return nil
}

// HighlightAction annotates the columns of one group, the whole match by default.
type HighlightAction struct {
	Group int
	Label string
}

// Perform implements Action.
func (a *HighlightAction) Perform(m Match, host Host) error {
	start, end, ok := m.Columns(a.Group)
	if !ok || start == end {
		return nil
	}
	host.Highlight(m.Line.Y, start, end, m.Expand(a.Label))
	return nil
}

// AlertAction asks the display to alert the user.
type AlertAction struct {
	Message string
}

// Perform implements Action.
func (a *AlertAction) Perform(m Match, host Host) error {
	msg := a.Message
	if msg == "" {
		msg = "$0"
	}
	host.Alert(m.Expand(msg))
	return nil
}

// CaptureAction stores every group as Prefix0, Prefix1, ... once the
// trigger pass for the line is over, so later triggers see the previous
// values.
type CaptureAction struct {
	Prefix string
}

// Perform implements Action.
func (a *CaptureAction) Perform(m Match, host Host) error {
	groups := append([]string(nil), m.Groups...)
	prefix := a.Prefix
	host.AddPostTriggerAction(func() {
		for i, g := range groups {
			host.SetVariable(prefix+strconv.Itoa(i), g)
		}
	})
	return nil
}
