// Package prompt tracks the shell command lifecycle of a terminal session.
//
// The lifecycle is driven by shell-integration marks (prompt start, prompt
// end, command executed, command finished) and by the composer handing a
// command to the shell:
//
//	None -> ReceivingPrompt -> EnteringCommand -> EchoingComposerSentCommand -> RunningCommand
//	                                  |                                               ^    |
//	                                  `-----------------------------------------------'    |
//	None <---------------------------------------------------------------------------------'
//
// Any state may be reset to None. Every other request is rejected and leaves
// the state unchanged.
package prompt

// State is a command lifecycle state.
type State int

const (
	// None means no command is executing and no prompt has started.
	None State = iota

	// ReceivingPrompt means the prompt is being printed.
	ReceivingPrompt

	// EnteringCommand means the prompt finished and the user can type.
	EnteringCommand

	// EchoingComposerSentCommand means the composer sent a command and the
	// shell's echo of it is being verified.
	EchoingComposerSentCommand

	// RunningCommand means the command began executing.
	RunningCommand
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case None:
		return "None"
	case ReceivingPrompt:
		return "ReceivingPrompt"
	case EnteringCommand:
		return "EnteringCommand"
	case EchoingComposerSentCommand:
		return "EchoingComposerSentCommand"
	case RunningCommand:
		return "RunningCommand"
	default:
		return "unknown"
	}
}

// Event is a request to move the lifecycle forward.
type Event int

const (
	// EventPromptStart is the prompt-start mark.
	EventPromptStart Event = iota

	// EventPromptEnd is the prompt-end mark.
	EventPromptEnd

	// EventComposerSend is the composer handing a command to the shell.
	EventComposerSend

	// EventEchoConfirmed is the echo probe matching the composer's command.
	EventEchoConfirmed

	// EventEchoFallback is the echo probe giving up and treating the command
	// as started without confirmation.
	EventEchoFallback

	// EventCommandExecuted is the command-executed mark while the user typed
	// the command directly.
	EventCommandExecuted

	// EventCommandFinished is the command-finished mark.
	EventCommandFinished

	// EventReset returns to None from any state.
	EventReset
)

// String returns the event name.
func (e Event) String() string {
	switch e {
	case EventPromptStart:
		return "prompt-start"
	case EventPromptEnd:
		return "prompt-end"
	case EventComposerSend:
		return "composer-send"
	case EventEchoConfirmed:
		return "echo-confirmed"
	case EventEchoFallback:
		return "echo-fallback"
	case EventCommandExecuted:
		return "command-executed"
	case EventCommandFinished:
		return "command-finished"
	case EventReset:
		return "reset"
	default:
		return "unknown"
	}
}

type edge struct {
	from  State
	event Event
}

var edges = map[edge]State{
	{None, EventPromptStart}:                           ReceivingPrompt,
	{ReceivingPrompt, EventPromptEnd}:                  EnteringCommand,
	{EnteringCommand, EventComposerSend}:               EchoingComposerSentCommand,
	{EchoingComposerSentCommand, EventEchoConfirmed}:   RunningCommand,
	{EchoingComposerSentCommand, EventEchoFallback}:    RunningCommand,
	{EnteringCommand, EventCommandExecuted}:            RunningCommand,
	{RunningCommand, EventCommandFinished}:             None,
}

// Next returns the state reached from s on e, and whether the edge exists.
func Next(s State, e Event) (State, bool) {
	if e == EventReset {
		return None, true
	}
	to, ok := edges[edge{s, e}]
	return to, ok
}

// TransitionFunc observes accepted transitions.
type TransitionFunc func(from, to State, event Event)

// RejectFunc observes rejected requests.
type RejectFunc func(current State, event Event)

// Machine holds the live state. It is owned by the mutation path and is not
// safe for concurrent use.
type Machine struct {
	state      State
	hadCommand bool

	onTransition TransitionFunc
	onReject     RejectFunc

	transitions uint64
	rejections  uint64
}

// Option configures a Machine.
type Option func(*Machine)

// OnTransition registers a callback run after each accepted transition.
func OnTransition(fn TransitionFunc) Option {
	return func(m *Machine) {
		m.onTransition = fn
	}
}

// OnReject registers a callback run for each rejected request.
func OnReject(fn RejectFunc) Option {
	return func(m *Machine) {
		m.onReject = fn
	}
}

// NewMachine creates a machine in the None state.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// HadCommand reports whether any command has entered RunningCommand.
func (m *Machine) HadCommand() bool {
	return m.hadCommand
}

// Fire applies an event. It returns true when the event was accepted. A
// rejected event leaves the state unchanged.
func (m *Machine) Fire(e Event) bool {
	from := m.state
	to, ok := Next(from, e)
	if !ok {
		m.rejections++
		if m.onReject != nil {
			m.onReject(from, e)
		}
		return false
	}

	m.state = to
	m.transitions++
	if to == RunningCommand {
		m.hadCommand = true
	}
	if m.onTransition != nil && from != to {
		m.onTransition(from, to, e)
	}
	return true
}

// Reset returns to None.
func (m *Machine) Reset() {
	m.Fire(EventReset)
}

// Counts returns accepted and rejected request totals.
func (m *Machine) Counts() (transitions, rejections uint64) {
	return m.transitions, m.rejections
}
