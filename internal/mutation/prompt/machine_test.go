package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var allStates = []State{None, ReceivingPrompt, EnteringCommand, EchoingComposerSentCommand, RunningCommand}

var allEvents = []Event{
	EventPromptStart, EventPromptEnd, EventComposerSend, EventEchoConfirmed,
	EventEchoFallback, EventCommandExecuted, EventCommandFinished, EventReset,
}

func TestPromptReceiveAndEnter(t *testing.T) {
	m := NewMachine()
	assert.Equal(t, None, m.State())

	assert.True(t, m.Fire(EventPromptStart))
	assert.Equal(t, ReceivingPrompt, m.State())

	assert.True(t, m.Fire(EventPromptEnd))
	assert.Equal(t, EnteringCommand, m.State())
	assert.False(t, m.HadCommand())
}

func TestComposerPath(t *testing.T) {
	m := NewMachine()
	m.Fire(EventPromptStart)
	m.Fire(EventPromptEnd)

	assert.True(t, m.Fire(EventComposerSend))
	assert.Equal(t, EchoingComposerSentCommand, m.State())
	assert.True(t, m.Fire(EventEchoConfirmed))
	assert.Equal(t, RunningCommand, m.State())
	assert.True(t, m.HadCommand())

	assert.True(t, m.Fire(EventCommandFinished))
	assert.Equal(t, None, m.State())
}

func TestDirectCommandPath(t *testing.T) {
	m := NewMachine()
	m.Fire(EventPromptStart)
	m.Fire(EventPromptEnd)

	assert.True(t, m.Fire(EventCommandExecuted))
	assert.Equal(t, RunningCommand, m.State())
}

func TestOnlyDocumentedEdges(t *testing.T) {
	valid := map[State]map[Event]State{
		None:                       {EventPromptStart: ReceivingPrompt},
		ReceivingPrompt:            {EventPromptEnd: EnteringCommand},
		EnteringCommand:            {EventComposerSend: EchoingComposerSentCommand, EventCommandExecuted: RunningCommand},
		EchoingComposerSentCommand: {EventEchoConfirmed: RunningCommand, EventEchoFallback: RunningCommand},
		RunningCommand:             {EventCommandFinished: None},
	}

	for _, s := range allStates {
		for _, e := range allEvents {
			m := &Machine{state: s}
			accepted := m.Fire(e)
			want, ok := valid[s][e]

			switch {
			case e == EventReset:
				assert.True(t, accepted, "%s on %s", e, s)
				assert.Equal(t, None, m.State())
			case ok:
				assert.True(t, accepted, "%s on %s", e, s)
				assert.Equal(t, want, m.State(), "%s on %s", e, s)
			default:
				assert.False(t, accepted, "%s on %s should be rejected", e, s)
				assert.Equal(t, s, m.State(), "rejected %s must not change %s", e, s)
			}
		}
	}
}

func TestCallbacks(t *testing.T) {
	var transitions []string
	var rejected []Event

	m := NewMachine(
		OnTransition(func(from, to State, e Event) {
			transitions = append(transitions, from.String()+">"+to.String())
		}),
		OnReject(func(_ State, e Event) { rejected = append(rejected, e) }),
	)

	m.Fire(EventPromptEnd)
	m.Fire(EventPromptStart)
	m.Reset()
	m.Reset()

	assert.Equal(t, []string{"None>ReceivingPrompt", "ReceivingPrompt>None"}, transitions)
	assert.Equal(t, []Event{EventPromptEnd}, rejected)

	accepted, rejections := m.Counts()
	assert.Equal(t, uint64(3), accepted)
	assert.Equal(t, uint64(1), rejections)
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "EchoingComposerSentCommand", EchoingComposerSentCommand.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.Equal(t, "command-finished", EventCommandFinished.String())
	assert.Equal(t, "unknown", Event(42).String())
}
