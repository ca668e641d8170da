package mutation

import (
	"github.com/dshills/vtstate/internal/mutation/intervaltree"
	"github.com/dshills/vtstate/internal/mutation/joiner"
	"github.com/dshills/vtstate/internal/mutation/prompt"
	"github.com/dshills/vtstate/internal/mutation/report"
	"github.com/dshills/vtstate/internal/mutation/sideeffect"
	"github.com/dshills/vtstate/internal/terminal"
)

// Payload is a side effect delivered to the Delegate.
type Payload = sideeffect.Payload[Delegate]

// PausedPayload is a side effect that holds back later effects until its
// Unpauser fires.
type PausedPayload = sideeffect.PausedPayload[Delegate]

// EffectFunc adapts a function to Payload.
type EffectFunc func(d Delegate, flags sideeffect.Flags)

// Perform implements Payload.
func (f EffectFunc) Perform(d Delegate, flags sideeffect.Flags) { f(d, flags) }

// PausedFunc adapts a function to PausedPayload.
type PausedFunc func(d Delegate, flags sideeffect.Flags, u *sideeffect.Unpauser)

// PerformPaused implements PausedPayload.
func (f PausedFunc) PerformPaused(d Delegate, flags sideeffect.Flags, u *sideeffect.Unpauser) {
	f(d, flags, u)
}

// DetachedFunc adapts a function to sideeffect.DetachedPayload.
type DetachedFunc func(flags sideeffect.Flags)

// PerformDetached implements sideeffect.DetachedPayload.
func (f DetachedFunc) PerformDetached(flags sideeffect.Flags) { f(flags) }

type refreshEffect struct {
	frame *terminal.Frame
}

func (e refreshEffect) EffectName() string { return "refresh" }

func (e refreshEffect) Perform(d Delegate, flags sideeffect.Flags) {
	d.Refresh(e.frame, flags)
}

type titleEffect string

func (e titleEffect) EffectName() string { return "title" }

func (e titleEffect) Perform(d Delegate, _ sideeffect.Flags) {
	d.SetTitle(string(e))
}

type cwdEffect string

func (e cwdEffect) EffectName() string { return "cwd" }

func (e cwdEffect) Perform(d Delegate, _ sideeffect.Flags) {
	d.SetWorkingDirectory(string(e))
}

type promptEffect struct {
	from, to prompt.State
}

func (e promptEffect) EffectName() string { return "prompt" }

func (e promptEffect) Perform(d Delegate, _ sideeffect.Flags) {
	d.PromptStateChanged(e.from, e.to)
}

// commandRangeEffect delivers whatever the joiner holds when it runs, so
// every update made before delivery collapses into one call.
type commandRangeEffect struct {
	joiner *joiner.Joiner[CommandRange]
}

func (e commandRangeEffect) EffectName() string { return "command-range" }

func (e commandRangeEffect) Perform(d Delegate, _ sideeffect.Flags) {
	if r, ok := e.joiner.Take(); ok {
		d.CommandRangeChanged(r)
	}
}

// Discard disarms the joiner so the next update schedules a new effect.
func (e commandRangeEffect) Discard() {
	e.joiner.Take()
}

type writeEffect []byte

func (e writeEffect) EffectName() string { return "write" }

func (e writeEffect) Perform(d Delegate, _ sideeffect.Flags) {
	d.WriteToShell(e)
}

// reportEffect answers a device query. The throttle slot taken when it was
// queued is returned once the answer is written, or when it is dropped.
type reportEffect struct {
	data     []byte
	throttle *report.Throttle
}

func (e reportEffect) EffectName() string { return "report" }

func (e reportEffect) Perform(d Delegate, _ sideeffect.Flags) {
	defer e.throttle.DidSend()
	d.WriteToShell(e.data)
}

func (e reportEffect) Discard() {
	e.throttle.DidSend()
}

type bellEffect struct{}

func (bellEffect) EffectName() string { return "bell" }

func (bellEffect) Perform(d Delegate, _ sideeffect.Flags) {
	d.Bell()
}

type alertEffect string

func (e alertEffect) EffectName() string { return "alert" }

func (e alertEffect) PerformPaused(d Delegate, _ sideeffect.Flags, u *sideeffect.Unpauser) {
	d.Alert(string(e), u)
}

type markChange int

const (
	markAdded markChange = iota
	markMoved
	markRemoved
)

// markEffect notifies observers. Entries with an Owner go only to that
// observer; others go to all.
type markEffect struct {
	change    markChange
	entry     intervaltree.Entry
	observers *observerSet
}

func (e markEffect) EffectName() string { return "mark" }

func (e markEffect) PerformDetached(_ sideeffect.Flags) {
	for _, o := range e.observers.route(e.entry.Owner) {
		switch e.change {
		case markAdded:
			o.MarkAdded(e.entry)
		case markMoved:
			o.MarkMoved(e.entry)
		case markRemoved:
			o.MarkRemoved(e.entry)
		}
	}
}
