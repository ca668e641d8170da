package mutation

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/vtstate/internal/mutation/echo"
	"github.com/dshills/vtstate/internal/mutation/intervaltree"
	"github.com/dshills/vtstate/internal/mutation/joiner"
	"github.com/dshills/vtstate/internal/mutation/prompt"
	"github.com/dshills/vtstate/internal/mutation/redirect"
	"github.com/dshills/vtstate/internal/mutation/report"
	"github.com/dshills/vtstate/internal/mutation/sideeffect"
	"github.com/dshills/vtstate/internal/terminal"
	"github.com/dshills/vtstate/internal/trigger"
)

// State is all mutable terminal state. It is only reachable from the
// mutation path: callbacks receive it as an argument and must not retain it.
type State struct {
	c   *Coordinator
	log *zap.Logger

	screen *terminal.Screen
	colors *terminal.ColorMap

	// marks belong to the visible screen; saved holds the primary screen's
	// marks while the alternate screen is active.
	marks *intervaltree.Pair
	saved *intervaltree.Pair

	prompt   *prompt.Machine
	probe    *echo.Probe
	throttle *report.Throttle

	commandRange *joiner.Joiner[CommandRange]
	current      CommandRange
	inCommand    bool

	triggers          *trigger.Evaluator
	triggerSuppressed int
	postTrigger       []func()

	vars  map[string]string
	cwd   string
	title string

	// held are tokens received while suspended or paused, in arrival order.
	held []terminal.Token

	// lineFeed records that the batch in progress scrolled.
	lineFeed bool
	// historyDropped is the history drop count already pruned.
	historyDropped int64
}

func newState(c *Coordinator, cfg *options) *State {
	s := &State{
		c:            c,
		log:          cfg.log,
		screen:       terminal.NewScreen(cfg.cols, cfg.rows, cfg.scrollback),
		colors:       terminal.NewColorMap(),
		marks:        intervaltree.NewPair(),
		saved:        intervaltree.NewPair(),
		throttle:     report.New(report.WithCeiling(cfg.reportCeiling), report.WithLogger(cfg.log)),
		commandRange: joiner.New[CommandRange](),
		triggers:     trigger.NewEvaluator(nil, trigger.WithLogger(cfg.log)),
		vars:         make(map[string]string),
	}
	s.prompt = prompt.NewMachine(
		prompt.OnTransition(s.promptTransitioned),
		prompt.OnReject(func(current prompt.State, e prompt.Event) {
			s.log.Debug("prompt transition rejected",
				zap.Stringer("state", current),
				zap.Stringer("event", e))
		}),
	)
	s.probe = echo.New(c, s,
		echo.WithWindow(cfg.echoWindow),
		echo.WithPolicy(cfg.echoPolicy),
		echo.WithLogger(cfg.log.Named("echo")),
	)
	return s
}

// Screen returns the grid.
func (s *State) Screen() *terminal.Screen { return s.screen }

// Colors returns the color map.
func (s *State) Colors() *terminal.ColorMap { return s.colors }

// Prompt returns the prompt lifecycle.
func (s *State) Prompt() *prompt.Machine { return s.prompt }

// PromptState returns the current prompt lifecycle state.
func (s *State) PromptState() prompt.State { return s.prompt.State() }

// HadCommand reports whether any command has run.
func (s *State) HadCommand() bool { return s.prompt.HadCommand() }

// WorkingDirectory returns the directory last reported by the shell.
func (s *State) WorkingDirectory() string { return s.cwd }

// Title returns the window title.
func (s *State) Title() string { return s.title }

// Variable returns a session variable.
func (s *State) Variable(name string) (string, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// SetVariable sets a session variable.
func (s *State) SetVariable(name, value string) {
	s.vars[name] = value
}

// Variables returns a copy of the session variables.
func (s *State) Variables() map[string]string {
	out := make(map[string]string, len(s.vars))
	for k, v := range s.vars {
		out[k] = v
	}
	return out
}

// CommandRange returns the range of the running or last command.
func (s *State) CommandRange() (CommandRange, bool) {
	return s.current, s.inCommand || s.prompt.HadCommand()
}

// Schedule runs fn on the mutation path after the current batch.
func (s *State) Schedule(fn func()) {
	s.c.Schedule(fn)
}

func (s *State) effectFlags() sideeffect.Flags {
	if s.lineFeed {
		return sideeffect.FlagLineFeed
	}
	return 0
}

// AddJoinedSideEffect queues p. Joined effects may be delivered by a
// synchronous join flush.
func (s *State) AddJoinedSideEffect(p Payload) {
	s.c.queue.Joined(p, s.effectFlags())
}

// AddDeferredSideEffect queues p. Deferred effects are only delivered by
// the consumer's regular drain.
func (s *State) AddDeferredSideEffect(p Payload) {
	s.c.queue.Deferred(p, s.effectFlags())
}

// AddPausedSideEffect queues p and pauses token application: tokens after
// the current one are held until the Unpauser handed to p fires. No later
// effect is delivered before then either. onUnpause, if not nil, then runs
// on the mutation path.
func (s *State) AddPausedSideEffect(p PausedPayload, onUnpause func(*State)) {
	c := s.c
	c.pauses.Add(1)
	s.c.queue.Paused(p, s.effectFlags(), func() {
		if onUnpause != nil {
			c.Dispatch(onUnpause)
		}
		c.unpause()
	})
}

// AddNoDelegateSideEffect queues p, which runs whether or not a Delegate is
// attached.
func (s *State) AddNoDelegateSideEffect(p sideeffect.DetachedPayload) {
	s.c.queue.NoDelegate(p, s.effectFlags())
}

// PerformBlockWithoutTriggers runs fn with trigger evaluation suppressed.
// Side effects queued before the call are left where they are; effects fn
// queues follow them.
func (s *State) PerformBlockWithoutTriggers(fn func()) {
	s.triggerSuppressed++
	defer func() { s.triggerSuppressed-- }()
	fn()
}

// TriggersSuppressed reports whether triggers are currently suppressed.
func (s *State) TriggersSuppressed() bool {
	return s.triggerSuppressed > 0
}

// AddRedirectedAction captures fn to run on the next ExecuteRedirectedActions.
func (s *State) AddRedirectedAction(fn func(*State)) {
	s.c.redirected.Add(redirect.Action[*State](fn))
}

// ExecuteRedirectedActions runs every captured action once, in order, and
// returns how many ran.
func (s *State) ExecuteRedirectedActions() int {
	return s.c.redirected.Drain(s)
}

// WillSendReport records a report about to be sent.
func (s *State) WillSendReport() { s.throttle.WillSend() }

// DidSendReport records a report answered. Spurious calls are ignored.
func (s *State) DidSendReport() { s.throttle.DidSend() }

// AddPostTriggerAction runs fn after the trigger pass for the current line.
func (s *State) AddPostTriggerAction(fn func()) {
	s.postTrigger = append(s.postTrigger, fn)
}

// ExecutePostTriggerActions runs the actions queued by triggers, including
// any they queue themselves.
func (s *State) ExecutePostTriggerActions() {
	for len(s.postTrigger) > 0 {
		actions := s.postTrigger
		s.postTrigger = nil
		for _, fn := range actions {
			fn()
		}
	}
}

// Alert asks the consumer to show message. Later effects wait for it.
func (s *State) Alert(message string) {
	s.AddPausedSideEffect(alertEffect(message), nil)
}

// SendComposerCommand hands cmd to the shell on behalf of the composer and
// starts verifying its echo.
func (s *State) SendComposerCommand(cmd string) {
	if s.prompt.Fire(prompt.EventComposerSend) {
		s.probe.Begin(cmd)
	}
	s.AddJoinedSideEffect(writeEffect(cmd))
}

// EchoProbeDidConfirm implements echo.Delegate.
func (s *State) EchoProbeDidConfirm(string) {
	s.prompt.Fire(prompt.EventEchoConfirmed)
}

// EchoProbeDidFail implements echo.Delegate.
func (s *State) EchoProbeDidFail(_ string, _ echo.Outcome, fallback echo.Fallback) {
	if fallback == echo.FallbackReset {
		s.prompt.Reset()
		return
	}
	s.prompt.Fire(prompt.EventEchoFallback)
}

func (s *State) promptTransitioned(from, to prompt.State, _ prompt.Event) {
	s.log.Debug("prompt state changed", zap.Stringer("from", from), zap.Stringer("to", to))

	if from == prompt.EchoingComposerSentCommand && to != prompt.RunningCommand {
		s.probe.Cancel()
	}
	switch {
	case to == prompt.RunningCommand:
		c := s.screen.CursorCoord()
		s.inCommand = true
		s.updateCommandRange(CommandRange{Start: c, End: c})
	case from == prompt.RunningCommand:
		s.inCommand = false
		s.updateCommandRange(CommandRange{Start: s.current.Start, End: s.screen.CursorCoord()})
	}
	s.AddJoinedSideEffect(promptEffect{from: from, to: to})
}

func (s *State) updateCommandRange(r CommandRange) {
	s.current = r
	if s.commandRange.Set(r) {
		s.AddJoinedSideEffect(commandRangeEffect{joiner: s.commandRange})
	}
}

// InsertEntry adds a mark or annotation on the visible screen. owner, if
// not uuid.Nil, restricts notifications to the observer with that ID.
func (s *State) InsertEntry(kind intervaltree.Kind, iv intervaltree.Interval, label string, owner uuid.UUID) intervaltree.Entry {
	e := intervaltree.Entry{
		ID:       uuid.New(),
		Kind:     kind,
		Interval: iv,
		Label:    label,
		Owner:    owner,
	}
	s.marks.Insert(e)
	s.notifyMark(markAdded, e)
	return e
}

// MoveEntry changes the interval of an entry.
func (s *State) MoveEntry(id uuid.UUID, iv intervaltree.Interval) bool {
	e, ok := s.marks.Move(id, iv)
	if ok {
		s.notifyMark(markMoved, e)
	}
	return ok
}

// RemoveEntry deletes an entry.
func (s *State) RemoveEntry(id uuid.UUID) bool {
	e, ok := s.marks.Remove(id)
	if ok {
		s.notifyMark(markRemoved, e)
	}
	return ok
}

// Entry returns an entry from the write side, including unpublished edits.
func (s *State) Entry(id uuid.UUID) (intervaltree.Entry, bool) {
	return s.marks.Get(id)
}

// AddMark marks absolute line y.
func (s *State) AddMark(y int64, label string) uuid.UUID {
	return s.InsertEntry(intervaltree.KindMark, lineInterval(y, 0, -1), label, uuid.Nil).ID
}

// Highlight annotates columns [startX, endX) of absolute line y. The span
// is clipped to the screen width.
func (s *State) Highlight(y int64, startX, endX int, label string) uuid.UUID {
	w := s.screen.Width()
	startX = min(max(startX, 0), w-1)
	endX = min(max(endX, startX+1), w)
	return s.InsertEntry(intervaltree.KindAnnotation, lineInterval(y, startX, endX), label, uuid.Nil).ID
}

// lineInterval covers [startX, endX) on line y, or the whole line when endX
// is negative.
func lineInterval(y int64, startX, endX int) intervaltree.Interval {
	start := terminal.GridCoord{X: startX, AbsY: y}.Linear()
	if endX < 0 {
		return intervaltree.Interval{Start: start, End: terminal.GridCoord{AbsY: y + 1}.Linear()}
	}
	return intervaltree.Interval{Start: start, End: terminal.GridCoord{X: endX, AbsY: y}.Linear()}
}

func (s *State) notifyMark(change markChange, e intervaltree.Entry) {
	if s.c.observers.empty() {
		return
	}
	s.AddNoDelegateSideEffect(markEffect{change: change, entry: e, observers: s.c.observers})
}

// pruneHistory removes entries on lines that fell off the end of history.
func (s *State) pruneHistory() {
	if s.screen.Alternate() {
		return
	}
	h := s.screen.History()
	if h.Dropped() == s.historyDropped {
		return
	}
	s.historyDropped = h.Dropped()
	cutoff := terminal.GridCoord{AbsY: s.screen.FirstLine() - int64(h.Len())}.Linear()
	for _, e := range s.marks.Overlapping(intervaltree.Interval{Start: 0, End: cutoff}) {
		if e.Interval.End <= cutoff {
			s.RemoveEntry(e.ID)
		}
	}
}

// commit ends a batch: queue the refresh, publish the trees, then make the
// batch's side effects visible.
func (s *State) commit() {
	if s.screen.TakeLineFeeds() > 0 {
		s.lineFeed = true
	}
	s.pruneHistory()
	if s.screen.TakeDirty() || s.lineFeed {
		s.AddDeferredSideEffect(refreshEffect{frame: s.screen.Frame(s.colors)})
	}
	s.marks.Publish()
	s.saved.Publish()
	s.c.queue.Commit()
	s.lineFeed = false
}
