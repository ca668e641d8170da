package trigger

import (
	"fmt"
	"io"
	"regexp"
	"runtime/debug"
	"sync/atomic"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/vtstate/internal/mutation/prompt"
)

// CallbackScheduler runs a function later on the mutation path.
type CallbackScheduler interface {
	Schedule(fn func())
}

// Session exposes read-only session state.
type Session interface {
	WorkingDirectory() string
	PromptState() prompt.State
}

// ScopeProvider stores user variables.
type ScopeProvider interface {
	Variable(name string) (string, bool)
	SetVariable(name, value string)
}

// Host is everything an action may do. Methods are only called on the
// mutation path.
type Host interface {
	CallbackScheduler
	Session
	ScopeProvider

	// AddMark marks absolute line y.
	AddMark(y int64, label string) uuid.UUID

	// Highlight annotates columns [startX, endX) of absolute line y.
	Highlight(y int64, startX, endX int, label string) uuid.UUID

	// Alert asks the display to notify the user.
	Alert(message string)

	// AddPostTriggerAction runs fn once every trigger for the current line
	// has been evaluated.
	AddPostTriggerAction(fn func())
}

// Line is a completed line of output.
type Line struct {
	Text string
	// Y is the absolute line number.
	Y int64
}

// Match describes one regexp match on a line.
type Match struct {
	Trigger *Trigger
	Line    Line

	// Groups holds the whole match followed by each submatch.
	Groups []string

	indices []int
}

// Expand substitutes $n and ${name} references in template.
func (m Match) Expand(template string) string {
	return string(m.Trigger.Pattern.ExpandString(nil, template, m.Line.Text, m.indices))
}

// Columns returns the cell columns spanned by group g, or false if the
// group did not participate in the match.
func (m Match) Columns(g int) (start, end int, ok bool) {
	if g < 0 || 2*g+1 >= len(m.indices) || m.indices[2*g] < 0 {
		return 0, 0, false
	}
	text := m.Line.Text
	start = utf8.RuneCountInString(text[:m.indices[2*g]])
	end = start + utf8.RuneCountInString(text[m.indices[2*g]:m.indices[2*g+1]])
	return start, end, true
}

// Action is run for each match of a trigger.
type Action interface {
	Perform(m Match, host Host) error
}

// Trigger pairs a pattern with an action.
type Trigger struct {
	Name    string
	Pattern *regexp.Regexp
	Action  Action
}

// Evaluator runs triggers against lines.
type Evaluator struct {
	triggers []*Trigger
	log      *zap.Logger

	lines   atomic.Uint64
	matches atomic.Uint64
	failed  atomic.Uint64
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEvaluator creates an evaluator for triggers, evaluated in order.
func NewEvaluator(triggers []*Trigger, opts ...Option) *Evaluator {
	e := &Evaluator{
		triggers: triggers,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.Named("trigger")
	return e
}

// Triggers returns the installed triggers.
func (e *Evaluator) Triggers() []*Trigger {
	return e.triggers
}

// Evaluate runs every trigger whose pattern matches line and returns the
// number of matches. A failing or panicking action is logged and does not
// stop the others.
func (e *Evaluator) Evaluate(line Line, host Host) int {
	e.lines.Add(1)
	n := 0
	for _, t := range e.triggers {
		idx := t.Pattern.FindStringSubmatchIndex(line.Text)
		if idx == nil {
			continue
		}
		n++
		m := Match{Trigger: t, Line: line, indices: idx, Groups: make([]string, len(idx)/2)}
		for i := range m.Groups {
			if idx[2*i] >= 0 {
				m.Groups[i] = line.Text[idx[2*i]:idx[2*i+1]]
			}
		}
		if err := e.perform(t, m, host); err != nil {
			e.failed.Add(1)
			e.log.Warn("trigger action failed",
				zap.String("trigger", t.Name),
				zap.Int64("line", line.Y),
				zap.Error(err))
		}
	}
	e.matches.Add(uint64(n))
	return n
}

func (e *Evaluator) perform(t *Trigger, m Match, host Host) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("trigger action panicked",
				zap.String("trigger", t.Name),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.Action.Perform(m, host)
}

// Close releases action resources such as Lua states.
func (e *Evaluator) Close() error {
	var first error
	for _, t := range e.triggers {
		if c, ok := t.Action.(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// Stats reports evaluation counters.
type Stats struct {
	Lines   uint64
	Matches uint64
	Failed  uint64
}

// Stats returns evaluation counters.
func (e *Evaluator) Stats() Stats {
	return Stats{
		Lines:   e.lines.Load(),
		Matches: e.matches.Load(),
		Failed:  e.failed.Load(),
	}
}
