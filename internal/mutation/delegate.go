package mutation

import (
	"github.com/dshills/vtstate/internal/mutation/intervaltree"
	"github.com/dshills/vtstate/internal/mutation/prompt"
	"github.com/dshills/vtstate/internal/mutation/sideeffect"
	"github.com/dshills/vtstate/internal/terminal"
)

// Delegate is the consumer-facing capability. It is only called while
// draining side effects, from the goroutine that drains.
type Delegate interface {
	// Refresh presents a new frame. flags carries FlagLineFeed when the
	// batch scrolled, so the consumer can follow output.
	Refresh(frame *terminal.Frame, flags sideeffect.Flags)

	SetTitle(title string)
	SetWorkingDirectory(dir string)
	PromptStateChanged(from, to prompt.State)
	CommandRangeChanged(r CommandRange)

	// WriteToShell sends data to the program, for reports and composer
	// commands.
	WriteToShell(data []byte)

	Bell()

	// Alert shows message. Delivery of later effects waits until u fires.
	Alert(message string, u *sideeffect.Unpauser)
}

// MarkObserver receives mark and annotation lifecycle notifications. They
// are delivered through the side-effect queue even with no Delegate.
type MarkObserver interface {
	MarkAdded(e intervaltree.Entry)
	MarkMoved(e intervaltree.Entry)
	MarkRemoved(e intervaltree.Entry)
}

// CommandRange spans the output of the running command.
type CommandRange struct {
	Start terminal.GridCoord
	End   terminal.GridCoord
}

// Lines returns the number of lines the range covers.
func (r CommandRange) Lines() int64 {
	return r.End.AbsY - r.Start.AbsY + 1
}
