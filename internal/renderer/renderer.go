package renderer

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/vtstate/internal/mutation"
	"github.com/dshills/vtstate/internal/mutation/intervaltree"
	"github.com/dshills/vtstate/internal/mutation/prompt"
	"github.com/dshills/vtstate/internal/mutation/sideeffect"
	"github.com/dshills/vtstate/internal/terminal"
)

// GutterWidth is the number of columns left of the grid reserved for marks.
const GutterWidth = 2

const (
	markGlyph       = '▸'
	annotationGlyph = '•'
)

// Renderer draws frames and session state on a tcell screen.
type Renderer struct {
	mu     sync.Mutex
	screen tcell.Screen
	shell  io.Writer
	log    *zap.Logger
	home   string

	frame      *terminal.Frame
	title      string
	cwd        string
	state      prompt.State
	command    mutation.CommandRange
	hasCommand bool
	marks      map[uuid.UUID]intervaltree.Entry

	alert   string
	unpause *sideeffect.Unpauser
	bells   int
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.log = l
		}
	}
}

// WithShell sets where WriteToShell sends data, normally the PTY.
func WithShell(w io.Writer) Option {
	return func(r *Renderer) {
		r.shell = w
	}
}

// WithHome abbreviates this directory to ~ on the status line.
func WithHome(dir string) Option {
	return func(r *Renderer) {
		r.home = dir
	}
}

// New creates a renderer on an initialized screen.
func New(screen tcell.Screen, opts ...Option) *Renderer {
	r := &Renderer{
		screen: screen,
		shell:  io.Discard,
		log:    zap.NewNop(),
		marks:  make(map[uuid.UUID]intervaltree.Entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GridSize returns the grid size that fits the screen.
func (r *Renderer) GridSize() (cols, rows int) {
	w, h := r.screen.Size()
	return max(w-GutterWidth, 1), max(h-1, 1)
}

// Refresh implements mutation.Delegate.
func (r *Renderer) Refresh(f *terminal.Frame, _ sideeffect.Flags) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frame = f
	r.draw()
}

// SetTitle implements mutation.Delegate.
func (r *Renderer) SetTitle(title string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.title = title
	r.screen.SetTitle(title)
	r.draw()
}

// SetWorkingDirectory implements mutation.Delegate.
func (r *Renderer) SetWorkingDirectory(dir string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cwd = dir
	r.draw()
}

// PromptStateChanged implements mutation.Delegate.
func (r *Renderer) PromptStateChanged(from, to prompt.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.Debug("prompt state", zap.Stringer("from", from), zap.Stringer("to", to))
	r.state = to
	r.draw()
}

// CommandRangeChanged implements mutation.Delegate.
func (r *Renderer) CommandRangeChanged(cr mutation.CommandRange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.command = cr
	r.hasCommand = true
	r.draw()
}

// WriteToShell implements mutation.Delegate.
func (r *Renderer) WriteToShell(data []byte) {
	if _, err := r.shell.Write(data); err != nil {
		r.log.Warn("write to shell failed", zap.Int("bytes", len(data)), zap.Error(err))
	}
}

// Bell implements mutation.Delegate.
func (r *Renderer) Bell() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bells++
	if err := r.screen.Beep(); err != nil {
		r.log.Debug("beep failed", zap.Error(err))
	}
}

// Alert implements mutation.Delegate. Effects stay paused until the alert
// is dismissed.
func (r *Renderer) Alert(message string, u *sideeffect.Unpauser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unpause != nil {
		// Only one paused effect is delivered at a time; release a stale one.
		r.unpause.Unpause()
	}
	r.alert = message
	r.unpause = u
	r.draw()
}

// Alerting reports whether an alert is showing.
func (r *Renderer) Alerting() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unpause != nil
}

// Dismiss hides the alert and resumes effect delivery. It reports whether
// an alert was showing.
func (r *Renderer) Dismiss() bool {
	r.mu.Lock()
	u := r.unpause
	r.alert, r.unpause = "", nil
	if u != nil {
		r.draw()
	}
	r.mu.Unlock()

	if u == nil {
		return false
	}
	u.Unpause()
	return true
}

// MarkAdded implements mutation.MarkObserver.
func (r *Renderer) MarkAdded(e intervaltree.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marks[e.ID] = e
	r.draw()
}

// MarkMoved implements mutation.MarkObserver.
func (r *Renderer) MarkMoved(e intervaltree.Entry) {
	r.MarkAdded(e)
}

// MarkRemoved implements mutation.MarkObserver.
func (r *Renderer) MarkRemoved(e intervaltree.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.marks, e.ID)
	r.draw()
}

// Bells returns how many bells rang.
func (r *Renderer) Bells() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bells
}

// Redraw repaints everything, for example after a resize.
func (r *Renderer) Redraw() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.screen.Sync()
	r.draw()
}

// draw repaints the screen. Callers hold r.mu.
func (r *Renderer) draw() {
	r.screen.Clear()
	_, height := r.screen.Size()

	if f := r.frame; f != nil {
		r.drawGrid(f, height-1)
		r.drawMarks(f, height-1)
		if f.CursorVisible && r.unpause == nil {
			r.screen.ShowCursor(f.CursorX+GutterWidth, f.CursorY)
		} else {
			r.screen.HideCursor()
		}
	}
	r.drawStatus(height - 1)
	r.screen.Show()
}

func (r *Renderer) drawGrid(f *terminal.Frame, rows int) {
	for y := 0; y < len(f.Rows) && y < rows; y++ {
		for x, c := range f.Rows[y] {
			ch := c.Rune
			if ch == 0 || c.Style.Attrs.Has(terminal.AttrHidden) {
				ch = ' '
			}
			r.screen.SetContent(x+GutterWidth, y, ch, nil, convertStyle(c.Style))
		}
	}
}

// drawMarks puts mark glyphs in the gutter and underlines annotated cells
// that are on screen.
func (r *Renderer) drawMarks(f *terminal.Frame, rows int) {
	for _, e := range r.sortedMarks() {
		start := terminal.CoordFromLinear(e.Interval.Start)
		y := int(start.AbsY - f.FirstLine)
		if y < 0 || y >= rows || y >= len(f.Rows) {
			continue
		}
		if e.Kind == intervaltree.KindMark {
			r.screen.SetContent(0, y, markGlyph, nil, gutterStyle)
			continue
		}

		r.screen.SetContent(0, y, annotationGlyph, nil, gutterStyle)
		end := terminal.CoordFromLinear(e.Interval.End)
		endX := len(f.Rows[y])
		if end.AbsY == start.AbsY {
			endX = min(end.X, endX)
		}
		for x := start.X; x < endX; x++ {
			c := f.Rows[y][x]
			st := convertStyle(c.Style).Underline(true)
			r.screen.SetContent(x+GutterWidth, y, c.Rune, nil, st)
		}
	}
}

func (r *Renderer) sortedMarks() []intervaltree.Entry {
	out := make([]intervaltree.Entry, 0, len(r.marks))
	for _, e := range r.marks {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Interval.Start < out[j].Interval.Start
	})
	return out
}

func (r *Renderer) drawStatus(row int) {
	width, _ := r.screen.Size()
	style := statusStyle
	text := r.statusText()
	if r.unpause != nil {
		style = alertStyle
		text = fmt.Sprintf(" %s  [enter to dismiss]", r.alert)
	}

	x := 0
	for _, ch := range text {
		if x >= width {
			break
		}
		r.screen.SetContent(x, row, ch, nil, style)
		x++
	}
	for ; x < width; x++ {
		r.screen.SetContent(x, row, ' ', nil, style)
	}
}

// statusText is the status line: prompt state, directory, title and the
// size of the current command's output.
func (r *Renderer) statusText() string {
	text := fmt.Sprintf(" [%s]", r.state)
	if dir := r.displayDir(); dir != "" {
		text += " " + dir
	}
	if r.title != "" {
		text += " | " + r.title
	}
	if r.hasCommand {
		n := r.command.Lines()
		unit := "lines"
		if n == 1 {
			unit = "line"
		}
		text += fmt.Sprintf(" | %d %s", n, unit)
	}
	return text
}

func (r *Renderer) displayDir() string {
	if r.cwd == "" || r.home == "" {
		return r.cwd
	}
	rel, err := filepath.Rel(r.home, r.cwd)
	switch {
	case err != nil || rel == ".." || strings.HasPrefix(rel, "../"):
		return r.cwd
	case rel == ".":
		return "~"
	default:
		return "~/" + rel
	}
}

var (
	_ mutation.Delegate     = (*Renderer)(nil)
	_ mutation.MarkObserver = (*Renderer)(nil)
)
