package terminal

import "strings"

// CursorStyle is the cursor shape.
type CursorStyle int

const (
	CursorBlock CursorStyle = iota
	CursorUnderline
	CursorBar
)

// GridCoord is a position on the grid. AbsY counts lines from the start of
// the session, so a coordinate stays valid as lines scroll into history.
type GridCoord struct {
	X    int
	AbsY int64
}

// Linear packs c into a single ordered value.
func (c GridCoord) Linear() int64 {
	return c.AbsY<<16 | int64(c.X&0xFFFF)
}

// CoordFromLinear reverses Linear.
func CoordFromLinear(v int64) GridCoord {
	return GridCoord{X: int(v & 0xFFFF), AbsY: v >> 16}
}

type savedCursor struct {
	x, y  int
	style Style
}

// Screen is the character grid. It is owned by the mutation path and is not
// safe for concurrent use; readers take a Frame.
type Screen struct {
	width  int
	height int
	lines  []*Line

	history *History
	// scrolled counts lines that have left the top of the primary screen.
	scrolled int64

	primary   []*Line
	alternate bool
	altSaved  savedCursor

	cursorX       int
	cursorY       int
	cursorVisible bool
	cursorStyle   CursorStyle

	scrollTop    int
	scrollBottom int

	pen   Style
	saved savedCursor

	originMode bool
	autoWrap   bool

	dirty     bool
	lineFeeds int
}

// NewScreen creates a blank screen. Non-positive sizes fall back to 80x24.
func NewScreen(width, height, scrollback int) *Screen {
	if width < 1 {
		width = 80
	}
	if height < 1 {
		height = 24
	}
	s := &Screen{
		width:   width,
		height:  height,
		history: NewHistory(scrollback),
	}
	s.lines = blankLines(width, height)
	s.reset()
	return s
}

func blankLines(width, height int) []*Line {
	lines := make([]*Line, height)
	for i := range lines {
		lines[i] = NewLine(width)
	}
	return lines
}

func (s *Screen) reset() {
	s.cursorX, s.cursorY = 0, 0
	s.cursorVisible = true
	s.cursorStyle = CursorBlock
	s.scrollTop, s.scrollBottom = 0, s.height-1
	s.pen = DefaultStyle
	s.saved = savedCursor{style: DefaultStyle}
	s.originMode = false
	s.autoWrap = true
	s.dirty = true
}

// Width returns the number of columns.
func (s *Screen) Width() int { return s.width }

// Height returns the number of rows.
func (s *Screen) Height() int { return s.height }

// History returns the scrollback.
func (s *Screen) History() *History { return s.history }

// Alternate reports whether the alternate screen is active.
func (s *Screen) Alternate() bool { return s.alternate }

// Cursor returns the cursor position on the visible grid.
func (s *Screen) Cursor() (x, y int) { return s.cursorX, s.cursorY }

// CursorCoord returns the cursor as an absolute coordinate.
func (s *Screen) CursorCoord() GridCoord {
	return GridCoord{X: s.cursorX, AbsY: s.scrolled + int64(s.cursorY)}
}

// FirstLine returns the absolute line number of row 0.
func (s *Screen) FirstLine() int64 { return s.scrolled }

// Cell returns the cell at x, y, or a blank cell when out of range.
func (s *Screen) Cell(x, y int) Cell {
	if x < 0 || x >= s.width || y < 0 || y >= s.height {
		return BlankCell
	}
	return s.lines[y].Cells[x]
}

// LineText returns row y's text with trailing blanks trimmed.
func (s *Screen) LineText(y int) string {
	if y < 0 || y >= s.height {
		return ""
	}
	return s.lines[y].Text()
}

// Text returns the visible grid as text, one row per line.
func (s *Screen) Text() string {
	rows := make([]string, s.height)
	for y := range rows {
		rows[y] = s.lines[y].Text()
	}
	return strings.TrimRight(strings.Join(rows, "\n"), "\n")
}

// TakeDirty reports whether the grid changed since the last call.
func (s *Screen) TakeDirty() bool {
	d := s.dirty
	s.dirty = false
	return d
}

// Touch marks the screen as changed.
func (s *Screen) Touch() { s.dirty = true }

// TakeLineFeeds returns the number of line feeds since the last call.
func (s *Screen) TakeLineFeeds() int {
	n := s.lineFeeds
	s.lineFeeds = 0
	return n
}

// WriteText writes printable text at the cursor.
func (s *Screen) WriteText(text string) {
	for _, r := range text {
		s.writeRune(r)
	}
}

func (s *Screen) writeRune(r rune) {
	if s.cursorX >= s.width {
		if s.autoWrap {
			s.lines[s.cursorY].Wrapped = true
			s.cursorX = 0
			s.index()
		} else {
			s.cursorX = s.width - 1
		}
	}
	s.lines[s.cursorY].Cells[s.cursorX] = Cell{Rune: r, Style: s.pen}
	s.cursorX++
	s.dirty = true
}

// MoveCursor moves to x, y, clamped and honoring origin mode.
func (s *Screen) MoveCursor(x, y int) {
	x = max(0, min(x, s.width-1))
	top, bottom := 0, s.height-1
	if s.originMode {
		top, bottom = s.scrollTop, s.scrollBottom
		y += top
	}
	s.cursorX = x
	s.cursorY = max(top, min(y, bottom))
}

// MoveCursorRelative moves by dx, dy.
func (s *Screen) MoveCursorRelative(dx, dy int) {
	y := s.cursorY + dy
	if s.originMode {
		y -= s.scrollTop
	}
	s.MoveCursor(s.cursorX+dx, y)
}

// CarriageReturn moves to column 0.
func (s *Screen) CarriageReturn() {
	s.cursorX = 0
}

// LineFeed moves down a line, scrolling at the bottom of the region.
func (s *Screen) LineFeed() {
	s.index()
	s.lineFeeds++
}

func (s *Screen) index() {
	if s.cursorY == s.scrollBottom {
		s.ScrollUp(1)
	} else if s.cursorY < s.height-1 {
		s.cursorY++
	}
}

// ReverseLineFeed moves up a line, scrolling at the top of the region.
func (s *Screen) ReverseLineFeed() {
	if s.cursorY == s.scrollTop {
		s.ScrollDown(1)
	} else if s.cursorY > 0 {
		s.cursorY--
	}
}

// ScrollUp scrolls the region up n lines. On the primary screen with a
// full-height region the departing lines enter the history.
func (s *Screen) ScrollUp(n int) {
	top, bottom := s.scrollTop, s.scrollBottom
	n = min(n, bottom-top+1)
	if n <= 0 {
		return
	}
	if top == 0 && !s.alternate {
		for y := 0; y < n; y++ {
			s.history.Add(s.lines[y])
		}
		s.scrolled += int64(n)
	}
	copy(s.lines[top:], s.lines[top+n:bottom+1])
	for y := bottom - n + 1; y <= bottom; y++ {
		s.lines[y] = NewLine(s.width)
	}
	s.dirty = true
}

// ScrollDown scrolls the region down n lines.
func (s *Screen) ScrollDown(n int) {
	top, bottom := s.scrollTop, s.scrollBottom
	n = min(n, bottom-top+1)
	if n <= 0 {
		return
	}
	copy(s.lines[top+n:bottom+1], s.lines[top:bottom+1-n])
	for y := top; y < top+n; y++ {
		s.lines[y] = NewLine(s.width)
	}
	s.dirty = true
}

// SetScrollRegion sets the region to rows [top, bottom] and homes the
// cursor. Invalid regions are ignored.
func (s *Screen) SetScrollRegion(top, bottom int) {
	top = max(top, 0)
	bottom = min(bottom, s.height-1)
	if top >= bottom {
		return
	}
	s.scrollTop, s.scrollBottom = top, bottom
	s.MoveCursor(0, 0)
}

// EraseDisplay implements ED: 0 below, 1 above, 2 all, 3 all and history.
func (s *Screen) EraseDisplay(mode int) {
	switch mode {
	case 0:
		s.lines[s.cursorY].ClearRange(s.cursorX, s.width)
		for y := s.cursorY + 1; y < s.height; y++ {
			s.lines[y].Clear()
		}
	case 1:
		for y := 0; y < s.cursorY; y++ {
			s.lines[y].Clear()
		}
		s.lines[s.cursorY].ClearRange(0, s.cursorX+1)
	case 2, 3:
		for _, l := range s.lines {
			l.Clear()
		}
		if mode == 3 {
			s.history.Clear()
		}
	default:
		return
	}
	s.dirty = true
}

// EraseLine implements EL: 0 right, 1 left, 2 whole line.
func (s *Screen) EraseLine(mode int) {
	l := s.lines[s.cursorY]
	switch mode {
	case 0:
		l.ClearRange(s.cursorX, s.width)
	case 1:
		l.ClearRange(0, s.cursorX+1)
	case 2:
		l.Clear()
	default:
		return
	}
	s.dirty = true
}

// InsertLines inserts n blank lines at the cursor within the region.
func (s *Screen) InsertLines(n int) {
	if s.cursorY < s.scrollTop || s.cursorY > s.scrollBottom {
		return
	}
	top := s.scrollTop
	s.scrollTop = s.cursorY
	s.ScrollDown(n)
	s.scrollTop = top
}

// DeleteLines deletes n lines at the cursor within the region.
func (s *Screen) DeleteLines(n int) {
	if s.cursorY < s.scrollTop || s.cursorY > s.scrollBottom {
		return
	}
	top := s.scrollTop
	s.scrollTop = s.cursorY
	// Lines deleted mid-screen never enter the history.
	alt := s.alternate
	s.alternate = true
	s.ScrollUp(n)
	s.alternate = alt
	s.scrollTop = top
}

// InsertChars shifts the rest of the line right by n blanks.
func (s *Screen) InsertChars(n int) {
	if n <= 0 || s.cursorX >= s.width {
		return
	}
	n = min(n, s.width-s.cursorX)
	cells := s.lines[s.cursorY].Cells
	copy(cells[s.cursorX+n:], cells[s.cursorX:s.width-n])
	for x := s.cursorX; x < s.cursorX+n; x++ {
		cells[x] = BlankCell
	}
	s.dirty = true
}

// DeleteChars removes n characters at the cursor, shifting left.
func (s *Screen) DeleteChars(n int) {
	if n <= 0 || s.cursorX >= s.width {
		return
	}
	n = min(n, s.width-s.cursorX)
	cells := s.lines[s.cursorY].Cells
	copy(cells[s.cursorX:], cells[s.cursorX+n:])
	for x := s.width - n; x < s.width; x++ {
		cells[x] = BlankCell
	}
	s.dirty = true
}

// EraseChars blanks n characters at the cursor.
func (s *Screen) EraseChars(n int) {
	s.lines[s.cursorY].ClearRange(s.cursorX, s.cursorX+n)
	s.dirty = true
}

// Tab moves to the next multiple of eight columns.
func (s *Screen) Tab() {
	s.cursorX = min((s.cursorX/8+1)*8, s.width-1)
}

// SaveCursor saves the position and pen.
func (s *Screen) SaveCursor() {
	s.saved = savedCursor{x: s.cursorX, y: s.cursorY, style: s.pen}
}

// RestoreCursor restores the saved position and pen.
func (s *Screen) RestoreCursor() {
	s.cursorX = min(s.saved.x, s.width-1)
	s.cursorY = min(s.saved.y, s.height-1)
	s.pen = s.saved.style
}

// SetAlternate switches between the primary and alternate screens. With
// saveCursor the cursor is saved on entry and restored on exit. It reports
// whether the active screen changed.
func (s *Screen) SetAlternate(on, saveCursor bool) bool {
	if on == s.alternate {
		return false
	}
	if on {
		if saveCursor {
			s.altSaved = savedCursor{x: s.cursorX, y: s.cursorY, style: s.pen}
		}
		s.primary = s.lines
		s.lines = blankLines(s.width, s.height)
	} else {
		s.lines = s.primary
		s.primary = nil
		if saveCursor {
			s.cursorX = min(s.altSaved.x, s.width-1)
			s.cursorY = min(s.altSaved.y, s.height-1)
			s.pen = s.altSaved.style
		}
	}
	s.alternate = on
	s.scrollTop, s.scrollBottom = 0, s.height-1
	s.dirty = true
	return true
}

// Resize changes the grid size, keeping the top-left content.
func (s *Screen) Resize(width, height int) {
	width, height = max(width, 1), max(height, 1)
	resize := func(lines []*Line) []*Line {
		out := make([]*Line, height)
		for y := range out {
			if y < len(lines) {
				out[y] = lines[y].resized(width)
			} else {
				out[y] = NewLine(width)
			}
		}
		return out
	}
	s.lines = resize(s.lines)
	if s.primary != nil {
		s.primary = resize(s.primary)
	}
	s.width, s.height = width, height
	s.scrollTop, s.scrollBottom = 0, height-1
	s.cursorX = min(s.cursorX, width-1)
	s.cursorY = min(s.cursorY, height-1)
	s.dirty = true
}

// Reset clears the grid and restores initial modes. History is kept.
func (s *Screen) Reset() {
	if s.alternate {
		s.SetAlternate(false, false)
	}
	for _, l := range s.lines {
		l.Clear()
	}
	s.reset()
}
