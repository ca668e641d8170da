package terminal

// Frame is an immutable copy of the visible grid handed to the consumer.
type Frame struct {
	Width  int
	Height int
	Rows   [][]Cell

	CursorX       int
	CursorY       int
	CursorVisible bool
	CursorStyle   CursorStyle

	// FirstLine is the absolute line number of Rows[0].
	FirstLine int64
	Alternate bool

	Foreground Color
	Background Color
}

// Frame copies the visible grid. Cell colors are resolved through colors
// when it is not nil.
func (s *Screen) Frame(colors *ColorMap) *Frame {
	f := &Frame{
		Width:         s.width,
		Height:        s.height,
		Rows:          make([][]Cell, s.height),
		CursorX:       min(s.cursorX, s.width-1),
		CursorY:       s.cursorY,
		CursorVisible: s.cursorVisible,
		CursorStyle:   s.cursorStyle,
		FirstLine:     s.scrolled,
		Alternate:     s.alternate,
		Foreground:    DefaultColor,
		Background:    DefaultColor,
	}
	if colors != nil {
		f.Foreground = colors.Foreground()
		f.Background = colors.Background()
	}
	for y, l := range s.lines {
		row := make([]Cell, len(l.Cells))
		copy(row, l.Cells)
		if colors != nil {
			for x := range row {
				row[x].Style.Fg = colors.Resolve(row[x].Style.Fg, true)
				row[x].Style.Bg = colors.Resolve(row[x].Style.Bg, false)
			}
		}
		f.Rows[y] = row
	}
	return f
}

// Text returns row y's text with trailing blanks trimmed.
func (f *Frame) Text(y int) string {
	if y < 0 || y >= len(f.Rows) {
		return ""
	}
	return (&Line{Cells: f.Rows[y]}).Text()
}
