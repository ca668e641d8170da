package terminal

// Attributes are SGR text attributes.
type Attributes uint16

const (
	AttrNone      Attributes = 0
	AttrBold      Attributes = 1 << 0
	AttrDim       Attributes = 1 << 1
	AttrItalic    Attributes = 1 << 2
	AttrUnderline Attributes = 1 << 3
	AttrBlink     Attributes = 1 << 4
	AttrReverse   Attributes = 1 << 5
	AttrHidden    Attributes = 1 << 6
	AttrStrike    Attributes = 1 << 7
)

// Has reports whether any of attr is set.
func (a Attributes) Has(attr Attributes) bool {
	return a&attr != 0
}

// Style is the pen used for newly written cells.
type Style struct {
	Fg    Color
	Bg    Color
	Attrs Attributes
}

// DefaultStyle uses the default colors and no attributes.
var DefaultStyle = Style{Fg: DefaultColor, Bg: DefaultColor}

// Cell is one character position on the grid.
type Cell struct {
	Rune  rune
	Style Style
}

// BlankCell is an empty cell in the default style.
var BlankCell = Cell{Rune: ' ', Style: DefaultStyle}

// Line is one row of cells.
type Line struct {
	Cells []Cell

	// Wrapped means the text continues on the next line.
	Wrapped bool
}

// NewLine returns a blank line of the given width.
func NewLine(width int) *Line {
	l := &Line{Cells: make([]Cell, width)}
	l.Clear()
	return l
}

// Clear blanks every cell.
func (l *Line) Clear() {
	l.ClearRange(0, len(l.Cells))
	l.Wrapped = false
}

// ClearRange blanks cells in [start, end).
func (l *Line) ClearRange(start, end int) {
	start = max(start, 0)
	end = min(end, len(l.Cells))
	for i := start; i < end; i++ {
		l.Cells[i] = BlankCell
	}
}

// Text returns the line's runes with trailing blanks trimmed.
func (l *Line) Text() string {
	end := len(l.Cells)
	for end > 0 && l.Cells[end-1].Rune == ' ' {
		end--
	}
	rs := make([]rune, end)
	for i := 0; i < end; i++ {
		rs[i] = l.Cells[i].Rune
	}
	return string(rs)
}

func (l *Line) clone() *Line {
	c := &Line{Cells: make([]Cell, len(l.Cells)), Wrapped: l.Wrapped}
	copy(c.Cells, l.Cells)
	return c
}

func (l *Line) resized(width int) *Line {
	n := NewLine(width)
	copy(n.Cells, l.Cells)
	n.Wrapped = l.Wrapped
	return n
}
