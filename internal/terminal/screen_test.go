package terminal

import "testing"

func feed(s *Screen, data string) {
	for _, tok := range NewTokenizer().FeedString(data) {
		s.Apply(tok)
	}
}

func TestScreenNewline(t *testing.T) {
	s := NewScreen(80, 24, 100)
	feed(s, "A\r\nB")

	if r := s.Cell(0, 0).Rune; r != 'A' {
		t.Errorf("expected 'A' on line 0, got %c", r)
	}
	if r := s.Cell(0, 1).Rune; r != 'B' {
		t.Errorf("expected 'B' on line 1, got %c", r)
	}
	if n := s.TakeLineFeeds(); n != 1 {
		t.Errorf("expected 1 line feed, got %d", n)
	}
	if n := s.TakeLineFeeds(); n != 0 {
		t.Errorf("line feeds not reset, got %d", n)
	}
}

func TestScreenCarriageReturnAndBackspace(t *testing.T) {
	s := NewScreen(80, 24, 100)
	feed(s, "ABC\rX")
	if got := s.LineText(0); got != "XBC" {
		t.Errorf("expected 'XBC', got %q", got)
	}

	feed(s, "\r\nAB\bC")
	if got := s.LineText(1); got != "AC" {
		t.Errorf("expected 'AC', got %q", got)
	}
}

func TestScreenTab(t *testing.T) {
	s := NewScreen(80, 24, 100)
	feed(s, "A\tB")
	if r := s.Cell(8, 0).Rune; r != 'B' {
		t.Errorf("expected 'B' at column 8, got %c", r)
	}
}

func TestScreenCursorPosition(t *testing.T) {
	s := NewScreen(80, 24, 100)
	feed(s, "\x1b[5;10H")
	if x, y := s.Cursor(); x != 9 || y != 4 {
		t.Errorf("expected (9,4), got (%d,%d)", x, y)
	}
	feed(s, "\x1b[100;100H")
	if x, y := s.Cursor(); x != 79 || y != 23 {
		t.Errorf("expected clamp to (79,23), got (%d,%d)", x, y)
	}
}

func TestScreenScrollIntoHistory(t *testing.T) {
	s := NewScreen(10, 3, 100)
	feed(s, "one\r\ntwo\r\nthree\r\nfour")

	if got := s.Text(); got != "two\nthree\nfour" {
		t.Errorf("unexpected screen %q", got)
	}
	if s.History().Len() != 1 || s.History().Line(0).Text() != "one" {
		t.Errorf("expected 'one' in history, got %q", s.History().Text())
	}
	if s.FirstLine() != 1 {
		t.Errorf("expected first line 1, got %d", s.FirstLine())
	}
	if c := s.CursorCoord(); c.AbsY != 3 || c.X != 4 {
		t.Errorf("unexpected cursor coord %+v", c)
	}
}

func TestScreenHistoryLimit(t *testing.T) {
	s := NewScreen(10, 2, 2)
	for i := 0; i < 5; i++ {
		feed(s, "x\r\n")
	}
	if s.History().Len() != 2 {
		t.Errorf("expected 2 history lines, got %d", s.History().Len())
	}
	if s.History().Dropped() != 2 {
		t.Errorf("expected 2 dropped, got %d", s.History().Dropped())
	}
	if s.FirstLine() != 4 {
		t.Errorf("absolute numbering must survive trimming, got %d", s.FirstLine())
	}
}

func TestScreenAlternate(t *testing.T) {
	s := NewScreen(10, 3, 100)
	feed(s, "main")
	feed(s, "\x1b[?1049h")

	if !s.Alternate() {
		t.Fatal("expected alternate screen")
	}
	if got := s.Text(); got != "" {
		t.Errorf("alternate screen should start blank, got %q", got)
	}
	feed(s, "\x1b[Halt\r\n\r\n\r\n")
	if s.History().Len() != 0 {
		t.Errorf("alternate screen must not feed history")
	}

	feed(s, "\x1b[?1049l")
	if got := s.LineText(0); got != "main" {
		t.Errorf("primary not restored, got %q", got)
	}
	if x, _ := s.Cursor(); x != 4 {
		t.Errorf("cursor not restored, x=%d", x)
	}
}

func TestScreenEraseAndEdit(t *testing.T) {
	s := NewScreen(10, 3, 100)
	feed(s, "abcdef\x1b[1;3H\x1b[K")
	if got := s.LineText(0); got != "ab" {
		t.Errorf("EL 0: got %q", got)
	}

	feed(s, "\x1b[1;1Habcdef\x1b[1;2H\x1b[2P")
	if got := s.LineText(0); got != "adef" {
		t.Errorf("DCH: got %q", got)
	}

	feed(s, "\x1b[2@")
	if got := s.LineText(0); got != "a  def" {
		t.Errorf("ICH: got %q", got)
	}

	feed(s, "\x1b[2J")
	if got := s.Text(); got != "" {
		t.Errorf("ED 2: got %q", got)
	}
}

func TestScreenSGR(t *testing.T) {
	s := NewScreen(10, 3, 100)
	feed(s, "\x1b[1;31mR\x1b[38;5;200mX\x1b[0mN")

	c := s.Cell(0, 0)
	if !c.Style.Attrs.Has(AttrBold) || c.Style.Fg != ColorFromIndex(1) {
		t.Errorf("unexpected style %+v", c.Style)
	}
	if s.Cell(1, 0).Style.Fg != ColorFromIndex(200) {
		t.Errorf("unexpected 256 color %+v", s.Cell(1, 0).Style.Fg)
	}
	if s.Cell(2, 0).Style != DefaultStyle {
		t.Errorf("reset failed %+v", s.Cell(2, 0).Style)
	}
}

func TestScreenAutoWrap(t *testing.T) {
	s := NewScreen(3, 3, 100)
	feed(s, "abcd")
	if got := s.LineText(1); got != "d" {
		t.Errorf("expected wrap to line 1, got %q", got)
	}
	if s.TakeLineFeeds() != 0 {
		t.Errorf("auto wrap is not a line feed")
	}
}

func TestScreenIgnoresUnknown(t *testing.T) {
	s := NewScreen(10, 3, 100)
	for _, tok := range []Token{
		OSCToken(0, "t"),
		ControlToken(BEL),
		CSIToken('n', 6),
		PrivateCSIToken('>', 'c'),
		CSIToken('H', 1<<30, -5),
	} {
		s.Apply(tok)
	}
	if x, y := s.Cursor(); x != 0 || y != 2 {
		// The oversized CUP clamps; nothing else moved the cursor.
		t.Errorf("unexpected cursor (%d,%d)", x, y)
	}
}

func TestFrameIsCopy(t *testing.T) {
	s := NewScreen(5, 2, 100)
	feed(s, "hi")

	cm := NewColorMap()
	cm.SetForeground(ColorFromRGB(1, 2, 3))
	f := s.Frame(cm)
	feed(s, "\rxx")

	if f.Text(0) != "hi" {
		t.Errorf("frame changed after write: %q", f.Text(0))
	}
	if f.Rows[0][0].Style.Fg != ColorFromRGB(1, 2, 3) {
		t.Errorf("default fg not resolved: %v", f.Rows[0][0].Style.Fg)
	}
}

func TestCoordLinear(t *testing.T) {
	c := GridCoord{X: 7, AbsY: 12345}
	if CoordFromLinear(c.Linear()) != c {
		t.Errorf("round trip failed for %+v", c)
	}
	if (GridCoord{X: 79, AbsY: 1}).Linear() >= (GridCoord{X: 0, AbsY: 2}).Linear() {
		t.Errorf("linear order must follow lines")
	}
}

func TestParseColorSpec(t *testing.T) {
	tests := []struct {
		in   string
		want Color
		ok   bool
	}{
		{"rgb:ff/00/80", ColorFromRGB(255, 0, 128), true},
		{"rgb:ffff/0000/8080", ColorFromRGB(255, 0, 128), true},
		{"#102030", ColorFromRGB(0x10, 0x20, 0x30), true},
		{"?", Color{}, false},
		{"rgb:zz/00/00", Color{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseColorSpec(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("%q: got %v,%v want %v,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
