package terminal

// Apply executes a token against the grid. It returns false for tokens the
// grid does not interpret (OSC, BEL, reports), which are left to the caller.
// Malformed tokens are ignored.
func (s *Screen) Apply(tok Token) bool {
	switch tok.Type {
	case TokenText:
		s.WriteText(tok.Text)
		return true
	case TokenControl:
		return s.applyControl(tok.Control)
	case TokenCSI:
		return s.applyCSI(tok)
	case TokenESC:
		return s.applyESC(tok)
	default:
		return false
	}
}

func (s *Screen) applyControl(b byte) bool {
	switch b {
	case BS:
		s.MoveCursorRelative(-1, 0)
	case HT:
		s.Tab()
	case LF, VT, FF:
		s.LineFeed()
	case CR:
		s.CarriageReturn()
	default:
		return false
	}
	return true
}

func (s *Screen) applyESC(tok Token) bool {
	if tok.Inter != "" {
		// Charset designation.
		return true
	}
	switch tok.Final {
	case '7':
		s.SaveCursor()
	case '8':
		s.RestoreCursor()
	case 'D':
		s.index()
	case 'E':
		s.CarriageReturn()
		s.LineFeed()
	case 'M':
		s.ReverseLineFeed()
	case 'c':
		s.Reset()
	default:
		return false
	}
	return true
}

func (s *Screen) applyCSI(tok Token) bool {
	if tok.Private == '?' {
		switch tok.Final {
		case 'h':
			s.setPrivateModes(tok.Params, true)
			return true
		case 'l':
			s.setPrivateModes(tok.Params, false)
			return true
		}
		return false
	}
	if tok.Private != 0 {
		return false
	}

	n := tok.Param(0, 1)
	switch tok.Final {
	case 'A':
		s.MoveCursorRelative(0, -n)
	case 'B':
		s.MoveCursorRelative(0, n)
	case 'C':
		s.MoveCursorRelative(n, 0)
	case 'D':
		s.MoveCursorRelative(-n, 0)
	case 'E':
		s.CarriageReturn()
		s.MoveCursorRelative(0, n)
	case 'F':
		s.CarriageReturn()
		s.MoveCursorRelative(0, -n)
	case 'G', '`':
		s.cursorX = max(0, min(n-1, s.width-1))
	case 'H', 'f':
		s.MoveCursor(tok.Param(1, 1)-1, n-1)
	case 'J':
		s.EraseDisplay(tok.Param(0, 0))
	case 'K':
		s.EraseLine(tok.Param(0, 0))
	case 'L':
		s.InsertLines(n)
	case 'M':
		s.DeleteLines(n)
	case 'P':
		s.DeleteChars(n)
	case 'S':
		s.ScrollUp(n)
	case 'T':
		s.ScrollDown(n)
	case 'X':
		s.EraseChars(n)
	case '@':
		s.InsertChars(n)
	case 'd':
		s.cursorY = max(0, min(n-1, s.height-1))
	case 'm':
		s.applySGR(tok.Params)
	case 'r':
		s.SetScrollRegion(n-1, tok.Param(1, s.height)-1)
	case 's':
		s.SaveCursor()
	case 'u':
		s.RestoreCursor()
	case 'q':
		if tok.Inter != " " {
			return false
		}
		switch tok.Param(0, 0) {
		case 0, 1, 2:
			s.cursorStyle = CursorBlock
		case 3, 4:
			s.cursorStyle = CursorUnderline
		case 5, 6:
			s.cursorStyle = CursorBar
		}
	default:
		return false
	}
	return true
}

func (s *Screen) setPrivateModes(modes []int, set bool) {
	for _, mode := range modes {
		switch mode {
		case 6:
			s.originMode = set
			s.MoveCursor(0, 0)
		case 7:
			s.autoWrap = set
		case 25:
			s.cursorVisible = set
			s.dirty = true
		case 47, 1047:
			s.SetAlternate(set, false)
		case 1049:
			s.SetAlternate(set, true)
		}
	}
}

var sgrAttrs = map[int]Attributes{
	1: AttrBold, 2: AttrDim, 3: AttrItalic, 4: AttrUnderline,
	5: AttrBlink, 7: AttrReverse, 8: AttrHidden, 9: AttrStrike,
	21: AttrUnderline,
}

var sgrClears = map[int]Attributes{
	22: AttrBold | AttrDim, 23: AttrItalic, 24: AttrUnderline,
	25: AttrBlink, 27: AttrReverse, 28: AttrHidden, 29: AttrStrike,
}

func (s *Screen) applySGR(params []int) {
	if len(params) == 0 {
		s.pen = DefaultStyle
		return
	}
	for i := 0; i < len(params); i++ {
		p := params[i]
		switch {
		case p == 0:
			s.pen = DefaultStyle
		case sgrAttrs[p] != 0:
			s.pen.Attrs |= sgrAttrs[p]
		case sgrClears[p] != 0:
			s.pen.Attrs &^= sgrClears[p]
		case p >= 30 && p <= 37:
			s.pen.Fg = ColorFromIndex(p - 30)
		case p == 38:
			i = extendedColor(params, i, &s.pen.Fg)
		case p == 39:
			s.pen.Fg = DefaultColor
		case p >= 40 && p <= 47:
			s.pen.Bg = ColorFromIndex(p - 40)
		case p == 48:
			i = extendedColor(params, i, &s.pen.Bg)
		case p == 49:
			s.pen.Bg = DefaultColor
		case p >= 90 && p <= 97:
			s.pen.Fg = ColorFromIndex(p - 90 + 8)
		case p >= 100 && p <= 107:
			s.pen.Bg = ColorFromIndex(p - 100 + 8)
		}
	}
}

// extendedColor parses 38/48 ;5;n and ;2;r;g;b and returns the index of the
// last consumed parameter.
func extendedColor(params []int, i int, dst *Color) int {
	if i+1 >= len(params) {
		return i
	}
	switch params[i+1] {
	case 5:
		if i+2 < len(params) {
			*dst = ColorFromIndex(max(0, min(params[i+2], 255)))
			return i + 2
		}
	case 2:
		if i+4 < len(params) {
			*dst = ColorFromRGB(clampByte(params[i+2]), clampByte(params[i+3]), clampByte(params[i+4]))
			return i + 4
		}
	}
	return i
}

func clampByte(v int) uint8 {
	return uint8(max(0, min(v, 255)))
}
