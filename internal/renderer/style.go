package renderer

import (
	"github.com/gdamore/tcell/v2"

	"github.com/dshills/vtstate/internal/terminal"
)

// convertStyle converts a grid style to tcell.Style.
func convertStyle(s terminal.Style) tcell.Style {
	style := tcell.StyleDefault.
		Foreground(convertColor(s.Fg)).
		Background(convertColor(s.Bg))

	if s.Attrs.Has(terminal.AttrBold) {
		style = style.Bold(true)
	}
	if s.Attrs.Has(terminal.AttrDim) {
		style = style.Dim(true)
	}
	if s.Attrs.Has(terminal.AttrItalic) {
		style = style.Italic(true)
	}
	if s.Attrs.Has(terminal.AttrUnderline) {
		style = style.Underline(true)
	}
	if s.Attrs.Has(terminal.AttrBlink) {
		style = style.Blink(true)
	}
	if s.Attrs.Has(terminal.AttrReverse) {
		style = style.Reverse(true)
	}
	if s.Attrs.Has(terminal.AttrStrike) {
		style = style.StrikeThrough(true)
	}
	return style
}

// convertColor converts a resolved grid color. Frames carry palette
// overrides as RGB, so only the default color stays symbolic.
func convertColor(c terminal.Color) tcell.Color {
	if c.Default {
		return tcell.ColorDefault
	}
	return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
}

var (
	gutterStyle = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	statusStyle = tcell.StyleDefault.Reverse(true)
	alertStyle  = tcell.StyleDefault.Bold(true).Foreground(tcell.ColorWhite).Background(tcell.ColorRed)
)
