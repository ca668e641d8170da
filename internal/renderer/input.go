package renderer

import (
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"
)

// Host receives what the user does.
type Host interface {
	// WriteInput sends keyboard input to the shell.
	WriteInput(data []byte)
	// AllowNextReport lets one device report through after user input.
	AllowNextReport()
	// Resize changes the grid size.
	Resize(cols, rows int)
}

// HandleEvent processes one tcell event. While an alert is showing, Enter
// and Escape dismiss it and other keys are ignored.
func (r *Renderer) HandleEvent(ev tcell.Event, host Host) {
	switch e := ev.(type) {
	case *tcell.EventKey:
		if r.Alerting() {
			if e.Key() == tcell.KeyEnter || e.Key() == tcell.KeyEscape {
				r.Dismiss()
			}
			return
		}
		data := keyBytes(e)
		if len(data) == 0 {
			return
		}
		host.AllowNextReport()
		host.WriteInput(data)

	case *tcell.EventResize:
		cols, rows := r.GridSize()
		host.Resize(cols, rows)
		r.Redraw()
	}
}

// keyBytes encodes a key the way an xterm sends it.
func keyBytes(e *tcell.EventKey) []byte {
	var seq string
	switch e.Key() {
	case tcell.KeyRune:
		buf := utf8.AppendRune(nil, e.Rune())
		if e.Modifiers()&tcell.ModAlt != 0 {
			buf = append([]byte{0x1b}, buf...)
		}
		return buf
	case tcell.KeyEnter:
		seq = "\r"
	case tcell.KeyTab:
		seq = "\t"
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		seq = "\x7f"
	case tcell.KeyEscape:
		seq = "\x1b"
	case tcell.KeyUp:
		seq = "\x1b[A"
	case tcell.KeyDown:
		seq = "\x1b[B"
	case tcell.KeyRight:
		seq = "\x1b[C"
	case tcell.KeyLeft:
		seq = "\x1b[D"
	case tcell.KeyHome:
		seq = "\x1b[H"
	case tcell.KeyEnd:
		seq = "\x1b[F"
	case tcell.KeyInsert:
		seq = "\x1b[2~"
	case tcell.KeyDelete:
		seq = "\x1b[3~"
	case tcell.KeyPgUp:
		seq = "\x1b[5~"
	case tcell.KeyPgDn:
		seq = "\x1b[6~"
	case tcell.KeyF1:
		seq = "\x1bOP"
	case tcell.KeyF2:
		seq = "\x1bOQ"
	case tcell.KeyF3:
		seq = "\x1bOR"
	case tcell.KeyF4:
		seq = "\x1bOS"
	case tcell.KeyF5:
		seq = "\x1b[15~"
	case tcell.KeyF6:
		seq = "\x1b[17~"
	case tcell.KeyF7:
		seq = "\x1b[18~"
	case tcell.KeyF8:
		seq = "\x1b[19~"
	case tcell.KeyF9:
		seq = "\x1b[20~"
	case tcell.KeyF10:
		seq = "\x1b[21~"
	case tcell.KeyF11:
		seq = "\x1b[23~"
	case tcell.KeyF12:
		seq = "\x1b[24~"
	default:
		// Remaining control keys carry their C0 code.
		if k := e.Key(); k >= 0 && k < 0x20 {
			return []byte{byte(k)}
		}
		return nil
	}
	return []byte(seq)
}
