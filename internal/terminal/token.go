package terminal

import (
	"strconv"
	"strings"
)

// TokenType classifies a token.
type TokenType int

const (
	// TokenText is a run of printable characters.
	TokenText TokenType = iota

	// TokenControl is a C0 control byte such as LF, CR or BEL.
	TokenControl

	// TokenCSI is a control sequence (ESC [ ... final).
	TokenCSI

	// TokenOSC is an operating system command (ESC ] ... BEL/ST).
	TokenOSC

	// TokenESC is a two-byte or intermediate escape sequence.
	TokenESC
)

// String returns the type name.
func (t TokenType) String() string {
	switch t {
	case TokenText:
		return "text"
	case TokenControl:
		return "control"
	case TokenCSI:
		return "csi"
	case TokenOSC:
		return "osc"
	case TokenESC:
		return "esc"
	default:
		return "unknown"
	}
}

// C0 control bytes.
const (
	BEL byte = 0x07
	BS  byte = 0x08
	HT  byte = 0x09
	LF  byte = 0x0A
	VT  byte = 0x0B
	FF  byte = 0x0C
	CR  byte = 0x0D
)

// Token is one parsed unit of terminal output.
type Token struct {
	Type TokenType

	// Text holds printable characters for TokenText.
	Text string

	// Control is the byte for TokenControl.
	Control byte

	// Final, Params, Private and Inter describe CSI and ESC sequences.
	// Private is the leading '?', '>' or '!' of a CSI, or zero.
	Final   byte
	Params  []int
	Private byte
	Inter   string

	// OSC is the numeric command of TokenOSC, or -1 when it is not a number.
	// Data is everything after the first ';'.
	OSC  int
	Data string
}

// Param returns parameter i, or def if it is absent or zero.
func (t Token) Param(i, def int) int {
	if i < len(t.Params) && t.Params[i] > 0 {
		return t.Params[i]
	}
	return def
}

// String formats the token for logs and test failures.
func (t Token) String() string {
	switch t.Type {
	case TokenText:
		return strconv.Quote(t.Text)
	case TokenControl:
		return "C0(" + strconv.Itoa(int(t.Control)) + ")"
	case TokenCSI:
		var b strings.Builder
		b.WriteString("CSI ")
		if t.Private != 0 {
			b.WriteByte(t.Private)
		}
		for i, p := range t.Params {
			if i > 0 {
				b.WriteByte(';')
			}
			b.WriteString(strconv.Itoa(p))
		}
		b.WriteString(t.Inter)
		b.WriteByte(t.Final)
		return b.String()
	case TokenOSC:
		return "OSC " + strconv.Itoa(t.OSC) + ";" + t.Data
	case TokenESC:
		return "ESC " + t.Inter + string(t.Final)
	default:
		return "?"
	}
}

// TextToken returns a text token.
func TextToken(s string) Token {
	return Token{Type: TokenText, Text: s}
}

// ControlToken returns a C0 control token.
func ControlToken(b byte) Token {
	return Token{Type: TokenControl, Control: b}
}

// CSIToken returns a CSI token.
func CSIToken(final byte, params ...int) Token {
	return Token{Type: TokenCSI, Final: final, Params: params}
}

// PrivateCSIToken returns a CSI token with a private marker such as '?'.
func PrivateCSIToken(private, final byte, params ...int) Token {
	return Token{Type: TokenCSI, Private: private, Final: final, Params: params}
}

// OSCToken returns an OSC token.
func OSCToken(cmd int, data string) Token {
	return Token{Type: TokenOSC, OSC: cmd, Data: data}
}

// ESCToken returns an escape sequence token.
func ESCToken(final byte) Token {
	return Token{Type: TokenESC, Final: final}
}
