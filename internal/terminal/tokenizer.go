package terminal

import (
	"strconv"
	"strings"
)

// Tokenizer turns a byte stream into tokens. Sequences split across Feed
// calls are carried over. A Tokenizer is not safe for concurrent use.
type Tokenizer struct {
	state   tokState
	params  []int
	private byte
	inter   []byte
	osc     []byte

	text strings.Builder

	utf8Buf   [4]byte
	utf8Len   int
	utf8Count int

	out []Token
}

type tokState int

const (
	stGround tokState = iota
	stEscape
	stEscapeInter
	stCSI
	stCSIParam
	stCSIInter
	stOSC
	stOSCEscape
	stDCS
)

// maxOSC bounds OSC payloads. Longer payloads are truncated.
const maxOSC = 64 * 1024

// NewTokenizer returns a tokenizer in the ground state.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{
		params: make([]int, 0, 16),
		inter:  make([]byte, 0, 4),
		osc:    make([]byte, 0, 256),
	}
}

// Feed tokenizes data and returns the complete tokens it produced. Text at
// the end of data is flushed as a token; an unfinished escape sequence or
// UTF-8 sequence waits for the next call.
func (t *Tokenizer) Feed(data []byte) []Token {
	t.out = nil
	for _, b := range data {
		t.step(b)
	}
	t.flushText()
	return t.out
}

// FeedString is Feed for a string.
func (t *Tokenizer) FeedString(s string) []Token {
	return t.Feed([]byte(s))
}

func (t *Tokenizer) emit(tok Token) {
	t.flushText()
	t.out = append(t.out, tok)
}

func (t *Tokenizer) flushText() {
	if t.text.Len() == 0 {
		return
	}
	t.out = append(t.out, TextToken(t.text.String()))
	t.text.Reset()
}

func (t *Tokenizer) step(b byte) {
	switch t.state {
	case stGround:
		t.ground(b)
	case stEscape:
		t.escape(b)
	case stEscapeInter:
		t.escapeInter(b)
	case stCSI:
		t.csi(b)
	case stCSIParam:
		t.csiParam(b)
	case stCSIInter:
		t.csiInter(b)
	case stOSC:
		t.oscByte(b)
	case stOSCEscape:
		t.oscEscape(b)
	case stDCS:
		t.dcs(b)
	}
}

func (t *Tokenizer) ground(b byte) {
	if t.utf8Len > 0 {
		t.utf8Continuation(b)
		return
	}

	switch {
	case b == 0x1B:
		t.enterEscape()
	case b < 0x20:
		switch b {
		case BEL, BS, HT, LF, VT, FF, CR:
			t.emit(ControlToken(b))
		}
	case b < 0x7F:
		t.text.WriteByte(b)
	case b >= 0xC0 && b < 0xE0:
		t.startUTF8(b, 2)
	case b >= 0xE0 && b < 0xF0:
		t.startUTF8(b, 3)
	case b >= 0xF0 && b < 0xF8:
		t.startUTF8(b, 4)
	case b >= 0x80 && b < 0xC0:
		t.text.WriteRune('�')
	}
}

func (t *Tokenizer) startUTF8(b byte, n int) {
	t.utf8Buf[0] = b
	t.utf8Len = n
	t.utf8Count = 1
}

func (t *Tokenizer) utf8Continuation(b byte) {
	if b < 0x80 || b >= 0xC0 {
		t.utf8Len, t.utf8Count = 0, 0
		t.text.WriteRune('�')
		t.ground(b)
		return
	}
	t.utf8Buf[t.utf8Count] = b
	t.utf8Count++
	if t.utf8Count == t.utf8Len {
		t.text.WriteRune(t.decodeUTF8())
		t.utf8Len, t.utf8Count = 0, 0
	}
}

func (t *Tokenizer) decodeUTF8() rune {
	b := t.utf8Buf
	switch t.utf8Len {
	case 2:
		r := rune(b[0]&0x1F)<<6 | rune(b[1]&0x3F)
		if r < 0x80 {
			return '�'
		}
		return r
	case 3:
		r := rune(b[0]&0x0F)<<12 | rune(b[1]&0x3F)<<6 | rune(b[2]&0x3F)
		if r < 0x800 || (r >= 0xD800 && r <= 0xDFFF) {
			return '�'
		}
		return r
	case 4:
		r := rune(b[0]&0x07)<<18 | rune(b[1]&0x3F)<<12 | rune(b[2]&0x3F)<<6 | rune(b[3]&0x3F)
		if r < 0x10000 || r > 0x10FFFF {
			return '�'
		}
		return r
	}
	return '�'
}

func (t *Tokenizer) escape(b byte) {
	switch {
	case b == '[':
		t.state = stCSI
	case b == ']':
		t.state = stOSC
		t.osc = t.osc[:0]
	case b == 'P':
		t.state = stDCS
	case b == '\\':
		// Stray ST.
		t.state = stGround
	case b >= 0x20 && b <= 0x2F:
		t.inter = append(t.inter, b)
		t.state = stEscapeInter
	case b >= 0x30 && b <= 0x7E:
		t.emit(Token{Type: TokenESC, Final: b})
		t.state = stGround
	default:
		t.state = stGround
	}
}

func (t *Tokenizer) escapeInter(b byte) {
	switch {
	case b >= 0x20 && b <= 0x2F:
		t.inter = append(t.inter, b)
	case b >= 0x30 && b <= 0x7E:
		t.emit(Token{Type: TokenESC, Final: b, Inter: string(t.inter)})
		t.state = stGround
	default:
		t.state = stGround
	}
}

func (t *Tokenizer) csi(b byte) {
	switch {
	case b >= '0' && b <= '9':
		t.params = append(t.params, int(b-'0'))
		t.state = stCSIParam
	case b == ';':
		t.params = append(t.params, 0, 0)
		t.state = stCSIParam
	case b == '?', b == '>', b == '!', b == '=':
		t.private = b
	case b >= 0x20 && b <= 0x2F:
		t.inter = append(t.inter, b)
		t.state = stCSIInter
	case b >= 0x40 && b <= 0x7E:
		t.emitCSI(b)
	default:
		t.state = stGround
	}
}

func (t *Tokenizer) csiParam(b byte) {
	switch {
	case b >= '0' && b <= '9':
		last := len(t.params) - 1
		if t.params[last] < 1<<20 {
			t.params[last] = t.params[last]*10 + int(b-'0')
		}
	case b == ';', b == ':':
		t.params = append(t.params, 0)
	case b >= 0x20 && b <= 0x2F:
		t.inter = append(t.inter, b)
		t.state = stCSIInter
	case b >= 0x40 && b <= 0x7E:
		t.emitCSI(b)
	default:
		t.state = stGround
	}
}

func (t *Tokenizer) csiInter(b byte) {
	switch {
	case b >= 0x20 && b <= 0x2F:
		t.inter = append(t.inter, b)
	case b >= 0x40 && b <= 0x7E:
		t.emitCSI(b)
	default:
		t.state = stGround
	}
}

func (t *Tokenizer) emitCSI(final byte) {
	var params []int
	if len(t.params) > 0 {
		params = append([]int(nil), t.params...)
	}
	t.emit(Token{
		Type:    TokenCSI,
		Final:   final,
		Params:  params,
		Private: t.private,
		Inter:   string(t.inter),
	})
	t.state = stGround
}

func (t *Tokenizer) oscByte(b byte) {
	switch b {
	case BEL:
		t.emitOSC()
		t.state = stGround
	case 0x1B:
		t.state = stOSCEscape
	default:
		if len(t.osc) < maxOSC {
			t.osc = append(t.osc, b)
		}
	}
}

func (t *Tokenizer) oscEscape(b byte) {
	t.emitOSC()
	if b == '\\' {
		t.state = stGround
		return
	}
	// Not ST: the ESC starts a new sequence.
	t.enterEscape()
	t.escape(b)
}

func (t *Tokenizer) enterEscape() {
	t.state = stEscape
	t.params = t.params[:0]
	t.inter = t.inter[:0]
	t.private = 0
}

func (t *Tokenizer) emitOSC() {
	data := string(t.osc)
	cmd, rest, _ := strings.Cut(data, ";")
	n, err := strconv.Atoi(cmd)
	if err != nil {
		t.emit(Token{Type: TokenOSC, OSC: -1, Data: data})
		return
	}
	t.emit(Token{Type: TokenOSC, OSC: n, Data: rest})
}

// DCS payloads are discarded up to the terminating ESC.
func (t *Tokenizer) dcs(b byte) {
	if b == 0x1B {
		t.enterEscape()
	}
}
