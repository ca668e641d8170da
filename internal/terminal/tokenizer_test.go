package terminal

import (
	"reflect"
	"testing"
)

func TestTokenizerTextRuns(t *testing.T) {
	tk := NewTokenizer()
	got := tk.FeedString("Hello\r\nWorld")

	want := []Token{
		TextToken("Hello"),
		ControlToken(CR),
		ControlToken(LF),
		TextToken("World"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestTokenizerCSI(t *testing.T) {
	tests := []struct {
		in   string
		want Token
	}{
		{"\x1b[H", CSIToken('H')},
		{"\x1b[10;20H", CSIToken('H', 10, 20)},
		{"\x1b[;5H", CSIToken('H', 0, 5)},
		{"\x1b[?1049h", PrivateCSIToken('?', 'h', 1049)},
		{"\x1b[6n", CSIToken('n', 6)},
		{"\x1b[38;2;1;2;3m", CSIToken('m', 38, 2, 1, 2, 3)},
		{"\x1b[2 q", Token{Type: TokenCSI, Final: 'q', Params: []int{2}, Inter: " "}},
	}
	for _, tt := range tests {
		got := NewTokenizer().FeedString(tt.in)
		if len(got) != 1 || !reflect.DeepEqual(got[0], tt.want) {
			t.Errorf("%q: got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTokenizerOSC(t *testing.T) {
	tests := []struct {
		in   string
		want Token
	}{
		{"\x1b]0;title\x07", OSCToken(0, "title")},
		{"\x1b]133;A\x1b\\", OSCToken(133, "A")},
		{"\x1b]7;file://host/tmp\x07", OSCToken(7, "file://host/tmp")},
		{"\x1b]133;D;0\x07", OSCToken(133, "D;0")},
		{"\x1b]x;y\x07", Token{Type: TokenOSC, OSC: -1, Data: "x;y"}},
	}
	for _, tt := range tests {
		got := NewTokenizer().FeedString(tt.in)
		if len(got) != 1 || !reflect.DeepEqual(got[0], tt.want) {
			t.Errorf("%q: got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTokenizerSplitAcrossFeeds(t *testing.T) {
	tk := NewTokenizer()

	if got := tk.FeedString("ab\x1b[1"); !reflect.DeepEqual(got, []Token{TextToken("ab")}) {
		t.Fatalf("first feed: %v", got)
	}
	if got := tk.FeedString("0;2H"); !reflect.DeepEqual(got, []Token{CSIToken('H', 10, 2)}) {
		t.Fatalf("second feed: %v", got)
	}

	// UTF-8 split in the middle of a rune.
	euro := []byte("€")
	if got := tk.Feed(euro[:1]); len(got) != 0 {
		t.Fatalf("partial rune produced %v", got)
	}
	if got := tk.Feed(euro[1:]); !reflect.DeepEqual(got, []Token{TextToken("€")}) {
		t.Fatalf("completed rune: %v", got)
	}
}

func TestTokenizerInvalidUTF8(t *testing.T) {
	got := NewTokenizer().Feed([]byte{'a', 0x80, 'b', 0xC3, 'c'})
	want := []Token{TextToken("a�b�c")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestTokenizerOSCEndedByNewSequence(t *testing.T) {
	got := NewTokenizer().FeedString("\x1b]2;t\x1b[m")
	want := []Token{OSCToken(2, "t"), CSIToken('m')}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestTokenizerDropsDCS(t *testing.T) {
	got := NewTokenizer().FeedString("\x1bPq#0;1\x1b\\ok")
	want := []Token{TextToken("ok")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestTokenString(t *testing.T) {
	if s := PrivateCSIToken('?', 'h', 1049).String(); s != "CSI ?1049h" {
		t.Errorf("got %q", s)
	}
	if s := OSCToken(133, "A").String(); s != "OSC 133;A" {
		t.Errorf("got %q", s)
	}
}
