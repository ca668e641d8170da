package terminal

import (
	"fmt"
	"strconv"
	"strings"
)

// Color is a terminal color. Index is 0-255 for palette colors and -1 for
// direct RGB.
type Color struct {
	R, G, B uint8
	Index   int
	Default bool
}

// DefaultColor selects the default foreground or background.
var DefaultColor = Color{Default: true, Index: -1}

// ColorFromRGB returns a direct color.
func ColorFromRGB(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b, Index: -1}
}

// String formats c as #rrggbb, or "default".
func (c Color) String() string {
	if c.Default {
		return "default"
	}
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

var ansiPalette = [16]Color{
	{Index: 0, R: 0, G: 0, B: 0},
	{Index: 1, R: 205, G: 0, B: 0},
	{Index: 2, R: 0, G: 205, B: 0},
	{Index: 3, R: 205, G: 205, B: 0},
	{Index: 4, R: 0, G: 0, B: 238},
	{Index: 5, R: 205, G: 0, B: 205},
	{Index: 6, R: 0, G: 205, B: 205},
	{Index: 7, R: 229, G: 229, B: 229},
	{Index: 8, R: 127, G: 127, B: 127},
	{Index: 9, R: 255, G: 0, B: 0},
	{Index: 10, R: 0, G: 255, B: 0},
	{Index: 11, R: 255, G: 255, B: 0},
	{Index: 12, R: 92, G: 92, B: 255},
	{Index: 13, R: 255, G: 0, B: 255},
	{Index: 14, R: 0, G: 255, B: 255},
	{Index: 15, R: 255, G: 255, B: 255},
}

// ColorFromIndex returns the xterm 256-color palette entry for index.
// Out-of-range indices yield DefaultColor.
func ColorFromIndex(index int) Color {
	switch {
	case index < 0 || index > 255:
		return DefaultColor
	case index < 16:
		return ansiPalette[index]
	case index < 232:
		i := index - 16
		return Color{
			R:     uint8((i / 36) * 51),
			G:     uint8(((i / 6) % 6) * 51),
			B:     uint8((i % 6) * 51),
			Index: index,
		}
	default:
		gray := uint8((index-232)*10 + 8)
		return Color{R: gray, G: gray, B: gray, Index: index}
	}
}

// ColorMap holds palette and default color overrides set by the remote
// program. It is part of the mutable state and only touched on the mutation
// path.
type ColorMap struct {
	palette    map[int]Color
	foreground Color
	background Color
}

// NewColorMap returns a map with no overrides.
func NewColorMap() *ColorMap {
	return &ColorMap{
		palette:    make(map[int]Color),
		foreground: DefaultColor,
		background: DefaultColor,
	}
}

// Resolve maps c through the overrides.
func (m *ColorMap) Resolve(c Color, foreground bool) Color {
	if c.Default {
		if foreground {
			return m.foreground
		}
		return m.background
	}
	if c.Index >= 0 {
		if o, ok := m.palette[c.Index]; ok {
			return o
		}
	}
	return c
}

// SetPalette overrides palette entry index.
func (m *ColorMap) SetPalette(index int, c Color) bool {
	if index < 0 || index > 255 {
		return false
	}
	c.Index = index
	m.palette[index] = c
	return true
}

// ResetPalette removes the override for index, or every palette override
// when index is negative.
func (m *ColorMap) ResetPalette(index int) {
	if index < 0 {
		clear(m.palette)
		return
	}
	delete(m.palette, index)
}

// SetForeground overrides the default foreground.
func (m *ColorMap) SetForeground(c Color) { m.foreground = c }

// SetBackground overrides the default background.
func (m *ColorMap) SetBackground(c Color) { m.background = c }

// Foreground returns the default foreground.
func (m *ColorMap) Foreground() Color { return m.foreground }

// Background returns the default background.
func (m *ColorMap) Background() Color { return m.background }

// Reset removes every override.
func (m *ColorMap) Reset() {
	clear(m.palette)
	m.foreground = DefaultColor
	m.background = DefaultColor
}

// Clone returns an independent copy.
func (m *ColorMap) Clone() *ColorMap {
	c := &ColorMap{
		palette:    make(map[int]Color, len(m.palette)),
		foreground: m.foreground,
		background: m.background,
	}
	for k, v := range m.palette {
		c.palette[k] = v
	}
	return c
}

// ParseColorSpec parses an X11 color spec as used by OSC 4/10/11:
// "rgb:r/g/b" with 1-4 hex digits per channel, or "#rrggbb".
func ParseColorSpec(spec string) (Color, bool) {
	spec = strings.TrimSpace(spec)
	switch {
	case strings.HasPrefix(spec, "rgb:"):
		parts := strings.Split(spec[4:], "/")
		if len(parts) != 3 {
			return Color{}, false
		}
		var ch [3]uint8
		for i, p := range parts {
			v, ok := scaleHex(p)
			if !ok {
				return Color{}, false
			}
			ch[i] = v
		}
		return ColorFromRGB(ch[0], ch[1], ch[2]), true
	case strings.HasPrefix(spec, "#") && len(spec) == 7:
		v, err := strconv.ParseUint(spec[1:], 16, 32)
		if err != nil {
			return Color{}, false
		}
		return ColorFromRGB(uint8(v>>16), uint8(v>>8), uint8(v)), true
	default:
		return Color{}, false
	}
}

func scaleHex(s string) (uint8, bool) {
	if len(s) == 0 || len(s) > 4 {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, false
	}
	maxV := uint64(1)<<(4*len(s)) - 1
	return uint8(v * 255 / maxV), true
}
