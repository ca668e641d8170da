package terminal

// DefaultScrollback is the history size used when none is configured.
const DefaultScrollback = 10000

// History stores lines scrolled off the top of the primary screen.
type History struct {
	lines    []*Line
	maxLines int
	dropped  int64
}

// NewHistory creates a history holding at most maxLines lines.
func NewHistory(maxLines int) *History {
	if maxLines <= 0 {
		maxLines = DefaultScrollback
	}
	return &History{maxLines: maxLines}
}

// Add appends a copy of line, discarding the oldest line when full.
func (h *History) Add(line *Line) {
	h.lines = append(h.lines, line.clone())
	if over := len(h.lines) - h.maxLines; over > 0 {
		clear(h.lines[:over])
		h.lines = h.lines[over:]
		h.dropped += int64(over)
	}
}

// Len returns the number of stored lines.
func (h *History) Len() int {
	return len(h.lines)
}

// Dropped returns how many lines have been discarded from the front.
func (h *History) Dropped() int64 {
	return h.dropped
}

// Line returns stored line i, oldest first.
func (h *History) Line(i int) *Line {
	if i < 0 || i >= len(h.lines) {
		return nil
	}
	return h.lines[i]
}

// Clear removes every line. Cleared lines count as dropped.
func (h *History) Clear() {
	h.dropped += int64(len(h.lines))
	clear(h.lines)
	h.lines = h.lines[:0]
}

// Text returns the history as text, joining wrapped lines.
func (h *History) Text() string {
	var out []byte
	for i, line := range h.lines {
		out = append(out, line.Text()...)
		if i < len(h.lines)-1 && !line.Wrapped {
			out = append(out, '\n')
		}
	}
	return string(out)
}
