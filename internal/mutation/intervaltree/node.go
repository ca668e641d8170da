package intervaltree

// node is an immutable tree node. Every change builds new nodes along the
// path from the root, so a root captured in a Version never changes.
type node struct {
	entry  Entry
	left   *node
	right  *node
	height int
	maxEnd int64
	size   int
}

func height(n *node) int {
	if n == nil {
		return 0
	}
	return n.height
}

func size(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func mk(e Entry, l, r *node) *node {
	n := &node{
		entry:  e,
		left:   l,
		right:  r,
		height: max(height(l), height(r)) + 1,
		maxEnd: e.Interval.end(),
		size:   size(l) + size(r) + 1,
	}
	if l != nil && l.maxEnd > n.maxEnd {
		n.maxEnd = l.maxEnd
	}
	if r != nil && r.maxEnd > n.maxEnd {
		n.maxEnd = r.maxEnd
	}
	return n
}

func rotateRight(n *node) *node {
	l := n.left
	return mk(l.entry, l.left, mk(n.entry, l.right, n.right))
}

func rotateLeft(n *node) *node {
	r := n.right
	return mk(r.entry, mk(n.entry, n.left, r.left), r.right)
}

// balance builds a node from e, l and r, rotating if the subtrees differ in
// height by more than one.
func balance(e Entry, l, r *node) *node {
	hl, hr := height(l), height(r)
	switch {
	case hl > hr+1:
		if height(l.left) < height(l.right) {
			l = rotateLeft(l)
		}
		return rotateRight(mk(e, l, r))
	case hr > hl+1:
		if height(r.right) < height(r.left) {
			r = rotateRight(r)
		}
		return rotateLeft(mk(e, l, r))
	default:
		return mk(e, l, r)
	}
}

func insert(n *node, e Entry) *node {
	if n == nil {
		return mk(e, nil, nil)
	}
	c := compare(e, n.entry)
	switch {
	case c < 0:
		return balance(n.entry, insert(n.left, e), n.right)
	case c > 0:
		return balance(n.entry, n.left, insert(n.right, e))
	default:
		return mk(e, n.left, n.right)
	}
}

// remove deletes the entry ordered equal to key. The second result is false
// if no such entry exists, in which case the original node is returned.
func remove(n *node, key Entry) (*node, bool) {
	if n == nil {
		return nil, false
	}
	c := compare(key, n.entry)
	switch {
	case c < 0:
		l, ok := remove(n.left, key)
		if !ok {
			return n, false
		}
		return balance(n.entry, l, n.right), true
	case c > 0:
		r, ok := remove(n.right, key)
		if !ok {
			return n, false
		}
		return balance(n.entry, n.left, r), true
	}

	if n.left == nil {
		return n.right, true
	}
	if n.right == nil {
		return n.left, true
	}
	succ := n.right
	for succ.left != nil {
		succ = succ.left
	}
	r, _ := remove(n.right, succ.entry)
	return balance(succ.entry, n.left, r), true
}

func compare(a, b Entry) int {
	switch {
	case a.Interval.Start < b.Interval.Start:
		return -1
	case a.Interval.Start > b.Interval.Start:
		return 1
	case a.Interval.End < b.Interval.End:
		return -1
	case a.Interval.End > b.Interval.End:
		return 1
	}
	for i := range a.ID {
		if a.ID[i] != b.ID[i] {
			if a.ID[i] < b.ID[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func overlapping(n *node, iv Interval, out []Entry) []Entry {
	if n == nil || n.maxEnd <= iv.Start {
		return out
	}
	out = overlapping(n.left, iv, out)
	if n.entry.Interval.Start >= iv.end() {
		// Everything to the right starts later still.
		return out
	}
	if n.entry.Interval.Overlaps(iv) {
		out = append(out, n.entry)
	}
	return overlapping(n.right, iv, out)
}

func walk(n *node, fn func(Entry) bool) bool {
	if n == nil {
		return true
	}
	return walk(n.left, fn) && fn(n.entry) && walk(n.right, fn)
}
