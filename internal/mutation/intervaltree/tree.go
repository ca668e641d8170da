// Package intervaltree stores marks and annotations keyed by screen interval.
//
// A Pair has a write side, owned by the mutation path, and a read side made of
// published Versions. Edits replace the write root with a new persistent tree
// that shares unchanged nodes with the old one. Publish makes the current
// root visible to readers as an immutable Version. Readers never see a root
// that is still being edited.
package intervaltree

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Kind distinguishes marks from annotations.
type Kind int

const (
	// KindMark is a point of interest such as a prompt or a user bookmark.
	KindMark Kind = iota

	// KindAnnotation is a labeled region of text.
	KindAnnotation
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindMark:
		return "mark"
	case KindAnnotation:
		return "annotation"
	default:
		return "unknown"
	}
}

// Interval is a half-open range [Start, End) of linearized screen positions.
// A zero-length interval occupies the single position Start.
type Interval struct {
	Start int64
	End   int64
}

func (iv Interval) end() int64 {
	if iv.End <= iv.Start {
		return iv.Start + 1
	}
	return iv.End
}

// Overlaps reports whether iv and o share a position.
func (iv Interval) Overlaps(o Interval) bool {
	return iv.Start < o.end() && o.Start < iv.end()
}

// Contains reports whether pos is inside iv.
func (iv Interval) Contains(pos int64) bool {
	return pos >= iv.Start && pos < iv.end()
}

// String formats iv as [start,end).
func (iv Interval) String() string {
	return fmt.Sprintf("[%d,%d)", iv.Start, iv.End)
}

// Entry is a mark or annotation held in the tree.
type Entry struct {
	ID       uuid.UUID
	Kind     Kind
	Interval Interval
	Label    string

	// Owner identifies who is notified about this entry's lifecycle. It is
	// never used to reach back and mutate the owner.
	Owner uuid.UUID
}

// Pair is the mutable tree plus its most recently published version.
//
// All methods except Snapshot must be called from the mutation path.
// Snapshot may be called from any goroutine.
type Pair struct {
	root  *node
	index map[uuid.UUID]Entry
	dirty bool

	generation uint64
	published  atomic.Pointer[Version]
}

// NewPair returns an empty pair with an empty published version.
func NewPair() *Pair {
	p := &Pair{index: make(map[uuid.UUID]Entry)}
	p.published.Store(&Version{})
	return p
}

// Insert adds e. An entry with the same ID is replaced.
func (p *Pair) Insert(e Entry) {
	if old, ok := p.index[e.ID]; ok {
		p.root, _ = remove(p.root, old)
	}
	p.root = insert(p.root, e)
	p.index[e.ID] = e
	p.dirty = true
}

// Move changes the interval of the entry with id. It returns the updated
// entry, or false if no such entry exists.
func (p *Pair) Move(id uuid.UUID, iv Interval) (Entry, bool) {
	old, ok := p.index[id]
	if !ok {
		return Entry{}, false
	}
	p.root, _ = remove(p.root, old)
	e := old
	e.Interval = iv
	p.root = insert(p.root, e)
	p.index[id] = e
	p.dirty = true
	return e, true
}

// Remove deletes the entry with id and returns it.
func (p *Pair) Remove(id uuid.UUID) (Entry, bool) {
	old, ok := p.index[id]
	if !ok {
		return Entry{}, false
	}
	p.root, _ = remove(p.root, old)
	delete(p.index, id)
	p.dirty = true
	return old, true
}

// Get returns the current (possibly unpublished) entry with id.
func (p *Pair) Get(id uuid.UUID) (Entry, bool) {
	e, ok := p.index[id]
	return e, ok
}

// Overlapping returns write-side entries overlapping iv in (start, end) order.
func (p *Pair) Overlapping(iv Interval) []Entry {
	return overlapping(p.root, iv, nil)
}

// Len returns the number of entries on the write side.
func (p *Pair) Len() int {
	return size(p.root)
}

// Dirty reports whether the write side has changed since the last Publish.
func (p *Pair) Dirty() bool {
	return p.dirty
}

// Clear removes every entry and returns the removed entries in order.
func (p *Pair) Clear() []Entry {
	var out []Entry
	walk(p.root, func(e Entry) bool {
		out = append(out, e)
		return true
	})
	if len(out) == 0 {
		return nil
	}
	p.root = nil
	p.index = make(map[uuid.UUID]Entry)
	p.dirty = true
	return out
}

// Swap exchanges the write sides of p and other. Both become dirty so that
// the next Publish on each exposes the swapped contents.
func (p *Pair) Swap(other *Pair) {
	if p == other {
		return
	}
	p.root, other.root = other.root, p.root
	p.index, other.index = other.index, p.index
	p.dirty = true
	other.dirty = true
}

// Publish makes the write side visible to readers if it changed. It returns
// the version readers now see.
func (p *Pair) Publish() *Version {
	if !p.dirty {
		return p.published.Load()
	}
	p.generation++
	v := &Version{generation: p.generation, root: p.root}
	p.published.Store(v)
	p.dirty = false
	return v
}

// Snapshot returns the most recently published version.
func (p *Pair) Snapshot() *Version {
	return p.published.Load()
}

// Version is an immutable published tree.
type Version struct {
	generation uint64
	root       *node
}

// Generation increases by one with every publish that changed the tree.
func (v *Version) Generation() uint64 {
	return v.generation
}

// Len returns the number of entries.
func (v *Version) Len() int {
	return size(v.root)
}

// Overlapping returns the entries overlapping iv in (start, end) order.
func (v *Version) Overlapping(iv Interval) []Entry {
	return overlapping(v.root, iv, nil)
}

// All returns every entry in (start, end) order.
func (v *Version) All() []Entry {
	out := make([]Entry, 0, v.Len())
	walk(v.root, func(e Entry) bool {
		out = append(out, e)
		return true
	})
	return out
}

// Get finds the entry with id.
func (v *Version) Get(id uuid.UUID) (Entry, bool) {
	var found Entry
	ok := false
	walk(v.root, func(e Entry) bool {
		if e.ID == id {
			found, ok = e, true
			return false
		}
		return true
	})
	return found, ok
}

// Each calls fn for every entry of kind k in order until fn returns false.
func (v *Version) Each(k Kind, fn func(Entry) bool) {
	walk(v.root, func(e Entry) bool {
		if e.Kind != k {
			return true
		}
		return fn(e)
	})
}
