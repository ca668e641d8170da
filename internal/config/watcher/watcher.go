// Package watcher reports changes to a single configuration file.
//
// The file's directory is watched rather than the file itself so that
// editors which replace the file by rename are still observed. Bursts of
// events are debounced into one.
package watcher

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrAlreadyRunning is returned when Run is called twice.
var ErrAlreadyRunning = errors.New("watcher already running")

// Event is one debounced change to the watched file.
type Event struct {
	Path string // absolute
	Op   Operation
	Time time.Time
}

// Operation is what happened to the file.
type Operation int

const (
	OpWrite Operation = iota
	OpCreate
	OpRemove
	OpRename
)

var opNames = [...]string{"write", "create", "remove", "rename"}

func (op Operation) String() string {
	if op < 0 || int(op) >= len(opNames) {
		return "unknown"
	}
	return opNames[op]
}

// Handler receives change events on the watcher's goroutine.
type Handler func(event Event)

// ErrorHandler receives errors from fsnotify.
type ErrorHandler func(err error)

// Watcher monitors one file for changes.
type Watcher struct {
	path     string
	debounce time.Duration

	mu       sync.Mutex
	handlers []Handler
	onError  ErrorHandler
	running  bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long a burst must be quiet before it is reported.
// Zero reports every event.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithErrorHandler sets the handler for watcher errors.
func WithErrorHandler(h ErrorHandler) Option {
	return func(w *Watcher) {
		w.onError = h
	}
}

// New creates a watcher for path.
func New(path string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:     abs,
		debounce: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// OnChange registers a handler for file change events.
func (w *Watcher) OnChange(handler Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Run watches until ctx is done. Handlers are called from Run's goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrAlreadyRunning
	}
	w.running = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	var (
		pending *Event
		fire    <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			op, ok := translate(ev.Op)
			if !ok {
				continue
			}
			e := Event{Path: w.path, Op: op, Time: time.Now()}
			if w.debounce == 0 {
				w.emit(e)
				continue
			}
			pending = coalesce(pending, e)
			fire = time.After(w.debounce)

		case <-fire:
			fire = nil
			if pending != nil {
				e := *pending
				pending = nil
				w.emit(e)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.mu.Lock()
			h := w.onError
			w.mu.Unlock()
			if h != nil {
				h(err)
			}
		}
	}
}

func (w *Watcher) emit(e Event) {
	w.mu.Lock()
	handlers := make([]Handler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.Unlock()

	for _, h := range handlers {
		h(e)
	}
}

func translate(op fsnotify.Op) (Operation, bool) {
	switch {
	case op.Has(fsnotify.Remove):
		return OpRemove, true
	case op.Has(fsnotify.Rename):
		return OpRename, true
	case op.Has(fsnotify.Create):
		return OpCreate, true
	case op.Has(fsnotify.Write):
		return OpWrite, true
	default:
		return 0, false
	}
}

// coalesce folds a new event into the pending one:
// create + write => create, any + remove => remove, otherwise the latest wins.
func coalesce(pending *Event, e Event) *Event {
	if pending == nil {
		return &e
	}
	switch {
	case e.Op == OpRemove:
	case e.Op == OpWrite && pending.Op == OpCreate:
		e.Op = OpCreate
	}
	return &e
}
