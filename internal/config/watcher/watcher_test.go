package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestOperation_String(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OpWrite, "write"},
		{OpCreate, "create"},
		{OpRemove, "remove"},
		{OpRename, "rename"},
		{Operation(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestCoalesce(t *testing.T) {
	create := Event{Op: OpCreate}
	write := Event{Op: OpWrite}
	remove := Event{Op: OpRemove}

	if got := coalesce(&create, write); got.Op != OpCreate {
		t.Errorf("create+write = %v, want create", got.Op)
	}
	if got := coalesce(&write, remove); got.Op != OpRemove {
		t.Errorf("write+remove = %v, want remove", got.Op)
	}
	if got := coalesce(nil, write); got.Op != OpWrite {
		t.Errorf("nil+write = %v, want write", got.Op)
	}
}

func TestWatcher_DetectsWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vtstate.toml")
	if err := os.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := New(path, WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var events []Event
	got := make(chan struct{}, 1)
	w.OnChange(func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
		select {
		case got <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the OS watcher time to register before writing.
	time.Sleep(50 * time.Millisecond)
	// Unrelated files in the same directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("b"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("no change event")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, e := range events {
		if e.Path != w.Path() {
			t.Errorf("event for %q, want %q", e.Path, w.Path())
		}
	}
}

func TestWatcher_RunTwice(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "c.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for {
		w.mu.Lock()
		running := w.running
		w.mu.Unlock()
		if running || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := w.Run(ctx); err != ErrAlreadyRunning {
		t.Errorf("second Run() = %v, want ErrAlreadyRunning", err)
	}
	cancel()
	<-done
}
