package trigger

import (
	"context"
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultLuaTimeout bounds a single on_match call.
const DefaultLuaTimeout = 100 * time.Millisecond

// LuaAction calls the script's on_match(line, groups) for each match. The
// script sees a vt table:
//
//	vt.set_var(name, value)    vt.get_var(name) -> value or nil
//	vt.cwd() -> path           vt.prompt_state() -> name
//	vt.mark([label])           vt.annotate(start, end, [label])
//	vt.alert(message)          vt.schedule(fn)
//
// Columns passed to vt.annotate are zero-based cells on the matched line.
type LuaAction struct {
	mu      sync.Mutex
	L       *lua.LState
	timeout time.Duration

	// Set for the duration of Perform and for scheduled callbacks.
	host Host
	line Line
}

// NewLuaAction compiles script in a sandboxed state.
func NewLuaAction(script string, timeout time.Duration) (*LuaAction, error) {
	if timeout <= 0 {
		timeout = DefaultLuaTimeout
	}
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSandbox(L)

	a := &LuaAction{L: L, timeout: timeout}
	L.SetGlobal("vt", a.module())

	if err := a.protect(context.Background(), func() error { return L.DoString(script) }); err != nil {
		L.Close()
		return nil, fmt.Errorf("load lua trigger: %w", err)
	}
	if L.GetGlobal("on_match").Type() != lua.LTFunction {
		L.Close()
		return nil, ErrNoHandler
	}
	return a, nil
}

// openSandbox opens the libraries that cannot reach the host system.
func openSandbox(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
}

// Perform implements Action.
func (a *LuaAction) Perform(m Match, host Host) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.host, a.line = host, m.Line
	defer func() { a.host = nil }()

	groups := a.L.NewTable()
	for i, g := range m.Groups {
		groups.RawSetInt(i, lua.LString(g))
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	return a.protect(ctx, func() error {
		return a.L.CallByParam(lua.P{
			Fn:      a.L.GetGlobal("on_match"),
			NRet:    0,
			Protect: true,
		}, lua.LString(m.Line.Text), groups)
	})
}

// Close releases the Lua state.
func (a *LuaAction) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.L.Close()
	return nil
}

func (a *LuaAction) protect(ctx context.Context, fn func() error) (err error) {
	a.L.SetContext(ctx)
	defer a.L.RemoveContext()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

func (a *LuaAction) module() *lua.LTable {
	L := a.L
	mod := L.NewTable()
	fns := map[string]lua.LGFunction{
		"set_var": func(L *lua.LState) int {
			a.mustHost(L).SetVariable(L.CheckString(1), L.CheckString(2))
			return 0
		},
		"get_var": func(L *lua.LState) int {
			if v, ok := a.mustHost(L).Variable(L.CheckString(1)); ok {
				L.Push(lua.LString(v))
			} else {
				L.Push(lua.LNil)
			}
			return 1
		},
		"cwd": func(L *lua.LState) int {
			L.Push(lua.LString(a.mustHost(L).WorkingDirectory()))
			return 1
		},
		"prompt_state": func(L *lua.LState) int {
			L.Push(lua.LString(a.mustHost(L).PromptState().String()))
			return 1
		},
		"mark": func(L *lua.LState) int {
			id := a.mustHost(L).AddMark(a.line.Y, L.OptString(1, ""))
			L.Push(lua.LString(id.String()))
			return 1
		},
		"annotate": func(L *lua.LState) int {
			start, end := L.CheckInt(1), L.CheckInt(2)
			if end <= start || start < 0 {
				L.ArgError(2, "end must be greater than start")
				return 0
			}
			id := a.mustHost(L).Highlight(a.line.Y, start, end, L.OptString(3, ""))
			L.Push(lua.LString(id.String()))
			return 1
		},
		"alert": func(L *lua.LState) int {
			a.mustHost(L).Alert(L.CheckString(1))
			return 0
		},
		"schedule": func(L *lua.LState) int {
			fn := L.CheckFunction(1)
			host, line := a.mustHost(L), a.line
			host.Schedule(func() { a.runScheduled(fn, host, line) })
			return 0
		},
	}
	for name, fn := range fns {
		L.SetField(mod, name, L.NewFunction(fn))
	}
	return mod
}

func (a *LuaAction) mustHost(L *lua.LState) Host {
	if a.host == nil {
		L.RaiseError("vt is only available inside on_match")
	}
	return a.host
}

// runScheduled calls a function passed to vt.schedule. Errors are dropped
// because nobody is waiting for the result.
func (a *LuaAction) runScheduled(fn *lua.LFunction, host Host, line Line) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.host, a.line = host, line
	defer func() { a.host = nil }()

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	_ = a.protect(ctx, func() error {
		return a.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true})
	})
}
