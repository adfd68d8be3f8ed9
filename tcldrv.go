// Package tcldrv is the driver-facing surface of the bridge: open a Tcl-based
// child tool, call into it as if it supported arbitrary method names, and
// shut it down cleanly when the caller's body finishes.
//
// Go has no equivalent of the source library's __getattr__-based dynamic
// attribute dispatch, so the chainable "t.some_command(arg)" calling
// convention becomes an explicit Call/CallKV pair instead.
package tcldrv

import (
	"sort"

	"github.com/tcldrv/tcldrv/internal/adapter"
	"github.com/tcldrv/tcldrv/internal/evallog"
	"github.com/tcldrv/tcldrv/internal/handle"
	"github.com/tcldrv/tcldrv/internal/session"
	"github.com/tcldrv/tcldrv/internal/tclvalue"
)

// Adapter resolves a Tcl-based tool's argv; re-exported so callers need not
// import internal/adapter directly.
type Adapter = adapter.Adapter

// Tclsh, Vivado, Yosys, Custom are the concrete adapters this module ships.
type (
	Tclsh  = adapter.Tclsh
	Vivado = adapter.Vivado
	Yosys  = adapter.Yosys
	Custom = adapter.Custom
)

// Options configures a Tool; re-exported from internal/session.
type Options = session.Options

// TclError, ChildProcessFailedError are re-exported so callers can
// errors.As against them without importing internal/session.
type (
	TclError                = session.TclError
	ChildProcessFailedError = session.ChildProcessFailedError
)

// Tool is a single running Tcl child process, ready to accept commands.
type Tool struct {
	s *session.Session
}

// Open spawns the child tool per ad's argv and completes the startup
// handshake. Callers must call Close exactly once.
func Open(ad Adapter, opts Options) (*Tool, error) {
	s, err := session.Open(ad, opts)
	if err != nil {
		return nil, err
	}
	return &Tool{s: s}, nil
}

// Close tears the tool down, applying the exit-code and held-exception
// policy. bodyErr is whatever error the caller's own work produced; pass nil
// if none.
func (t *Tool) Close(bodyErr error) error {
	return t.s.Close(bodyErr)
}

// Eval evaluates raw Tcl source and returns the resulting handle.
func (t *Tool) Eval(cmd string) (*handle.Handle, error) {
	return t.s.Eval(cmd)
}

// Call invokes name as a Tcl command with args rendered positionally.
func (t *Tool) Call(name string, args ...any) (*handle.Handle, error) {
	return t.s.ProcCall(name, args, nil)
}

// CallKV invokes name with both keyword and positional arguments. kwargs
// keys render as "-key value" (or bare "-key" for a true bool, omitted for a
// false one) ahead of args, matching the wire contract's `-k v ... arg1
// arg2 ...` convention. Keys are sorted so the rendered command text is
// deterministic across calls, independent of Go's randomized map iteration.
func (t *Tool) CallKV(name string, kwargs map[string]any, args ...any) (*handle.Handle, error) {
	keys := make([]string, 0, len(kwargs))
	for k := range kwargs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]tclvalue.Pair, 0, len(kwargs))
	for _, k := range keys {
		pairs = append(pairs, tclvalue.Pair{Key: k, Value: kwargs[k]})
	}
	return t.s.ProcCall(name, args, pairs)
}

// RecentEvals returns the tool's retained eval history, most recent last.
func (t *Tool) RecentEvals() []evallog.Entry {
	return t.s.RecentEvals()
}

// Run opens a tool against ad, hands it to body, and always tears it down
// afterward, applying the exit-code/held-exception policy. This is the
// common case: acquire, use, release, with no path that leaks the child.
func Run(ad Adapter, opts Options, body func(*Tool) error) error {
	t, err := Open(ad, opts)
	if err != nil {
		return err
	}
	bodyErr := body(t)
	return t.Close(bodyErr)
}
