// Package handle implements the remote-handle model: an
// opaque reference to a value held in the Tcl child's cmd_results side
// table, identified by the integer index the child assigned it.
package handle

import (
	"fmt"
	"strconv"

	"github.com/tcldrv/tcldrv/internal/tclvalue"
)

// ObjectPosition selects where a handle used as a method receiver is placed
// in the Tcl command built by Call ("called_object_pos").
type ObjectPosition string

const (
	PositionFirst  ObjectPosition = "first"
	PositionSecond ObjectPosition = "second"
	PositionLast   ObjectPosition = "last"
)

// Caller is implemented by the session: it renders and evaluates a Tcl
// command on behalf of a Handle's polymorphic method calls.
type Caller interface {
	ProcCall(name string, args []any, kwargs []tclvalue.Pair) (*Handle, error)
	ObjectPosition() ObjectPosition
}

// Handle represents the child-side value produced by the command at index
// CmdIdx. Two handles with the same CmdIdx within one session refer to the
// same child-side value; the driver never frees cmd_results entries.
type Handle struct {
	caller Caller
	CmdIdx int
	Value  string
	Cmd    string
}

// New constructs a Handle. Sessions call this after a successful eval; it
// is not normally constructed directly by driver code.
func New(caller Caller, cmdIdx int, value, cmd string) *Handle {
	return &Handle{caller: caller, CmdIdx: cmdIdx, Value: value, Cmd: cmd}
}

// String returns the handle's string value.
func (h *Handle) String() string {
	return h.Value
}

// Int parses the handle's value as an integer.
func (h *Handle) Int() (int, error) {
	return strconv.Atoi(h.Value)
}

// Float parses the handle's value as a float64.
func (h *Handle) Float() (float64, error) {
	return strconv.ParseFloat(h.Value, 64)
}

// RefString returns the "$cmd_results(<idx>)" form of this handle,
// referencing the child-side table by identity. Implements
// tclvalue.RemoteRef.
func (h *Handle) RefString() string {
	return fmt.Sprintf("$cmd_results(%d)", h.CmdIdx)
}

// StringValue returns the handle's plain string value. Implements
// tclvalue.RemoteRef.
func (h *Handle) StringValue() string {
	return h.Value
}

// Call invokes an unknown method m on the handle as its receiver, per
// the called_object_pos policy. kwargs are rendered as "-k v"
// (or bare "-k" for a true bool, omitted for a false one) before the
// positional args.
//
// The receiver slot inserted into the argument list (second, last) carries
// the handle's plain brace-quoted value rather than an identity
// substitution: called_object_pos exists to place the receiver
// syntactically, not to alias it by reference the way an ordinary handle
// argument passed by the caller would be. Session.ProcCall's generic
// argument encoding performs identity substitution for callers' own handle
// arguments; the raw self-value here is spliced in ahead of that so it
// isn't re-encoded.
func (h *Handle) Call(m string, args []any, kwargs []tclvalue.Pair) (*Handle, error) {
	name := m
	callArgs := args
	self := tclvalue.Raw(tclvalue.Encode(tclvalue.RemoteRef(h), true))

	switch h.caller.ObjectPosition() {
	case PositionFirst:
		callArgs = append([]any{m}, args...)
		name = h.RefString()
	case PositionSecond:
		callArgs = append([]any{self}, args...)
	case PositionLast:
		callArgs = append(append([]any{}, args...), self)
	default:
		return nil, fmt.Errorf("handle: invalid called_object_pos %q", h.caller.ObjectPosition())
	}

	return h.caller.ProcCall(name, callArgs, kwargs)
}
