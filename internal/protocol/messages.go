package protocol

import (
	"errors"
	"fmt"
)

// ErrWrongMessageClass is returned when a RawMessage's "class" key does not
// match any of the tags permitted for the current construction attempt.
var ErrWrongMessageClass = errors.New("protocol: wrong message class")

// Tag identifies one of the four fixed message classes on the wire.
type Tag string

const (
	TagTclHello           Tag = "TclHello"
	TagPyProcedureCall    Tag = "PyProcedureCall"
	TagTclProcedureResult Tag = "TclProcedureResult"
	TagPyExit             Tag = "PyExit"
)

// Message is the common interface implemented by the four typed messages.
// ToRaw always retains any extra keys the message was constructed from, so
// that extras survive a decode -> re-encode round trip unchanged rather than
// being silently dropped.
type Message interface {
	Tag() Tag
	ToRaw() *RawMessage
}

// typed is embedded by each concrete message; it stores the full backing
// RawMessage (required keys plus any extras) the way the Python source's
// Message._data dict does.
type typed struct {
	raw *RawMessage
}

func (t typed) ToRaw() *RawMessage {
	return t.raw
}

func newTyped(tag Tag, fields map[string]string) typed {
	raw := NewRawMessage()
	raw.Set(classKey, string(tag))
	for k, v := range fields {
		raw.Set(k, v)
	}
	return typed{raw: raw}
}

// buildTyped verifies raw["class"] == tag and that every required key is
// present, returning ErrWrongMessageClass otherwise. Extra keys are kept on
// raw unchanged.
func buildTyped(raw *RawMessage, tag Tag, required []string) (typed, error) {
	class, ok := raw.Class()
	if !ok || class != string(tag) {
		return typed{}, fmt.Errorf("%w: got %q, want %q", ErrWrongMessageClass, class, tag)
	}
	for _, key := range required {
		if _, ok := raw.Get(key); !ok {
			return typed{}, fmt.Errorf("%w: missing required key %q for %s", ErrWrongMessageClass, key, tag)
		}
	}
	return typed{raw: raw}, nil
}

// TclHello is sent by the child exactly once after startup.
type TclHello struct {
	typed
	Patchlevel       string
	Commands         string
	Globals          string
	NameOfExecutable string
}

var tclHelloRequired = []string{"patchlevel", "commands", "globals", "nameofexecutable"}

func NewTclHello(patchlevel, commands, globals, nameOfExecutable string) *TclHello {
	t := newTyped(TagTclHello, map[string]string{
		"patchlevel":       patchlevel,
		"commands":         commands,
		"globals":          globals,
		"nameofexecutable": nameOfExecutable,
	})
	return &TclHello{typed: t, Patchlevel: patchlevel, Commands: commands, Globals: globals, NameOfExecutable: nameOfExecutable}
}

func (*TclHello) Tag() Tag { return TagTclHello }

// TclHelloFromRaw constructs a TclHello from a decoded RawMessage, or
// returns ErrWrongMessageClass if raw is not a well-formed TclHello.
func TclHelloFromRaw(raw *RawMessage) (*TclHello, error) {
	t, err := buildTyped(raw, TagTclHello, tclHelloRequired)
	if err != nil {
		return nil, err
	}
	patchlevel, _ := raw.Get("patchlevel")
	commands, _ := raw.Get("commands")
	globals, _ := raw.Get("globals")
	exe, _ := raw.Get("nameofexecutable")
	return &TclHello{typed: t, Patchlevel: patchlevel, Commands: commands, Globals: globals, NameOfExecutable: exe}, nil
}

// PyProcedureCall carries a Tcl source string from driver to child.
type PyProcedureCall struct {
	typed
	Command string
}

var pyProcedureCallRequired = []string{"command"}

func NewPyProcedureCall(command string) *PyProcedureCall {
	t := newTyped(TagPyProcedureCall, map[string]string{"command": command})
	return &PyProcedureCall{typed: t, Command: command}
}

func (*PyProcedureCall) Tag() Tag { return TagPyProcedureCall }

func PyProcedureCallFromRaw(raw *RawMessage) (*PyProcedureCall, error) {
	t, err := buildTyped(raw, TagPyProcedureCall, pyProcedureCallRequired)
	if err != nil {
		return nil, err
	}
	command, _ := raw.Get("command")
	return &PyProcedureCall{typed: t, Command: command}, nil
}

// TclProcedureResult is the child's response to the immediately preceding
// PyProcedureCall. ErrCode is "0" on success, non-zero otherwise.
type TclProcedureResult struct {
	typed
	ErrCode string
	Result  string
	CmdIdx  string
}

var tclProcedureResultRequired = []string{"err_code", "result", "cmd_idx"}

func NewTclProcedureResult(errCode, result, cmdIdx string) *TclProcedureResult {
	t := newTyped(TagTclProcedureResult, map[string]string{
		"err_code": errCode,
		"result":   result,
		"cmd_idx":  cmdIdx,
	})
	return &TclProcedureResult{typed: t, ErrCode: errCode, Result: result, CmdIdx: cmdIdx}
}

func (*TclProcedureResult) Tag() Tag { return TagTclProcedureResult }

func TclProcedureResultFromRaw(raw *RawMessage) (*TclProcedureResult, error) {
	t, err := buildTyped(raw, TagTclProcedureResult, tclProcedureResultRequired)
	if err != nil {
		return nil, err
	}
	errCode, _ := raw.Get("err_code")
	result, _ := raw.Get("result")
	cmdIdx, _ := raw.Get("cmd_idx")
	return &TclProcedureResult{typed: t, ErrCode: errCode, Result: result, CmdIdx: cmdIdx}, nil
}

// PyExit is sent by the driver to request termination (quit="1") or to
// hand control to interactive use inside the child (quit="0").
type PyExit struct {
	typed
	Quit string
}

var pyExitRequired = []string{"quit"}

func NewPyExit(quit string) *PyExit {
	t := newTyped(TagPyExit, map[string]string{"quit": quit})
	return &PyExit{typed: t, Quit: quit}
}

func (*PyExit) Tag() Tag { return TagPyExit }

func PyExitFromRaw(raw *RawMessage) (*PyExit, error) {
	t, err := buildTyped(raw, TagPyExit, pyExitRequired)
	if err != nil {
		return nil, err
	}
	quit, _ := raw.Get("quit")
	return &PyExit{typed: t, Quit: quit}, nil
}

// FromRaw tries each tag in permitted in order and returns the first
// message that accepts raw. If none accept it, ErrWrongMessageClass is
// returned — the Go form of RawMessage.to_message's "try this list of
// permitted tags" helper.
func FromRaw(raw *RawMessage, permitted ...Tag) (Message, error) {
	for _, tag := range permitted {
		switch tag {
		case TagTclHello:
			if m, err := TclHelloFromRaw(raw); err == nil {
				return m, nil
			}
		case TagPyProcedureCall:
			if m, err := PyProcedureCallFromRaw(raw); err == nil {
				return m, nil
			}
		case TagTclProcedureResult:
			if m, err := TclProcedureResultFromRaw(raw); err == nil {
				return m, nil
			}
		case TagPyExit:
			if m, err := PyExitFromRaw(raw); err == nil {
				return m, nil
			}
		}
	}
	class, _ := raw.Class()
	return nil, fmt.Errorf("%w: class %q not among permitted tags %v", ErrWrongMessageClass, class, permitted)
}
