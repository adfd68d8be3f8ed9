package handle

import (
	"testing"

	"github.com/tcldrv/tcldrv/internal/tclvalue"
)

type fakeCaller struct {
	pos     ObjectPosition
	lastCmd string
	lastArgs []any
}

func (c *fakeCaller) ObjectPosition() ObjectPosition { return c.pos }

func (c *fakeCaller) ProcCall(name string, args []any, kwargs []tclvalue.Pair) (*Handle, error) {
	c.lastCmd = name
	c.lastArgs = args
	return New(c, 99, "ok", name), nil
}

func TestCallSecondPositionSplicesPlainReceiverValue(t *testing.T) {
	caller := &fakeCaller{pos: PositionSecond}
	h := New(caller, 3, "a b c d", "set x {a b c d}")

	if _, err := h.Call("expr", []any{"/", 2}, nil); err != nil {
		t.Fatalf("Call: %v", err)
	}

	if caller.lastCmd != "expr" {
		t.Fatalf("name = %q, want expr", caller.lastCmd)
	}
	if len(caller.lastArgs) != 3 {
		t.Fatalf("args = %v, want 3 elements", caller.lastArgs)
	}
	got := tclvalue.Encode(caller.lastArgs[0], false)
	want := "{a b c d}"
	if got != want {
		t.Fatalf("receiver arg rendered as %q, want %q (plain value, not identity substitution)", got, want)
	}
}

func TestCallLastPositionAppendsReceiver(t *testing.T) {
	caller := &fakeCaller{pos: PositionLast}
	h := New(caller, 3, "a b c d", "set x {a b c d}")

	if _, err := h.Call("reverse", []any{"extra"}, nil); err != nil {
		t.Fatalf("Call: %v", err)
	}

	if len(caller.lastArgs) != 2 {
		t.Fatalf("args = %v, want 2 elements", caller.lastArgs)
	}
	last := tclvalue.Encode(caller.lastArgs[1], false)
	if last != "{a b c d}" {
		t.Fatalf("last arg rendered as %q, want %q", last, "{a b c d}")
	}
}

func TestCallFirstPositionUsesReceiverAsCommandName(t *testing.T) {
	caller := &fakeCaller{pos: PositionFirst}
	h := New(caller, 3, "a b c d", "set x {a b c d}")

	if _, err := h.Call("method", nil, nil); err != nil {
		t.Fatalf("Call: %v", err)
	}

	if caller.lastCmd != "$cmd_results(3)" {
		t.Fatalf("name = %q, want $cmd_results(3)", caller.lastCmd)
	}
	if len(caller.lastArgs) != 1 || caller.lastArgs[0] != "method" {
		t.Fatalf("args = %v, want [method]", caller.lastArgs)
	}
}
