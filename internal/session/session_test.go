package session

import (
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tcldrv/tcldrv/internal/adapter"
	"github.com/tcldrv/tcldrv/internal/handle"
	"github.com/tcldrv/tcldrv/internal/tclvalue"
)

func TestRenderCommandPositionalAndKeyword(t *testing.T) {
	got := renderCommand("list", []any{"hello", "world"}, []tclvalue.Pair{{Key: "whats", Value: "up"}})
	want := "list -whats {up} {hello} {world}"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRenderCommandBoolKeyword(t *testing.T) {
	got := renderCommand("cmd", nil, []tclvalue.Pair{{Key: "force", Value: true}})
	if got != "cmd -force" {
		t.Fatalf("got %q, want %q", got, "cmd -force")
	}

	got = renderCommand("cmd", nil, []tclvalue.Pair{{Key: "force", Value: false}})
	if got != "cmd" {
		t.Fatalf("got %q, want %q", got, "cmd")
	}
}

func TestRenderCommandHandleArgUsesIdentitySubstitution(t *testing.T) {
	h := handle.New(nil, 7, "21", "expr 44 - 2")
	got := renderCommand("expr", []any{h, "/", 2}, nil)
	want := "expr $cmd_results(7) {/} {2}"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func requireTclsh(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("tclsh")
	if err != nil {
		t.Skip("tclsh not found on PATH, skipping end-to-end test")
	}
	return path
}

func scriptPath(t *testing.T) string {
	t.Helper()
	abs, err := filepath.Abs("testdata/notcl.tcl")
	if err != nil {
		t.Fatalf("resolve testdata path: %v", err)
	}
	return abs
}

func TestE2EExprArithmetic(t *testing.T) {
	tclshPath := requireTclsh(t)
	err := Run(adapter.Tclsh{Path: tclshPath}, Options{ScriptPath: scriptPath(t)}, func(s *Session) error {
		h, err := s.ProcCall("expr", []any{9, "+", 3, "*", 11}, nil)
		if err != nil {
			return err
		}
		n, err := h.Int()
		if err != nil {
			return err
		}
		if n != 108 {
			t.Fatalf("expr result = %d, want 108", n)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestE2ESetAndReadVariable(t *testing.T) {
	tclshPath := requireTclsh(t)
	err := Run(adapter.Tclsh{Path: tclshPath}, Options{ScriptPath: scriptPath(t)}, func(s *Session) error {
		if _, err := s.ProcCall("set", []any{"myvar", "ThisIsATest"}, nil); err != nil {
			return err
		}
		h, err := s.ProcCall("set", []any{"myvar"}, nil)
		if err != nil {
			return err
		}
		if h.String() != "ThisIsATest" {
			t.Fatalf("set myvar = %q, want ThisIsATest", h.String())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestE2ELreverse(t *testing.T) {
	tclshPath := requireTclsh(t)
	err := Run(adapter.Tclsh{Path: tclshPath}, Options{ScriptPath: scriptPath(t)}, func(s *Session) error {
		h, err := s.ProcCall("lreverse", []any{[]any{1, 2, 3}}, nil)
		if err != nil {
			return err
		}
		if h.String() != "3 2 1" {
			t.Fatalf("lreverse result = %q, want %q", h.String(), "3 2 1")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestE2EDictMerge(t *testing.T) {
	tclshPath := requireTclsh(t)
	err := Run(adapter.Tclsh{Path: tclshPath}, Options{ScriptPath: scriptPath(t)}, func(s *Session) error {
		h, err := s.ProcCall("dict", []any{
			"merge",
			[]tclvalue.Pair{{Key: "key1", Value: "value1"}},
			[]tclvalue.Pair{{Key: "key2", Value: "value2"}, {Key: "key3", Value: "value3"}},
		}, nil)
		if err != nil {
			return err
		}
		got := strings.Fields(h.String())
		want := []string{"key1", "value1", "key2", "value2", "key3", "value3"}
		if len(got) != len(want) {
			t.Fatalf("dict merge result = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("dict merge result = %v, want %v", got, want)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestE2EHandleReuseAcrossEvaluations(t *testing.T) {
	tclshPath := requireTclsh(t)
	err := Run(adapter.Tclsh{Path: tclshPath}, Options{ScriptPath: scriptPath(t)}, func(s *Session) error {
		v1, err := s.ProcCall("expr", []any{44, "-", 2}, nil)
		if err != nil {
			return err
		}
		v2, err := s.ProcCall("expr", []any{v1, "/", 2}, nil)
		if err != nil {
			return err
		}
		n, err := v2.Int()
		if err != nil {
			return err
		}
		if n != 21 {
			t.Fatalf("expr v1 / 2 = %d, want 21", n)
		}

		v3, err := s.Eval("expr " + v1.RefString() + " / 2")
		if err != nil {
			return err
		}
		n3, err := v3.Int()
		if err != nil {
			return err
		}
		if n3 != 21 {
			t.Fatalf("raw eval with ref_str = %d, want 21", n3)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestE2EExitCodePropagates(t *testing.T) {
	tclshPath := requireTclsh(t)
	ranAfterExit := false
	err := Run(adapter.Tclsh{Path: tclshPath}, Options{ScriptPath: scriptPath(t)}, func(s *Session) error {
		if _, err := s.ProcCall("exit", []any{1}, nil); err != nil {
			return err
		}
		ranAfterExit = true
		return nil
	})
	if err == nil {
		t.Fatal("expected ChildProcessFailedError")
	}
	var failed *ChildProcessFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("got %v, want *ChildProcessFailedError", err)
	}
	if failed.ExitCode != 1 {
		t.Fatalf("ExitCode = %d, want 1", failed.ExitCode)
	}
	if ranAfterExit {
		t.Fatal("statement after exit command should not have run")
	}
}

func TestE2ETclErrorLeavesSessionUsable(t *testing.T) {
	tclshPath := requireTclsh(t)
	err := Run(adapter.Tclsh{Path: tclshPath}, Options{ScriptPath: scriptPath(t)}, func(s *Session) error {
		_, err := s.ProcCall("expr", []any{"*", "+"}, nil)
		var tclErr *TclError
		if !errors.As(err, &tclErr) {
			t.Fatalf("expected *TclError, got %v", err)
		}

		h, err := s.ProcCall("expr", []any{1, "+", 1}, nil)
		if err != nil {
			return err
		}
		n, err := h.Int()
		if err != nil {
			return err
		}
		if n != 2 {
			t.Fatalf("expr 1+1 = %d, want 2", n)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
}
