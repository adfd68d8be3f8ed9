package adapter

import (
	"reflect"
	"testing"
)

func TestTclshDefaultsPath(t *testing.T) {
	got, err := Tclsh{}.Cmdline("/tmp/notcl.tcl")
	if err != nil {
		t.Fatalf("Cmdline: %v", err)
	}
	want := []string{"tclsh", "/tmp/notcl.tcl"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestTclshCustomPath(t *testing.T) {
	got, err := Tclsh{Path: "/opt/tcl/bin/tclsh8.6"}.Cmdline("/tmp/notcl.tcl")
	if err != nil {
		t.Fatalf("Cmdline: %v", err)
	}
	want := []string{"/opt/tcl/bin/tclsh8.6", "/tmp/notcl.tcl"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestVivadoCmdline(t *testing.T) {
	got, err := Vivado{}.Cmdline("/tmp/notcl.tcl")
	if err != nil {
		t.Fatalf("Cmdline: %v", err)
	}
	want := []string{"vivado", "-mode", "tcl", "-nojournal", "-source", "/tmp/notcl.tcl"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestYosysCmdline(t *testing.T) {
	got, err := Yosys{Path: "yosys-abc"}.Cmdline("/tmp/notcl.tcl")
	if err != nil {
		t.Fatalf("Cmdline: %v", err)
	}
	want := []string{"yosys-abc", "-c", "/tmp/notcl.tcl"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestCustomSubstitutesScriptToken(t *testing.T) {
	a := Custom{Argv: []string{"mytool", "--batch", "--source", "{{script}}", "--flag"}}
	got, err := a.Cmdline("/tmp/notcl.tcl")
	if err != nil {
		t.Fatalf("Cmdline: %v", err)
	}
	want := []string{"mytool", "--batch", "--source", "/tmp/notcl.tcl", "--flag"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestCustomAppendsScriptWhenTokenAbsent(t *testing.T) {
	a := Custom{Argv: []string{"mytool", "--batch"}}
	got, err := a.Cmdline("/tmp/notcl.tcl")
	if err != nil {
		t.Fatalf("Cmdline: %v", err)
	}
	want := []string{"mytool", "--batch", "/tmp/notcl.tcl"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestCustomEmptyArgvErrors(t *testing.T) {
	_, err := Custom{}.Cmdline("/tmp/notcl.tcl")
	if err == nil {
		t.Fatal("expected error for empty argv")
	}
}
