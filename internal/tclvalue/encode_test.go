package tclvalue

import (
	"fmt"
	"testing"
)

type fakeRef struct {
	idx   int
	value string
}

func (f fakeRef) RefString() string   { return fmt.Sprintf("$cmd_results(%d)", f.idx) }
func (f fakeRef) StringValue() string { return f.value }

func TestEncodeScalar(t *testing.T) {
	got := Encode("just a string", false)
	want := "{just a string}"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestEncodeSequence(t *testing.T) {
	got := Encode([]any{"hello", "world"}, false)
	want := "{{hello} {world}}"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestEncodeMapping(t *testing.T) {
	got := Encode([]Pair{{"a", "b"}, {"c", "d"}}, false)
	want := "{{a} {b} {c} {d}}"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestEncodeBraceEscape(t *testing.T) {
	got := Encode("a{b}c", false)
	want := `{a\{b\}c}`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestEncodeHandleTopLevel(t *testing.T) {
	ref := fakeRef{idx: 42, value: "a b c d"}
	got := Encode(ref, false)
	want := "$cmd_results(42)"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestEncodeRawBypassesEncoding(t *testing.T) {
	got := Encode(Raw("{a b c d}"), false)
	want := "{a b c d}"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	got = Encode([]any{Raw("$cmd_results(3)"), "x"}, false)
	want = `{$cmd_results(3) {x}}`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestEncodeHandleNested(t *testing.T) {
	ref := fakeRef{idx: 42, value: "a b c d"}
	got := Encode([]any{ref, "hello"}, false)
	want := `{{a b c d} {hello}}`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
