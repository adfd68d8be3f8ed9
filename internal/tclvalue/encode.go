// Package tclvalue implements the total encoding function that turns Go
// values into Tcl brace-quoted source text.
package tclvalue

import (
	"fmt"
	"strings"
)

// RemoteRef is satisfied by internal/handle.Handle. It is declared here,
// rather than importing the handle package directly, so that tclvalue has
// no dependency on the remote-handle model: handle.Handle depends on
// tclvalue, not the other way around.
type RemoteRef interface {
	// RefString returns the "$cmd_results(<idx>)" form used when the
	// handle appears as a top-level encoder argument.
	RefString() string
	// StringValue returns the handle's plain string value, used when the
	// handle appears nested inside a sequence or mapping.
	StringValue() string
}

// Pair is one key/value entry of an ordered mapping passed to Encode. Go's
// map type does not preserve insertion order, so callers that need
// order-sensitive mapping encoding must build a []Pair instead of a map.
type Pair struct {
	Key   any
	Value any
}

// Raw is Tcl source text that is already fully rendered and must be
// inserted verbatim, bypassing encoding entirely. internal/handle uses this
// to splice a call receiver's brace-quoted value into an argument list
// without it being re-escaped or substituted by identity.
type Raw string

// escapeBraces prefixes every '{' and '}' in s with a backslash.
func escapeBraces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '{' || r == '}' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Encode renders obj as Tcl source text. nested must be false for top-level
// calls (the default call from a driver method) and true when Encode
// recurses into a sequence or mapping element. Cases: Raw is returned
// verbatim; []any becomes "{e1 e2 ...}" with each element encoded nested;
// []Pair is flattened to k1 v1 k2 v2 ... and encoded as a sequence; a
// RemoteRef becomes "$cmd_results(<idx>)" at top level and its brace-quoted
// string value when nested (inside a Tcl list the braces would quote the
// dollar reference literally); anything else is fmt.Sprint'ed, its braces
// backslash-escaped, and wrapped in braces.
func Encode(obj any, nested bool) string {
	switch v := obj.(type) {
	case Raw:
		return string(v)
	case []any:
		return encodeSequence(v)
	case []Pair:
		return encodeMapping(v)
	case RemoteRef:
		if !nested {
			return v.RefString()
		}
		return wrapScalar(v.StringValue())
	default:
		return wrapScalar(fmt.Sprint(obj))
	}
}

func encodeSequence(elems []any) string {
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = Encode(e, true)
	}
	return "{" + strings.Join(parts, " ") + "}"
}

func encodeMapping(pairs []Pair) string {
	flat := make([]any, 0, len(pairs)*2)
	for _, p := range pairs {
		flat = append(flat, p.Key, p.Value)
	}
	return encodeSequence(flat)
}

func wrapScalar(s string) string {
	return "{" + escapeBraces(s) + "}"
}
