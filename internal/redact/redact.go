// Package redact scrubs credential-shaped substrings out of text before it
// is logged. Commands and results evaluated against the Tcl child can
// legitimately carry secrets (a password set via env-sourced config, a
// token passed as a command argument); this package keeps those values out
// of the command/retval/error log lines the session emits, the same way
// config state is stripped of its Env map before it crosses a trust
// boundary elsewhere in this codebase.
package redact

import "regexp"

// sensitiveKey matches "-password value"/"password=value"-style fragments
// where key looks like a credential name, case-insensitively.
var sensitiveKey = regexp.MustCompile(`(?i)(-{0,2}(?:password|passwd|token|secret|api[-_]?key|auth)\s*[= ]\s*)(\S+)`)

const redacted = "${1}REDACTED"

// Text returns s with any credential-shaped "key=value" or "-key value"
// fragment replaced by a redacted placeholder. Unrelated text is returned
// unchanged.
func Text(s string) string {
	return sensitiveKey.ReplaceAllString(s, redacted)
}
