package redact

import "strings"

// Marker replaces the value of a sensitive field.
const Marker = "[REDACTED]"

// TruncationMarker terminates an over-long string value.
const TruncationMarker = "...[TRUNCATED]"

// maxValueLength bounds string values attached to log context.
const maxValueLength = 100

// sensitiveFragments flags field names whose values identify a subject or
// expose integrity material.
var sensitiveFragments = []string{
	"identifier",
	"checksum",
	"tag",
	"hash",
	"secret",
}

// Sensitive reports whether a field name must not be logged verbatim.
func Sensitive(name string) bool {
	lower := strings.ToLower(name)
	for _, fragment := range sensitiveFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// Truncate caps s at maxValueLength characters, appending TruncationMarker
// when anything was cut.
func Truncate(s string) string {
	if len(s) <= maxValueLength {
		return s
	}
	return s[:maxValueLength] + TruncationMarker
}

// Map returns a copy of m safe for log context: sensitive fields replaced
// with Marker, over-long values truncated. A nil map stays nil.
func Map(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if Sensitive(k) {
			out[k] = Marker
			continue
		}
		out[k] = Truncate(v)
	}
	return out
}
