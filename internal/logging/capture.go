package logging

import (
	"regexp"
	"strings"
)

const (
	// MaxLineLength is the maximum length of a captured line before truncation.
	MaxLineLength = 4096
)

// ansiPattern matches ANSI escape sequences (CSI color/cursor codes) that
// terminal-oriented libraries emit even when writing into a pipe.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

// LineFilter transforms a captured output line before it is logged.
// Returning an empty string drops the line.
type LineFilter func(line string) string

// StripANSI removes ANSI escape sequences from a line.
func StripANSI(line string) string {
	return ansiPattern.ReplaceAllString(line, "")
}

// Truncate caps a line at MaxLineLength.
func Truncate(line string) string {
	if len(line) > MaxLineLength {
		return line[:MaxLineLength] + "...(truncated)"
	}
	return line
}

// Chain composes filters left to right, short-circuiting on a dropped line.
func Chain(filters ...LineFilter) LineFilter {
	return func(line string) string {
		for _, f := range filters {
			if f == nil {
				continue
			}
			line = f(line)
			if line == "" {
				return ""
			}
		}
		return line
	}
}

// CaptureFilter builds the filter applied to every line captured from a
// subsystem's stdout/stderr pipes. ANSI stripping is optional because some
// subsystems emit plain text only and the regexp pass is not free.
func CaptureFilter(stripANSI bool, custom LineFilter) LineFilter {
	filters := make([]LineFilter, 0, 3)
	if stripANSI {
		filters = append(filters, StripANSI)
	}
	filters = append(filters, Truncate)
	if custom != nil {
		filters = append(filters, custom)
	}
	chained := Chain(filters...)
	return func(line string) string {
		return strings.TrimRight(chained(line), "\r")
	}
}
