package logging

import (
	"strings"
	"testing"
)

func TestStripANSI(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello world", "hello world"},
		{"color", "\x1b[31mred\x1b[0m text", "red text"},
		{"cursor", "\x1b[2J\x1b[Hcleared", "cleared"},
		{"bold_multi", "\x1b[1;32mok\x1b[0m", "ok"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripANSI(tt.in); got != tt.want {
				t.Errorf("StripANSI(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", MaxLineLength+100)
	got := Truncate(long)
	if len(got) != MaxLineLength+len("...(truncated)") {
		t.Errorf("truncated length = %d", len(got))
	}
	if !strings.HasSuffix(got, "...(truncated)") {
		t.Error("missing truncation marker")
	}

	short := "short line"
	if Truncate(short) != short {
		t.Error("short line should pass through unchanged")
	}
}

func TestChainDropsOnEmpty(t *testing.T) {
	calls := 0
	drop := func(string) string { return "" }
	count := func(s string) string { calls++; return s }

	out := Chain(drop, count)("anything")
	if out != "" {
		t.Errorf("expected dropped line, got %q", out)
	}
	if calls != 0 {
		t.Error("filter after a drop should not run")
	}
}

func TestCaptureFilter(t *testing.T) {
	f := CaptureFilter(true, nil)
	if got := f("\x1b[33mwarn\x1b[0m\r"); got != "warn" {
		t.Errorf("got %q, want %q", got, "warn")
	}

	// Custom filter can rewrite lines.
	upper := CaptureFilter(false, strings.ToUpper)
	if got := upper("hi"); got != "HI" {
		t.Errorf("got %q, want %q", got, "HI")
	}

	// Custom filter can drop lines.
	dropper := CaptureFilter(false, func(s string) string {
		if strings.Contains(s, "secret") {
			return ""
		}
		return s
	})
	if got := dropper("a secret thing"); got != "" {
		t.Errorf("expected drop, got %q", got)
	}
}
