package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	// Sunday
	now := time.Date(2026, 3, 1, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		in   string
		want string
	}{
		{"2026-04-10", "2026-04-10"},
		{"today", "2026-03-01"},
		{"tomorrow", "2026-03-02"},
		{"in 2 weeks", "2026-03-15"},
	}
	for _, tt := range tests {
		got, err := ParseDate(tt.in, now)
		if err != nil {
			t.Errorf("ParseDate(%q) failed: %v", tt.in, err)
			continue
		}
		if FormatDay(got) != tt.want {
			t.Errorf("ParseDate(%q) = %s, want %s", tt.in, FormatDay(got), tt.want)
		}
	}

	for _, bad := range []string{"", "   ", "gibberish"} {
		if _, err := ParseDate(bad, now); err == nil {
			t.Errorf("ParseDate(%q) succeeded", bad)
		}
	}
}

func TestInit_NonTerminalIsPlain(t *testing.T) {
	Init(&bytes.Buffer{})
	if got := RenderFail("boom"); got != "boom" {
		t.Errorf("RenderFail() = %q, want plain text", got)
	}
	if IsTerminal(&bytes.Buffer{}) {
		t.Error("a buffer is not a terminal")
	}
}

func TestTable(t *testing.T) {
	Init(&bytes.Buffer{})
	out := Table([]string{"ID", "SUMMARY"}, [][]string{{"primary", "Me"}, {"b", "Birthdays"}})
	for _, want := range []string{"ID", "SUMMARY", "primary", "Birthdays"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}
