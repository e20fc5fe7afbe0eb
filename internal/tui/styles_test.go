package tui

import (
	"strings"
	"testing"
)

func TestRenderShimmerLogoContainsLetters(t *testing.T) {
	for _, frame := range []int{0, 1, 17, 1000} {
		out := renderShimmerLogo(frame)
		for _, ch := range "RIDER" {
			if !strings.ContainsRune(out, ch) {
				t.Errorf("frame %d: logo missing %q: %q", frame, ch, out)
			}
		}
	}
}

func TestClampByte(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{-5, 0},
		{0, 0},
		{127.9, 127},
		{255, 255},
		{300, 255},
	}
	for _, tc := range tests {
		if got := clampByte(tc.in); got != tc.want {
			t.Errorf("clampByte(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestHelpEntryFormat(t *testing.T) {
	result := helpEntry("q", "quit")
	if !strings.Contains(result, "q") {
		t.Errorf("helpEntry('q','quit') does not contain key 'q': %q", result)
	}
	if !strings.Contains(result, "quit") {
		t.Errorf("helpEntry('q','quit') does not contain label 'quit': %q", result)
	}
}

func TestHelpEntryMultipleKeys(t *testing.T) {
	tests := []struct {
		key   string
		label string
	}{
		{"j/k", "nav"},
		{"a", "accept"},
		{"x", "reject"},
		{"y", "copy id"},
	}

	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			result := helpEntry(tc.key, tc.label)
			if !strings.Contains(result, tc.key) {
				t.Errorf("helpEntry(%q, %q) missing key", tc.key, tc.label)
			}
			if !strings.Contains(result, tc.label) {
				t.Errorf("helpEntry(%q, %q) missing label", tc.key, tc.label)
			}
		})
	}
}

func TestHelpItems(t *testing.T) {
	if items := helpItems(""); len(items) != 0 {
		t.Errorf("helpItems(\"\") = %v, want none", items)
	}
	items := helpItems("https://rider.example.com/signup")
	if len(items) != 1 || items[0].desc != "rider.example.com/signup" {
		t.Errorf("helpItems() = %+v, want one sign-up link", items)
	}
}

func TestHelpViewListsCommandsAndCursor(t *testing.T) {
	out := helpView(helpItems("https://rider.example.com/signup"), 0)
	for _, want := range []string{"rider logout", "rider signup", "Accept the selected order", "> "} {
		if !strings.Contains(out, want) {
			t.Errorf("helpView missing %q:\n%s", want, out)
		}
	}
}
