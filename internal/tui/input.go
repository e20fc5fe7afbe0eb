package tui

import (
	"unicode"
	"unicode/utf8"
)

// maxInputLen is the maximum number of runes allowed in form inputs.
const maxInputLen = 256

// editRune processes a keystroke for inline text editing.
// Handles backspace (rune-aware) and single printable characters.
// Returns the text unchanged for non-printable keys (enter, esc, etc.).
// Input is clamped to maxInputLen runes.
func editRune(text string, key string) string {
	switch key {
	case "backspace":
		if len(text) > 0 {
			runes := []rune(text)
			return string(runes[:len(runes)-1])
		}
		return text
	default:
		if utf8.RuneCountInString(key) == 1 {
			if utf8.RuneCountInString(text) >= maxInputLen {
				return text
			}
			return text + key
		}
		return text
	}
}

// pasteRunes appends pasted text, dropping control characters and clamping
// to maxInputLen runes.
func pasteRunes(text string, runes []rune) string {
	n := utf8.RuneCountInString(text)
	out := []rune(text)
	for _, r := range runes {
		if n >= maxInputLen {
			break
		}
		if unicode.IsControl(r) {
			continue
		}
		out = append(out, r)
		n++
	}
	return string(out)
}

// truncateToHeight limits output to maxLines newline-delimited lines.
// Returns the original string if it fits or maxLines is <= 0.
func truncateToHeight(s string, maxLines int) string {
	if maxLines <= 0 {
		return s
	}
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			n++
			if n >= maxLines {
				return s[:i+1]
			}
		}
	}
	return s
}

// maskSecret renders a password as one bullet per rune.
func maskSecret(s string) string {
	out := make([]rune, utf8.RuneCountInString(s))
	for i := range out {
		out[i] = '•'
	}
	return string(out)
}
