package tui

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/sy1125/MyApp/pkg/client"
	"github.com/sy1125/MyApp/pkg/domain"
)

// formatUntil renders the time left before t, e.g. "in 14m" or "expired".
func formatUntil(t, now time.Time) string {
	d := t.Sub(now)
	switch {
	case d <= 0:
		return "expired"
	case d < time.Minute:
		return "in <1m"
	case d < time.Hour:
		return fmt.Sprintf("in %dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("in %dh", int(d.Hours()))
	default:
		return fmt.Sprintf("in %dd", int(d.Hours()/24))
	}
}

// formatLocation renders a coordinate pair with five decimals (about 1m).
func formatLocation(l domain.Location) string {
	return fmt.Sprintf("%.5f, %.5f", l.Latitude, l.Longitude)
}

// truncStr truncates a string to maxLen runes, appending an ellipsis if needed.
func truncStr(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen-1]) + "…"
}

// errText picks the message to show the driver for err: the server's own
// message when it sent one, otherwise a short description.
func errText(err error) string {
	if msg := client.Message(err); msg != "" {
		return msg
	}
	switch {
	case client.IsNetwork(err):
		return "network unavailable, try again"
	case client.IsServerError(err):
		return "server error, try again"
	}
	return err.Error()
}
