package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

func printHelp(out io.Writer) {
	title := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#fabe3c")).
		Bold(true).
		Render("R I D E R")

	cmdStyle := lipgloss.NewStyle().Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	commands := []struct{ cmd, desc string }{
		{"rider", "Open the driver console"},
		{"rider logout", "Sign out and forget the stored session"},
		{"rider signup", "Open the sign-up page in your browser"},
		{"rider version", "Show version"},
		{"rider help", "You are here"},
	}

	fmt.Fprintf(out, "\n  %s\n\n  Commands:\n", title)
	for _, c := range commands {
		fmt.Fprintf(out, "    %s  %s\n", cmdStyle.Render(fmt.Sprintf("%-20s", c.cmd)), descStyle.Render(c.desc))
	}

	env := []struct{ key, desc string }{
		{"RIDER_API_URL", "Backend base URL (default http://localhost:3105)"},
		{"RIDER_WS_URL", "Order channel URL (default derived from the API URL)"},
		{"RIDER_HOME", "Session and log directory (default ~/.rider)"},
		{"RIDER_LOG_LEVEL", "debug, info, warn or error"},
		{"RIDER_PUSH_TOKEN", "Device push token to register after sign-in"},
	}
	fmt.Fprintf(out, "\n  Environment:\n")
	for _, e := range env {
		fmt.Fprintf(out, "    %s  %s\n", cmdStyle.Render(fmt.Sprintf("%-20s", e.key)), descStyle.Render(e.desc))
	}
	fmt.Fprintln(out)
}
