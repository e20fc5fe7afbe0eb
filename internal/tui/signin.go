package tui

import (
	"context"
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sy1125/MyApp/internal/session"
	"github.com/sy1125/MyApp/pkg/client"
)

// signedInMsg carries the result of a Login call.
type signedInMsg struct {
	err error
}

type signInField int

const (
	fieldEmail signInField = iota
	fieldPassword
)

type signInModel struct {
	core       Core
	email      string
	password   string
	focus      signInField
	submitting bool
	err        string
	notice     string
	width      int
}

func newSignInModel(c Core, notice string) signInModel {
	return signInModel{core: c, notice: notice}
}

func (m signInModel) submit() (signInModel, tea.Cmd) {
	if m.submitting {
		return m, nil
	}
	m.submitting = true
	m.err = ""
	c, email, password := m.core, m.email, m.password
	return m, func() tea.Msg {
		return signedInMsg{err: c.Login(context.Background(), email, password)}
	}
}

func (m signInModel) Update(msg tea.Msg) (signInModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case signedInMsg:
		m.submitting = false
		if msg.err != nil {
			m.err = signInErrText(msg.err)
			if errors.Is(msg.err, session.ErrMissingEmail) {
				m.focus = fieldEmail
			} else if errors.Is(msg.err, session.ErrMissingPassword) {
				m.focus = fieldPassword
			}
			return m, nil
		}
		m.password = ""
		m.notice = ""
		return m, nil

	case tea.KeyMsg:
		if m.submitting {
			return m, nil
		}
		if msg.Paste {
			if m.focus == fieldEmail {
				m.email = pasteRunes(m.email, msg.Runes)
			} else {
				m.password = pasteRunes(m.password, msg.Runes)
			}
			return m, nil
		}
		switch msg.String() {
		case "tab", "shift+tab", "up", "down":
			m.focus = (m.focus + 1) % 2
		case "enter":
			if m.focus == fieldEmail {
				m.focus = fieldPassword
				return m, nil
			}
			return m.submit()
		default:
			if m.focus == fieldEmail {
				m.email = editRune(m.email, msg.String())
			} else {
				m.password = editRune(m.password, msg.String())
			}
		}
	}
	return m, nil
}

// signInErrText maps a Login failure to the form's error line.
func signInErrText(err error) string {
	switch {
	case errors.Is(err, session.ErrMissingEmail):
		return "enter your email"
	case errors.Is(err, session.ErrMissingPassword):
		return "enter your password"
	case client.IsUnauthorized(err), client.IsStatus(err, 404):
		if msg := client.Message(err); msg != "" {
			return msg
		}
		return "wrong email or password"
	}
	return errText(err)
}

func (m signInModel) View() string {
	formWidth := min(44, max(m.width-4, 30))
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Background(surfaceColor).
		Padding(1, 2).
		Width(formWidth)

	field := func(label, value, placeholder string, focused bool) string {
		prompt := metaStyle.Render("  ")
		if focused {
			prompt = inputPromptStyle.Render("> ")
		}
		var shown string
		switch {
		case value == "" && !focused:
			shown = inputPlaceholderStyle.Render(placeholder)
		case focused:
			shown = selectedStyle.Render(value) + accentStyle.Render("█")
		default:
			shown = normalStyle.Render(value)
		}
		return prompt + dimStyle.Render(label) + "\n   " + shown
	}

	var sb strings.Builder
	sb.WriteString(selectedStyle.Render("Sign in") + "\n\n")
	sb.WriteString(field("email", m.email, "driver@example.com", m.focus == fieldEmail) + "\n\n")
	sb.WriteString(field("password", maskSecret(m.password), "password", m.focus == fieldPassword) + "\n")

	switch {
	case m.submitting:
		sb.WriteString("\n" + pendingStyle.Render("signing in..."))
	case m.err != "":
		sb.WriteString("\n" + rejectStyle.Render(m.err))
	}

	out := "\n"
	if m.notice != "" {
		out += " " + pendingStyle.Render(m.notice) + "\n\n"
	}
	out += box.Render(sb.String())
	out += "\n " + metaStyle.Render("no account? run `rider signup`")
	return out
}
