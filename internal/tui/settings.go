package tui

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sy1125/MyApp/pkg/domain"
)

// signedOutMsg is sent once SignOut has completed.
type signedOutMsg struct{}

type settingsModel struct {
	core    Core
	version string
	sess    domain.Session
	expiry  time.Time
	hasExp  bool
	now     func() time.Time
}

func newSettingsModel(c Core, version string) settingsModel {
	return settingsModel{core: c, version: version, now: time.Now}
}

func (m settingsModel) refresh() settingsModel {
	m.sess = m.core.CurrentSession()
	m.expiry, m.hasExp = m.core.AccessExpiry()
	return m
}

func (m settingsModel) Update(msg tea.Msg) (settingsModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "s" {
		c := m.core
		return m, func() tea.Msg {
			c.SignOut(context.Background())
			return signedOutMsg{}
		}
	}
	return m, nil
}

func (m settingsModel) View() string {
	row := func(label, value string) string {
		return "   " + metaStyle.Render(label) + dimStyle.Render(value) + "\n"
	}
	var sb strings.Builder
	sb.WriteString("\n " + sectionHeaderStyle.Render("── ACCOUNT ──") + "\n\n")
	name := m.sess.Name
	if name == "" {
		name = "-"
	}
	sb.WriteString(row("name     ", name))
	sb.WriteString(row("email    ", m.sess.Email))
	if m.hasExp {
		left := formatUntil(m.expiry, m.now())
		if left != "expired" {
			left = "expires " + left
		}
		sb.WriteString(row("token    ", left))
	}
	if m.version != "" {
		sb.WriteString(row("version  ", m.version))
	}
	sb.WriteString("\n   " + helpEntry("s", "sign out") + "\n")
	return sb.String()
}
