package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sy1125/MyApp/internal/browser"
	"github.com/sy1125/MyApp/internal/session"
	"github.com/sy1125/MyApp/pkg/domain"
)

// Core is the application state the console drives.
type Core interface {
	Login(ctx context.Context, email, password string) error
	SignOut(ctx context.Context)
	Accept(ctx context.Context, orderID string) error
	Reject(orderID string) error
	Pending() []domain.Order
	Accepted() []domain.Order
	Changes() <-chan struct{}
	CurrentSession() domain.Session
	AccessExpiry() (time.Time, bool)
	Connected() bool
}

type view int

const (
	viewSignIn view = iota
	viewOrders
	viewDelivery
	viewSettings
)

// ordersChangedMsg is sent whenever the order registry changed.
type ordersChangedMsg struct{}

func waitForChanges(c Core) tea.Cmd {
	ch := c.Changes()
	return func() tea.Msg {
		<-ch
		return ordersChangedMsg{}
	}
}

// Options configures the console.
type Options struct {
	Version string
	// Notice is shown on the sign-in form, e.g. after an expired session.
	Notice    string
	SignupURL string
}

// App is the root Bubbletea model.
type App struct {
	core       Core
	opts       Options
	view       view
	signIn     signInModel
	orders     ordersModel
	delivery   deliveryModel
	settings   settingsModel
	helpOpen   bool
	helpCursor int
	width      int
	height     int
	frame      int // logo shimmer animation frame
}

// NewApp creates the console. It opens on the orders tab when a session is
// already active and on the sign-in form otherwise.
func NewApp(c Core, opts Options) App {
	a := App{
		core:     c,
		opts:     opts,
		signIn:   newSignInModel(c, opts.Notice),
		orders:   newOrdersModel(c),
		settings: newSettingsModel(c, opts.Version),
	}
	if c.CurrentSession().Active() {
		a.view = viewOrders
	}
	return a.refresh()
}

func (a App) Init() tea.Cmd {
	return tea.Batch(shimmerTickCmd(), waitForChanges(a.core))
}

// refresh pulls the registry and session state into the sub-models.
func (a App) refresh() App {
	a.orders = a.orders.setOrders(a.core.Pending())
	a.orders.connected = a.core.Connected()
	a.delivery = a.delivery.setOrders(a.core.Accepted())
	a.settings = a.settings.refresh()
	if a.view != viewSignIn && !a.core.CurrentSession().Active() {
		a.toSignIn("")
	}
	return a
}

func (a *App) toSignIn(notice string) {
	a.view = viewSignIn
	a.signIn = newSignInModel(a.core, notice)
	a.signIn.width = a.width
	a.orders = newOrdersModel(a.core)
	a.orders.width, a.orders.height = a.width, a.height
	a.delivery = deliveryModel{width: a.width}
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// Chrome: header(1) + tabs(1) + help(1) = 3 lines
		bodyMsg := tea.WindowSizeMsg{Width: msg.Width, Height: msg.Height - 3}
		a.signIn, _ = a.signIn.Update(bodyMsg)
		a.orders, _ = a.orders.Update(bodyMsg)
		a.delivery, _ = a.delivery.Update(bodyMsg)
		return a, nil

	case shimmerTickMsg:
		a.frame++
		a.orders.connected = a.core.Connected()
		return a, shimmerTickCmd()

	case ordersChangedMsg:
		return a.refresh(), waitForChanges(a.core)

	case signedInMsg:
		a.signIn, _ = a.signIn.Update(msg)
		if msg.err == nil {
			a.view = viewOrders
		}
		return a.refresh(), nil

	case signedOutMsg:
		a.toSignIn("")
		return a, nil

	case acceptResultMsg:
		if errors.Is(msg.err, session.ErrSessionExpired) {
			a.toSignIn(msg.err.Error())
			return a, nil
		}
		a.orders, _ = a.orders.Update(msg)
		a = a.refresh()
		if msg.err == nil {
			a.view = viewDelivery
		}
		return a, nil

	case copyResultMsg:
		if a.view == viewDelivery {
			a.delivery, _ = a.delivery.Update(msg)
		} else {
			a.orders, _ = a.orders.Update(msg)
		}
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if a.helpOpen {
			return a.updateHelp(msg)
		}
		if a.view == viewSignIn {
			var cmd tea.Cmd
			a.signIn, cmd = a.signIn.Update(msg)
			return a, cmd
		}
		switch msg.String() {
		case "h", "?":
			a.helpOpen = true
			a.helpCursor = 0
			return a, nil
		case "q":
			return a, tea.Quit
		case "1":
			a.view = viewOrders
			return a, nil
		case "2":
			a.view = viewDelivery
			return a, nil
		case "3":
			a.view = viewSettings
			a.settings = a.settings.refresh()
			return a, nil
		}
	}

	var cmd tea.Cmd
	switch a.view {
	case viewSignIn:
		a.signIn, cmd = a.signIn.Update(msg)
	case viewOrders:
		a.orders, cmd = a.orders.Update(msg)
	case viewDelivery:
		a.delivery, cmd = a.delivery.Update(msg)
	case viewSettings:
		a.settings, cmd = a.settings.Update(msg)
	}
	return a, cmd
}

func (a App) updateHelp(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := helpItems(a.opts.SignupURL)
	switch msg.String() {
	case "h", "?", "esc":
		a.helpOpen = false
	case "q":
		return a, tea.Quit
	case "j", "down":
		if a.helpCursor < len(items)-1 {
			a.helpCursor++
		}
	case "k", "up":
		if a.helpCursor > 0 {
			a.helpCursor--
		}
	case "enter":
		if a.helpCursor < len(items) {
			browser.Open(items[a.helpCursor].url) //nolint:errcheck // best-effort browser open
		}
	}
	return a, nil
}

func (a App) View() string {
	logo := renderShimmerLogo(a.frame)
	logoPad := max((a.width-lipgloss.Width(logo))/2, 0)
	header := strings.Repeat(" ", logoPad) + logo

	var tabBar string
	var body, help string
	if a.view == viewSignIn {
		body = a.signIn.View()
		help = " " + helpEntry("tab", "next field") + "  " + helpEntry("enter", "sign in") + "  " + helpEntry("ctrl+c", "quit")
	} else {
		tabBar = a.renderTabs()
		switch a.view {
		case viewOrders:
			body = a.orders.View()
			help = " " + helpEntry("1-3", "tabs") + "  " + helpEntry("j/k", "nav") + "  " + helpEntry("enter", "details") + "  " + helpEntry("a", "accept") + "  " + helpEntry("x", "reject") + "  " + helpEntry("y", "copy id") + "  " + helpEntry("h", "help") + "  " + helpEntry("q", "quit")
		case viewDelivery:
			body = a.delivery.View()
			help = " " + helpEntry("1-3", "tabs") + "  " + helpEntry("j/k", "nav") + "  " + helpEntry("y", "copy id") + "  " + helpEntry("h", "help") + "  " + helpEntry("q", "quit")
		case viewSettings:
			body = a.settings.View()
			help = " " + helpEntry("1-3", "tabs") + "  " + helpEntry("s", "sign out") + "  " + helpEntry("h", "help") + "  " + helpEntry("q", "quit")
		}
	}

	if a.helpOpen {
		body = helpView(helpItems(a.opts.SignupURL), a.helpCursor)
		help = " " + helpEntry("j/k", "nav") + "  " + helpEntry("enter", "open") + "  " + helpEntry("esc", "close")
	}

	body = strings.TrimRight(truncateToHeight(body, a.height-3), "\n")
	return fmt.Sprintf("%s\n%s\n%s\n%s", header, tabBar, body, help)
}

func (a App) renderTabs() string {
	type tabEntry struct {
		key  string
		name string
		v    view
	}
	tabs := []tabEntry{
		{"1", "Orders", viewOrders},
		{"2", "Delivery", viewDelivery},
		{"3", "Settings", viewSettings},
	}
	counts := map[view]int{viewOrders: len(a.orders.pending), viewDelivery: len(a.delivery.accepted)}

	colWidth := a.width / len(tabs)
	var tabBar strings.Builder
	for _, t := range tabs {
		var label string
		if t.v == a.view {
			label = accentStyle.Render(t.key) + " " + selectedStyle.Underline(true).Render(t.name)
		} else {
			label = metaStyle.Render(t.key) + " " + dimStyle.Render(t.name)
		}
		if n := counts[t.v]; n > 0 {
			label += " " + priceStyle.Render(fmt.Sprintf("%d", n))
		}
		labelWidth := lipgloss.Width(label)
		leftPad := max((colWidth-labelWidth)/2, 0)
		rightPad := max(colWidth-labelWidth-leftPad, 0)
		tabBar.WriteString(strings.Repeat(" ", leftPad) + label + strings.Repeat(" ", rightPad))
	}
	return tabBar.String()
}
