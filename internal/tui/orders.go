package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sy1125/MyApp/internal/orders"
	"github.com/sy1125/MyApp/internal/session"
	"github.com/sy1125/MyApp/pkg/domain"
)

// acceptResultMsg carries the server's answer to an accept.
type acceptResultMsg struct {
	orderID string
	err     error
}

// copyResultMsg reports a clipboard write.
type copyResultMsg struct {
	text string
	err  error
}

func copyCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return copyResultMsg{text: text, err: clipboard.WriteAll(text)}
	}
}

type ordersModel struct {
	core      Core
	pending   []domain.Order
	cursor    int
	detail    bool
	connected bool
	status    string
	statusErr bool
	width     int
	height    int
}

func newOrdersModel(c Core) ordersModel {
	return ordersModel{core: c}
}

// setOrders replaces the list, keeping the cursor on the same order when it
// is still pending.
func (m ordersModel) setOrders(list []domain.Order) ordersModel {
	var selected string
	if m.cursor < len(m.pending) {
		selected = m.pending[m.cursor].OrderID
	}
	m.pending = list
	m.cursor = 0
	for i, o := range list {
		if o.OrderID == selected {
			m.cursor = i
			break
		}
	}
	if len(list) == 0 {
		m.detail = false
	}
	return m
}

func (m ordersModel) selected() (domain.Order, bool) {
	if m.cursor < len(m.pending) {
		return m.pending[m.cursor], true
	}
	return domain.Order{}, false
}

func (m ordersModel) Update(msg tea.Msg) (ordersModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case acceptResultMsg:
		m.status, m.statusErr = acceptStatus(msg)
		return m, nil

	case copyResultMsg:
		if msg.err != nil {
			m.status, m.statusErr = "copy failed: "+msg.err.Error(), true
		} else {
			m.status, m.statusErr = "copied "+msg.text, false
		}
		return m, nil

	case tea.KeyMsg:
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m ordersModel) updateKeys(msg tea.KeyMsg) (ordersModel, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		if m.cursor < len(m.pending)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "enter":
		if len(m.pending) > 0 {
			m.detail = !m.detail
		}
	case "esc":
		m.detail = false
	case "a":
		o, ok := m.selected()
		if !ok || o.Tentative {
			return m, nil
		}
		m.status, m.statusErr = "accepting "+o.OrderID+"...", false
		c, id := m.core, o.OrderID
		return m, func() tea.Msg {
			return acceptResultMsg{orderID: id, err: c.Accept(context.Background(), id)}
		}
	case "x":
		o, ok := m.selected()
		if !ok || o.Tentative {
			return m, nil
		}
		if err := m.core.Reject(o.OrderID); err != nil {
			m.status, m.statusErr = errText(err), true
			return m, nil
		}
		m.status, m.statusErr = "rejected "+o.OrderID, false
		return m.setOrders(m.core.Pending()), nil
	case "y":
		if o, ok := m.selected(); ok {
			return m, copyCmd(o.OrderID)
		}
	}
	return m, nil
}

// acceptStatus renders the outcome of an accept for the status line.
func acceptStatus(msg acceptResultMsg) (string, bool) {
	var conflict *orders.ConflictError
	switch {
	case msg.err == nil:
		return "accepted " + msg.orderID, false
	case errors.As(msg.err, &conflict):
		if conflict.Message != "" {
			return conflict.Message, true
		}
		return "order " + msg.orderID + " was taken by another driver", true
	case errors.Is(msg.err, orders.ErrNotPending), errors.Is(msg.err, orders.ErrUnknownOrder):
		return "order " + msg.orderID + " is no longer available", true
	case errors.Is(msg.err, orders.ErrSessionChanged), errors.Is(msg.err, session.ErrSessionExpired):
		return "", false
	}
	return "accept failed: " + errText(msg.err), true
}

func (m ordersModel) View() string {
	var sb strings.Builder

	conn := presenceDotStyle.Render("●") + " " + dimStyle.Render("online")
	if !m.connected {
		conn = metaStyle.Render("○") + " " + dimStyle.Render("connecting...")
	}
	sb.WriteString("\n " + sectionHeaderStyle.Render(fmt.Sprintf("── OFFERS (%d) ──", len(m.pending))) + "  " + conn + "\n\n")

	if len(m.pending) == 0 {
		sb.WriteString(" " + dimStyle.Render("waiting for orders...") + "\n")
	}
	for i, o := range m.pending {
		sb.WriteString(m.renderRow(o, i == m.cursor) + "\n")
		if i == m.cursor && m.detail {
			sb.WriteString(renderOrderDetail(o))
		}
	}

	if m.status != "" {
		style := accentStyle
		if m.statusErr {
			style = rejectStyle
		}
		sb.WriteString("\n " + style.Render(m.status) + "\n")
	}
	return sb.String()
}

func (m ordersModel) renderRow(o domain.Order, selected bool) string {
	prefix := "   "
	idStyle := normalStyle
	if selected {
		prefix = " " + accentStyle.Render("▸") + " "
		idStyle = selectedStyle
	}
	row := prefix + idStyle.Render(truncStr(o.OrderID, 24)) + "  " + priceStyle.Render(domain.FormatPrice(o.Price))
	if o.Tentative {
		row += "  " + pendingStyle.Render("accepting...")
	}
	if selected && m.width > 0 {
		return selectedRowBg.Width(m.width).Render(row)
	}
	return row
}

func renderOrderDetail(o domain.Order) string {
	return "     " + metaStyle.Render("pickup  ") + dimStyle.Render(formatLocation(o.Start)) + "\n" +
		"     " + metaStyle.Render("dropoff ") + dimStyle.Render(formatLocation(o.End)) + "\n"
}
