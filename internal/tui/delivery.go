package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sy1125/MyApp/pkg/domain"
)

// deliveryModel lists the orders the driver has been confirmed for.
type deliveryModel struct {
	accepted []domain.Order
	cursor   int
	status   string
	width    int
}

func (m deliveryModel) setOrders(list []domain.Order) deliveryModel {
	m.accepted = list
	if m.cursor >= len(list) {
		m.cursor = max(len(list)-1, 0)
	}
	return m
}

func (m deliveryModel) Update(msg tea.Msg) (deliveryModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case copyResultMsg:
		if msg.err != nil {
			m.status = "copy failed: " + msg.err.Error()
		} else {
			m.status = "copied " + msg.text
		}
	case tea.KeyMsg:
		switch msg.String() {
		case "j", "down":
			if m.cursor < len(m.accepted)-1 {
				m.cursor++
			}
		case "k", "up":
			if m.cursor > 0 {
				m.cursor--
			}
		case "y":
			if m.cursor < len(m.accepted) {
				return m, copyCmd(m.accepted[m.cursor].OrderID)
			}
		}
	}
	return m, nil
}

func (m deliveryModel) View() string {
	var sb strings.Builder
	sb.WriteString("\n " + sectionHeaderStyle.Render(fmt.Sprintf("── DELIVERIES (%d) ──", len(m.accepted))) + "\n\n")
	if len(m.accepted) == 0 {
		sb.WriteString(" " + dimStyle.Render("no active deliveries") + "\n")
	}
	for i, o := range m.accepted {
		prefix := "   "
		if i == m.cursor {
			prefix = " " + accentStyle.Render("▸") + " "
		}
		sb.WriteString(prefix + selectedStyle.Render(truncStr(o.OrderID, 24)) + "  " + priceStyle.Render(domain.FormatPrice(o.Price)) + "\n")
		sb.WriteString(renderOrderDetail(o))
	}
	if m.status != "" {
		sb.WriteString("\n " + accentStyle.Render(m.status) + "\n")
	}
	return sb.String()
}
