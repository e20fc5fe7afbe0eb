package domain

import (
	"strconv"
	"strings"
)

// OrderStatus is the negotiation state of an order within one session.
type OrderStatus string

const (
	OrderPending  OrderStatus = "pending"
	OrderAccepted OrderStatus = "accepted"
	OrderRejected OrderStatus = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s OrderStatus) Terminal() bool {
	return s == OrderAccepted || s == OrderRejected
}

// Location is a pickup or drop-off point.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Order is one delivery job offered over the notification channel.
type Order struct {
	OrderID string   `json:"orderId"`
	Price   int      `json:"price"`
	Start   Location `json:"start"`
	End     Location `json:"end"`

	Status OrderStatus `json:"-"`
	// Tentative is set while an accept is waiting on the server.
	Tentative bool `json:"-"`
}

// FormatPrice renders a price with thousands separators, e.g. 12,500원.
func FormatPrice(price int) string {
	s := strconv.Itoa(price)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "원"
	if neg {
		return "-" + out
	}
	return out
}
