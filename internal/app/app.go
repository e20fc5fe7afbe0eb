// Package app wires the credential store, session, gateway, channel and
// order registry into the one object the console drives.
package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sy1125/MyApp/internal/channel"
	"github.com/sy1125/MyApp/internal/config"
	"github.com/sy1125/MyApp/internal/credstore"
	"github.com/sy1125/MyApp/internal/orders"
	"github.com/sy1125/MyApp/internal/session"
	"github.com/sy1125/MyApp/pkg/client"
	"github.com/sy1125/MyApp/pkg/domain"
)

// App is the application state. All fields are safe for concurrent use.
type App struct {
	Client  *client.Client
	Session *session.Manager
	Channel *channel.Channel
	Orders  *orders.Registry

	pushToken string
	timeout   time.Duration
	log       *slog.Logger
}

// New builds the components and subscribes the channel and the registry to
// session transitions, in that order: on sign-out the channel closes before
// the registry is cleared.
func New(cfg *config.Config, store credstore.Store, log *slog.Logger) *App {
	if log == nil {
		log = slog.Default()
	}
	c := client.New(cfg.APIURL, cfg.HTTPTimeout, log)
	mgr := session.NewManager(store, c, log)
	c.SetCredentials(mgr)

	a := &App{
		Client:    c,
		Session:   mgr,
		Orders:    orders.NewRegistry(c, log),
		pushToken: cfg.PushToken,
		timeout:   cfg.HTTPTimeout,
		log:       log.With("component", "app"),
	}
	a.Channel = channel.New(channel.Config{
		URL:        cfg.WSURL,
		MinBackoff: cfg.ReconnectMin,
		MaxBackoff: cfg.ReconnectMax,
	}, channelTokens{a}, func(o domain.Order) {
		if a.Orders.Ingest(o) {
			log.Info("order offered", "order_id", o.OrderID, "price", o.Price)
		}
	}, log)

	ctx := context.Background()
	mgr.Subscribe(ctx, a.Channel)
	mgr.Subscribe(ctx, a.Orders)
	return a
}

// channelTokens renews the credential when the channel handshake finds it
// expired. A refused refresh ends the session.
type channelTokens struct {
	a *App
}

func (t channelTokens) Credentials() (access, refresh string, gen uint64) {
	return t.a.Session.Credentials()
}

func (t channelTokens) Refresh(ctx context.Context) error {
	_, _, gen := t.a.Session.Credentials()
	err := t.a.Client.Refresh(ctx)
	if client.IsUnauthorized(err) {
		// Sign-out closes the channel and waits for the loop calling us.
		go t.a.signOutIfCurrent(gen, "refresh refused on reconnect")
	}
	return err
}

func (a *App) signOutIfCurrent(gen uint64, reason string) bool {
	if !a.Session.SignOutIfCurrent(context.Background(), gen) {
		return false
	}
	a.log.Info("signed out", "reason", reason)
	return true
}

// Start restores the previous session, if any. ErrSessionExpired is a notice
// for the driver; other failures leave the app signed out and are only logged.
func (a *App) Start(ctx context.Context) error {
	err := a.Session.Bootstrap(ctx)
	switch {
	case errors.Is(err, session.ErrSessionExpired):
		return err
	case err != nil:
		a.log.Warn("session not restored", "err", err)
		return nil
	}
	if a.Session.Active() {
		a.reportPushToken(ctx)
	}
	return nil
}

// Login signs in with email and password.
func (a *App) Login(ctx context.Context, email, password string) error {
	if err := a.Session.Login(ctx, email, password); err != nil {
		return err
	}
	a.reportPushToken(ctx)
	return nil
}

// SignOut ends the session.
func (a *App) SignOut(ctx context.Context) {
	a.Session.SignOut(ctx)
}

func (a *App) reportPushToken(ctx context.Context) {
	if a.pushToken == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	if err := a.Session.SetPushToken(ctx, a.pushToken); err != nil {
		a.log.Warn("push token not registered", "err", err)
	}
}

// Accept claims an order. When the server refuses to refresh the session
// the driver is signed out and ErrSessionExpired is returned; a transient
// refresh failure leaves the order pending and the session in place.
func (a *App) Accept(ctx context.Context, orderID string) error {
	_, gen := a.Session.Snapshot()
	err := a.Orders.Accept(ctx, orderID)
	if client.IsRefreshRejected(err) {
		a.signOutIfCurrent(gen, "refresh refused during accept")
		return session.ErrSessionExpired
	}
	return err
}

// Reject declines an order locally.
func (a *App) Reject(orderID string) error {
	return a.Orders.Reject(orderID)
}

// Pending lists the orders awaiting a decision.
func (a *App) Pending() []domain.Order { return a.Orders.Pending() }

// Accepted lists the orders confirmed by the server.
func (a *App) Accepted() []domain.Order { return a.Orders.Accepted() }

// Changes signals registry updates.
func (a *App) Changes() <-chan struct{} { return a.Orders.Changes() }

// CurrentSession returns a copy of the session.
func (a *App) CurrentSession() domain.Session {
	s, _ := a.Session.Snapshot()
	return s
}

// AccessExpiry returns the access credential's expiry when it carries one.
func (a *App) AccessExpiry() (time.Time, bool) { return a.Session.AccessExpiry() }

// Connected reports whether the notification channel is up.
func (a *App) Connected() bool { return a.Channel.Connected() }

// Close stops the channel. The session and stored credential are kept.
func (a *App) Close() {
	a.Channel.Close()
}
