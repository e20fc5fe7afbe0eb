package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sy1125/MyApp/internal/app"
	"github.com/sy1125/MyApp/internal/browser"
	"github.com/sy1125/MyApp/internal/config"
	"github.com/sy1125/MyApp/internal/credstore"
	"github.com/sy1125/MyApp/internal/logging"
	"github.com/sy1125/MyApp/internal/session"
	"github.com/sy1125/MyApp/internal/tui"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

// openURL is swapped in tests.
var openURL = browser.Open

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	cmd := "run"
	if len(args) > 0 {
		cmd = args[0]
	}
	switch cmd {
	case "--version", "version", "-v":
		fmt.Fprintln(out, "rider "+version)
		return nil
	case "help", "--help", "-h":
		printHelp(out)
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	switch cmd {
	case "run":
		return runConsole(cfg)
	case "logout":
		return runLogout(cfg, out)
	case "signup":
		return runSignup(cfg, out)
	default:
		return fmt.Errorf("unknown command %q (see `rider help`)", cmd)
	}
}

func runConsole(cfg *config.Config) error {
	log, logFile, err := logging.OpenFile(cfg.Home, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer logFile.Close() //nolint:errcheck

	a := app.New(cfg, credstore.NewFileStore(cfg.Home, log), log)
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	var notice string
	if err := a.Start(ctx); errors.Is(err, session.ErrSessionExpired) {
		notice = err.Error()
	}
	cancel()

	log.Info("console starting", "version", version, "signed_in", a.Session.Active())
	p := tea.NewProgram(tui.NewApp(a, tui.Options{
		Version:   version,
		Notice:    notice,
		SignupURL: cfg.SignupURL,
	}), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}

// runLogout forgets the stored session without starting the console.
func runLogout(cfg *config.Config, out io.Writer) error {
	log, logFile, err := logging.OpenFile(cfg.Home, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer logFile.Close() //nolint:errcheck

	store := credstore.NewFileStore(cfg.Home, log)
	ctx := context.Background()
	if _, ok := store.Get(ctx); !ok {
		fmt.Fprintln(out, "Already signed out.")
		return nil
	}
	store.Clear(ctx)
	fmt.Fprintln(out, "Signed out.")
	return nil
}

func runSignup(cfg *config.Config, out io.Writer) error {
	fmt.Fprintln(out, "Opening the sign-up page...")
	if err := openURL(cfg.SignupURL); err != nil {
		fmt.Fprintf(out, "Could not open browser. Visit this URL manually:\n  %s\n", cfg.SignupURL)
	}
	return nil
}
