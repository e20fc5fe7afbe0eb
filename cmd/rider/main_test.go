package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sy1125/MyApp/internal/credstore"
)

func TestRunVersion(t *testing.T) {
	for _, arg := range []string{"version", "--version", "-v"} {
		var out bytes.Buffer
		if err := run([]string{arg}, &out); err != nil {
			t.Fatalf("run(%q) error: %v", arg, err)
		}
		if got := strings.TrimSpace(out.String()); got != "rider dev" {
			t.Errorf("run(%q) printed %q, want %q", arg, got, "rider dev")
		}
	}
}

func TestRunHelp(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"help"}, &out); err != nil {
		t.Fatalf("run(help) error: %v", err)
	}
	for _, want := range []string{"rider logout", "rider signup", "RIDER_API_URL"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("help missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunUnknownCommand(t *testing.T) {
	t.Setenv("RIDER_HOME", t.TempDir())
	err := run([]string{"fly"}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("run(fly) error = %v, want unknown command", err)
	}
}

func TestRunLogout(t *testing.T) {
	home := t.TempDir()
	t.Setenv("RIDER_HOME", home)
	ctx := context.Background()
	credstore.NewFileStore(home, nil).Set(ctx, "ref-1")

	var out bytes.Buffer
	if err := run([]string{"logout"}, &out); err != nil {
		t.Fatalf("run(logout) error: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "Signed out." {
		t.Errorf("first logout printed %q", got)
	}
	if _, ok := credstore.NewFileStore(home, nil).Get(ctx); ok {
		t.Error("credential still stored after logout")
	}

	out.Reset()
	if err := run([]string{"logout"}, &out); err != nil {
		t.Fatalf("run(logout) error: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "Already signed out." {
		t.Errorf("second logout printed %q", got)
	}
}

func TestRunSignup(t *testing.T) {
	t.Setenv("RIDER_HOME", t.TempDir())
	t.Setenv("RIDER_SIGNUP_URL", "https://rider.example.com/join")

	var opened []string
	orig := openURL
	t.Cleanup(func() { openURL = orig })

	openURL = func(u string) error {
		opened = append(opened, u)
		return nil
	}
	var out bytes.Buffer
	if err := run([]string{"signup"}, &out); err != nil {
		t.Fatalf("run(signup) error: %v", err)
	}
	if len(opened) != 1 || opened[0] != "https://rider.example.com/join" {
		t.Errorf("opened = %v", opened)
	}

	openURL = func(string) error { return errors.New("no browser") }
	out.Reset()
	if err := run([]string{"signup"}, &out); err != nil {
		t.Fatalf("run(signup) error: %v", err)
	}
	if !strings.Contains(out.String(), "https://rider.example.com/join") {
		t.Errorf("fallback URL not printed:\n%s", out.String())
	}
}
