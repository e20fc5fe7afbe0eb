package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sy1125/MyApp/internal/credstore"
	"github.com/sy1125/MyApp/pkg/client"
	"github.com/sy1125/MyApp/pkg/domain"
)

type fakeBackend struct {
	mu          sync.Mutex
	refreshErr  error
	refreshData domain.AuthData
	refreshes   []string
	loginData   domain.AuthData
	loginErr    error
	pushTokens  []string
}

func (f *fakeBackend) Login(_ context.Context, email, _ string) (*domain.AuthData, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	d := f.loginData
	d.Email = email
	return &d, nil
}

func (f *fakeBackend) RefreshToken(_ context.Context, refresh string) (*domain.AuthData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes = append(f.refreshes, refresh)
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	d := f.refreshData
	return &d, nil
}

func (f *fakeBackend) RegisterPushToken(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushTokens = append(f.pushTokens, token)
	return nil
}

// tracer records the order in which sign-out side effects become visible.
type tracer struct {
	mu     sync.Mutex
	events []string
}

func (t *tracer) add(e string) {
	t.mu.Lock()
	t.events = append(t.events, e)
	t.mu.Unlock()
}

type tracingStore struct {
	*credstore.MemoryStore
	tr  *tracer
	mgr *Manager
}

func (s *tracingStore) Clear(ctx context.Context) {
	if s.mgr != nil && !s.mgr.Active() {
		s.tr.add("inactive")
	}
	s.tr.add("store.clear")
	s.MemoryStore.Clear(ctx)
}

type tracingListener struct {
	name    string
	tr      *tracer
	started []domain.Session
}

func (l *tracingListener) SessionStarted(_ context.Context, s domain.Session) {
	l.started = append(l.started, s)
	l.tr.add(l.name + ".start")
}

func (l *tracingListener) SessionEnded() { l.tr.add(l.name + ".end") }

func newTestManager(b *fakeBackend) (*Manager, *credstore.MemoryStore) {
	store := credstore.NewMemoryStore()
	return NewManager(store, b, nil), store
}

func TestSignIn_ActivatesAndPersists(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(&fakeBackend{})
	tr := &tracer{}
	ch := &tracingListener{name: "channel", tr: tr}
	m.Subscribe(ctx, ch)

	if err := m.SignIn(ctx, domain.Identity{Name: "kim", Email: "kim@example.com"}, "acc", "ref"); err != nil {
		t.Fatalf("SignIn() error: %v", err)
	}
	if !m.Active() {
		t.Fatal("expected active session")
	}
	if got, ok := store.Get(ctx); !ok || got != "ref" {
		t.Errorf("stored = %q, %v, want ref", got, ok)
	}
	if len(ch.started) != 1 || ch.started[0].AccessToken != "acc" {
		t.Errorf("channel started = %+v", ch.started)
	}
}

func TestSignIn_Incomplete(t *testing.T) {
	m, _ := newTestManager(&fakeBackend{})
	err := m.SignIn(context.Background(), domain.Identity{Name: "kim"}, "acc", "ref")
	if !errors.Is(err, ErrIncomplete) {
		t.Errorf("err = %v, want ErrIncomplete", err)
	}
	if m.Active() {
		t.Error("session must stay inactive")
	}
}

func TestSignOut_Order(t *testing.T) {
	ctx := context.Background()
	tr := &tracer{}
	store := &tracingStore{MemoryStore: credstore.NewMemoryStore(), tr: tr}
	m := NewManager(store, &fakeBackend{}, nil)
	store.mgr = m
	m.Subscribe(ctx, &tracingListener{name: "channel", tr: tr})
	m.Subscribe(ctx, &tracingListener{name: "orders", tr: tr})

	if err := m.SignIn(ctx, domain.Identity{Email: "kim@example.com"}, "acc", "ref"); err != nil {
		t.Fatalf("SignIn() error: %v", err)
	}
	tr.events = nil
	m.SignOut(ctx)

	want := []string{"inactive", "store.clear", "channel.end", "orders.end"}
	if len(tr.events) != len(want) {
		t.Fatalf("events = %v, want %v", tr.events, want)
	}
	for i := range want {
		if tr.events[i] != want[i] {
			t.Errorf("events[%d] = %q, want %q (all: %v)", i, tr.events[i], want[i], tr.events)
		}
	}
	if _, ok := store.Get(ctx); ok {
		t.Error("credential store should be empty")
	}
}

func TestSignOut_WhenInactiveDoesNotNotify(t *testing.T) {
	ctx := context.Background()
	tr := &tracer{}
	m, _ := newTestManager(&fakeBackend{})
	m.Subscribe(ctx, &tracingListener{name: "channel", tr: tr})
	m.SignOut(ctx)
	if len(tr.events) != 0 {
		t.Errorf("events = %v, want none", tr.events)
	}
}

func TestBootstrap_Valid(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{refreshData: domain.AuthData{Name: "kim", Email: "kim@example.com", AccessToken: "fresh"}}
	m, store := newTestManager(b)
	store.Set(ctx, "ref")

	if err := m.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap() error: %v", err)
	}
	s, _ := m.Snapshot()
	if !s.Active() || s.Name != "kim" || s.AccessToken != "fresh" || s.RefreshToken != "ref" {
		t.Errorf("session = %+v", s)
	}
	if len(b.refreshes) != 1 || b.refreshes[0] != "ref" {
		t.Errorf("refreshes = %v, want [ref]", b.refreshes)
	}
}

func TestBootstrap_AbsentMakesNoCall(t *testing.T) {
	b := &fakeBackend{}
	m, _ := newTestManager(b)
	if err := m.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error: %v", err)
	}
	if m.Active() {
		t.Error("session should be inactive")
	}
	if len(b.refreshes) != 0 {
		t.Errorf("refreshes = %v, want none", b.refreshes)
	}
}

func TestBootstrap_ExpiredClearsStore(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{refreshErr: &client.HTTPError{StatusCode: client.StatusTokenExpired, Code: client.CodeExpired}}
	m, store := newTestManager(b)
	store.Set(ctx, "ref")

	if err := m.Bootstrap(ctx); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
	if m.Active() {
		t.Error("session should be inactive")
	}
	if _, ok := store.Get(ctx); ok {
		t.Error("expired credential should be cleared")
	}
}

func TestBootstrap_TransientKeepsStore(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		err  error
	}{
		{"network", &client.NetworkError{Err: errors.New("dial tcp: connection refused")}},
		{"server", &client.HTTPError{StatusCode: http.StatusBadGateway}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, store := newTestManager(&fakeBackend{refreshErr: tt.err})
			store.Set(ctx, "ref")
			if err := m.Bootstrap(ctx); err == nil || errors.Is(err, ErrSessionExpired) {
				t.Fatalf("err = %v, want transient error", err)
			}
			if m.Active() {
				t.Error("session should be inactive")
			}
			if got, ok := store.Get(ctx); !ok || got != "ref" {
				t.Errorf("stored = %q, %v, want ref kept", got, ok)
			}
		})
	}
}

func TestUpdateAccessCredential(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(&fakeBackend{})
	if err := m.SignIn(ctx, domain.Identity{Email: "kim@example.com"}, "old", "ref"); err != nil {
		t.Fatalf("SignIn() error: %v", err)
	}
	_, _, gen := m.Credentials()

	if !m.UpdateAccessCredential(gen, "new") {
		t.Fatal("expected update to apply")
	}
	access, refresh, gen2 := m.Credentials()
	if access != "new" || refresh != "ref" || gen2 != gen {
		t.Errorf("credentials = %q %q %d, want new ref %d", access, refresh, gen2, gen)
	}

	m.SignOut(ctx)
	if m.UpdateAccessCredential(gen, "late") {
		t.Error("update after sign-out must be dropped")
	}
	if m.Active() {
		t.Error("late update must not reactivate the session")
	}
}

func TestLogin_Validation(t *testing.T) {
	m, _ := newTestManager(&fakeBackend{})
	if err := m.Login(context.Background(), "  ", "pw"); !errors.Is(err, ErrMissingEmail) {
		t.Errorf("err = %v, want ErrMissingEmail", err)
	}
	if err := m.Login(context.Background(), "kim@example.com", " "); !errors.Is(err, ErrMissingPassword) {
		t.Errorf("err = %v, want ErrMissingPassword", err)
	}
}

func TestLogin_SignsIn(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{loginData: domain.AuthData{Name: "kim", AccessToken: "acc", RefreshToken: "ref"}}
	m, store := newTestManager(b)
	if err := m.Login(ctx, " kim@example.com ", "pw"); err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	s, _ := m.Snapshot()
	if s.Email != "kim@example.com" {
		t.Errorf("email = %q, want trimmed", s.Email)
	}
	if got, _ := store.Get(ctx); got != "ref" {
		t.Errorf("stored = %q, want ref", got)
	}
}

func TestSetPushToken(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{}
	m, _ := newTestManager(b)

	if err := m.SetPushToken(ctx, "push-1"); err != nil {
		t.Fatalf("SetPushToken() error: %v", err)
	}
	if len(b.pushTokens) != 0 {
		t.Errorf("reported while inactive: %v", b.pushTokens)
	}

	if err := m.SignIn(ctx, domain.Identity{Email: "kim@example.com"}, "acc", "ref"); err != nil {
		t.Fatalf("SignIn() error: %v", err)
	}
	if err := m.SetPushToken(ctx, "push-1"); err != nil {
		t.Fatalf("SetPushToken() error: %v", err)
	}
	if err := m.SetPushToken(ctx, "push-1"); err != nil {
		t.Fatalf("SetPushToken() retry error: %v", err)
	}
	if len(b.pushTokens) != 2 {
		t.Errorf("pushTokens = %v, want two reports", b.pushTokens)
	}
	if s, _ := m.Snapshot(); s.PushToken != "push-1" {
		t.Errorf("PushToken = %q, want push-1", s.PushToken)
	}
}

func TestSubscribe_StartsWhenAlreadyActive(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(&fakeBackend{})
	if err := m.SignIn(ctx, domain.Identity{Email: "kim@example.com"}, "acc", "ref"); err != nil {
		t.Fatalf("SignIn() error: %v", err)
	}
	l := &tracingListener{name: "late", tr: &tracer{}}
	m.Subscribe(ctx, l)
	if len(l.started) != 1 {
		t.Errorf("started = %d, want 1", len(l.started))
	}
}

func TestGenerationChangesOnTransitions(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(&fakeBackend{})
	if err := m.SignIn(ctx, domain.Identity{Email: "kim@example.com"}, "acc", "ref"); err != nil {
		t.Fatalf("SignIn() error: %v", err)
	}
	_, gen := m.Snapshot()
	if !m.IsCurrent(gen) {
		t.Fatal("expected current generation")
	}
	m.SignOut(ctx)
	if m.IsCurrent(gen) {
		t.Error("generation must be stale after sign-out")
	}
}

func TestSignOutIfCurrent(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(&fakeBackend{})
	if err := m.SignIn(ctx, domain.Identity{Email: "kim@example.com"}, "acc", "ref"); err != nil {
		t.Fatalf("SignIn() error: %v", err)
	}
	_, old := m.Snapshot()
	m.SignOut(ctx)
	if err := m.SignIn(ctx, domain.Identity{Email: "kim@example.com"}, "acc2", "ref2"); err != nil {
		t.Fatalf("SignIn() error: %v", err)
	}

	if m.SignOutIfCurrent(ctx, old) {
		t.Error("SignOutIfCurrent(old) ended the newer session")
	}
	if !m.Active() {
		t.Fatal("newer session must stay active")
	}

	_, cur := m.Snapshot()
	if !m.SignOutIfCurrent(ctx, cur) {
		t.Error("SignOutIfCurrent(current) = false, want true")
	}
	if m.Active() {
		t.Error("session still active")
	}
	if _, ok := store.Get(ctx); ok {
		t.Error("credential still stored")
	}
}

func TestAccessExpiry(t *testing.T) {
	exp := time.Now().Add(15 * time.Minute).Truncate(time.Second)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	got, ok := AccessExpiry(tok)
	if !ok || !got.Equal(exp) {
		t.Errorf("AccessExpiry = %v, %v, want %v", got, ok, exp)
	}
	if _, ok := AccessExpiry("opaque-token"); ok {
		t.Error("opaque token should have no expiry")
	}
}
