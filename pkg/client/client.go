package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/sy1125/MyApp/pkg/domain"
)

// Credentials is the gateway's read/write view of the session.
// Implementations must be safe for concurrent use.
type Credentials interface {
	// Credentials returns the current access and refresh credentials and the
	// session generation they belong to. Empty access means no active session.
	Credentials() (access, refresh string, gen uint64)
	// UpdateAccessCredential installs a refreshed access credential if gen
	// still names the current session. It reports whether it was applied.
	UpdateAccessCredential(gen uint64, token string) bool
}

// Client is the driver API client. Every call made through Do carries the
// current access credential and survives one credential expiry.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger

	mu    sync.RWMutex
	creds Credentials

	refreshes singleflight.Group
}

// New creates a new API client. A non-positive timeout means 30s.
func New(baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log.With("component", "gateway"),
	}
}

// SetCredentials attaches the session the client authorizes with.
func (c *Client) SetCredentials(creds Credentials) {
	c.mu.Lock()
	c.creds = creds
	c.mu.Unlock()
}

func (c *Client) credentials() (access, refresh string, gen uint64) {
	c.mu.RLock()
	creds := c.creds
	c.mu.RUnlock()
	if creds == nil {
		return "", "", 0
	}
	return creds.Credentials()
}

func (c *Client) updateAccess(gen uint64, token string) bool {
	c.mu.RLock()
	creds := c.creds
	c.mu.RUnlock()
	if creds == nil {
		return false
	}
	return creds.UpdateAccessCredential(gen, token)
}

type envelope struct {
	Data domain.AuthData `json:"data"`
}

// Login exchanges email and password for a fresh credential pair.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.AuthData, error) {
	var out envelope
	body := map[string]string{"email": email, "password": password}
	if err := c.send(ctx, http.MethodPost, "/login", "", body, &out); err != nil {
		return nil, fmt.Errorf("client.Login: %w", err)
	}
	return &out.Data, nil
}

// RefreshToken exchanges the refresh credential for a new access credential.
// It never goes through the refresh-and-retry path itself.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*domain.AuthData, error) {
	var out envelope
	if err := c.send(ctx, http.MethodPost, "/refreshToken", refreshToken, struct{}{}, &out); err != nil {
		return nil, fmt.Errorf("client.RefreshToken: %w", err)
	}
	if out.Data.AccessToken == "" {
		return nil, fmt.Errorf("client.RefreshToken: response missing accessToken")
	}
	return &out.Data, nil
}

// Accept claims an order. A 400 means another driver got it first; the
// returned HTTPError carries the server's message.
func (c *Client) Accept(ctx context.Context, orderID string) error {
	if err := c.Do(ctx, http.MethodPost, "/accept", map[string]string{"orderId": orderID}, nil); err != nil {
		return fmt.Errorf("client.Accept: %w", err)
	}
	return nil
}

// RegisterPushToken reports the device push token. Safe to repeat.
func (c *Client) RegisterPushToken(ctx context.Context, token string) error {
	if err := c.Do(ctx, http.MethodPost, "/phonetoken", map[string]string{"token": token}, nil); err != nil {
		return fmt.Errorf("client.RegisterPushToken: %w", err)
	}
	return nil
}

// Do sends an authorized request. On the distinguished expired rejection it
// refreshes the access credential once and re-issues the request once; a
// second expiry is returned as is; a failed refresh comes back as a
// *RefreshError that still satisfies IsExpired.
func (c *Client) Do(ctx context.Context, method, path string, body any, out any) error {
	access, refresh, gen := c.credentials()
	err := c.send(ctx, method, path, access, body, out)
	if !IsExpired(err) || access == "" || refresh == "" {
		return err
	}

	// Another call may already have refreshed while this one was in flight.
	current, _, curGen := c.credentials()
	if curGen != gen {
		return err
	}
	if current == "" || current == access {
		var rerr error
		current, rerr = c.refresh(ctx, refresh, gen)
		if rerr != nil {
			c.log.Warn("refresh failed", "path", path, "err", rerr)
			return &RefreshError{Err: err, Refresh: rerr}
		}
	}
	return c.send(ctx, method, path, current, body, out)
}

// Refresh renews the access credential through the same coalesced path Do
// uses, for callers that see an expiry outside Do.
func (c *Client) Refresh(ctx context.Context) error {
	_, refresh, gen := c.credentials()
	if refresh == "" {
		return ErrNoSession
	}
	if _, err := c.refresh(ctx, refresh, gen); err != nil {
		return fmt.Errorf("client.Refresh: %w", err)
	}
	return nil
}

// refresh runs at most one /refreshToken call per refresh credential at a
// time; concurrent callers share its result.
func (c *Client) refresh(ctx context.Context, refreshToken string, gen uint64) (string, error) {
	v, err, shared := c.refreshes.Do(refreshToken, func() (any, error) {
		data, err := c.RefreshToken(context.WithoutCancel(ctx), refreshToken)
		if err != nil {
			return "", err
		}
		if !c.updateAccess(gen, data.AccessToken) {
			return "", fmt.Errorf("session changed during refresh")
		}
		return data.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	c.log.Debug("access credential refreshed", "shared", shared)
	return v.(string), nil
}

func (c *Client) send(ctx context.Context, method, path, bearer string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("request failed", "request_id", reqID, "method", method, "path", path, "err", err)
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	c.log.Debug("request", "request_id", reqID, "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode >= 400 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max error body
		if readErr != nil {
			return &HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)}
		}
		var apiErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && (apiErr.Code != "" || apiErr.Message != "" || apiErr.Error != "") {
			msg := apiErr.Message
			if msg == "" {
				msg = apiErr.Error
			}
			return &HTTPError{StatusCode: resp.StatusCode, Code: apiErr.Code, Message: msg}
		}
		return &HTTPError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
