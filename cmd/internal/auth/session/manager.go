package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"renova/cmd/internal/wire"
)

// Manager owns the Session: it performs login/registration/logout/refresh
// against the auth service and injects credentials into outbound requests.
//
// All mutating operations persist the session synchronously before they
// return, so a process restart immediately after a successful call observes
// the new state.
type Manager struct {
	cfg    Config
	log    *slog.Logger
	client *http.Client
	store  Store

	mu   sync.Mutex
	sess Session
}

// NewManager constructs a Manager and loads any persisted session.
//
// A corrupt or unreadable session file is logged and treated as "no
// session" rather than failing startup.
func NewManager(cfg Config, store Store, log *slog.Logger) (*Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, ErrConfig
	}
	if log == nil {
		log = slog.Default()
	}

	m := &Manager{
		cfg:    cfg,
		log:    log,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
		store:  store,
	}

	sess, err := store.Load()
	if err != nil {
		log.Warn("session.load_failed", "err", err)
		sess = Session{}
	}
	m.sess = sess

	return m, nil
}

// tokenResponse is the auth service's token envelope.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Login exchanges credentials for a fresh token pair. The login endpoint is
// OAuth2 password flow: form-encoded username/password.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.cfg.BaseURL+"/api/v1/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	wire.Tag(req)

	status, body, err := m.do(req)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	if status >= 400 && status < 500 {
		return fmt.Errorf("%w: %s", ErrInvalidCredentials, wire.ErrorMessage(status, body))
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("login: %s", wire.ErrorMessage(status, body))
	}

	return m.adoptLocked(body)
}

// Register creates an account and then performs an implicit login with the
// same credentials: registration itself does not yield tokens.
func (m *Manager) Register(ctx context.Context, email, password string) error {
	payload, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.cfg.BaseURL+"/api/v1/auth/register", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	wire.Tag(req)

	m.mu.Lock()
	status, body, err := m.do(req)
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}

	if status >= 400 && status < 500 {
		return fmt.Errorf("%w: %s", ErrInvalidCredentials, wire.ErrorMessage(status, body))
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("register: %s", wire.ErrorMessage(status, body))
	}

	return m.Login(ctx, email, password)
}

// Logout clears the persisted tokens and resets the session. It never
// fails; a store error is logged and the in-memory state is reset anyway.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked()
}

// RefreshAccessToken exchanges the stored refresh token for a fresh pair.
//
// Any failure forces a local logout before the error is returned, so the
// client never holds a stale access token after a failed refresh.
func (m *Manager) RefreshAccessToken(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshLocked(ctx)
}

func (m *Manager) refreshLocked(ctx context.Context) error {
	if m.sess.RefreshToken == "" {
		m.clearLocked()
		return ErrNoRefreshToken
	}

	payload, err := json.Marshal(map[string]string{
		"refresh_token": m.sess.RefreshToken,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.cfg.BaseURL+"/api/v1/auth/refresh", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	wire.Tag(req)

	status, body, err := m.do(req)
	if err != nil {
		m.clearLocked()
		return fmt.Errorf("refresh: %w", err)
	}

	if status >= 400 && status < 500 {
		m.clearLocked()
		return fmt.Errorf("%w: %s", ErrRefreshRejected, wire.ErrorMessage(status, body))
	}
	if status < 200 || status >= 300 {
		m.clearLocked()
		return fmt.Errorf("refresh: %s", wire.ErrorMessage(status, body))
	}

	if err := m.adoptLocked(body); err != nil {
		m.clearLocked()
		return err
	}
	return nil
}

// AuthHeader returns the credential header for outbound requests, or an
// empty map when unauthenticated. Pure read; callers must treat an empty
// map as "not authenticated" rather than an error.
func (m *Manager) AuthHeader() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.headerLocked()
}

// AuthHeaderContext is AuthHeader with proactive refresh: when the access
// token's expiry claim is within RefreshSkew, the token pair is refreshed
// first. Refresh failure is logged; the returned empty map then reflects
// the forced logout.
func (m *Manager) AuthHeaderContext(ctx context.Context) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess.Authenticated() && m.cfg.RefreshSkew > 0 {
		if exp, ok := tokenExpiry(m.sess.AccessToken); ok && time.Until(exp) <= m.cfg.RefreshSkew {
			if err := m.refreshLocked(ctx); err != nil {
				m.log.Warn("session.proactive_refresh_failed", "err", err)
			}
		}
	}

	return m.headerLocked()
}

// Authenticated reports whether an access token is held.
func (m *Manager) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess.Authenticated()
}

func (m *Manager) headerLocked() map[string]string {
	h := map[string]string{}
	if m.sess.Authenticated() {
		h["Authorization"] = "Bearer " + m.sess.AccessToken
	}
	return h
}

// adoptLocked decodes a token envelope and atomically replaces the session,
// persisting before the in-memory swap becomes visible.
func (m *Manager) adoptLocked(body []byte) error {
	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" || tr.RefreshToken == "" {
		return fmt.Errorf("token response missing tokens")
	}

	next := Session{AccessToken: tr.AccessToken, RefreshToken: tr.RefreshToken}
	if err := m.store.Save(next); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	m.sess = next
	return nil
}

func (m *Manager) clearLocked() {
	m.sess = Session{}
	if err := m.store.Clear(); err != nil {
		m.log.Warn("session.clear_failed", "err", err)
	}
}

// do executes the request and slurps the body (bounded; auth responses are
// small).
func (m *Manager) do(req *http.Request) (int, []byte, error) {
	resp, err := m.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}
