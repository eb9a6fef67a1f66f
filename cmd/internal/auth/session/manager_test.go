package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:     baseURL,
		HTTPTimeout: 5 * time.Second,
		RefreshSkew: 30 * time.Second,
	}
}

func newTestStore(t *testing.T) Store {
	t.Helper()
	st, err := NewFileStore(filepath.Join(t.TempDir(), "session.json"), "")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return st
}

func writeTokens(t *testing.T, w http.ResponseWriter, access, refresh string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "bearer",
		"expires_in":    900,
	})
	if err != nil {
		t.Fatalf("encode tokens: %v", err)
	}
}

func TestManager_LoginPersistsAcrossRestart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/auth/login" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		if r.PostForm.Get("username") != "ana@example.com" || r.PostForm.Get("password") != "s3cretpass" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeTokens(t, w, "acc-1", "ref-1")
	}))
	defer srv.Close()

	store := newTestStore(t)
	m, err := NewManager(testConfig(srv.URL), store, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if m.Authenticated() {
		t.Fatalf("fresh manager should be unauthenticated")
	}
	if err := m.Login(context.Background(), "ana@example.com", "s3cretpass"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got := m.AuthHeader()["Authorization"]; got != "Bearer acc-1" {
		t.Fatalf("Authorization = %q", got)
	}

	// A second manager over the same store sees the session.
	m2, err := NewManager(testConfig(srv.URL), store, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if !m2.Authenticated() {
		t.Fatalf("restarted manager should be authenticated")
	}
	if got := m2.AuthHeader()["Authorization"]; got != "Bearer acc-1" {
		t.Fatalf("Authorization after restart = %q", got)
	}
}

func TestManager_LoginInvalidCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"unauthorized"}`))
	}))
	defer srv.Close()

	m, err := NewManager(testConfig(srv.URL), newTestStore(t), nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	err = m.Login(context.Background(), "ana@example.com", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Login err = %v, want ErrInvalidCredentials", err)
	}
	if m.Authenticated() {
		t.Fatalf("failed login must not authenticate")
	}

	h := m.AuthHeader()
	if h == nil {
		t.Fatalf("AuthHeader returned nil map")
	}
	if len(h) != 0 {
		t.Fatalf("AuthHeader = %v, want empty map", h)
	}
}

func TestManager_RegisterPerformsImplicitLogin(t *testing.T) {
	var registered, loggedIn bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/register":
			var body struct {
				Email    string `json:"email"`
				Password string `json:"password"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decode register: %v", err)
			}
			if body.Email != "ana@example.com" {
				t.Fatalf("register email = %q", body.Email)
			}
			registered = true
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"u1","email":"ana@example.com"}`))
		case "/api/v1/auth/login":
			loggedIn = true
			writeTokens(t, w, "acc-1", "ref-1")
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	m, err := NewManager(testConfig(srv.URL), newTestStore(t), nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if err := m.Register(context.Background(), "ana@example.com", "s3cretpass"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !registered || !loggedIn {
		t.Fatalf("registered=%v loggedIn=%v, want both", registered, loggedIn)
	}
	if !m.Authenticated() {
		t.Fatalf("register must leave an authenticated session")
	}
}

func TestManager_RefreshRotatesTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/login":
			writeTokens(t, w, "acc-1", "ref-1")
		case "/api/v1/auth/refresh":
			var body struct {
				RefreshToken string `json:"refresh_token"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decode refresh: %v", err)
			}
			if body.RefreshToken != "ref-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			writeTokens(t, w, "acc-2", "ref-2")
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	store := newTestStore(t)
	m, err := NewManager(testConfig(srv.URL), store, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.Login(context.Background(), "ana@example.com", "s3cretpass"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := m.RefreshAccessToken(context.Background()); err != nil {
		t.Fatalf("RefreshAccessToken: %v", err)
	}
	if got := m.AuthHeader()["Authorization"]; got != "Bearer acc-2" {
		t.Fatalf("Authorization = %q, want Bearer acc-2", got)
	}

	// The rotated pair was persisted, not just swapped in memory.
	sess, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if sess.RefreshToken != "ref-2" {
		t.Fatalf("persisted refresh token = %q, want ref-2", sess.RefreshToken)
	}
}

func TestManager_RefreshRejectedForcesLogout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/login":
			writeTokens(t, w, "acc-1", "ref-1")
		case "/api/v1/auth/refresh":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"unauthorized"}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	store := newTestStore(t)
	m, err := NewManager(testConfig(srv.URL), store, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.Login(context.Background(), "ana@example.com", "s3cretpass"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	err = m.RefreshAccessToken(context.Background())
	if !errors.Is(err, ErrRefreshRejected) {
		t.Fatalf("RefreshAccessToken err = %v, want ErrRefreshRejected", err)
	}
	if m.Authenticated() {
		t.Fatalf("rejected refresh must force logout")
	}
	sess, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if sess.Authenticated() {
		t.Fatalf("rejected refresh must clear the persisted session")
	}
}

func TestManager_RefreshWithoutToken(t *testing.T) {
	m, err := NewManager(testConfig("http://127.0.0.1:0"), newTestStore(t), nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.RefreshAccessToken(context.Background()); !errors.Is(err, ErrNoRefreshToken) {
		t.Fatalf("RefreshAccessToken err = %v, want ErrNoRefreshToken", err)
	}
}

func TestManager_Logout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeTokens(t, w, "acc-1", "ref-1")
	}))
	defer srv.Close()

	store := newTestStore(t)
	m, err := NewManager(testConfig(srv.URL), store, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.Login(context.Background(), "ana@example.com", "s3cretpass"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	m.Logout()
	if m.Authenticated() {
		t.Fatalf("Logout must clear the session")
	}
	sess, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if sess.Authenticated() {
		t.Fatalf("Logout must clear the persisted session")
	}
}

func TestManager_ProactiveRefreshNearExpiry(t *testing.T) {
	nearExpiry := signedToken(t, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(5 * time.Second).Unix(),
	})

	var refreshed bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/login":
			writeTokens(t, w, nearExpiry, "ref-1")
		case "/api/v1/auth/refresh":
			refreshed = true
			writeTokens(t, w, "acc-fresh", "ref-2")
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	m, err := NewManager(testConfig(srv.URL), newTestStore(t), nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.Login(context.Background(), "ana@example.com", "s3cretpass"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	h := m.AuthHeaderContext(context.Background())
	if !refreshed {
		t.Fatalf("expected a proactive refresh for a near-expiry token")
	}
	if h["Authorization"] != "Bearer acc-fresh" {
		t.Fatalf("Authorization = %q, want the refreshed token", h["Authorization"])
	}
}

func TestManager_NoProactiveRefreshWhenFresh(t *testing.T) {
	fresh := signedToken(t, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/auth/refresh" {
			t.Fatalf("unexpected refresh for a fresh token")
		}
		writeTokens(t, w, fresh, "ref-1")
	}))
	defer srv.Close()

	m, err := NewManager(testConfig(srv.URL), newTestStore(t), nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.Login(context.Background(), "ana@example.com", "s3cretpass"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if got := m.AuthHeaderContext(context.Background())["Authorization"]; got != "Bearer "+fresh {
		t.Fatalf("Authorization = %q, want the original token", got)
	}
}
