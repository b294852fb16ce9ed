package nexuspay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Session is the auth material for one outbound gateway call sequence. The
// gateway inconsistently reads auth from either the Authorization header or a
// cookie, so the bearer token is also appended to the cookie string as
// api_key=... and both are always sent.
type Session struct {
	BearerToken string
	Cookie      string
}

// SessionManager negotiates a fresh gateway session per call. Nothing is
// cached between requests; wallet operations are human-paced, so the extra
// round-trips cost less than stale-session bugs.
type SessionManager struct {
	baseURL string
	creds   CredentialsSource
	http    *http.Client
	logger  zerolog.Logger
}

// Credentials is the merchant configuration needed to talk to the gateway.
type Credentials struct {
	Username   string
	Password   string
	MerchantID string
	SecretKey  string
}

// CredentialsSource supplies current merchant credentials. Implemented by the
// settings cache so credential rotation takes effect without restart.
type CredentialsSource interface {
	Credentials(ctx context.Context) (Credentials, error)
}

func NewSessionManager(baseURL string, creds CredentialsSource, logger zerolog.Logger) *SessionManager {
	return &SessionManager{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

type csrfResponse struct {
	CSRFToken string `json:"csrf_token"`
	Token     string `json:"token"`
}

type loginResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
}

// Authenticate performs the CSRF + login handshake and returns a usable
// session. Any missing cookie, token, or parse failure returns an error;
// callers must treat that as "gateway unavailable", never as a crash.
func (m *SessionManager) Authenticate(ctx context.Context) (*Session, error) {
	creds, err := m.creds.Credentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("load merchant credentials: %w", err)
	}
	if creds.Username == "" || creds.Password == "" {
		return nil, fmt.Errorf("merchant credentials not configured")
	}

	// Step 1: CSRF token + session cookie.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/api/auth/csrf", nil)
	if err != nil {
		return nil, err
	}
	resp, err := m.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("csrf request failed: %w", err)
	}
	defer resp.Body.Close()

	sessionCookie := joinCookies(resp.Header.Values("Set-Cookie"))
	if sessionCookie == "" {
		return nil, fmt.Errorf("csrf response carried no session cookie")
	}

	var csrf csrfResponse
	if err := json.NewDecoder(resp.Body).Decode(&csrf); err != nil {
		return nil, fmt.Errorf("csrf response not JSON: %w", err)
	}
	csrfToken := csrf.CSRFToken
	if csrfToken == "" {
		csrfToken = csrf.Token
	}
	if csrfToken == "" {
		return nil, fmt.Errorf("csrf response carried no token")
	}

	// Step 2: login with the CSRF token and session cookie.
	loginBody, err := json.Marshal(map[string]string{
		"username": creds.Username,
		"password": creds.Password,
	})
	if err != nil {
		return nil, err
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/api/auth/login", bytes.NewReader(loginBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", csrfToken)
	req.Header.Set("Cookie", sessionCookie)

	resp, err = m.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	// The login response may refresh or add cookies; merge them in.
	if extra := joinCookies(resp.Header.Values("Set-Cookie")); extra != "" {
		sessionCookie = sessionCookie + "; " + extra
	}

	var login loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		return nil, fmt.Errorf("login response not JSON: %w", err)
	}
	bearer := login.Token
	if bearer == "" {
		bearer = login.AccessToken
	}
	if bearer == "" {
		return nil, fmt.Errorf("login response carried no bearer token")
	}

	// Step 3: mirror the bearer token into the cookie string.
	return &Session{
		BearerToken: bearer,
		Cookie:      sessionCookie + "; api_key=" + bearer,
	}, nil
}

// joinCookies keeps only the name=value pair of each Set-Cookie entry.
func joinCookies(setCookies []string) string {
	var pairs []string
	for _, c := range setCookies {
		if idx := strings.Index(c, ";"); idx >= 0 {
			c = c[:idx]
		}
		c = strings.TrimSpace(c)
		if c != "" {
			pairs = append(pairs, c)
		}
	}
	return strings.Join(pairs, "; ")
}
