package nexuspay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCredentials struct {
	creds Credentials
	err   error
}

func (s staticCredentials) Credentials(context.Context) (Credentials, error) {
	return s.creds, s.err
}

func testCredentials() staticCredentials {
	return staticCredentials{creds: Credentials{
		Username:   "merchant",
		Password:   "secret",
		MerchantID: testMerchantID,
		SecretKey:  testSecret,
	}}
}

func TestAuthenticateHappyPath(t *testing.T) {
	var sawCSRFHeader, sawCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/csrf":
			w.Header().Add("Set-Cookie", "sessid=abc123; Path=/; HttpOnly")
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"csrf_token":"csrf-xyz"}`))
		case "/api/auth/login":
			sawCSRFHeader = r.Header.Get("X-CSRF-Token")
			sawCookie = r.Header.Get("Cookie")
			w.Header().Add("Set-Cookie", "refresh=r1; Path=/")
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"token":"bearer-token-1"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	m := NewSessionManager(srv.URL, testCredentials(), zerolog.Nop())
	sess, err := m.Authenticate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "csrf-xyz", sawCSRFHeader)
	assert.Equal(t, "sessid=abc123", sawCookie)
	assert.Equal(t, "bearer-token-1", sess.BearerToken)
	assert.Equal(t, "sessid=abc123; refresh=r1; api_key=bearer-token-1", sess.Cookie)
}

func TestAuthenticateFallbackTokenFields(t *testing.T) {
	// Some gateway deployments use "token" on csrf and "access_token" on
	// login instead of the primary field names.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/csrf":
			w.Header().Add("Set-Cookie", "sessid=s1")
			w.Write([]byte(`{"token":"csrf-alt"}`))
		case "/api/auth/login":
			assert.Equal(t, "csrf-alt", r.Header.Get("X-CSRF-Token"))
			w.Write([]byte(`{"access_token":"alt-bearer"}`))
		}
	}))
	defer srv.Close()

	m := NewSessionManager(srv.URL, testCredentials(), zerolog.Nop())
	sess, err := m.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alt-bearer", sess.BearerToken)
}

func TestAuthenticateFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "csrf without cookie",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"csrf_token":"x"}`))
			},
		},
		{
			name: "csrf without token",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Add("Set-Cookie", "sessid=s1")
				w.Write([]byte(`{}`))
			},
		},
		{
			name: "csrf not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Add("Set-Cookie", "sessid=s1")
				w.Write([]byte(`<html>maintenance</html>`))
			},
		},
		{
			name: "login without bearer",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/api/auth/csrf" {
					w.Header().Add("Set-Cookie", "sessid=s1")
					w.Write([]byte(`{"csrf_token":"x"}`))
					return
				}
				w.Write([]byte(`{"error":"bad credentials"}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			m := NewSessionManager(srv.URL, testCredentials(), zerolog.Nop())
			sess, err := m.Authenticate(context.Background())
			assert.Error(t, err)
			assert.Nil(t, sess)
		})
	}
}

func TestAuthenticateRequiresCredentials(t *testing.T) {
	m := NewSessionManager("http://unreachable.invalid", staticCredentials{}, zerolog.Nop())
	_, err := m.Authenticate(context.Background())
	assert.Error(t, err)
}

func TestJoinCookies(t *testing.T) {
	assert.Equal(t, "", joinCookies(nil))
	assert.Equal(t, "a=1", joinCookies([]string{"a=1; Path=/; Secure"}))
	assert.Equal(t, "a=1; b=2", joinCookies([]string{"a=1; HttpOnly", "b=2"}))
}
