package session

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionRouter(fake *FakeBackend, timeout time.Duration) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	r.Use(Middleware{Backend: fake, Logger: logger, Timeout: timeout}.Handler)
	r.Route("/session", NewHandler(logger, timeout).MountRoutes)
	return r
}

func getSession(t *testing.T, router http.Handler, token string) SnapshotView {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/session/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	var view SnapshotView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	return view
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"":                "",
		"Bearer abc":      "abc",
		"bearer  abc ":    "abc",
		"BEARER abc":      "abc",
		"Basic dXNlcjpw":  "",
		"Bearer":          "",
		"Bearerabc token": "",
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, BearerToken(req), "header %q", header)
	}
}

func TestSessionEndpointAuthenticated(t *testing.T) {
	fake := NewFakeBackend()
	acct := registerHost(fake)
	router := newSessionRouter(fake, time.Second)

	view := getSession(t, router, "host-token")
	assert.True(t, view.IsAuthenticated)
	assert.False(t, view.IsLoading)
	require.NotNil(t, view.Identity)
	assert.Equal(t, acct.Identity.ID.String(), view.Identity.ID)
	require.NotNil(t, view.Profile)
	assert.Equal(t, "Ada Lovelace", view.Profile.DisplayName)
	assert.Equal(t, []string{"host", "coworker"}, view.Roles)
	assert.Equal(t, "host", view.PrimaryRole)
	assert.True(t, view.IsHost)
	assert.False(t, view.IsAdmin)
	assert.False(t, view.CanModerate)
	assert.Empty(t, view.Error)
}

func TestSessionEndpointAnonymousAndInvalid(t *testing.T) {
	fake := NewFakeBackend()
	router := newSessionRouter(fake, time.Second)

	anon := getSession(t, router, "")
	assert.False(t, anon.IsAuthenticated)
	assert.Equal(t, "coworker", anon.PrimaryRole)
	assert.Empty(t, anon.Error)

	invalid := getSession(t, router, "forged")
	assert.False(t, invalid.IsAuthenticated)
	assert.Equal(t, "session unavailable", invalid.Error)
	assert.Nil(t, invalid.Identity)
}

func TestSessionEndpointReportsLoadingOnTimeout(t *testing.T) {
	fake := NewFakeBackend()
	registerHost(fake)
	release := fake.Hold()
	defer release()
	router := newSessionRouter(fake, 20*time.Millisecond)

	view := getSession(t, router, "host-token")
	assert.True(t, view.IsLoading)
	assert.False(t, view.IsAuthenticated)
}

func TestSessionSignOut(t *testing.T) {
	fake := NewFakeBackend()
	acct := registerHost(fake)
	router := newSessionRouter(fake, time.Second)

	req := httptest.NewRequest(http.MethodPost, "/session/signout", nil)
	req.Header.Set("Authorization", "Bearer host-token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Contains(t, fake.Calls(), "invalidate:"+acct.Identity.ID.String())
}

func TestSessionRefresh(t *testing.T) {
	fake := NewFakeBackend()
	registerHost(fake)
	router := newSessionRouter(fake, time.Second)

	req := httptest.NewRequest(http.MethodPost, "/session/refresh", nil)
	req.Header.Set("Authorization", "Bearer host-token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var view SnapshotView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.True(t, view.IsAuthenticated)
	assert.Equal(t, 2, countCalls(fake.Calls(), "identity"))
}

func TestSessionRefreshWithoutController(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	r.Route("/session", NewHandler(logger, time.Second).MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/session/refresh", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
