package session

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Middleware attaches a Store to every request.
type Middleware struct {
	Backend  Backend
	Logger   *slog.Logger
	Observer FetchObserver
	// Timeout bounds how long a request waits for the session fetch. When it
	// elapses the handler sees a loading snapshot.
	Timeout time.Duration
}

// Handler resolves the bearer token of each request into a session.
func (m Middleware) Handler(next http.Handler) http.Handler {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		store := NewStore(m.Backend, WithLogger(logger), WithObserver(m.Observer))
		defer store.Close()

		store.Start(ctx, BearerToken(r))
		waitCtx, cancel := context.WithTimeout(ctx, timeout)
		if err := store.Wait(waitCtx); err != nil {
			logger.Warn("session fetch pending", slog.String("path", r.URL.Path), slog.Any("error", err))
		}
		cancel()

		next.ServeHTTP(w, r.WithContext(ContextWithProvider(ctx, store)))
	})
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
