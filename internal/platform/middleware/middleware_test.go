package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona/pkg/requestcontext"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	t.Run("propagates inbound header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))
	})

	t.Run("generates when absent", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Len(t, seen, 36)
	})
}

func TestRecovery(t *testing.T) {
	h := Recovery(discardLogger(), nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), `"success":false`)
}

func TestTimeout(t *testing.T) {
	var deadline time.Time
	var ok bool
	h := Timeout(time.Second)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, time.Second)
}

func TestContentTypeJSON(t *testing.T) {
	h := ContentTypeJSON(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("x=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestClientMetadata(t *testing.T) {
	var ip, ua string
	h := ClientMetadata(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		ip = requestcontext.ClientIP(r.Context())
		ua = requestcontext.UserAgent(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.1")
	req.Header.Set("User-Agent", "curl/8.0")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "198.51.100.1", ip)
	assert.Equal(t, "curl/8.0", ua)
}

type stubValidator struct {
	claims *SessionClaims
	err    error
}

func (s stubValidator) ValidateSession(context.Context, string) (*SessionClaims, error) {
	return s.claims, s.err
}

func TestOptionalSession(t *testing.T) {
	var got *SessionClaims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetSession(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	t.Run("no token passes through", func(t *testing.T) {
		got = nil
		rr := httptest.NewRecorder()
		OptionalSession(stubValidator{err: errors.New("unused")}, discardLogger())(next).
			ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/receive-proof", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Nil(t, got)
	})

	t.Run("valid token is stored", func(t *testing.T) {
		claims := &SessionClaims{SessionID: "s1", ProviderID: "p", UserAddress: "u"}
		rr := httptest.NewRecorder()
		OptionalSession(stubValidator{claims: claims}, discardLogger())(next).
			ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/receive-proof?session=tok", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, claims, got)
	})

	t.Run("invalid token is rejected", func(t *testing.T) {
		rr := httptest.NewRecorder()
		OptionalSession(stubValidator{err: errors.New("expired")}, discardLogger())(next).
			ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/receive-proof?session=tok", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestLatencyMiddleware_NilMetrics(t *testing.T) {
	r := chi.NewRouter()
	r.Use(LatencyMiddleware(nil))
	r.Get("/api/personas/{address}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/personas/x", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)
}
