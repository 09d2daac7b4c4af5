package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/editorial-workflow-service/internal/config"
	"github.com/helixir/editorial-workflow-service/internal/locale"
	"github.com/helixir/editorial-workflow-service/internal/observability"
)

const testSecret = "test-signing-secret"

func signToken(t *testing.T, method jwt.SigningMethod, secret string, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

// userEcho reports the user attached to the request context.
func userEcho(t *testing.T, got *int64) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := observability.UserIDFromContext(r.Context())
		if ok {
			*got = id
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestBearerAuth(t *testing.T) {
	cfg := config.AuthConfig{Enabled: true, Issuer: "editorial", JWTSecret: testSecret}
	valid := Claims{
		UserID: 42,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "editorial",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	tests := []struct {
		name   string
		header func(t *testing.T) string
		status int
		userID int64
	}{
		{
			name:   "valid token",
			header: func(t *testing.T) string { return "Bearer " + signToken(t, jwt.SigningMethodHS256, testSecret, valid) },
			status: http.StatusNoContent,
			userID: 42,
		},
		{
			name:   "missing header",
			header: func(*testing.T) string { return "" },
			status: http.StatusUnauthorized,
		},
		{
			name:   "not a bearer token",
			header: func(*testing.T) string { return "Basic dXNlcjpwYXNz" },
			status: http.StatusUnauthorized,
		},
		{
			name:   "wrong secret",
			header: func(t *testing.T) string { return "Bearer " + signToken(t, jwt.SigningMethodHS256, "other", valid) },
			status: http.StatusUnauthorized,
		},
		{
			name: "wrong issuer",
			header: func(t *testing.T) string {
				c := valid
				c.Issuer = "someone-else"
				return "Bearer " + signToken(t, jwt.SigningMethodHS256, testSecret, c)
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "expired",
			header: func(t *testing.T) string {
				c := valid
				c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
				return "Bearer " + signToken(t, jwt.SigningMethodHS256, testSecret, c)
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "no user",
			header: func(t *testing.T) string {
				c := valid
				c.UserID = 0
				return "Bearer " + signToken(t, jwt.SigningMethodHS256, testSecret, c)
			},
			status: http.StatusUnauthorized,
		},
		{
			name:   "garbage",
			header: func(*testing.T) string { return "Bearer not.a.jwt" },
			status: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got int64
			handler := BearerAuth(cfg)(userEcho(t, &got))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if h := tt.header(t); h != "" {
				req.Header.Set("Authorization", h)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.userID, got)
		})
	}
}

func TestBearerAuth_RejectsUnsignedTokens(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 1}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	var got int64
	BearerAuth(config.AuthConfig{JWTSecret: testSecret})(userEcho(t, &got)).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Zero(t, got)
}

func TestHeaderAuth(t *testing.T) {
	tests := []struct {
		header string
		status int
		userID int64
	}{
		{"17", http.StatusNoContent, 17},
		{"", http.StatusNoContent, 0},
		{"abc", http.StatusUnauthorized, 0},
		{"-3", http.StatusUnauthorized, 0},
	}
	for _, tt := range tests {
		t.Run("header="+tt.header, func(t *testing.T) {
			var got int64
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(UserIDHeader, tt.header)
			}
			rr := httptest.NewRecorder()
			HeaderAuth(userEcho(t, &got)).ServeHTTP(rr, req)

			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.userID, got)
		})
	}
}

func TestContextMiddleware(t *testing.T) {
	var captured int64
	r := chi.NewRouter()
	r.Route("/contexts/{contextID}", func(r chi.Router) {
		r.Use(contextMiddleware)
		r.Get("/x", func(w http.ResponseWriter, r *http.Request) {
			captured, _ = observability.ContextIDFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		})
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/contexts/5/x", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(5), captured)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/contexts/0/x", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "context_id must be a positive integer")
}

func TestLocaleMiddleware(t *testing.T) {
	s := &Server{deps: Deps{Locales: locale.NewResolver(config.LocaleConfig{Primary: "en", Supported: []string{"en", "fr-CA"}})}}

	var current string
	handler := s.localeMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current = s.deps.Locales.CurrentLocale(r.Context())
	}))

	tests := []struct {
		name   string
		url    string
		accept string
		want   string
	}{
		{"primary by default", "/", "", "en"},
		{"negotiated", "/", "fr-CA,fr;q=0.9", "fr-CA"},
		{"unsupported falls back", "/", "de-DE", "en"},
		{"query parameter wins", "/?locale=fr-CA", "en-US", "fr-CA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.want, current)
			assert.Equal(t, tt.want, rr.Header().Get("Content-Language"))
		})
	}
}

func TestCorrelationIDMiddleware(t *testing.T) {
	var seen string
	handler := correlationIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = observability.RequestIDFromContext(r.Context())
	}))

	t.Run("propagates the caller's id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Correlation-ID", "abc-123")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, "abc-123", rr.Header().Get("X-Correlation-ID"))
		assert.Equal(t, "abc-123", seen)
	})

	t.Run("generates one when absent", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

		id := rr.Header().Get("X-Correlation-ID")
		assert.Len(t, id, 16)
		assert.Equal(t, id, seen)
	})
}

func TestParseID(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"12", 12, true},
		{"0", 0, false},
		{"-1", 0, false},
		{"1e3", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			rr := httptest.NewRecorder()
			got, ok := parseID(rr, tt.in, "submission_id")
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
			if !ok {
				assert.Equal(t, http.StatusBadRequest, rr.Code)
			}
		})
	}
}
