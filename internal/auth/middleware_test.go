package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMiddleware(t *testing.T) *Middleware {
	t.Helper()
	v, err := NewVerifier(VerifierConfig{Algorithm: "HS256", SecretKey: testSecret})
	require.NoError(t, err)
	return NewMiddleware(v)
}

func protected(m *Middleware, scopes ...string) http.HandlerFunc {
	return m.RequireAuth(m.RequireScope(scopes...)(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		_, _ = w.Write([]byte(claims.Subject))
	}))
}

func TestRequireAuthMissingToken(t *testing.T) {
	m := newTestMiddleware(t)

	rec := httptest.NewRecorder()
	protected(m, ScopeRead)(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "error", body["result"])
	assert.Equal(t, "UNAUTHORIZED", body["code"])
	assert.NotEmpty(t, body["correlationId"])
}

func TestRequireAuthMalformedHeader(t *testing.T) {
	m := newTestMiddleware(t)

	for _, header := range []string{"Basic abc", "Bearer ", "token"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		protected(m, ScopeRead)(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
	}
}

func TestRequireAuthHealthBypass(t *testing.T) {
	m := newTestMiddleware(t)

	called := false
	h := m.RequireAuth(func(w http.ResponseWriter, r *http.Request) { called = true })
	h(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.True(t, called)
}

func TestRequireScope(t *testing.T) {
	m := newTestMiddleware(t)

	viewer := jwt.MapClaims{
		"sub":    "viewer-1",
		"roles":  []string{RoleViewer},
		"scopes": []string{ScopeRead, ScopeTelemetry},
		"exp":    operatorClaims()["exp"],
	}

	tests := []struct {
		name   string
		claims jwt.MapClaims
		scope  string
		want   int
	}{
		{"viewer reads", viewer, ScopeRead, http.StatusOK},
		{"viewer cannot dispatch", viewer, ScopeDispatch, http.StatusForbidden},
		{"operator dispatches", operatorClaims(), ScopeDispatch, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/next", nil)
			req.Header.Set("Authorization", "Bearer "+signHS256(t, testSecret, tt.claims))
			rec := httptest.NewRecorder()
			protected(m, tt.scope)(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestDisabledMiddlewareGrantsAnonymousOperator(t *testing.T) {
	m := NewMiddleware(nil)
	assert.False(t, m.Enabled())

	rec := httptest.NewRecorder()
	protected(m, ScopeDispatch)(rec, httptest.NewRequest(http.MethodPost, "/api/v1/orders/next", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", rec.Body.String())
}

func TestRequireScopeWithoutClaims(t *testing.T) {
	m := newTestMiddleware(t)

	rec := httptest.NewRecorder()
	m.RequireScope(ScopeRead)(func(w http.ResponseWriter, r *http.Request) {})(rec,
		httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
