package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func corsRequest(t *testing.T, allowed []string, method, origin string, preflight bool) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(method, "/api/doctors", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	}
	rec := httptest.NewRecorder()
	CORS(allowed)(next).ServeHTTP(rec, req)
	return rec, called
}

func TestCORSEchoesListedOrigin(t *testing.T) {
	rec, called := corsRequest(t, []string{"https://dashboard.example.com/"}, http.MethodGet, "https://dashboard.example.com", false)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://dashboard.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-Request-ID")
}

func TestCORSPreflight(t *testing.T) {
	rec, called := corsRequest(t, []string{"https://app.example.com"}, http.MethodOptions, "https://app.example.com", true)
	assert.False(t, called)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))

	rec, called = corsRequest(t, []string{"https://app.example.com"}, http.MethodOptions, "https://evil.example.com", true)
	assert.False(t, called)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSUnknownOriginPassesWithoutHeaders(t *testing.T) {
	rec, called := corsRequest(t, []string{"https://app.example.com"}, http.MethodGet, "https://evil.example.com", false)

	assert.True(t, called)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSWildcardAndNoOrigin(t *testing.T) {
	rec, _ := corsRequest(t, []string{"*"}, http.MethodGet, "https://anything.example", false)
	assert.Equal(t, "https://anything.example", rec.Header().Get("Access-Control-Allow-Origin"))

	rec, called := corsRequest(t, []string{"*"}, http.MethodOptions, "", true)
	assert.True(t, called)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Methods"))
}
