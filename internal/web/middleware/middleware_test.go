package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JonMunkholm/geoimport/internal/config"
	"github.com/stretchr/testify/assert"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(r.RemoteAddr))
})

func TestAPIKeyAuth(t *testing.T) {
	cfg := &config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"alpha", "beta"}}
	h := APIKeyAuth(cfg)(okHandler)

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
		code   string
	}{
		{"missing", func(*http.Request) {}, http.StatusUnauthorized, "AUTH_MISSING_KEY"},
		{"invalid", func(r *http.Request) { r.Header.Set("X-API-Key", "gamma") }, http.StatusForbidden, "AUTH_INVALID_KEY"},
		{"header", func(r *http.Request) { r.Header.Set("X-API-Key", "beta") }, http.StatusOK, ""},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer alpha") }, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/imports/status", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.code != "" {
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
				assert.Contains(t, rec.Body.String(), tt.code)
			}
		})
	}
}

func TestAPIKeyAuth_QueryParam(t *testing.T) {
	cfg := &config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"alpha"}}
	rec := httptest.NewRecorder()
	APIKeyAuth(cfg)(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/imports/x/progress?api_key=alpha", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyAuth_Disabled(t *testing.T) {
	rec := httptest.NewRecorder()
	APIKeyAuth(&config.SecurityConfig{})(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTrustedRealIP(t *testing.T) {
	h := TrustedRealIP([]string{"10.0.0.0/8", "192.168.1.5", "not-a-cidr"})(okHandler)

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"untrusted peer keeps address", "203.0.113.9:5000", map[string]string{"X-Real-IP": "1.2.3.4"}, "203.0.113.9:5000"},
		{"trusted cidr real ip", "10.1.2.3:5000", map[string]string{"X-Real-IP": "1.2.3.4"}, "1.2.3.4"},
		{"trusted single ip forwarded for", "192.168.1.5:80", map[string]string{"X-Forwarded-For": "5.6.7.8, 10.0.0.1"}, "5.6.7.8"},
		{"trusted but invalid header", "10.1.2.3:5000", map[string]string{"X-Real-IP": "garbage"}, "10.1.2.3:5000"},
		{"trusted without headers", "10.1.2.3:5000", nil, "10.1.2.3:5000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Body.String())
		})
	}
}

func TestLogger_CapturesStatusAndFlushes(t *testing.T) {
	var flushed bool
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hi"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
			flushed = true
		}
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "hi", rec.Body.String())
	assert.True(t, flushed)
	assert.True(t, rec.Flushed)
}
