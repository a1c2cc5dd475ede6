package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func corsRouter(allowed string) *gin.Engine {
	r := gin.New()
	r.Use(CORSMiddleware(allowed))
	r.GET("/api/brands", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

func TestCORSMiddleware_Headers(t *testing.T) {
	tests := []struct {
		name        string
		allowed     string
		origin      string
		wantOrigin  string
		wantCreds   string
		wantVary    string
		wantExposed string
	}{
		{
			name: "wildcard allows any origin without credentials", allowed: "*", origin: "http://example.com",
			wantOrigin: "*", wantExposed: HeaderSessionID,
		},
		{
			name: "listed origin is echoed with credentials", allowed: "http://dash.local,http://admin.local", origin: "http://admin.local",
			wantOrigin: "http://admin.local", wantCreds: "true", wantVary: "Origin", wantExposed: HeaderSessionID,
		},
		{
			name: "list entries are trimmed", allowed: "  http://a.com  ,  http://b.com  ", origin: "http://a.com",
			wantOrigin: "http://a.com", wantCreds: "true", wantVary: "Origin", wantExposed: HeaderSessionID,
		},
		{
			name: "unlisted origin gets no headers", allowed: "http://dash.local", origin: "http://evil.example",
		},
		{
			name: "empty list allows nothing", allowed: "", origin: "http://example.com",
		},
		{
			name: "requests without origin are untouched", allowed: "http://dash.local", origin: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/brands", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()

			corsRouter(tt.allowed).ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code, "CORS never blocks the request itself")
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCreds, w.Header().Get("Access-Control-Allow-Credentials"))
			assert.Equal(t, tt.wantVary, w.Header().Get("Vary"))
			assert.Equal(t, tt.wantExposed, w.Header().Get("Access-Control-Expose-Headers"))
		})
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	r := corsRouter("*")

	req := httptest.NewRequest(http.MethodOptions, "/api/brands", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "PUT")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PUT")
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), HeaderSessionID)
}

func TestCORSMiddleware_PreflightEchoesRequestedHeaders(t *testing.T) {
	r := corsRouter("*")

	req := httptest.NewRequest(http.MethodOptions, "/api/brands", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "X-Session-ID, Content-Type")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "X-Session-ID, Content-Type", w.Header().Get("Access-Control-Allow-Headers"))
}
