package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	dto "github.com/prometheus/client_model/go"
)

func TestAdminAuth(t *testing.T) {
	r := gin.New()
	r.GET("/on", AdminAuth("s3cret"), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/off", AdminAuth(""), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	do := func(path, token string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set(HeaderAdminToken, token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	if got := do("/on", ""); got != http.StatusUnauthorized {
		t.Fatalf("missing token: %d", got)
	}
	if got := do("/on", "nope"); got != http.StatusUnauthorized {
		t.Fatalf("wrong token: %d", got)
	}
	if got := do("/on", "s3cret"); got != http.StatusNoContent {
		t.Fatalf("good token: %d", got)
	}
	if got := do("/off", "s3cret"); got != http.StatusForbidden {
		t.Fatalf("disabled admin: %d", got)
	}
}

func TestIdempotencyKey(t *testing.T) {
	r := gin.New()
	r.POST("/jobs", IdempotencyKey(IdempotencyOptions{MaxLen: 16}), func(c *gin.Context) {
		k, ok := GetIdempotencyKey(c)
		if !ok {
			k = "none"
		}
		c.String(http.StatusOK, k)
	})

	do := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/jobs", nil)
		if key != "" {
			req.Header.Set(HeaderIdempotencyKey, key)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}
	if w := do(""); w.Body.String() != "none" {
		t.Fatalf("absent key: %q", w.Body.String())
	}
	if w := do("scan:2025-01-01"); w.Code != http.StatusOK || w.Body.String() != "scan:2025-01-01" {
		t.Fatalf("valid key: %d %q", w.Code, w.Body.String())
	}
	if w := do("has space"); w.Code != http.StatusBadRequest {
		t.Fatalf("bad charset: %d", w.Code)
	}
	if w := do(strings.Repeat("a", 17)); w.Code != http.StatusBadRequest {
		t.Fatalf("too long: %d", w.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(0.001, 2, KeyByIP())
	r := gin.New()
	r.Use(rl.Handler())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
		if w.Code == http.StatusTooManyRequests && w.Header().Get("Retry-After") != "1" {
			t.Fatalf("missing Retry-After")
		}
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != 429 {
		t.Fatalf("codes = %v", codes)
	}

	// other clients have their own bucket
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("second client limited: %d", w.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour, NoStore: true}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Header().Get("X-Content-Type-Options") != "nosniff" || w.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("headers = %v", w.Header())
	}
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS on plain http")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Strict-Transport-Security"); got != "max-age=3600; includeSubDomains" {
		t.Fatalf("HSTS = %q", got)
	}
}

func TestSecurityHeaders_ExposesRequestID(t *testing.T) {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		c.Next()
	})
	r.Use(RequestID())
	r.Use(SecurityHeaders(SecurityOptions{}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := w.Header().Get("Access-Control-Expose-Headers"); got != "Content-Length, X-Request-ID" {
		t.Fatalf("expose = %q", got)
	}

	// Already listed: left alone.
	r2 := gin.New()
	r2.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Expose-Headers", "x-request-id")
		c.Next()
	})
	r2.Use(RequestID())
	r2.Use(SecurityHeaders(SecurityOptions{}))
	r2.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	w = httptest.NewRecorder()
	r2.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := w.Header().Get("Access-Control-Expose-Headers"); got != "x-request-id" {
		t.Fatalf("expose = %q", got)
	}
}

func TestMetrics_CollapsesUnmatched(t *testing.T) {
	r := gin.New()
	r.Use(Metrics())
	r.GET("/known/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := counterValue(t, httpReqs.WithLabelValues(http.MethodGet, unmatchedPath, "404"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/random/path", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/known/42", nil))

	if got := counterValue(t, httpReqs.WithLabelValues(http.MethodGet, unmatchedPath, "404")); got != before+1 {
		t.Fatalf("unmatched counter = %v, want %v", got, before+1)
	}
	if got := counterValue(t, httpReqs.WithLabelValues(http.MethodGet, "/known/:id", "200")); got < 1 {
		t.Fatalf("route counter = %v", got)
	}
}

func counterValue(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}
