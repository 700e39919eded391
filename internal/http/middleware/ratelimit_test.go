package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestKeyByOperatorOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "203.0.113.7:1234"

	if got := KeyByOperatorOrIP()(c); got != "ip:203.0.113.7" {
		t.Fatalf("anonymous key = %q", got)
	}
	c.Set(operatorIDKey, int64(42))
	if got := KeyByOperatorOrIP()(c); got != "op:42" {
		t.Fatalf("operator key = %q", got)
	}
}

func TestRateLimiter_ReusesBucketsAndCollectsIdle(t *testing.T) {
	rl := NewRateLimiter(1, 0, KeyByOperatorOrIP())
	if rl.burst != 1 {
		t.Fatalf("burst = %d, want coerced to 1", rl.burst)
	}
	now := time.Unix(0, 0)
	rl.now = func() time.Time { return now }
	rl.gcEvery = 2

	a := rl.limiter("a")
	if rl.limiter("a") != a {
		t.Fatal("bucket should be reused")
	}
	now = now.Add(rl.ttl)
	// Second lookup since the last collection triggers GC before "b" is added.
	rl.limiter("b")
	rl.limiter("b")
	if _, ok := rl.visitors["a"]; ok {
		t.Fatal("idle bucket should be collected")
	}
}

func TestRateLimiter_Handler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(0.0001, 1, func(*gin.Context) string { return "k" })
	r := gin.New()
	r.Use(rl.Handler())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("first = %d", w.Code)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") != "1" {
		t.Fatalf("second = %d %v", w.Code, w.Header())
	}
}
