package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountsByRouteAndFallsBackToRawPath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/orders/:code", func(c *gin.Context) { c.String(http.StatusOK, "x") })
	r.GET("/empty", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	baseRoute := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/orders/:code", "200"))
	baseMiss := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/nope", "404"))

	for _, p := range []string{"/orders/abc", "/orders/def", "/nope", "/empty"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	if d := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/orders/:code", "200")) - baseRoute; d != 2 {
		t.Fatalf("route counter delta = %v, want 2", d)
	}
	if d := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/nope", "404")) - baseMiss; d != 1 {
		t.Fatalf("fallback counter delta = %v, want 1", d)
	}
	if v := testutil.ToFloat64(httpInflight); v != 0 {
		t.Fatalf("inflight = %v", v)
	}
}
