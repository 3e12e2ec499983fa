package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricNamingConvention(t *testing.T) {
	for _, c := range Collectors() {
		ch := make(chan *prometheus.Desc, 10)
		c.Describe(ch)
		close(ch)
		for desc := range ch {
			if !strings.Contains(desc.String(), `fqName: "battdevy_`) {
				t.Errorf("metric %s does not start with battdevy_ prefix", desc.String())
			}
		}
	}
}

func TestObserveAssignment(t *testing.T) {
	before := testutil.ToFloat64(assignmentsTotal.WithLabelValues(OutcomeRejected))
	ObserveAssignment(OutcomeRejected)
	after := testutil.ToFloat64(assignmentsTotal.WithLabelValues(OutcomeRejected))
	if after != before+1 {
		t.Fatalf("expected counter %v, got %v", before+1, after)
	}
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware())
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	router.GET("/metrics", Handler())

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/ping", http.MethodGet, "200"))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/ping", http.MethodGet, "200"))
	if after != before+1 {
		t.Fatalf("expected request counter %v, got %v", before+1, after)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "battdevy_http_requests_total") {
		t.Fatal("expected request counter in exposition")
	}
}
