package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func TestRegistry(t *testing.T) {
	if Registry == nil {
		t.Error("Registry should not be nil")
	}

	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
}

func TestHandler(t *testing.T) {
	counter := promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Name: "worker_metrics_handler_test_total",
		Help: "Counter registered by the handler test",
	})
	counter.Inc()

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	body := w.Body.String()
	if !strings.Contains(body, "# HELP") || !strings.Contains(body, "# TYPE") {
		t.Error("Expected Prometheus format metrics output")
	}
	if !strings.Contains(body, "worker_metrics_handler_test_total 1") {
		t.Error("Expected output to contain the registered counter")
	}
}
