package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	Init()

	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/v1/things/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpReqs.WithLabelValues("/v1/things/{id}", http.MethodGet, http.StatusText(http.StatusTeapot)))

	req := httptest.NewRequest(http.MethodGet, "/v1/things/42", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	after := testutil.ToFloat64(httpReqs.WithLabelValues("/v1/things/{id}", http.MethodGet, http.StatusText(http.StatusTeapot)))
	if after-before != 1 {
		t.Errorf("expected counter to increase by 1, got %v", after-before)
	}
}

func TestInit_Idempotent(t *testing.T) {
	Init()
	Init()
}

func TestHandler_ExposesPlacementMetrics(t *testing.T) {
	Init()
	Resolutions.WithLabelValues("local").Inc()

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), "placement_resolutions_total") {
		t.Error("expected placement_resolutions_total in metrics output")
	}
}

func TestSetupTracing_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}
