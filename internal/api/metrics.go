package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/devghori1264/prodmon/internal/metrics"
)

// RegisterMetrics registers Prometheus handler in provided mux
func RegisterMetrics(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.Handler())
}

// instrument counts and times requests under the route template.
func instrument(route string, next http.Handler) http.Handler {
	labels := prometheus.Labels{"route": route}
	counted := promhttp.InstrumentHandlerCounter(metrics.HTTPRequests.MustCurryWith(labels), next)
	return promhttp.InstrumentHandlerDuration(metrics.HTTPRequestDuration.MustCurryWith(labels), counted)
}

// handle registers fn on r at path with instrumentation.
func handle(r *mux.Router, path string, fn http.HandlerFunc) *mux.Route {
	return r.Handle(path, instrument(path, fn))
}
