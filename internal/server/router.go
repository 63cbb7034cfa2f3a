package server

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/middleware"
)

// NewRouter builds the HTTP handler with all routes and middleware.
//
// Route table:
//
//	POST   /api/v1/index              → build a report for the body
//	GET    /api/v1/runs               → recent runs from the ledger
//	GET    /api/v1/cache/stats        → report cache statistics
//	POST   /api/v1/cache/invalidate   → drop cached reports
//	GET    /health/live               → liveness
//	GET    /health/ready              → readiness
//
// Middleware chain (outermost first):
//
//	RequestID → Metrics → Timeout → handler
//
// m may be nil, in which case no HTTP metrics are recorded.
func NewRouter(h *Handler, checker *health.Checker, m *metrics.Metrics, timeout time.Duration) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/index", h.Index)
	mux.HandleFunc("GET /api/v1/runs", h.Runs)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)

	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(timeout)(chain)
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.RequestID(chain)
	return chain
}
