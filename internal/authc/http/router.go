package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/realmauth/pkg/httpx"
	"github.com/aussiebroadwan/realmauth/pkg/slogx"
)

// Router serves the operational endpoints of the daemon. Authentication
// itself is an in-process API and is not exposed over HTTP.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	checks       map[string]Pinger
	logger       *slog.Logger
}

// NewRouter registers /livez and /readyz. checks are probed by /readyz,
// keyed by the name reported in the response.
func NewRouter(buildVersion string, checks map[string]Pinger, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		checks:       checks,
		logger:       logger,
	}
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger, "/livez", "/readyz"),
	}
	r.registerSystem()
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.ProbeLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.checks),
			httpx.RateLimitByIP(httpx.ProbeLimit),
		),
	)
}
