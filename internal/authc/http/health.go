package http

import (
	"context"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/aussiebroadwan/realmauth/pkg/httpx"
)

// Pinger is a dependency /readyz probes, such as the account store or a
// remote cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthResponse struct {
	Status  string            `json:"status"`
	Uptime  string            `json:"uptime,omitempty"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// LivezHandler reports ok whenever the process is serving.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler pings every check and answers 503 when any of them fails.
func ReadyzHandler(startTime time.Time, version string, checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  make(map[string]string, len(checks)),
		}
		code := http.StatusOK

		for _, name := range slices.Sorted(maps.Keys(checks)) {
			resp.Checks[name] = "ok"
			if err := checks[name].Ping(ctx); err != nil {
				resp.Checks[name] = "error: " + err.Error()
				resp.Status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}

		httpx.WriteJSON(w, code, resp)
	}
}
