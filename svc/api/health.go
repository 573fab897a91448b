package api

import (
	"context"
	"net/http"
	"time"

	"github.com/cenety/saascore/pkg/logger"
)

const healthTimeout = 3 * time.Second

// health runs every registered check. Without checks it only reports liveness.
func (a *API) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(a.checks))
	for name, check := range a.checks {
		if err := check(ctx); err != nil {
			a.logger.ErrorContext(ctx, "readiness check failed", logger.Component(name), logger.Error(err))
			results[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "up"
	}

	body := map[string]any{"status": "ready", "checks": results}
	if status != http.StatusOK {
		body["status"] = "not_ready"
	}
	respond(w, status, body)
}
