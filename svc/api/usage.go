package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/cenety/saascore/pkg/limits"
)

// UsageTracker is implemented by *usage.Tracker.
type UsageTracker interface {
	TrackAsync(ctx context.Context, tenantID uuid.UUID, metric limits.Resource, delta int64) bool
}

// meterAPICalls counts every tenant request that did not fail on the server
// side as one api_calls unit.
func (a *API) meterAPICalls(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww, ok := w.(middleware.WrapResponseWriter)
		if !ok {
			ww = middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		}
		next.ServeHTTP(ww, r)

		tenantID := identity(r).TenantID
		if tenantID == uuid.Nil || ww.Status() >= http.StatusInternalServerError {
			return
		}
		a.usage.TrackAsync(context.WithoutCancel(r.Context()), tenantID, limits.ResourceAPICalls, 1)
	})
}
