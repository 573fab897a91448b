package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cenety/saascore/pkg/limits"
)

// Usage is a Decision with the derived values dashboards show.
type Usage struct {
	limits.Decision
	Remaining  int64 `json:"remaining"`
	Percentage int   `json:"percentage"`
}

func usage(d limits.Decision) Usage {
	return Usage{Decision: d, Remaining: d.Remaining(), Percentage: d.Percentage()}
}

func (a *API) listLimits(w http.ResponseWriter, r *http.Request) {
	decisions := a.limits.Report(r.Context(), identity(r).TenantID)
	out := make([]Usage, 0, len(decisions))
	for _, d := range decisions {
		out = append(out, usage(d))
	}
	respond(w, http.StatusOK, out)
}

func (a *API) getLimit(w http.ResponseWriter, r *http.Request) {
	res, err := limits.ParseResource(chi.URLParam(r, "resource"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	d, err := a.limits.Check(r.Context(), identity(r).TenantID, res)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, usage(d))
}
