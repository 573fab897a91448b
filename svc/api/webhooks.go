package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cenety/saascore/pkg/webhook"
)

// CreatedWebhook is returned once, on creation. The secret is not readable
// afterwards.
type CreatedWebhook struct {
	webhook.Endpoint
	Secret string `json:"secret"`
}

func (a *API) createWebhook(w http.ResponseWriter, r *http.Request) {
	var in webhook.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	ep, err := a.webhooks.Create(r.Context(), identity(r).TenantID, in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, CreatedWebhook{Endpoint: ep, Secret: ep.Secret})
}

func (a *API) listWebhooks(w http.ResponseWriter, r *http.Request) {
	list, err := a.webhooks.List(r.Context(), identity(r).TenantID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if list == nil {
		list = []webhook.Endpoint{}
	}
	respond(w, http.StatusOK, list)
}

func (a *API) deleteWebhook(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.webhooks.Delete(r.Context(), identity(r).TenantID, id); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TriggerRequest is the body of POST /v1/webhooks/events.
type TriggerRequest struct {
	Event webhook.Event   `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// triggerEvent queues event for every subscribed endpoint of the tenant.
// Used to test endpoints by hand.
func (a *API) triggerEvent(w http.ResponseWriter, r *http.Request) {
	var req TriggerRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if _, err := webhook.ParseEvent(string(req.Event)); err != nil {
		a.fail(w, r, errors.Join(ErrInvalidRequest, err))
		return
	}
	var data any = req.Data
	if len(req.Data) == 0 {
		data = map[string]any{}
	}
	n := a.dispatcher.Trigger(r.Context(), identity(r).TenantID, req.Event, data)
	respond(w, http.StatusAccepted, map[string]int{"queued": n})
}
