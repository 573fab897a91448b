package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/cenety/saascore/pkg/notifications"
)

const maxListLimit = 200

func (a *API) listNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := notifications.ListOptions{OnlyUnread: q.Get("unread") == "true"}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxListLimit {
			a.fail(w, r, ErrInvalidRequest)
			return
		}
		opts.Limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			a.fail(w, r, ErrInvalidRequest)
			return
		}
		opts.Offset = n
	}
	for _, raw := range q["type"] {
		t, err := notifications.ParseType(raw)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		opts.Types = append(opts.Types, t)
	}

	list, err := a.notifications.List(r.Context(), identity(r).UserID, opts)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if list == nil {
		list = []notifications.Notification{}
	}
	respond(w, http.StatusOK, list)
}

func (a *API) unreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := a.notifications.CountUnread(r.Context(), identity(r).UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]int{"count": n})
}

func (a *API) markRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	updated, err := a.notifications.MarkRead(r.Context(), identity(r).UserID, id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if len(updated) > 0 {
		respond(w, http.StatusOK, updated[0])
		return
	}
	// Already read, or not the caller's.
	n, err := a.notifications.Get(r.Context(), identity(r).UserID, id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, n)
}

func (a *API) markAllRead(w http.ResponseWriter, r *http.Request) {
	updated, err := a.notifications.MarkAllRead(r.Context(), identity(r).UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]int{"updated": len(updated)})
}

func (a *API) deleteNotification(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	deleted, err := a.notifications.Delete(r.Context(), identity(r).UserID, id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if len(deleted) == 0 {
		a.fail(w, r, notifications.ErrNotificationNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) deleteAllNotifications(w http.ResponseWriter, r *http.Request) {
	deleted, err := a.notifications.DeleteAll(r.Context(), identity(r).UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]int{"deleted": len(deleted)})
}

// BulkSendRequest is the body of POST /v1/admin/notifications.
type BulkSendRequest struct {
	UserIDs   []uuid.UUID        `json:"user_ids"`
	Type      notifications.Type `json:"type"`
	Title     string             `json:"title"`
	Content   string             `json:"content"`
	ActionURL string             `json:"action_url,omitempty"`
}

func (a *API) sendNotifications(w http.ResponseWriter, r *http.Request) {
	var req BulkSendRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if len(req.UserIDs) == 0 {
		a.fail(w, r, ErrInvalidRequest)
		return
	}

	sent, err := a.notifications.SendToUsers(r.Context(), req.UserIDs, notifications.Notification{
		Type:      req.Type,
		Title:     req.Title,
		Content:   req.Content,
		ActionURL: req.ActionURL,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, map[string]int{"sent": len(sent)})
}
