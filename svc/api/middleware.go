package api

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"
	UserIDHeader    = "X-User-ID"
	TenantIDHeader  = "X-Tenant-ID"
	RoleHeader      = "X-User-Role"

	// AdminRole is the X-User-Role value allowed to use /v1/admin routes.
	AdminRole = "ADMIN"

	maxRequestIDLength = 128
)

var validRequestID = regexp.MustCompile("^[a-zA-Z0-9_-]+$")

type (
	requestIDKey struct{}
	identityKey  struct{}
)

// Identity is the caller as asserted by the upstream gateway.
type Identity struct {
	UserID   uuid.UUID
	TenantID uuid.UUID // uuid.Nil when the request carries no tenant
	Role     string
}

// IsAdmin reports whether the caller may use admin routes.
func (i Identity) IsAdmin() bool { return strings.EqualFold(i.Role, AdminRole) }

// RequestIDFromContext returns the request id set by the middleware, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestIDExtractor adds request_id to log records written with a request context.
func RequestIDExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id := RequestIDFromContext(ctx); id != "" {
			return slog.String("request_id", id), true
		}
		return slog.Attr{}, false
	}
}

// IdentityFromContext returns the caller identity for requests that passed
// the identity middleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// requestID reuses a well-formed client supplied X-Request-ID and generates
// one otherwise. The id is echoed in the response.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLength || !validRequestID.MatchString(id) {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func (a *API) identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(r.Header.Get(UserIDHeader))
		if err != nil || userID == uuid.Nil {
			a.fail(w, r, ErrUnauthenticated)
			return
		}
		id := Identity{UserID: userID, Role: r.Header.Get(RoleHeader)}
		if raw := r.Header.Get(TenantIDHeader); raw != "" {
			tenantID, err := uuid.Parse(raw)
			if err != nil {
				a.fail(w, r, ErrNoTenant)
				return
			}
			id.TenantID = tenantID
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
	})
}

func (a *API) requireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, _ := IdentityFromContext(r.Context()); id.TenantID == uuid.Nil {
			a.fail(w, r, ErrNoTenant)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, _ := IdentityFromContext(r.Context()); !id.IsAdmin() {
			a.fail(w, r, ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// instrument records request counts and latency by route pattern.
func (a *API) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if a.observer == nil {
			return
		}
		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		a.observer.HTTPRequest(r.Method, route, status, time.Since(start))
	})
}
