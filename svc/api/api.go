package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/text/language"

	"github.com/cenety/saascore/pkg/limits"
	"github.com/cenety/saascore/pkg/notifications"
	"github.com/cenety/saascore/pkg/realtime"
	"github.com/cenety/saascore/pkg/webhook"
)

// LimitChecker is the read side of limits.Enforcer.
type LimitChecker interface {
	Check(ctx context.Context, tenantID uuid.UUID, res limits.Resource) (limits.Decision, error)
	Report(ctx context.Context, tenantID uuid.UUID) []limits.Decision
}

// Notifier is implemented by *notifications.Manager.
type Notifier interface {
	Get(ctx context.Context, userID, id uuid.UUID) (notifications.Notification, error)
	SendToUsers(ctx context.Context, userIDs []uuid.UUID, template notifications.Notification) ([]notifications.Notification, error)
	List(ctx context.Context, userID uuid.UUID, opts notifications.ListOptions) ([]notifications.Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID uuid.UUID, ids ...uuid.UUID) ([]notifications.Notification, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) ([]notifications.Notification, error)
	Delete(ctx context.Context, userID uuid.UUID, ids ...uuid.UUID) ([]notifications.Notification, error)
	DeleteAll(ctx context.Context, userID uuid.UUID) ([]notifications.Notification, error)
}

// Webhooks is implemented by *webhook.Registry.
type Webhooks interface {
	Create(ctx context.Context, tenantID uuid.UUID, in webhook.CreateInput) (webhook.Endpoint, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]webhook.Endpoint, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// EventTrigger is implemented by *webhook.Dispatcher.
type EventTrigger interface {
	Trigger(ctx context.Context, tenantID uuid.UUID, event webhook.Event, data any) int
}

// RequestObserver receives one call per served request.
type RequestObserver interface {
	HTTPRequest(method, route string, status int, elapsed time.Duration)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// API holds the handlers. Route groups whose dependency was not supplied are
// not mounted.
type API struct {
	limits        LimitChecker
	notifications Notifier
	webhooks      Webhooks
	dispatcher    EventTrigger
	usage         UsageTracker
	transport     realtime.Transport
	ticketAccess  TicketAccess
	observer      RequestObserver
	metrics       http.Handler
	checks        map[string]HealthCheck
	logger        *slog.Logger
	defaultLang   language.Tag
	upgrader      websocket.Upgrader
}

type Option func(*API)

func WithLimits(c LimitChecker) Option { return func(a *API) { a.limits = c } }

func WithNotifications(n Notifier) Option { return func(a *API) { a.notifications = n } }

func WithWebhooks(w Webhooks) Option { return func(a *API) { a.webhooks = w } }

// WithEventTrigger enables POST /v1/webhooks/events for admins.
func WithEventTrigger(t EventTrigger) Option { return func(a *API) { a.dispatcher = t } }

// WithUsageTracker meters tenant requests as api_calls.
func WithUsageTracker(t UsageTracker) Option { return func(a *API) { a.usage = t } }

// WithDefaultLanguage sets the language of limit messages for requests
// without a supported Accept-Language. English by default.
func WithDefaultLanguage(tag language.Tag) Option {
	return func(a *API) {
		if tag != language.Und {
			a.defaultLang = tag
		}
	}
}

// WithRealtime mounts the websocket gateway on top of t.
func WithRealtime(t realtime.Transport) Option { return func(a *API) { a.transport = t } }

// TicketAccess reports whether id may follow typing on ticketID. Errors deny.
type TicketAccess func(ctx context.Context, id Identity, ticketID string) (bool, error)

// WithTicketAccess restricts typing channels to the users fn allows. Without
// it any authenticated user may join any ticket's typing channel.
func WithTicketAccess(fn TicketAccess) Option { return func(a *API) { a.ticketAccess = fn } }

// WithMetrics records request metrics with o and serves h on /metrics.
func WithMetrics(o RequestObserver, h http.Handler) Option {
	return func(a *API) {
		a.observer = o
		a.metrics = h
	}
}

// WithHealthCheck adds a named readiness check to /healthz.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(a *API) {
		if check != nil {
			a.checks[name] = check
		}
	}
}

// WithCheckOrigin overrides the websocket origin policy. The default rejects
// cross-origin browser requests.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(a *API) { a.upgrader.CheckOrigin = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.logger = l
		}
	}
}

func New(opts ...Option) *API {
	a := &API{
		checks:      make(map[string]HealthCheck),
		logger:      slog.Default(),
		defaultLang: language.English,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Routes builds the router.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID, middleware.Recoverer, a.instrument)

	r.Get("/healthz", a.health)
	if a.metrics != nil {
		r.Method(http.MethodGet, "/metrics", a.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(a.identity, a.language)
		if a.usage != nil {
			r.Use(a.meterAPICalls)
		}

		if a.limits != nil {
			r.With(a.requireTenant).Get("/limits", a.listLimits)
			r.With(a.requireTenant).Get("/limits/{resource}", a.getLimit)
		}

		if a.notifications != nil {
			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", a.listNotifications)
				r.Delete("/", a.deleteAllNotifications)
				r.Get("/unread-count", a.unreadCount)
				r.Post("/read-all", a.markAllRead)
				r.Post("/{id}/read", a.markRead)
				r.Delete("/{id}", a.deleteNotification)
			})
			r.With(a.requireAdmin).Post("/admin/notifications", a.sendNotifications)
		}

		if a.webhooks != nil {
			r.Route("/webhooks", func(r chi.Router) {
				r.Use(a.requireTenant)
				r.Get("/", a.listWebhooks)
				r.Post("/", a.createWebhook)
				r.Delete("/{id}", a.deleteWebhook)
				if a.dispatcher != nil {
					r.With(a.requireAdmin).Post("/events", a.triggerEvent)
				}
			})
		}

		if a.transport != nil {
			r.Get("/realtime", a.gateway)
		}
	})

	return r
}

func identity(r *http.Request) Identity {
	id, _ := IdentityFromContext(r.Context())
	return id
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, ErrInvalidRequest
	}
	return id, nil
}
