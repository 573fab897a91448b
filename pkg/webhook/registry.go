package webhook

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/cenety/saascore/pkg/limits"
)

// Enforcer is the part of limits.Enforcer the registry needs.
type Enforcer interface {
	Enforce(ctx context.Context, tenantID uuid.UUID, res limits.Resource) error
}

// CreateInput describes a new endpoint. An empty Secret is generated.
type CreateInput struct {
	Name   string  `json:"name" validate:"required,max=255"`
	URL    string  `json:"url" validate:"required,http_url"`
	Events []Event `json:"events" validate:"required,min=1"`
	Secret string  `json:"secret,omitempty" validate:"omitempty,min=16"`
	Active *bool   `json:"is_active,omitempty"`
}

// Registry manages endpoints within plan limits.
type Registry struct {
	store    Store
	enforcer Enforcer
	validate *validator.Validate
	clock    clockwork.Clock
}

func NewRegistry(store Store, enforcer Enforcer) *Registry {
	return &Registry{
		store:    store,
		enforcer: enforcer,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		clock:    clockwork.NewRealClock(),
	}
}

// Create validates in, checks the tenant's webhooks limit and stores the
// endpoint. A reached limit surfaces as *limits.LimitExceededError.
func (r *Registry) Create(ctx context.Context, tenantID uuid.UUID, in CreateInput) (Endpoint, error) {
	if err := r.validate.StructCtx(ctx, in); err != nil {
		return Endpoint{}, errors.Join(ErrInvalidEndpoint, err)
	}
	for _, e := range in.Events {
		if !e.Valid() {
			return Endpoint{}, fmt.Errorf("%w: %w: %q", ErrInvalidEndpoint, ErrUnknownEvent, e)
		}
	}

	if err := r.enforcer.Enforce(ctx, tenantID, limits.ResourceWebhooks); err != nil {
		return Endpoint{}, err
	}

	secret := in.Secret
	if secret == "" {
		var err error
		if secret, err = generateSecret(); err != nil {
			return Endpoint{}, err
		}
	}

	ep := Endpoint{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      in.Name,
		URL:       in.URL,
		Secret:    secret,
		Events:    in.Events,
		Active:    in.Active == nil || *in.Active,
		CreatedAt: r.clock.Now(),
	}
	if err := r.store.Create(ctx, ep); err != nil {
		return Endpoint{}, err
	}
	return ep, nil
}

func (r *Registry) List(ctx context.Context, tenantID uuid.UUID) ([]Endpoint, error) {
	return r.store.List(ctx, tenantID)
}

func (r *Registry) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.store.Delete(ctx, tenantID, id)
}

func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate webhook secret: %w", err)
	}
	return "whsec_" + hex.EncodeToString(b), nil
}
