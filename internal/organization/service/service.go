// Package service implements organization lifecycle operations.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"taxgate/internal/organization/models"
	id "taxgate/pkg/domain"
	dErrors "taxgate/pkg/domain-errors"
	"taxgate/pkg/platform/sentinel"
	"taxgate/pkg/requestcontext"
)

// Store persists organizations. Implementations return sentinel errors.
type Store interface {
	Create(ctx context.Context, org models.Organization) error
	FindByID(ctx context.Context, orgID id.OrgID) (models.Organization, error)
	List(ctx context.Context) ([]models.Organization, error)
	Update(ctx context.Context, org models.Organization) error
}

type Service struct {
	orgs   Store
	logger *slog.Logger
}

func New(orgs Store, logger *slog.Logger) *Service {
	return &Service{orgs: orgs, logger: logger}
}

// Create provisions a new tenant.
func (s *Service) Create(ctx context.Context, req models.CreateOrganizationRequest) (models.Organization, error) {
	kind, err := models.ParseKind(req.Kind)
	if err != nil {
		return models.Organization{}, err
	}

	now := requestcontext.Now(ctx)
	org := models.Organization{
		ID:        id.OrgID(uuid.New()),
		Name:      req.Name,
		Kind:      kind,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.orgs.Create(ctx, org); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return models.Organization{}, dErrors.New(dErrors.CodeConflict, "organization already exists")
		}
		return models.Organization{}, dErrors.Wrap(err, dErrors.CodeInternal, "create organization")
	}

	s.logger.InfoContext(ctx, "organization created",
		"request_id", requestcontext.RequestID(ctx),
		"org_id", org.ID.String(),
		"kind", string(org.Kind),
	)
	return org, nil
}

// Get returns a single organization.
func (s *Service) Get(ctx context.Context, orgID id.OrgID) (models.Organization, error) {
	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Organization{}, dErrors.New(dErrors.CodeNotFound, "organization not found")
		}
		return models.Organization{}, dErrors.Wrap(err, dErrors.CodeInternal, "find organization")
	}
	return org, nil
}

// List returns all organizations. Reaching here requires the admin
// short-circuit; no role has a list rule for organizations.
func (s *Service) List(ctx context.Context) ([]models.Organization, error) {
	orgs, err := s.orgs.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list organizations")
	}
	return orgs, nil
}
