// Package service implements taxpayer profile operations for an organization:
// capture, maintenance, verification, bulk import, and roster statistics.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"taxgate/internal/taxpayer/metrics"
	"taxgate/internal/taxpayer/models"
	id "taxgate/pkg/domain"
	dErrors "taxgate/pkg/domain-errors"
	"taxgate/pkg/platform/sentinel"
	"taxgate/pkg/requestcontext"
)

// Store persists taxpayers. Implementations return sentinel errors and
// exclude soft-deleted rows from reads.
type Store interface {
	Create(ctx context.Context, tp models.Taxpayer) error
	FindByID(ctx context.Context, taxpayerID id.TaxpayerID) (models.Taxpayer, error)
	FindByTIN(ctx context.Context, orgID id.OrgID, tin string) (models.Taxpayer, error)
	ListByOrg(ctx context.Context, orgID id.OrgID, filter models.ListFilter) ([]models.Taxpayer, error)
	Update(ctx context.Context, tp models.Taxpayer) error
	SoftDelete(ctx context.Context, taxpayerID id.TaxpayerID, at time.Time) error
	CountByOrg(ctx context.Context, orgID id.OrgID) (int, error)
	CountByOrgAndStatus(ctx context.Context, orgID id.OrgID, status models.Status) (int, error)
}

type Service struct {
	taxpayers Store
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics attaches taxpayer metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(taxpayers Store, opts ...Option) *Service {
	s := &Service{
		taxpayers: taxpayers,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create captures a new taxpayer profile in the organization.
func (s *Service) Create(ctx context.Context, orgID id.OrgID, req models.CreateTaxpayerRequest) (models.Taxpayer, error) {
	if orgID.IsNil() {
		return models.Taxpayer{}, dErrors.New(dErrors.CodeInvalidInput, "organization id is required")
	}

	tp := newTaxpayer(orgID, req, requestcontext.Now(ctx))
	if err := s.taxpayers.Create(ctx, tp); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return models.Taxpayer{}, dErrors.New(dErrors.CodeConflict, "taxpayer with this TIN already exists")
		}
		return models.Taxpayer{}, dErrors.Wrap(err, dErrors.CodeInternal, "create taxpayer")
	}

	s.metrics.IncCreated(1)
	s.logger.InfoContext(ctx, "taxpayer created",
		"request_id", requestcontext.RequestID(ctx),
		"taxpayer_id", tp.ID.String(),
		"org_id", orgID.String(),
	)
	return tp, nil
}

// BulkCreate imports a validated batch row by row. A conflicting or failing
// row is reported in the result and does not block the rest of the batch, so
// a re-run of a partially imported file only re-reports the existing rows.
func (s *Service) BulkCreate(ctx context.Context, orgID id.OrgID, req models.BulkCreateRequest) (models.BulkResult, error) {
	if orgID.IsNil() {
		return models.BulkResult{}, dErrors.New(dErrors.CodeInvalidInput, "organization id is required")
	}

	now := requestcontext.Now(ctx)
	var result models.BulkResult
	for i, item := range req.Taxpayers {
		tp := newTaxpayer(orgID, item, now)
		if err := s.taxpayers.Create(ctx, tp); err != nil {
			reason := "taxpayer could not be stored"
			if errors.Is(err, sentinel.ErrConflict) {
				reason = "taxpayer with this TIN already exists"
			} else {
				s.logger.ErrorContext(ctx, "bulk import row failed",
					"request_id", requestcontext.RequestID(ctx),
					"org_id", orgID.String(),
					"row", i,
					"error", err,
				)
			}
			result.Failed = append(result.Failed, models.BulkRowFailure{Index: i, TIN: tp.TIN, Error: reason})
			continue
		}
		result.Created = append(result.Created, tp)
	}

	s.metrics.IncCreated(len(result.Created))
	s.metrics.ObserveBulkImport(len(req.Taxpayers))
	s.logger.InfoContext(ctx, "taxpayer batch imported",
		"request_id", requestcontext.RequestID(ctx),
		"org_id", orgID.String(),
		"imported", len(result.Created),
		"rejected", len(result.Failed),
	)
	return result, nil
}

// Get returns a single taxpayer.
func (s *Service) Get(ctx context.Context, taxpayerID id.TaxpayerID) (models.Taxpayer, error) {
	tp, err := s.taxpayers.FindByID(ctx, taxpayerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Taxpayer{}, dErrors.New(dErrors.CodeNotFound, "taxpayer not found")
		}
		return models.Taxpayer{}, dErrors.Wrap(err, dErrors.CodeInternal, "find taxpayer")
	}
	return tp, nil
}

// FindByTIN looks up a taxpayer by its tax identification number within the
// organization.
func (s *Service) FindByTIN(ctx context.Context, orgID id.OrgID, rawTIN string) (models.Taxpayer, error) {
	tin, err := models.NormalizeTIN(rawTIN)
	if err != nil {
		return models.Taxpayer{}, err
	}
	tp, err := s.taxpayers.FindByTIN(ctx, orgID, tin)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Taxpayer{}, dErrors.New(dErrors.CodeNotFound, "taxpayer not found")
		}
		return models.Taxpayer{}, dErrors.Wrap(err, dErrors.CodeInternal, "find taxpayer by TIN")
	}
	return tp, nil
}

// List returns the organization's taxpayers, oldest first.
func (s *Service) List(ctx context.Context, orgID id.OrgID, filter models.ListFilter) ([]models.Taxpayer, error) {
	if filter.Status != "" && filter.Status != models.StatusPending && filter.Status != models.StatusVerified {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown status filter")
	}
	out, err := s.taxpayers.ListByOrg(ctx, orgID, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list taxpayers")
	}
	return out, nil
}

// Update applies profile changes. TIN and organization are immutable.
func (s *Service) Update(ctx context.Context, taxpayerID id.TaxpayerID, req models.UpdateTaxpayerRequest) (models.Taxpayer, error) {
	tp, err := s.Get(ctx, taxpayerID)
	if err != nil {
		return models.Taxpayer{}, err
	}

	if req.FirstName != nil {
		tp.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		tp.LastName = *req.LastName
	}
	if req.Email != nil {
		tp.Email = *req.Email
	}
	tp.UpdatedAt = requestcontext.Now(ctx)

	if err := s.taxpayers.Update(ctx, tp); err != nil {
		return models.Taxpayer{}, dErrors.Wrap(err, dErrors.CodeInternal, "update taxpayer")
	}
	return tp, nil
}

// Delete soft-deletes the profile. The row survives for the audit trail but
// disappears from reads; its TIN becomes reusable.
func (s *Service) Delete(ctx context.Context, taxpayerID id.TaxpayerID) error {
	err := s.taxpayers.SoftDelete(ctx, taxpayerID, requestcontext.Now(ctx))
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "taxpayer not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "delete taxpayer")
	}
	return nil
}

// Verify confirms the taxpayer's identity. Not idempotent: re-verifying is a
// conflict so a double submission is visible to the caller.
func (s *Service) Verify(ctx context.Context, taxpayerID id.TaxpayerID, verifiedBy id.UserID) (models.Taxpayer, error) {
	tp, err := s.Get(ctx, taxpayerID)
	if err != nil {
		return models.Taxpayer{}, err
	}
	if tp.Status == models.StatusVerified {
		return models.Taxpayer{}, dErrors.New(dErrors.CodeConflict, "taxpayer is already verified")
	}

	now := requestcontext.Now(ctx)
	tp.Status = models.StatusVerified
	tp.VerifiedAt = &now
	tp.VerifiedBy = verifiedBy
	tp.UpdatedAt = now

	if err := s.taxpayers.Update(ctx, tp); err != nil {
		return models.Taxpayer{}, dErrors.Wrap(err, dErrors.CodeInternal, "verify taxpayer")
	}

	s.metrics.IncVerified()
	s.logger.InfoContext(ctx, "taxpayer verified",
		"request_id", requestcontext.RequestID(ctx),
		"taxpayer_id", tp.ID.String(),
		"verified_by", verifiedBy.String(),
	)
	return tp, nil
}

// Stats summarizes the organization's roster. The three counts are
// independent queries and run concurrently.
func (s *Service) Stats(ctx context.Context, orgID id.OrgID) (models.Stats, error) {
	var stats models.Stats

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		total, err := s.taxpayers.CountByOrg(ctx, orgID)
		stats.Total = total
		return err
	})
	g.Go(func() error {
		pending, err := s.taxpayers.CountByOrgAndStatus(ctx, orgID, models.StatusPending)
		stats.Pending = pending
		return err
	})
	g.Go(func() error {
		verified, err := s.taxpayers.CountByOrgAndStatus(ctx, orgID, models.StatusVerified)
		stats.Verified = verified
		return err
	})
	if err := g.Wait(); err != nil {
		return models.Stats{}, dErrors.Wrap(err, dErrors.CodeInternal, "taxpayer stats")
	}
	return stats, nil
}

func newTaxpayer(orgID id.OrgID, req models.CreateTaxpayerRequest, now time.Time) models.Taxpayer {
	return models.Taxpayer{
		ID:        id.TaxpayerID(uuid.New()),
		OrgID:     orgID,
		TIN:       req.TIN,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
