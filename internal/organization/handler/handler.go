// Package handler exposes organization endpoints over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"taxgate/internal/authz"
	"taxgate/internal/organization/models"
	id "taxgate/pkg/domain"
	"taxgate/pkg/platform/httputil"
	"taxgate/pkg/requestcontext"
)

// Service is the organization surface the handler depends on.
type Service interface {
	Create(ctx context.Context, req models.CreateOrganizationRequest) (models.Organization, error)
	Get(ctx context.Context, orgID id.OrgID) (models.Organization, error)
	List(ctx context.Context) ([]models.Organization, error)
}

type Handler struct {
	logger   *slog.Logger
	orgs     Service
	enforcer *authz.Enforcer
}

func New(orgs Service, enforcer *authz.Enforcer, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, orgs: orgs, enforcer: enforcer}
}

// Register registers organization routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/organizations", h.handleCreate)
	r.Get("/organizations", h.handleList)
	r.Get("/organizations/{orgID}", h.handleGet)
}

// handleCreate provisions a tenant. No role has a create rule for
// organizations, so only admins get past the enforcer.
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.CreateOrganizationRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	res := authz.Resource{Type: authz.ResourceOrganization}
	org, err := authz.Enforce(ctx, h.enforcer, httputil.BearerToken(r), authz.ActionCreate, res, func(ctx context.Context) (models.Organization, error) {
		return h.orgs.Create(ctx, req)
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, org.ToResponse())
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	res := authz.Resource{Type: authz.ResourceOrganization}
	orgs, err := authz.Enforce(ctx, h.enforcer, httputil.BearerToken(r), authz.ActionList, res, func(ctx context.Context) ([]models.Organization, error) {
		return h.orgs.List(ctx)
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]models.OrganizationResponse, 0, len(orgs))
	for _, org := range orgs {
		out = append(out, org.ToResponse())
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, err := id.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res := authz.OrganizationResource(orgID)
	org, err := authz.Enforce(ctx, h.enforcer, httputil.BearerToken(r), authz.ActionRead, res, func(ctx context.Context) (models.Organization, error) {
		return h.orgs.Get(ctx, orgID)
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, org.ToResponse())
}
