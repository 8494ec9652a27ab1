// Package handler exposes taxpayer endpoints over HTTP. Every route runs
// through the enforcer; the handler itself never checks roles.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"taxgate/internal/authz"
	"taxgate/internal/taxpayer/models"
	id "taxgate/pkg/domain"
	dErrors "taxgate/pkg/domain-errors"
	"taxgate/pkg/platform/httputil"
	"taxgate/pkg/requestcontext"
)

// Service is the taxpayer surface the handler depends on.
type Service interface {
	Create(ctx context.Context, orgID id.OrgID, req models.CreateTaxpayerRequest) (models.Taxpayer, error)
	BulkCreate(ctx context.Context, orgID id.OrgID, req models.BulkCreateRequest) (models.BulkResult, error)
	Get(ctx context.Context, taxpayerID id.TaxpayerID) (models.Taxpayer, error)
	FindByTIN(ctx context.Context, orgID id.OrgID, tin string) (models.Taxpayer, error)
	List(ctx context.Context, orgID id.OrgID, filter models.ListFilter) ([]models.Taxpayer, error)
	Update(ctx context.Context, taxpayerID id.TaxpayerID, req models.UpdateTaxpayerRequest) (models.Taxpayer, error)
	Delete(ctx context.Context, taxpayerID id.TaxpayerID) error
	Verify(ctx context.Context, taxpayerID id.TaxpayerID, verifiedBy id.UserID) (models.Taxpayer, error)
	Stats(ctx context.Context, orgID id.OrgID) (models.Stats, error)
}

type Handler struct {
	logger    *slog.Logger
	taxpayers Service
	enforcer  *authz.Enforcer
}

func New(taxpayers Service, enforcer *authz.Enforcer, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, taxpayers: taxpayers, enforcer: enforcer}
}

// Register registers taxpayer routes with the chi router. Collection routes
// carry the owning organization in the path so the resource scope is explicit
// before any data is touched.
func (h *Handler) Register(r chi.Router) {
	r.Route("/organizations/{orgID}/taxpayers", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Post("/bulk", h.handleBulkCreate)
		r.Get("/stats", h.handleStats)
		r.Get("/tin/{tin}", h.handleFindByTIN)
	})
	r.Route("/taxpayers/{taxpayerID}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Patch("/", h.handleUpdate)
		r.Delete("/", h.handleDelete)
		r.Post("/verify", h.handleVerify)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, err := id.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.CreateTaxpayerRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	res := authz.TaxpayerCollection(orgID)
	tp, err := authz.Enforce(ctx, h.enforcer, httputil.BearerToken(r), authz.ActionCreate, res, func(ctx context.Context) (models.Taxpayer, error) {
		return h.taxpayers.Create(ctx, orgID, req)
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, tp.ToResponse())
}

func (h *Handler) handleBulkCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, err := id.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.BulkCreateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	res := authz.TaxpayerCollection(orgID)
	result, err := authz.Enforce(ctx, h.enforcer, httputil.BearerToken(r), authz.ActionBulkCreate, res, func(ctx context.Context) (models.BulkResult, error) {
		return h.taxpayers.BulkCreate(ctx, orgID, req)
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	// 200, not 201: the import may be partial and the outcome is per row.
	httputil.WriteJSON(w, http.StatusOK, result.ToResponse())
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, err := id.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	filter := models.ListFilter{
		Status: models.Status(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}

	res := authz.TaxpayerCollection(orgID)
	listing, err := authz.Enforce(ctx, h.enforcer, httputil.BearerToken(r), authz.ActionList, res, func(ctx context.Context) ([]models.Taxpayer, error) {
		return h.taxpayers.List(ctx, orgID, filter)
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]models.TaxpayerResponse, 0, len(listing))
	for _, tp := range listing {
		out = append(out, tp.ToResponse())
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, err := id.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res := authz.TaxpayerCollection(orgID)
	stats, err := authz.Enforce(ctx, h.enforcer, httputil.BearerToken(r), authz.ActionReadStats, res, func(ctx context.Context) (models.Stats, error) {
		return h.taxpayers.Stats(ctx, orgID)
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleFindByTIN(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, err := id.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	tin := chi.URLParam(r, "tin")

	res := authz.TaxpayerCollection(orgID)
	tp, err := authz.Enforce(ctx, h.enforcer, httputil.BearerToken(r), authz.ActionReadByTIN, res, func(ctx context.Context) (models.Taxpayer, error) {
		return h.taxpayers.FindByTIN(ctx, orgID, tin)
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tp.ToResponse())
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	h.withTaxpayer(w, r, authz.ActionRead, func(ctx context.Context, tp models.Taxpayer) (any, error) {
		return tp.ToResponse(), nil
	})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.UpdateTaxpayerRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.withTaxpayer(w, r, authz.ActionUpdate, func(ctx context.Context, tp models.Taxpayer) (any, error) {
		updated, err := h.taxpayers.Update(ctx, tp.ID, req)
		if err != nil {
			return nil, err
		}
		return updated.ToResponse(), nil
	})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	h.withTaxpayer(w, r, authz.ActionDelete, func(ctx context.Context, tp models.Taxpayer) (any, error) {
		return nil, h.taxpayers.Delete(ctx, tp.ID)
	})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, err := h.enforcer.ResolvePrincipal(ctx, httputil.BearerToken(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.withTaxpayer(w, r, authz.ActionVerify, func(ctx context.Context, tp models.Taxpayer) (any, error) {
		verified, err := h.taxpayers.Verify(ctx, tp.ID, principal.UserID)
		if err != nil {
			return nil, err
		}
		return verified.ToResponse(), nil
	})
}

// withTaxpayer loads the target to learn its owning organization, then runs
// the enforced operation against it. The caller is authenticated before the
// load so an invalid token cannot probe which taxpayer IDs exist; the policy
// decision itself happens inside Enforce.
func (h *Handler) withTaxpayer(w http.ResponseWriter, r *http.Request, action authz.Action, op func(ctx context.Context, tp models.Taxpayer) (any, error)) {
	ctx := r.Context()
	principal, err := h.enforcer.ResolvePrincipal(ctx, httputil.BearerToken(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	taxpayerID, err := id.ParseTaxpayerID(chi.URLParam(r, "taxpayerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	tp, err := h.taxpayers.Get(ctx, taxpayerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res := authz.TaxpayerResource(tp.ID, tp.OrgID)
	result, err := h.enforcer.Enforce(ctx, httputil.BearerToken(r), action, res, func(ctx context.Context) (any, error) {
		return op(ctx, tp)
	})
	if err != nil {
		// A denial caused by the org boundary reads as a missing record, so
		// outsiders cannot learn which IDs exist. The denied decision is
		// already on the audit trail.
		if dErrors.HasCode(err, dErrors.CodeForbidden) && principal.Role != authz.RoleAdmin && principal.OrgID != tp.OrgID {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "taxpayer not found"))
			return
		}
		httputil.WriteError(w, err)
		return
	}
	if result == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func queryInt(r *http.Request, key string) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
