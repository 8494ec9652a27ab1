// Package admin exposes the compliance review surface: read-only access to
// the audit ledger. The policy table carries no rules for the ledger, so only
// platform administrators reach these handlers.
package admin

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"taxgate/internal/authz"
	id "taxgate/pkg/domain"
	dErrors "taxgate/pkg/domain-errors"
	"taxgate/pkg/platform/audit"
	"taxgate/pkg/platform/httputil"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

type Handler struct {
	logger   *slog.Logger
	records  audit.Store
	enforcer *authz.Enforcer
}

func New(records audit.Store, enforcer *authz.Enforcer, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, records: records, enforcer: enforcer}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/admin/audit-records", func(r chi.Router) {
		r.Get("/", h.handleListRecent)
		r.Get("/principal/{userID}", h.handleListByPrincipal)
	})
}

func (h *Handler) handleListRecent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, err := parseLimit(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res := authz.AuditLogCollection()
	records, err := authz.Enforce(ctx, h.enforcer, httputil.BearerToken(r), authz.ActionList, res, func(ctx context.Context) ([]audit.Record, error) {
		return h.records.ListRecent(ctx, limit)
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordsResponse(records))
}

func (h *Handler) handleListByPrincipal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res := authz.AuditLogCollection()
	records, err := authz.Enforce(ctx, h.enforcer, httputil.BearerToken(r), authz.ActionList, res, func(ctx context.Context) ([]audit.Record, error) {
		return h.records.ListByPrincipal(ctx, userID)
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordsResponse(records))
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "limit must be a positive integer")
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, nil
}
