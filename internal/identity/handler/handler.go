// Package handler exposes identity endpoints over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"taxgate/internal/authz"
	"taxgate/internal/identity/models"
	id "taxgate/pkg/domain"
	"taxgate/pkg/platform/httputil"
	"taxgate/pkg/requestcontext"
)

// Service is the identity surface the handler depends on.
type Service interface {
	Register(ctx context.Context, req models.RegisterRequest) (models.User, error)
	Login(ctx context.Context, req models.LoginRequest) (models.TokenResponse, error)
	Logout(ctx context.Context, rawToken string) error
	Get(ctx context.Context, userID id.UserID) (models.User, error)
	UpdateProfile(ctx context.Context, userID id.UserID, req models.UpdateProfileRequest) (models.User, error)
	VerifyUser(ctx context.Context, userID id.UserID) (models.User, error)
	DeactivateUser(ctx context.Context, userID id.UserID) (models.User, error)
}

// Handler handles identity endpoints. Only login is public; registration and
// everything else go through the enforcer, so account creation is itself an
// audited, admin-only operation.
type Handler struct {
	logger   *slog.Logger
	identity Service
	enforcer *authz.Enforcer
}

func New(identity Service, enforcer *authz.Enforcer, logger *slog.Logger) *Handler {
	return &Handler{
		logger:   logger,
		identity: identity,
		enforcer: enforcer,
	}
}

// Register registers identity routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/logout", h.handleLogout)

	r.Get("/users/me", h.handleMe)
	r.Get("/users/{userID}", h.handleGetUser)
	r.Patch("/users/{userID}", h.handleUpdateUser)
	r.Post("/users/{userID}/verify", h.handleVerifyUser)
	r.Post("/users/{userID}/deactivate", h.handleDeactivateUser)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.RegisterRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	res := authz.UserCollection()
	user, err := authz.Enforce(ctx, h.enforcer, httputil.BearerToken(r), authz.ActionCreate, res, func(ctx context.Context) (models.User, error) {
		return h.identity.Register(ctx, req)
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, user.ToResponse())
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.LoginRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	resp, err := h.identity.Login(ctx, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.identity.Logout(r.Context(), httputil.BearerToken(r)); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rawToken := httputil.BearerToken(r)

	principal, err := h.enforcer.ResolvePrincipal(ctx, rawToken)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.serveUser(w, r, principal.UserID)
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.serveUser(w, r, userID)
}

// serveUser runs the enforced read for one user. The self-only scope compares
// the target ID against the principal, so the resource carries no org.
func (h *Handler) serveUser(w http.ResponseWriter, r *http.Request, userID id.UserID) {
	ctx := r.Context()
	res := authz.UserResource(userID, id.OrgID{})

	user, err := authz.Enforce(ctx, h.enforcer, httputil.BearerToken(r), authz.ActionRead, res, func(ctx context.Context) (models.User, error) {
		return h.identity.Get(ctx, userID)
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user.ToResponse())
}

func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.UpdateProfileRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	res := authz.UserResource(userID, id.OrgID{})
	user, err := authz.Enforce(ctx, h.enforcer, httputil.BearerToken(r), authz.ActionUpdate, res, func(ctx context.Context) (models.User, error) {
		return h.identity.UpdateProfile(ctx, userID, req)
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user.ToResponse())
}

func (h *Handler) handleVerifyUser(w http.ResponseWriter, r *http.Request) {
	h.handleAccountFlag(w, r, authz.ActionVerify, h.identity.VerifyUser)
}

func (h *Handler) handleDeactivateUser(w http.ResponseWriter, r *http.Request) {
	h.handleAccountFlag(w, r, authz.ActionDeactivate, h.identity.DeactivateUser)
}

// handleAccountFlag covers the admin-only account state transitions. Neither
// action has a rule row, so only the admin short-circuit reaches the service.
func (h *Handler) handleAccountFlag(w http.ResponseWriter, r *http.Request, action authz.Action, op func(context.Context, id.UserID) (models.User, error)) {
	ctx := r.Context()
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res := authz.UserResource(userID, id.OrgID{})
	user, err := authz.Enforce(ctx, h.enforcer, httputil.BearerToken(r), action, res, func(ctx context.Context) (models.User, error) {
		return op(ctx, userID)
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user.ToResponse())
}
