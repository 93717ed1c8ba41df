package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"heirloom/internal/estate"
	"heirloom/internal/estate/service"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/httputil"
	"heirloom/pkg/requestcontext"
)

// Service defines the interface for estate membership operations.
type Service interface {
	EnsureEstate(ctx context.Context, name string) (*estate.Estate, error)
	GetEstate(ctx context.Context, estateID id.EstateID) (*estate.Estate, error)
	UpdateEstate(ctx context.Context, estateID id.EstateID, params service.UpdateEstateParams) (*estate.Estate, error)
	UpdateEstateStatus(ctx context.Context, estateID id.EstateID, to estate.Status) (*estate.Estate, error)
	InviteBeneficiary(ctx context.Context, estateID id.EstateID, params service.InviteBeneficiaryParams) (*estate.Beneficiary, string, error)
	InviteTrustee(ctx context.Context, estateID id.EstateID, params service.InviteTrusteeParams) (*estate.Trustee, string, error)
	AcceptInvite(ctx context.Context, code string) (*service.Membership, error)
	DeclineInvite(ctx context.Context, code string) error
	UpdateTrusteePermissions(ctx context.Context, trusteeID id.TrusteeID, perms estate.TrusteePermissions) (*estate.Trustee, error)
	ListBeneficiaries(ctx context.Context, estateID id.EstateID) ([]estate.Beneficiary, error)
	ListTrustees(ctx context.Context, estateID id.EstateID) ([]estate.Trustee, error)
}

// Handler wires estate endpoints to the estate service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an estate handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts estate endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/estate", h.HandleEnsureEstate)
	r.Get("/estates/{estateID}", h.HandleGetEstate)
	r.Patch("/estates/{estateID}", h.HandleUpdateEstate)
	r.Post("/estates/{estateID}/status", h.HandleUpdateStatus)
	r.Get("/estates/{estateID}/beneficiaries", h.HandleListBeneficiaries)
	r.Post("/estates/{estateID}/beneficiaries", h.HandleInviteBeneficiary)
	r.Get("/estates/{estateID}/trustees", h.HandleListTrustees)
	r.Post("/estates/{estateID}/trustees", h.HandleInviteTrustee)
	r.Patch("/trustees/{trusteeID}/permissions", h.HandleUpdateTrusteePermissions)
	r.Post("/invites/accept", h.HandleAcceptInvite)
	r.Post("/invites/decline", h.HandleDeclineInvite)
}

func estateIDParam(r *http.Request) (id.EstateID, error) {
	return id.ParseEstateID(chi.URLParam(r, "estateID"))
}

// HandleEnsureEstate handles POST /estate requests.
func (h *Handler) HandleEnsureEstate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[EnsureEstateRequest](w, r)
	if !ok {
		return
	}

	e, err := h.service.EnsureEstate(ctx, req.Name)
	if err != nil {
		h.logger.ErrorContext(ctx, "ensure estate failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEstate(e))
}

// HandleGetEstate handles GET /estates/{estateID} requests.
func (h *Handler) HandleGetEstate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	estateID, err := estateIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	e, err := h.service.GetEstate(ctx, estateID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEstate(e))
}

// HandleUpdateEstate handles PATCH /estates/{estateID} requests.
func (h *Handler) HandleUpdateEstate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	estateID, err := estateIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[UpdateEstateRequest](w, r)
	if !ok {
		return
	}

	e, err := h.service.UpdateEstate(ctx, estateID, service.UpdateEstateParams{
		Name:          req.Name,
		DeclaredValue: req.DeclaredValue,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEstate(e))
}

// HandleUpdateStatus handles POST /estates/{estateID}/status requests.
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	estateID, err := estateIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[UpdateStatusRequest](w, r)
	if !ok {
		return
	}

	e, err := h.service.UpdateEstateStatus(ctx, estateID, req.ParsedStatus())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEstate(e))
}

// HandleInviteBeneficiary handles POST /estates/{estateID}/beneficiaries.
func (h *Handler) HandleInviteBeneficiary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	estateID, err := estateIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[InviteBeneficiaryRequest](w, r)
	if !ok {
		return
	}

	b, code, err := h.service.InviteBeneficiary(ctx, estateID, service.InviteBeneficiaryParams{
		DisplayName: req.DisplayName,
		Email:       req.Email,
		TrustTier:   req.TrustTier,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "beneficiary invited",
		"request_id", requestcontext.RequestID(ctx),
		"estate_id", estateID,
		"beneficiary_id", b.ID,
	)
	httputil.WriteJSON(w, http.StatusCreated, InviteBeneficiaryResponse{
		Beneficiary: FromBeneficiary(b),
		InviteCode:  code,
	})
}

// HandleInviteTrustee handles POST /estates/{estateID}/trustees.
func (h *Handler) HandleInviteTrustee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	estateID, err := estateIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[InviteTrusteeRequest](w, r)
	if !ok {
		return
	}

	t, code, err := h.service.InviteTrustee(ctx, estateID, service.InviteTrusteeParams{
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Permissions: req.Permissions.toDomain(),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "trustee invited",
		"request_id", requestcontext.RequestID(ctx),
		"estate_id", estateID,
		"trustee_id", t.ID,
	)
	httputil.WriteJSON(w, http.StatusCreated, InviteTrusteeResponse{
		Trustee:    FromTrustee(t),
		InviteCode: code,
	})
}

// HandleAcceptInvite handles POST /invites/accept requests.
func (h *Handler) HandleAcceptInvite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[InviteCodeRequest](w, r)
	if !ok {
		return
	}
	membership, err := h.service.AcceptInvite(ctx, req.Code)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromMembership(membership))
}

// HandleDeclineInvite handles POST /invites/decline requests.
func (h *Handler) HandleDeclineInvite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[InviteCodeRequest](w, r)
	if !ok {
		return
	}
	if err := h.service.DeclineInvite(ctx, req.Code); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "declined"})
}

// HandleUpdateTrusteePermissions handles PATCH /trustees/{trusteeID}/permissions.
func (h *Handler) HandleUpdateTrusteePermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	trusteeID, err := id.ParseTrusteeID(chi.URLParam(r, "trusteeID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[PermissionsRequest](w, r)
	if !ok {
		return
	}

	t, err := h.service.UpdateTrusteePermissions(ctx, trusteeID, req.toDomain())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromTrustee(t))
}

// HandleListBeneficiaries handles GET /estates/{estateID}/beneficiaries.
func (h *Handler) HandleListBeneficiaries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	estateID, err := estateIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	bs, err := h.service.ListBeneficiaries(ctx, estateID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]BeneficiaryResponse, len(bs))
	for i := range bs {
		out[i] = FromBeneficiary(&bs[i])
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleListTrustees handles GET /estates/{estateID}/trustees.
func (h *Handler) HandleListTrustees(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	estateID, err := estateIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	ts, err := h.service.ListTrustees(ctx, estateID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]TrusteeResponse, len(ts))
	for i := range ts {
		out[i] = FromTrustee(&ts[i])
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
