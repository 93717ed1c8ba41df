package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"heirloom/internal/quest"
	"heirloom/internal/verification"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/httputil"
	"heirloom/pkg/requestcontext"
)

// Service defines the interface for milestone progress and review.
type Service interface {
	Start(ctx context.Context, milestoneID id.MilestoneID) (*quest.Milestone, error)
	Submit(ctx context.Context, milestoneID id.MilestoneID, evidence *verification.EvidenceInput) (*quest.Milestone, error)
	Approve(ctx context.Context, milestoneID id.MilestoneID) (*quest.Milestone, error)
	Reject(ctx context.Context, milestoneID id.MilestoneID, reason string) (*quest.Milestone, error)
	ListEvidence(ctx context.Context, milestoneID id.MilestoneID) ([]quest.Evidence, error)
	FetchTrusteeQueue(ctx context.Context, estateIDs []id.EstateID) ([]quest.PendingReview, error)
}

// Handler wires verification endpoints to the verification service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a verification handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts verification endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/milestones/{milestoneID}/start", h.HandleStart)
	r.Post("/milestones/{milestoneID}/submit", h.HandleSubmit)
	r.Post("/milestones/{milestoneID}/approve", h.HandleApprove)
	r.Post("/milestones/{milestoneID}/reject", h.HandleReject)
	r.Get("/milestones/{milestoneID}/evidence", h.HandleListEvidence)
	r.Get("/trustee/queue", h.HandleTrusteeQueue)
}

func milestoneIDParam(r *http.Request) (id.MilestoneID, error) {
	return id.ParseMilestoneID(chi.URLParam(r, "milestoneID"))
}

func (h *Handler) writeMilestone(ctx context.Context, w http.ResponseWriter, m *quest.Milestone, action string) {
	h.logger.InfoContext(ctx, "milestone transition",
		"request_id", requestcontext.RequestID(ctx),
		"milestone_id", m.ID,
		"action", action,
		"status", m.Status,
	)
	httputil.WriteJSON(w, http.StatusOK, FromMilestone(m))
}

// HandleStart handles POST /milestones/{milestoneID}/start requests.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	milestoneID, err := milestoneIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	m, err := h.service.Start(ctx, milestoneID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.writeMilestone(ctx, w, m, "start")
}

// HandleSubmit handles POST /milestones/{milestoneID}/submit requests.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	milestoneID, err := milestoneIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[SubmitRequest](w, r)
	if !ok {
		return
	}
	m, err := h.service.Submit(ctx, milestoneID, req.ParsedEvidence())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.writeMilestone(ctx, w, m, "submit")
}

// HandleApprove handles POST /milestones/{milestoneID}/approve requests.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	milestoneID, err := milestoneIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	m, err := h.service.Approve(ctx, milestoneID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.writeMilestone(ctx, w, m, "approve")
}

// HandleReject handles POST /milestones/{milestoneID}/reject requests.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	milestoneID, err := milestoneIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[RejectRequest](w, r)
	if !ok {
		return
	}
	m, err := h.service.Reject(ctx, milestoneID, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.writeMilestone(ctx, w, m, "reject")
}

// HandleListEvidence handles GET /milestones/{milestoneID}/evidence requests.
func (h *Handler) HandleListEvidence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	milestoneID, err := milestoneIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	evidence, err := h.service.ListEvidence(ctx, milestoneID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]EvidenceResponse, len(evidence))
	for i := range evidence {
		out[i] = FromEvidence(&evidence[i])
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleTrusteeQueue handles GET /trustee/queue?estate_id=...&estate_id=...
func (h *Handler) HandleTrusteeQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw := r.URL.Query()["estate_id"]
	estateIDs := make([]id.EstateID, 0, len(raw))
	for _, v := range raw {
		eID, err := id.ParseEstateID(v)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		estateIDs = append(estateIDs, eID)
	}

	reviews, err := h.service.FetchTrusteeQueue(ctx, estateIDs)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]PendingReviewResponse, len(reviews))
	for i := range reviews {
		out[i] = FromPendingReview(&reviews[i])
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
