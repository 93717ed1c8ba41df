package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"heirloom/internal/audit"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/httputil"
)

// Service defines the interface for audit trail reads.
type Service interface {
	ListByEstate(ctx context.Context, estateID id.EstateID) ([]audit.Entry, error)
}

// Handler wires the audit read endpoint to the query service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an audit handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts audit endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/estates/{estateID}/audit", h.HandleListAudit)
}

// HandleListAudit handles GET /estates/{estateID}/audit requests.
func (h *Handler) HandleListAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	estateID, err := id.ParseEstateID(chi.URLParam(r, "estateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries, err := h.service.ListByEstate(ctx, estateID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]EntryResponse, len(entries))
	for i := range entries {
		out[i] = FromEntry(&entries[i])
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// EntryResponse is one audit record on the wire.
type EntryResponse struct {
	ID          string         `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	Action      string         `json:"action"`
	EstateID    string         `json:"estate_id"`
	QuestID     *string        `json:"quest_id,omitempty"`
	MilestoneID *string        `json:"milestone_id,omitempty"`
	MediaID     *string        `json:"media_id,omitempty"`
	PrincipalID string         `json:"principal_id"`
	Role        string         `json:"role"`
	Device      string         `json:"device,omitempty"`
	ClientIP    string         `json:"client_ip,omitempty"`
	RequestID   string         `json:"request_id,omitempty"`
	Before      map[string]any `json:"before,omitempty"`
	After       map[string]any `json:"after,omitempty"`
}

// FromEntry maps an audit record onto its wire shape.
func FromEntry(e *audit.Entry) EntryResponse {
	out := EntryResponse{
		ID:          e.ID.String(),
		Timestamp:   e.Timestamp,
		Action:      string(e.Action),
		EstateID:    e.Refs.EstateID.String(),
		PrincipalID: e.Actor.PrincipalID.String(),
		Role:        string(e.Actor.Role),
		Device:      e.Actor.Device,
		ClientIP:    e.Actor.ClientIP,
		RequestID:   e.Actor.RequestID,
		Before:      e.Before,
		After:       e.After,
	}
	if e.Refs.QuestID != nil {
		s := e.Refs.QuestID.String()
		out.QuestID = &s
	}
	if e.Refs.MilestoneID != nil {
		s := e.Refs.MilestoneID.String()
		out.MilestoneID = &s
	}
	if e.Refs.MediaID != nil {
		s := e.Refs.MediaID.String()
		out.MediaID = &s
	}
	return out
}
