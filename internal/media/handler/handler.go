package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"heirloom/internal/media"
	"heirloom/internal/media/service"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/httputil"
	"heirloom/pkg/requestcontext"
)

// Service defines the interface for locked-asset management.
type Service interface {
	Register(ctx context.Context, estateID id.EstateID, params service.RegisterParams) (*media.Media, error)
	ManualUnlock(ctx context.Context, mediaID id.MediaID) (*media.Media, error)
	Delete(ctx context.Context, mediaID id.MediaID) error
	ListForViewer(ctx context.Context, estateID id.EstateID) ([]media.Projection, error)
}

// Handler wires media endpoints to the media service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a media handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts media endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/estates/{estateID}/media", h.HandleRegisterMedia)
	r.Get("/estates/{estateID}/media", h.HandleListMedia)
	r.Post("/media/{mediaID}/unlock", h.HandleManualUnlock)
	r.Delete("/media/{mediaID}", h.HandleDeleteMedia)
}

func mediaIDParam(r *http.Request) (id.MediaID, error) {
	return id.ParseMediaID(chi.URLParam(r, "mediaID"))
}

// HandleRegisterMedia handles POST /estates/{estateID}/media requests.
func (h *Handler) HandleRegisterMedia(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	estateID, err := id.ParseEstateID(chi.URLParam(r, "estateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[RegisterMediaRequest](w, r)
	if !ok {
		return
	}

	m, err := h.service.Register(ctx, estateID, req.ParsedParams())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "media registered",
		"request_id", requestcontext.RequestID(ctx),
		"estate_id", estateID,
		"media_id", m.ID,
		"condition", m.Condition,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromMedia(m))
}

// HandleManualUnlock handles POST /media/{mediaID}/unlock requests.
func (h *Handler) HandleManualUnlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	mediaID, err := mediaIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	m, err := h.service.ManualUnlock(ctx, mediaID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "media unlocked manually",
		"request_id", requestcontext.RequestID(ctx),
		"media_id", m.ID,
	)
	httputil.WriteJSON(w, http.StatusOK, FromMedia(m))
}

// HandleDeleteMedia handles DELETE /media/{mediaID} requests.
func (h *Handler) HandleDeleteMedia(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	mediaID, err := mediaIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Delete(ctx, mediaID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListMedia handles GET /estates/{estateID}/media requests. The
// response is masked per viewer; locked references never appear for
// non-owners.
func (h *Handler) HandleListMedia(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	estateID, err := id.ParseEstateID(chi.URLParam(r, "estateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	projections, err := h.service.ListForViewer(ctx, estateID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, projections)
}
