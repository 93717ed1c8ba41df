package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"heirloom/internal/quest"
	"heirloom/internal/quest/service"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/httputil"
	"heirloom/pkg/requestcontext"
)

// Service defines the interface for quest authoring and read models.
type Service interface {
	CreateQuest(ctx context.Context, estateID id.EstateID, params service.CreateQuestParams) (*quest.Quest, error)
	ReplaceMilestones(ctx context.Context, questID id.QuestID, inputs []service.MilestoneInput) ([]quest.Milestone, error)
	PublishQuest(ctx context.Context, questID id.QuestID) (*quest.Quest, error)
	PauseQuest(ctx context.Context, questID id.QuestID) (*quest.Quest, error)
	ResumeQuest(ctx context.Context, questID id.QuestID) (*quest.Quest, error)
	ArchiveQuest(ctx context.Context, questID id.QuestID) (*quest.Quest, error)
	GetQuest(ctx context.Context, questID id.QuestID) (*service.QuestView, error)
	FetchBeneficiaryView(ctx context.Context, questID id.QuestID) (*service.BeneficiaryView, error)
	ListQuests(ctx context.Context, estateID id.EstateID) ([]quest.Quest, error)
	Summary(ctx context.Context, estateID id.EstateID) (*service.EstateSummary, error)
}

// Handler wires quest endpoints to the quest service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a quest handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts quest endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/estates/{estateID}/quests", h.HandleCreateQuest)
	r.Get("/estates/{estateID}/quests", h.HandleListQuests)
	r.Get("/estates/{estateID}/summary", h.HandleSummary)
	r.Get("/quests/{questID}", h.HandleGetQuest)
	r.Get("/quests/{questID}/beneficiary-view", h.HandleBeneficiaryView)
	r.Put("/quests/{questID}/milestones", h.HandleReplaceMilestones)
	r.Post("/quests/{questID}/publish", h.questMove(Service.PublishQuest))
	r.Post("/quests/{questID}/pause", h.questMove(Service.PauseQuest))
	r.Post("/quests/{questID}/resume", h.questMove(Service.ResumeQuest))
	r.Post("/quests/{questID}/archive", h.questMove(Service.ArchiveQuest))
}

func questIDParam(r *http.Request) (id.QuestID, error) {
	return id.ParseQuestID(chi.URLParam(r, "questID"))
}

// HandleCreateQuest handles POST /estates/{estateID}/quests requests.
func (h *Handler) HandleCreateQuest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	estateID, err := id.ParseEstateID(chi.URLParam(r, "estateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[CreateQuestRequest](w, r)
	if !ok {
		return
	}

	q, err := h.service.CreateQuest(ctx, estateID, service.CreateQuestParams{
		BeneficiaryID: req.ParsedBeneficiaryID(),
		Title:         req.Title,
		Description:   req.Description,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "quest created",
		"request_id", requestcontext.RequestID(ctx),
		"estate_id", estateID,
		"quest_id", q.ID,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromQuest(q))
}

// HandleReplaceMilestones handles PUT /quests/{questID}/milestones.
func (h *Handler) HandleReplaceMilestones(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	questID, err := questIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[ReplaceMilestonesRequest](w, r)
	if !ok {
		return
	}

	ms, err := h.service.ReplaceMilestones(ctx, questID, req.ParsedInputs())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "milestones replaced",
		"request_id", requestcontext.RequestID(ctx),
		"quest_id", questID,
		"count", len(ms),
	)
	out := make([]MilestoneResponse, len(ms))
	for i := range ms {
		out[i] = FromMilestone(&ms[i], ms[i].Status)
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// questMove adapts the lifecycle transitions, which share a signature.
func (h *Handler) questMove(move func(Service, context.Context, id.QuestID) (*quest.Quest, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		questID, err := questIDParam(r)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		q, err := move(h.service, ctx, questID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		h.logger.InfoContext(ctx, "quest status changed",
			"request_id", requestcontext.RequestID(ctx),
			"quest_id", q.ID,
			"status", q.Status,
		)
		httputil.WriteJSON(w, http.StatusOK, FromQuest(q))
	}
}

// HandleGetQuest handles GET /quests/{questID} requests.
func (h *Handler) HandleGetQuest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	questID, err := questIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	view, err := h.service.GetQuest(ctx, questID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromQuestView(view))
}

// HandleBeneficiaryView handles GET /quests/{questID}/beneficiary-view.
func (h *Handler) HandleBeneficiaryView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	questID, err := questIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	view, err := h.service.FetchBeneficiaryView(ctx, questID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromBeneficiaryView(view))
}

// HandleListQuests handles GET /estates/{estateID}/quests requests.
func (h *Handler) HandleListQuests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	estateID, err := id.ParseEstateID(chi.URLParam(r, "estateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	quests, err := h.service.ListQuests(ctx, estateID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]QuestResponse, len(quests))
	for i := range quests {
		out[i] = FromQuest(&quests[i])
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleSummary handles GET /estates/{estateID}/summary requests.
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	estateID, err := id.ParseEstateID(chi.URLParam(r, "estateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	summary, err := h.service.Summary(ctx, estateID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSummary(summary))
}
