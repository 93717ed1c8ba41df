package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"heirloom/internal/quest"
	"heirloom/internal/quest/handler/mocks"
	"heirloom/internal/quest/service"
	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/quest-mocks.go -package=mocks Service
type QuestHandlerSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *QuestHandlerSuite) SetupSuite() {
	s.ctx = context.Background()
}

func TestQuestHandlerSuite(t *testing.T) {
	suite.Run(t, new(QuestHandlerSuite))
}

func newTestHandler(t *testing.T) (http.Handler, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := chi.NewRouter()
	New(mockService, logger).Register(r)
	return r, mockService
}

func (s *QuestHandlerSuite) TestHandleCreateQuest() {
	router, mockService := newTestHandler(s.T())
	estateID := id.NewEstateID()
	benID := id.NewBeneficiaryID()
	questID := id.NewQuestID()

	mockService.EXPECT().CreateQuest(gomock.Any(), estateID, service.CreateQuestParams{
		BeneficiaryID: benID,
		Title:         "Graduate",
		Description:   "Finish the degree",
	}).Return(&quest.Quest{
		ID:            questID,
		EstateID:      estateID,
		BeneficiaryID: benID,
		Title:         "Graduate",
		Description:   "Finish the degree",
		Status:        quest.QuestStatusDraft,
	}, nil)

	body, err := json.Marshal(CreateQuestRequest{
		BeneficiaryID: benID.String(),
		Title:         "Graduate",
		Description:   "Finish the degree",
	})
	require.NoError(s.T(), err)

	req := httptest.NewRequest(http.MethodPost, "/estates/"+estateID.String()+"/quests", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusCreated, w.Code)
	var resp map[string]any
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), questID.String(), resp["id"])
	assert.Equal(s.T(), "draft", resp["status"])
}

func (s *QuestHandlerSuite) TestHandleCreateQuestMissingTitle() {
	router, _ := newTestHandler(s.T())
	estateID := id.NewEstateID()

	body := []byte(`{"beneficiary_id":"` + id.NewBeneficiaryID().String() + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/estates/"+estateID.String()+"/quests", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusUnprocessableEntity, w.Code)
}

func (s *QuestHandlerSuite) TestHandleCreateQuestBadEstateID() {
	router, _ := newTestHandler(s.T())

	req := httptest.NewRequest(http.MethodPost, "/estates/not-a-uuid/quests", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *QuestHandlerSuite) TestHandleReplaceMilestones() {
	router, mockService := newTestHandler(s.T())
	questID := id.NewQuestID()
	milestoneID := id.NewMilestoneID()

	mockService.EXPECT().ReplaceMilestones(gomock.Any(), questID, []service.MilestoneInput{
		{
			Title: "Graduate",
			Type:  "education",
			Value: 500000,
			Mode:  quest.VerificationModeDocument,
		},
		{
			Title:         "First job",
			Type:          "career",
			Value:         1000000,
			Mode:          quest.VerificationModeManual,
			Prerequisites: []int{0},
		},
	}).Return([]quest.Milestone{
		{ID: milestoneID, QuestID: questID, OrderIndex: 0, Title: "Graduate", Value: 500000, Status: quest.MilestoneStatusLocked},
		{ID: id.NewMilestoneID(), QuestID: questID, OrderIndex: 1, Title: "First job", Value: 1000000, Status: quest.MilestoneStatusLocked, Prerequisites: []id.MilestoneID{milestoneID}},
	}, nil)

	body := []byte(`{"milestones":[
		{"title":"Graduate","type":"education","value_cents":500000,"verification_mode":"document"},
		{"title":"First job","type":"career","value_cents":1000000,"verification_mode":"manual","prerequisites":[0]}
	]}`)
	req := httptest.NewRequest(http.MethodPut, "/quests/"+questID.String()+"/milestones", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	var resp []map[string]any
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(s.T(), resp, 2)
	assert.Equal(s.T(), "Graduate", resp[0]["title"])
	assert.Equal(s.T(), float64(1000000), resp[1]["value_cents"])
}

func (s *QuestHandlerSuite) TestHandleReplaceMilestonesRejectsUnknownMode() {
	router, _ := newTestHandler(s.T())
	questID := id.NewQuestID()

	body := []byte(`{"milestones":[{"title":"Graduate","type":"education","value_cents":1,"verification_mode":"oracle"}]}`)
	req := httptest.NewRequest(http.MethodPut, "/quests/"+questID.String()+"/milestones", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *QuestHandlerSuite) TestHandleReplaceMilestonesRequiresEntries() {
	router, _ := newTestHandler(s.T())
	questID := id.NewQuestID()

	req := httptest.NewRequest(http.MethodPut, "/quests/"+questID.String()+"/milestones", bytes.NewReader([]byte(`{"milestones":[]}`)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusUnprocessableEntity, w.Code)
}

func (s *QuestHandlerSuite) TestHandlePublish() {
	router, mockService := newTestHandler(s.T())
	questID := id.NewQuestID()
	mockService.EXPECT().PublishQuest(gomock.Any(), questID).Return(&quest.Quest{
		ID:     questID,
		Status: quest.QuestStatusActive,
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/quests/"+questID.String()+"/publish", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), "active", resp["status"])
}

func (s *QuestHandlerSuite) TestHandlePublishEmptyQuestConflicts() {
	router, mockService := newTestHandler(s.T())
	questID := id.NewQuestID()
	mockService.EXPECT().PublishQuest(gomock.Any(), questID).
		Return(nil, dErrors.New(dErrors.CodeStateConflict, "quest has no milestones"))

	req := httptest.NewRequest(http.MethodPost, "/quests/"+questID.String()+"/publish", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusConflict, w.Code)
}

func (s *QuestHandlerSuite) TestHandleArchive() {
	router, mockService := newTestHandler(s.T())
	questID := id.NewQuestID()
	mockService.EXPECT().ArchiveQuest(gomock.Any(), questID).Return(&quest.Quest{
		ID:     questID,
		Status: quest.QuestStatusArchived,
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/quests/"+questID.String()+"/archive", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
}

func (s *QuestHandlerSuite) TestHandleGetQuestDerivesStatuses() {
	router, mockService := newTestHandler(s.T())
	questID := id.NewQuestID()
	m1 := quest.Milestone{ID: id.NewMilestoneID(), QuestID: questID, OrderIndex: 0, Title: "Graduate", Status: quest.MilestoneStatusLocked}

	mockService.EXPECT().GetQuest(gomock.Any(), questID).Return(&service.QuestView{
		Quest: quest.Quest{ID: questID, Status: quest.QuestStatusActive},
		Milestones: []service.MilestoneView{
			{Milestone: m1, EffectiveStatus: quest.MilestoneStatusUnlocked},
		},
		TotalValue:     500000,
		RemainingValue: 500000,
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/quests/"+questID.String(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	milestones, ok := resp["milestones"].([]any)
	require.True(s.T(), ok)
	require.Len(s.T(), milestones, 1)
	first, ok := milestones[0].(map[string]any)
	require.True(s.T(), ok)
	assert.Equal(s.T(), "unlocked", first["status"])
}

func (s *QuestHandlerSuite) TestPermissionErrorsAreMasked() {
	router, mockService := newTestHandler(s.T())
	questID := id.NewQuestID()
	mockService.EXPECT().GetQuest(gomock.Any(), questID).
		Return(nil, dErrors.New(dErrors.CodePermissionDenied, "not permitted"))

	req := httptest.NewRequest(http.MethodGet, "/quests/"+questID.String(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusNotFound, w.Code)
	var resp map[string]any
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), "not permitted", resp["error_description"])
}

func (s *QuestHandlerSuite) TestHandleSummary() {
	router, mockService := newTestHandler(s.T())
	estateID := id.NewEstateID()
	mockService.EXPECT().Summary(gomock.Any(), estateID).Return(&service.EstateSummary{
		TotalValue:     1500000,
		UnlockedValue:  500000,
		RemainingValue: 1000000,
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/estates/"+estateID.String()+"/summary", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), float64(500000), resp["unlocked_value_cents"])
}
