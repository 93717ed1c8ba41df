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
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"heirloom/internal/quest"
	"heirloom/internal/verification"
	"heirloom/internal/verification/handler/mocks"
	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/verification-mocks.go -package=mocks Service
type VerificationHandlerSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *VerificationHandlerSuite) SetupSuite() {
	s.ctx = context.Background()
}

func TestVerificationHandlerSuite(t *testing.T) {
	suite.Run(t, new(VerificationHandlerSuite))
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

func (s *VerificationHandlerSuite) TestHandleStart() {
	router, mockService := newTestHandler(s.T())
	milestoneID := id.NewMilestoneID()
	started := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	mockService.EXPECT().Start(gomock.Any(), milestoneID).Return(&quest.Milestone{
		ID:        milestoneID,
		QuestID:   id.NewQuestID(),
		Title:     "Finish the semester",
		Value:     5000,
		Mode:      quest.VerificationModeManual,
		Status:    quest.MilestoneStatusInProgress,
		StartedAt: &started,
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/milestones/"+milestoneID.String()+"/start", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), "in_progress", resp["status"])
	assert.Equal(s.T(), "Finish the semester", resp["title"])
}

func (s *VerificationHandlerSuite) TestHandleStartBadID() {
	router, _ := newTestHandler(s.T())

	req := httptest.NewRequest(http.MethodPost, "/milestones/not-a-uuid/start", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *VerificationHandlerSuite) TestHandleSubmitWithEvidence() {
	router, mockService := newTestHandler(s.T())
	milestoneID := id.NewMilestoneID()
	mockService.EXPECT().Submit(gomock.Any(), milestoneID, &verification.EvidenceInput{
		Kind: quest.EvidenceKindDocument,
		Ref:  "blob://transcripts/spring.pdf",
	}).Return(&quest.Milestone{
		ID:     milestoneID,
		Status: quest.MilestoneStatusPendingVerification,
	}, nil)

	body, err := json.Marshal(SubmitRequest{Evidence: &EvidencePayload{
		Kind: "document",
		Ref:  "blob://transcripts/spring.pdf",
	}})
	require.NoError(s.T(), err)

	req := httptest.NewRequest(http.MethodPost, "/milestones/"+milestoneID.String()+"/submit", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), "pending_verification", resp["status"])
}

func (s *VerificationHandlerSuite) TestHandleSubmitRejectsUnknownEvidenceKind() {
	router, _ := newTestHandler(s.T())
	milestoneID := id.NewMilestoneID()

	body := []byte(`{"evidence":{"kind":"hologram"}}`)
	req := httptest.NewRequest(http.MethodPost, "/milestones/"+milestoneID.String()+"/submit", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *VerificationHandlerSuite) TestHandleRejectRequiresReason() {
	router, _ := newTestHandler(s.T())
	milestoneID := id.NewMilestoneID()

	req := httptest.NewRequest(http.MethodPost, "/milestones/"+milestoneID.String()+"/reject", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusUnprocessableEntity, w.Code)
}

func (s *VerificationHandlerSuite) TestHandleRejectPassesReason() {
	router, mockService := newTestHandler(s.T())
	milestoneID := id.NewMilestoneID()
	mockService.EXPECT().Reject(gomock.Any(), milestoneID, "transcript is for the wrong term").Return(&quest.Milestone{
		ID:              milestoneID,
		Status:          quest.MilestoneStatusInProgress,
		RejectionReason: "transcript is for the wrong term",
	}, nil)

	body, err := json.Marshal(RejectRequest{Reason: "transcript is for the wrong term"})
	require.NoError(s.T(), err)

	req := httptest.NewRequest(http.MethodPost, "/milestones/"+milestoneID.String()+"/reject", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), "in_progress", resp["status"])
	assert.Equal(s.T(), "transcript is for the wrong term", resp["rejection_reason"])
}

func (s *VerificationHandlerSuite) TestPermissionErrorsAreMasked() {
	router, mockService := newTestHandler(s.T())
	milestoneID := id.NewMilestoneID()
	mockService.EXPECT().Approve(gomock.Any(), milestoneID).
		Return(nil, dErrors.New(dErrors.CodePermissionDenied, "not permitted"))

	req := httptest.NewRequest(http.MethodPost, "/milestones/"+milestoneID.String()+"/approve", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusNotFound, w.Code)
	var resp map[string]any
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), "not permitted", resp["error_description"])
}

func (s *VerificationHandlerSuite) TestHandleTrusteeQueue() {
	router, mockService := newTestHandler(s.T())
	estateID := id.NewEstateID()
	questID := id.NewQuestID()
	milestoneID := id.NewMilestoneID()
	mockService.EXPECT().FetchTrusteeQueue(gomock.Any(), []id.EstateID{estateID}).Return([]quest.PendingReview{{
		Quest: quest.Quest{ID: questID, EstateID: estateID, Title: "Graduate"},
		Milestone: quest.Milestone{
			ID:      milestoneID,
			QuestID: questID,
			Status:  quest.MilestoneStatusPendingVerification,
		},
	}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/trustee/queue?estate_id="+estateID.String(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	var resp []map[string]any
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(s.T(), resp, 1)
	assert.Equal(s.T(), "Graduate", resp[0]["quest_title"])
}

func (s *VerificationHandlerSuite) TestConflictMapsTo409() {
	router, mockService := newTestHandler(s.T())
	milestoneID := id.NewMilestoneID()
	mockService.EXPECT().Approve(gomock.Any(), milestoneID).
		Return(nil, dErrors.New(dErrors.CodeStateConflict, "review already resolved"))

	req := httptest.NewRequest(http.MethodPost, "/milestones/"+milestoneID.String()+"/approve", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusConflict, w.Code)
}
