package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/amhang-backend/internal/models"
	"github.com/ignatzorin/amhang-backend/internal/pkg/apperror"
	"github.com/ignatzorin/amhang-backend/internal/scheduler"
	"github.com/ignatzorin/amhang-backend/internal/service"
)

func TestAdminHandler_RunJob(t *testing.T) {
	cases := []struct {
		name     string
		result   any
		err      error
		wantCode int
		wantErr  string
	}{
		{name: "ok", result: service.SettlementResult{Processed: 3, Succeeded: 2, Failed: 1}, wantCode: http.StatusOK},
		{name: "unknown", err: scheduler.ErrUnknownJob, wantCode: http.StatusNotFound, wantErr: "NOT_FOUND"},
		{name: "running", err: scheduler.ErrJobRunning, wantCode: http.StatusConflict, wantErr: "CONFLICT"},
		{name: "job failed", err: errors.New("db down"), wantCode: http.StatusInternalServerError, wantErr: "INTERNAL_ERROR"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			jobs := &mockJobs{}
			jobs.On("RunNow", mock.Anything, scheduler.JobSettlement).Return(tc.result, tc.err)

			r := newTestRouter(uuid.New())
			r.POST("/admin/jobs/:name/run", NewAdminHandler(jobs, nil, nil).RunJob)

			w := doJSON(r, http.MethodPost, "/admin/jobs/"+scheduler.JobSettlement+"/run", nil)

			assert.Equal(t, tc.wantCode, w.Code)
			env := decode(t, w)
			if tc.wantErr != "" {
				assert.Equal(t, tc.wantErr, env.Error["code"])
				return
			}
			assert.Equal(t, scheduler.JobSettlement, env.Data["job"])
			assert.EqualValues(t, 2, env.Data["result"].(map[string]any)["succeeded"])
		})
	}
}

func TestAdminHandler_RunJob_SchedulerDisabled(t *testing.T) {
	r := newTestRouter(uuid.New())
	r.POST("/admin/jobs/:name/run", NewAdminHandler(nil, nil, nil).RunJob)

	w := doJSON(r, http.MethodPost, "/admin/jobs/settlement/run", nil)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAdminHandler_ProcessSettlement_InProgress(t *testing.T) {
	escrowID := uuid.New()
	settlements := &mockSettlements{}
	settlements.On("SettleEscrow", mock.Anything, escrowID).Return(nil, apperror.ErrSettlementInProgress)

	r := newTestRouter(uuid.New())
	r.POST("/admin/settlements/:id/process", NewAdminHandler(nil, settlements, nil).ProcessSettlement)

	w := doJSON(r, http.MethodPost, "/admin/settlements/"+escrowID.String()+"/process", nil)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "SETTLEMENT_IN_PROGRESS", decode(t, w).Error["code"])
}

func TestAdminHandler_AssignReviewer(t *testing.T) {
	missionID, reviewerID := uuid.New(), uuid.New()

	t.Run("bad reviewer id", func(t *testing.T) {
		r := newTestRouter(uuid.New())
		r.POST("/admin/missions/:id/assign", NewAdminHandler(nil, nil, &mockMissions{}).AssignReviewer)

		w := doJSON(r, http.MethodPost, "/admin/missions/"+missionID.String()+"/assign", map[string]string{"reviewer_id": "nope"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("assigned", func(t *testing.T) {
		missions := &mockMissions{}
		missions.On("AssignReviewer", mock.Anything, missionID, reviewerID).Return(&models.Mission{
			ID:                 missionID,
			Status:             models.MissionStatusAssigned,
			AssignedReviewerID: &reviewerID,
		}, nil)

		r := newTestRouter(uuid.New())
		r.POST("/admin/missions/:id/assign", NewAdminHandler(nil, nil, missions).AssignReviewer)

		w := doJSON(r, http.MethodPost, "/admin/missions/"+missionID.String()+"/assign", map[string]string{"reviewer_id": reviewerID.String()})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, reviewerID.String(), decode(t, w).Data["assigned_reviewer_id"])
	})
}
