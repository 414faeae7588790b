package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/amhang-backend/internal/dto"
	"github.com/ignatzorin/amhang-backend/internal/http/handlers/common"
	"github.com/ignatzorin/amhang-backend/internal/logger"
	"github.com/ignatzorin/amhang-backend/internal/pkg/apperror"
	"github.com/ignatzorin/amhang-backend/internal/scheduler"
)

// JobRunner - ручной запуск фоновых задач.
type JobRunner interface {
	RunNow(ctx context.Context, name string) (any, error)
	Jobs() []string
}

// AdminHandler - операции администратора и ручной запуск задач.
type AdminHandler struct {
	jobs        JobRunner
	settlements Settlements
	missions    MissionCreator
}

// NewAdminHandler создаёт новый хэндлер. jobs может быть nil, если планировщик выключен.
func NewAdminHandler(jobs JobRunner, settlements Settlements, missions MissionCreator) *AdminHandler {
	return &AdminHandler{jobs: jobs, settlements: settlements, missions: missions}
}

// ListJobs GET /api/admin/jobs
func (h *AdminHandler) ListJobs(c *gin.Context) {
	names := []string{}
	if h.jobs != nil {
		names = h.jobs.Jobs()
	}
	common.RespondOK(c, gin.H{"jobs": names})
}

// RunJob POST /api/admin/jobs/:name/run
func (h *AdminHandler) RunJob(c *gin.Context) {
	if h.jobs == nil {
		common.RespondError(c, apperror.New(apperror.ErrCodeConflict, "스케줄러가 비활성화되어 있습니다."))
		return
	}

	name := c.Param("name")
	result, err := h.jobs.RunNow(c.Request.Context(), name)
	switch {
	case errors.Is(err, scheduler.ErrUnknownJob):
		common.RespondError(c, apperror.New(apperror.ErrCodeNotFound, "작업을 찾을 수 없습니다.").
			WithDetails(map[string]any{"job": name}))
		return
	case errors.Is(err, scheduler.ErrJobRunning):
		common.RespondError(c, apperror.New(apperror.ErrCodeConflict, "작업이 이미 실행 중입니다.").
			WithDetails(map[string]any{"job": name}))
		return
	case err != nil:
		common.RespondError(c, err)
		return
	}

	logger.Component("admin").WithField("job", name).Info("admin: задача запущена вручную")
	common.RespondOK(c, dto.JobRunResponse{Job: name, Result: result})
}

// ProcessSettlement POST /api/admin/settlements/:id/process
func (h *AdminHandler) ProcessSettlement(c *gin.Context) {
	escrowID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	receipt, err := h.settlements.SettleEscrow(c.Request.Context(), escrowID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "정산이 완료되었습니다.", receipt)
}

// AssignReviewer POST /api/admin/missions/:id/assign
func (h *AdminHandler) AssignReviewer(c *gin.Context) {
	missionID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var req dto.AssignReviewerRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondError(c, err)
		return
	}
	reviewerID, err := uuid.Parse(req.ReviewerID)
	if err != nil {
		common.RespondError(c, apperror.New(apperror.ErrCodeValidation, "리뷰어 정보가 올바르지 않습니다."))
		return
	}

	mission, err := h.missions.AssignReviewer(c.Request.Context(), missionID, reviewerID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "리뷰어가 배정되었습니다.", mission)
}
