package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/amhang-backend/internal/dto"
	"github.com/ignatzorin/amhang-backend/internal/http/handlers/common"
	"github.com/ignatzorin/amhang-backend/internal/models"
	"github.com/ignatzorin/amhang-backend/internal/pkg/apperror"
	"github.com/ignatzorin/amhang-backend/internal/service"
)

// MissionCreator - создание миссии и назначение ревьюера.
type MissionCreator interface {
	CreateMission(ctx context.Context, ownerID uuid.UUID, input service.CreateMissionInput) (*models.Mission, error)
	AssignReviewer(ctx context.Context, missionID, reviewerID uuid.UUID) (*models.Mission, error)
}

// MissionPayments - оплата и отмена миссии.
type MissionPayments interface {
	PayMission(ctx context.Context, missionID, userID uuid.UUID, paymentKey string) (*service.PaymentReceipt, error)
	CancelMission(ctx context.Context, missionID, userID uuid.UUID) error
}

// MissionHandler обслуживает маршруты миссий бизнеса.
type MissionHandler struct {
	missions MissionCreator
	payments MissionPayments
}

// NewMissionHandler создаёт новый хэндлер.
func NewMissionHandler(missions MissionCreator, payments MissionPayments) *MissionHandler {
	return &MissionHandler{missions: missions, payments: payments}
}

// CreateMission POST /api/missions
func (h *MissionHandler) CreateMission(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var req dto.CreateMissionRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondError(c, err)
		return
	}
	input, err := req.ToInput()
	if err != nil {
		common.RespondError(c, apperror.New(apperror.ErrCodeValidation, "업체 정보가 올바르지 않습니다."))
		return
	}

	mission, err := h.missions.CreateMission(c.Request.Context(), userID, input)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusCreated, "미션이 생성되었습니다.", mission)
}

// PayMission POST /api/missions/:id/pay
func (h *MissionHandler) PayMission(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	missionID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var req dto.PayMissionRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondError(c, err)
		return
	}

	receipt, err := h.payments.PayMission(c.Request.Context(), missionID, userID, req.PaymentKey)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "결제가 완료되었습니다.", receipt)
}

// CancelMission POST /api/missions/:id/cancel
func (h *MissionHandler) CancelMission(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	missionID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	if err := h.payments.CancelMission(c.Request.Context(), missionID, userID); err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "미션이 취소되었습니다.", gin.H{"mission_id": missionID})
}
