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

// Settlements - выплаты ревьюеру.
type Settlements interface {
	ListSettlements(ctx context.Context, reviewerID uuid.UUID, status string) (*service.SettlementList, error)
	GetSettlement(ctx context.Context, escrowID, reviewerID uuid.UUID) (*service.SettlementDetail, error)
	RetrySettlement(ctx context.Context, escrowID, reviewerID uuid.UUID) (*models.Escrow, error)
	VerifyBankAccount(ctx context.Context, reviewerID uuid.UUID, account models.BankAccount) (*service.BankVerification, error)
	SettleEscrow(ctx context.Context, escrowID uuid.UUID) (*service.SettlementReceipt, error)
}

// SettlementHandler обслуживает маршруты выплат ревьюера.
type SettlementHandler struct {
	settlements Settlements
}

// NewSettlementHandler создаёт новый хэндлер.
func NewSettlementHandler(settlements Settlements) *SettlementHandler {
	return &SettlementHandler{settlements: settlements}
}

// ListSettlements GET /api/settlements?status=
func (h *SettlementHandler) ListSettlements(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	status := c.Query("status")
	switch status {
	case "", models.EscrowStatusPaid, models.EscrowStatusHold, models.EscrowStatusReleasing, models.EscrowStatusReleased:
	default:
		common.RespondError(c, apperror.New(apperror.ErrCodeValidation, "조회할 수 없는 정산 상태입니다.").
			WithDetails(map[string]any{"status": status}))
		return
	}

	list, err := h.settlements.ListSettlements(c.Request.Context(), userID, status)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondOK(c, list)
}

// GetSettlement GET /api/settlements/:id
func (h *SettlementHandler) GetSettlement(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	escrowID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	detail, err := h.settlements.GetSettlement(c.Request.Context(), escrowID, userID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondOK(c, detail)
}

// RetrySettlement POST /api/settlements/:id/retry
func (h *SettlementHandler) RetrySettlement(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	escrowID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	escrow, err := h.settlements.RetrySettlement(c.Request.Context(), escrowID, userID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "정산 재시도가 요청되었습니다. 다음 정산 주기에 처리됩니다.", escrow)
}

// VerifyBankAccount POST /api/settlements/bank-account/verify
func (h *SettlementHandler) VerifyBankAccount(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var req dto.VerifyBankAccountRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondError(c, err)
		return
	}

	verification, err := h.settlements.VerifyBankAccount(c.Request.Context(), userID, req.ToBankAccount())
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "계좌 인증이 완료되었습니다.", verification)
}
