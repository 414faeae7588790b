package handlers

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/amhang-backend/internal/models"
	"github.com/ignatzorin/amhang-backend/internal/pkg/apperror"
	"github.com/ignatzorin/amhang-backend/internal/service"
)

func TestMissionHandler_PayMission_Unauthorized(t *testing.T) {
	handler := NewMissionHandler(nil, nil)
	r := newTestRouter(uuid.Nil)
	r.POST("/missions/:id/pay", handler.PayMission)

	w := doJSON(r, http.MethodPost, "/missions/"+uuid.NewString()+"/pay", map[string]string{"paymentKey": "pk"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	env := decode(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, "UNAUTHORIZED", env.Error["code"])
}

func TestMissionHandler_PayMission_InvalidMissionID(t *testing.T) {
	handler := NewMissionHandler(nil, nil)
	r := newTestRouter(uuid.New())
	r.POST("/missions/:id/pay", handler.PayMission)

	w := doJSON(r, http.MethodPost, "/missions/not-a-uuid/pay", map[string]string{"paymentKey": "pk"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w).Error["code"])
}

func TestMissionHandler_PayMission_Success(t *testing.T) {
	userID, missionID, escrowID := uuid.New(), uuid.New(), uuid.New()
	payments := &mockPayments{}
	payments.On("PayMission", mock.Anything, missionID, userID, "pk_live").Return(&service.PaymentReceipt{
		MissionID:           missionID,
		EscrowID:            escrowID,
		OrderID:             "MISSION_" + missionID.String(),
		TransactionID:       "pk_live",
		Amount:              55000,
		Status:              models.MissionStatusRecruiting,
		PaidAt:              time.Now(),
		RecruitmentDeadline: time.Now().Add(models.RecruitmentPeriod),
	}, nil)

	r := newTestRouter(userID)
	r.POST("/missions/:id/pay", NewMissionHandler(nil, payments).PayMission)

	w := doJSON(r, http.MethodPost, "/missions/"+missionID.String()+"/pay", map[string]string{"paymentKey": "pk_live"})

	assert.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.True(t, env.Success)
	assert.Equal(t, escrowID.String(), env.Data["escrow_id"])
	assert.EqualValues(t, 55000, env.Data["amount"])
	payments.AssertExpectations(t)
}

func TestMissionHandler_PayMission_CancelledAfterCapture(t *testing.T) {
	userID, missionID := uuid.New(), uuid.New()
	payments := &mockPayments{}
	payments.On("PayMission", mock.Anything, missionID, userID, "pk").Return(nil,
		apperror.ErrPaymentCancelled.WithCause(errors.New("insert failed")).WithDetails(map[string]any{
			"refunded":     true,
			"refundAmount": 11000,
			"reason":       "에스크로 생성 실패",
		}))

	r := newTestRouter(userID)
	r.POST("/missions/:id/pay", NewMissionHandler(nil, payments).PayMission)

	w := doJSON(r, http.MethodPost, "/missions/"+missionID.String()+"/pay", map[string]string{"paymentKey": "pk"})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	env := decode(t, w)
	assert.Equal(t, "PAYMENT_CANCELLED", env.Error["code"])
	assert.Equal(t, true, env.Error["refunded"])
	assert.EqualValues(t, 11000, env.Error["refundAmount"])
	assert.NotContains(t, w.Body.String(), "insert failed")
}

func TestMissionHandler_CancelMission_NotCancellable(t *testing.T) {
	userID, missionID := uuid.New(), uuid.New()
	payments := &mockPayments{}
	payments.On("CancelMission", mock.Anything, missionID, userID).Return(
		apperror.ErrMissionCannotCancel.WithGuidance(apperror.ActionContactSupport, "리뷰어가 배정된 미션은 취소할 수 없습니다."))

	r := newTestRouter(userID)
	r.POST("/missions/:id/cancel", NewMissionHandler(nil, payments).CancelMission)

	w := doJSON(r, http.MethodPost, "/missions/"+missionID.String()+"/cancel", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w)
	assert.Equal(t, "MISSION_CANNOT_CANCEL", env.Error["code"])
	assert.Equal(t, apperror.ActionContactSupport, env.Error["action"])
	assert.Len(t, env.Error["guidance"], 1)
}

func TestMissionHandler_CreateMission(t *testing.T) {
	userID, businessID := uuid.New(), uuid.New()

	t.Run("invalid business id", func(t *testing.T) {
		r := newTestRouter(userID)
		r.POST("/missions", NewMissionHandler(&mockMissions{}, nil).CreateMission)

		w := doJSON(r, http.MethodPost, "/missions", map[string]any{"business_id": "x", "title": "t", "reviewer_fee": 1000})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("created", func(t *testing.T) {
		missions := &mockMissions{}
		missions.On("CreateMission", mock.Anything, userID, service.CreateMissionInput{
			BusinessID:  businessID,
			Title:       "카페 방문 리뷰",
			ProductCost: 20000,
			ReviewerFee: 30000,
		}).Return(&models.Mission{ID: uuid.New(), TotalAmount: 55000, Status: models.MissionStatusPendingPayment}, nil)

		r := newTestRouter(userID)
		r.POST("/missions", NewMissionHandler(missions, nil).CreateMission)

		w := doJSON(r, http.MethodPost, "/missions", map[string]any{
			"business_id":  businessID.String(),
			"title":        "카페 방문 리뷰",
			"product_cost": 20000,
			"reviewer_fee": 30000,
		})

		assert.Equal(t, http.StatusCreated, w.Code)
		env := decode(t, w)
		assert.EqualValues(t, 55000, env.Data["total_amount"])
		assert.Equal(t, models.MissionStatusPendingPayment, env.Data["status"])
		missions.AssertExpectations(t)
	})
}
