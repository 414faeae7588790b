package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/amhang-backend/internal/models"
	"github.com/ignatzorin/amhang-backend/internal/payment"
	"github.com/ignatzorin/amhang-backend/internal/pkg/apperror"
	"github.com/ignatzorin/amhang-backend/internal/repository"
)

func reasonContains(part string) interface{} {
	return mock.MatchedBy(func(reason string) bool { return strings.Contains(reason, part) })
}

func orderFor(missionID uuid.UUID) interface{} {
	return mock.MatchedBy(func(orderID string) bool {
		return strings.HasPrefix(orderID, "mission_"+missionID.String()+"_")
	})
}

func TestPayMission_Success(t *testing.T) {
	f := newFixture(t)
	svc := f.paymentService(nil, nil)
	m := f.pendingMission(t)

	f.gateway.On("Capture", mock.Anything, "pay_key", orderFor(m.ID), int64(55000)).
		Return(donePayment("pay_key", "", 55000), nil).Once()

	receipt, err := svc.PayMission(context.Background(), m.ID, f.ownerID, "pay_key")
	require.NoError(t, err)
	assert.Equal(t, int64(55000), receipt.Amount)
	assert.Equal(t, models.MissionStatusRecruiting, receipt.Status)
	assert.WithinDuration(t, receipt.PaidAt.Add(models.RecruitmentPeriod), receipt.RecruitmentDeadline, time.Second)

	mission := f.mission(t, m.ID)
	assert.Equal(t, models.MissionStatusRecruiting, mission.Status)
	assert.Equal(t, models.PaymentStatusPaid, mission.PaymentStatus)

	escrow := f.escrow(t, receipt.EscrowID)
	assert.Equal(t, models.EscrowStatusPaid, escrow.Status)
	assert.Equal(t, "pay_key", escrow.TransactionID)
	assert.Equal(t, int64(20000), escrow.ReviewerFee)
	require.NotNil(t, escrow.PaymentMethod)
	assert.Equal(t, "카드", *escrow.PaymentMethod)

	f.gateway.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPayMission_EscrowInsertFailureCancelsPayment(t *testing.T) {
	f := newFixture(t)
	ledger := NewEscrowLedger(&failingEscrowRepo{EscrowStore: f.store.Escrows(), createErr: errStorage})
	svc := f.paymentService(nil, ledger)

	m := &models.Mission{
		BusinessID:    f.businessID,
		Title:         "카페 방문",
		ProductCost:   5000,
		ReviewerFee:   5000,
		PlatformFee:   1000,
		TotalAmount:   11000,
		Status:        models.MissionStatusPendingPayment,
		PaymentStatus: models.PaymentStatusPending,
	}
	require.NoError(t, f.store.Missions().Create(context.Background(), m))

	f.gateway.On("Capture", mock.Anything, "pay_key", orderFor(m.ID), int64(11000)).
		Return(donePayment("pay_key", "", 11000), nil).Once()
	f.gateway.On("Cancel", mock.Anything, "pay_key", reasonContains("에스크로 생성 실패"), payment.CancelOptions{}).
		Return(&payment.CancelResult{Payment: &payment.Payment{Status: payment.StatusCanceled}}, nil).Once()

	_, err := svc.PayMission(context.Background(), m.ID, f.ownerID, "pay_key")
	require.Error(t, err)

	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.ErrCodePaymentCancelled, appErr.Code)
	assert.Equal(t, 500, appErr.HTTPStatus)
	assert.Equal(t, true, appErr.Details["refunded"])
	assert.Equal(t, "completed", appErr.Details["refundStatus"])

	f.gateway.AssertNumberOfCalls(t, "Cancel", 1)

	_, err = f.store.Escrows().GetActiveByMission(context.Background(), m.ID)
	assert.ErrorIs(t, err, repository.ErrEscrowNotFound)
	assert.Equal(t, models.MissionStatusPendingPayment, f.mission(t, m.ID).Status)
}

func TestPayMission_MissionUpdateLostRaceDeletesEscrow(t *testing.T) {
	f := newFixture(t)
	svc := f.paymentService(&racingMissionRepo{MissionStore: f.store.Missions()}, nil)
	m := f.pendingMission(t)

	f.gateway.On("Capture", mock.Anything, "pay_key", orderFor(m.ID), int64(55000)).
		Return(donePayment("pay_key", "", 55000), nil).Once()
	f.gateway.On("Cancel", mock.Anything, "pay_key", reasonContains("미션 상태 업데이트 실패"), payment.CancelOptions{}).
		Return(&payment.CancelResult{}, nil).Once()

	_, err := svc.PayMission(context.Background(), m.ID, f.ownerID, "pay_key")
	assert.True(t, apperror.HasCode(err, apperror.ErrCodePaymentCancelled))

	_, err = f.store.Escrows().GetActiveByMission(context.Background(), m.ID)
	assert.ErrorIs(t, err, repository.ErrEscrowNotFound)
	f.gateway.AssertExpectations(t)
}

func TestPayMission_UndeletedEscrowIsClosedAndMissionStaysPayable(t *testing.T) {
	f := newFixture(t)
	ledger := NewEscrowLedger(&failingEscrowRepo{EscrowStore: f.store.Escrows(), deleteErr: errStorage})
	svc := f.paymentService(&racingMissionRepo{MissionStore: f.store.Missions(), markPaidErr: errStorage}, ledger)
	m := f.pendingMission(t)

	f.gateway.On("Capture", mock.Anything, "pay_key", orderFor(m.ID), int64(55000)).
		Return(donePayment("pay_key", "", 55000), nil).Once()
	f.gateway.On("Cancel", mock.Anything, "pay_key", mock.Anything, payment.CancelOptions{}).
		Return(&payment.CancelResult{}, nil).Once()

	_, err := svc.PayMission(context.Background(), m.ID, f.ownerID, "pay_key")
	assert.True(t, apperror.HasCode(err, apperror.ErrCodePaymentCancelled))

	// Escrow пережил удаление, но закрыт как возврат и не занимает миссию
	_, err = f.store.Escrows().GetActiveByMission(context.Background(), m.ID)
	assert.ErrorIs(t, err, repository.ErrEscrowNotFound)

	// Повторная оплата той же миссии проходит
	f.gateway.On("Capture", mock.Anything, "pay_key_2", orderFor(m.ID), int64(55000)).
		Return(donePayment("pay_key_2", "", 55000), nil).Once()
	receipt, err := f.paymentService(nil, nil).PayMission(context.Background(), m.ID, f.ownerID, "pay_key_2")
	require.NoError(t, err)

	escrow := f.escrow(t, receipt.EscrowID)
	assert.Equal(t, models.EscrowStatusPaid, escrow.Status)
	assert.Equal(t, "pay_key_2", escrow.TransactionID)
	f.gateway.AssertExpectations(t)
}

func TestPayMission_RollbackFailureNeedsSupport(t *testing.T) {
	f := newFixture(t)
	ledger := NewEscrowLedger(&failingEscrowRepo{EscrowStore: f.store.Escrows(), createErr: errStorage})
	svc := f.paymentService(nil, ledger)
	m := f.pendingMission(t)

	f.gateway.On("Capture", mock.Anything, "pay_key", orderFor(m.ID), int64(55000)).
		Return(donePayment("pay_key", "", 55000), nil).Once()
	f.gateway.On("Cancel", mock.Anything, "pay_key", mock.Anything, mock.Anything).
		Return(nil, &payment.GatewayError{HTTPStatus: 500, Code: "PROVIDER_ERROR", Message: "일시적인 오류"}).Once()

	_, err := svc.PayMission(context.Background(), m.ID, f.ownerID, "pay_key")

	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.ErrCodeRollbackFailed, appErr.Code)
	assert.Equal(t, apperror.ActionContactSupport, appErr.Action)
	assert.Len(t, appErr.Guidance, 3)
	assert.Equal(t, "pay_key", appErr.Details["transactionId"])
}

func TestPayMission_PanicAfterCaptureIsCompensated(t *testing.T) {
	f := newFixture(t)
	ledger := NewEscrowLedger(&failingEscrowRepo{EscrowStore: f.store.Escrows(), panicOn: "create"})
	svc := f.paymentService(nil, ledger)
	m := f.pendingMission(t)

	f.gateway.On("Capture", mock.Anything, "pay_key", orderFor(m.ID), int64(55000)).
		Return(donePayment("pay_key", "", 55000), nil).Once()
	f.gateway.On("Cancel", mock.Anything, "pay_key", reasonContains("시스템 오류"), payment.CancelOptions{}).
		Return(&payment.CancelResult{}, nil).Once()

	var err error
	assert.NotPanics(t, func() {
		_, err = svc.PayMission(context.Background(), m.ID, f.ownerID, "pay_key")
	})
	assert.True(t, apperror.HasCode(err, apperror.ErrCodePaymentCancelled))
	f.gateway.AssertExpectations(t)
}

func TestPayMission_CaptureTimeoutResolvedByQuery(t *testing.T) {
	f := newFixture(t)
	svc := f.paymentService(nil, nil)
	m := f.pendingMission(t)

	queried := donePayment("pay_key", "", 55000)
	f.gateway.On("Capture", mock.Anything, "pay_key", orderFor(m.ID), int64(55000)).
		Run(func(args mock.Arguments) { queried.OrderID = args.String(2) }).
		Return(nil, &payment.TransportError{Op: "capture", Err: context.DeadlineExceeded}).Once()
	f.gateway.On("Query", mock.Anything, "pay_key").Return(queried, nil).Once()

	receipt, err := svc.PayMission(context.Background(), m.ID, f.ownerID, "pay_key")
	require.NoError(t, err)
	assert.Equal(t, queried.OrderID, receipt.OrderID)
	assert.Equal(t, models.MissionStatusRecruiting, f.mission(t, m.ID).Status)
}

func TestPayMission_CaptureRejected(t *testing.T) {
	f := newFixture(t)
	svc := f.paymentService(nil, nil)
	m := f.pendingMission(t)

	f.gateway.On("Capture", mock.Anything, "pay_key", orderFor(m.ID), int64(55000)).
		Return(nil, &payment.GatewayError{HTTPStatus: 400, Code: "REJECT_CARD_COMPANY", Message: "카드사에서 거절했습니다."}).Once()

	_, err := svc.PayMission(context.Background(), m.ID, f.ownerID, "pay_key")

	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.ErrCodePaymentFailed, appErr.Code)
	assert.Equal(t, "카드사에서 거절했습니다.", appErr.Details["reason"])
	assert.Equal(t, false, appErr.Details["refunded"])
	f.gateway.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPayMission_Preconditions(t *testing.T) {
	f := newFixture(t)
	svc := f.paymentService(nil, nil)
	m := f.pendingMission(t)
	ctx := context.Background()

	_, err := svc.PayMission(ctx, m.ID, uuid.New(), "pay_key")
	assert.ErrorIs(t, err, apperror.ErrMissionNotFound)

	_, err = svc.PayMission(ctx, uuid.New(), f.ownerID, "pay_key")
	assert.ErrorIs(t, err, apperror.ErrMissionNotFound)

	_, err = svc.PayMission(ctx, m.ID, f.ownerID, "   ")
	assert.True(t, apperror.HasCode(err, apperror.ErrCodePaymentFailed))

	paid, _ := f.recruitingMission(t, time.Now().Add(time.Hour))
	_, err = svc.PayMission(ctx, paid.ID, f.ownerID, "pay_key")
	assert.ErrorIs(t, err, apperror.ErrPaymentAlreadyProcessed)

	f.gateway.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelMission_RefundsPaidMission(t *testing.T) {
	f := newFixture(t)
	svc := f.paymentService(nil, nil)
	m, e := f.recruitingMission(t, time.Now().Add(time.Hour))

	f.gateway.On("Cancel", mock.Anything, e.TransactionID, cancelReasonByBusiness, payment.CancelOptions{}).
		Return(&payment.CancelResult{}, nil).Once()

	require.NoError(t, svc.CancelMission(context.Background(), m.ID, f.ownerID))

	assert.Equal(t, models.MissionStatusCancelled, f.mission(t, m.ID).Status)
	escrow := f.escrow(t, e.ID)
	assert.Equal(t, models.EscrowStatusRefunded, escrow.Status)
	require.NotNil(t, escrow.RefundAmount)
	assert.Equal(t, int64(55000), *escrow.RefundAmount)
	assert.Len(t, f.notifier.to(f.ownerID), 1)
}

func TestCancelMission_RefundFailureChangesNothing(t *testing.T) {
	f := newFixture(t)
	svc := f.paymentService(nil, nil)
	m, e := f.recruitingMission(t, time.Now().Add(time.Hour))

	f.gateway.On("Cancel", mock.Anything, e.TransactionID, mock.Anything, mock.Anything).
		Return(nil, errors.New("gateway down")).Once()

	err := svc.CancelMission(context.Background(), m.ID, f.ownerID)
	assert.ErrorIs(t, err, apperror.ErrRefundFailed)

	assert.Equal(t, models.MissionStatusRecruiting, f.mission(t, m.ID).Status)
	assert.Equal(t, models.EscrowStatusPaid, f.escrow(t, e.ID).Status)
}

func TestCancelMission_UnpaidMissionSkipsGateway(t *testing.T) {
	f := newFixture(t)
	svc := f.paymentService(nil, nil)
	m := f.pendingMission(t)

	require.NoError(t, svc.CancelMission(context.Background(), m.ID, f.ownerID))
	assert.Equal(t, models.MissionStatusCancelled, f.mission(t, m.ID).Status)
	f.gateway.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	err := svc.CancelMission(context.Background(), m.ID, f.ownerID)
	assert.ErrorIs(t, err, apperror.ErrMissionCannotCancel)
}
