package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockCanceler struct {
	mock.Mock
}

func (m *mockCanceler) Cancel(ctx context.Context, paymentKey, reason string, opts CancelOptions) (*CancelResult, error) {
	args := m.Called(ctx, paymentKey, reason, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CancelResult), args.Error(1)
}

func TestRollback_Refunded(t *testing.T) {
	gw := new(mockCanceler)
	gw.On("Cancel", mock.Anything, "pk_1", "에스크로 생성 실패로 인한 자동 취소", CancelOptions{}).
		Return(&CancelResult{Payment: &Payment{Status: StatusCanceled}}, nil).Once()

	res := NewRollbackCoordinator(gw).Rollback(context.Background(), "pk_1", "에스크로 생성 실패로 인한 자동 취소", RollbackContext{Step: "create_escrow"})

	assert.True(t, res.Success)
	assert.True(t, res.Refunded)
	assert.False(t, res.AlreadyCanceled)
	assert.False(t, res.RequiresManualIntervention)
	gw.AssertExpectations(t)
}

func TestRollback_AlreadyCanceled(t *testing.T) {
	gw := new(mockCanceler)
	gw.On("Cancel", mock.Anything, "pk_1", "reason", CancelOptions{}).
		Return(&CancelResult{AlreadyCanceled: true}, nil).Once()

	res := NewRollbackCoordinator(gw).Rollback(context.Background(), "pk_1", "reason", RollbackContext{})

	assert.True(t, res.Success)
	assert.False(t, res.Refunded)
	assert.True(t, res.AlreadyCanceled)
}

func TestRollback_FailureRequiresManualIntervention(t *testing.T) {
	gw := new(mockCanceler)
	cause := errors.New("gateway down")
	gw.On("Cancel", mock.Anything, "pk_1", "reason", CancelOptions{}).Return(nil, cause).Once()

	res := NewRollbackCoordinator(gw).Rollback(context.Background(), "pk_1", "reason", RollbackContext{})

	assert.False(t, res.Success)
	assert.False(t, res.Refunded)
	assert.True(t, res.RequiresManualIntervention)
	assert.ErrorIs(t, res.Error, cause)
	assert.Equal(t, "pk_1", res.PaymentKey)
}

func TestRollback_SurvivesCancelledRequestContext(t *testing.T) {
	gw := new(mockCanceler)
	gw.On("Cancel", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), "pk_1", "reason", CancelOptions{}).
		Return(&CancelResult{}, nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewRollbackCoordinator(gw).Rollback(ctx, "pk_1", "reason", RollbackContext{})

	assert.True(t, res.Success)
	gw.AssertExpectations(t)
}
