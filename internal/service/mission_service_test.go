package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/amhang-backend/internal/models"
	"github.com/ignatzorin/amhang-backend/internal/pkg/apperror"
)

func (f *fixture) missionService() *MissionService {
	return NewMissionService(f.store.Missions(), f.store.Businesses(), f.ledger, f.notifier)
}

func TestCreateMission_ComputesPlatformFee(t *testing.T) {
	f := newFixture(t)

	m, err := f.missionService().CreateMission(context.Background(), f.ownerID, CreateMissionInput{
		BusinessID:  f.businessID,
		Title:       " 파스타 맛집 방문 ",
		ProductCost: 30000,
		ReviewerFee: 20000,
	})
	require.NoError(t, err)
	assert.Equal(t, "파스타 맛집 방문", m.Title)
	assert.Equal(t, int64(5000), m.PlatformFee)
	assert.Equal(t, int64(55000), m.TotalAmount)
	assert.Equal(t, models.MissionStatusPendingPayment, m.Status)

	stored := f.mission(t, m.ID)
	assert.Equal(t, f.ownerID, stored.BusinessOwnerID)
}

func TestCreateMission_Validation(t *testing.T) {
	f := newFixture(t)
	svc := f.missionService()
	ctx := context.Background()

	_, err := svc.CreateMission(ctx, f.ownerID, CreateMissionInput{BusinessID: f.businessID, ProductCost: 1000})
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.CreateMission(ctx, f.ownerID, CreateMissionInput{BusinessID: f.businessID, Title: "t", ProductCost: -1})
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.CreateMission(ctx, f.ownerID, CreateMissionInput{BusinessID: f.businessID, Title: "t"})
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.CreateMission(ctx, f.ownerID, CreateMissionInput{BusinessID: f.businessID, Title: strings.Repeat("가", 101), ProductCost: 1000})
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.CreateMission(ctx, f.ownerID, CreateMissionInput{BusinessID: f.businessID, Title: "t", ReviewerFee: 100_000_001})
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.CreateMission(ctx, uuid.New(), CreateMissionInput{BusinessID: f.businessID, Title: "t", ProductCost: 1000})
	assert.ErrorIs(t, err, apperror.ErrMissionNotFound)
}

func TestAssignReviewer_BindsEscrowToReviewer(t *testing.T) {
	f := newFixture(t)
	m, e := f.recruitingMission(t, time.Now().Add(time.Hour))

	assigned, err := f.missionService().AssignReviewer(context.Background(), m.ID, f.reviewerID)
	require.NoError(t, err)
	assert.Equal(t, models.MissionStatusAssigned, assigned.Status)
	require.NotNil(t, assigned.AssignedReviewerID)
	assert.Equal(t, f.reviewerID, *assigned.AssignedReviewerID)

	escrow := f.escrow(t, e.ID)
	require.NotNil(t, escrow.ReviewerID)
	assert.Equal(t, f.reviewerID, *escrow.ReviewerID)
	assert.Equal(t, models.EscrowStatusPaid, escrow.Status)

	sent := f.notifier.to(f.reviewerID)
	require.Len(t, sent, 1)
	assert.Equal(t, models.NotificationMissionAssigned, sent[0].Kind)

	_, err = f.missionService().AssignReviewer(context.Background(), m.ID, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrMissionCannotAssign)
}
