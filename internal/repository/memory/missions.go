package memory

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/amhang-backend/internal/models"
	"github.com/ignatzorin/amhang-backend/internal/repository"
)

var closedMissionStatuses = []string{models.MissionStatusCompleted, models.MissionStatusCancelled}

// MissionStore - миссии в памяти.
type MissionStore struct {
	s *Store
}

func (m *MissionStore) Create(_ context.Context, mission *models.Mission) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	now := m.s.now()
	mission.ID = uuid.New()
	mission.CreatedAt = now
	mission.UpdatedAt = now
	cp := *mission
	m.s.missions[cp.ID] = &cp
	return nil
}

func (m *MissionStore) GetByID(_ context.Context, id uuid.UUID) (*models.Mission, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	mission, ok := m.s.missions[id]
	if !ok {
		return nil, repository.ErrMissionNotFound
	}
	return m.withOwner(mission), nil
}

func (m *MissionStore) MarkPaid(_ context.Context, id uuid.UUID, payment models.MissionPayment) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	mission, ok := m.s.missions[id]
	if !ok || mission.Status != models.MissionStatusPendingPayment {
		return false, nil
	}
	paidAt, deadline, txID := payment.PaidAt, payment.RecruitmentDeadline, payment.TransactionID
	mission.Status = models.MissionStatusRecruiting
	mission.PaymentStatus = models.PaymentStatusPaid
	mission.TransactionID = &txID
	mission.PaidAt = &paidAt
	mission.RecruitmentDeadline = &deadline
	mission.UpdatedAt = paidAt
	return true, nil
}

func (m *MissionStore) UpdateStatus(_ context.Context, id uuid.UUID, from []string, to string, at time.Time) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	mission, ok := m.s.missions[id]
	if !ok || !contains(from, mission.Status) {
		return false, nil
	}
	setMissionStatus(mission, to, at)
	return true, nil
}

func (m *MissionStore) AssignReviewer(_ context.Context, id, reviewerID uuid.UUID, at time.Time) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	mission, ok := m.s.missions[id]
	if !ok || mission.Status != models.MissionStatusRecruiting {
		return false, nil
	}
	mission.Status = models.MissionStatusAssigned
	mission.AssignedReviewerID = &reviewerID
	mission.UpdatedAt = at
	return true, nil
}

func (m *MissionStore) ListExpiredRecruiting(_ context.Context, now time.Time, limit int) ([]models.Mission, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	var result []models.Mission
	for _, mission := range m.s.missions {
		if mission.Status != models.MissionStatusRecruiting || mission.RecruitmentDeadline == nil {
			continue
		}
		if mission.RecruitmentDeadline.After(now) {
			continue
		}
		result = append(result, *m.withOwner(mission))
	}
	slices.SortFunc(result, func(a, b models.Mission) int {
		return a.RecruitmentDeadline.Compare(*b.RecruitmentDeadline)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// withOwner копирует миссию и подставляет владельца бизнеса, как JOIN в Postgres.
func (m *MissionStore) withOwner(mission *models.Mission) *models.Mission {
	cp := *mission
	if b, ok := m.s.businesses[cp.BusinessID]; ok {
		cp.BusinessOwnerID = b.OwnerID
	}
	return &cp
}

func setMissionStatus(mission *models.Mission, to string, at time.Time) {
	mission.Status = to
	mission.UpdatedAt = at
	switch to {
	case models.MissionStatusCancelled:
		mission.CancelledAt = &at
	case models.MissionStatusRecruiting:
		mission.CancelledAt = nil
	case models.MissionStatusPublished:
		mission.PublishedAt = &at
	}
}

// BusinessStore - бизнесы в памяти.
type BusinessStore struct {
	s *Store
}

func (b *BusinessStore) GetByID(_ context.Context, id uuid.UUID) (*models.Business, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()

	business, ok := b.s.businesses[id]
	if !ok {
		return nil, repository.ErrBusinessNotFound
	}
	cp := *business
	return &cp, nil
}
