package memory

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/amhang-backend/internal/models"
	"github.com/ignatzorin/amhang-backend/internal/repository"
)

// EscrowStore - escrow в памяти.
type EscrowStore struct {
	s *Store
}

func (e *EscrowStore) Create(_ context.Context, escrow *models.Escrow) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()

	// Тот же инвариант, что у частичного уникального индекса
	for _, existing := range e.s.escrows {
		if existing.MissionID == escrow.MissionID && existing.Status != models.EscrowStatusRefunded {
			return repository.ErrEscrowConflict
		}
	}

	now := e.s.now()
	escrow.ID = uuid.New()
	escrow.CreatedAt = now
	escrow.UpdatedAt = now
	cp := *escrow
	e.s.escrows[cp.ID] = &cp
	return nil
}

func (e *EscrowStore) GetByID(_ context.Context, id uuid.UUID) (*models.Escrow, error) {
	e.s.mu.RLock()
	defer e.s.mu.RUnlock()

	escrow, ok := e.s.escrows[id]
	if !ok {
		return nil, repository.ErrEscrowNotFound
	}
	cp := *escrow
	return &cp, nil
}

func (e *EscrowStore) GetActiveByMission(_ context.Context, missionID uuid.UUID) (*models.Escrow, error) {
	e.s.mu.RLock()
	defer e.s.mu.RUnlock()

	for _, escrow := range e.s.escrows {
		if escrow.MissionID == missionID && escrow.Status != models.EscrowStatusRefunded {
			cp := *escrow
			return &cp, nil
		}
	}
	return nil, repository.ErrEscrowNotFound
}

func (e *EscrowStore) Transition(_ context.Context, id uuid.UUID, from, to string, upd models.EscrowUpdate) (bool, error) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()

	escrow, ok := e.s.escrows[id]
	if !ok || escrow.Status != from {
		return false, nil
	}
	e.apply(escrow, to, upd)
	return true, nil
}

func (e *EscrowStore) TransitionByMission(_ context.Context, missionID uuid.UUID, from []string, to string, upd models.EscrowUpdate) (int64, error) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()

	var n int64
	for _, escrow := range e.s.escrows {
		if escrow.MissionID != missionID || !contains(from, escrow.Status) {
			continue
		}
		e.apply(escrow, to, upd)
		n++
	}
	return n, nil
}

func (e *EscrowStore) Claim(_ context.Context, id uuid.UUID) (bool, error) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()

	escrow, ok := e.s.escrows[id]
	if !ok || escrow.Status != models.EscrowStatusPaid || escrow.AutoReleaseExecuted {
		return false, nil
	}
	now := e.s.now()
	escrow.Status = models.EscrowStatusReleasing
	escrow.PayoutLastAttemptAt = &now
	escrow.UpdatedAt = now
	return true, nil
}

func (e *EscrowStore) Delete(_ context.Context, id uuid.UUID) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()

	if _, ok := e.s.escrows[id]; !ok {
		return repository.ErrEscrowNotFound
	}
	delete(e.s.escrows, id)
	return nil
}

func (e *EscrowStore) ListDueForRelease(_ context.Context, now time.Time, limit int) ([]models.Escrow, error) {
	e.s.mu.RLock()
	defer e.s.mu.RUnlock()

	var result []models.Escrow
	for _, escrow := range e.s.escrows {
		if escrow.Status != models.EscrowStatusPaid || escrow.AutoReleaseExecuted || escrow.AutoReleaseAt == nil {
			continue
		}
		if escrow.AutoReleaseAt.After(now) {
			continue
		}
		result = append(result, *escrow)
	}
	slices.SortFunc(result, func(a, b models.Escrow) int {
		return a.AutoReleaseAt.Compare(*b.AutoReleaseAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (e *EscrowStore) ListByReviewer(_ context.Context, reviewerID uuid.UUID, status string) ([]models.Escrow, error) {
	e.s.mu.RLock()
	defer e.s.mu.RUnlock()

	var result []models.Escrow
	for _, escrow := range e.s.escrows {
		if escrow.ReviewerID != nil && *escrow.ReviewerID == reviewerID && (status == "" || escrow.Status == status) {
			result = append(result, *escrow)
		}
	}
	slices.SortFunc(result, func(a, b models.Escrow) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return result, nil
}

func (e *EscrowStore) apply(escrow *models.Escrow, to string, upd models.EscrowUpdate) {
	if to != "" {
		escrow.Status = to
	}
	upd.Apply(escrow)
	escrow.UpdatedAt = e.s.now()
}
