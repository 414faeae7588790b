package memory

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/amhang-backend/internal/models"
	"github.com/ignatzorin/amhang-backend/internal/repository"
)

// ReviewStore - отзывы в памяти.
type ReviewStore struct {
	s *Store
}

func (r *ReviewStore) GetByID(_ context.Context, id uuid.UUID) (*models.Review, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	review, ok := r.s.reviews[id]
	if !ok {
		return nil, repository.ErrReviewNotFound
	}
	cp := *review
	return &cp, nil
}

func (r *ReviewStore) ListDueForPublish(_ context.Context, submittedBefore time.Time, limit int) ([]models.Review, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []models.Review
	for _, review := range r.s.reviews {
		if review.IsDisputed || review.SubmittedAt == nil || review.SubmittedAt.After(submittedBefore) {
			continue
		}
		if review.Status != models.ReviewStatusSubmitted && review.Status != models.ReviewStatusPreview {
			continue
		}
		result = append(result, *review)
	}
	slices.SortFunc(result, func(a, b models.Review) int {
		return a.SubmittedAt.Compare(*b.SubmittedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *ReviewStore) Publish(_ context.Context, id uuid.UUID, from string, at, releaseAt time.Time) (bool, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	review, ok := r.s.reviews[id]
	if !ok || review.Status != from || review.IsDisputed {
		return false, 0, nil
	}
	review.Status = models.ReviewStatusPublished
	review.PublishedAt = &at
	review.UpdatedAt = at

	if mission, ok := r.s.missions[review.MissionID]; ok && !contains(closedMissionStatuses, mission.Status) {
		setMissionStatus(mission, models.MissionStatusPublished, at)
	}

	var armed int64
	for _, e := range r.s.escrows {
		if e.MissionID != review.MissionID {
			continue
		}
		if e.Status != models.EscrowStatusPaid && e.Status != models.EscrowStatusHold {
			continue
		}
		releaseAt := releaseAt
		e.AutoReleaseAt = &releaseAt
		e.UpdatedAt = at
		armed++
	}
	return true, armed, nil
}

func (r *ReviewStore) MarkDisputed(_ context.Context, id uuid.UUID, reason string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	review, ok := r.s.reviews[id]
	if !ok || !review.CanBeDisputed() {
		return false, nil
	}
	review.Status = models.ReviewStatusDisputed
	review.IsDisputed = true
	review.DisputeReason = &reason
	review.DisputeFiledAt = &at
	review.UpdatedAt = at

	if mission, ok := r.s.missions[review.MissionID]; ok && !contains(closedMissionStatuses, mission.Status) {
		setMissionStatus(mission, models.MissionStatusDisputed, at)
	}
	return true, nil
}
