package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/amhang-backend/internal/models"
	"github.com/ignatzorin/amhang-backend/internal/repository/common"
)

// Статусы, из которых миссию нельзя сдвинуть публикацией или спором.
var closedMissionStatuses = []string{models.MissionStatusCompleted, models.MissionStatusCancelled}

type ReviewRepository struct {
	db *sqlx.DB
}

func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// GetByID возвращает отзыв по ID.
func (r *ReviewRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	return common.GetByID[models.Review](ctx, r.db, "reviews", id, ErrReviewNotFound)
}

// ListDueForPublish возвращает неоспоренные отзывы, отправленные не позже submittedBefore.
func (r *ReviewRepository) ListDueForPublish(ctx context.Context, submittedBefore time.Time, limit int) ([]models.Review, error) {
	reviews := []models.Review{}
	query := `
		SELECT * FROM reviews
		WHERE status = ANY($1) AND is_disputed = FALSE AND submitted_at <= $2
		ORDER BY submitted_at
		LIMIT $3
	`
	statuses := pq.Array([]string{models.ReviewStatusSubmitted, models.ReviewStatusPreview})
	if err := r.db.SelectContext(ctx, &reviews, query, statuses, submittedBefore, limit); err != nil {
		return nil, fmt.Errorf("review repository: list due for publish %w", err)
	}
	return reviews, nil
}

// Publish публикует отзыв из статуса from, переводит миссию в published и
// в той же транзакции назначает escrow миссии дату авто-выплаты releaseAt.
// ok=false - отзыв успели оспорить или опубликовать. armed - сколько escrow получили дату.
func (r *ReviewRepository) Publish(ctx context.Context, id uuid.UUID, from string, at, releaseAt time.Time) (ok bool, armed int64, err error) {
	err = common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var missionID uuid.UUID
		err := tx.QueryRowxContext(ctx, `
			UPDATE reviews
			SET status = $1, published_at = $2, updated_at = $2
			WHERE id = $3 AND status = $4 AND is_disputed = FALSE
			RETURNING mission_id
		`, models.ReviewStatusPublished, at, id, from).Scan(&missionID)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE missions
			SET status = $1, published_at = $2, updated_at = $2
			WHERE id = $3 AND status <> ALL($4)
		`, models.MissionStatusPublished, at, missionID, pq.Array(closedMissionStatuses))
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE escrows
			SET auto_release_at = $1, updated_at = $2
			WHERE mission_id = $3 AND status = ANY($4)
		`, releaseAt, at, missionID, pq.Array([]string{models.EscrowStatusPaid, models.EscrowStatusHold}))
		if err != nil {
			return err
		}
		armed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		if isNoRows(err) {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("review repository: publish %w", err)
	}
	return true, armed, nil
}

// MarkDisputed помечает отзыв оспоренным и переводит миссию в disputed.
// false - отзыв уже опубликован или оспорен.
func (r *ReviewRepository) MarkDisputed(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error) {
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var missionID uuid.UUID
		err := tx.QueryRowxContext(ctx, `
			UPDATE reviews
			SET status = $1, is_disputed = TRUE, dispute_reason = $2, dispute_filed_at = $3, updated_at = $3
			WHERE id = $4 AND status = ANY($5) AND is_disputed = FALSE
			RETURNING mission_id
		`, models.ReviewStatusDisputed, reason, at, id,
			pq.Array([]string{models.ReviewStatusSubmitted, models.ReviewStatusPreview}),
		).Scan(&missionID)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE missions SET status = $1, updated_at = $2
			WHERE id = $3 AND status <> ALL($4)
		`, models.MissionStatusDisputed, at, missionID, pq.Array(closedMissionStatuses))
		return err
	})
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("review repository: mark disputed %w", err)
	}
	return true, nil
}
