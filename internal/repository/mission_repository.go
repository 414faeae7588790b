package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/amhang-backend/internal/models"
	"github.com/ignatzorin/amhang-backend/internal/repository/common"
)

const missionColumns = `
	m.id, m.business_id, b.owner_id AS business_owner_id, m.title, m.mission_type,
	m.product_cost, m.reviewer_fee, m.platform_fee, m.total_amount, m.status, m.payment_status,
	m.recruitment_deadline, m.assigned_reviewer_id, m.transaction_id, m.paid_at, m.published_at,
	m.cancelled_at, m.created_at, m.updated_at`

// MissionRepository отвечает за работу с миссиями.
type MissionRepository struct {
	db *sqlx.DB
}

// NewMissionRepository создаёт новый экземпляр.
func NewMissionRepository(db *sqlx.DB) *MissionRepository {
	return &MissionRepository{db: db}
}

// Create сохраняет новую миссию.
func (r *MissionRepository) Create(ctx context.Context, mission *models.Mission) error {
	query := `
		INSERT INTO missions (business_id, title, mission_type, product_cost, reviewer_fee, platform_fee, total_amount, status, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(
		ctx,
		query,
		mission.BusinessID,
		mission.Title,
		mission.MissionType,
		mission.ProductCost,
		mission.ReviewerFee,
		mission.PlatformFee,
		mission.TotalAmount,
		mission.Status,
		mission.PaymentStatus,
	).Scan(&mission.ID, &mission.CreatedAt, &mission.UpdatedAt); err != nil {
		return fmt.Errorf("mission repository: create %w", err)
	}
	return nil
}

// GetByID возвращает миссию вместе с владельцем бизнеса.
func (r *MissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Mission, error) {
	var mission models.Mission
	query := `SELECT ` + missionColumns + `
		FROM missions m
		JOIN businesses b ON b.id = m.business_id
		WHERE m.id = $1`
	if err := r.db.GetContext(ctx, &mission, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMissionNotFound
		}
		return nil, fmt.Errorf("mission repository: get by id %w", err)
	}
	return &mission, nil
}

// MarkPaid переводит миссию pending_payment → recruiting.
// false - миссию уже оплатили или отменили параллельно.
func (r *MissionRepository) MarkPaid(ctx context.Context, id uuid.UUID, payment models.MissionPayment) (bool, error) {
	query := `
		UPDATE missions
		SET status = $1, payment_status = $2, transaction_id = $3, paid_at = $4,
		    recruitment_deadline = $5, updated_at = $4
		WHERE id = $6 AND status = $7
	`
	n, err := common.ExecAffected(ctx, r.db, query,
		models.MissionStatusRecruiting,
		models.PaymentStatusPaid,
		payment.TransactionID,
		payment.PaidAt,
		payment.RecruitmentDeadline,
		id,
		models.MissionStatusPendingPayment,
	)
	if err != nil {
		return false, fmt.Errorf("mission repository: mark paid %w", err)
	}
	return n == 1, nil
}

// UpdateStatus меняет статус, только если текущий входит в from.
func (r *MissionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from []string, to string, at time.Time) (bool, error) {
	query := `
		UPDATE missions
		SET status = $1,
		    updated_at = $2,
		    cancelled_at = CASE WHEN $1 = 'cancelled' THEN $2 WHEN $1 = 'recruiting' THEN NULL ELSE cancelled_at END,
		    published_at = CASE WHEN $1 = 'published' THEN $2 ELSE published_at END
		WHERE id = $3 AND status = ANY($4)
	`
	n, err := common.ExecAffected(ctx, r.db, query, to, at, id, pq.Array(from))
	if err != nil {
		return false, fmt.Errorf("mission repository: update status %w", err)
	}
	return n == 1, nil
}

// AssignReviewer закрепляет ревьюера за миссией в статусе recruiting.
func (r *MissionRepository) AssignReviewer(ctx context.Context, id, reviewerID uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE missions
		SET status = $1, assigned_reviewer_id = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`
	n, err := common.ExecAffected(ctx, r.db, query,
		models.MissionStatusAssigned, reviewerID, at, id, models.MissionStatusRecruiting)
	if err != nil {
		return false, fmt.Errorf("mission repository: assign reviewer %w", err)
	}
	return n == 1, nil
}

// ListExpiredRecruiting возвращает миссии, у которых истёк срок набора.
func (r *MissionRepository) ListExpiredRecruiting(ctx context.Context, now time.Time, limit int) ([]models.Mission, error) {
	missions := []models.Mission{}
	query := `SELECT ` + missionColumns + `
		FROM missions m
		JOIN businesses b ON b.id = m.business_id
		WHERE m.status = $1 AND m.recruitment_deadline <= $2
		ORDER BY m.recruitment_deadline
		LIMIT $3`
	if err := r.db.SelectContext(ctx, &missions, query, models.MissionStatusRecruiting, now, limit); err != nil {
		return nil, fmt.Errorf("mission repository: list expired %w", err)
	}
	return missions, nil
}

// BusinessRepository - чтение бизнесов (создаются вне этого сервиса).
type BusinessRepository struct {
	db *sqlx.DB
}

// NewBusinessRepository создаёт новый экземпляр.
func NewBusinessRepository(db *sqlx.DB) *BusinessRepository {
	return &BusinessRepository{db: db}
}

// GetByID возвращает бизнес по идентификатору.
func (r *BusinessRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Business, error) {
	return common.GetByID[models.Business](ctx, r.db, "businesses", id, ErrBusinessNotFound)
}
