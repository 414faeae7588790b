package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/amhang-backend/internal/models"
	"github.com/ignatzorin/amhang-backend/internal/repository/common"
)

// EscrowRepository хранит escrow. Все изменения статуса идут через условный UPDATE.
type EscrowRepository struct {
	db *sqlx.DB
}

// NewEscrowRepository создаёт новый экземпляр.
func NewEscrowRepository(db *sqlx.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

// Create сохраняет escrow. ErrEscrowConflict - у миссии уже есть живой escrow.
func (r *EscrowRepository) Create(ctx context.Context, escrow *models.Escrow) error {
	query := `
		INSERT INTO escrows (
			mission_id, business_id, reviewer_id, product_cost, reviewer_fee, platform_fee, total_amount,
			status, transaction_id, payment_method, pg_provider, paid_at, auto_release_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowxContext(
		ctx,
		query,
		escrow.MissionID,
		escrow.BusinessID,
		escrow.ReviewerID,
		escrow.ProductCost,
		escrow.ReviewerFee,
		escrow.PlatformFee,
		escrow.TotalAmount,
		escrow.Status,
		escrow.TransactionID,
		escrow.PaymentMethod,
		escrow.PGProvider,
		escrow.PaidAt,
		escrow.AutoReleaseAt,
	).Scan(&escrow.ID, &escrow.CreatedAt, &escrow.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return ErrEscrowConflict
		}
		return fmt.Errorf("escrow repository: create %w", err)
	}
	return nil
}

// GetByID возвращает escrow по идентификатору.
func (r *EscrowRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Escrow, error) {
	return common.GetByID[models.Escrow](ctx, r.db, "escrows", id, ErrEscrowNotFound)
}

// GetActiveByMission возвращает незакрытый возвратом escrow миссии.
func (r *EscrowRepository) GetActiveByMission(ctx context.Context, missionID uuid.UUID) (*models.Escrow, error) {
	var escrows []models.Escrow
	query := `SELECT * FROM escrows WHERE mission_id = $1 AND status <> $2 LIMIT 1`
	if err := r.db.SelectContext(ctx, &escrows, query, missionID, models.EscrowStatusRefunded); err != nil {
		return nil, fmt.Errorf("escrow repository: get active by mission %w", err)
	}
	if len(escrows) == 0 {
		return nil, ErrEscrowNotFound
	}
	return &escrows[0], nil
}

// Transition меняет статус from → to вместе с полями upd.
// false - escrow уже не в статусе from.
func (r *EscrowRepository) Transition(ctx context.Context, id uuid.UUID, from, to string, upd models.EscrowUpdate) (bool, error) {
	set, args := escrowSetClause(to, upd)
	args = append(args, id, from)
	query := fmt.Sprintf(
		"UPDATE escrows SET %s WHERE id = $%d AND status = $%d",
		strings.Join(set, ", "), len(args)-1, len(args),
	)

	n, err := common.ExecAffected(ctx, r.db, query, args...)
	if err != nil {
		return false, fmt.Errorf("escrow repository: transition %s -> %s %w", from, to, err)
	}
	return n == 1, nil
}

// TransitionByMission применяет переход ко всем escrow миссии в статусах from.
// Пустой to оставляет статус прежним.
func (r *EscrowRepository) TransitionByMission(ctx context.Context, missionID uuid.UUID, from []string, to string, upd models.EscrowUpdate) (int64, error) {
	set, args := escrowSetClause(to, upd)
	args = append(args, missionID, pq.Array(from))
	query := fmt.Sprintf(
		"UPDATE escrows SET %s WHERE mission_id = $%d AND status = ANY($%d)",
		strings.Join(set, ", "), len(args)-1, len(args),
	)

	n, err := common.ExecAffected(ctx, r.db, query, args...)
	if err != nil {
		return 0, fmt.Errorf("escrow repository: transition by mission %w", err)
	}
	return n, nil
}

// Claim забирает escrow на выплату: paid → releasing, пока авто-выплата не выполнялась.
func (r *EscrowRepository) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE escrows
		SET status = $1, payout_last_attempt_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND status = $3 AND auto_release_executed = FALSE
	`
	n, err := common.ExecAffected(ctx, r.db, query, models.EscrowStatusReleasing, id, models.EscrowStatusPaid)
	if err != nil {
		return false, fmt.Errorf("escrow repository: claim %w", err)
	}
	return n == 1, nil
}

// Delete удаляет escrow. Только для компенсации неудачной оплаты.
func (r *EscrowRepository) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := common.ExecAffected(ctx, r.db, `DELETE FROM escrows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("escrow repository: delete %w", err)
	}
	if n == 0 {
		return ErrEscrowNotFound
	}
	return nil
}

// ListDueForRelease возвращает escrow, которым пора выплачиваться.
func (r *EscrowRepository) ListDueForRelease(ctx context.Context, now time.Time, limit int) ([]models.Escrow, error) {
	escrows := []models.Escrow{}
	query := `
		SELECT * FROM escrows
		WHERE status = $1 AND auto_release_at <= $2 AND auto_release_executed = FALSE
		ORDER BY auto_release_at
		LIMIT $3
	`
	if err := r.db.SelectContext(ctx, &escrows, query, models.EscrowStatusPaid, now, limit); err != nil {
		return nil, fmt.Errorf("escrow repository: list due for release %w", err)
	}
	return escrows, nil
}

// ListByReviewer возвращает escrow ревьюера. Пустой status - все статусы.
func (r *EscrowRepository) ListByReviewer(ctx context.Context, reviewerID uuid.UUID, status string) ([]models.Escrow, error) {
	escrows := []models.Escrow{}
	query := `SELECT * FROM escrows WHERE reviewer_id = $1 AND ($2 = '' OR status = $2) ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &escrows, query, reviewerID, status); err != nil {
		return nil, fmt.Errorf("escrow repository: list by reviewer %w", err)
	}
	return escrows, nil
}

// escrowSetClause собирает SET из непустых полей обновления.
// Плейсхолдеры нумеруются с $1; вызывающий дописывает условия WHERE в конец args.
func escrowSetClause(to string, upd models.EscrowUpdate) ([]string, []interface{}) {
	set := []string{"updated_at = NOW()"}
	args := []interface{}{}

	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if to != "" {
		add("status", to)
	}
	if upd.ReviewerID != nil {
		add("reviewer_id", *upd.ReviewerID)
	}
	if upd.AutoReleaseAt != nil {
		add("auto_release_at", *upd.AutoReleaseAt)
	}
	if upd.AutoReleaseExecuted != nil {
		add("auto_release_executed", *upd.AutoReleaseExecuted)
	}
	if upd.PayoutRetryCount != nil {
		add("payout_retry_count", *upd.PayoutRetryCount)
	}
	if upd.PayoutErrorMessage != nil {
		add("payout_error_message", *upd.PayoutErrorMessage)
	}
	if upd.PayoutLastAttemptAt != nil {
		add("payout_last_attempt_at", *upd.PayoutLastAttemptAt)
	}
	if upd.HoldReason != nil {
		add("hold_reason", *upd.HoldReason)
	}
	if upd.HeldAt != nil {
		add("held_at", *upd.HeldAt)
	}
	if upd.ClearHold {
		set = append(set, "hold_reason = NULL", "held_at = NULL")
	}
	if upd.ClearPayoutError {
		set = append(set, "payout_error_message = NULL")
	}
	if p := upd.Payout; p != nil {
		add("payout_amount", p.Amount)
		add("payout_bank", p.Bank)
		add("payout_account", p.MaskedAccount)
		add("payout_holder", p.Holder)
		add("payout_transaction_id", p.TransactionID)
		add("payout_at", p.At)
	}
	if rf := upd.Refund; rf != nil {
		add("refund_amount", rf.Amount)
		add("refund_reason", rf.Reason)
		add("refunded_at", rf.At)
		add("refund_reconciliation_required", rf.ReconciliationRequired)
		if rf.Error != "" {
			add("refund_error", rf.Error)
		}
	}

	return set, args
}
