package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/amhang-backend/internal/models"
	"github.com/ignatzorin/amhang-backend/internal/repository/common"
)

// UserRepository работает с банковскими реквизитами пользователей.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository создаёт новый экземпляр.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetPayoutProfile возвращает реквизиты ревьюера для выплаты.
func (r *UserRepository) GetPayoutProfile(ctx context.Context, userID uuid.UUID) (*models.PayoutProfile, error) {
	var profile models.PayoutProfile
	query := `
		SELECT id, bank_name, bank_account_number, bank_account_holder, bank_verification_status,
		       bank_verification_failed_count, bank_verified_at, updated_at
		FROM users
		WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get payout profile %w", err)
	}
	return &profile, nil
}

// MarkPayoutSucceeded подтверждает счёт после успешного перевода и обнуляет счётчик неудач.
func (r *UserRepository) MarkPayoutSucceeded(ctx context.Context, userID uuid.UUID, at time.Time) error {
	query := `
		UPDATE users
		SET bank_verification_status = $1, bank_verification_failed_count = 0,
		    bank_verified_at = COALESCE(bank_verified_at, $2), updated_at = $2
		WHERE id = $3
	`
	return r.execOne(ctx, "mark payout succeeded", query, models.BankVerificationVerified, at, userID)
}

// MarkPayoutFailed фиксирует неудачный перевод. Счётчик никогда не уменьшается.
func (r *UserRepository) MarkPayoutFailed(ctx context.Context, userID uuid.UUID, failedCount int, status string) error {
	query := `
		UPDATE users
		SET bank_verification_status = $1,
		    bank_verification_failed_count = GREATEST(bank_verification_failed_count, $2),
		    updated_at = NOW()
		WHERE id = $3
	`
	return r.execOne(ctx, "mark payout failed", query, status, failedCount, userID)
}

// UpdateBankAccount сохраняет проверенные реквизиты.
func (r *UserRepository) UpdateBankAccount(ctx context.Context, userID uuid.UUID, account models.BankAccount, at time.Time) error {
	query := `
		UPDATE users
		SET bank_name = $1, bank_account_number = $2, bank_account_holder = $3,
		    bank_verification_status = $4, bank_verification_failed_count = 0,
		    bank_verified_at = $5, updated_at = $5
		WHERE id = $6
	`
	return r.execOne(ctx, "update bank account", query,
		account.BankName, account.AccountNumber, account.AccountHolder,
		models.BankVerificationVerified, at, userID)
}

// MarkVerificationFailed фиксирует неудачную проверку счёта.
func (r *UserRepository) MarkVerificationFailed(ctx context.Context, userID uuid.UUID) error {
	query := `
		UPDATE users
		SET bank_verification_status = $1,
		    bank_verification_failed_count = bank_verification_failed_count + 1,
		    updated_at = NOW()
		WHERE id = $2
	`
	return r.execOne(ctx, "mark verification failed", query, models.BankVerificationFailed, userID)
}

func (r *UserRepository) execOne(ctx context.Context, op, query string, args ...interface{}) error {
	n, err := common.ExecAffected(ctx, r.db, query, args...)
	if err != nil {
		return fmt.Errorf("user repository: %s %w", op, err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
