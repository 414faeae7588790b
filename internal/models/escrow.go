package models

import (
	"time"

	"github.com/google/uuid"
)

// Escrow хранит деньги миссии между оплатой и выплатой ревьюеру.
type Escrow struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	MissionID           uuid.UUID  `db:"mission_id" json:"mission_id"`
	BusinessID          uuid.UUID  `db:"business_id" json:"business_id"`
	ReviewerID          *uuid.UUID `db:"reviewer_id" json:"reviewer_id,omitempty"`
	ProductCost         int64      `db:"product_cost" json:"product_cost"`
	ReviewerFee         int64      `db:"reviewer_fee" json:"reviewer_fee"`
	PlatformFee         int64      `db:"platform_fee" json:"platform_fee"`
	TotalAmount         int64      `db:"total_amount" json:"total_amount"`
	Status              string     `db:"status" json:"status"`
	TransactionID       string     `db:"transaction_id" json:"transaction_id"`
	PaymentMethod       *string    `db:"payment_method" json:"payment_method,omitempty"`
	PGProvider          string     `db:"pg_provider" json:"pg_provider"`
	PaidAt              *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	AutoReleaseAt       *time.Time `db:"auto_release_at" json:"auto_release_at,omitempty"`
	AutoReleaseExecuted bool       `db:"auto_release_executed" json:"auto_release_executed"`
	PayoutRetryCount    int        `db:"payout_retry_count" json:"payout_retry_count"`
	PayoutErrorMessage  *string    `db:"payout_error_message" json:"payout_error_message,omitempty"`
	PayoutLastAttemptAt *time.Time `db:"payout_last_attempt_at" json:"payout_last_attempt_at,omitempty"`
	HoldReason          *string    `db:"hold_reason" json:"hold_reason,omitempty"`
	HeldAt              *time.Time `db:"held_at" json:"held_at,omitempty"`

	PayoutAmount        *int64     `db:"payout_amount" json:"payout_amount,omitempty"`
	PayoutBank          *string    `db:"payout_bank" json:"payout_bank,omitempty"`
	PayoutAccount       *string    `db:"payout_account" json:"payout_account,omitempty"`
	PayoutHolder        *string    `db:"payout_holder" json:"payout_holder,omitempty"`
	PayoutTransactionID *string    `db:"payout_transaction_id" json:"payout_transaction_id,omitempty"`
	PayoutAt            *time.Time `db:"payout_at" json:"payout_at,omitempty"`

	RefundAmount                 *int64     `db:"refund_amount" json:"refund_amount,omitempty"`
	RefundReason                 *string    `db:"refund_reason" json:"refund_reason,omitempty"`
	RefundedAt                   *time.Time `db:"refunded_at" json:"refunded_at,omitempty"`
	RefundReconciliationRequired bool       `db:"refund_reconciliation_required" json:"refund_reconciliation_required"`
	RefundError                  *string    `db:"refund_error" json:"refund_error,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// IsTerminal - released и refunded больше не меняются.
func (e *Escrow) IsTerminal() bool {
	return e.Status == EscrowStatusReleased || e.Status == EscrowStatusRefunded
}

// HeldForPayout сообщает, удержан ли escrow из-за проблем с выплатой (а не спора).
func (e *Escrow) HeldForPayout() bool {
	if e.Status != EscrowStatusHold || e.HoldReason == nil {
		return false
	}
	for _, reason := range PayoutHoldReasons {
		if *e.HoldReason == reason {
			return true
		}
	}
	return false
}

// PayoutRecord фиксирует успешный перевод ревьюеру.
type PayoutRecord struct {
	Amount        int64
	Bank          string
	MaskedAccount string
	Holder        string
	TransactionID string
	At            time.Time
}

// RefundRecord фиксирует возврат денег бизнесу.
type RefundRecord struct {
	Amount int64
	Reason string
	At     time.Time
	// ReconciliationRequired - шлюз не подтвердил отмену, нужна сверка вручную.
	ReconciliationRequired bool
	Error                  string
}

// EscrowUpdate - поля, которые меняются вместе со статусом.
// nil означает «не трогать».
type EscrowUpdate struct {
	ReviewerID          *uuid.UUID
	AutoReleaseAt       *time.Time
	AutoReleaseExecuted *bool
	PayoutRetryCount    *int
	PayoutErrorMessage  *string
	PayoutLastAttemptAt *time.Time
	HoldReason          *string
	HeldAt              *time.Time
	Payout              *PayoutRecord
	Refund              *RefundRecord

	// ClearHold обнуляет hold_reason и held_at.
	ClearHold        bool
	ClearPayoutError bool
}

// Apply переносит изменения на escrow. Используется in-memory хранилищем и тестами.
func (u EscrowUpdate) Apply(e *Escrow) {
	if u.ReviewerID != nil {
		id := *u.ReviewerID
		e.ReviewerID = &id
	}
	if u.AutoReleaseAt != nil {
		at := *u.AutoReleaseAt
		e.AutoReleaseAt = &at
	}
	if u.AutoReleaseExecuted != nil {
		e.AutoReleaseExecuted = *u.AutoReleaseExecuted
	}
	if u.PayoutRetryCount != nil {
		e.PayoutRetryCount = *u.PayoutRetryCount
	}
	if u.PayoutErrorMessage != nil {
		msg := *u.PayoutErrorMessage
		e.PayoutErrorMessage = &msg
	}
	if u.PayoutLastAttemptAt != nil {
		at := *u.PayoutLastAttemptAt
		e.PayoutLastAttemptAt = &at
	}
	if u.HoldReason != nil {
		reason := *u.HoldReason
		e.HoldReason = &reason
	}
	if u.HeldAt != nil {
		at := *u.HeldAt
		e.HeldAt = &at
	}
	if u.ClearHold {
		e.HoldReason = nil
		e.HeldAt = nil
	}
	if u.ClearPayoutError {
		e.PayoutErrorMessage = nil
	}
	if p := u.Payout; p != nil {
		amount, bank, account, holder, txID, at := p.Amount, p.Bank, p.MaskedAccount, p.Holder, p.TransactionID, p.At
		e.PayoutAmount = &amount
		e.PayoutBank = &bank
		e.PayoutAccount = &account
		e.PayoutHolder = &holder
		e.PayoutTransactionID = &txID
		e.PayoutAt = &at
	}
	if r := u.Refund; r != nil {
		amount, reason, at := r.Amount, r.Reason, r.At
		e.RefundAmount = &amount
		e.RefundReason = &reason
		e.RefundedAt = &at
		e.RefundReconciliationRequired = r.ReconciliationRequired
		if r.Error != "" {
			msg := r.Error
			e.RefundError = &msg
		}
	}
}
