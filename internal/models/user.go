package models

import (
	"time"

	"github.com/google/uuid"
)

// PayoutProfile - банковские реквизиты ревьюера для выплат.
type PayoutProfile struct {
	UserID                      uuid.UUID  `db:"id" json:"user_id"`
	BankName                    *string    `db:"bank_name" json:"bank_name,omitempty"`
	BankAccountNumber           *string    `db:"bank_account_number" json:"-"`
	BankAccountHolder           *string    `db:"bank_account_holder" json:"bank_account_holder,omitempty"`
	BankVerificationStatus      string     `db:"bank_verification_status" json:"bank_verification_status"`
	BankVerificationFailedCount int        `db:"bank_verification_failed_count" json:"bank_verification_failed_count"`
	BankVerifiedAt              *time.Time `db:"bank_verified_at" json:"bank_verified_at,omitempty"`
	UpdatedAt                   time.Time  `db:"updated_at" json:"updated_at"`
}

// HasBankAccount проверяет, что все реквизиты заполнены.
func (p *PayoutProfile) HasBankAccount() bool {
	return p != nil &&
		p.BankName != nil && *p.BankName != "" &&
		p.BankAccountNumber != nil && *p.BankAccountNumber != "" &&
		p.BankAccountHolder != nil && *p.BankAccountHolder != ""
}

// NeedsReverification - слишком много неудачных переводов подряд.
func (p *PayoutProfile) NeedsReverification() bool {
	return p.BankVerificationFailedCount >= MaxPayoutRetryCount
}

// BankAccount - реквизиты для перевода или проверки.
type BankAccount struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountHolder string `json:"account_holder"`
}
