// Package payout - переводы ревьюерам и проверка банковских счетов.
package payout

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/ignatzorin/amhang-backend/internal/models"
)

// TransferRequest - перевод вознаграждения по одному escrow.
type TransferRequest struct {
	EscrowID uuid.UUID
	// Attempt входит в ключ идемпотентности: повтор той же попытки не переведёт деньги дважды.
	Attempt int
	Amount  int64
	Account models.BankAccount
	Memo    string
}

// IdempotencyKey - ключ, по которому банк отбрасывает дубликаты.
func (r TransferRequest) IdempotencyKey() string {
	return r.EscrowID.String() + ":" + strconv.Itoa(r.Attempt)
}

// TransferResult - итог перевода.
type TransferResult struct {
	Success       bool
	TransactionID string
	ErrorMessage  string
	// Unknown - банк не ответил ни на перевод, ни на запрос статуса.
	// Перевод мог пройти, повторять его можно только с тем же ключом.
	Unknown bool
}

// VerifyResult - итог проверки счёта.
type VerifyResult struct {
	Verified     bool
	ErrorMessage string
}

// Provider - банк или его имитация.
type Provider interface {
	Transfer(ctx context.Context, req TransferRequest) TransferResult
	VerifyAccount(ctx context.Context, account models.BankAccount) VerifyResult
}

// MaskAccountNumber оставляет видимыми последние 4 символа.
func MaskAccountNumber(accountNumber string) string {
	runes := []rune(accountNumber)
	if len(runes) < 4 {
		return "****"
	}
	return strings.Repeat("*", len(runes)-4) + string(runes[len(runes)-4:])
}

// Сообщения банка, которые показываем ревьюеру.
const (
	MsgHolderMismatch  = "예금주명이 일치하지 않습니다."
	MsgAccountNotFound = "해당 계좌를 찾을 수 없습니다."
	MsgBankMaintenance = "은행 점검 시간입니다. 잠시 후 다시 시도해주세요."
	MsgAccountClosed   = "계좌가 해지되었거나 거래정지 상태입니다."
	MsgBankUnavailable = "은행 시스템에 연결할 수 없습니다."
)

var transferFailureMessages = []string{
	MsgHolderMismatch,
	MsgAccountNotFound,
	MsgBankMaintenance,
	MsgAccountClosed,
}
