package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/amhang-backend/internal/logger"
	"github.com/ignatzorin/amhang-backend/internal/metrics"
	"github.com/ignatzorin/amhang-backend/internal/models"
	"github.com/ignatzorin/amhang-backend/internal/payout"
	"github.com/ignatzorin/amhang-backend/internal/pkg/apperror"
	"github.com/ignatzorin/amhang-backend/internal/repository"
	"github.com/ignatzorin/amhang-backend/internal/traces"
	"github.com/ignatzorin/amhang-backend/internal/validation"
)

const (
	settlementBatchSize = 500
	payoutMemo          = "암행어사 정산"

	msgBankAccountMissing   = "정산 계좌가 등록되지 않았습니다."
	msgReverificationNeeded = "계좌 재인증이 필요합니다."
	msgPayoutUnconfirmed    = "송금 결과를 은행에 확인하고 있습니다."
)

// PayoutProfileRepository - банковские реквизиты ревьюеров.
type PayoutProfileRepository interface {
	GetPayoutProfile(ctx context.Context, userID uuid.UUID) (*models.PayoutProfile, error)
	MarkPayoutSucceeded(ctx context.Context, userID uuid.UUID, at time.Time) error
	MarkPayoutFailed(ctx context.Context, userID uuid.UUID, failedCount int, status string) error
	UpdateBankAccount(ctx context.Context, userID uuid.UUID, account models.BankAccount, at time.Time) error
	MarkVerificationFailed(ctx context.Context, userID uuid.UUID) error
}

// SettlementResult - итог прогона авто-выплат.
type SettlementResult struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// payoutOutcome - чем закончилась выплата по одному escrow.
type payoutOutcome struct {
	Status        string
	HoldReason    string
	TransactionID string
	Amount        int64
	RetryCount    int
	ErrorMessage  string
}

func (o payoutOutcome) succeeded() bool { return o.Status == models.EscrowStatusReleased }

// SettlementReceipt - ответ на ручную выплату.
type SettlementReceipt struct {
	EscrowID      uuid.UUID `json:"escrow_id"`
	TransactionID string    `json:"transaction_id"`
	Amount        int64     `json:"amount"`
	PaidAt        time.Time `json:"paid_at"`
}

// BankVerification - ответ на успешную проверку счёта.
type BankVerification struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountHolder string `json:"account_holder"`
	Requeued      int    `json:"requeued"`
}

// SettlementService выплачивает вознаграждение ревьюерам из escrow.
type SettlementService struct {
	ledger   *EscrowLedger
	users    PayoutProfileRepository
	payouts  payout.Provider
	notifier Notifier
	now      func() time.Time
	log      *logrus.Entry
}

// NewSettlementService создаёт сервис выплат.
func NewSettlementService(ledger *EscrowLedger, users PayoutProfileRepository, payouts payout.Provider, notifier Notifier) *SettlementService {
	return &SettlementService{
		ledger:   ledger,
		users:    users,
		payouts:  payouts,
		notifier: notifier,
		now:      time.Now,
		log:      logger.Component("settlement"),
	}
}

// ProcessAutoSettlement выплачивает все escrow, у которых наступил срок авто-выплаты.
// Ошибка одного escrow не останавливает остальные.
func (s *SettlementService) ProcessAutoSettlement(ctx context.Context) (SettlementResult, error) {
	ctx, span := traces.StartSpan(ctx, "settlement.auto", traces.Job("settlement"))
	defer span.End()

	var result SettlementResult
	due, err := s.ledger.DueForRelease(ctx, settlementBatchSize)
	if err != nil {
		traces.RecordError(span, err)
		return result, fmt.Errorf("settlement: выборка escrow %w", err)
	}

	for i := range due {
		escrow := &due[i]
		log := s.log.WithField("escrow_id", escrow.ID)

		claimed, err := s.ledger.Claim(ctx, escrow.ID)
		if err != nil {
			log.WithError(err).Error("settlement: не удалось забрать escrow")
			metrics.SettlementEscrowsTotal.WithLabelValues("error").Inc()
			result.Failed++
			continue
		}
		if !claimed {
			// Забрал другой инстанс или ручная выплата
			metrics.SettlementEscrowsTotal.WithLabelValues("skipped").Inc()
			continue
		}

		result.Processed++
		outcome, err := s.payoutClaimed(ctx, escrow)
		if err != nil {
			log.WithError(err).Error("settlement: ошибка выплаты")
			metrics.SettlementEscrowsTotal.WithLabelValues("error").Inc()
			result.Failed++
			continue
		}
		if outcome.succeeded() {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	s.log.WithFields(logrus.Fields{
		"selected":  len(due),
		"processed": result.Processed,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	}).Info("settlement: прогон завершён")
	return result, nil
}

// SettleEscrow - ручная выплата одного escrow по тем же правилам, что и автоматическая.
func (s *SettlementService) SettleEscrow(ctx context.Context, escrowID uuid.UUID) (*SettlementReceipt, error) {
	ctx, span := traces.StartSpan(ctx, "settlement.manual", traces.EscrowID(escrowID.String()))
	defer span.End()

	escrow, err := s.ledger.Get(ctx, escrowID)
	if err != nil {
		if errors.Is(err, repository.ErrEscrowNotFound) {
			return nil, apperror.ErrEscrowNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "에스크로 조회에 실패했습니다.")
	}
	if escrow.Status == models.EscrowStatusReleased {
		return nil, apperror.ErrAlreadySettled
	}

	claimed, err := s.ledger.Claim(ctx, escrowID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "정산 처리에 실패했습니다.")
	}
	if !claimed {
		return nil, apperror.ErrSettlementInProgress.WithDetails(map[string]any{"status": escrow.Status})
	}

	outcome, err := s.payoutClaimed(ctx, escrow)
	if err != nil {
		traces.RecordError(span, err)
		return nil, apperror.ErrSettlementFailed.WithCause(err).WithGuidance(apperror.ActionRetry, "잠시 후 다시 시도해주세요.")
	}

	switch {
	case outcome.succeeded():
		return &SettlementReceipt{
			EscrowID:      escrowID,
			TransactionID: outcome.TransactionID,
			Amount:        outcome.Amount,
			PaidAt:        s.now(),
		}, nil
	case outcome.HoldReason == models.HoldReasonBankAccountMissing:
		return nil, apperror.ErrSettlementFailed.
			WithGuidance(apperror.ActionVerifyBank, "설정 > 정산 계좌에서 계좌를 등록해주세요.").
			WithDetails(map[string]any{"reason": msgBankAccountMissing})
	case outcome.HoldReason == models.HoldReasonPayoutUnconfirmed:
		return nil, apperror.ErrSettlementFailed.
			WithGuidance(apperror.ActionContactSupport, msgPayoutUnconfirmed, "확인이 끝나면 정산이 완료됩니다.").
			WithDetails(map[string]any{"reason": msgPayoutUnconfirmed})
	case outcome.HoldReason == models.HoldReasonBankVerificationRequired:
		return nil, apperror.ErrBankVerificationRequired.
			WithGuidance(apperror.ActionVerifyBank,
				"계좌 정보 오류로 정산이 실패했습니다.",
				"새 계좌를 등록하거나 기존 계좌를 재인증해주세요.",
			).
			WithDetails(map[string]any{"retryCount": outcome.RetryCount, "maxRetryCount": models.MaxPayoutRetryCount})
	default:
		return nil, apperror.ErrSettlementFailed.
			WithGuidance(apperror.ActionRetry,
				outcome.ErrorMessage,
				fmt.Sprintf("%d회 재시도 가능합니다.", models.MaxPayoutRetryCount-outcome.RetryCount),
			).
			WithDetails(map[string]any{"retryCount": outcome.RetryCount, "maxRetryCount": models.MaxPayoutRetryCount})
	}
}

// RetrySettlement ставит удержанную выплату ревьюера обратно в очередь.
func (s *SettlementService) RetrySettlement(ctx context.Context, escrowID, reviewerID uuid.UUID) (*models.Escrow, error) {
	escrow, err := s.ownedEscrow(ctx, escrowID, reviewerID)
	if err != nil {
		return nil, err
	}
	if escrow.Status == models.EscrowStatusReleased {
		return nil, apperror.ErrAlreadySettled
	}
	if escrow.PayoutRetryCount >= models.MaxPayoutRetryCount {
		return nil, apperror.ErrBankVerificationRequired.WithGuidance(apperror.ActionVerifyBank, "설정 > 정산 계좌에서 계좌를 재인증해주세요.")
	}

	now := s.now()
	requeue := models.EscrowUpdate{
		AutoReleaseAt:       &now,
		AutoReleaseExecuted: boolPtr(false),
		ClearPayoutError:    true,
	}

	var ok bool
	switch {
	case escrow.Status == models.EscrowStatusHold && escrow.HoldReason != nil && *escrow.HoldReason == models.HoldReasonBankAccountMissing:
		requeue.ClearHold = true
		ok, err = s.ledger.Transition(ctx, escrowID, models.EscrowStatusHold, models.EscrowStatusPaid, requeue)
	case escrow.Status == models.EscrowStatusPaid:
		ok, err = s.ledger.Transition(ctx, escrowID, models.EscrowStatusPaid, models.EscrowStatusPaid, requeue)
	case escrow.Status == models.EscrowStatusReleasing:
		return nil, apperror.ErrSettlementInProgress
	default:
		return nil, apperror.New(apperror.ErrCodeConflict, "현재 상태에서는 정산을 재시도할 수 없습니다.").
			WithGuidance(apperror.ActionContactSupport, "고객센터로 문의해주세요.")
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "정산 재시도 요청에 실패했습니다.")
	}
	if !ok {
		return nil, apperror.ErrSettlementInProgress
	}

	s.log.WithFields(logrus.Fields{"escrow_id": escrowID, "reviewer_id": reviewerID}).Info("settlement: выплата снова в очереди")
	return s.ledger.Get(ctx, escrowID)
}

// VerifyBankAccount проверяет счёт в банке, сохраняет его и возвращает в очередь удержанные выплаты.
func (s *SettlementService) VerifyBankAccount(ctx context.Context, reviewerID uuid.UUID, account models.BankAccount) (*BankVerification, error) {
	account = models.BankAccount{
		BankName:      strings.TrimSpace(account.BankName),
		AccountNumber: strings.TrimSpace(account.AccountNumber),
		AccountHolder: strings.TrimSpace(account.AccountHolder),
	}
	if account.BankName == "" || account.AccountNumber == "" || account.AccountHolder == "" {
		return nil, apperror.ErrInvalidBankInfo
	}
	if err := validation.ValidateBankAccount(account.BankName, account.AccountNumber, account.AccountHolder); err != nil {
		return nil, apperror.ErrInvalidBankInfo.WithDetails(map[string]any{"reason": err.Error()})
	}

	log := s.log.WithField("reviewer_id", reviewerID)

	verified := s.payouts.VerifyAccount(ctx, account)
	if !verified.Verified {
		if err := s.users.MarkVerificationFailed(ctx, reviewerID); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return nil, apperror.New(apperror.ErrCodeNotFound, "사용자를 찾을 수 없습니다.")
			}
			log.WithError(err).Error("settlement: не удалось сохранить неудачную проверку")
		}
		return nil, apperror.ErrBankVerificationFailed.WithGuidance(apperror.ActionRetry,
			verified.ErrorMessage,
			"계좌 정보를 다시 확인해주세요.",
		)
	}

	if err := s.users.UpdateBankAccount(ctx, reviewerID, account, s.now()); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.New(apperror.ErrCodeNotFound, "사용자를 찾을 수 없습니다.")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "계좌 정보 저장에 실패했습니다.")
	}

	requeued, err := s.ledger.RearmHeldPayouts(ctx, reviewerID)
	if err != nil {
		// Счёт уже сохранён; удержанные выплаты переставит следующая проверка
		log.WithError(err).Error("settlement: не удалось вернуть удержанные выплаты в очередь")
	}

	log.WithField("requeued", requeued).Info("settlement: счёт подтверждён")
	return &BankVerification{
		BankName:      account.BankName,
		AccountNumber: payout.MaskAccountNumber(account.AccountNumber),
		AccountHolder: account.AccountHolder,
		Requeued:      requeued,
	}, nil
}

// payoutClaimed выплачивает escrow, уже переведённый в releasing.
// Ошибка означает сбой хранилища; отказ банка - это outcome, а не ошибка.
func (s *SettlementService) payoutClaimed(ctx context.Context, escrow *models.Escrow) (payoutOutcome, error) {
	log := s.log.WithField("escrow_id", escrow.ID)

	var profile *models.PayoutProfile
	if escrow.ReviewerID != nil {
		p, err := s.users.GetPayoutProfile(ctx, *escrow.ReviewerID)
		switch {
		case err == nil:
			profile = p
		case errors.Is(err, repository.ErrUserNotFound):
		default:
			s.unclaim(ctx, escrow.ID, log)
			return payoutOutcome{}, fmt.Errorf("settlement: профиль ревьюера %w", err)
		}
	}

	if !profile.HasBankAccount() {
		if _, err := s.ledger.Hold(ctx, escrow.ID, models.EscrowStatusReleasing, models.HoldReasonBankAccountMissing, msgBankAccountMissing); err != nil {
			return payoutOutcome{}, err
		}
		metrics.SettlementEscrowsTotal.WithLabelValues("held").Inc()
		log.Warn("settlement: нет счёта ревьюера, выплата удержана")
		if escrow.ReviewerID != nil {
			s.notify(ctx, *escrow.ReviewerID, models.NotificationSettlementFailed,
				"정산 계좌를 등록해주세요",
				"정산 계좌가 등록되지 않아 정산이 보류되었습니다.",
				map[string]any{"escrowId": escrow.ID}, log)
		}
		return payoutOutcome{
			Status:       models.EscrowStatusHold,
			HoldReason:   models.HoldReasonBankAccountMissing,
			ErrorMessage: msgBankAccountMissing,
		}, nil
	}

	if profile.NeedsReverification() {
		if _, err := s.ledger.Hold(ctx, escrow.ID, models.EscrowStatusReleasing, models.HoldReasonBankVerificationRequired, msgReverificationNeeded); err != nil {
			return payoutOutcome{}, err
		}
		metrics.SettlementEscrowsTotal.WithLabelValues("held").Inc()
		log.WithField("failed_count", profile.BankVerificationFailedCount).Warn("settlement: нужна повторная проверка счёта")
		return payoutOutcome{
			Status:       models.EscrowStatusHold,
			HoldReason:   models.HoldReasonBankVerificationRequired,
			RetryCount:   escrow.PayoutRetryCount,
			ErrorMessage: msgReverificationNeeded,
		}, nil
	}

	account := models.BankAccount{
		BankName:      *profile.BankName,
		AccountNumber: *profile.BankAccountNumber,
		AccountHolder: *profile.BankAccountHolder,
	}
	transfer := s.payouts.Transfer(ctx, payout.TransferRequest{
		EscrowID: escrow.ID,
		Attempt:  escrow.PayoutRetryCount + 1,
		Amount:   escrow.ReviewerFee,
		Account:  account,
		Memo:     payoutMemo,
	})
	switch {
	case transfer.Success:
		return s.completePayout(ctx, escrow, profile, account, transfer.TransactionID, log)
	case transfer.Unknown:
		return s.holdUnconfirmed(ctx, escrow, log)
	}
	return s.failPayout(ctx, escrow, profile, transfer.ErrorMessage, log)
}

// holdUnconfirmed удерживает escrow, если банк не подтвердил ни успех, ни отказ.
// Счётчик попыток не растёт: следующая попытка пойдёт с тем же ключом идемпотентности.
func (s *SettlementService) holdUnconfirmed(ctx context.Context, escrow *models.Escrow, log *logrus.Entry) (payoutOutcome, error) {
	if _, err := s.ledger.Hold(ctx, escrow.ID, models.EscrowStatusReleasing, models.HoldReasonPayoutUnconfirmed, msgPayoutUnconfirmed); err != nil {
		return payoutOutcome{}, err
	}
	metrics.SettlementEscrowsTotal.WithLabelValues("held").Inc()
	log.WithFields(logrus.Fields{
		"critical":        true,
		"attempt":         escrow.PayoutRetryCount + 1,
		"amount":          escrow.ReviewerFee,
		"idempotency_key": payout.TransferRequest{EscrowID: escrow.ID, Attempt: escrow.PayoutRetryCount + 1}.IdempotencyKey(),
	}).Error("settlement: исход перевода неизвестен, выплата удержана до сверки")
	return payoutOutcome{
		Status:       models.EscrowStatusHold,
		HoldReason:   models.HoldReasonPayoutUnconfirmed,
		RetryCount:   escrow.PayoutRetryCount,
		ErrorMessage: msgPayoutUnconfirmed,
	}, nil
}

func (s *SettlementService) completePayout(ctx context.Context, escrow *models.Escrow, profile *models.PayoutProfile, account models.BankAccount, txID string, log *logrus.Entry) (payoutOutcome, error) {
	now := s.now()
	ok, err := s.ledger.Release(ctx, escrow.ID, models.PayoutRecord{
		Amount:        escrow.ReviewerFee,
		Bank:          account.BankName,
		MaskedAccount: payout.MaskAccountNumber(account.AccountNumber),
		Holder:        account.AccountHolder,
		TransactionID: txID,
		At:            now,
	})
	if err != nil || !ok {
		// Деньги ушли, а escrow не закрылся: без ручной сверки повторять нельзя
		log.WithError(err).WithFields(logrus.Fields{
			"critical":              true,
			"payout_transaction_id": txID,
		}).Error("settlement: перевод выполнен, но escrow не переведён в released")
		if err == nil {
			err = fmt.Errorf("settlement: escrow %s не в статусе releasing", escrow.ID)
		}
		return payoutOutcome{}, err
	}

	if err := s.users.MarkPayoutSucceeded(ctx, profile.UserID, now); err != nil {
		log.WithError(err).Warn("settlement: не удалось обновить статус счёта")
	}
	metrics.SettlementEscrowsTotal.WithLabelValues("released").Inc()

	s.notify(ctx, profile.UserID, models.NotificationSettlementComplete,
		"정산이 완료되었습니다",
		fmt.Sprintf("%s원이 정산되었습니다.", formatWon(escrow.ReviewerFee)),
		map[string]any{"escrowId": escrow.ID, "amount": escrow.ReviewerFee}, log)

	log.WithFields(logrus.Fields{"amount": escrow.ReviewerFee, "transaction_id": txID}).Info("settlement: выплата выполнена")
	return payoutOutcome{
		Status:        models.EscrowStatusReleased,
		TransactionID: txID,
		Amount:        escrow.ReviewerFee,
	}, nil
}

func (s *SettlementService) failPayout(ctx context.Context, escrow *models.Escrow, profile *models.PayoutProfile, message string, log *logrus.Entry) (payoutOutcome, error) {
	retry := escrow.PayoutRetryCount + 1
	exhausted := retry >= models.MaxPayoutRetryCount

	outcome := payoutOutcome{RetryCount: retry, ErrorMessage: message}
	var err error
	if exhausted {
		_, err = s.ledger.HoldAfterRetries(ctx, escrow.ID, retry, message)
		outcome.Status = models.EscrowStatusHold
		outcome.HoldReason = models.HoldReasonBankVerificationRequired
	} else {
		_, err = s.ledger.ReturnForRetry(ctx, escrow.ID, retry, message)
		outcome.Status = models.EscrowStatusPaid
	}
	if err != nil {
		return payoutOutcome{}, err
	}

	status := models.BankVerificationPending
	if exhausted {
		status = models.BankVerificationRequired
	}
	if err := s.users.MarkPayoutFailed(ctx, profile.UserID, retry, status); err != nil {
		log.WithError(err).Warn("settlement: не удалось обновить счётчик неудач")
	}

	if exhausted {
		metrics.SettlementEscrowsTotal.WithLabelValues("held").Inc()
		s.notify(ctx, profile.UserID, models.NotificationSettlementFailed,
			"정산 계좌 재인증이 필요합니다",
			fmt.Sprintf("정산 실패 %d회로 계좌 재인증이 필요합니다.", retry),
			map[string]any{"escrowId": escrow.ID, "retryCount": retry}, log)
	} else {
		metrics.SettlementEscrowsTotal.WithLabelValues("failed").Inc()
	}

	log.WithFields(logrus.Fields{"retry": retry, "error_message": message}).Warn("settlement: перевод не прошёл")
	return outcome, nil
}

// SettlementStats - сводка по выплатам ревьюера.
type SettlementStats struct {
	TotalEarnings   int64 `json:"total_earnings"`
	PendingAmount   int64 `json:"pending_amount"`
	ProcessingCount int   `json:"processing_count"`
	FailedCount     int   `json:"failed_count"`
}

// SettlementList - выплаты ревьюера и сводка по ним.
type SettlementList struct {
	Settlements []models.Escrow `json:"settlements"`
	Stats       SettlementStats `json:"stats"`
}

// SettlementEvent - шаг в истории выплаты.
type SettlementEvent struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// SettlementDetail - выплата с историей.
type SettlementDetail struct {
	Settlement *models.Escrow    `json:"settlement"`
	Timeline   []SettlementEvent `json:"timeline"`
}

// ListSettlements возвращает выплаты ревьюера. status == "" - все, кроме возвращённых бизнесу.
func (s *SettlementService) ListSettlements(ctx context.Context, reviewerID uuid.UUID, status string) (*SettlementList, error) {
	escrows, err := s.ledger.ForReviewer(ctx, reviewerID, status)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "정산 내역 조회에 실패했습니다.")
	}

	list := &SettlementList{Settlements: make([]models.Escrow, 0, len(escrows))}
	for _, escrow := range escrows {
		if escrow.Status == models.EscrowStatusRefunded {
			continue
		}
		list.Settlements = append(list.Settlements, escrow)

		switch escrow.Status {
		case models.EscrowStatusReleased:
			list.Stats.TotalEarnings += escrow.ReviewerFee
		case models.EscrowStatusPaid, models.EscrowStatusHold:
			list.Stats.PendingAmount += escrow.ReviewerFee
		case models.EscrowStatusReleasing:
			list.Stats.ProcessingCount++
		}
		if escrow.Status != models.EscrowStatusReleased && escrow.PayoutRetryCount > 0 {
			list.Stats.FailedCount++
		}
	}
	return list, nil
}

// GetSettlement возвращает выплату ревьюера с историей.
func (s *SettlementService) GetSettlement(ctx context.Context, escrowID, reviewerID uuid.UUID) (*SettlementDetail, error) {
	escrow, err := s.ownedEscrow(ctx, escrowID, reviewerID)
	if err != nil {
		return nil, err
	}
	return &SettlementDetail{Settlement: escrow, Timeline: settlementTimeline(escrow)}, nil
}

func settlementTimeline(e *models.Escrow) []SettlementEvent {
	var events []SettlementEvent
	add := func(kind, message string, at *time.Time) {
		if at != nil {
			events = append(events, SettlementEvent{Kind: kind, Message: message, At: *at})
		}
	}

	add("paid", "결제가 완료되어 에스크로에 보관되었습니다.", e.PaidAt)
	if e.Status != models.EscrowStatusReleased {
		add("scheduled", "정산 예정일입니다.", e.AutoReleaseAt)
	}
	if e.PayoutRetryCount > 0 && e.PayoutErrorMessage != nil {
		add("failed", fmt.Sprintf("정산 실패 (%d회): %s", e.PayoutRetryCount, *e.PayoutErrorMessage), e.PayoutLastAttemptAt)
	}
	if e.HoldReason != nil {
		add("hold", holdMessage(*e.HoldReason), e.HeldAt)
	}
	if e.PayoutAmount != nil {
		add("released", fmt.Sprintf("%s원이 정산되었습니다.", formatWon(*e.PayoutAmount)), e.PayoutAt)
	}

	slices.SortStableFunc(events, func(a, b SettlementEvent) int { return a.At.Compare(b.At) })
	return events
}

func holdMessage(reason string) string {
	switch reason {
	case models.HoldReasonBankAccountMissing:
		return msgBankAccountMissing
	case models.HoldReasonBankVerificationRequired:
		return msgReverificationNeeded
	case models.HoldReasonDispute:
		return "리뷰 이의제기로 정산이 보류되었습니다."
	case models.HoldReasonPayoutUnconfirmed:
		return msgPayoutUnconfirmed
	default:
		return "정산이 보류되었습니다."
	}
}

// unclaim возвращает escrow из releasing, если выплату не начали.
func (s *SettlementService) unclaim(ctx context.Context, id uuid.UUID, log *logrus.Entry) {
	if _, err := s.ledger.Transition(ctx, id, models.EscrowStatusReleasing, models.EscrowStatusPaid, models.EscrowUpdate{}); err != nil {
		log.WithError(err).Error("settlement: escrow остался в releasing")
	}
}

func (s *SettlementService) ownedEscrow(ctx context.Context, escrowID, reviewerID uuid.UUID) (*models.Escrow, error) {
	escrow, err := s.ledger.Get(ctx, escrowID)
	if err != nil {
		if errors.Is(err, repository.ErrEscrowNotFound) {
			return nil, apperror.ErrSettlementNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "정산 조회에 실패했습니다.")
	}
	if escrow.ReviewerID == nil || *escrow.ReviewerID != reviewerID || escrow.Status == models.EscrowStatusRefunded {
		return nil, apperror.ErrSettlementNotFound
	}
	return escrow, nil
}

func (s *SettlementService) notify(ctx context.Context, userID uuid.UUID, kind, title, body string, data map[string]any, log *logrus.Entry) {
	if res := s.notifier.Notify(ctx, userID, kind, title, body, data); !res.Success {
		log.WithError(res.Error).Warn("settlement: уведомление не отправлено")
	}
}

// formatWon печатает сумму с разделителями тысяч: 1234567 → "1,234,567".
func formatWon(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := fmt.Sprintf("%d", amount)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String()
}
