package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/amhang-backend/internal/logger"
	"github.com/ignatzorin/amhang-backend/internal/models"
)

// EscrowRepository - хранилище escrow с условными переходами статуса.
type EscrowRepository interface {
	Create(ctx context.Context, escrow *models.Escrow) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Escrow, error)
	GetActiveByMission(ctx context.Context, missionID uuid.UUID) (*models.Escrow, error)
	Transition(ctx context.Context, id uuid.UUID, from, to string, upd models.EscrowUpdate) (bool, error)
	TransitionByMission(ctx context.Context, missionID uuid.UUID, from []string, to string, upd models.EscrowUpdate) (int64, error)
	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListDueForRelease(ctx context.Context, now time.Time, limit int) ([]models.Escrow, error)
	ListByReviewer(ctx context.Context, reviewerID uuid.UUID, status string) ([]models.Escrow, error)
}

// EscrowLedger - единственное место, где меняется состояние escrow.
// Любой переход - compare-and-swap по статусу.
type EscrowLedger struct {
	repo EscrowRepository
	now  func() time.Time
	log  *logrus.Entry
}

// NewEscrowLedger создаёт леджер поверх хранилища.
func NewEscrowLedger(repo EscrowRepository) *EscrowLedger {
	return &EscrowLedger{
		repo: repo,
		now:  time.Now,
		log:  logger.Component("escrow"),
	}
}

func (l *EscrowLedger) Create(ctx context.Context, escrow *models.Escrow) error {
	return l.repo.Create(ctx, escrow)
}

func (l *EscrowLedger) Get(ctx context.Context, id uuid.UUID) (*models.Escrow, error) {
	return l.repo.GetByID(ctx, id)
}

func (l *EscrowLedger) ActiveForMission(ctx context.Context, missionID uuid.UUID) (*models.Escrow, error) {
	return l.repo.GetActiveByMission(ctx, missionID)
}

// Transition - переход from → to. false, если escrow уже в другом статусе.
func (l *EscrowLedger) Transition(ctx context.Context, id uuid.UUID, from, to string, upd models.EscrowUpdate) (bool, error) {
	ok, err := l.repo.Transition(ctx, id, from, to, upd)
	if err != nil {
		return false, err
	}
	if !ok {
		l.log.WithFields(logrus.Fields{"escrow_id": id, "from": from, "to": to}).Debug("escrow: переход не применён, статус изменился")
	}
	return ok, nil
}

func (l *EscrowLedger) TransitionByMission(ctx context.Context, missionID uuid.UUID, from []string, to string, upd models.EscrowUpdate) (int64, error) {
	return l.repo.TransitionByMission(ctx, missionID, from, to, upd)
}

// Claim забирает escrow на выплату (paid → releasing). Повторный Claim вернёт false.
func (l *EscrowLedger) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	return l.repo.Claim(ctx, id)
}

// Delete - только как компенсация внутри оплаты миссии.
func (l *EscrowLedger) Delete(ctx context.Context, id uuid.UUID) error {
	return l.repo.Delete(ctx, id)
}

func (l *EscrowLedger) DueForRelease(ctx context.Context, limit int) ([]models.Escrow, error) {
	return l.repo.ListDueForRelease(ctx, l.now(), limit)
}

// ForReviewer - escrow ревьюера, status == "" означает любой статус.
func (l *EscrowLedger) ForReviewer(ctx context.Context, reviewerID uuid.UUID, status string) ([]models.Escrow, error) {
	return l.repo.ListByReviewer(ctx, reviewerID, status)
}

// PaymentKeyFor берёт ключ платежа из escrow, а если его нет - из миссии.
func (l *EscrowLedger) PaymentKeyFor(ctx context.Context, mission *models.Mission) string {
	if escrow, err := l.repo.GetActiveByMission(ctx, mission.ID); err == nil && escrow.TransactionID != "" {
		return escrow.TransactionID
	}
	if mission.TransactionID != nil {
		return *mission.TransactionID
	}
	return ""
}

// Hold удерживает escrow и закрывает авто-выплату.
func (l *EscrowLedger) Hold(ctx context.Context, id uuid.UUID, from, reason, message string) (bool, error) {
	now := l.now()
	upd := models.EscrowUpdate{
		AutoReleaseExecuted: boolPtr(true),
		HoldReason:          &reason,
		HeldAt:              &now,
	}
	if message != "" {
		upd.PayoutErrorMessage = &message
	}
	return l.Transition(ctx, id, from, models.EscrowStatusHold, upd)
}

// Release фиксирует успешную выплату: releasing → released.
func (l *EscrowLedger) Release(ctx context.Context, id uuid.UUID, payout models.PayoutRecord) (bool, error) {
	return l.Transition(ctx, id, models.EscrowStatusReleasing, models.EscrowStatusReleased, models.EscrowUpdate{
		AutoReleaseExecuted: boolPtr(true),
		Payout:              &payout,
		ClearPayoutError:    true,
	})
}

// ReturnForRetry возвращает escrow в очередь после неудачного перевода: releasing → paid.
func (l *EscrowLedger) ReturnForRetry(ctx context.Context, id uuid.UUID, retryCount int, message string) (bool, error) {
	now := l.now()
	return l.Transition(ctx, id, models.EscrowStatusReleasing, models.EscrowStatusPaid, models.EscrowUpdate{
		PayoutRetryCount:    &retryCount,
		PayoutErrorMessage:  &message,
		PayoutLastAttemptAt: &now,
	})
}

// HoldAfterRetries удерживает escrow, исчерпавший попытки перевода.
func (l *EscrowLedger) HoldAfterRetries(ctx context.Context, id uuid.UUID, retryCount int, message string) (bool, error) {
	now := l.now()
	reason := models.HoldReasonBankVerificationRequired
	return l.Transition(ctx, id, models.EscrowStatusReleasing, models.EscrowStatusHold, models.EscrowUpdate{
		AutoReleaseExecuted: boolPtr(true),
		PayoutRetryCount:    &retryCount,
		PayoutErrorMessage:  &message,
		PayoutLastAttemptAt: &now,
		HoldReason:          &reason,
		HeldAt:              &now,
	})
}

// RefundByMission закрывает возвратом все ещё не выплаченные escrow миссии.
func (l *EscrowLedger) RefundByMission(ctx context.Context, missionID uuid.UUID, refund models.RefundRecord) (int64, error) {
	return l.repo.TransitionByMission(ctx, missionID,
		[]string{models.EscrowStatusPending, models.EscrowStatusPaid},
		models.EscrowStatusRefunded,
		models.EscrowUpdate{Refund: &refund},
	)
}

// HoldByMission удерживает оплаченный escrow миссии (спор по отзыву).
func (l *EscrowLedger) HoldByMission(ctx context.Context, missionID uuid.UUID, reason string) (int64, error) {
	now := l.now()
	return l.repo.TransitionByMission(ctx, missionID,
		[]string{models.EscrowStatusPaid},
		models.EscrowStatusHold,
		models.EscrowUpdate{HoldReason: &reason, HeldAt: &now},
	)
}

// AssignReviewer закрепляет получателя выплаты за escrow миссии.
func (l *EscrowLedger) AssignReviewer(ctx context.Context, missionID, reviewerID uuid.UUID) (int64, error) {
	return l.repo.TransitionByMission(ctx, missionID,
		[]string{models.EscrowStatusPending, models.EscrowStatusPaid},
		"",
		models.EscrowUpdate{ReviewerID: &reviewerID},
	)
}

// RearmHeldPayouts возвращает в очередь escrow ревьюера, удержанные из-за проблем с выплатой.
// Удержания по спору не трогает.
func (l *EscrowLedger) RearmHeldPayouts(ctx context.Context, reviewerID uuid.UUID) (int, error) {
	held, err := l.repo.ListByReviewer(ctx, reviewerID, models.EscrowStatusHold)
	if err != nil {
		return 0, fmt.Errorf("escrow ledger: list held %w", err)
	}

	now := l.now()
	rearmed := 0
	for i := range held {
		if !held[i].HeldForPayout() {
			continue
		}
		ok, err := l.Transition(ctx, held[i].ID, models.EscrowStatusHold, models.EscrowStatusPaid, models.EscrowUpdate{
			AutoReleaseAt:       &now,
			AutoReleaseExecuted: boolPtr(false),
			PayoutRetryCount:    intPtr(0),
			ClearHold:           true,
			ClearPayoutError:    true,
		})
		if err != nil {
			return rearmed, fmt.Errorf("escrow ledger: rearm %s %w", held[i].ID, err)
		}
		if ok {
			rearmed++
		}
	}
	return rearmed, nil
}

func boolPtr(v bool) *bool { return &v }

func intPtr(v int) *int { return &v }
