package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/amhang-backend/internal/logger"
	"github.com/ignatzorin/amhang-backend/internal/metrics"
	"github.com/ignatzorin/amhang-backend/internal/models"
	"github.com/ignatzorin/amhang-backend/internal/payment"
	"github.com/ignatzorin/amhang-backend/internal/pkg/apperror"
	"github.com/ignatzorin/amhang-backend/internal/repository"
	"github.com/ignatzorin/amhang-backend/internal/traces"
	"github.com/ignatzorin/amhang-backend/internal/validation"
)

// Причины автоматической отмены, уходят в шлюз и видны бизнесу в выписке.
const (
	cancelReasonEscrowFailed  = "에스크로 생성 실패로 인한 자동 취소"
	cancelReasonMissionUpdate = "미션 상태 업데이트 실패로 인한 자동 취소"
	cancelReasonSystemError   = "시스템 오류로 인한 자동 취소"
	cancelReasonByBusiness    = "업체 요청에 의한 취소"
)

const pgProviderToss = "toss"

// MissionRepository - хранилище миссий.
type MissionRepository interface {
	Create(ctx context.Context, mission *models.Mission) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Mission, error)
	MarkPaid(ctx context.Context, id uuid.UUID, payment models.MissionPayment) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from []string, to string, at time.Time) (bool, error)
	AssignReviewer(ctx context.Context, id, reviewerID uuid.UUID, at time.Time) (bool, error)
	ListExpiredRecruiting(ctx context.Context, now time.Time, limit int) ([]models.Mission, error)
}

// PaymentGateway - операции платёжного шлюза, нужные сервисам.
type PaymentGateway interface {
	Capture(ctx context.Context, paymentKey, orderID string, amount int64) (*payment.Payment, error)
	Cancel(ctx context.Context, paymentKey, reason string, opts payment.CancelOptions) (*payment.CancelResult, error)
	Query(ctx context.Context, paymentKey string) (*payment.Payment, error)
}

// PaymentRollbacker отменяет списанный платёж при сбое последующих шагов.
type PaymentRollbacker interface {
	Rollback(ctx context.Context, paymentKey, reason string, rc payment.RollbackContext) payment.RollbackResult
}

// PaymentReceipt - ответ на успешную оплату миссии.
type PaymentReceipt struct {
	MissionID           uuid.UUID `json:"mission_id"`
	EscrowID            uuid.UUID `json:"escrow_id"`
	OrderID             string    `json:"order_id"`
	TransactionID       string    `json:"transaction_id"`
	Amount              int64     `json:"amount"`
	Status              string    `json:"status"`
	PaidAt              time.Time `json:"paid_at"`
	RecruitmentDeadline time.Time `json:"recruitment_deadline"`
}

// MissionPaymentService проводит оплату и отмену миссии с компенсацией на каждом шаге.
type MissionPaymentService struct {
	missions MissionRepository
	ledger   *EscrowLedger
	gateway  PaymentGateway
	rollback PaymentRollbacker
	notifier Notifier
	now      func() time.Time
	log      *logrus.Entry
}

// NewMissionPaymentService создаёт сервис оплаты миссий.
func NewMissionPaymentService(missions MissionRepository, ledger *EscrowLedger, gateway PaymentGateway, rollback PaymentRollbacker, notifier Notifier) *MissionPaymentService {
	return &MissionPaymentService{
		missions: missions,
		ledger:   ledger,
		gateway:  gateway,
		rollback: rollback,
		notifier: notifier,
		now:      time.Now,
		log:      logger.Component("mission_payment"),
	}
}

// PayMission списывает деньги за миссию, создаёт escrow и открывает набор ревьюеров.
// После списания любая ошибка отменяет платёж.
func (s *MissionPaymentService) PayMission(ctx context.Context, missionID, userID uuid.UUID, paymentKey string) (receipt *PaymentReceipt, err error) {
	ctx, span := traces.StartSpan(ctx, "mission.pay", traces.MissionID(missionID.String()))
	txLog := newTransactionLog(missionID, userID, s.now)
	defer func() {
		traces.RecordError(span, err)
		span.End()
		s.finish(txLog, err)
	}()

	mission, err := s.loadOwnedMission(ctx, missionID, userID)
	if err != nil {
		return nil, err
	}
	if mission.Status != models.MissionStatusPendingPayment {
		return nil, apperror.ErrPaymentAlreadyProcessed
	}
	paymentKey = strings.TrimSpace(paymentKey)
	if paymentKey == "" {
		return nil, apperror.ErrPaymentKeyRequired
	}
	if err := validation.ValidatePaymentKey(paymentKey); err != nil {
		return nil, apperror.New(apperror.ErrCodePaymentFailed, err.Error())
	}

	orderID := fmt.Sprintf("mission_%s_%d", missionID, s.now().UnixMilli())
	txLog.OrderID = orderID
	span.SetAttributes(traces.OrderID(orderID), traces.Amount(mission.TotalAmount))

	captured, err := s.capture(ctx, paymentKey, orderID, mission.TotalAmount)
	if err != nil {
		txLog.Add("capture", false, map[string]any{"error": err.Error(), "code": payment.ErrorCode(err)})
		return nil, apperror.ErrPaymentFailed.
			WithCause(err).
			WithGuidance(apperror.ActionRetry, "카드 정보를 확인한 후 다시 시도해주세요.", "문제가 계속되면 다른 결제 수단을 이용해주세요.").
			WithDetails(map[string]any{"reason": gatewayMessage(err), "refunded": false, "refundStatus": "not_applicable"})
	}
	txLog.Add("capture", true, map[string]any{"amount": captured.TotalAmount, "method": captured.Method})

	rc := payment.RollbackContext{
		MissionID: missionID.String(),
		UserID:    userID.String(),
		OrderID:   orderID,
		Amount:    mission.TotalAmount,
	}

	// После списания паника не должна оставить деньги без escrow
	var escrowID *uuid.UUID
	defer func() {
		if r := recover(); r != nil {
			txLog.Add("unexpected_error", false, map[string]any{"panic": fmt.Sprint(r)})
			rc.Step = "unexpected_error"
			receipt = nil
			err = s.compensate(ctx, txLog, escrowID, paymentKey, cancelReasonSystemError, rc)
		}
	}()

	paidAt := s.now()
	escrow := &models.Escrow{
		MissionID:     mission.ID,
		BusinessID:    mission.BusinessID,
		ReviewerID:    mission.AssignedReviewerID,
		ProductCost:   mission.ProductCost,
		ReviewerFee:   mission.ReviewerFee,
		PlatformFee:   mission.PlatformFee,
		TotalAmount:   mission.TotalAmount,
		Status:        models.EscrowStatusPaid,
		TransactionID: paymentKey,
		PGProvider:    pgProviderToss,
		PaidAt:        &paidAt,
	}
	if captured.Method != "" {
		method := captured.Method
		escrow.PaymentMethod = &method
	}
	if err := s.ledger.Create(ctx, escrow); err != nil {
		txLog.Add("create_escrow", false, map[string]any{"error": err.Error()})
		rc.Step = "create_escrow"
		return nil, s.compensate(ctx, txLog, nil, paymentKey, cancelReasonEscrowFailed, rc)
	}
	createdID := escrow.ID
	escrowID = &createdID
	txLog.Add("create_escrow", true, map[string]any{"escrow_id": createdID})

	deadline := paidAt.Add(models.RecruitmentPeriod)
	ok, err := s.missions.MarkPaid(ctx, missionID, models.MissionPayment{
		TransactionID:       paymentKey,
		PaidAt:              paidAt,
		RecruitmentDeadline: deadline,
	})
	if err != nil || !ok {
		details := map[string]any{"lost_race": err == nil}
		if err != nil {
			details["error"] = err.Error()
		}
		txLog.Add("update_mission", false, details)
		rc.Step = "update_mission"
		return nil, s.compensate(ctx, txLog, escrowID, paymentKey, cancelReasonMissionUpdate, rc)
	}
	txLog.Add("update_mission", true, map[string]any{"status": models.MissionStatusRecruiting})

	return &PaymentReceipt{
		MissionID:           missionID,
		EscrowID:            createdID,
		OrderID:             orderID,
		TransactionID:       paymentKey,
		Amount:              mission.TotalAmount,
		Status:              models.MissionStatusRecruiting,
		PaidAt:              paidAt,
		RecruitmentDeadline: deadline,
	}, nil
}

// CancelMission отменяет миссию по запросу бизнеса и возвращает деньги, если оплата была.
func (s *MissionPaymentService) CancelMission(ctx context.Context, missionID, userID uuid.UUID) error {
	mission, err := s.loadOwnedMission(ctx, missionID, userID)
	if err != nil {
		return err
	}
	if !containsStatus(models.CancellableMissionStatuses, mission.Status) {
		return apperror.ErrMissionCannotCancel.WithGuidance(apperror.ActionContactSupport, "리뷰어가 배정된 미션은 취소할 수 없습니다.")
	}

	log := s.log.WithFields(logrus.Fields{"mission_id": missionID, "user_id": userID})
	now := s.now()

	if mission.IsPaid() {
		paymentKey := s.ledger.PaymentKeyFor(ctx, mission)
		if paymentKey != "" {
			res, err := s.gateway.Cancel(ctx, paymentKey, cancelReasonByBusiness, payment.CancelOptions{})
			if err != nil {
				log.WithError(err).Error("cancel mission: возврат не прошёл, состояние не меняем")
				return apperror.ErrRefundFailed.WithCause(err).WithGuidance(apperror.ActionContactSupport, "고객센터로 문의해주세요.")
			}
			log.WithField("already_canceled", res.AlreadyCanceled).Info("cancel mission: платёж отменён")
		}

		if _, err := s.ledger.RefundByMission(ctx, missionID, models.RefundRecord{
			Amount: mission.TotalAmount,
			Reason: cancelReasonByBusiness,
			At:     now,
		}); err != nil {
			return apperror.Wrap(err, apperror.ErrCodeInternal, "에스크로 환불 처리에 실패했습니다.")
		}
	}

	ok, err := s.missions.UpdateStatus(ctx, missionID, models.CancellableMissionStatuses, models.MissionStatusCancelled, now)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "미션 취소에 실패했습니다.")
	}
	if !ok {
		return apperror.ErrMissionCannotCancel
	}

	if res := s.notifier.Notify(ctx, userID, models.NotificationMissionCancelled,
		"미션이 취소되었습니다",
		"미션이 취소되었습니다. 환불은 영업일 기준 3-5일 내 처리됩니다.",
		map[string]any{"missionId": missionID},
	); !res.Success {
		log.WithError(res.Error).Warn("cancel mission: уведомление не отправлено")
	}

	log.Info("cancel mission: миссия отменена")
	return nil
}

func (s *MissionPaymentService) loadOwnedMission(ctx context.Context, missionID, userID uuid.UUID) (*models.Mission, error) {
	mission, err := s.missions.GetByID(ctx, missionID)
	if err != nil {
		if errors.Is(err, repository.ErrMissionNotFound) {
			return nil, apperror.ErrMissionNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "미션 조회에 실패했습니다.")
	}
	// Чужая миссия неотличима от несуществующей
	if mission.BusinessOwnerID != userID {
		return nil, apperror.ErrMissionNotFound
	}
	return mission, nil
}

// capture списывает деньги. Если ответ потерян в сети, спрашивает шлюз о судьбе платежа.
func (s *MissionPaymentService) capture(ctx context.Context, paymentKey, orderID string, amount int64) (*payment.Payment, error) {
	captured, err := s.gateway.Capture(ctx, paymentKey, orderID, amount)
	if err == nil {
		return captured, nil
	}
	if !payment.IsTransport(err) {
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{"payment_key": paymentKey, "order_id": orderID})
	log.WithError(err).Warn("capture: ответ шлюза потерян, проверяем статус платежа")

	queried, qErr := s.gateway.Query(ctx, paymentKey)
	if qErr != nil {
		log.WithError(qErr).Error("capture: статус платежа неизвестен")
		return nil, err
	}
	if queried.Status == payment.StatusDone && queried.OrderID == orderID && queried.TotalAmount == amount {
		log.Info("capture: платёж подтверждён повторным запросом")
		return queried, nil
	}
	return nil, err
}

// compensate удаляет созданный escrow и отменяет платёж.
// Если удалить escrow не вышло, он закрывается как refunded, чтобы не держать миссию.
func (s *MissionPaymentService) compensate(ctx context.Context, txLog *TransactionLog, escrowID *uuid.UUID, paymentKey, reason string, rc payment.RollbackContext) error {
	orphaned := false
	if escrowID != nil {
		if err := s.ledger.Delete(context.WithoutCancel(ctx), *escrowID); err != nil {
			txLog.Add("delete_escrow", false, map[string]any{"error": err.Error()})
			orphaned = true
		} else {
			txLog.Add("delete_escrow", true, nil)
		}
	}

	res := s.rollback.Rollback(ctx, paymentKey, reason, rc)
	if orphaned {
		s.retireEscrow(ctx, txLog, *escrowID, reason, rc, res)
	}
	if !res.Success {
		txLog.Add("rollback", false, map[string]any{"error": errString(res.Error), "requires_manual_intervention": true})
		return apperror.ErrRollbackFailed.
			WithCause(res.Error).
			WithGuidance(apperror.ActionContactSupport,
				"결제가 청구되었을 수 있습니다.",
				"영업일 기준 1-2일 내 자동 환불됩니다.",
				"확인이 필요하시면 고객센터로 문의해주세요.",
			).
			WithDetails(map[string]any{"transactionId": paymentKey})
	}

	txLog.Add("rollback", true, map[string]any{"refunded": res.Refunded, "already_canceled": res.AlreadyCanceled})
	return apperror.ErrPaymentCancelled.
		WithGuidance(apperror.ActionRetry, "결제가 취소되었습니다. 잠시 후 다시 시도해주세요.").
		WithDetails(map[string]any{
			"reason":       "처리 중 오류가 발생했습니다. 결제가 취소되었습니다.",
			"refunded":     true,
			"refundStatus": "completed",
		})
}

func (s *MissionPaymentService) retireEscrow(ctx context.Context, txLog *TransactionLog, escrowID uuid.UUID, reason string, rc payment.RollbackContext, res payment.RollbackResult) {
	refund := models.RefundRecord{
		Amount:                 rc.Amount,
		Reason:                 reason,
		At:                     s.now(),
		ReconciliationRequired: !res.Success,
		Error:                  errString(res.Error),
	}
	ok, err := s.ledger.Transition(context.WithoutCancel(ctx), escrowID, models.EscrowStatusPaid, models.EscrowStatusRefunded,
		models.EscrowUpdate{Refund: &refund})
	if err != nil || !ok {
		txLog.Add("refund_escrow", false, map[string]any{"error": errString(err), "lost_race": err == nil})
		s.log.WithError(err).WithFields(logrus.Fields{
			"escrow_id":  escrowID,
			"mission_id": rc.MissionID,
			"critical":   true,
		}).Error("compensate: escrow не удалён и не закрыт, миссия заблокирована до сверки")
		return
	}
	txLog.Add("refund_escrow", true, map[string]any{"reconciliation_required": refund.ReconciliationRequired})
}

func (s *MissionPaymentService) finish(txLog *TransactionLog, err error) {
	var result string
	switch {
	case err == nil:
		result = "success"
	case len(txLog.Steps) == 0:
		result = "rejected"
	case apperror.HasCode(err, apperror.ErrCodePaymentCancelled):
		result = "rolled_back"
	case apperror.HasCode(err, apperror.ErrCodeRollbackFailed):
		result = "rollback_failed"
	default:
		result = "failed"
	}
	metrics.MissionPaymentsTotal.WithLabelValues(result).Inc()

	if len(txLog.Steps) == 0 {
		return
	}
	log := s.log.WithFields(txLog.Fields()).WithField("result", result)
	if err != nil {
		log.WithError(err).Warn("mission payment: транзакция не завершена")
		return
	}
	log.Info("mission payment: транзакция завершена")
}

func gatewayMessage(err error) string {
	var gwErr *payment.GatewayError
	if errors.As(err, &gwErr) && gwErr.Message != "" {
		return gwErr.Message
	}
	return "결제 승인에 실패했습니다."
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func containsStatus(list []string, status string) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}
