package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/amhang-backend/internal/logger"
	"github.com/ignatzorin/amhang-backend/internal/metrics"
	"github.com/ignatzorin/amhang-backend/internal/models"
	"github.com/ignatzorin/amhang-backend/internal/payment"
	"github.com/ignatzorin/amhang-backend/internal/traces"
)

const (
	expiryBatchSize = 500

	cancelReasonExpired = "모집 기간 만료로 인한 자동 취소"
	refundReasonExpired = "모집 기간 만료로 인한 자동 환불"
)

// ExpiryResult - итог прогона отмены просроченных миссий.
type ExpiryResult struct {
	Processed int `json:"processed"`
	Cancelled int `json:"cancelled"`
	Failed    int `json:"failed"`
	// Reconciliation - отменены у нас, но шлюз возврат не подтвердил.
	Reconciliation int `json:"reconciliation"`
}

// MissionExpiryService отменяет миссии, не набравшие ревьюера до дедлайна, и возвращает деньги.
type MissionExpiryService struct {
	missions MissionRepository
	ledger   *EscrowLedger
	gateway  PaymentGateway
	notifier Notifier
	now      func() time.Time
	log      *logrus.Entry
}

// NewMissionExpiryService создаёт сервис.
func NewMissionExpiryService(missions MissionRepository, ledger *EscrowLedger, gateway PaymentGateway, notifier Notifier) *MissionExpiryService {
	return &MissionExpiryService{
		missions: missions,
		ledger:   ledger,
		gateway:  gateway,
		notifier: notifier,
		now:      time.Now,
		log:      logger.Component("mission_expiry"),
	}
}

// ProcessMissionExpiry отменяет все миссии в наборе с истёкшим recruitment_deadline.
//
// Миссия закрывается даже если шлюз не подтвердил отмену платежа: такой escrow
// помечается refund_reconciliation_required и попадает в ручную сверку.
func (s *MissionExpiryService) ProcessMissionExpiry(ctx context.Context) (ExpiryResult, error) {
	ctx, span := traces.StartSpan(ctx, "mission.expiry", traces.Job("mission_expiry"))
	defer span.End()

	var result ExpiryResult
	now := s.now()
	expired, err := s.missions.ListExpiredRecruiting(ctx, now, expiryBatchSize)
	if err != nil {
		traces.RecordError(span, err)
		return result, fmt.Errorf("mission expiry: выборка миссий %w", err)
	}

	for i := range expired {
		result.Processed++
		outcome, err := s.expire(ctx, &expired[i])
		switch {
		case err != nil:
			s.log.WithError(err).WithField("mission_id", expired[i].ID).Error("mission expiry: не удалось отменить миссию")
			metrics.ExpiredMissionsTotal.WithLabelValues("error").Inc()
			result.Failed++
		case outcome == expirySkipped:
			metrics.ExpiredMissionsTotal.WithLabelValues("skipped").Inc()
		case outcome == expiryNeedsReconciliation:
			metrics.ExpiredMissionsTotal.WithLabelValues("reconciliation").Inc()
			result.Cancelled++
			result.Reconciliation++
		default:
			metrics.ExpiredMissionsTotal.WithLabelValues("cancelled").Inc()
			result.Cancelled++
		}
	}

	s.log.WithFields(logrus.Fields{
		"processed":      result.Processed,
		"cancelled":      result.Cancelled,
		"failed":         result.Failed,
		"reconciliation": result.Reconciliation,
	}).Info("mission expiry: прогон завершён")
	return result, nil
}

type expiryOutcome int

const (
	expiryCancelled expiryOutcome = iota
	expirySkipped
	expiryNeedsReconciliation
)

func (s *MissionExpiryService) expire(ctx context.Context, mission *models.Mission) (expiryOutcome, error) {
	log := s.log.WithField("mission_id", mission.ID)
	now := s.now()

	// Миссию забирает тот, чей переход recruiting → cancelled прошёл первым
	ok, err := s.missions.UpdateStatus(ctx, mission.ID, []string{models.MissionStatusRecruiting}, models.MissionStatusCancelled, now)
	if err != nil {
		return expiryCancelled, err
	}
	if !ok {
		log.Debug("mission expiry: миссия уже не в наборе")
		return expirySkipped, nil
	}

	refund := models.RefundRecord{
		Amount: mission.TotalAmount,
		Reason: refundReasonExpired,
		At:     now,
	}
	outcome := expiryCancelled

	if mission.IsPaid() {
		if key := s.ledger.PaymentKeyFor(ctx, mission); key != "" {
			res, err := s.gateway.Cancel(ctx, key, cancelReasonExpired, payment.CancelOptions{})
			if err != nil {
				refund.ReconciliationRequired = true
				refund.Error = err.Error()
				outcome = expiryNeedsReconciliation
				log.WithError(err).WithFields(logrus.Fields{
					"critical":    true,
					"payment_key": key,
					"amount":      mission.TotalAmount,
				}).Error("mission expiry: шлюз не подтвердил возврат, нужна сверка")
			} else {
				log.WithField("already_canceled", res.AlreadyCanceled).Info("mission expiry: платёж отменён")
			}
		}
	}

	if _, err := s.ledger.RefundByMission(ctx, mission.ID, refund); err != nil {
		s.release(ctx, mission, log)
		return outcome, fmt.Errorf("mission expiry: возврат escrow %w", err)
	}

	if res := s.notifier.Notify(ctx, mission.BusinessOwnerID, models.NotificationMissionExpired,
		"미션 모집이 만료되었습니다",
		"모집 기간이 종료되어 미션이 자동 취소되었습니다. 결제 금액은 환불됩니다.",
		map[string]any{"missionId": mission.ID, "amount": mission.TotalAmount},
	); !res.Success {
		log.WithError(res.Error).Warn("mission expiry: уведомление не отправлено")
	}

	log.Info("mission expiry: миссия отменена")
	return outcome, nil
}

// release возвращает миссию в recruiting, чтобы следующий прогон повторил отмену.
// Повторная отмена платежа в шлюзе отвечает AlreadyCanceled.
func (s *MissionExpiryService) release(ctx context.Context, mission *models.Mission, log *logrus.Entry) {
	ok, err := s.missions.UpdateStatus(context.WithoutCancel(ctx), mission.ID,
		[]string{models.MissionStatusCancelled}, models.MissionStatusRecruiting, s.now())
	if err != nil || !ok {
		log.WithError(err).WithFields(logrus.Fields{
			"critical": true,
			"amount":   mission.TotalAmount,
		}).Error("mission expiry: миссия отменена, а escrow не возвращён, нужна сверка")
		return
	}
	log.Warn("mission expiry: escrow не возвращён, миссия вернётся в следующий прогон")
}
