package payment

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/amhang-backend/internal/logger"
	"github.com/ignatzorin/amhang-backend/internal/metrics"
)

const rollbackTimeout = 30 * time.Second

// Canceler - часть клиента шлюза, нужная для отката.
type Canceler interface {
	Cancel(ctx context.Context, paymentKey, reason string, opts CancelOptions) (*CancelResult, error)
}

// RollbackContext - что происходило в момент отката, только для логов.
type RollbackContext struct {
	MissionID string
	UserID    string
	OrderID   string
	Amount    int64
	Step      string
}

// RollbackResult - итог компенсирующей отмены.
type RollbackResult struct {
	Success                    bool
	Refunded                   bool
	AlreadyCanceled            bool
	RequiresManualIntervention bool
	PaymentKey                 string
	Error                      error
}

// RollbackCoordinator отменяет уже списанный платёж, когда дальнейшие шаги упали.
type RollbackCoordinator struct {
	gateway Canceler
	log     *logrus.Entry
	now     func() time.Time
}

// NewRollbackCoordinator создаёт координатор отката.
func NewRollbackCoordinator(gateway Canceler) *RollbackCoordinator {
	return &RollbackCoordinator{
		gateway: gateway,
		log:     logger.Component("rollback"),
		now:     time.Now,
	}
}

// Rollback отменяет платёж. Сам результат не ошибка: вызывающий решает, что ответить клиенту.
// Отмена не прерывается вместе с запросом клиента, у неё свой таймаут.
func (r *RollbackCoordinator) Rollback(ctx context.Context, paymentKey, reason string, rc RollbackContext) RollbackResult {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	log := r.log.WithFields(logrus.Fields{
		"payment_key": paymentKey,
		"reason":      reason,
		"mission_id":  rc.MissionID,
		"user_id":     rc.UserID,
		"order_id":    rc.OrderID,
		"amount":      rc.Amount,
		"step":        rc.Step,
		"timestamp":   r.now().Format(time.RFC3339),
	})
	log.Info("rollback: отменяем платёж")

	res, err := r.gateway.Cancel(ctx, paymentKey, reason, CancelOptions{})
	if err != nil {
		metrics.RollbacksTotal.WithLabelValues("failed").Inc()
		log.WithError(err).WithFields(logrus.Fields{
			"critical":                     true,
			"requires_manual_intervention": true,
		}).Error("rollback_failed_critical: платёж списан, но отменить его не удалось")

		return RollbackResult{
			Success:                    false,
			RequiresManualIntervention: true,
			PaymentKey:                 paymentKey,
			Error:                      err,
		}
	}

	if res.AlreadyCanceled {
		metrics.RollbacksTotal.WithLabelValues("already_canceled").Inc()
		log.Info("rollback: платёж уже был отменён")
	} else {
		metrics.RollbacksTotal.WithLabelValues("refunded").Inc()
		log.Info("rollback: платёж отменён, деньги возвращены")
	}

	return RollbackResult{
		Success:         true,
		Refunded:        !res.AlreadyCanceled,
		AlreadyCanceled: res.AlreadyCanceled,
		PaymentKey:      paymentKey,
	}
}
