package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/amhang-backend/internal/logger"
	"github.com/ignatzorin/amhang-backend/internal/metrics"
	"github.com/ignatzorin/amhang-backend/internal/models"
)

const defaultNotifyTimeout = 5 * time.Second

// NotificationRepository описывает взаимодействие сервиса с хранилищем уведомлений.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error)
}

// NotificationPusher доставляет событие подключённым клиентам.
type NotificationPusher interface {
	PushToUser(userID uuid.UUID, event string, data any) error
}

// Notifier - то, чем остальные сервисы сообщают пользователю о событиях.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, kind, title, body string, data map[string]any) NotifyResult
}

// NotifyResult - исход отправки. Ошибка уведомления никогда не откатывает основную операцию.
type NotifyResult struct {
	Success bool
	Error   error
}

// NotificationService сохраняет уведомления и рассылает их по WebSocket.
type NotificationService struct {
	repo    NotificationRepository
	pusher  NotificationPusher
	timeout time.Duration
	log     *logrus.Entry
}

// NewNotificationService создаёт новый сервис уведомлений. pusher может быть nil.
func NewNotificationService(repo NotificationRepository, pusher NotificationPusher, timeout time.Duration) *NotificationService {
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	return &NotificationService{
		repo:    repo,
		pusher:  pusher,
		timeout: timeout,
		log:     logger.Component("notification"),
	}
}

// Notify сохраняет уведомление и отправляет его в открытые сокеты пользователя.
func (s *NotificationService) Notify(ctx context.Context, userID uuid.UUID, kind, title, body string, data map[string]any) NotifyResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	log := s.log.WithFields(logrus.Fields{"user_id": userID, "type": kind})

	notification := &models.Notification{
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: body,
	}
	if len(data) > 0 {
		raw, err := json.Marshal(data)
		if err != nil {
			return s.fail(log, kind, fmt.Errorf("notification service: marshal data %w", err))
		}
		notification.Data = raw
	}

	if err := s.repo.Create(ctx, notification); err != nil {
		return s.fail(log, kind, err)
	}

	if s.pusher != nil {
		if err := s.pusher.PushToUser(userID, kind, notification); err != nil {
			// В базе уведомление уже есть, клиент увидит его при следующем запросе
			log.WithError(err).Warn("notification: не удалось отправить в WebSocket")
		}
	}

	metrics.NotificationsTotal.WithLabelValues(kind, "sent").Inc()
	log.Debug("notification: создано")
	return NotifyResult{Success: true}
}

// ListNotifications возвращает последние уведомления пользователя.
func (s *NotificationService) ListNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListByUser(ctx, userID, limit)
}

func (s *NotificationService) fail(log *logrus.Entry, kind string, err error) NotifyResult {
	metrics.NotificationsTotal.WithLabelValues(kind, "failed").Inc()
	log.WithError(err).Error("notification: не удалось создать уведомление")
	return NotifyResult{Error: err}
}
