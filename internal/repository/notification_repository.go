package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/amhang-backend/internal/models"
)

// NotificationRepository отвечает за работу с уведомлениями.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository создаёт экземпляр репозитория.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create создаёт новое уведомление.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	query := `
		INSERT INTO notifications (user_id, type, title, message, data, is_read)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	var data interface{}
	if len(notification.Data) > 0 {
		data = []byte(notification.Data)
	}

	if err := r.db.QueryRowxContext(
		ctx,
		query,
		notification.UserID,
		notification.Type,
		notification.Title,
		notification.Message,
		data,
		notification.IsRead,
	).Scan(&notification.ID, &notification.CreatedAt); err != nil {
		return fmt.Errorf("notification repository: create %w", err)
	}

	return nil
}

// ListByUser возвращает последние уведомления пользователя.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error) {
	notifications := []models.Notification{}
	query := `
		SELECT id, user_id, type, title, message, COALESCE(data, '{}'::jsonb) AS data, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	if err := r.db.SelectContext(ctx, &notifications, query, userID, limit); err != nil {
		return nil, fmt.Errorf("notification repository: list by user %w", err)
	}
	return notifications, nil
}
