package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/amhang-backend/internal/http/handlers/common"
	"github.com/ignatzorin/amhang-backend/internal/models"
	"github.com/ignatzorin/amhang-backend/internal/pkg/apperror"
)

// NotificationLister - чтение уведомлений пользователя.
type NotificationLister interface {
	ListNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error)
}

// NotificationHandler обслуживает маршруты уведомлений.
type NotificationHandler struct {
	notifications NotificationLister
}

// NewNotificationHandler создаёт новый хэндлер.
func NewNotificationHandler(notifications NotificationLister) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// ListNotifications обрабатывает GET /api/notifications.
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	limit := common.ParseIntQuery(c, "limit", 20)
	notifications, err := h.notifications.ListNotifications(c.Request.Context(), userID, limit)
	if err != nil {
		common.RespondError(c, apperror.Wrap(err, apperror.ErrCodeInternal, "알림 조회에 실패했습니다."))
		return
	}

	common.RespondOK(c, notifications)
}
