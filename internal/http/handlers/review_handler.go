package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/amhang-backend/internal/dto"
	"github.com/ignatzorin/amhang-backend/internal/http/handlers/common"
	"github.com/ignatzorin/amhang-backend/internal/models"
)

// ReviewDisputer - жалоба бизнеса на отзыв до публикации.
type ReviewDisputer interface {
	DisputeReview(ctx context.Context, reviewID, userID uuid.UUID, reason string) (*models.Review, error)
}

// ReviewHandler обслуживает маршруты отзывов.
type ReviewHandler struct {
	reviews ReviewDisputer
}

func NewReviewHandler(reviews ReviewDisputer) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

// DisputeReview POST /api/reviews/:id/dispute
func (h *ReviewHandler) DisputeReview(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	reviewID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var req dto.DisputeReviewRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondError(c, err)
		return
	}

	review, err := h.reviews.DisputeReview(c.Request.Context(), reviewID, userID, req.Reason)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "이의 신청이 접수되었습니다. 검토 후 연락드리겠습니다.", review)
}
