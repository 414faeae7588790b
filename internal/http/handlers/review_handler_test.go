package handlers

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/amhang-backend/internal/models"
	"github.com/ignatzorin/amhang-backend/internal/pkg/apperror"
)

func TestReviewHandler_DisputeReview_Unauthorized(t *testing.T) {
	r := newTestRouter(uuid.Nil)
	r.POST("/reviews/:id/dispute", NewReviewHandler(nil).DisputeReview)

	w := doJSON(r, http.MethodPost, "/reviews/"+uuid.NewString()+"/dispute", map[string]string{"reason": "허위 내용"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReviewHandler_DisputeReview(t *testing.T) {
	userID, reviewID := uuid.New(), uuid.New()
	reason := "사실과 다른 내용이 포함되어 있습니다"

	t.Run("disputed", func(t *testing.T) {
		reviews := &mockReviews{}
		reviews.On("DisputeReview", mock.Anything, reviewID, userID, reason).Return(&models.Review{
			ID:            reviewID,
			Status:        models.ReviewStatusDisputed,
			IsDisputed:    true,
			DisputeReason: &reason,
		}, nil)

		r := newTestRouter(userID)
		r.POST("/reviews/:id/dispute", NewReviewHandler(reviews).DisputeReview)

		w := doJSON(r, http.MethodPost, "/reviews/"+reviewID.String()+"/dispute", map[string]string{"reason": reason})

		assert.Equal(t, http.StatusOK, w.Code)
		env := decode(t, w)
		assert.Equal(t, models.ReviewStatusDisputed, env.Data["status"])
		assert.Equal(t, true, env.Data["is_disputed"])
	})

	t.Run("already published", func(t *testing.T) {
		reviews := &mockReviews{}
		reviews.On("DisputeReview", mock.Anything, reviewID, userID, reason).Return(nil, apperror.ErrReviewCannotDispute)

		r := newTestRouter(userID)
		r.POST("/reviews/:id/dispute", NewReviewHandler(reviews).DisputeReview)

		w := doJSON(r, http.MethodPost, "/reviews/"+reviewID.String()+"/dispute", map[string]string{"reason": reason})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "REVIEW_CANNOT_DISPUTE", decode(t, w).Error["code"])
	})
}
