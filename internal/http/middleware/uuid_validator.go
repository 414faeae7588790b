package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/amhang-backend/internal/pkg/apperror"
)

// UUIDValidator проверяет, что параметр с указанным именем является валидным UUID.
// Использование: router.POST("/missions/:id/pay", UUIDValidator("id"), handler.Pay)
func UUIDValidator(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := uuid.Parse(c.Param(paramName)); err != nil {
			WriteError(c, apperror.New(apperror.ErrCodeValidation, "잘못된 요청 경로입니다.").
				WithDetails(map[string]any{"param": paramName}))
			return
		}
		c.Next()
	}
}
