package common

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/amhang-backend/internal/dto"
	"github.com/ignatzorin/amhang-backend/internal/http/middleware"
	"github.com/ignatzorin/amhang-backend/internal/pkg/apperror"
)

// CurrentUserID extracts user ID from Gin context
func CurrentUserID(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	userID, ok := raw.(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	return userID, nil
}

// ParseUUIDParam parses UUID from URL parameter
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(c.Param(paramName))
	if err != nil {
		return uuid.Nil, apperror.New(apperror.ErrCodeValidation, "잘못된 요청 경로입니다.").
			WithDetails(map[string]any{"param": paramName})
	}
	return parsed, nil
}

// BindAndValidate binds JSON request and returns a validation error
func BindAndValidate(c *gin.Context, req any) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, "요청 형식이 올바르지 않습니다.")
	}
	return nil
}

// RespondError sends a standardized error response
func RespondError(c *gin.Context, err error) {
	middleware.WriteError(c, err)
}

// RespondSuccess sends a standardized success response
func RespondSuccess(c *gin.Context, statusCode int, message string, data any) {
	c.JSON(statusCode, dto.SuccessResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// RespondOK sends 200 with data
func RespondOK(c *gin.Context, data any) {
	RespondSuccess(c, http.StatusOK, "", data)
}

// ParseIntQuery safely reads an integer query parameter with a fallback value
func ParseIntQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}
