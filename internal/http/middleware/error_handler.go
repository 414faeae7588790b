package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/amhang-backend/internal/dto"
	"github.com/ignatzorin/amhang-backend/internal/logger"
	"github.com/ignatzorin/amhang-backend/internal/pkg/apperror"
)

var errInternal = apperror.New(apperror.ErrCodeInternal, "서버 오류가 발생했습니다. 잠시 후 다시 시도해주세요.")

// ErrorHandler обрабатывает ошибки централизованно.
// Хэндлер кладёт ошибку в c.Error, клиент получает код и сообщение AppError.
// Всё, что не AppError, маскируется под INTERNAL_ERROR.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		WriteError(c, c.Errors.Last().Err)
	}
}

// WriteError отправляет ошибку в формате {"success": false, "error": {...}}.
func WriteError(c *gin.Context, err error) {
	appErr, ok := apperror.As(err)
	if !ok {
		appErr = errInternal.WithCause(err)
	}

	fields := logrus.Fields{
		"code":   appErr.Code,
		"path":   c.Request.URL.Path,
		"method": c.Request.Method,
	}
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.Component("http").WithFields(fields).WithError(err).Error("http: ошибка запроса")
	} else {
		logger.Component("http").WithFields(fields).Debug("http: запрос отклонён")
	}

	c.AbortWithStatusJSON(appErr.HTTPStatus, dto.NewErrorResponse(appErr))
}
