package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/ignatzorin/amhang-backend/internal/pkg/apperror"
)

// RateLimitMiddleware ограничивает количество запросов на платёжные маршруты.
// Ключ - пользователь, если он уже известен, иначе IP.
// По умолчанию: 10 запросов в минуту.
func RateLimitMiddleware(limit int64, period time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		limit = 10
	}
	if period <= 0 {
		period = 1 * time.Minute
	}

	rate := limiter.Rate{
		Period: period,
		Limit:  limit,
	}
	instance := limiter.New(memory.NewStore(), rate)

	return func(c *gin.Context) {
		key := c.ClientIP()
		if userID, ok := c.Get(ContextUserIDKey); ok {
			if id, ok := userID.(uuid.UUID); ok {
				key = "user:" + id.String()
			}
		}

		lctx, err := instance.Get(c, key)
		if err != nil {
			WriteError(c, err)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			WriteError(c, apperror.ErrRateLimited)
			return
		}

		c.Next()
	}
}
