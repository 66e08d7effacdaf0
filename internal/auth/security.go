package auth

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	limiterpkg "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

var Validate = validator.New()

func NewRateLimiter(perMinute int64) *limiterpkg.Limiter {
	rate := limiterpkg.Rate{
		Period: time.Minute,
		Limit:  perMinute,
	}
	return limiterpkg.New(memory.NewStore(), rate)
}

// RateLimitMiddleware limits each signed-in user, or each IP before
// authentication.
func RateLimitMiddleware(limiter *limiterpkg.Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := "ip:" + c.RealIP()
			if user, ok := CurrentUser(c); ok {
				key = "user:" + user.ID
			}

			context, err := limiter.Get(c.Request().Context(), key)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, map[string]string{
					"error": "rate limit error",
				})
			}

			if context.Reached {
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error": "rate limit exceeded",
				})
			}

			return next(c)
		}
	}
}
