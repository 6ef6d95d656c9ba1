package middleware

import (
	"math"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"relaychat/pkg/errors"
	"relaychat/pkg/logger"
)

type Limiter interface {
	Allow(subject, action string) (bool, time.Duration)
}

// RateLimit throttles requests per client IP under the given action's policy.
func RateLimit(limiter Limiter, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()

			ok, wait := limiter.Allow("ip:"+ip, action)
			if !ok {
				logger.Warn("RATE LIMIT: blocked %s from %s (retry in %v)", action, ip, wait)
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				return errors.TooManyRequests("Rate limit exceeded")
			}

			return next(c)
		}
	}
}
