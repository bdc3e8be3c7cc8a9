package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/reportal/core"
)

// rolesMiddleware only lets users with one of the roles through.
func rolesMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if core.ContainsString(roles, usr.Role) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func noCacheMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			h := ctx.Response().Header()
			h.Set(echo.HeaderCacheControl, "no-cache, no-store, must-revalidate")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
			return next(ctx)
		}
	}
}

// rateLimitMiddleware limits the requests per client IP.
// With resetOnSuccess, a successful response clears the count (e.g. after a successful login).
// Limiter failures are logged and let the request through.
func rateLimitMiddleware(limiter core.RateLimiter, logger core.Logger, resetOnSuccess bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			key := ctx.RealIP()
			reqCtx := ctx.Request().Context()

			allowed, err := limiter.Allow(reqCtx, key)
			if err != nil {
				logger.Warn("rate limiter unavailable", errors.Wrap(err, "checking rate limit"))
				return next(ctx)
			}
			if !allowed {
				return errTooManyRequests
			}

			if err = next(ctx); err != nil {
				return err
			}
			if resetOnSuccess && ctx.Response().Status < 400 {
				if rErr := limiter.Reset(reqCtx, key); rErr != nil {
					logger.Warn("rate limiter unavailable", errors.Wrap(rErr, "resetting rate limit"))
				}
			}
			return nil
		}
	}
}
