package middleware

import (
	"net/http"

	"formscan-relay/internal/shared"

	"github.com/labstack/echo/v4"
)

// NewCORSMiddleware sets the permissive CORS headers on every response and
// answers preflight requests itself with 200 "ok". echo's CORS middleware
// answers preflights with 204 and only when an Origin header is present,
// which the mobile client does not send.
func NewCORSMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set(echo.HeaderAccessControlAllowOrigin, shared.CORSAllowOrigin)
			h.Set(echo.HeaderAccessControlAllowHeaders, shared.CORSAllowHeaders)
			h.Set(echo.HeaderAccessControlAllowMethods, shared.CORSAllowMethods)

			if c.Request().Method == http.MethodOptions {
				return c.String(http.StatusOK, "ok")
			}
			return next(c)
		}
	}
}
