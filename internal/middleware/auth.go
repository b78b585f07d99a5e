// Package middleware holds the echo middleware shared by every relay route
package middleware

import (
	"context"
	"errors"

	"formscan-relay/internal/ctx"
	"formscan-relay/internal/identity"
	"formscan-relay/internal/shared"

	"github.com/labstack/echo/v4"
)

// NewAuthMiddleware is the auth gate. A request without a usable bearer
// token never reaches the identity service; everything else gets exactly
// one Resolve call. Any failure is Unauthenticated.
func NewAuthMiddleware(resolver identity.Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(cc echo.Context) error {
			c := ctx.From(cc)
			c.Identity = nil

			header, token, err := shared.ExtractBearerToken(c)
			if err != nil {
				return err
			}

			id, err := resolver.Resolve(context.WithoutCancel(c.Request().Context()), header, token)
			if err != nil {
				if rerr, ok := shared.AsRequestError(err); ok && rerr.Kind == shared.KindUnauthenticated {
					return err
				}
				return errors.Join(shared.ErrUnauthorized, err)
			}
			if id == nil || id.ID == "" {
				return shared.ErrUnauthorized
			}

			c.Identity = id
			return next(c)
		}
	}
}

