// Package routers builds the echo server and mounts every route on it
package routers

import (
	"crypto/subtle"
	"net/http"

	"formscan-relay/internal/handlers/relay"
	"formscan-relay/internal/identity"
	"formscan-relay/internal/middleware"
	"formscan-relay/internal/shared"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type ServerConfig struct {
	MaxBodySize   string
	MetricsAPIKey string
}

// NewServer returns an echo instance with the full middleware stack and all
// routes registered. Middleware runs outermost first: tracking, panic
// recovery, then cors. Relay routes add the auth gate and body limit.
func NewServer(cfg ServerConfig, rh *relay.RelayHandler, resolver identity.Resolver, log *zap.SugaredLogger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.NewErrorHandler(log)

	e.Use(middleware.NewTrackMiddleware(log))
	e.Use(middleware.NewRecoverMiddleware(log))
	e.Use(middleware.NewCORSMiddleware())

	e.GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "")
	})
	if cfg.MetricsAPIKey != "" {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), requireMetricsKey(cfg.MetricsAPIKey))
	} else {
		log.Info("Metrics api key not set, /metrics is disabled")
	}

	RegisterRelayRoutes(e, rh, resolver, cfg.MaxBodySize)
	return e
}

func requireMetricsKey(key string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			_, apiKey, err := shared.ExtractBearerToken(c)
			if err != nil {
				return err
			}
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) != 1 {
				return shared.ErrUnauthorized
			}
			return next(c)
		}
	}
}
