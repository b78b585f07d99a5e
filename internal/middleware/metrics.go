package middleware

import (
	"fmt"
	"net/http"
	"time"

	"formscan-relay/internal/ctx"
	"formscan-relay/internal/metrics"
	"formscan-relay/internal/shared"

	"github.com/aidarkhanov/nanoid"
	"github.com/labstack/echo/v4"
	emw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// NewTrackMiddleware assigns the request id, builds the relay context and
// writes the single end_of_request log line. Errors returned further down
// the chain are rendered here so the logged status is the one the caller got.
func NewTrackMiddleware(log *zap.SugaredLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			reqID, _ := nanoid.Generate(shared.RequestIDAlphabet, shared.RequestIDLength)
			reqID = "req_" + reqID
			clientInfo := c.Request().Header.Get(shared.ClientInfoHeader)
			logger := log.With("request_id", reqID)

			c.Response().Header().Set(echo.HeaderXRequestID, reqID)
			cc := &ctx.Context{
				Context: c,
				Log:     logger,
				Reqid:   reqID,
				LogValues: &ctx.ContextLogValues{
					RequestID:  reqID,
					ClientInfo: clientInfo,
					StartTime:  time.Now(),
				},
			}

			if err := next(cc); err != nil {
				_, _, kind := Classify(err)
				cc.LogValues.AddError(err)
				cc.LogValues.ErrorKind = kind
				c.Error(err)
			}

			lv := cc.LogValues
			lv.RequestDuration = time.Since(lv.StartTime)
			lv.StatusCode = c.Response().Status
			lv.Path = c.Path()

			status := fmt.Sprintf("%d", lv.StatusCode)
			metrics.ResponseCodes.WithLabelValues(lv.Path, status).Inc()
			if lv.Relay != "" {
				metrics.RequestDuration.WithLabelValues(lv.Relay).Observe(lv.RequestDuration.Seconds())
				metrics.RequestCount.WithLabelValues(lv.Relay, status).Inc()
				if lv.Error != nil {
					metrics.ErrorCount.WithLabelValues(lv.Relay, lv.ErrorKind).Inc()
				}
			}

			switch {
			case lv.StatusCode >= http.StatusInternalServerError:
				logger.Errorw("end_of_request", zap.Object("request", lv))
			case lv.Error != nil:
				logger.Warnw("end_of_request", zap.Object("request", lv))
			default:
				logger.Infow("end_of_request", zap.Object("request", lv))
			}
			return nil
		}
	}
}

func NewRecoverMiddleware(log *zap.SugaredLogger) echo.MiddlewareFunc {
	return emw.RecoverWithConfig(emw.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			defer func() {
				_ = log.Sync()
			}()
			log.Errorw("Api Panic", "error", err.Error(), "stack", string(stack))
			if c.Response().Committed {
				return nil
			}
			return c.JSON(http.StatusInternalServerError, shared.ErrorBody{Error: shared.ErrInternalServer.Err.Error()})
		},
	})
}
