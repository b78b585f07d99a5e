package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"formscan-relay/internal/shared"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Classify maps any error to the status, caller facing message and kind
// label. RequestErrors carry their own kind; echo's own errors keep their
// status; anything else is an opaque 500.
func Classify(err error) (status int, message string, kind string) {
	if rerr, ok := shared.AsRequestError(err); ok {
		return rerr.StatusCode(), rerr.Message(), rerr.Kind.String()
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok && m != "" {
			msg = m
		}
		return he.Code, msg, "http_error"
	}

	return http.StatusInternalServerError, shared.ErrInternalServer.Err.Error(), "internal"
}

// NewErrorHandler is the single place errors are turned into responses.
// The body is always {"error": "..."}; causes stay in the logs.
func NewErrorHandler(log *zap.SugaredLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			log.Warnw("Error after response was committed", "error", err)
			return
		}

		status, message, kind := Classify(err)
		log.Debugw("Rendering error response", "status_code", status, "kind", kind)

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, shared.ErrorBody{Error: message})
		}
		if werr != nil {
			log.Errorw("Failed writing error response", "error", fmt.Errorf("%w: %w", werr, err))
		}
	}
}
