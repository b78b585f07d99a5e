// Package ctx
package ctx

import (
	"fmt"
	"time"

	"formscan-relay/internal/identity"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ContextLogValues should only be accessed for logging, and not for
// actual business logic, or any other logic. The caller's identity is
// never part of it.
type ContextLogValues struct {
	// Added in base middleware
	RequestID       string
	ClientInfo      string
	StartTime       time.Time
	StatusCode      int
	RequestDuration time.Duration
	Path            string

	// Added by relay handlers
	Relay         string
	DecodedBytes  int
	UpstreamModel string

	// Added by the error handler
	ErrorKind string
	Error     error
}

// AddError adds errors to the error chain. Always add errors, even if only warnings.
// Log level is determined by the status code of the request
func (c *ContextLogValues) AddError(err error) {
	if err == nil {
		return
	}
	if c.Error == nil {
		c.Error = err
		return
	}
	c.Error = fmt.Errorf("%w: %w", err, c.Error)
}

func (c *ContextLogValues) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("request_id", c.RequestID)
	enc.AddString("client_info", c.ClientInfo)
	enc.AddTime("start_time", c.StartTime)
	enc.AddDuration("request_duration", c.RequestDuration)
	enc.AddInt("status_code", c.StatusCode)
	enc.AddString("path", c.Path)
	if c.Relay != "" {
		enc.AddString("relay", c.Relay)
	}
	if c.DecodedBytes != 0 {
		enc.AddInt("decoded_bytes", c.DecodedBytes)
	}
	if c.UpstreamModel != "" {
		enc.AddString("model", c.UpstreamModel)
	}
	if c.Error != nil {
		enc.AddString("error_kind", c.ErrorKind)
		enc.AddString("error", c.Error.Error())
	}
	return nil
}

type Context struct {
	echo.Context
	Log       *zap.SugaredLogger
	Reqid     string
	Identity  *identity.Identity
	LogValues *ContextLogValues
}

// From returns the relay context. Handlers are always mounted behind the
// tracking middleware, so a plain echo.Context only shows up in tests that
// skip it; those get a throwaway context with a no-op logger.
func From(c echo.Context) *Context {
	if cc, ok := c.(*Context); ok {
		return cc
	}
	return &Context{
		Context:   c,
		Log:       zap.NewNop().Sugar(),
		LogValues: &ContextLogValues{StartTime: time.Now(), Path: c.Path()},
	}
}
