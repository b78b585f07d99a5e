package routers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"formscan-relay/internal/ctx"
	"formscan-relay/internal/handlers/relay"
	"formscan-relay/internal/identity"
	"formscan-relay/internal/metrics"
	"formscan-relay/internal/middleware"
	"formscan-relay/internal/shared"

	"github.com/labstack/echo/v4"
	emw "github.com/labstack/echo/v4/middleware"
)

type RelayRouter struct {
	rh *relay.RelayHandler
}

// RegisterRelayRoutes mounts the relays behind the auth gate. The body limit
// comes after it so an unauthenticated caller always gets 401.
func RegisterRelayRoutes(e *echo.Echo, rh *relay.RelayHandler, resolver identity.Resolver, maxBodySize string) {
	relayRouter := RelayRouter{rh: rh}

	// Mounted per route; a group would put the auth gate in front of 404s too
	chain := []echo.MiddlewareFunc{middleware.NewAuthMiddleware(resolver)}
	if maxBodySize != "" {
		chain = append(chain, emw.BodyLimit(maxBodySize))
	}
	e.POST("/process-form", relayRouter.ProcessForm, chain...)
	e.POST("/transcribe", relayRouter.Transcribe, chain...)
	e.POST("/chat", relayRouter.Chat, chain...)
}

func (rr *RelayRouter) ProcessForm(cc echo.Context) error {
	c := ctx.From(cc)
	c.LogValues.Relay = shared.RelayProcessForm

	var req shared.ProcessFormRequest
	if err := readJSONBody(c, &req); err != nil {
		return err
	}

	out, err := rr.rh.ExtractFields(relay.ProcessFormInput{
		Ctx:       context.WithoutCancel(c.Request().Context()),
		RequestID: c.Reqid,
		Image:     req.Image,
	})
	if err != nil {
		logUpstreamError(c, err)
		return err
	}

	c.LogValues.UpstreamModel = out.Model
	c.LogValues.DecodedBytes = out.DecodedBytes
	if out.DecodedBytes > 0 {
		metrics.DecodedBytes.WithLabelValues(shared.RelayProcessForm).Observe(float64(out.DecodedBytes))
	}

	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, []byte(out.Raw))
}

func (rr *RelayRouter) Transcribe(cc echo.Context) error {
	c := ctx.From(cc)
	c.LogValues.Relay = shared.RelayTranscribe

	var req shared.TranscribeRequest
	if err := readJSONBody(c, &req); err != nil {
		return err
	}

	out, err := rr.rh.Transcribe(relay.TranscribeInput{
		Ctx:       context.WithoutCancel(c.Request().Context()),
		RequestID: c.Reqid,
		AudioURI:  req.AudioURI,
	})
	if err != nil {
		logUpstreamError(c, err)
		return err
	}

	c.LogValues.UpstreamModel = out.Model
	c.LogValues.DecodedBytes = out.DecodedBytes
	metrics.DecodedBytes.WithLabelValues(shared.RelayTranscribe).Observe(float64(out.DecodedBytes))

	return c.JSON(http.StatusOK, shared.TranscribeResponse{Transcription: out.Text})
}

func (rr *RelayRouter) Chat(cc echo.Context) error {
	c := ctx.From(cc)
	c.LogValues.Relay = shared.RelayChat

	var req shared.ChatRequest
	if err := readJSONBody(c, &req); err != nil {
		return err
	}

	out, err := rr.rh.Chat(relay.ChatInput{
		Ctx:       context.WithoutCancel(c.Request().Context()),
		RequestID: c.Reqid,
		Messages:  req.Messages,
	})
	if err != nil {
		logUpstreamError(c, err)
		return err
	}

	c.LogValues.UpstreamModel = out.Model
	return c.JSON(http.StatusOK, shared.ChatResponse{Reply: out.Reply})
}

func logUpstreamError(c *ctx.Context, err error) {
	if rerr, ok := shared.AsRequestError(err); ok && rerr.Kind != shared.KindUpstream {
		return
	}
	c.Log.Warnw("Relay upstream error", "relay", c.LogValues.Relay, "error", err.Error())
}

// readJSONBody reads the whole body and decodes it into v. Echo's own
// errors (body too large) are passed through untouched.
func readJSONBody(c *ctx.Context, v any) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return errors.Join(shared.ErrInvalidRequest, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.Join(shared.ErrInvalidRequest, err)
	}
	return nil
}
