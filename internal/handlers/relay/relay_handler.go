// Package relay implements the media and chat relays in front of the model api
package relay

import (
	"errors"

	"formscan-relay/internal/modelapi"
	"formscan-relay/internal/shared"

	"go.uber.org/zap"
)

type RelayConfig struct {
	VisionModel        string
	TranscriptionModel string
	ChatModel          string
	VisionMaxTokens    int
	ChatMaxTokens      int
	StrictFormSchema   bool
}

type RelayHandler struct {
	Completer   modelapi.Completer
	Transcriber modelapi.Transcriber
	Log         *zap.SugaredLogger
	cfg         RelayConfig
}

func NewRelayHandler(completer modelapi.Completer, transcriber modelapi.Transcriber, cfg RelayConfig, log *zap.SugaredLogger) (*RelayHandler, error) {
	if completer == nil || transcriber == nil {
		return nil, shared.NewConfiguration("model api client missing")
	}
	if cfg.VisionModel == "" || cfg.TranscriptionModel == "" || cfg.ChatModel == "" {
		return nil, errors.Join(shared.ErrMisconfigured, errors.New("model names must be set"))
	}
	if cfg.VisionMaxTokens <= 0 || cfg.ChatMaxTokens <= 0 {
		return nil, errors.Join(shared.ErrMisconfigured, errors.New("max tokens must be positive"))
	}

	return &RelayHandler{
		Completer:   completer,
		Transcriber: transcriber,
		Log:         log,
		cfg:         cfg,
	}, nil
}
