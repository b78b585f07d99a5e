package relay

import (
	"context"
	"strings"

	"formscan-relay/internal/media"
	"formscan-relay/internal/modelapi"
	"formscan-relay/internal/shared"
)

type TranscribeInput struct {
	Ctx       context.Context
	RequestID string
	AudioURI  string
}

type TranscribeOutput struct {
	Text         string
	DecodedBytes int
	Model        string
}

// Transcribe decodes the recording and makes one speech-to-text call. The
// upload is always named and typed as the m4a the mobile client records,
// whatever the data uri header says beyond its audio/ prefix.
func (rh *RelayHandler) Transcribe(input TranscribeInput) (*TranscribeOutput, error) {
	if strings.TrimSpace(input.AudioURI) == "" {
		return nil, shared.NewBadRequest("audioUri is required")
	}

	uri, err := media.ParseDataURI(strings.TrimSpace(input.AudioURI), shared.AudioMIMEPrefix)
	if err != nil {
		return nil, err
	}

	rh.Log.Debugw("Requesting transcription", "request_id", input.RequestID, "model", rh.cfg.TranscriptionModel, "decoded_bytes", len(uri.Data))
	res, err := rh.Transcriber.CreateTranscription(input.Ctx, &modelapi.TranscriptionRequest{
		Model: rh.cfg.TranscriptionModel,
		File: modelapi.File{
			Name:        shared.AudioFileName,
			ContentType: shared.AudioContentType,
			Data:        uri.Data,
		},
	})
	if err != nil {
		return nil, err
	}

	return &TranscribeOutput{Text: res.Text, DecodedBytes: len(uri.Data), Model: rh.cfg.TranscriptionModel}, nil
}
