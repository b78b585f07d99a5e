package relay

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"formscan-relay/internal/formfields"
	"formscan-relay/internal/media"
	"formscan-relay/internal/modelapi"
	"formscan-relay/internal/shared"
)

type ProcessFormInput struct {
	Ctx       context.Context
	RequestID string
	Image     string
}

type ProcessFormOutput struct {
	// Raw is the model's text with the fields wrapper removed, otherwise verbatim
	Raw          string
	DecodedBytes int
	Model        string
}

// ExtractFields asks the vision model for the form's field descriptors.
// The {"fields": [...]} wrapper JSON mode forces is stripped so callers get
// the bare array. The output is not re-validated unless strict schema checking is on; a
// malformed but useful answer is the caller's to deal with.
func (rh *RelayHandler) ExtractFields(input ProcessFormInput) (*ProcessFormOutput, error) {
	imageURL, decoded, err := imageReference(input.Image)
	if err != nil {
		return nil, err
	}

	rh.Log.Debugw("Requesting form fields", "request_id", input.RequestID, "model", rh.cfg.VisionModel, "decoded_bytes", decoded)
	res, err := rh.Completer.CreateChatCompletion(input.Ctx, &modelapi.ChatCompletionRequest{
		Model:     rh.cfg.VisionModel,
		MaxTokens: rh.cfg.VisionMaxTokens,
		Messages: []modelapi.Message{{
			Role: "user",
			Content: []modelapi.ContentPart{
				{Type: "text", Text: formfields.ExtractionPrompt()},
				{Type: "image_url", ImageURL: &modelapi.ImageURL{URL: imageURL}},
			},
		}},
		ResponseFormat: &modelapi.ResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, err
	}

	raw := formfields.Unwrap(res.FirstContent())
	if raw == "" {
		return nil, shared.ErrNoContent
	}

	if rh.cfg.StrictFormSchema {
		if _, err := formfields.Validate(raw); err != nil {
			rh.Log.Warnw("Model returned malformed form fields", "request_id", input.RequestID, "error", err)
			return nil, errors.Join(shared.NewUpstream("model returned malformed form fields"), err)
		}
	}

	return &ProcessFormOutput{Raw: raw, DecodedBytes: decoded, Model: rh.cfg.VisionModel}, nil
}

// imageReference accepts either an image data uri or an absolute http(s)
// url. The original string is what the model api receives.
func imageReference(image string) (string, int, error) {
	image = strings.TrimSpace(image)
	if image == "" {
		return "", 0, shared.NewBadRequest("image is required")
	}

	if media.IsDataURI(image) {
		uri, err := media.ParseDataURI(image, shared.ImageMIMEPrefix)
		if err != nil {
			return "", 0, err
		}
		return image, len(uri.Data), nil
	}

	u, err := url.Parse(image)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", 0, shared.NewBadRequest("image must be a data uri or an http(s) url")
	}
	return image, 0, nil
}
