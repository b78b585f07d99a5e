// Package modelapi is a small client for the OpenAI compatible model api
package modelapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"formscan-relay/internal/metrics"
	"formscan-relay/internal/shared"

	"go.uber.org/zap"
)

const maxErrorBody = 64 << 10

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *zap.SugaredLogger
}

func NewClient(baseURL string, apiKey string, timeout time.Duration, log *zap.SugaredLogger) *Client {
	if timeout <= 0 {
		timeout = shared.DefaultHTTPTimeout
	}
	tr := &http.Transport{
		Dial: (&net.Dialer{
			Timeout: shared.DefaultDialTimeout,
		}).Dial,
		TLSHandshakeTimeout: shared.DefaultTLSTimeout,
		DisableKeepAlives:   false,
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Transport: tr, Timeout: timeout},
		log:        log,
	}
}

// CreateChatCompletion sends one non-streaming chat completion
func (c *Client) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Join(shared.ErrInternalServer, fmt.Errorf("failed marshaling chat request: %w", err))
	}

	var out ChatCompletionResponse
	if err := c.do(ctx, "chat_completion", "/chat/completions", "application/json", bytes.NewReader(body), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateTranscription uploads one audio file as multipart/form-data
func (c *Client) CreateTranscription(ctx context.Context, req *TranscriptionRequest) (*TranscriptionResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("model", req.Model); err != nil {
		return nil, errors.Join(shared.ErrInternalServer, err)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, req.File.Name))
	h.Set("Content-Type", req.File.ContentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, errors.Join(shared.ErrInternalServer, err)
	}
	if _, err := part.Write(req.File.Data); err != nil {
		return nil, errors.Join(shared.ErrInternalServer, err)
	}
	if err := mw.Close(); err != nil {
		return nil, errors.Join(shared.ErrInternalServer, err)
	}

	var out TranscriptionResponse
	if err := c.do(ctx, "transcription", "/audio/transcriptions", mw.FormDataContentType(), &buf, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, operation string, route string, contentType string, body io.Reader, out any) error {
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+route, body)
	if err != nil {
		return errors.Join(shared.ErrInternalServer, fmt.Errorf("failed building request: %w", err))
	}

	headers := map[string]string{
		"Content-Type":  contentType,
		"Authorization": "Bearer " + c.apiKey,
		"Accept":        "application/json",
	}
	for key, value := range headers {
		r.Header.Set(key, value)
	}

	metrics.InflightUpstream.WithLabelValues("model").Inc()
	start := time.Now()
	res, err := c.httpClient.Do(r)
	metrics.UpstreamDuration.WithLabelValues("model", operation).Observe(time.Since(start).Seconds())
	metrics.InflightUpstream.WithLabelValues("model").Dec()
	if err != nil {
		return errors.Join(shared.ErrModelRequest, err)
	}
	defer func() {
		if closeErr := res.Body.Close(); closeErr != nil {
			c.log.Warnw("Failed to close response body", "error", closeErr)
		}
	}()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return upstreamStatusError(res)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return errors.Join(shared.ErrModelResponse, err)
	}
	return nil
}

// upstreamStatusError keeps only the model api's own short message for the
// caller; the status and raw body go to the log through the joined error.
func upstreamStatusError(res *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	detail := fmt.Errorf("model api responded with %d: %s", res.StatusCode, shared.Truncate(string(raw), 512))

	var er errorResponse
	if err := json.Unmarshal(raw, &er); err == nil && er.Error != nil && er.Error.Message != "" {
		return errors.Join(shared.NewUpstream("%s", shared.Truncate(er.Error.Message, 256)), detail)
	}
	return errors.Join(shared.NewUpstream("model api responded with status %d", res.StatusCode), detail)
}
