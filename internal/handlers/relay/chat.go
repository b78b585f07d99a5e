package relay

import (
	"context"
	"strings"

	"formscan-relay/internal/modelapi"
	"formscan-relay/internal/shared"
)

const (
	maxChatMessages = 50

	chatSystemPrompt = `You are an assistant inside a mobile app that helps people fill in medical forms. Answer questions about form fields, medical terminology and how to complete a form clearly and briefly. You do not give diagnoses or treatment advice; suggest asking a clinician for those.`
)

type ChatInput struct {
	Ctx       context.Context
	RequestID string
	Messages  []shared.ChatMessage
}

type ChatOutput struct {
	Reply string
	Model string
}

// Chat forwards a short conversation with the fixed system prompt prepended
func (rh *RelayHandler) Chat(input ChatInput) (*ChatOutput, error) {
	if len(input.Messages) == 0 {
		return nil, shared.NewBadRequest("messages is required")
	}
	if len(input.Messages) > maxChatMessages {
		return nil, shared.NewBadRequest("too many messages, at most %d are allowed", maxChatMessages)
	}

	messages := make([]modelapi.Message, 0, len(input.Messages)+1)
	messages = append(messages, modelapi.Message{Role: "system", Content: chatSystemPrompt})
	for i, m := range input.Messages {
		if m.Role != "user" && m.Role != "assistant" {
			return nil, shared.NewBadRequest("message %d: role must be user or assistant", i)
		}
		if strings.TrimSpace(m.Content) == "" {
			return nil, shared.NewBadRequest("message %d: content is required", i)
		}
		messages = append(messages, modelapi.Message{Role: m.Role, Content: m.Content})
	}

	rh.Log.Debugw("Requesting chat reply", "request_id", input.RequestID, "model", rh.cfg.ChatModel, "messages", len(input.Messages))
	res, err := rh.Completer.CreateChatCompletion(input.Ctx, &modelapi.ChatCompletionRequest{
		Model:     rh.cfg.ChatModel,
		MaxTokens: rh.cfg.ChatMaxTokens,
		Messages:  messages,
	})
	if err != nil {
		return nil, err
	}

	reply := res.FirstContent()
	if reply == "" {
		return nil, shared.ErrNoContent
	}
	return &ChatOutput{Reply: reply, Model: rh.cfg.ChatModel}, nil
}
