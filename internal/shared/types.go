package shared

// ErrorBody is the single error envelope every relay returns
type ErrorBody struct {
	Error string `json:"error"`
}

type ProcessFormRequest struct {
	Image string `json:"image"`
}

type TranscribeRequest struct {
	AudioURI string `json:"audioUri"`
}

type TranscribeResponse struct {
	Transcription string `json:"transcription"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
}

type ChatResponse struct {
	Reply string `json:"reply"`
}
