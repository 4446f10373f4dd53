package dto

// CompletionRequest is a single chat-completion call to the AI provider.
// ImagePayloads carries base64-encoded images and forces a vision-capable model.
type CompletionRequest struct {
	Prompt        string
	ImagePayloads []ImagePayload
	MaxTokens     int
}

type ImagePayload struct {
	ContentType string
	Base64Data  string
}

type CompletionResponse struct {
	Content string
	Model   string
}
