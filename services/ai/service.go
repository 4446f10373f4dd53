package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"golang.org/x/net/context"

	"github.com/procurehq/rfpstack/dto"
	"github.com/procurehq/rfpstack/interfaces"
	"github.com/procurehq/rfpstack/internal/config"
	"github.com/procurehq/rfpstack/internal/tracing"
)

type aiService struct {
	cfg *config.OpenAIConfig
}

func NewAIService(cfg *config.OpenAIConfig) interfaces.AIService {
	return &aiService{
		cfg: cfg,
	}
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// CreateCompletion sends one chat-completion call. Image payloads switch the
// request to the vision-capable model; plain text goes to the cheaper one.
func (s *aiService) CreateCompletion(ctx context.Context, request dto.CompletionRequest) (*dto.CompletionResponse, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "aiService.CreateCompletion")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	model := s.cfg.Model
	var content interface{} = request.Prompt
	if len(request.ImagePayloads) > 0 {
		model = s.cfg.VisionModel
		parts := []contentPart{{Type: "text", Text: request.Prompt}}
		for _, image := range request.ImagePayloads {
			parts = append(parts, contentPart{
				Type: "image_url",
				ImageURL: &imageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", image.ContentType, image.Base64Data),
				},
			})
		}
		content = parts
	}
	span.SetTag("model", model)

	payload, err := json.Marshal(chatCompletionRequest{
		Model:          model,
		Messages:       []chatMessage{{Role: "user", Content: content}},
		Temperature:    0,
		MaxTokens:      request.MaxTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.cfg.APIBase+"/chat/completions", bytes.NewBuffer(payload))
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to create request")
	}

	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{
		Timeout: 60 * time.Second,
	}
	resp, err := client.Do(req)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "unable to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err = fmt.Errorf("request failed with status code %d: %s", resp.StatusCode, string(body))
		tracing.TraceErr(span, err)
		return nil, err
	}

	var response chatCompletionResponse
	if err := json.Unmarshal(body, &response); err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if response.Error != nil {
		err = fmt.Errorf("completion error: %s", response.Error.Message)
		tracing.TraceErr(span, err)
		return nil, err
	}
	if len(response.Choices) == 0 {
		err = errors.New("completion returned no choices")
		tracing.TraceErr(span, err)
		return nil, err
	}

	return &dto.CompletionResponse{
		Content: response.Choices[0].Message.Content,
		Model:   response.Model,
	}, nil
}
