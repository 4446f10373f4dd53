package ai

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"

	"github.com/procurehq/rfpstack/dto"
	"github.com/procurehq/rfpstack/internal/config"
)

func newTestService(handler http.HandlerFunc) (*aiService, *httptest.Server) {
	server := httptest.NewServer(handler)
	cfg := &config.OpenAIConfig{
		APIKey:      "test-key",
		APIBase:     server.URL,
		Model:       "gpt-4o-mini",
		VisionModel: "gpt-4o",
	}
	return NewAIService(cfg).(*aiService), server
}

func completionBody(content string) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"model": "gpt-4o-mini",
		"choices": []map[string]interface{}{
			{"message": map[string]interface{}{"content": content}},
		},
	})
	return body
}

func TestCreateCompletion(t *testing.T) {
	var captured chatCompletionRequest
	s, server := newTestService(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write(completionBody(`{"ok":true}`))
	})
	defer server.Close()

	response, err := s.CreateCompletion(context.Background(), dto.CompletionRequest{Prompt: "extract the proposal"})

	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, response.Content)
	assert.Equal(t, "gpt-4o-mini", captured.Model)
	assert.Equal(t, 0.0, captured.Temperature)
	require.NotNil(t, captured.ResponseFormat)
	assert.Equal(t, "json_object", captured.ResponseFormat.Type)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, "extract the proposal", captured.Messages[0].Content)
}

func TestCreateCompletion_ImagesSwitchToVisionModel(t *testing.T) {
	var captured chatCompletionRequest
	s, server := newTestService(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write(completionBody(`{}`))
	})
	defer server.Close()

	_, err := s.CreateCompletion(context.Background(), dto.CompletionRequest{
		Prompt: "read the scan",
		ImagePayloads: []dto.ImagePayload{
			{ContentType: "image/png", Base64Data: "aW1n"},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", captured.Model)

	// Content becomes a text part followed by one image part
	parts := captured.Messages[0].Content.([]interface{})
	require.Len(t, parts, 2)
	imagePart := parts[1].(map[string]interface{})
	assert.Equal(t, "image_url", imagePart["type"])
	imageRef := imagePart["image_url"].(map[string]interface{})
	assert.Equal(t, "data:image/png;base64,aW1n", imageRef["url"])
}

func TestCreateCompletion_HTTPErrorSurfaces(t *testing.T) {
	s, server := newTestService(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	})
	defer server.Close()

	response, err := s.CreateCompletion(context.Background(), dto.CompletionRequest{Prompt: "x"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Nil(t, response)
}

func TestCreateCompletion_NoChoicesFails(t *testing.T) {
	s, server := newTestService(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model":"gpt-4o-mini","choices":[]}`))
	})
	defer server.Close()

	response, err := s.CreateCompletion(context.Background(), dto.CompletionRequest{Prompt: "x"})

	require.Error(t, err)
	assert.Nil(t, response)
}
