package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// OpenAIClient is a thin chat-completions client shared by the meal analyzer
// and the chat assistant. Credentials come from the environment like the
// rest of the external integrations.
type OpenAIClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewOpenAIClient() *OpenAIClient {
	base := os.Getenv("OPENAI_BASE_URL")
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	return &OpenAIClient{
		apiKey:  os.Getenv("OPENAI_API_KEY"),
		baseURL: base,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ChatCompletion posts a chat-completions request and returns the first
// choice's content.
func (c *OpenAIClient) ChatCompletion(ctx context.Context, model string, temperature float64, messages []chatMessage) (string, error) {
	payload := map[string]interface{}{
		"model":       model,
		"messages":    messages,
		"temperature": temperature,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("failed to create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call completion API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read completion response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion API error %d: %s", resp.StatusCode, string(body))
	}

	var cr chatCompletionResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return "", fmt.Errorf("failed to parse completion JSON: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return cr.Choices[0].Message.Content, nil
}
