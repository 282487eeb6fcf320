package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/notesorter/internal/providers"
)

const (
	// DefaultURL is the public OpenAI API
	DefaultURL = "https://api.openai.com/v1"
	// DefaultModel is used when no model is configured
	DefaultModel = "gpt-4o-mini"
)

// OpenAI asks a chat completion model for per-label entailment probabilities
type OpenAI struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// New returns a new OpenAI backend. baseURL may point at any compatible server.
func New(apiKey, baseURL, model string) *OpenAI {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &OpenAI{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{},
	}
}

// Name identifies the backend
func (o *OpenAI) Name() string {
	return "openai/" + o.model
}

// Load fails fast when no API key is configured
func (o *OpenAI) Load(ctx context.Context) error {
	if o.apiKey == "" {
		return fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	return ctx.Err()
}

// ZeroShot ranks labels from the model's JSON reply
func (o *OpenAI) ZeroShot(ctx context.Context, req providers.Request) (providers.Ranking, error) {
	if len(req.Labels) == 0 {
		return providers.Ranking{}, nil
	}
	reply, err := o.complete(ctx, providers.Prompt(req))
	if err != nil {
		return providers.Ranking{}, err
	}
	return providers.ParseScores(reply, req.Labels)
}

func (o *OpenAI) complete(ctx context.Context, prompt string) (string, error) {
	requestBody, err := json.Marshal(map[string]interface{}{
		"model": o.model,
		"messages": []map[string]string{
			{
				"role":    "user",
				"content": prompt,
			},
		},
		"temperature":     0,
		"response_format": map[string]string{"type": "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/chat/completions", bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(body))
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from OpenAI")
	}

	return response.Choices[0].Message.Content, nil
}
