package huggingface

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
	// DefaultURL is the hosted inference API
	DefaultURL = "https://api-inference.huggingface.co"
	// DefaultModel is the natural language inference model used for zero-shot classification
	DefaultModel = "facebook/bart-large-mnli"
)

// HuggingFace runs zero-shot classification on the hosted inference API
type HuggingFace struct {
	token   string
	baseURL string
	model   string
	client  *http.Client
}

// New returns a new Hugging Face backend
func New(token, baseURL, model string) *HuggingFace {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &HuggingFace{
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{},
	}
}

// Name identifies the backend
func (h *HuggingFace) Name() string {
	return "huggingface/" + h.model
}

// Load checks the model is served. The inference API answers 503 while it is still loading.
func (h *HuggingFace) Load(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", h.modelURL(), nil)
	if err != nil {
		return fmt.Errorf("failed to create new request: %w", err)
	}
	h.authorize(req)

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("model %s unavailable: %d - %s", h.model, resp.StatusCode, string(body))
	}
	return nil
}

// ZeroShot scores the text against every label in a single call
func (h *HuggingFace) ZeroShot(ctx context.Context, r providers.Request) (providers.Ranking, error) {
	if len(r.Labels) == 0 {
		return providers.Ranking{}, nil
	}
	template := r.Template
	if template == "" {
		template = providers.HypothesisTemplate
	}

	requestBody, err := json.Marshal(map[string]interface{}{
		"inputs": r.Text,
		"parameters": map[string]interface{}{
			"candidate_labels":    r.Labels,
			"hypothesis_template": template,
			"multi_label":         false,
		},
		"options": map[string]interface{}{
			"wait_for_model": true,
		},
	})
	if err != nil {
		return providers.Ranking{}, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", h.modelURL(), bytes.NewBuffer(requestBody))
	if err != nil {
		return providers.Ranking{}, fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	h.authorize(req)

	resp, err := h.client.Do(req)
	if err != nil {
		return providers.Ranking{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return providers.Ranking{}, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return providers.Ranking{}, fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(body))
	}

	labels, scores, err := decode(body)
	if err != nil {
		return providers.Ranking{}, err
	}
	return providers.NewRanking(labels, scores)
}

// decode accepts both the classic {labels, scores} object and the newer list of {label, score}
func decode(body []byte) ([]string, []float64, error) {
	var classic struct {
		Labels []string  `json:"labels"`
		Scores []float64 `json:"scores"`
	}
	if err := json.Unmarshal(body, &classic); err == nil && len(classic.Labels) > 0 {
		return classic.Labels, classic.Scores, nil
	}

	var pairs []struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal(body, &pairs); err != nil {
		return nil, nil, fmt.Errorf("failed to decode response body: %w", err)
	}
	if len(pairs) == 0 {
		return nil, nil, fmt.Errorf("no labels returned from Hugging Face")
	}
	labels := make([]string, len(pairs))
	scores := make([]float64, len(pairs))
	for i, p := range pairs {
		labels[i] = p.Label
		scores[i] = p.Score
	}
	return labels, scores, nil
}

func (h *HuggingFace) modelURL() string {
	return h.baseURL + "/models/" + h.model
}

func (h *HuggingFace) authorize(req *http.Request) {
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
}
