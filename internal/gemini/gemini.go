package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/lehigh-university-libraries/notesorter/internal/providers"
	"google.golang.org/api/option"
)

// DefaultModel is used when no model is configured
const DefaultModel = "gemini-1.5-flash"

// Gemini asks a Gemini model for per-label entailment probabilities
type Gemini struct {
	apiKey   string
	model    string
	generate func(ctx context.Context, prompt string) (string, error)
}

// New returns a new Gemini backend
func New(apiKey, model string) *Gemini {
	if model == "" {
		model = DefaultModel
	}
	g := &Gemini{apiKey: apiKey, model: model}
	g.generate = g.generateContent
	return g
}

// Name identifies the backend
func (g *Gemini) Name() string {
	return "gemini/" + g.model
}

// Load fails fast when no API key is configured
func (g *Gemini) Load(ctx context.Context) error {
	if g.apiKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}
	return ctx.Err()
}

// ZeroShot ranks labels from the model's JSON reply
func (g *Gemini) ZeroShot(ctx context.Context, req providers.Request) (providers.Ranking, error) {
	if len(req.Labels) == 0 {
		return providers.Ranking{}, nil
	}
	reply, err := g.generate(ctx, providers.Prompt(req))
	if err != nil {
		return providers.Ranking{}, err
	}
	return providers.ParseScores(reply, req.Labels)
}

func (g *Gemini) generateContent(ctx context.Context, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to create new gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(g.model)
	model.SetTemperature(0)
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from Gemini")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("empty content returned from Gemini")
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("unexpected response format from Gemini")
	}
	return b.String(), nil
}
