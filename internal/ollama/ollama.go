package ollama

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/lehigh-university-libraries/notesorter/internal/providers"
	"github.com/ollama/ollama/api"
)

const (
	// DefaultURL is where a local Ollama listens
	DefaultURL = "http://localhost:11434"
	// DefaultModel is the embedding model used for entailment scoring
	DefaultModel = "nomic-embed-text"
	// similarities between sentence embeddings sit in a narrow band
	softmaxTemperature = 0.05
)

// Ollama scores labels by embedding similarity between the text and each hypothesis
type Ollama struct {
	client *api.Client
	model  string
}

// New returns a new Ollama backend. Empty arguments fall back to the defaults.
func New(baseURL, model string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if model == "" {
		model = DefaultModel
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ollama url %q: %w", baseURL, err)
	}
	return &Ollama{
		client: api.NewClient(u, http.DefaultClient),
		model:  model,
	}, nil
}

// Name identifies the backend
func (o *Ollama) Name() string {
	return "ollama/" + o.model
}

// Load checks the server is up and the model is pulled
func (o *Ollama) Load(ctx context.Context) error {
	if err := o.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("ollama is not reachable: %w", err)
	}
	if _, err := o.client.Show(ctx, &api.ShowRequest{Model: o.model}); err != nil {
		return fmt.Errorf("failed to load model %s: %w", o.model, err)
	}
	return nil
}

// ZeroShot embeds the text with every hypothesis in one batch and ranks labels by similarity
func (o *Ollama) ZeroShot(ctx context.Context, req providers.Request) (providers.Ranking, error) {
	if len(req.Labels) == 0 {
		return providers.Ranking{}, nil
	}

	inputs := append([]string{req.Text}, req.Hypotheses()...)
	resp, err := o.client.Embed(ctx, &api.EmbedRequest{
		Model:     o.model,
		Input:     inputs,
		KeepAlive: &api.Duration{Duration: 30 * time.Minute},
	})
	if err != nil {
		return providers.Ranking{}, fmt.Errorf("failed to embed: %w", err)
	}
	if len(resp.Embeddings) != len(inputs) {
		return providers.Ranking{}, fmt.Errorf("expected %d embeddings, got %d", len(inputs), len(resp.Embeddings))
	}

	text := resp.Embeddings[0]
	sims := make([]float64, len(req.Labels))
	for i := range req.Labels {
		sims[i] = cosine(text, resp.Embeddings[i+1])
	}

	return providers.NewRanking(req.Labels, providers.Softmax(sims, softmaxTemperature))
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
