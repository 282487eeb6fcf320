package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// HypothesisTemplate is the default entailment hypothesis. {} is replaced by the label.
const HypothesisTemplate = "This text is about {}."

// Request is one zero-shot classification call
type Request struct {
	Text     string
	Labels   []string
	Template string
}

// Hypotheses expands the template once per label
func (r Request) Hypotheses() []string {
	template := r.Template
	if template == "" {
		template = HypothesisTemplate
	}
	out := make([]string, len(r.Labels))
	for i, label := range r.Labels {
		out[i] = strings.ReplaceAll(template, "{}", label)
	}
	return out
}

// Ranking holds candidate labels ordered by descending score
type Ranking struct {
	Labels []string
	Scores []float64
}

// NewRanking pairs labels with scores and sorts them best first. Ties keep input order.
func NewRanking(labels []string, scores []float64) (Ranking, error) {
	if len(labels) != len(scores) {
		return Ranking{}, fmt.Errorf("got %d scores for %d labels", len(scores), len(labels))
	}
	idx := make([]int, len(labels))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})

	r := Ranking{
		Labels: make([]string, len(labels)),
		Scores: make([]float64, len(labels)),
	}
	for i, j := range idx {
		r.Labels[i] = labels[j]
		r.Scores[i] = scores[j]
	}
	return r, nil
}

// Top returns the best label and its score
func (r Ranking) Top() (string, float64, bool) {
	if len(r.Labels) == 0 {
		return "", 0, false
	}
	return r.Labels[0], r.Scores[0], true
}

// Score returns the score of label, or 0 if it was not ranked
func (r Ranking) Score(label string) float64 {
	for i, l := range r.Labels {
		if l == label {
			return r.Scores[i]
		}
	}
	return 0
}

// Backend scores text against candidate labels
type Backend interface {
	// Name identifies the backend in logs
	Name() string
	// Load verifies the backend is usable and warms up its model
	Load(ctx context.Context) error
	ZeroShot(ctx context.Context, req Request) (Ranking, error)
}

// Softmax normalizes logits into probabilities summing to 1
func Softmax(logits []float64, temperature float64) []float64 {
	if len(logits) == 0 {
		return nil
	}
	if temperature <= 0 {
		temperature = 1
	}
	maxLogit := math.Inf(-1)
	for _, l := range logits {
		maxLogit = math.Max(maxLogit, l)
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		out[i] = math.Exp((l - maxLogit) / temperature)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Prompt builds the instruction sent to chat-style backends
func Prompt(req Request) string {
	var b strings.Builder
	b.WriteString("Classify the text below. For each hypothesis, estimate the probability that the text entails it.\n")
	b.WriteString("Respond only with a JSON object mapping each label to a probability between 0 and 1. The probabilities must sum to 1.\n\n")
	b.WriteString("Labels and hypotheses:\n")
	for i, h := range req.Hypotheses() {
		fmt.Fprintf(&b, "- %s: %s\n", req.Labels[i], h)
	}
	b.WriteString("\nText:\n")
	b.WriteString(req.Text)
	return b.String()
}

// ParseScores reads a label->score JSON object out of a model reply and ranks it.
// Labels the model omitted score 0. Scores are renormalized to sum to 1.
func ParseScores(reply string, labels []string) (Ranking, error) {
	body := strings.TrimSpace(reply)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")
	if start, end := strings.Index(body, "{"), strings.LastIndex(body, "}"); start >= 0 && end > start {
		body = body[start : end+1]
	}

	var raw map[string]float64
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return Ranking{}, fmt.Errorf("failed to parse scores: %w", err)
	}

	lookup := make(map[string]float64, len(raw))
	for k, v := range raw {
		lookup[strings.ToLower(strings.TrimSpace(k))] = v
	}

	scores := make([]float64, len(labels))
	var sum float64
	for i, label := range labels {
		v := lookup[strings.ToLower(label)]
		if v < 0 || math.IsNaN(v) {
			v = 0
		}
		scores[i] = v
		sum += v
	}
	if sum == 0 {
		return Ranking{}, fmt.Errorf("reply scored none of the %d labels", len(labels))
	}
	for i := range scores {
		scores[i] /= sum
	}
	return NewRanking(labels, scores)
}
