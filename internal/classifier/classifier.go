package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/lehigh-university-libraries/notesorter/internal/models"
	"github.com/lehigh-university-libraries/notesorter/internal/providers"
	"github.com/lehigh-university-libraries/notesorter/internal/resilience"
	"github.com/lehigh-university-libraries/notesorter/internal/taxonomy"
)

const (
	// DefaultThreshold is the minimum score accepted as a subject
	DefaultThreshold = 0.3
	// MinTextLength is the shortest preprocessed text worth classifying
	MinTextLength = 10
)

var disallowed = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?;:\-()\[\]{}]`)

// Classification is the chosen subject and the score behind it
type Classification struct {
	Subject string  `json:"subject" yaml:"subject"`
	Score   float64 `json:"score" yaml:"score"`
}

func unknown(score float64) Classification {
	return Classification{Subject: models.UnknownSubject, Score: score}
}

// Classifier assigns subjects to note text with a zero-shot backend.
// Backends are tried in order on first use; the first one that loads is kept.
// When none load the classifier stays disabled for the life of the process.
type Classifier struct {
	subjects *taxonomy.Taxonomy
	backends []providers.Backend
	guard    *resilience.Guard
	template string

	mu       sync.Mutex
	loaded   bool
	active   providers.Backend
	disabled bool
}

// Option configures a Classifier
type Option func(*Classifier)

// WithGuard routes backend calls through a circuit breaker
func WithGuard(g *resilience.Guard) Option {
	return func(c *Classifier) { c.guard = g }
}

// WithTemplate overrides the hypothesis template
func WithTemplate(template string) Option {
	return func(c *Classifier) { c.template = template }
}

// New creates a classifier over subjects. backends are ordered by preference.
func New(subjects *taxonomy.Taxonomy, backends []providers.Backend, opts ...Option) *Classifier {
	if subjects == nil {
		subjects = taxonomy.Default()
	}
	c := &Classifier{
		subjects: subjects,
		backends: backends,
		template: providers.HypothesisTemplate,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Preprocess normalizes OCR text before classification
func Preprocess(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	text = disallowed.ReplaceAllString(text, " ")
	text = strings.ToLower(text)

	words := strings.Fields(text)
	kept := words[:0]
	for _, w := range words {
		if utf8.RuneCountInString(w) > 2 {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// Ready loads a backend if needed and reports whether classification is available
func (c *Classifier) Ready(ctx context.Context) bool {
	_, ok := c.backend(ctx)
	return ok
}

// Backend returns the name of the loaded backend, or "" when none is loaded
func (c *Classifier) Backend() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return ""
	}
	return c.active.Name()
}

func (c *Classifier) backend(ctx context.Context) (providers.Backend, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return c.active, !c.disabled
	}

	for _, b := range c.backends {
		slog.Info("Loading classification backend", "backend", b.Name())
		err := b.Load(ctx)
		if err == nil {
			slog.Info("Classification backend loaded", "backend", b.Name())
			c.active, c.loaded = b, true
			return b, true
		}
		// an interrupted load says nothing about the backend
		if ctx.Err() != nil {
			return nil, false
		}
		slog.Warn("Failed to load classification backend", "backend", b.Name(), "error", models.WrapError(models.ErrModelLoad, "load "+b.Name(), err))
	}

	slog.Error("No classification backend could be loaded, subjects will be unknown", "tried", len(c.backends))
	c.loaded, c.disabled = true, true
	return nil, false
}

// Classify returns the best subject for text. Scores below threshold yield unknown with the score kept.
// Short text and a disabled classifier yield unknown with score 0 and no error.
func (c *Classifier) Classify(ctx context.Context, text string, threshold float64) (Classification, error) {
	cleaned := Preprocess(text)
	if utf8.RuneCountInString(cleaned) < MinTextLength {
		return unknown(0), nil
	}
	b, ok := c.backend(ctx)
	if !ok {
		return unknown(0), nil
	}

	ranking, err := c.zeroShot(ctx, b, cleaned, c.subjects.Labels())
	if err != nil {
		return unknown(0), err
	}
	label, score, ok := ranking.Top()
	if !ok {
		return unknown(0), models.WrapError(models.ErrRemoteCall, "classify", errors.New("empty ranking"))
	}

	slog.Debug("Classified text", "subject", label, "score", score, "backend", b.Name())
	if score >= threshold {
		return Classification{Subject: label, Score: score}, nil
	}
	return unknown(score), nil
}

// ConfidenceFor scores text against one subject. Unknown subjects score 0.
func (c *Classifier) ConfidenceFor(ctx context.Context, text, subject string) (float64, error) {
	if !c.subjects.Contains(subject) {
		return 0, nil
	}
	cleaned := Preprocess(text)
	if utf8.RuneCountInString(cleaned) < MinTextLength {
		return 0, nil
	}
	b, ok := c.backend(ctx)
	if !ok {
		return 0, nil
	}

	ranking, err := c.zeroShot(ctx, b, cleaned, []string{subject})
	if err != nil {
		return 0, err
	}
	return ranking.Score(subject), nil
}

// ClassifyMany classifies each text in order. Failures yield unknown.
func (c *Classifier) ClassifyMany(ctx context.Context, texts []string, threshold float64) []Classification {
	out := make([]Classification, 0, len(texts))
	for _, text := range texts {
		cls, err := c.Classify(ctx, text, threshold)
		if err != nil {
			slog.Error("Failed to classify text", "error", err)
		}
		out = append(out, cls)
	}
	return out
}

// Subjects returns the configured subjects in order
func (c *Classifier) Subjects() []taxonomy.Subject {
	return c.subjects.Subjects()
}

// SubjectDescription describes subject, or returns "Unknown subject"
func (c *Classifier) SubjectDescription(subject string) string {
	return c.subjects.Description(subject)
}

// AddCustomSubject adds or redescribes a subject. Names are lowercased.
func (c *Classifier) AddCustomSubject(name, description string) {
	c.subjects.Add(name, description)
}

func (c *Classifier) zeroShot(ctx context.Context, b providers.Backend, text string, labels []string) (providers.Ranking, error) {
	var ranking providers.Ranking
	err := c.guard.Do(ctx, "classify."+b.Name(), func(ctx context.Context) error {
		var err error
		ranking, err = b.ZeroShot(ctx, providers.Request{
			Text:     text,
			Labels:   labels,
			Template: c.template,
		})
		return err
	})
	if err != nil {
		return providers.Ranking{}, models.WrapError(models.ErrRemoteCall, fmt.Sprintf("zero-shot via %s", b.Name()), err)
	}
	return ranking, nil
}
