package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/notesorter/internal/classifier"
	"github.com/lehigh-university-libraries/notesorter/internal/drive"
	"github.com/lehigh-university-libraries/notesorter/internal/gemini"
	"github.com/lehigh-university-libraries/notesorter/internal/huggingface"
	"github.com/lehigh-university-libraries/notesorter/internal/ollama"
	"github.com/lehigh-university-libraries/notesorter/internal/openai"
	"github.com/lehigh-university-libraries/notesorter/internal/pipeline"
	"github.com/lehigh-university-libraries/notesorter/internal/providers"
	"github.com/lehigh-university-libraries/notesorter/internal/resilience"
)

type Config struct {
	CredentialsFile string
	TokenFile       string
	Threshold       float64
	TessdataPrefix  string
	Languages       []string
	Extensions      []string
	TaxonomyFile    string

	// Backends are tried in order until one loads
	Backends []string

	OllamaURL   string
	OllamaModel string

	HFToken string
	HFURL   string
	HFModel string

	GeminiAPIKey string
	GeminiModel  string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	DriveRequestsPerSecond float64
	DriveBurst             int
	DriveChunkSize         int

	BreakerEnabled      bool
	BreakerMinRequests  int
	BreakerFailureRatio float64
	BreakerOpenTimeout  time.Duration
}

func Load() Config {
	return Config{
		CredentialsFile: mustEnv("NOTES_CREDENTIALS", "credentials.json"),
		TokenFile:       mustEnv("NOTES_TOKEN_FILE", drive.DefaultTokenFile),
		Threshold:       mustEnvFloat("NOTES_CONFIDENCE", classifier.DefaultThreshold),
		TessdataPrefix:  mustEnv("NOTES_TESSDATA", ""),
		Languages:       mustEnvList("NOTES_LANGUAGES", []string{"eng"}),
		Extensions:      mustEnvList("NOTES_EXTENSIONS", pipeline.DefaultExtensions),
		TaxonomyFile:    mustEnv("NOTES_TAXONOMY", ""),

		Backends: mustEnvList("NOTES_BACKENDS", []string{"huggingface", "ollama"}),

		OllamaURL:   mustEnv("OLLAMA_URL", ollama.DefaultURL),
		OllamaModel: mustEnv("OLLAMA_MODEL", ollama.DefaultModel),

		HFToken: mustEnv("HF_API_TOKEN", ""),
		HFURL:   mustEnv("HF_URL", huggingface.DefaultURL),
		HFModel: mustEnv("HF_MODEL", huggingface.DefaultModel),

		GeminiAPIKey: mustEnv("GEMINI_API_KEY", ""),
		GeminiModel:  mustEnv("GEMINI_MODEL", gemini.DefaultModel),

		OpenAIAPIKey:  mustEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: mustEnv("OPENAI_BASE_URL", openai.DefaultURL),
		OpenAIModel:   mustEnv("OPENAI_MODEL", openai.DefaultModel),

		DriveRequestsPerSecond: mustEnvFloat("NOTES_DRIVE_RPS", drive.DefaultConfig().RequestsPerSecond),
		DriveBurst:             mustEnvInt("NOTES_DRIVE_BURST", drive.DefaultConfig().Burst),
		DriveChunkSize:         mustEnvInt("NOTES_DRIVE_CHUNK_SIZE", drive.DefaultChunkSize),

		BreakerEnabled:      mustEnvBool("NOTES_BREAKER_ENABLED", true),
		BreakerMinRequests:  mustEnvInt("NOTES_BREAKER_MIN_REQUESTS", 5),
		BreakerFailureRatio: mustEnvFloat("NOTES_BREAKER_FAILURE_RATIO", 0.5),
		BreakerOpenTimeout:  time.Duration(mustEnvInt("NOTES_BREAKER_OPEN_TIMEOUT_SECONDS", 30)) * time.Second,
	}
}

// Breaker returns the circuit breaker settings shared by every remote
func (c Config) Breaker() resilience.Config {
	cfg := resilience.DefaultConfig()
	cfg.Enabled = c.BreakerEnabled
	if c.BreakerMinRequests > 0 {
		cfg.MinRequests = uint32(c.BreakerMinRequests)
	}
	cfg.FailureRatio = c.BreakerFailureRatio
	cfg.OpenTimeout = c.BreakerOpenTimeout
	return cfg
}

// Drive returns the Drive client settings
func (c Config) Drive(guard *resilience.Guard) drive.Config {
	return drive.Config{
		RequestsPerSecond: c.DriveRequestsPerSecond,
		Burst:             c.DriveBurst,
		ChunkSize:         c.DriveChunkSize,
		Guard:             guard,
	}
}

// NewBackends builds the configured zero-shot backends in fallback order
func (c Config) NewBackends() ([]providers.Backend, error) {
	backends := make([]providers.Backend, 0, len(c.Backends))
	for _, name := range c.Backends {
		switch strings.ToLower(name) {
		case "huggingface", "hf":
			backends = append(backends, huggingface.New(c.HFToken, c.HFURL, c.HFModel))
		case "ollama":
			o, err := ollama.New(c.OllamaURL, c.OllamaModel)
			if err != nil {
				return nil, fmt.Errorf("failed to create ollama backend: %w", err)
			}
			backends = append(backends, o)
		case "gemini":
			backends = append(backends, gemini.New(c.GeminiAPIKey, c.GeminiModel))
		case "openai":
			backends = append(backends, openai.New(c.OpenAIAPIKey, c.OpenAIBaseURL, c.OpenAIModel))
		default:
			return nil, fmt.Errorf("unknown classifier backend: %s (supported: huggingface, ollama, gemini, openai)", name)
		}
	}
	if len(backends) == 0 {
		return nil, fmt.Errorf("no classifier backends configured")
	}
	return backends, nil
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// mustEnvList splits a comma separated value, dropping empty items
func mustEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
