package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/notesorter/internal/models"
	"github.com/lehigh-university-libraries/notesorter/internal/pipeline"
	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"
)

// RunConfig records how a run was invoked
type RunConfig struct {
	Input      string   `json:"input" yaml:"input"`
	BaseFolder string   `json:"base_folder,omitempty" yaml:"base_folder,omitempty"`
	Threshold  float64  `json:"threshold" yaml:"threshold"`
	Backend    string   `json:"backend,omitempty" yaml:"backend,omitempty"`
	Extensions []string `json:"extensions,omitempty" yaml:"extensions,omitempty"`
	Timestamp  string   `json:"timestamp" yaml:"timestamp"`
}

// Report is everything one organize run produced
type Report struct {
	RunID   string                    `json:"run_id" yaml:"run_id"`
	Config  RunConfig                 `json:"config" yaml:"config"`
	Results []models.ProcessingResult `json:"results" yaml:"results"`
	Summary models.Summary            `json:"summary" yaml:"summary"`
	Uploads models.UploadManifest     `json:"uploads,omitempty" yaml:"uploads,omitempty"`
}

// New builds a report with a fresh run id and a computed summary
func New(cfg RunConfig, results []models.ProcessingResult, uploads models.UploadManifest) *Report {
	if cfg.Timestamp == "" {
		cfg.Timestamp = time.Now().Format(time.RFC3339)
	}
	return &Report{
		RunID:   uuid.NewString(),
		Config:  cfg,
		Results: results,
		Summary: pipeline.Summarize(results),
		Uploads: uploads,
	}
}

// row is the flat parquet layout, one row per processed image
type row struct {
	RunID         string  `parquet:"run_id"`
	ImagePath     string  `parquet:"image_path"`
	Text          string  `parquet:"text"`
	Subject       string  `parquet:"subject"`
	Confidence    float64 `parquet:"confidence"`
	OCRConfidence float64 `parquet:"ocr_confidence"`
	Status        string  `parquet:"status"`
}

// Save writes r in the format implied by the extension: .yaml, .yml, .json or .parquet.
// Parquet keeps only the per-image results.
func Save(path string, r *Report) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		data, err := yaml.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write YAML file: %w", err)
		}
	case ".json":
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write JSON file: %w", err)
		}
	case ".parquet":
		rows := make([]row, 0, len(r.Results))
		for _, res := range r.Results {
			rows = append(rows, row{
				RunID:         r.RunID,
				ImagePath:     res.ImagePath,
				Text:          res.Text,
				Subject:       res.Subject,
				Confidence:    res.Confidence,
				OCRConfidence: res.OCRConfidence,
				Status:        string(res.Status),
			})
		}
		if err := parquet.WriteFile(path, rows); err != nil {
			return fmt.Errorf("failed to write parquet file: %w", err)
		}
	default:
		return fmt.Errorf("unsupported report format: %s (supported: .yaml, .yml, .json, .parquet)", ext)
	}

	slog.Info("Report saved", "path", path, "run_id", r.RunID)
	return nil
}

// Load reads a report written by Save. Parquet reports get their summary recomputed.
func Load(path string) (*Report, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read report: %w", err)
		}
		var r Report
		if err := yaml.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("failed to parse YAML report: %w", err)
		}
		return &r, nil
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read report: %w", err)
		}
		var r Report
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("failed to parse JSON report: %w", err)
		}
		return &r, nil
	case ".parquet":
		return loadParquet(path)
	default:
		return nil, fmt.Errorf("unsupported report format: %s (supported: .yaml, .yml, .json, .parquet)", ext)
	}
}

func loadParquet(path string) (*Report, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[row](pf)
	defer reader.Close()

	r := &Report{}
	batch := make([]row, 128)
	for {
		n, err := reader.Read(batch)
		for _, rw := range batch[:n] {
			r.RunID = rw.RunID
			r.Results = append(r.Results, models.ProcessingResult{
				ImagePath:     rw.ImagePath,
				Text:          rw.Text,
				Subject:       rw.Subject,
				Confidence:    rw.Confidence,
				OCRConfidence: rw.OCRConfidence,
				Status:        models.Status(rw.Status),
			})
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}

	r.Summary = pipeline.Summarize(r.Results)
	return r, nil
}
