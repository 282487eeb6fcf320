package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/notesorter/internal/classifier"
	"github.com/lehigh-university-libraries/notesorter/internal/metrics"
	"github.com/lehigh-university-libraries/notesorter/internal/models"
)

// ContainerFolder holds every subject folder the pipeline creates
const ContainerFolder = "OrganizedNotes"

// DefaultExtensions are the image types picked up from a directory
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".tif"}

// Extractor reads text out of note images
type Extractor interface {
	ExtractText(ctx context.Context, imagePath string) (string, error)
	Confidence(ctx context.Context, imagePath string) (float64, error)
}

// Classifier assigns a subject to extracted text
type Classifier interface {
	Classify(ctx context.Context, text string, threshold float64) (classifier.Classification, error)
}

// Organizer files images into subject folders on the remote drive
type Organizer interface {
	GetOrCreateFolder(ctx context.Context, name, parentID string) (string, error)
	OrganizeBySubject(ctx context.Context, results []models.ProcessingResult, baseFolderID string) models.UploadManifest
}

// Coordinator runs images through extraction, classification and upload, one at a time
type Coordinator struct {
	extractor  Extractor
	classifier Classifier
	organizer  Organizer
	metrics    *metrics.RunMetrics
}

// New creates a Coordinator. m may be nil.
func New(extractor Extractor, cls Classifier, organizer Organizer, m *metrics.RunMetrics) *Coordinator {
	return &Coordinator{
		extractor:  extractor,
		classifier: cls,
		organizer:  organizer,
		metrics:    m,
	}
}

// ProcessOne extracts and classifies a single image. Leaf failures degrade to empty
// text or an unknown subject; only cancellation produces StatusError.
func (c *Coordinator) ProcessOne(ctx context.Context, imagePath string, threshold float64) models.ProcessingResult {
	start := time.Now()
	result := c.process(ctx, imagePath, threshold)
	c.metrics.ObserveImage(result, time.Since(start))
	return result
}

func (c *Coordinator) process(ctx context.Context, imagePath string, threshold float64) models.ProcessingResult {
	slog.Info("Processing image", "path", imagePath)

	failed := models.ProcessingResult{
		ImagePath: imagePath,
		Subject:   models.UnknownSubject,
		Status:    models.StatusError,
	}
	if ctx.Err() != nil {
		return failed
	}

	text, err := c.extractor.ExtractText(ctx, imagePath)
	if err != nil {
		if ctx.Err() != nil {
			return failed
		}
		slog.Error("Failed to extract text", "path", imagePath, "error", err)
		text = ""
	}
	if strings.TrimSpace(text) == "" {
		slog.Warn("No text extracted", "path", imagePath)
		return models.ProcessingResult{
			ImagePath: imagePath,
			Subject:   models.UnknownSubject,
			Status:    models.StatusNoTextExtracted,
		}
	}

	ocrConfidence, err := c.extractor.Confidence(ctx, imagePath)
	if err != nil {
		if ctx.Err() != nil {
			failed.Text = text
			return failed
		}
		slog.Error("Failed to read OCR confidence", "path", imagePath, "error", err)
		ocrConfidence = 0
	}

	cls, err := c.classifier.Classify(ctx, text, threshold)
	if err != nil {
		if ctx.Err() != nil {
			failed.Text = text
			failed.OCRConfidence = ocrConfidence
			return failed
		}
		slog.Error("Failed to classify text", "path", imagePath, "error", err)
		cls = classifier.Classification{Subject: models.UnknownSubject}
	}

	slog.Info("Classification result", "path", imagePath, "subject", cls.Subject, "confidence", fmt.Sprintf("%.2f", cls.Score))
	return models.ProcessingResult{
		ImagePath:     imagePath,
		Text:          text,
		Subject:       cls.Subject,
		Confidence:    cls.Score,
		OCRConfidence: ocrConfidence,
		Status:        models.StatusSuccess,
	}
}

// ProcessMany processes images sequentially, preserving order
func (c *Coordinator) ProcessMany(ctx context.Context, imagePaths []string, threshold float64) []models.ProcessingResult {
	results := make([]models.ProcessingResult, 0, len(imagePaths))
	for i, imagePath := range imagePaths {
		slog.Info("Processing image", "progress", fmt.Sprintf("%d/%d", i+1, len(imagePaths)), "file", filepath.Base(imagePath))
		results = append(results, c.ProcessOne(ctx, imagePath, threshold))
	}
	return results
}

// OrganizeAndUpload uploads the successful results into subject folders under
// OrganizedNotes, itself under baseFolderID (or the drive root when empty)
func (c *Coordinator) OrganizeAndUpload(ctx context.Context, results []models.ProcessingResult, baseFolderID string) models.UploadManifest {
	slog.Info("Organizing and uploading notes")

	var valid []models.ProcessingResult
	for _, r := range results {
		if r.Succeeded() {
			valid = append(valid, r)
		}
	}
	if len(valid) == 0 {
		slog.Warn("No valid results to upload")
		return models.UploadManifest{}
	}

	containerID, err := c.organizer.GetOrCreateFolder(ctx, ContainerFolder, baseFolderID)
	if err != nil {
		slog.Error("Failed to create folder", "name", ContainerFolder, "error", err)
		return models.UploadManifest{}
	}
	slog.Info("Using folder", "name", ContainerFolder, "id", containerID)

	manifest := c.organizer.OrganizeBySubject(ctx, valid, containerID)
	for subject, ids := range manifest {
		slog.Info("Upload summary", "subject", subject, "files", len(ids))
	}
	c.metrics.ObserveUploads(manifest)
	return manifest
}

// ProcessDirectory processes every image directly inside dir whose extension is
// in extensions (case-insensitive), then uploads the successful ones
func (c *Coordinator) ProcessDirectory(ctx context.Context, dir string, extensions []string, threshold float64, baseFolderID string) (models.DirectoryResult, error) {
	imagePaths, err := FindImages(dir, extensions)
	if err != nil {
		return models.DirectoryResult{}, err
	}
	if len(imagePaths) == 0 {
		slog.Warn("No image files found", "dir", dir)
		return models.DirectoryResult{Uploads: models.UploadManifest{}}, nil
	}
	slog.Info("Found image files to process", "count", len(imagePaths))

	results := c.ProcessMany(ctx, imagePaths, threshold)
	uploads := c.OrganizeAndUpload(ctx, results, baseFolderID)

	return models.DirectoryResult{
		Results:           results,
		Uploads:           uploads,
		TotalImages:       len(imagePaths),
		SuccessfulUploads: uploads.Count(),
	}, nil
}

// FindImages lists the files directly in dir with a matching extension, sorted by name.
// Extensions may be given as ".jpg", "jpg" or "*.jpg".
func FindImages(dir string, extensions []string) ([]string, error) {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	wanted := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "*"))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		wanted[ext] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, models.WrapError(models.ErrInvalidInputPath, "read "+dir, err)
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if wanted[strings.ToLower(filepath.Ext(e.Name()))] {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	return paths, nil
}

// Summarize aggregates results. Averages are taken over every result.
func Summarize(results []models.ProcessingResult) models.Summary {
	s := models.Summary{
		TotalImages:         len(results),
		SubjectDistribution: map[string]int{},
	}
	if len(results) == 0 {
		return s
	}

	var ocrTotal, clsTotal float64
	for _, r := range results {
		if r.Status == models.StatusSuccess {
			s.SuccessfulExtractions++
		}
		if r.Subject != models.UnknownSubject {
			s.SuccessfulClassifications++
		}
		s.SubjectDistribution[r.Subject]++
		ocrTotal += r.OCRConfidence
		clsTotal += r.Confidence
	}
	s.AverageOCRConfidence = ocrTotal / float64(len(results))
	s.AverageClassificationConfidence = clsTotal / float64(len(results))
	return s
}
