package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"os"

	"github.com/disintegration/imaging"
	"github.com/lehigh-university-libraries/notesorter/internal/models"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// PageSegMode 6 assumes a single uniform block of text.
	PageSegMode = 6
	// EngineMode 3 is the engine's default (LSTM with legacy fallback).
	EngineMode = 3
	// Whitelist restricts recognition to alphanumerics and common punctuation.
	Whitelist = `0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz.,!?;:()[]{}"'-+=/* `
)

// Recognition is the raw output of an OCR engine for one image
type Recognition struct {
	Text            string
	WordConfidences []float64 // 0-100 per word, negative when the engine has none
}

// Engine recognizes text in a PNG-encoded, already preprocessed image
type Engine interface {
	Recognize(ctx context.Context, pngData []byte) (Recognition, error)
}

// Extraction is cleaned text plus its mean confidence
type Extraction struct {
	Text       string
	Confidence float64
}

// PathText pairs an image path with the text extracted from it
type PathText struct {
	ImagePath string
	Text      string
}

// Service extracts text from note images
type Service struct {
	engine Engine
}

// NewService creates a new OCR service on top of engine
func NewService(engine Engine) *Service {
	return &Service{engine: engine}
}

// ExtractText returns the cleaned text found in the image at imagePath
func (s *Service) ExtractText(ctx context.Context, imagePath string) (string, error) {
	rec, err := s.recognize(ctx, imagePath)
	if err != nil {
		return "", err
	}
	return CleanText(rec.Text), nil
}

// Confidence returns the mean word confidence (0-100) for the image at imagePath
func (s *Service) Confidence(ctx context.Context, imagePath string) (float64, error) {
	rec, err := s.recognize(ctx, imagePath)
	if err != nil {
		return 0, err
	}
	return MeanConfidence(rec.WordConfidences), nil
}

// Extract runs recognition once and returns both text and confidence
func (s *Service) Extract(ctx context.Context, imagePath string) (Extraction, error) {
	rec, err := s.recognize(ctx, imagePath)
	if err != nil {
		return Extraction{}, err
	}
	return Extraction{
		Text:       CleanText(rec.Text),
		Confidence: MeanConfidence(rec.WordConfidences),
	}, nil
}

// ExtractMany extracts text from each image in order. Failures yield empty text.
func (s *Service) ExtractMany(ctx context.Context, imagePaths []string) []PathText {
	results := make([]PathText, 0, len(imagePaths))
	for _, imagePath := range imagePaths {
		if _, err := os.Stat(imagePath); err != nil {
			slog.Warn("Image file not found", "path", imagePath)
			results = append(results, PathText{ImagePath: imagePath})
			continue
		}

		text, err := s.ExtractText(ctx, imagePath)
		if err != nil {
			slog.Error("Failed to extract text", "path", imagePath, "error", err)
		}
		results = append(results, PathText{ImagePath: imagePath, Text: text})
	}
	return results
}

func (s *Service) recognize(ctx context.Context, imagePath string) (Recognition, error) {
	img, err := loadImage(imagePath)
	if err != nil {
		return Recognition{}, models.WrapError(models.ErrImageUnreadable, "load "+imagePath, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, Preprocess(img)); err != nil {
		return Recognition{}, models.WrapError(models.ErrImageUnreadable, "encode "+imagePath, err)
	}

	rec, err := s.engine.Recognize(ctx, buf.Bytes())
	if err != nil {
		return Recognition{}, models.WrapError(models.ErrImageUnreadable, "recognize "+imagePath, err)
	}

	slog.Debug("Recognized image", "path", imagePath, "length", len(rec.Text), "words", len(rec.WordConfidences))
	return rec, nil
}

func loadImage(imagePath string) (image.Image, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	// phone photos of notes usually carry an EXIF rotation
	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}
