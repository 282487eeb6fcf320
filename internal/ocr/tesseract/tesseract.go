package tesseract

import (
	"context"
	"fmt"

	"github.com/lehigh-university-libraries/notesorter/internal/ocr"
	"github.com/otiai10/gosseract/v2"
)

// Engine implements ocr.Engine with a fresh gosseract client per image.
type Engine struct {
	tessdataPrefix string
	languages      []string
	clientFactory  func() *gosseract.Client
}

// New constructs a Tesseract-backed engine. tessdataPrefix overrides where
// trained data is loaded from; empty uses the library default.
func New(tessdataPrefix string, languages ...string) *Engine {
	return &Engine{
		tessdataPrefix: tessdataPrefix,
		languages:      languages,
		clientFactory:  gosseract.NewClient,
	}
}

// Recognize performs OCR on a PNG image.
func (e *Engine) Recognize(ctx context.Context, pngData []byte) (ocr.Recognition, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Recognition{}, err
	}

	c := e.clientFactory()
	defer c.Close()

	if err := e.configure(c); err != nil {
		return ocr.Recognition{}, err
	}
	if err := c.SetImageFromBytes(pngData); err != nil {
		return ocr.Recognition{}, fmt.Errorf("set image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return ocr.Recognition{}, fmt.Errorf("recognize text: %w", err)
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return ocr.Recognition{}, fmt.Errorf("word confidences: %w", err)
	}
	confidences := make([]float64, 0, len(boxes))
	for _, b := range boxes {
		confidences = append(confidences, b.Confidence)
	}

	return ocr.Recognition{Text: text, WordConfidences: confidences}, nil
}

// configure applies the fixed recognition settings. Engine mode 3 is the
// library default and needs no call.
func (e *Engine) configure(c *gosseract.Client) error {
	if e.tessdataPrefix != "" {
		if err := c.SetTessdataPrefix(e.tessdataPrefix); err != nil {
			return fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if len(e.languages) > 0 {
		if err := c.SetLanguage(e.languages...); err != nil {
			return fmt.Errorf("set languages: %w", err)
		}
	}
	if err := c.SetPageSegMode(gosseract.PageSegMode(ocr.PageSegMode)); err != nil {
		return fmt.Errorf("set page segmentation mode: %w", err)
	}
	if err := c.SetWhitelist(ocr.Whitelist); err != nil {
		return fmt.Errorf("set whitelist: %w", err)
	}
	return nil
}
