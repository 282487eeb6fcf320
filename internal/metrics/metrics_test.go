package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/notesorter/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserve(t *testing.T) {
	m := New()
	m.ObserveImage(models.ProcessingResult{Status: models.StatusSuccess, OCRConfidence: 85}, 2*time.Second)
	m.ObserveImage(models.ProcessingResult{Status: models.StatusSuccess, OCRConfidence: 70}, time.Second)
	m.ObserveImage(models.ProcessingResult{Status: models.StatusNoTextExtracted}, 100*time.Millisecond)
	m.ObserveUploads(models.UploadManifest{"biology": {"a", "b"}, "art": {"c"}})

	if got := testutil.ToFloat64(m.imagesTotal.WithLabelValues("success")); got != 2 {
		t.Errorf("Expected 2 successes, got %.0f", got)
	}
	if got := testutil.ToFloat64(m.imagesTotal.WithLabelValues("no_text_extracted")); got != 1 {
		t.Errorf("Expected 1 empty image, got %.0f", got)
	}
	if got := testutil.ToFloat64(m.uploadsTotal.WithLabelValues("biology")); got != 2 {
		t.Errorf("Expected 2 biology uploads, got %.0f", got)
	}
	if got := testutil.CollectAndCount(m.imageDuration); got != 2 {
		t.Errorf("Expected 2 duration series, got %d", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.ObserveImage(models.ProcessingResult{Status: models.StatusError}, time.Second)
	m.Finish(time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "notesorter.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read metrics: %v", err)
	}
	for _, want := range []string{
		`notesorter_images_processed_total{status="error"} 1`,
		"notesorter_last_run_finished_timestamp_seconds 1.7e+09",
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("Expected %q in output:\n%s", want, data)
		}
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *RunMetrics
	m.ObserveImage(models.ProcessingResult{Status: models.StatusSuccess}, time.Second)
	m.ObserveUploads(models.UploadManifest{"x": {"1"}})
	m.Finish(time.Now())
	if err := m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Errorf("Expected nil metrics to write nothing, got %v", err)
	}
}
