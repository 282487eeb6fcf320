package metrics

import (
	"fmt"
	"time"

	"github.com/lehigh-university-libraries/notesorter/internal/models"
	"github.com/prometheus/client_golang/prometheus"
)

// RunMetrics counts what one organize run did. A nil *RunMetrics records nothing.
type RunMetrics struct {
	registry *prometheus.Registry

	imagesTotal     *prometheus.CounterVec
	imageDuration   *prometheus.HistogramVec
	uploadsTotal    *prometheus.CounterVec
	ocrConfidence   prometheus.Histogram
	lastRunFinished prometheus.Gauge
}

// New registers the run metrics in a private registry
func New() *RunMetrics {
	registry := prometheus.NewRegistry()

	imagesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notesorter",
			Name:      "images_processed_total",
			Help:      "Processed note images by final status.",
		},
		[]string{"status"},
	)
	imageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "notesorter",
			Name:      "image_processing_duration_seconds",
			Help:      "Time to extract and classify one image.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"status"},
	)
	uploadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notesorter",
			Name:      "uploads_total",
			Help:      "Images uploaded to the remote drive by subject.",
		},
		[]string{"subject"},
	)
	ocrConfidence := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "notesorter",
			Name:      "ocr_confidence",
			Help:      "Mean word confidence reported by the OCR engine per image.",
			Buckets:   prometheus.LinearBuckets(10, 10, 9),
		},
	)
	lastRunFinished := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "notesorter",
			Name:      "last_run_finished_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		},
	)

	registry.MustRegister(imagesTotal, imageDuration, uploadsTotal, ocrConfidence, lastRunFinished)

	return &RunMetrics{
		registry:        registry,
		imagesTotal:     imagesTotal,
		imageDuration:   imageDuration,
		uploadsTotal:    uploadsTotal,
		ocrConfidence:   ocrConfidence,
		lastRunFinished: lastRunFinished,
	}
}

// ObserveImage records one finished image
func (m *RunMetrics) ObserveImage(result models.ProcessingResult, duration time.Duration) {
	if m == nil {
		return
	}
	status := string(result.Status)
	m.imagesTotal.WithLabelValues(status).Inc()
	m.imageDuration.WithLabelValues(status).Observe(duration.Seconds())
	if result.Status != models.StatusError {
		m.ocrConfidence.Observe(result.OCRConfidence)
	}
}

// ObserveUploads records every upload in manifest
func (m *RunMetrics) ObserveUploads(manifest models.UploadManifest) {
	if m == nil {
		return
	}
	for subject, ids := range manifest {
		m.uploadsTotal.WithLabelValues(subject).Add(float64(len(ids)))
	}
}

// Finish stamps the run completion time
func (m *RunMetrics) Finish(t time.Time) {
	if m == nil {
		return
	}
	m.lastRunFinished.Set(float64(t.Unix()))
}

// Gatherer exposes the private registry
func (m *RunMetrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes the metrics in text exposition format for the node_exporter textfile collector
func (m *RunMetrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
