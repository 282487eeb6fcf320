package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/lehigh-university-libraries/notesorter/internal/models"
)

// Write renders r to w as text, json or csv
func Write(w io.Writer, r *Report, format string) error {
	switch format {
	case "text":
		return writeText(w, r)
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(r)
	case "csv":
		return writeCSV(w, r)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// WriteSummary prints the processing summary block
func WriteSummary(w io.Writer, s models.Summary) {
	rule := strings.Repeat("=", 50)
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "PROCESSING SUMMARY")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Total images processed: %d\n", s.TotalImages)
	fmt.Fprintf(w, "Successful text extractions: %d\n", s.SuccessfulExtractions)
	fmt.Fprintf(w, "Successful classifications: %d\n", s.SuccessfulClassifications)
	fmt.Fprintf(w, "Average OCR confidence: %.2f\n", s.AverageOCRConfidence)
	fmt.Fprintf(w, "Average classification confidence: %.2f\n", s.AverageClassificationConfidence)
	fmt.Fprintln(w, "\nSubject Distribution:")
	for _, subject := range SortedSubjects(s.SubjectDistribution) {
		fmt.Fprintf(w, "  %s: %d\n", subject, s.SubjectDistribution[subject])
	}
}

// WriteUploads prints how many files went into each subject folder
func WriteUploads(w io.Writer, m models.UploadManifest) {
	fmt.Fprintln(w, "\nUpload Summary:")
	subjects := make([]string, 0, len(m))
	for subject := range m {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)
	for _, subject := range subjects {
		fmt.Fprintf(w, "  %s: %d files uploaded\n", subject, len(m[subject]))
	}
}

// SortedSubjects orders a distribution by count, then name
func SortedSubjects(dist map[string]int) []string {
	subjects := make([]string, 0, len(dist))
	for subject := range dist {
		subjects = append(subjects, subject)
	}
	sort.Slice(subjects, func(i, j int) bool {
		if dist[subjects[i]] != dist[subjects[j]] {
			return dist[subjects[i]] > dist[subjects[j]]
		}
		return subjects[i] < subjects[j]
	})
	return subjects
}

func writeText(w io.Writer, r *Report) error {
	fmt.Fprintf(w, "Run:       %s\n", r.RunID)
	if r.Config.Input != "" {
		fmt.Fprintf(w, "Input:     %s\n", r.Config.Input)
		fmt.Fprintf(w, "Threshold: %.2f\n", r.Config.Threshold)
	}
	if r.Config.Timestamp != "" {
		fmt.Fprintf(w, "Started:   %s\n", r.Config.Timestamp)
	}

	WriteSummary(w, r.Summary)

	fmt.Fprintln(w, "\nResults:")
	for i, res := range r.Results {
		fmt.Fprintf(w, "[%d] %s\n", i+1, res.ImagePath)
		fmt.Fprintf(w, "    status=%s subject=%s confidence=%.2f ocr=%.2f\n", res.Status, res.Subject, res.Confidence, res.OCRConfidence)
	}

	if len(r.Uploads) > 0 {
		WriteUploads(w, r.Uploads)
	}
	return nil
}

func writeCSV(w io.Writer, r *Report) error {
	writer := csv.NewWriter(w)

	header := []string{"image_path", "status", "subject", "confidence", "ocr_confidence", "text"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, res := range r.Results {
		record := []string{
			res.ImagePath,
			string(res.Status),
			res.Subject,
			fmt.Sprintf("%.4f", res.Confidence),
			fmt.Sprintf("%.2f", res.OCRConfidence),
			res.Text,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
