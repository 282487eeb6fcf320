package models

import "time"

// Status is the terminal state of one processed image
type Status string

const (
	StatusSuccess         Status = "success"
	StatusNoTextExtracted Status = "no_text_extracted"
	StatusError           Status = "error"
)

// UnknownSubject is assigned when classification is rejected or impossible
const UnknownSubject = "unknown"

// ProcessingResult is the outcome of running one image through the pipeline
type ProcessingResult struct {
	ImagePath     string  `json:"image_path" yaml:"image_path" parquet:"image_path"`
	Text          string  `json:"text" yaml:"text" parquet:"text"`
	Subject       string  `json:"subject" yaml:"subject" parquet:"subject"`
	// Confidence is the classification score, 0-1
	Confidence    float64 `json:"confidence" yaml:"confidence" parquet:"confidence"`
	// OCRConfidence is the mean word confidence, 0-100
	OCRConfidence float64 `json:"ocr_confidence" yaml:"ocr_confidence" parquet:"ocr_confidence"`
	Status        Status  `json:"status" yaml:"status" parquet:"status"`
}

// Succeeded reports whether text was extracted and classified
func (r ProcessingResult) Succeeded() bool {
	return r.Status == StatusSuccess
}

// UploadManifest maps a subject to the remote ids uploaded under it, in upload order
type UploadManifest map[string][]string

// Add records an uploaded file for a subject
func (m UploadManifest) Add(subject, fileID string) {
	m[subject] = append(m[subject], fileID)
}

// Count returns the number of uploaded files across all subjects
func (m UploadManifest) Count() int {
	total := 0
	for _, ids := range m {
		total += len(ids)
	}
	return total
}

// Summary aggregates a batch of processing results
type Summary struct {
	TotalImages                     int            `json:"total_images" yaml:"total_images"`
	SuccessfulExtractions           int            `json:"successful_extractions" yaml:"successful_extractions"`
	SuccessfulClassifications       int            `json:"successful_classifications" yaml:"successful_classifications"`
	SubjectDistribution             map[string]int `json:"subject_distribution" yaml:"subject_distribution"`
	AverageOCRConfidence            float64        `json:"average_ocr_confidence" yaml:"average_ocr_confidence"`
	AverageClassificationConfidence float64        `json:"average_classification_confidence" yaml:"average_classification_confidence"`
}

// DirectoryResult is returned by a directory run
type DirectoryResult struct {
	Results           []ProcessingResult `json:"processing_results" yaml:"processing_results"`
	Uploads           UploadManifest     `json:"upload_results" yaml:"upload_results"`
	TotalImages       int                `json:"total_images" yaml:"total_images"`
	SuccessfulUploads int                `json:"successful_uploads" yaml:"successful_uploads"`
}

// RemoteFile describes a file or folder held by the remote store
type RemoteFile struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	MimeType    string    `json:"mime_type" yaml:"mime_type"`
	CreatedTime time.Time `json:"created_time" yaml:"created_time"`
	Size        int64     `json:"size" yaml:"size"`
	Parents     []string  `json:"parents,omitempty" yaml:"parents,omitempty"`
}
