package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lehigh-university-libraries/notesorter/internal/classifier"
	"github.com/lehigh-university-libraries/notesorter/internal/config"
	"github.com/lehigh-university-libraries/notesorter/internal/drive"
	"github.com/lehigh-university-libraries/notesorter/internal/metrics"
	"github.com/lehigh-university-libraries/notesorter/internal/models"
	"github.com/lehigh-university-libraries/notesorter/internal/ocr"
	"github.com/lehigh-university-libraries/notesorter/internal/ocr/tesseract"
	"github.com/lehigh-university-libraries/notesorter/internal/pipeline"
	"github.com/lehigh-university-libraries/notesorter/internal/report"
	"github.com/lehigh-university-libraries/notesorter/internal/resilience"
	"github.com/lehigh-university-libraries/notesorter/internal/storage"
	"github.com/lehigh-university-libraries/notesorter/internal/taxonomy"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"
)

func newOrganizeCmd() *cobra.Command {
	var (
		output      string
		confidence  float64
		tessdata    string
		credentials string
		extensions  []string
		reportPath  string
		metricsFile string
	)

	cmd := &cobra.Command{
		Use:   "organize <input>",
		Short: "OCR, classify and upload a note image or a directory of them",
		Long: `Extracts text from each image with Tesseract, classifies it against the
subject taxonomy and uploads it to Google Drive under OrganizedNotes/<subject>/.

Images that yield no text are not uploaded. Text that scores below the
confidence threshold is filed under "unknown".`,
		Example: `  # Organize one image into My Drive
  notesorter organize lecture1.jpg

  # Organize a directory into a shared folder and keep a report
  notesorter organize ./scans --output 1AbCdEfG --report run.yaml

  # Stricter threshold, PNG files only
  notesorter organize ./scans --confidence 0.5 --ext png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			isDir, err := inspectInput(input)
			if err != nil {
				return err
			}

			cfg := config.Load()
			if cmd.Flags().Changed("confidence") {
				cfg.Threshold = confidence
			}
			if cmd.Flags().Changed("tesseract") {
				cfg.TessdataPrefix = tessdata
			}
			if cmd.Flags().Changed("credentials") {
				cfg.CredentialsFile = credentials
			}
			if cmd.Flags().Changed("ext") {
				cfg.Extensions = extensions
			}

			ctx := cmd.Context()
			run, err := newRun(ctx, cfg)
			if err != nil {
				return err
			}

			var (
				results []models.ProcessingResult
				uploads models.UploadManifest
			)
			if isDir {
				dr, err := run.coordinator.ProcessDirectory(ctx, input, cfg.Extensions, cfg.Threshold, output)
				if err != nil {
					return err
				}
				results, uploads = dr.Results, dr.Uploads
				report.WriteSummary(cmd.OutOrStdout(), pipeline.Summarize(results))
			} else {
				result := run.coordinator.ProcessOne(ctx, input, cfg.Threshold)
				results = []models.ProcessingResult{result}
				uploads = run.coordinator.OrganizeAndUpload(ctx, results, output)
				fmt.Fprintf(cmd.OutOrStdout(), "\n%s: status=%s subject=%s confidence=%.2f\n",
					result.ImagePath, result.Status, result.Subject, result.Confidence)
			}
			if len(uploads) > 0 {
				report.WriteUploads(cmd.OutOrStdout(), uploads)
			}

			if reportPath != "" {
				r := report.New(report.RunConfig{
					Input:      input,
					BaseFolder: output,
					Threshold:  cfg.Threshold,
					Backend:    run.classifier.Backend(),
					Extensions: cfg.Extensions,
				}, results, uploads)
				if err := report.Save(reportPath, r); err != nil {
					return err
				}
			}

			run.metrics.Finish(time.Now())
			if metricsFile != "" {
				if err := run.metrics.WriteTextfile(metricsFile); err != nil {
					return fmt.Errorf("failed to write metrics: %w", err)
				}
				slog.Info("Metrics written", "path", metricsFile)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "\nProcessing completed successfully!")
			return nil
		},
	}

	cmd.Flags().StringVar(&output, "output", "", "Google Drive base folder ID (defaults to My Drive)")
	cmd.Flags().Float64Var(&confidence, "confidence", classifier.DefaultThreshold, "Classification confidence threshold")
	cmd.Flags().StringVar(&tessdata, "tesseract", "", "Tesseract tessdata directory")
	cmd.Flags().StringVar(&credentials, "credentials", "credentials.json", "Google OAuth client credentials file")
	cmd.Flags().StringSliceVar(&extensions, "ext", pipeline.DefaultExtensions, "Image extensions to pick up from a directory")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write a run report (.yaml, .json or .parquet)")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write run metrics in Prometheus text format")

	return cmd
}

// inspectInput reports whether path is a directory, failing when it is neither a file nor a directory
func inspectInput(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, models.WrapError(models.ErrInvalidInputPath, path, fmt.Errorf("not a valid file or directory"))
	}
	if info.IsDir() {
		return true, nil
	}
	if !info.Mode().IsRegular() {
		return false, models.WrapError(models.ErrInvalidInputPath, path, fmt.Errorf("not a regular file"))
	}
	return false, nil
}

// run holds the collaborators of one organize invocation
type run struct {
	coordinator *pipeline.Coordinator
	classifier  *classifier.Classifier
	metrics     *metrics.RunMetrics
}

func newRun(ctx context.Context, cfg config.Config) (*run, error) {
	guard := resilience.NewGuard(cfg.Breaker())

	remote, err := newDriveClient(ctx, cfg, guard)
	if err != nil {
		return nil, err
	}

	subjects, err := loadTaxonomy(cfg.TaxonomyFile)
	if err != nil {
		return nil, err
	}
	backends, err := cfg.NewBackends()
	if err != nil {
		return nil, err
	}
	cls := classifier.New(subjects, backends, classifier.WithGuard(guard))

	extractor := ocr.NewService(tesseract.New(cfg.TessdataPrefix, cfg.Languages...))
	m := metrics.New()

	return &run{
		coordinator: pipeline.New(extractor, cls, storage.NewOrganizer(remote), m),
		classifier:  cls,
		metrics:     m,
	}, nil
}

func newDriveClient(ctx context.Context, cfg config.Config, guard *resilience.Guard) (*drive.Client, error) {
	auth := drive.NewAuthenticator(cfg.CredentialsFile, cfg.TokenFile)
	httpClient, err := auth.Client(ctx)
	if err != nil {
		return nil, err
	}
	client, err := drive.New(ctx, cfg.Drive(guard), option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create drive client: %w", err)
	}
	return client, nil
}

func loadTaxonomy(path string) (*taxonomy.Taxonomy, error) {
	subjects := taxonomy.Default()
	if path == "" {
		return subjects, nil
	}
	n, err := subjects.LoadFile(path)
	if err != nil {
		return nil, err
	}
	slog.Info("Loaded custom subjects", "path", path, "added", n)
	return subjects, nil
}
