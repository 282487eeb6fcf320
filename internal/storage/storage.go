package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/notesorter/internal/models"
)

// DefaultContentType is used when the extension maps to no known type
const DefaultContentType = "application/octet-stream"

// note image formats, pinned so the platform mime table cannot rename them
var imageTypes = map[string]string{
	".bmp":  "image/bmp",
	".jpeg": "image/jpeg",
	".jpg":  "image/jpeg",
	".png":  "image/png",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

// Remote is the subset of a cloud drive the organizer needs
type Remote interface {
	FindFolder(ctx context.Context, name, parentID string) (string, bool, error)
	CreateFolder(ctx context.Context, name, parentID string) (string, error)
	UploadFile(ctx context.Context, content io.Reader, name, mimeType, folderID string) (string, error)
	ListFolder(ctx context.Context, folderID string) ([]models.RemoteFile, error)
	FileInfo(ctx context.Context, id string) (models.RemoteFile, error)
	Delete(ctx context.Context, id string) error
}

// Organizer files note images into per-subject folders on a Remote
type Organizer struct {
	remote  Remote
	folders *folderLocks
	now     func() time.Time
}

// NewOrganizer creates an Organizer over remote
func NewOrganizer(remote Remote) *Organizer {
	return &Organizer{
		remote:  remote,
		folders: newFolderLocks(),
		now:     time.Now,
	}
}

// FindFolder looks up a folder by exact name, optionally under parentID
func (o *Organizer) FindFolder(ctx context.Context, name, parentID string) (string, bool, error) {
	id, ok, err := o.remote.FindFolder(ctx, name, parentID)
	if err != nil {
		slog.Error("Failed to find folder", "name", name, "parent", parentID, "error", err)
		return "", false, err
	}
	return id, ok, nil
}

// CreateFolder creates a folder without checking for an existing one
func (o *Organizer) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	id, err := o.remote.CreateFolder(ctx, name, parentID)
	if err != nil {
		slog.Error("Failed to create folder", "name", name, "parent", parentID, "error", err)
		return "", err
	}
	return id, nil
}

// GetOrCreateFolder returns an existing folder's id or creates it.
// Every call queries the remote. Concurrent calls for the same (name, parent)
// resolve to one folder.
func (o *Organizer) GetOrCreateFolder(ctx context.Context, name, parentID string) (string, error) {
	unlock := o.folders.Lock(folderKey(name, parentID))
	defer unlock()

	id, found, err := o.FindFolder(ctx, name, parentID)
	if err != nil {
		return "", err
	}
	if found {
		slog.Info("Found existing folder", "name", name, "id", id)
	} else {
		id, err = o.CreateFolder(ctx, name, parentID)
		if err != nil {
			return "", err
		}
	}

	return id, nil
}

// Upload sends the local file to folderID. An empty filename uses the file's base name.
func (o *Organizer) Upload(ctx context.Context, localPath, folderID, filename string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		slog.Error("File not found", "path", localPath)
		return "", fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	if filename == "" {
		filename = filepath.Base(localPath)
	}

	id, err := o.remote.UploadFile(ctx, f, filename, ContentType(localPath), folderID)
	if err != nil {
		slog.Error("Failed to upload file", "path", localPath, "folder", folderID, "error", err)
		return "", err
	}
	if id == "" {
		slog.Error("Upload returned no file id", "path", localPath, "folder", folderID)
		return "", models.WrapError(models.ErrRemoteCall, "upload "+filename, fmt.Errorf("empty file id"))
	}
	return id, nil
}

// UploadMany uploads each path into folderID. Failed uploads leave an empty id at their position.
func (o *Organizer) UploadMany(ctx context.Context, paths []string, folderID string) []string {
	ids := make([]string, len(paths))
	for i, p := range paths {
		id, err := o.Upload(ctx, p, folderID, "")
		if err != nil {
			continue
		}
		ids[i] = id
	}
	return ids
}

// OrganizeBySubject uploads each result's image into a folder named after its subject under baseFolderID.
// Only successful results are uploaded. Images that no longer exist locally are skipped.
func (o *Organizer) OrganizeBySubject(ctx context.Context, results []models.ProcessingResult, baseFolderID string) models.UploadManifest {
	manifest := models.UploadManifest{}
	for i, r := range results {
		if ctx.Err() != nil {
			slog.Warn("Upload interrupted", "remaining", len(results)-i)
			break
		}
		if !r.Succeeded() || r.ImagePath == "" {
			continue
		}
		if _, err := os.Stat(r.ImagePath); err != nil {
			slog.Warn("Skipping missing image", "path", r.ImagePath)
			continue
		}

		subject := r.Subject
		if subject == "" {
			subject = models.UnknownSubject
		}

		folderID, err := o.GetOrCreateFolder(ctx, subject, baseFolderID)
		if err != nil {
			slog.Error("Failed to create folder for subject", "subject", subject, "error", err)
			continue
		}

		id, err := o.Upload(ctx, r.ImagePath, folderID, UploadName(subject, o.now(), r.ImagePath))
		if err != nil || id == "" {
			continue
		}
		manifest.Add(subject, id)
	}
	return manifest
}

// ListFolder lists the non-trashed children of folderID. Failures yield nil.
func (o *Organizer) ListFolder(ctx context.Context, folderID string) []models.RemoteFile {
	files, err := o.remote.ListFolder(ctx, folderID)
	if err != nil {
		slog.Error("Failed to list folder", "folder", folderID, "error", err)
		return nil
	}
	return files
}

// FileInfo fetches metadata for id
func (o *Organizer) FileInfo(ctx context.Context, id string) (models.RemoteFile, bool) {
	info, err := o.remote.FileInfo(ctx, id)
	if err != nil {
		slog.Error("Failed to get file info", "id", id, "error", err)
		return models.RemoteFile{}, false
	}
	return info, true
}

// Delete removes id and reports whether it succeeded
func (o *Organizer) Delete(ctx context.Context, id string) bool {
	if err := o.remote.Delete(ctx, id); err != nil {
		slog.Error("Failed to delete file", "id", id, "error", err)
		return false
	}
	return true
}

// UploadName is the remote name for an image filed under subject at time t
func UploadName(subject string, t time.Time, localPath string) string {
	return fmt.Sprintf("%s_%s_%s", subject, t.Format("20060102_150405"), filepath.Base(localPath))
}

// ContentType guesses a media type from the file extension
func ContentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := imageTypes[ext]; ok {
		return t
	}
	t := mime.TypeByExtension(ext)
	if t == "" {
		return DefaultContentType
	}
	mediaType, _, err := mime.ParseMediaType(t)
	if err != nil {
		return DefaultContentType
	}
	return mediaType
}
