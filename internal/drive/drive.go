package drive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/notesorter/internal/models"
	"github.com/lehigh-university-libraries/notesorter/internal/resilience"
	"golang.org/x/time/rate"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	// FolderMimeType marks a Drive file as a folder
	FolderMimeType = "application/vnd.google-apps.folder"
	// DefaultChunkSize is the resumable upload chunk size
	DefaultChunkSize = 8 * 1024 * 1024
	// RootFolder aliases the user's My Drive root
	RootFolder = "root"
)

// Config tunes how the client talks to Drive
type Config struct {
	// RequestsPerSecond paces API calls. Zero disables pacing.
	RequestsPerSecond float64
	Burst             int
	ChunkSize         int
	Guard             *resilience.Guard
}

// DefaultConfig stays well inside the per-user Drive quota
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 10,
		Burst:             5,
		ChunkSize:         DefaultChunkSize,
	}
}

// Client performs the Drive v3 calls the organizer needs
type Client struct {
	files     *drive.FilesService
	limiter   *rate.Limiter
	guard     *resilience.Guard
	chunkSize int
}

// New creates a Drive client. Pass option.WithHTTPClient with an authorized client.
func New(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Client, error) {
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, models.WrapError(models.ErrAuthentication, "create drive service", err)
	}

	c := &Client{
		files:     svc.Files,
		guard:     cfg.Guard,
		chunkSize: cfg.ChunkSize,
	}
	if c.chunkSize <= 0 {
		c.chunkSize = DefaultChunkSize
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c, nil
}

// FindFolder returns the id of a non-trashed folder named name, optionally under parentID.
// With duplicates, whichever Drive lists first is returned.
func (c *Client) FindFolder(ctx context.Context, name, parentID string) (string, bool, error) {
	q := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false", escapeQuery(name), FolderMimeType)
	if parentID != "" {
		q += fmt.Sprintf(" and '%s' in parents", escapeQuery(parentID))
	}

	var list *drive.FileList
	err := c.call(ctx, "find_folder", func(ctx context.Context) error {
		var err error
		list, err = c.files.List().Q(q).Spaces("drive").Fields("files(id, name)").Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", false, err
	}
	if len(list.Files) == 0 {
		return "", false, nil
	}
	return list.Files[0].Id, true, nil
}

// CreateFolder always creates a new folder
func (c *Client) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	meta := &drive.File{Name: name, MimeType: FolderMimeType}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}

	var created *drive.File
	err := c.call(ctx, "create_folder", func(ctx context.Context) error {
		var err error
		created, err = c.files.Create(meta).Fields("id").Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", err
	}
	slog.Info("Folder created", "name", name, "id", created.Id)
	return created.Id, nil
}

// UploadFile streams content into folderID as name
func (c *Client) UploadFile(ctx context.Context, content io.Reader, name, mimeType, folderID string) (string, error) {
	meta := &drive.File{Name: name}
	if folderID != "" {
		meta.Parents = []string{folderID}
	}

	var created *drive.File
	err := c.call(ctx, "upload", func(ctx context.Context) error {
		var err error
		created, err = c.files.Create(meta).
			Media(content, googleapi.ContentType(mimeType), googleapi.ChunkSize(c.chunkSize)).
			Fields("id").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return "", err
	}
	slog.Info("File uploaded", "name", name, "id", created.Id)
	return created.Id, nil
}

// ListFolder returns every non-trashed child of folderID
func (c *Client) ListFolder(ctx context.Context, folderID string) ([]models.RemoteFile, error) {
	q := fmt.Sprintf("'%s' in parents and trashed=false", escapeQuery(folderID))

	var files []models.RemoteFile
	pageToken := ""
	for {
		var list *drive.FileList
		err := c.call(ctx, "list", func(ctx context.Context) error {
			call := c.files.List().Q(q).Spaces("drive").
				Fields("nextPageToken, files(id, name, mimeType, createdTime, size)").
				Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			var err error
			list, err = call.Do()
			return err
		})
		if err != nil {
			return nil, err
		}
		for _, f := range list.Files {
			files = append(files, toRemoteFile(f))
		}
		if list.NextPageToken == "" {
			return files, nil
		}
		pageToken = list.NextPageToken
	}
}

// FileInfo returns metadata for id
func (c *Client) FileInfo(ctx context.Context, id string) (models.RemoteFile, error) {
	var f *drive.File
	err := c.call(ctx, "get", func(ctx context.Context) error {
		var err error
		f, err = c.files.Get(id).Fields("id, name, mimeType, createdTime, size, parents").Context(ctx).Do()
		return err
	})
	if err != nil {
		return models.RemoteFile{}, err
	}
	return toRemoteFile(f), nil
}

// Delete permanently removes id
func (c *Client) Delete(ctx context.Context, id string) error {
	err := c.call(ctx, "delete", func(ctx context.Context) error {
		return c.files.Delete(id).Context(ctx).Do()
	})
	if err != nil {
		return err
	}
	slog.Info("File deleted", "id", id)
	return nil
}

func (c *Client) call(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return models.WrapError(models.ErrRemoteCall, "drive "+operation, err)
		}
	}
	if err := c.guard.Do(ctx, "drive."+operation, fn); err != nil {
		return models.WrapError(models.ErrRemoteCall, "drive "+operation, err)
	}
	return nil
}

func toRemoteFile(f *drive.File) models.RemoteFile {
	rf := models.RemoteFile{
		ID:       f.Id,
		Name:     f.Name,
		MimeType: f.MimeType,
		Size:     f.Size,
		Parents:  f.Parents,
	}
	if f.CreatedTime != "" {
		if t, err := time.Parse(time.RFC3339, f.CreatedTime); err == nil {
			rf.CreatedTime = t
		}
	}
	return rf
}

// escapeQuery escapes a value for use inside a single-quoted Drive query string
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
