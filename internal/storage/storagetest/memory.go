// Package storagetest provides an in-memory remote drive for tests.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/notesorter/internal/models"
)

const folderMimeType = "application/vnd.google-apps.folder"

// ErrInjected is returned by operations listed in Memory.Fail
var ErrInjected = errors.New("injected remote failure")

// Memory is an in-memory remote. The zero value is not usable; call New.
type Memory struct {
	mu      sync.Mutex
	files   map[string]*Entry
	order   []string
	nextID  int
	counts  map[string]int
	created time.Time

	// Fail makes the named operations (find, create, upload, list, get, delete) return ErrInjected
	Fail map[string]bool
}

// Entry is one stored file or folder
type Entry struct {
	models.RemoteFile
	Content []byte
}

// New returns an empty Memory remote
func New() *Memory {
	return &Memory{
		files:   make(map[string]*Entry),
		counts:  make(map[string]int),
		Fail:    make(map[string]bool),
		created: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

// Calls returns how many times op was invoked
func (m *Memory) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[op]
}

// Children returns the entries directly under parentID, in creation order
func (m *Memory) Children(parentID string) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Entry
	for _, id := range m.order {
		e := m.files[id]
		for _, p := range e.Parents {
			if p == parentID {
				out = append(out, *e)
				break
			}
		}
	}
	return out
}

// Entry returns the stored entry for id
func (m *Memory) Entry(id string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.files[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

func (m *Memory) begin(op string) error {
	m.counts[op]++
	if m.Fail[op] {
		return fmt.Errorf("%s: %w", op, ErrInjected)
	}
	return nil
}

func (m *Memory) add(name, mimeType, parentID string, content []byte) string {
	m.nextID++
	id := fmt.Sprintf("file-%d", m.nextID)
	e := &Entry{
		RemoteFile: models.RemoteFile{
			ID:          id,
			Name:        name,
			MimeType:    mimeType,
			CreatedTime: m.created,
			Size:        int64(len(content)),
		},
		Content: content,
	}
	if parentID != "" {
		e.Parents = []string{parentID}
	}
	m.files[id] = e
	m.order = append(m.order, id)
	return id
}

// FindFolder returns the first folder named name under parentID
func (m *Memory) FindFolder(_ context.Context, name, parentID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("find"); err != nil {
		return "", false, err
	}
	for _, id := range m.order {
		e := m.files[id]
		if e.Name != name || e.MimeType != folderMimeType {
			continue
		}
		if parentID == "" || (len(e.Parents) > 0 && e.Parents[0] == parentID) {
			return id, true, nil
		}
	}
	return "", false, nil
}

// CreateFolder adds a folder
func (m *Memory) CreateFolder(_ context.Context, name, parentID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("create"); err != nil {
		return "", err
	}
	return m.add(name, folderMimeType, parentID, nil), nil
}

// UploadFile stores content
func (m *Memory) UploadFile(_ context.Context, content io.Reader, name, mimeType, folderID string) (string, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("upload"); err != nil {
		return "", err
	}
	return m.add(name, mimeType, folderID, data), nil
}

// ListFolder returns the children of folderID
func (m *Memory) ListFolder(_ context.Context, folderID string) ([]models.RemoteFile, error) {
	m.mu.Lock()
	err := m.begin("list")
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var out []models.RemoteFile
	for _, e := range m.Children(folderID) {
		out = append(out, e.RemoteFile)
	}
	return out, nil
}

// FileInfo returns metadata for id
func (m *Memory) FileInfo(_ context.Context, id string) (models.RemoteFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("get"); err != nil {
		return models.RemoteFile{}, err
	}
	e, ok := m.files[id]
	if !ok {
		return models.RemoteFile{}, fmt.Errorf("file %s not found", id)
	}
	return e.RemoteFile, nil
}

// Delete removes id
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("delete"); err != nil {
		return err
	}
	if _, ok := m.files[id]; !ok {
		return fmt.Errorf("file %s not found", id)
	}
	delete(m.files, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}
