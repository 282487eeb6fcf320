package drive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/lehigh-university-libraries/notesorter/internal/models"
	"google.golang.org/api/option"
)

type fakeFile struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	MimeType    string   `json:"mimeType"`
	Parents     []string `json:"parents,omitempty"`
	Size        string   `json:"size,omitempty"`
	CreatedTime string   `json:"createdTime"`
}

var (
	nameClause   = regexp.MustCompile(`name='((?:[^'\\]|\\.)*)'`)
	parentClause = regexp.MustCompile(`'((?:[^'\\]|\\.)*)' in parents`)
)

func unescape(s string) string {
	return strings.NewReplacer(`\'`, `'`, `\\`, `\`).Replace(s)
}

// fakeDrive serves the subset of the Drive v3 REST API the client uses
type fakeDrive struct {
	t        *testing.T
	mu       sync.Mutex
	files    []fakeFile
	nextID   int
	pageSize int
	queries  []string
	failWith int
}

func (d *fakeDrive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.failWith != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(d.failWith)
		_, _ = w.Write([]byte(`{"error":{"code":` + strconv.Itoa(d.failWith) + `,"message":"backend error"}}`))
		return
	}

	switch {
	case r.URL.Query().Get("uploadType") != "":
		d.upload(w, r)
	case strings.HasSuffix(r.URL.Path, "/files") && r.Method == http.MethodPost:
		var f fakeFile
		if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
			d.t.Errorf("Failed to decode create body: %v", err)
		}
		d.respond(w, d.add(f))
	case strings.HasSuffix(r.URL.Path, "/files") && r.Method == http.MethodGet:
		d.list(w, r)
	case strings.Contains(r.URL.Path, "/files/"):
		id := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		idx := d.find(id)
		if idx < 0 {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"File not found"}}`))
			return
		}
		if r.Method == http.MethodDelete {
			d.files = append(d.files[:idx], d.files[idx+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		d.respond(w, d.files[idx])
	default:
		d.t.Errorf("Unexpected request %s %s", r.Method, r.URL.String())
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func (d *fakeDrive) add(f fakeFile) fakeFile {
	d.nextID++
	f.ID = "id-" + strconv.Itoa(d.nextID)
	f.CreatedTime = "2024-03-01T10:00:00Z"
	d.files = append(d.files, f)
	return f
}

func (d *fakeDrive) find(id string) int {
	for i, f := range d.files {
		if f.ID == id {
			return i
		}
	}
	return -1
}

func (d *fakeDrive) upload(w http.ResponseWriter, r *http.Request) {
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		d.t.Errorf("Bad upload content type: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	mr := multipart.NewReader(r.Body, params["boundary"])

	metaPart, err := mr.NextPart()
	if err != nil {
		d.t.Errorf("Missing metadata part: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var f fakeFile
	if err := json.NewDecoder(metaPart).Decode(&f); err != nil {
		d.t.Errorf("Bad metadata part: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	mediaPart, err := mr.NextPart()
	if err != nil {
		d.t.Errorf("Missing media part: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	content, _ := io.ReadAll(mediaPart)
	f.MimeType = mediaPart.Header.Get("Content-Type")
	f.Size = strconv.Itoa(len(content))

	d.respond(w, d.add(f))
}

func (d *fakeDrive) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	d.queries = append(d.queries, q)

	var matched []fakeFile
	for _, f := range d.files {
		if m := nameClause.FindStringSubmatch(q); m != nil && f.Name != unescape(m[1]) {
			continue
		}
		if m := parentClause.FindStringSubmatch(q); m != nil && !contains(f.Parents, unescape(m[1])) {
			continue
		}
		if strings.Contains(q, "mimeType='"+FolderMimeType+"'") && f.MimeType != FolderMimeType {
			continue
		}
		matched = append(matched, f)
	}

	start, _ := strconv.Atoi(r.URL.Query().Get("pageToken"))
	end := len(matched)
	next := ""
	if d.pageSize > 0 && start+d.pageSize < end {
		end = start + d.pageSize
		next = strconv.Itoa(end)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"files": matched[start:end], "nextPageToken": next})
}

func (d *fakeDrive) respond(w http.ResponseWriter, f fakeFile) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(f)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func newTestClient(t *testing.T) (*Client, *fakeDrive) {
	t.Helper()
	fake := &fakeDrive{t: t}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{},
		option.WithEndpoint(srv.URL+"/drive/v3/"),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c, fake
}

func TestFolders(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	if _, ok, err := c.FindFolder(ctx, "OrganizedNotes", "base"); err != nil || ok {
		t.Fatalf("Expected no folder, got ok=%v err=%v", ok, err)
	}

	id, err := c.CreateFolder(ctx, "OrganizedNotes", "base")
	if err != nil {
		t.Fatalf("CreateFolder failed: %v", err)
	}

	found, ok, err := c.FindFolder(ctx, "OrganizedNotes", "base")
	if err != nil || !ok || found != id {
		t.Errorf("Expected to find %s, got %s ok=%v err=%v", id, found, ok, err)
	}
	if _, ok, _ := c.FindFolder(ctx, "OrganizedNotes", "elsewhere"); ok {
		t.Error("Expected parent to scope the search")
	}
	if _, ok, _ := c.FindFolder(ctx, "OrganizedNotes", ""); !ok {
		t.Error("Expected unscoped search to find the folder")
	}

	expected := "name='OrganizedNotes' and mimeType='application/vnd.google-apps.folder' and trashed=false and 'base' in parents"
	if fake.queries[0] != expected {
		t.Errorf("Unexpected query:\n%s\nexpected:\n%s", fake.queries[0], expected)
	}
}

func TestFindFolderEscapesQuotes(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	id, err := c.CreateFolder(ctx, "Bob's notes", "")
	if err != nil {
		t.Fatalf("CreateFolder failed: %v", err)
	}
	found, ok, err := c.FindFolder(ctx, "Bob's notes", "")
	if err != nil || !ok || found != id {
		t.Errorf("Expected to find %s, got %s ok=%v err=%v", id, found, ok, err)
	}
}

func TestUploadListInfoDelete(t *testing.T) {
	c, fake := newTestClient(t)
	fake.pageSize = 2
	ctx := context.Background()

	folder, err := c.CreateFolder(ctx, "biology", "")
	if err != nil {
		t.Fatalf("CreateFolder failed: %v", err)
	}

	var ids []string
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		id, err := c.UploadFile(ctx, strings.NewReader("image bytes"), name, "image/png", folder)
		if err != nil {
			t.Fatalf("UploadFile failed: %v", err)
		}
		ids = append(ids, id)
	}

	files, err := c.ListFolder(ctx, folder)
	if err != nil {
		t.Fatalf("ListFolder failed: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("Expected 3 files across pages, got %d", len(files))
	}

	info, err := c.FileInfo(ctx, ids[1])
	if err != nil {
		t.Fatalf("FileInfo failed: %v", err)
	}
	if info.Name != "b.png" || info.MimeType != "image/png" || info.Size != 11 {
		t.Errorf("Unexpected info %+v", info)
	}
	if len(info.Parents) != 1 || info.Parents[0] != folder {
		t.Errorf("Expected parent %s, got %v", folder, info.Parents)
	}
	if info.CreatedTime.IsZero() {
		t.Error("Expected created time to be parsed")
	}

	if err := c.Delete(ctx, ids[1]); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := c.FileInfo(ctx, ids[1]); !errors.Is(err, models.ErrRemoteCall) {
		t.Errorf("Expected ErrRemoteCall for deleted file, got %v", err)
	}
	if err := c.Delete(ctx, ids[1]); err == nil {
		t.Error("Expected error deleting a missing file")
	}
}

func TestServerErrorsWrapRemoteCall(t *testing.T) {
	c, fake := newTestClient(t)
	fake.failWith = http.StatusInternalServerError
	ctx := context.Background()

	if _, _, err := c.FindFolder(ctx, "x", ""); !errors.Is(err, models.ErrRemoteCall) {
		t.Errorf("Expected ErrRemoteCall, got %v", err)
	}
	if _, err := c.CreateFolder(ctx, "x", ""); !errors.Is(err, models.ErrRemoteCall) {
		t.Errorf("Expected ErrRemoteCall, got %v", err)
	}
	if _, err := c.ListFolder(ctx, "x"); !errors.Is(err, models.ErrRemoteCall) {
		t.Errorf("Expected ErrRemoteCall, got %v", err)
	}
}

func TestEscapeQuery(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"plain", "plain"},
		{"it's", `it\'s`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		if got := escapeQuery(tt.input); got != tt.expected {
			t.Errorf("escapeQuery(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}
