package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lehigh-university-libraries/notesorter/internal/providers"
)

func TestZeroShot(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		top     string
		wantErr bool
	}{
		{
			name:   "json reply",
			status: http.StatusOK,
			body:   `{"choices":[{"message":{"content":"{\"history\":0.9,\"art\":0.1}"}}]}`,
			top:    "history",
		},
		{
			name:    "server error",
			status:  http.StatusTooManyRequests,
			body:    `{"error":"rate limited"}`,
			wantErr: true,
		},
		{
			name:    "no choices",
			status:  http.StatusOK,
			body:    `{"choices":[]}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/chat/completions" {
					t.Errorf("Unexpected path %s", r.URL.Path)
				}
				if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
					t.Errorf("Unexpected authorization header %q", got)
				}
				var body map[string]any
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Errorf("Failed to decode request: %v", err)
				}
				if body["model"] != DefaultModel {
					t.Errorf("Expected default model, got %v", body["model"])
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			o := New("test-key", srv.URL+"/", "")
			r, err := o.ZeroShot(context.Background(), providers.Request{Text: "the french revolution", Labels: []string{"art", "history"}})
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error, got %+v", r)
				}
				return
			}
			if err != nil {
				t.Fatalf("ZeroShot failed: %v", err)
			}
			if label, _, _ := r.Top(); label != tt.top {
				t.Errorf("Expected %s, got %s", tt.top, label)
			}
		})
	}
}

func TestLoadRequiresAPIKey(t *testing.T) {
	if err := New("", "", "").Load(context.Background()); err == nil {
		t.Error("Expected error without API key")
	}
}
