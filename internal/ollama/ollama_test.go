package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lehigh-university-libraries/notesorter/internal/providers"
)

func newServer(t *testing.T, embeddings [][]float32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/show", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "nomic-embed-text" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"model not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"modelfile":""}`))
	})
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode embed request: %v", err)
		}
		if len(req.Input) != len(embeddings) {
			t.Errorf("Expected %d inputs, got %d", len(embeddings), len(req.Input))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"model": "nomic-embed-text", "embeddings": embeddings})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestZeroShotRanksBySimilarity(t *testing.T) {
	srv := newServer(t, [][]float32{
		{1, 0, 0},     // text
		{0, 1, 0},     // history
		{0.9, 0.1, 0}, // biology
	})

	o, err := New(srv.URL, "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := o.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	r, err := o.ZeroShot(context.Background(), providers.Request{Text: "cells divide", Labels: []string{"history", "biology"}})
	if err != nil {
		t.Fatalf("ZeroShot failed: %v", err)
	}
	label, score, _ := r.Top()
	if label != "biology" {
		t.Errorf("Expected biology, got %s", label)
	}
	if score <= 0.5 || score > 1 {
		t.Errorf("Expected dominant probability, got %.3f", score)
	}
}

func TestLoadFailsForMissingModel(t *testing.T) {
	srv := newServer(t, nil)

	o, err := New(srv.URL, "llama-missing")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := o.Load(context.Background()); err == nil {
		t.Error("Expected load error for a model that is not pulled")
	}
}

func TestZeroShotWithoutLabels(t *testing.T) {
	srv := newServer(t, [][]float32{{1, 0}})

	o, _ := New(srv.URL, "")
	if _, err := o.ZeroShot(context.Background(), providers.Request{Text: "x", Labels: []string{}}); err != nil {
		t.Fatalf("Expected empty labels to short circuit, got %v", err)
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical", []float32{1, 2}, []float32{1, 2}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"length mismatch", []float32{1}, []float32{1, 2}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cosine(tt.a, tt.b); got < tt.expected-1e-6 || got > tt.expected+1e-6 {
				t.Errorf("Expected %.3f, got %.3f", tt.expected, got)
			}
		})
	}
}
