package providers

import (
	"math"
	"strings"
	"testing"
)

func TestHypotheses(t *testing.T) {
	req := Request{Labels: []string{"biology", "history"}}
	got := req.Hypotheses()
	if got[0] != "This text is about biology." || got[1] != "This text is about history." {
		t.Errorf("Unexpected hypotheses: %v", got)
	}

	req.Template = "Notes on {}"
	if got := req.Hypotheses(); got[1] != "Notes on history" {
		t.Errorf("Expected custom template, got %v", got)
	}
}

func TestNewRanking(t *testing.T) {
	r, err := NewRanking([]string{"a", "b", "c", "d"}, []float64{0.1, 0.4, 0.4, 0.1})
	if err != nil {
		t.Fatalf("NewRanking failed: %v", err)
	}
	expected := []string{"b", "c", "a", "d"}
	for i, label := range expected {
		if r.Labels[i] != label {
			t.Errorf("Expected %s at rank %d, got %s", label, i, r.Labels[i])
		}
	}
	label, score, ok := r.Top()
	if !ok || label != "b" || score != 0.4 {
		t.Errorf("Unexpected top: %s %.2f %v", label, score, ok)
	}
	if r.Score("d") != 0.1 || r.Score("missing") != 0 {
		t.Error("Unexpected score lookup")
	}

	if _, err := NewRanking([]string{"a"}, nil); err == nil {
		t.Error("Expected error for mismatched lengths")
	}
	if _, _, ok := (Ranking{}).Top(); ok {
		t.Error("Expected empty ranking to have no top")
	}
}

func TestSoftmax(t *testing.T) {
	got := Softmax([]float64{1, 1, 1, 1}, 1)
	for _, p := range got {
		if math.Abs(p-0.25) > 1e-9 {
			t.Errorf("Expected uniform probabilities, got %v", got)
		}
	}

	got = Softmax([]float64{0.9, 0.1}, 0.05)
	if got[0] < 0.99 {
		t.Errorf("Expected low temperature to sharpen, got %v", got)
	}
	if Softmax(nil, 1) != nil {
		t.Error("Expected nil for no logits")
	}
}

func TestParseScores(t *testing.T) {
	labels := []string{"biology", "chemistry", "history"}

	tests := []struct {
		name     string
		reply    string
		top      string
		wantErr  bool
		topScore float64
	}{
		{
			name:     "plain json",
			reply:    `{"biology": 0.7, "chemistry": 0.2, "history": 0.1}`,
			top:      "biology",
			topScore: 0.7,
		},
		{
			name:     "fenced and unnormalized",
			reply:    "```json\n{\"Chemistry\": 3, \"history\": 1}\n```",
			top:      "chemistry",
			topScore: 0.75,
		},
		{
			name:     "surrounding prose",
			reply:    `Here you go: {"history": 1} hope that helps`,
			top:      "history",
			topScore: 1,
		},
		{name: "not json", reply: "biology", wantErr: true},
		{name: "no known labels", reply: `{"art": 1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseScores(tt.reply, labels)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error, got %+v", r)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseScores failed: %v", err)
			}
			label, score, _ := r.Top()
			if label != tt.top || math.Abs(score-tt.topScore) > 1e-9 {
				t.Errorf("Expected %s %.2f, got %s %.2f", tt.top, tt.topScore, label, score)
			}
			if len(r.Labels) != len(labels) {
				t.Errorf("Expected every label ranked, got %v", r.Labels)
			}
		})
	}
}

func TestPromptListsEveryLabel(t *testing.T) {
	p := Prompt(Request{Text: "mitochondria", Labels: []string{"biology", "art"}})
	for _, want := range []string{"- biology: This text is about biology.", "- art: This text is about art.", "mitochondria"} {
		if !strings.Contains(p, want) {
			t.Errorf("Expected prompt to contain %q", want)
		}
	}
}
