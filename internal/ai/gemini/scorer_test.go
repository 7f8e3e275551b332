package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/spigell/jobradar/internal/ai"
	"go.uber.org/zap"
)

type stubGenerator struct {
	response   string
	err        error
	lastPrompt string
	calls      int
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	s.calls++
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubGenerator) Model() string {
	return "stub-model"
}

const profileText = "Title: Senior Level Designer\nExperience: 8+ years"

func TestScorerScore(t *testing.T) {
	tests := []struct {
		name      string
		response  string
		wantScore float64
		wantErr   bool
		reasoning string
	}{
		{name: "plain json", response: `{"score": 0.85, "reasoning": "Strong UE5 match"}`, wantScore: 0.85, reasoning: "Strong UE5 match"},
		{name: "fenced json", response: "```json\n{\"score\": 0.4, \"reasoning\": \"Partial\"}\n```", wantScore: 0.4, reasoning: "Partial"},
		{name: "string score", response: `{"score": "0.7", "reason": "Legacy key"}`, wantScore: 0.7, reasoning: "Legacy key"},
		{name: "clamped high", response: `{"score": 1.7, "reasoning": "Overconfident"}`, wantScore: 1},
		{name: "clamped low", response: `{"score": -3, "reasoning": "Negative"}`, wantScore: 0},
		{name: "missing score", response: `{"reasoning": "No score"}`, wantScore: 0},
		{name: "malformed", response: `I think it is a 0.9`, wantScore: 0, wantErr: true},
		{name: "non numeric score", response: `{"score": "high"}`, wantScore: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubGenerator{response: tt.response}
			got := NewScorer(stub, profileText, zap.NewNop(), 0).Score(context.Background(), ai.Job{Title: "Level Designer"})

			if got.Score != tt.wantScore {
				t.Fatalf("expected score %v, got %v", tt.wantScore, got.Score)
			}
			if (got.Err != nil) != tt.wantErr {
				t.Fatalf("expected err=%v, got %v", tt.wantErr, got.Err)
			}
			if tt.wantErr && !strings.HasPrefix(got.Reasoning, "Parse error: ") {
				t.Fatalf("expected diagnostic reasoning, got %q", got.Reasoning)
			}
			if tt.reasoning != "" && got.Reasoning != tt.reasoning {
				t.Fatalf("expected reasoning %q, got %q", tt.reasoning, got.Reasoning)
			}
		})
	}
}

func TestScorerDegradesOnAPIError(t *testing.T) {
	stub := &stubGenerator{err: errors.New("connection refused")}
	got := NewScorer(stub, profileText, zap.NewNop(), 0).Score(context.Background(), ai.Job{Title: "Level Designer"})

	if got.Score != 0 || got.Err == nil {
		t.Fatalf("expected zero score with error, got %+v", got)
	}
	if got.Reasoning != "AI scoring failed (API error)" {
		t.Fatalf("unexpected reasoning: %q", got.Reasoning)
	}
}

func TestScorerUnavailableWithoutGenerator(t *testing.T) {
	s := NewScorer(nil, profileText, nil, 0)
	if s.IsAvailable() {
		t.Fatal("expected scorer without generator to be unavailable")
	}
	if got := s.Score(context.Background(), ai.Job{}); got.Score != 0 {
		t.Fatalf("expected zero score, got %v", got.Score)
	}
}

func TestBuildPrompt(t *testing.T) {
	description := strings.Repeat("open world encounter design ", 400)
	stub := &stubGenerator{response: `{"score": 0.5, "reasoning": "ok"}`}

	NewScorer(stub, profileText, zap.NewNop(), 0).Score(context.Background(), ai.Job{
		Title:       "Senior Level Designer",
		Company:     "Acme Games",
		Description: description,
	})

	prompt := stub.lastPrompt
	for _, want := range []string{profileText, "Title: Senior Level Designer", "Company: Acme Games", "Location: Not specified"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("expected prompt to contain %q", want)
		}
	}
	if strings.Contains(prompt, "{{") {
		t.Fatal("expected every placeholder to be replaced")
	}

	start := strings.Index(prompt, "Description:\n") + len("Description:\n")
	end := strings.Index(prompt, "\n\nScore this job")
	embedded := prompt[start:end]
	if n := utf8.RuneCountInString(embedded); n > MaxDescriptionLength {
		t.Fatalf("expected description of at most %d runes, got %d", MaxDescriptionLength, n)
	}
	if !strings.HasSuffix(embedded, "...") {
		t.Fatalf("expected truncated description to end with ellipsis")
	}
}
