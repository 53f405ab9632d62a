package parser

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestParserAcceptsLLMResponse(t *testing.T) {
	t.Parallel()

	llm := &stubLLM{response: `{
		"name": "Alice Chen",
		"email": "alice@example.com",
		"phone": "+1 555 010 3344",
		"skills": ["Go", "PostgreSQL", " "],
		"work_history": [{"company": "Example Corp", "role": "Backend Engineer", "duration": "2021-2024"}],
		"education": [{"institution": "State University", "degree": "BSc", "field": "CS"}],
		"years_experience": 4.5
	}`}
	p := New(Config{}, llm, nil)

	fields, err := p.Parse(context.Background(), "Alice Chen\nalice@example.com\n...")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if fields.Name != "Alice Chen" || fields.Email != "alice@example.com" {
		t.Fatalf("unexpected identity fields: %+v", fields)
	}
	if len(fields.Skills) != 2 {
		t.Fatalf("blank skills must be dropped, got %v", fields.Skills)
	}
	if len(fields.WorkHistory) != 1 || fields.WorkHistory[0].Company != "Example Corp" {
		t.Fatalf("unexpected work history: %+v", fields.WorkHistory)
	}
	if fields.YearsExperience != 4.5 {
		t.Fatalf("unexpected years: %v", fields.YearsExperience)
	}
	if llm.calls != 1 {
		t.Fatalf("expected one llm call, got %d", llm.calls)
	}
}

func TestParserStripsCodeFence(t *testing.T) {
	t.Parallel()

	llm := &stubLLM{response: "```json\n{\"name\": \"Bob\", \"years_experience\": 2}\n```"}
	p := New(Config{}, llm, nil)

	fields, err := p.Parse(context.Background(), "Bob resume text")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if fields.Name != "Bob" {
		t.Fatalf("unexpected name %q", fields.Name)
	}
}

func TestParserFallsBackToRulesOnLLMFailure(t *testing.T) {
	t.Parallel()

	llm := &stubLLM{err: errors.New("deepseek http 500")}
	p := New(Config{}, llm, nil)

	text := strings.Join([]string{
		"Alice Chen",
		"alice@example.com | +1 555-010-3344",
		"5 years building services in Go and PostgreSQL, deployed on Kubernetes.",
	}, "\n")

	fields, err := p.Parse(context.Background(), text)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if fields.Email != "alice@example.com" {
		t.Fatalf("unexpected email %q", fields.Email)
	}
	if fields.Phone == "" {
		t.Fatal("expected phone extracted by rules")
	}
	if fields.YearsExperience != 5 {
		t.Fatalf("unexpected years: %v", fields.YearsExperience)
	}
	if !hasSkill(fields.Skills, "Go") || !hasSkill(fields.Skills, "PostgreSQL") || !hasSkill(fields.Skills, "Kubernetes") {
		t.Fatalf("missing vocabulary skills in %v", fields.Skills)
	}
}

func TestRuleParserAvoidsSubstringHits(t *testing.T) {
	t.Parallel()

	p := New(Config{}, nil, nil)
	fields, err := p.Parse(context.Background(), "Worked at Google on Django apps.")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if hasSkill(fields.Skills, "Go") {
		t.Fatalf("the word google must not match the skill go: %v", fields.Skills)
	}
	if !hasSkill(fields.Skills, "Django") {
		t.Fatalf("expected django match, got %v", fields.Skills)
	}
}

func TestParseRejectsEmptyText(t *testing.T) {
	t.Parallel()

	p := New(Config{}, nil, nil)
	if _, err := p.Parse(context.Background(), "   \n  "); err == nil {
		t.Fatal("expected error for empty resume text")
	}
}

func TestYearsAreClamped(t *testing.T) {
	t.Parallel()

	llm := &stubLLM{response: `{"name": "X", "years_experience": -3}`}
	p := New(Config{}, llm, nil)
	fields, err := p.Parse(context.Background(), "X resume")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if fields.YearsExperience != 0 {
		t.Fatalf("negative years must clamp to 0, got %v", fields.YearsExperience)
	}
}

// --- stubs ---

type stubLLM struct {
	response string
	err      error
	calls    int
}

func (s *stubLLM) Complete(ctx context.Context, prompt string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func hasSkill(skills []string, want string) bool {
	for _, s := range skills {
		if s == want {
			return true
		}
	}
	return false
}
