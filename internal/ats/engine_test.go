package ats

import (
	"math"
	"reflect"
	"testing"

	"skillradar/internal/model"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := NewEngine(Config{})
	if err != nil {
		t.Fatalf("NewEngine error: %v", err)
	}
	return eng
}

func TestSkillMatchScenario(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(t)
	resume := &model.ResumeEvidence{Skills: []string{"react", "python"}}
	job := &model.JobPosting{RequiredSkills: []string{"React", "Node.js"}}

	res := eng.Score(resume, "", job)
	if res.Breakdown.SkillMatch != 0.5 {
		t.Fatalf("expected skillMatch 0.5, got %v", res.Breakdown.SkillMatch)
	}
	if !reflect.DeepEqual(res.CommonSkills, []string{"react"}) {
		t.Fatalf("expected common [react], got %v", res.CommonSkills)
	}
	if !reflect.DeepEqual(res.MissingSkills, []string{"Node.js"}) {
		t.Fatalf("expected missing [Node.js], got %v", res.MissingSkills)
	}
}

func TestSkillMatchSynonyms(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(t)
	resume := &model.ResumeEvidence{Skills: []string{"golang", "nodejs"}}
	job := &model.JobPosting{RequiredSkills: []string{"Go", "Node.js"}}

	res := eng.Score(resume, "", job)
	if res.Breakdown.SkillMatch != 1.0 {
		t.Fatalf("expected full match through synonyms, got %v", res.Breakdown.SkillMatch)
	}
	if len(res.MissingSkills) != 0 {
		t.Fatalf("expected no missing skills, got %v", res.MissingSkills)
	}
}

func TestSkillMatchNoRequiredSkills(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(t)
	resume := &model.ResumeEvidence{Skills: []string{"go"}}
	job := &model.JobPosting{}

	res := eng.Score(resume, "", job)
	if res.Breakdown.SkillMatch != 1.0 {
		t.Fatalf("expected skillMatch 1.0 for job without required skills, got %v", res.Breakdown.SkillMatch)
	}
}

func TestExperienceMatchLinearBelowBand(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(t)
	resume := &model.ResumeEvidence{YearsExperience: 2}
	job := &model.JobPosting{ExperienceLevel: model.ExperienceSenior}

	res := eng.Score(resume, "", job)
	if math.Abs(res.Breakdown.ExperienceMatch-0.4) > 1e-9 {
		t.Fatalf("expected 2/5 = 0.4, got %v", res.Breakdown.ExperienceMatch)
	}
}

func TestExperienceMatchSaturates(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(t)
	resume := &model.ResumeEvidence{YearsExperience: 12}
	job := &model.JobPosting{ExperienceLevel: model.ExperienceSenior}

	res := eng.Score(resume, "", job)
	if res.Breakdown.ExperienceMatch != 1.0 {
		t.Fatalf("expected saturation at 1.0, got %v", res.Breakdown.ExperienceMatch)
	}
}

func TestEducationMatchIsBinary(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(t)
	job := &model.JobPosting{RequiresDegree: true}

	withDegree := &model.ResumeEvidence{
		Education: []model.EducationEntry{{Institution: "MIT", Degree: "BSc"}},
	}
	if got := eng.Score(withDegree, "", job).Breakdown.EducationMatch; got != 1.0 {
		t.Fatalf("expected 1.0 with education, got %v", got)
	}

	without := &model.ResumeEvidence{}
	if got := eng.Score(without, "", job).Breakdown.EducationMatch; got != 0.0 {
		t.Fatalf("expected 0.0 without education, got %v", got)
	}
}

func TestScoreBounds(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(t)
	resume := &model.ResumeEvidence{
		Skills:          []string{"go", "react", "postgresql"},
		YearsExperience: 8,
		Education:       []model.EducationEntry{{Degree: "MSc"}},
	}
	raw := "Senior Go engineer building React frontends over PostgreSQL. Kubernetes, Docker, gRPC."
	job := &model.JobPosting{
		Description:     "We need a Go engineer with React and PostgreSQL. Kubernetes a plus.",
		RequiredSkills:  []string{"Go", "React"},
		ExperienceLevel: model.ExperienceSenior,
	}

	res := eng.Score(resume, raw, job)
	if res.Score < 0 || res.Score > 100 {
		t.Fatalf("score out of bounds: %d", res.Score)
	}
	for _, sub := range []float64{
		res.Breakdown.SkillMatch,
		res.Breakdown.ExperienceMatch,
		res.Breakdown.EducationMatch,
		res.Breakdown.KeywordDensity,
		res.Breakdown.SemanticSimilarity,
	} {
		if sub < 0 || sub > 1 {
			t.Fatalf("sub-score out of [0,1]: %v", sub)
		}
	}
	if res.Score < 60 {
		t.Fatalf("expected a strong match to score high, got %d", res.Score)
	}
}

func TestMissingFieldsDegradeToZero(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(t)
	job := &model.JobPosting{RequiredSkills: []string{"Go"}, RequiresDegree: true}

	// Nil resume and empty raw text: everything evidence-based drops to zero,
	// the computation still finishes.
	res := eng.Score(nil, "", job)
	if res.Breakdown.SkillMatch != 0 || res.Breakdown.KeywordDensity != 0 || res.Breakdown.SemanticSimilarity != 0 {
		t.Fatalf("expected degraded sub-scores, got %+v", res.Breakdown)
	}
	if res.Breakdown.ExperienceMatch != 0 {
		t.Fatalf("expected 0 experience for job without level, got %v", res.Breakdown.ExperienceMatch)
	}
	if res.Score < 0 || res.Score > 100 {
		t.Fatalf("score out of bounds: %d", res.Score)
	}
}

func TestWeightsMustSumToOne(t *testing.T) {
	t.Parallel()

	_, err := NewEngine(Config{SkillWeight: 0.5, ExperienceWeight: 0.5, EducationWeight: 0.5})
	if err == nil {
		t.Fatal("expected weight validation error")
	}
}

func TestTokenizeKeepsTechSuffixes(t *testing.T) {
	t.Parallel()

	tokens := tokenize("C++ and C# with Node.js services")
	for _, want := range []string{"c++", "c#", "node.js", "services"} {
		if tokens[want] == 0 {
			t.Fatalf("expected token %q in %v", want, tokens)
		}
	}
	if tokens["and"] != 0 {
		t.Fatal("stop word leaked through")
	}
}

func TestCosineSimilarityIdenticalTexts(t *testing.T) {
	t.Parallel()

	text := "distributed systems engineer writing resilient golang services"
	if sim := cosineSimilarity(text, text); math.Abs(sim-1.0) > 1e-9 {
		t.Fatalf("expected 1.0 for identical texts, got %v", sim)
	}
	if sim := cosineSimilarity(text, ""); sim != 0 {
		t.Fatalf("expected 0 against empty text, got %v", sim)
	}
}
