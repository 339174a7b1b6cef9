package client

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnswerer struct {
	answers map[string]*AnswerResult
}

func (f *fakeAnswerer) Answer(ctx context.Context, query string) (*AnswerResult, error) {
	if r, ok := f.answers[query]; ok {
		return r, nil
	}
	return &AnswerResult{Query: query, Answer: "abstain", Sources: []Source{}, Abstained: true}, nil
}

func TestParseEvalSuite_Forms(t *testing.T) {
	tests := []struct {
		name string
		data string
		ext  string
	}{
		{"json wrapped", `{"cases":[{"question":"q1","expected_rules":["R1"]}]}`, ".json"},
		{"json list", `[{"question":"q1","expected_rules":["R1"]}]`, ".json"},
		{"yaml wrapped", "cases:\n  - question: q1\n    expected_rules: [R1]\n", ".yaml"},
		{"yaml list", "- question: q1\n  expected_rules:\n    - R1\n", ".yml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cases, err := ParseEvalSuite([]byte(tt.data), tt.ext)
			require.NoError(t, err)
			require.Len(t, cases, 1)
			assert.Equal(t, "q1", cases[0].Question)
			assert.Equal(t, []string{"R1"}, cases[0].ExpectedRules)
		})
	}
}

func TestParseEvalSuite_Invalid(t *testing.T) {
	_, err := ParseEvalSuite([]byte("{"), ".json")
	assert.Error(t, err)
}

func TestLoadEvalCases_DefaultsToSampleQuestions(t *testing.T) {
	cases, err := loadEvalCases("")
	require.NoError(t, err)
	require.Len(t, cases, 15)
	assert.Equal(t, SampleQuestions[0], cases[0].Question)
}

func TestLoadEvalCases_RejectsBlankQuestion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"question":" "}]`), 0644))

	_, err := loadEvalCases(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "question is required")
}

func TestScoreEval(t *testing.T) {
	cases := []EvalCase{
		{Question: "a", ExpectedRules: []string{"R1"}},
		{Question: "b", ExpectedRules: []string{"R2", "R3"}},
		{Question: "c"},
	}
	results := []*AnswerResult{
		{Sources: []Source{{RuleTitle: "X"}, {RuleTitle: "R1"}}},
		{Sources: []Source{{RuleTitle: "R2"}, {RuleTitle: "R2"}}},
		{Abstained: true},
	}

	summary, caseResults := ScoreEval(cases, results, 5)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Abstained)
	assert.InDelta(t, 1.0/3.0, summary.AbstentionRate, 1e-9)
	assert.Equal(t, 2, summary.Scored)
	assert.InDelta(t, (1.0+0.5)/2, summary.RecallAtK, 1e-9)
	assert.InDelta(t, (0.5+1.0)/2, summary.MRR, 1e-9)
	assert.InDelta(t, 1.0, summary.HitRateAtK, 1e-9)

	require.Len(t, caseResults, 2)
	assert.Equal(t, 2, caseResults[0].Rank)
	assert.Equal(t, []string{"X", "R1"}, caseResults[0].FoundRules)
}

func TestScoreEval_RespectsK(t *testing.T) {
	cases := []EvalCase{{Question: "a", ExpectedRules: []string{"R1"}}}
	results := []*AnswerResult{{Sources: []Source{{RuleTitle: "X"}, {RuleTitle: "R1"}}}}

	summary, caseResults := ScoreEval(cases, results, 1)
	assert.Equal(t, 0.0, summary.HitRateAtK)
	assert.Equal(t, 0, caseResults[0].Rank)
}

func TestWriteEvalResults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "evaluation")
	results := []*AnswerResult{
		{Query: "سوال یک", Answer: "پاسخ, با کاما", NumChunksRetrieved: 5, Sources: []Source{{RuleTitle: "R", SectionTitle: "S", Score: 0.123456}}},
		{Query: "سوال دو", Answer: "abstain", Sources: []Source{}, Abstained: true},
	}

	jsonPath, csvPath, err := WriteEvalResults(dir, "20261019_120000", results)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "eval_results_20261019_120000.json"), jsonPath)
	assert.Equal(t, filepath.Join(dir, "eval_results_20261019_120000.csv"), csvPath)

	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "سوال یک", "persian text is written unescaped")
	var decoded []AnswerResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded, 2)

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, EvalCSVHeader, rows[0])
	assert.Equal(t, []string{"سوال یک", "پاسخ, با کاما", "5", "R", "S", "0.1235"}, rows[1])
	assert.Equal(t, []string{"سوال دو", "abstain", "0", "", "", "0.0000"}, rows[2])
}

func TestRunEval_WritesFilesAndSummary(t *testing.T) {
	dir := t.TempDir()
	api := &fakeAnswerer{answers: map[string]*AnswerResult{
		"q1": {Query: "q1", Answer: "a1", Sources: []Source{{RuleTitle: "R1", SectionTitle: "S", Score: 0.9}}, NumChunksRetrieved: 1},
	}}
	cases := []EvalCase{{Question: "q1", ExpectedRules: []string{"R1"}}, {Question: "q2"}}

	var buf bytes.Buffer
	err := runEval(nil, api, cases, evalOptions{
		outDir:     dir,
		k:          5,
		outputJSON: true,
		now:        time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC),
	}, &buf)
	require.NoError(t, err)

	var out EvalOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, 2, out.Summary.Total)
	assert.Equal(t, 1, out.Summary.Abstained)
	assert.InDelta(t, 1.0, out.Summary.MRR, 1e-9)
	assert.FileExists(t, filepath.Join(dir, "eval_results_20261019_083000.json"))
	assert.FileExists(t, filepath.Join(dir, "eval_results_20261019_083000.csv"))
}
