package client

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cloo-solutions/regassist/internal/domain"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// SampleQuestions is the built-in evaluation set used when no suite file is given.
var SampleQuestions = []string{
	"شرایط مشروطی دانشجوی کارشناسی چیست؟",
	"حداکثر سنوات مجاز تحصیل در دوره کارشناسی چقدر است؟",
	"آیا استفاده از ابزار هوش مصنوعی در تکالیف درسی مجاز است؟",
	"شرایط حذف اضطراری درس چیست؟",
	"قوانین غیبت در امتحان پایان‌ترم چیست؟",
	"شرایط معرفی به استاد چگونه است؟",
	"قوانین کارآموزی در دوره کارشناسی چیست؟",
	"شرایط مهمانی دانشجو در دانشگاه دیگر چگونه است؟",
	"قوانین تغییر رشته در دوره کارشناسی چیست؟",
	"شرایط پروژه کارشناسی چگونه است؟",
	"آیین‌نامه دوره کوآپ چه مقرراتی دارد؟",
	"شرایط انتقال به دانشگاه صنعتی شریف چیست؟",
	"مهلت فراغت از تحصیل چقدر است؟",
	"حداقل و حداکثر واحد مجاز در هر ترم چقدر است؟",
	"شرایط دستیاری آموزشی چیست؟",
}

type EvalCase struct {
	Question      string   `json:"question" yaml:"question"`
	ExpectedRules []string `json:"expected_rules,omitempty" yaml:"expected_rules,omitempty"`
}

type EvalSuite struct {
	Cases []EvalCase `json:"cases" yaml:"cases"`
}

type EvalSummary struct {
	Total          int     `json:"total"`
	Abstained      int     `json:"abstained"`
	AbstentionRate float64 `json:"abstention_rate"`
	// Retrieval metrics cover only cases with expected rules.
	Scored     int     `json:"scored"`
	K          int     `json:"k,omitempty"`
	RecallAtK  float64 `json:"recall_at_k,omitempty"`
	MRR        float64 `json:"mrr,omitempty"`
	HitRateAtK float64 `json:"hit_rate_at_k,omitempty"`
}

type EvalCaseResult struct {
	Question      string   `json:"question"`
	ExpectedRules []string `json:"expected_rules"`
	FoundRules    []string `json:"found_rules"`
	Rank          int      `json:"rank"`
	RecallAtK     float64  `json:"recall_at_k"`
	RR            float64  `json:"rr"`
}

type EvalOutput struct {
	Summary  EvalSummary      `json:"summary"`
	JSONPath string           `json:"json_path"`
	CSVPath  string           `json:"csv_path"`
	Cases    []EvalCaseResult `json:"cases,omitempty"`
}

// EvalCmd creates the eval command.
func EvalCmd() *cobra.Command {
	var (
		file    string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "eval [--file <suite.yaml|suite.json>]",
		Short: "Evaluate answer quality",
		Long: `Runs a question set against the server and saves the answers as JSON and CSV.

Without --file the built-in sample questions are used. A suite file may be YAML
or JSON and holds either:
  - { "cases": [ { "question": "...", "expected_rules": [...] } ] }
  - [ { "question": "...", "expected_rules": [...] } ]

Cases with expected_rules are scored for recall@k, MRR and hit@k against the
rule titles of the returned sources.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cases, err := loadEvalCases(file)
			if err != nil {
				return err
			}

			r, err := Resolve(cmd)
			if err != nil {
				return err
			}

			return runEval(cmd, NewAPIClient(r), cases, evalOptions{
				outDir:     r.EvalDir,
				k:          r.EvalK,
				verbose:    verbose,
				outputJSON: r.JSON,
				now:        time.Now(),
			}, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Evaluation suite file (YAML or JSON)")
	cmd.Flags().String("out-dir", "", "Directory for result files (default eval_dir setting, then evaluation)")
	cmd.Flags().Int("k", 0, "Compute recall@k and hit@k (default eval_k setting, then 5)")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Print per-case results")

	return cmd
}

type evalOptions struct {
	outDir     string
	k          int
	verbose    bool
	outputJSON bool
	now        time.Time
}

func loadEvalCases(file string) ([]EvalCase, error) {
	if file == "" {
		cases := make([]EvalCase, len(SampleQuestions))
		for i, q := range SampleQuestions {
			cases[i] = EvalCase{Question: q}
		}
		return cases, nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read eval file: %w", err)
	}

	cases, err := ParseEvalSuite(data, filepath.Ext(file))
	if err != nil {
		return nil, err
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("no eval cases provided")
	}
	for i, c := range cases {
		if strings.TrimSpace(c.Question) == "" {
			return nil, fmt.Errorf("eval case %d: question is required", i+1)
		}
	}
	return cases, nil
}

// ParseEvalSuite decodes a suite in either wrapped or bare-list form. The
// extension selects YAML for .yaml and .yml, JSON otherwise.
func ParseEvalSuite(data []byte, ext string) ([]EvalCase, error) {
	unmarshal := json.Unmarshal
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		unmarshal = yaml.Unmarshal
	}

	var suite EvalSuite
	if err := unmarshal(data, &suite); err == nil && len(suite.Cases) > 0 {
		return suite.Cases, nil
	}

	var cases []EvalCase
	if err := unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("failed to parse eval file: %w", err)
	}
	return cases, nil
}

type answerer interface {
	Answer(ctx context.Context, query string) (*AnswerResult, error)
}

func runEval(cmd *cobra.Command, api answerer, cases []EvalCase, opts evalOptions, w io.Writer) error {
	if opts.k <= 0 {
		opts.k = defaultEvalK
	}

	ctx := commandContext(cmd)
	results := make([]*AnswerResult, 0, len(cases))
	for i, c := range cases {
		if !opts.outputJSON {
			fmt.Fprintf(w, "[%d/%d] %s\n", i+1, len(cases), c.Question)
		}

		result, err := api.Answer(ctx, c.Question)
		if err != nil {
			return fmt.Errorf("answer failed for question %q: %w", c.Question, err)
		}
		results = append(results, result)

		if !opts.outputJSON {
			fmt.Fprintf(w, "  → %s...\n\n", domain.Preview(result.Answer, 100))
		}
	}

	timestamp := opts.now.Format("20060102_150405")
	jsonPath, csvPath, err := WriteEvalResults(opts.outDir, timestamp, results)
	if err != nil {
		return err
	}

	summary, caseResults := ScoreEval(cases, results, opts.k)

	if opts.outputJSON {
		out := EvalOutput{Summary: summary, JSONPath: jsonPath, CSVPath: csvPath}
		if opts.verbose {
			out.Cases = caseResults
		}
		return writeJSON(w, out)
	}

	fmt.Fprintf(w, "JSON results saved to %s\n", jsonPath)
	fmt.Fprintf(w, "CSV results saved to %s\n", csvPath)
	fmt.Fprintf(w, "Abstention rate: %.4f (%d/%d)\n", summary.AbstentionRate, summary.Abstained, summary.Total)

	if summary.Scored > 0 {
		fmt.Fprintf(w, "Recall@%d: %.4f\n", summary.K, summary.RecallAtK)
		fmt.Fprintf(w, "MRR: %.4f\n", summary.MRR)
		fmt.Fprintf(w, "Hit@%d: %.4f\n", summary.K, summary.HitRateAtK)
	}

	if opts.verbose {
		for _, r := range caseResults {
			fmt.Fprintf(w, "\nQuestion: %s\n", r.Question)
			fmt.Fprintf(w, "Rank: %d  Recall@%d: %.4f  RR: %.4f\n", r.Rank, summary.K, r.RecallAtK, r.RR)
			fmt.Fprintf(w, "Expected: %v\n", r.ExpectedRules)
			fmt.Fprintf(w, "Found: %v\n", r.FoundRules)
		}
	}

	return nil
}

// ScoreEval computes the abstention rate over all results and retrieval
// metrics over the cases that name expected rules. results[i] answers cases[i].
func ScoreEval(cases []EvalCase, results []*AnswerResult, k int) (EvalSummary, []EvalCaseResult) {
	summary := EvalSummary{Total: len(results), K: k}

	var (
		sumRecall   float64
		sumRR       float64
		hitCount    int
		caseResults []EvalCaseResult
	)

	for i, result := range results {
		if result.Abstained {
			summary.Abstained++
		}

		c := cases[i]
		if len(c.ExpectedRules) == 0 {
			continue
		}

		expectedSet := make(map[string]struct{}, len(c.ExpectedRules))
		for _, r := range c.ExpectedRules {
			expectedSet[strings.TrimSpace(r)] = struct{}{}
		}

		found := make([]string, 0, len(result.Sources))
		matched := make(map[string]struct{})
		rank := 0
		for j, s := range result.Sources {
			found = append(found, s.RuleTitle)
			if j >= k {
				continue
			}
			if _, ok := expectedSet[s.RuleTitle]; ok {
				matched[s.RuleTitle] = struct{}{}
				if rank == 0 {
					rank = j + 1
				}
			}
		}

		recall := float64(len(matched)) / float64(len(expectedSet))
		sumRecall += recall
		rr := 0.0
		if rank > 0 {
			rr = 1.0 / float64(rank)
			sumRR += rr
			hitCount++
		}

		caseResults = append(caseResults, EvalCaseResult{
			Question:      c.Question,
			ExpectedRules: c.ExpectedRules,
			FoundRules:    found,
			Rank:          rank,
			RecallAtK:     recall,
			RR:            rr,
		})
	}

	if summary.Total > 0 {
		summary.AbstentionRate = float64(summary.Abstained) / float64(summary.Total)
	}
	summary.Scored = len(caseResults)
	if summary.Scored > 0 {
		n := float64(summary.Scored)
		summary.RecallAtK = sumRecall / n
		summary.MRR = sumRR / n
		summary.HitRateAtK = float64(hitCount) / n
	}

	return summary, caseResults
}

// EvalCSVHeader lists the columns of the CSV results file.
var EvalCSVHeader = []string{"question", "answer", "num_sources", "source_1_title", "source_1_section", "source_1_score"}

// WriteEvalResults saves results as eval_results_<timestamp>.json and .csv in dir.
func WriteEvalResults(dir, timestamp string, results []*AnswerResult) (jsonPath, csvPath string, err error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create output directory: %w", err)
	}

	jsonPath = filepath.Join(dir, "eval_results_"+timestamp+".json")
	data, err := marshalIndentNoEscape(results)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return "", "", fmt.Errorf("failed to write %s: %w", jsonPath, err)
	}

	csvPath = filepath.Join(dir, "eval_results_"+timestamp+".csv")
	f, err := os.Create(csvPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to create %s: %w", csvPath, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(EvalCSVHeader); err != nil {
		return "", "", err
	}
	for _, r := range results {
		var top Source
		if len(r.Sources) > 0 {
			top = r.Sources[0]
		}
		row := []string{
			r.Query,
			r.Answer,
			strconv.Itoa(r.NumChunksRetrieved),
			top.RuleTitle,
			top.SectionTitle,
			strconv.FormatFloat(float64(top.Score), 'f', 4, 32),
		}
		if err := cw.Write(row); err != nil {
			return "", "", err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", "", fmt.Errorf("failed to write %s: %w", csvPath, err)
	}

	return jsonPath, csvPath, nil
}

func marshalIndentNoEscape(v any) ([]byte, error) {
	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}
