package domain

import (
	"strings"
	"unicode/utf8"
)

// AbstentionSentence is the only output allowed when the evidence cannot support an answer.
const AbstentionSentence = "اطلاعاتی در مورد این سوال در آیین‌نامه‌های موجود یافت نشد. لطفاً از اداره آموزش استعلام بگیرید."

// PreviewLength is the number of characters of chunk content shown with each source.
const PreviewLength = 200

// Source attributes an answer to one retrieved chunk.
type Source struct {
	RuleTitle      string  `json:"rule_title"`
	SectionTitle   string  `json:"section_title"`
	RuleURL        string  `json:"rule_url,omitempty"`
	Score          float32 `json:"score"`
	ContentPreview string  `json:"content_preview"`
}

// AnswerResult is the outcome of answering one question.
type AnswerResult struct {
	Query              string   `json:"query"`
	Answer             string   `json:"answer"`
	Sources            []Source `json:"sources"`
	NumChunksRetrieved int      `json:"num_chunks_retrieved"`
	Abstained          bool     `json:"abstained"`
}

// IsAbstention reports whether a generated answer is the fixed abstention sentence.
func IsAbstention(answer string) bool {
	return strings.TrimSpace(answer) == AbstentionSentence
}

// Preview returns the first n characters of s.
func Preview(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// NewSource builds a source entry from a retrieval result.
func NewSource(r RetrievalResult) Source {
	return Source{
		RuleTitle:      r.RuleTitle,
		SectionTitle:   r.SectionTitle,
		RuleURL:        r.RuleURL,
		Score:          r.Score,
		ContentPreview: Preview(r.Content, PreviewLength),
	}
}
