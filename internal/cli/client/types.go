package client

import "github.com/cloo-solutions/regassist/internal/domain"

type (
	AnswerResult = domain.AnswerResult
	Source       = domain.Source
)

type AnswerRequest struct {
	Query string `json:"query"`
}

type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type SearchResult struct {
	Rank          int     `json:"rank"`
	Score         float32 `json:"score"`
	ID            string  `json:"id"`
	RuleTitle     string  `json:"rule_title"`
	RuleURL       string  `json:"rule_url"`
	RuleDate      string  `json:"rule_date"`
	ParentSection string  `json:"parent_section"`
	SectionTitle  string  `json:"section_title"`
	Content       string  `json:"content"`
}

type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
}

type ReadyStatus struct {
	Status         string `json:"status"`
	Backend        string `json:"backend"`
	IndexVersion   string `json:"index_version"`
	Rows           int    `json:"rows"`
	Dimensions     int    `json:"dimensions"`
	EmbeddingModel string `json:"embedding_model"`
	BuiltAt        string `json:"built_at"`
}
