package service

import (
	"context"
	"time"
)

// AnswerLogSource captures one cited chunk for logging.
type AnswerLogSource struct {
	ID    string  `json:"id"`
	Rank  int     `json:"rank"`
	Score float32 `json:"score"`
}

// AnswerLogEntry captures an answered question and how it was answered.
type AnswerLogEntry struct {
	Query      string
	Answer     string
	Abstained  bool
	ErrorCode  string
	TopK       int
	DurationMs int
	Sources    []AnswerLogSource
}

// AnswerLog is a stored answer log entry.
type AnswerLog struct {
	ID         string            `json:"id"`
	Query      string            `json:"query"`
	Answer     string            `json:"answer"`
	Abstained  bool              `json:"abstained"`
	ErrorCode  string            `json:"error_code,omitempty"`
	TopK       int               `json:"top_k"`
	DurationMs int               `json:"duration_ms"`
	Sources    []AnswerLogSource `json:"sources"`
	CreatedAt  time.Time         `json:"created_at"`
}

// AnswerLogRepository persists answer logs.
type AnswerLogRepository interface {
	CreateAnswerLog(ctx context.Context, entry AnswerLogEntry) (string, error)
}

// AnswerStats summarizes logged answers over a window.
type AnswerStats struct {
	Total          int     `json:"total"`
	Abstained      int     `json:"abstained"`
	Failed         int     `json:"failed"`
	AbstentionRate float64 `json:"abstention_rate"`
}
