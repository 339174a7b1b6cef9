package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloo-solutions/regassist/internal/pagination"
	"github.com/cloo-solutions/regassist/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AnswerLogRepository stores answered questions for evaluation and stats.
type AnswerLogRepository struct {
	pool *pgxpool.Pool
}

func NewAnswerLogRepository(pool *pgxpool.Pool) *AnswerLogRepository {
	return &AnswerLogRepository{pool: pool}
}

func (r *AnswerLogRepository) CreateAnswerLog(ctx context.Context, entry service.AnswerLogEntry) (string, error) {
	sources := entry.Sources
	if sources == nil {
		sources = []service.AnswerLogSource{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return "", err
	}

	var id string
	err = r.pool.QueryRow(ctx,
		`INSERT INTO answer_logs (query, answer, abstained, error_code, top_k, sources, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		entry.Query,
		entry.Answer,
		entry.Abstained,
		nullableString(entry.ErrorCode),
		entry.TopK,
		sourcesJSON,
		entry.DurationMs,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

// Stats summarizes answers logged at or after since.
func (r *AnswerLogRepository) Stats(ctx context.Context, since time.Time) (*service.AnswerStats, error) {
	var stats service.AnswerStats
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE abstained),
		        COUNT(*) FILTER (WHERE error_code IS NOT NULL)
		 FROM answer_logs
		 WHERE created_at >= $1`,
		since.UTC(),
	).Scan(&stats.Total, &stats.Abstained, &stats.Failed)
	if err != nil {
		return nil, err
	}

	if answered := stats.Total - stats.Failed; answered > 0 {
		stats.AbstentionRate = float64(stats.Abstained) / float64(answered)
	}
	return &stats, nil
}

// List returns logged answers newest first, starting after cursor.
func (r *AnswerLogRepository) List(ctx context.Context, cursor *pagination.Cursor, limit int) (*pagination.Page[service.AnswerLog], error) {
	limit = pagination.ClampLimit(limit)

	query := `SELECT id, query, answer, abstained, COALESCE(error_code, ''), top_k, duration_ms, sources, created_at
		 FROM answer_logs`
	args := []any{}
	if cursor != nil {
		query += ` WHERE (created_at, id) < ($1, $2::uuid)`
		args = append(args, cursor.Timestamp, cursor.LastID)
	}
	args = append(args, limit+1)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []service.AnswerLog
	for rows.Next() {
		var (
			l           service.AnswerLog
			sourcesJSON []byte
		)
		if err := rows.Scan(&l.ID, &l.Query, &l.Answer, &l.Abstained, &l.ErrorCode, &l.TopK, &l.DurationMs, &sourcesJSON, &l.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(sourcesJSON, &l.Sources); err != nil {
			return nil, fmt.Errorf("failed to decode sources of %s: %w", l.ID, err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	page := pagination.NewPage(logs, limit, func(l service.AnswerLog) pagination.Cursor {
		return pagination.Cursor{LastID: l.ID, Timestamp: l.CreatedAt}
	})
	return &page, nil
}
