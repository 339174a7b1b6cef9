package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/cloo-solutions/regassist/internal/api"
	"github.com/cloo-solutions/regassist/internal/domain"
	"github.com/cloo-solutions/regassist/internal/logger"
)

type AnswerService interface {
	Answer(ctx context.Context, query string) (*domain.AnswerResult, error)
	Search(ctx context.Context, query string, limit int) ([]domain.RetrievalResult, error)
}

// MaxSearchLimit caps the number of results a search request may ask for.
const MaxSearchLimit = 50

type AnswerHandler struct {
	svc AnswerService
}

func NewAnswerHandler(svc AnswerService) *AnswerHandler {
	return &AnswerHandler{svc: svc}
}

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

func toSearchResult(r domain.RetrievalResult) SearchResult {
	return SearchResult{
		Rank:          r.Rank,
		Score:         r.Score,
		ID:            r.ID,
		RuleTitle:     r.RuleTitle,
		RuleURL:       r.RuleURL,
		RuleDate:      r.RuleDate,
		ParentSection: r.ParentSection,
		SectionTitle:  r.SectionTitle,
		Content:       r.Content,
	}
}

func (h *AnswerHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.decodeError(w, err)
		return
	}

	result, err := h.svc.Answer(r.Context(), req.Query)
	if err != nil {
		logFailure(r, "answer failed", err)
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, result)
}

func (h *AnswerHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.decodeError(w, err)
		return
	}

	if req.Limit < 0 || req.Limit > MaxSearchLimit {
		api.HandleError(w, domain.NewDomainError(domain.ErrCodeValidation,
			fmt.Sprintf("limit must be between 0 and %d", MaxSearchLimit)))
		return
	}

	results, err := h.svc.Search(r.Context(), req.Query, req.Limit)
	if err != nil {
		logFailure(r, "search failed", err)
		api.HandleError(w, err)
		return
	}

	out := make([]SearchResult, len(results))
	for i, res := range results {
		out[i] = toSearchResult(res)
	}

	api.Success(w, http.StatusOK, SearchResponse{
		Query:   req.Query,
		Results: out,
		Total:   len(out),
	})
}

func (h *AnswerHandler) decodeError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		api.HandleError(w, domain.BodyTooLarge(maxErr.Limit))
		return
	}
	api.Error(w, http.StatusBadRequest, "invalid request body")
}

// logFailure keeps the cause of 5xx responses, which the client never sees.
func logFailure(r *http.Request, msg string, err error) {
	if api.DomainErrorToHTTP(err) < http.StatusInternalServerError {
		return
	}
	logger.FromContext(r.Context()).Error(msg, "error", err, "code", domain.CodeOf(err))
}
