// Package scraper crawls the published regulations and turns each rule page
// into chunks.
package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cloo-solutions/regassist/internal/domain"
	"github.com/cloo-solutions/regassist/internal/logger"
	"github.com/cloo-solutions/regassist/internal/segmenter"
	"golang.org/x/time/rate"
)

const maxPageBytes = 10 << 20

// Config configures a Scraper.
type Config struct {
	IndexURL string
	// RequestsPerSecond bounds the fetch rate across all pages.
	RequestsPerSecond float64
	Timeout           time.Duration
	UserAgent         string
}

// Scraper fetches the rules index and every rule page it lists.
type Scraper struct {
	http      *http.Client
	limiter   *rate.Limiter
	indexURL  string
	userAgent string
	segmenter *segmenter.Segmenter
	log       *slog.Logger
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Scraper) {
		s.http = c
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Scraper) {
		s.log = l
	}
}

func New(cfg Config, seg *segmenter.Segmenter, opts ...Option) (*Scraper, error) {
	if _, err := url.Parse(cfg.IndexURL); err != nil || cfg.IndexURL == "" {
		return nil, fmt.Errorf("invalid rules index url %q", cfg.IndexURL)
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	s := &Scraper{
		http:      &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		indexURL:  cfg.IndexURL,
		userAgent: cfg.UserAgent,
		segmenter: seg,
		log:       logger.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Result is the outcome of a full crawl.
type Result struct {
	Chunks []domain.Chunk
	Rules  int
	// Failed lists the URLs of rule pages that could not be processed.
	Failed []string
}

// Crawl processes every rule in the index. A rule page that fails is logged
// and skipped; only a failure to read the index itself is returned.
func (s *Scraper) Crawl(ctx context.Context) (*Result, error) {
	rules, err := s.FetchRuleIndex(ctx)
	if err != nil {
		return nil, err
	}
	s.log.Info("rules found", "count", len(rules))

	res := &Result{Rules: len(rules)}
	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		chunks, err := s.FetchRule(ctx, rule)
		if err != nil {
			s.log.Warn("skipping rule", "title", rule.Title, "url", rule.URL, "error", err)
			res.Failed = append(res.Failed, rule.URL)
			continue
		}
		s.log.Debug("rule processed", "title", rule.Title, "chunks", len(chunks))
		res.Chunks = append(res.Chunks, chunks...)
	}

	s.log.Info("crawl finished", "rules", res.Rules, "failed", len(res.Failed), "chunks", len(res.Chunks))
	return res, nil
}

// FetchRuleIndex downloads and parses the rules listing. Relative rule links
// resolve against the site root, not the listing page.
func (s *Scraper) FetchRuleIndex(ctx context.Context) ([]domain.Rule, error) {
	indexURL, err := url.Parse(s.indexURL)
	if err != nil {
		return nil, fmt.Errorf("invalid rules index url: %w", err)
	}
	base := &url.URL{Scheme: indexURL.Scheme, Host: indexURL.Host, Path: "/"}

	body, err := s.fetch(ctx, s.indexURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rules index: %w", err)
	}
	return ParseRuleIndex(bytes.NewReader(body), base)
}

// FetchRule downloads one rule page and segments it.
func (s *Scraper) FetchRule(ctx context.Context, rule domain.Rule) ([]domain.Chunk, error) {
	body, err := s.fetch(ctx, rule.URL)
	if err != nil {
		return nil, err
	}

	elements, err := ExtractElements(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return s.segmenter.Segment(rule, elements), nil
}

func (s *Scraper) fetch(ctx context.Context, target string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status %d", target, resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
}
