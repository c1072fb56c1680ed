// Package news supplies recent crypto headlines for the prompt header.
package news

import (
	"context"
	"strings"
	"sync"
	"time"

	"crypto-llm-analyst/internal/interfaces"
	"crypto-llm-analyst/internal/logger"
	"crypto-llm-analyst/internal/types"
)

// Service caches scraped headlines for a short period so schedules shorter
// than the cache duration do not re-scrape.
type Service struct {
	scraper *Scraper
	ttl     time.Duration
	log     *logger.Logger

	mu      sync.Mutex
	cached  []types.NewsArticle
	fetched time.Time
	now     func() time.Time
}

var _ interfaces.HeadlineSource = (*Service)(nil)

func NewService(scraper *Scraper, ttl time.Duration, log *logger.Logger) *Service {
	return &Service{scraper: scraper, ttl: ttl, log: log, now: time.Now}
}

// Headlines returns up to max distinct headlines, newest scrape first.
func (s *Service) Headlines(ctx context.Context, max int) ([]types.NewsArticle, error) {
	if max <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	if s.cached != nil && s.now().Sub(s.fetched) < s.ttl {
		out := limit(s.cached, max)
		s.mu.Unlock()
		s.log.Debug(ctx, "Using cached headlines", "count", len(out))
		return out, nil
	}
	s.mu.Unlock()

	articles, err := s.scraper.Scrape(ctx, max*2)
	if err != nil {
		return nil, err
	}
	articles = dedupe(articles)

	s.mu.Lock()
	s.cached, s.fetched = articles, s.now()
	s.mu.Unlock()

	return limit(articles, max), nil
}

// Titles extracts the headline text of articles.
func Titles(articles []types.NewsArticle) []string {
	out := make([]string, 0, len(articles))
	for _, a := range articles {
		out = append(out, a.Title)
	}
	return out
}

func dedupe(articles []types.NewsArticle) []types.NewsArticle {
	seen := make(map[string]bool, len(articles))
	out := make([]types.NewsArticle, 0, len(articles))
	for _, a := range articles {
		key := strings.ToLower(a.Title)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out
}

func limit(articles []types.NewsArticle, max int) []types.NewsArticle {
	if len(articles) > max {
		articles = articles[:max]
	}
	return append([]types.NewsArticle(nil), articles...)
}
