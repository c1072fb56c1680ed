package news

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"crypto-llm-analyst/internal/logger"
	"crypto-llm-analyst/internal/types"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Scraper handles scraping headlines from multiple sources
type Scraper struct {
	sources []NewsSource
	timeout time.Duration
	log     *logger.Logger
}

// NewsSource defines a news source configuration
type NewsSource struct {
	Name      string
	BaseURL   string
	Path      string
	Selectors ArticleSelectors
	RateLimit time.Duration
}

// ArticleSelectors defines CSS selectors for extracting article data
type ArticleSelectors struct {
	ArticleContainer string
	Title            string
	URL              string
	PublishedAt      string
}

// NewScraper creates a scraper over sources, or the default crypto news
// sites when sources is empty.
func NewScraper(timeout time.Duration, log *logger.Logger, sources ...NewsSource) *Scraper {
	if len(sources) == 0 {
		sources = DefaultSources()
	}
	return &Scraper{sources: sources, timeout: timeout, log: log}
}

// DefaultSources returns the crypto news listings scraped by default
func DefaultSources() []NewsSource {
	return []NewsSource{
		{
			Name:    "Cointelegraph",
			BaseURL: "https://cointelegraph.com",
			Path:    "/category/latest-news",
			Selectors: ArticleSelectors{
				ArticleContainer: "article",
				Title:            "span.post-card-inline__title, a",
				URL:              "a",
				PublishedAt:      "time",
			},
			RateLimit: 2 * time.Second,
		},
		{
			Name:    "Decrypt",
			BaseURL: "https://decrypt.co",
			Path:    "/news",
			Selectors: ArticleSelectors{
				ArticleContainer: "article",
				Title:            "h3, h2",
				URL:              "a",
				PublishedAt:      "time",
			},
			RateLimit: 2 * time.Second,
		},
		{
			Name:    "CoinDesk",
			BaseURL: "https://www.coindesk.com",
			Path:    "/latest-crypto-news",
			Selectors: ArticleSelectors{
				ArticleContainer: "div.bg-white",
				Title:            "h2, h3",
				URL:              "a",
				PublishedAt:      "span.font-metadata",
			},
			RateLimit: 2 * time.Second,
		},
	}
}

// Scrape collects up to maxArticles headlines across all sources. It fails
// only when every source fails.
func (s *Scraper) Scrape(ctx context.Context, maxArticles int) ([]types.NewsArticle, error) {
	s.log.Info(ctx, "Starting news scraping", "sources", len(s.sources))

	perSource := maxArticles / len(s.sources)
	if perSource < 1 {
		perSource = 1
	}

	var (
		all  []types.NewsArticle
		errs []error
	)
	for i, source := range s.sources {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		articles, err := s.scrapeSource(ctx, source, perSource)
		if err != nil {
			s.log.Warn(ctx, "Failed to scrape source", "source", source.Name, "error", err)
			errs = append(errs, err)
			continue
		}
		all = append(all, articles...)

		if i < len(s.sources)-1 && source.RateLimit > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(source.RateLimit):
			}
		}
	}

	if len(all) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", types.ErrUnavailable, errors.Join(errs...))
	}
	s.log.Info(ctx, "News scraping completed", "articles", len(all))
	return all, nil
}

// scrapeSource scrapes headlines from a single news source
func (s *Scraper) scrapeSource(ctx context.Context, source NewsSource, maxArticles int) ([]types.NewsArticle, error) {
	var articles []types.NewsArticle

	c := colly.NewCollector(
		colly.AllowedDomains(getDomain(source.BaseURL)),
		colly.MaxDepth(1),
		colly.UserAgent(userAgent),
	)
	c.SetRequestTimeout(s.timeout)

	c.OnHTML(source.Selectors.ArticleContainer, func(e *colly.HTMLElement) {
		if len(articles) >= maxArticles {
			return
		}
		a, ok := extract(e.DOM, source)
		if ok {
			articles = append(articles, a)
		}
	})

	var scrapeErr error
	c.OnError(func(r *colly.Response, err error) {
		scrapeErr = fmt.Errorf("%s: status %d: %w", source.Name, r.StatusCode, err)
	})

	pageURL := source.BaseURL + source.Path
	if err := c.Visit(pageURL); err != nil {
		return nil, fmt.Errorf("failed to visit %s: %w", pageURL, err)
	}
	c.Wait()

	if scrapeErr != nil {
		return nil, scrapeErr
	}
	return articles, nil
}

// extract reads one article card. Titles are whitespace-normalised and
// relative links resolved against the source.
func extract(sel *goquery.Selection, source NewsSource) (types.NewsArticle, bool) {
	title := strings.Join(strings.Fields(sel.Find(source.Selectors.Title).First().Text()), " ")
	if title == "" {
		return types.NewsArticle{}, false
	}
	href, ok := sel.Find(source.Selectors.URL).First().Attr("href")
	if !ok || href == "" {
		return types.NewsArticle{}, false
	}

	article := types.NewsArticle{
		Title:  title,
		URL:    resolve(source.BaseURL, href),
		Source: source.Name,
	}
	if source.Selectors.PublishedAt != "" {
		ts := sel.Find(source.Selectors.PublishedAt).First()
		if dt, ok := ts.Attr("datetime"); ok {
			article.PublishedAt = dt
		} else {
			article.PublishedAt = strings.TrimSpace(ts.Text())
		}
	}
	return article, true
}

func resolve(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	u, err := b.Parse(href)
	if err != nil {
		return href
	}
	return u.String()
}

// getDomain extracts domain from URL
func getDomain(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
