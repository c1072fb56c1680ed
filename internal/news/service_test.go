package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-llm-analyst/internal/logger"
	"crypto-llm-analyst/internal/types"
)

const listing = `<html><body>
<article><a href="/news/btc-etf"><h3>  Bitcoin ETF
 inflows hit record </h3></a><time datetime="2024-05-01T10:00:00Z">1h ago</time></article>
<article><a href="https://other.example/eth"><h3>Ether gas fees fall</h3></a></article>
<article><a href="/news/dup"><h3>bitcoin etf inflows hit record</h3></a></article>
<article><h3>No link here</h3></article>
<article><a href="/news/sol"><h3>Solana outage resolved</h3></a></article>
</body></html>`

func testSource(url string) NewsSource {
	return NewsSource{
		Name:    "Test",
		BaseURL: url,
		Path:    "/news",
		Selectors: ArticleSelectors{
			ArticleContainer: "article",
			Title:            "h3",
			URL:              "a",
			PublishedAt:      "time",
		},
	}
}

func newListingServer(t *testing.T, hits *int32) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		if r.URL.Path != "/news" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(listing))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestScrapeExtractsArticles(t *testing.T) {
	srv := newListingServer(t, nil)
	s := NewScraper(5*time.Second, logger.Nop(), testSource(srv.URL))

	articles, err := s.Scrape(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, articles, 4)

	assert.Equal(t, "Bitcoin ETF inflows hit record", articles[0].Title)
	assert.Equal(t, srv.URL+"/news/btc-etf", articles[0].URL)
	assert.Equal(t, "2024-05-01T10:00:00Z", articles[0].PublishedAt)
	assert.Equal(t, "Test", articles[0].Source)
	assert.Equal(t, "https://other.example/eth", articles[1].URL)
}

func TestScrapeAllSourcesFailing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewScraper(time.Second, logger.Nop(), testSource(srv.URL)).Scrape(context.Background(), 5)
	assert.ErrorIs(t, err, types.ErrUnavailable)
}

func TestServiceDedupesLimitsAndCaches(t *testing.T) {
	var hits int32
	srv := newListingServer(t, &hits)
	svc := NewService(NewScraper(5*time.Second, logger.Nop(), testSource(srv.URL)), time.Hour, logger.Nop())

	got, err := svc.Headlines(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bitcoin ETF inflows hit record", "Ether gas fees fall", "Solana outage resolved"}, Titles(got))

	again, err := svc.Headlines(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, again, 2)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestServiceExpiresCache(t *testing.T) {
	var hits int32
	srv := newListingServer(t, &hits)
	svc := NewService(NewScraper(5*time.Second, logger.Nop(), testSource(srv.URL)), time.Minute, logger.Nop())
	now := time.Now()
	svc.now = func() time.Time { return now }

	_, err := svc.Headlines(context.Background(), 2)
	require.NoError(t, err)
	now = now.Add(2 * time.Minute)
	_, err = svc.Headlines(context.Background(), 2)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
}

func TestServiceZeroMax(t *testing.T) {
	svc := NewService(NewScraper(time.Second, logger.Nop(), testSource("http://unused.invalid")), time.Minute, logger.Nop())
	got, err := svc.Headlines(context.Background(), 0)
	assert.NoError(t, err)
	assert.Empty(t, got)
}
