package scraper_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexline/paddock/pkg/scraper"
)

const page = `<html>
<head><title>  Grand Prix Results </title><style>body { color: red }</style></head>
<body>
<nav>Home | Results | Standings</nav>
<main>
<h1>2020 Italian Grand Prix</h1>
<p>Lewis Hamilton set a lap of 1:11.009   at Monza.</p>
<script>trackPageView();</script>
</main>
<footer>Privacy Policy</footer>
</body>
</html>`

func TestScraper_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	s := scraper.NewWithConfig(scraper.ScraperConfig{RateLimit: 100})
	doc, err := s.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, srv.URL, doc.URL)
	assert.Equal(t, "Grand Prix Results", doc.Title)
	assert.Contains(t, doc.Content, "2020 Italian Grand Prix")
	assert.Contains(t, doc.Content, "1:11.009 at Monza")
	assert.NotContains(t, doc.Content, "trackPageView", "scripts are stripped")
	assert.NotContains(t, doc.Content, "color: red", "styles are stripped")
	assert.NotContains(t, doc.Content, "Standings", "nav chrome is stripped")
	assert.WithinDuration(t, time.Now(), doc.FetchedAt, time.Minute)
}

func TestScraper_FetchNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	s := scraper.NewWithConfig(scraper.ScraperConfig{RateLimit: 100})
	_, err := s.Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status code 404")
}

func TestScraper_FetchCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := scraper.NewWithConfig(scraper.ScraperConfig{RateLimit: 100})
	_, err := s.Fetch(ctx, srv.URL)
	assert.Error(t, err)
}

func TestScraper_ProgressCallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	var seen []string
	s := scraper.NewWithConfig(scraper.ScraperConfig{
		RateLimit:  100,
		OnProgress: func(url string) { seen = append(seen, url) },
	})

	_, err := s.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL}, seen)
}
