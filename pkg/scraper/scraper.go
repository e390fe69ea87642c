package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/apexline/paddock/internal/models"
)

type ScraperConfig struct {
	RateLimit  float64 // requests per second
	Timeout    time.Duration
	UserAgent  string
	OnProgress func(url string)
}

// Scraper fetches one page per source URL and reduces it to plain text.
// Requests are rate limited so ingestion stays polite to the source hosts.
type Scraper struct {
	config  ScraperConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewWithConfig(config ScraperConfig) *Scraper {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2 // 2 requests per second by default
	}
	if config.UserAgent == "" {
		config.UserAgent = "paddock-ingest/1.0"
	}

	return &Scraper{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

func New() *Scraper {
	return NewWithConfig(ScraperConfig{})
}

// Fetch retrieves urlStr and returns its extracted text content. Non-200
// responses and unparseable bodies are errors; the caller decides whether
// to skip or abort.
func (s *Scraper) Fetch(ctx context.Context, urlStr string) (models.Document, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return models.Document{}, err
	}

	if s.config.OnProgress != nil {
		s.config.OnProgress(urlStr)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return models.Document{}, err
	}
	req.Header.Set("User-Agent", s.config.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return models.Document{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Document{}, fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, urlStr)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return models.Document{}, err
	}

	return models.Document{
		URL:       urlStr,
		Title:     strings.TrimSpace(doc.Find("title").Text()),
		Content:   s.extractMainContent(doc),
		FetchedAt: time.Now(),
	}, nil
}

func (s *Scraper) extractMainContent(doc *goquery.Document) string {
	// Markup never belongs in the corpus.
	doc.Find("script, style, noscript, nav, header, footer").Remove()

	// Try to find a main content area before falling back to the body.
	selectors := []string{
		"main",
		"article",
		".content",
		"#content",
		".documentation",
		"#documentation",
	}

	var content string
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}

	if content == "" {
		content = doc.Find("body").Text()
	}

	return cleanContent(content)
}

func cleanContent(content string) string {
	content = strings.Join(strings.Fields(content), " ")

	// Remove common noise
	noisePatterns := []string{
		"Cookie Policy",
		"Accept Cookies",
		"Privacy Policy",
		"Terms of Service",
	}
	for _, pattern := range noisePatterns {
		content = strings.ReplaceAll(content, pattern, "")
	}

	return strings.TrimSpace(content)
}
