package crawler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"sitechat/internal/models"
)

var ErrEmptySeed = errors.New("crawl seed URL cannot be empty")

type Config struct {
	MaxPages  int
	Timeout   time.Duration
	UserAgent string
	Delay     time.Duration    // politeness delay between fetches
	OnPage    func(url string) // progress callback, may be nil
}

// Crawler walks a single domain breadth-first from a seed URL. Fetches are
// sequential; the limiter enforces the inter-fetch delay.
type Crawler struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

func New(config Config, logger *zap.Logger) *Crawler {
	if config.MaxPages == 0 {
		config.MaxPages = 5
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Delay == 0 {
		config.Delay = 500 * time.Millisecond
	}

	return &Crawler{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(rate.Every(config.Delay), 1),
		logger:  logger,
	}
}

// Crawl fetches up to MaxPages same-domain HTML pages reachable from seedURL,
// in breadth-first order. Individual fetch failures are logged and skipped;
// only an empty or unparsable seed is an error.
func (c *Crawler) Crawl(ctx context.Context, seedURL string) ([]models.CrawlResult, error) {
	if seedURL == "" {
		return nil, ErrEmptySeed
	}

	seed, err := url.Parse(seedURL)
	if err != nil {
		return nil, err
	}
	baseHost := seed.Host

	c.logger.Info("starting crawl",
		zap.String("seed", seedURL),
		zap.Int("limit", c.config.MaxPages))

	queue := []string{seedURL}
	visited := map[string]bool{stripFragment(seedURL): true}
	emitted := make(map[string]bool)
	var results []models.CrawlResult

	for len(queue) > 0 && len(results) < c.config.MaxPages {
		currentURL := queue[0]
		queue = queue[1:]

		if err := c.limiter.Wait(ctx); err != nil {
			return results, err
		}

		finalURL, html, err := c.fetch(ctx, currentURL, baseHost)
		if err != nil {
			c.logger.Warn("skipping page", zap.String("url", currentURL), zap.Error(err))
			continue
		}

		// Redirects can land two distinct queued URLs on the same final page.
		finalKey := stripFragment(finalURL)
		if emitted[finalKey] {
			c.logger.Debug("skipping duplicate redirect target",
				zap.String("url", currentURL),
				zap.String("final", finalURL))
			continue
		}
		emitted[finalKey] = true
		visited[finalKey] = true

		results = append(results, models.CrawlResult{URL: finalURL, HTML: html})
		if c.config.OnPage != nil {
			c.config.OnPage(finalURL)
		}

		if len(results) < c.config.MaxPages {
			for _, link := range c.discoverLinks(finalURL, html, baseHost) {
				if !visited[link] {
					visited[link] = true
					queue = append(queue, link)
				}
			}
		}
	}

	c.logger.Info("crawl complete", zap.Int("pages", len(results)))
	return results, nil
}

// fetch retrieves one page and enforces the same-domain and HTML-only rules.
// The returned URL is the final one after redirects.
func (c *Crawler) fetch(ctx context.Context, pageURL, baseHost string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", errors.New("status " + resp.Status)
	}

	finalURL := resp.Request.URL
	if finalURL.Host != baseHost {
		return "", "", errors.New("redirected off-domain to " + finalURL.Host)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "text/html") {
		return "", "", errors.New("non-HTML content: " + contentType)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", err
	}

	return finalURL.String(), string(body), nil
}

// discoverLinks extracts same-domain anchor targets from a page, resolved
// against the page URL and with fragments stripped.
func (c *Crawler) discoverLinks(pageURL, html, baseHost string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		c.logger.Warn("failed to parse page for links", zap.String("url", pageURL), zap.Error(err))
		return nil
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, selection *goquery.Selection) {
		href, exists := selection.Attr("href")
		if !exists {
			return
		}

		resolved, err := url.Parse(href)
		if err != nil {
			return
		}
		absolute := base.ResolveReference(resolved)
		absolute.Fragment = ""

		if absolute.Host != baseHost {
			return
		}
		if absolute.Scheme != "http" && absolute.Scheme != "https" {
			return
		}

		links = append(links, absolute.String())
	})

	return links
}

func stripFragment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Fragment = ""
	return u.String()
}
