package extractor

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"sitechat/internal/models"
)

const UnknownTitle = "Unknown Title"

// Tags that carry no readable content, removed before the fallback takes the
// remaining visible text.
const strippedTags = "script, style, nav, footer, header, meta, noscript, svg, button"

var newlineRuns = regexp.MustCompile(`\n{3,}`)

// Extractor converts raw HTML into readable text plus a title. Readability is
// tried first; a structural strip of the DOM is the fallback. Pages whose text
// falls below MinLength are dropped.
type Extractor struct {
	minLength int
	logger    *zap.Logger
}

func New(minLength int, logger *zap.Logger) *Extractor {
	if minLength == 0 {
		minLength = 10
	}
	return &Extractor{minLength: minLength, logger: logger}
}

// Extract returns nil when no usable content can be produced. It never
// returns an error: a failed page must not abort the surrounding batch.
func (e *Extractor) Extract(htmlContent, pageURL string) (page *models.Page) {
	if htmlContent == "" {
		e.logger.Warn("empty HTML content provided for extraction")
		return nil
	}

	// Parser failures on malformed input surface as panics in rare cases;
	// treat those the same as any other failed page.
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("extraction panicked", zap.Any("cause", r), zap.String("url", pageURL))
			page = nil
		}
	}()

	text, title := e.extractReadability(htmlContent, pageURL)

	if strings.TrimSpace(text) == "" {
		e.logger.Warn("readability failed or empty, using structural fallback", zap.String("url", pageURL))
		text, title = e.extractFallback(htmlContent)
	}

	if strings.TrimSpace(text) == "" {
		e.logger.Warn("extraction returned empty data after fallback", zap.String("url", pageURL))
		return nil
	}

	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = newlineRuns.ReplaceAllString(text, "\n\n")

	if len(text) < e.minLength {
		e.logger.Warn("extracted content too short",
			zap.Int("length", len(text)),
			zap.String("url", pageURL))
		return nil
	}

	if title == "" {
		title = UnknownTitle
	}

	return &models.Page{URL: pageURL, Title: title, Text: text}
}

func (e *Extractor) extractReadability(htmlContent, pageURL string) (string, string) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		parsedURL = &url.URL{}
	}

	article, err := readability.FromReader(strings.NewReader(htmlContent), parsedURL)
	if err != nil {
		e.logger.Warn("readability extraction failed", zap.Error(err), zap.String("url", pageURL))
		return "", ""
	}

	return article.TextContent, strings.TrimSpace(article.Title)
}

func (e *Extractor) extractFallback(htmlContent string) (string, string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		e.logger.Error("fallback parse failed", zap.Error(err))
		return "", ""
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = UnknownTitle
	}

	doc.Find(strippedTags).Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var parts []string
	for _, node := range root.Nodes {
		collectText(node, &parts)
	}

	return strings.Join(parts, "\n\n"), title
}

// collectText gathers non-blank text nodes so the fallback keeps a
// paragraph-like separation between them.
func collectText(n *html.Node, parts *[]string) {
	if n.Type == html.TextNode {
		if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
			*parts = append(*parts, trimmed)
		}
		return
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, parts)
	}
}
