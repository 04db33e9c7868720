package observance

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/errs"
)

// scrapeClient is the shared HTTP+goquery plumbing for the three
// scrape-based sources, grounded on the same request-building and
// size-limited-body idiom as the teacher's link previewer.
type scrapeClient struct {
	http    *http.Client
	userAgent string
}

func newScrapeClient(timeout time.Duration) *scrapeClient {
	return &scrapeClient{
		http:      &http.Client{Timeout: timeout},
		userAgent: "Mozilla/5.0 (compatible; birthdaybot-observance/1.0)",
	}
}

const maxScrapePageBytes = 8 * 1024 * 1024

func (c *scrapeClient) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.Fatal, "build scrape request", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.UpstreamTransient, "fetch observance page", err).WithField("url", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errs.New(errs.UpstreamTransient, fmt.Sprintf("HTTP %d", resp.StatusCode)).WithField("url", url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxScrapePageBytes))
	if err != nil {
		return nil, errs.Wrap(errs.UpstreamTransient, "read scrape response", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, errs.Wrap(errs.UpstreamRefused, "parse scraped HTML", err)
	}
	return doc, nil
}
