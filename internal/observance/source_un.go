package observance

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/store"
)

// unScrapeURL is the UN international-days listing page. The exact
// page structure the real scraper targets is an external HTML document
// out of this spec's control (spec §1); parseUNPage below targets the
// listing shape observed on that page: one row per day with a date
// cell and a linked title cell.
const unScrapeURL = "https://www.un.org/en/observances/list-days-weeks"

// UNSource scrapes the UN's international-days calendar.
type UNSource struct {
	client *scrapeClient
	cache  *fileCache
}

// NewUNSource builds a UN source backed by st, caching to
// cache/un_observances/un_days.json with a 7-day TTL (spec §4.4:
// "7 to 30 days by source").
func NewUNSource(st *store.Store) *UNSource {
	return &UNSource{
		client: newScrapeClient(15 * time.Second),
		cache:  newFileCache(st, "un_observances/un_days.json", 7*24*time.Hour),
	}
}

func (s *UNSource) Name() Source { return SourceUN }

func (s *UNSource) Refresh(force bool) (int, time.Time, error) {
	if !force && s.cache.isFresh() {
		days, last := s.cache.snapshot()
		return len(days), last, nil
	}
	var count int
	var refreshErr error
	_, err := s.cache.singleflight(func() error {
		doc, err := s.client.fetchDocument(timeoutContext(), unScrapeURL)
		if err != nil {
			refreshErr = err
			return err
		}
		days := parseUNPage(doc)
		if len(days) == 0 {
			// spec §8: keep existing cache on an empty scrape result.
			return nil
		}
		count = len(days)
		return s.cache.replace(days, now())
	})
	if err != nil {
		return 0, time.Time{}, refreshErr
	}
	_, last := s.cache.snapshot()
	return count, last, nil
}

func (s *UNSource) Status() Status {
	days, last := s.cache.snapshot()
	return Status{
		Enabled:          true,
		CacheFresh:       s.cache.isFresh(),
		ObservationCount: len(days),
		LastUpdated:      last,
	}
}

func (s *UNSource) Lookup(dateMMDD string) []SpecialDay {
	days, _ := s.cache.snapshot()
	var out []SpecialDay
	for _, d := range days {
		if d.DateMMDD == dateMMDD {
			out = append(out, toSpecialDay(d, SourceUN))
		}
	}
	return out
}

// parseUNPage extracts (date, title) rows from the UN observances
// listing. Rows whose date cell does not parse to MM-DD are skipped.
func parseUNPage(doc *goquery.Document) []cachedDay {
	var out []cachedDay
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		dateText := strings.TrimSpace(row.Find("td.date").Text())
		title := strings.TrimSpace(row.Find("td.title").Text())
		mmdd, ok := parseMonthDayLabel(dateText)
		if !ok || title == "" {
			return
		}
		out = append(out, cachedDay{
			DateMMDD:    mmdd,
			Name:        title,
			Category:    string(CategoryCulture),
			Description: title,
		})
	})
	return out
}
