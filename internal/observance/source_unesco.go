package observance

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/store"
)

const unescoScrapeURL = "https://www.unesco.org/en/days"

// UNESCOSource scrapes UNESCO's international-days listing.
type UNESCOSource struct {
	client *scrapeClient
	cache  *fileCache
}

// NewUNESCOSource caches to cache/unesco_observances/unesco_days.json
// with a 30-day TTL (spec §4.4).
func NewUNESCOSource(st *store.Store) *UNESCOSource {
	return &UNESCOSource{
		client: newScrapeClient(15 * time.Second),
		cache:  newFileCache(st, "unesco_observances/unesco_days.json", 30*24*time.Hour),
	}
}

func (s *UNESCOSource) Name() Source { return SourceUNESCO }

func (s *UNESCOSource) Refresh(force bool) (int, time.Time, error) {
	if !force && s.cache.isFresh() {
		days, last := s.cache.snapshot()
		return len(days), last, nil
	}
	var count int
	var refreshErr error
	_, err := s.cache.singleflight(func() error {
		doc, err := s.client.fetchDocument(timeoutContext(), unescoScrapeURL)
		if err != nil {
			refreshErr = err
			return err
		}
		days := parseUNESCOPage(doc)
		if len(days) == 0 {
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

func (s *UNESCOSource) Status() Status {
	days, last := s.cache.snapshot()
	return Status{Enabled: true, CacheFresh: s.cache.isFresh(), ObservationCount: len(days), LastUpdated: last}
}

func (s *UNESCOSource) Lookup(dateMMDD string) []SpecialDay {
	days, _ := s.cache.snapshot()
	var out []SpecialDay
	for _, d := range days {
		if d.DateMMDD == dateMMDD {
			out = append(out, toSpecialDay(d, SourceUNESCO))
		}
	}
	return out
}

func parseUNESCOPage(doc *goquery.Document) []cachedDay {
	var out []cachedDay
	doc.Find("article.day-card").Each(func(_ int, card *goquery.Selection) {
		dateText := strings.TrimSpace(card.Find(".day-date").Text())
		title := strings.TrimSpace(card.Find(".day-title").Text())
		desc := strings.TrimSpace(card.Find(".day-summary").Text())
		mmdd, ok := parseMonthDayLabel(dateText)
		if !ok || title == "" {
			return
		}
		out = append(out, cachedDay{
			DateMMDD:    mmdd,
			Name:        title,
			Category:    string(CategoryCulture),
			Description: desc,
		})
	})
	return out
}
