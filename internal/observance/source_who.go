package observance

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/store"
)

const whoScrapeURL = "https://www.who.int/campaigns"

// WHOSource scrapes WHO's global health-campaign calendar.
type WHOSource struct {
	client *scrapeClient
	cache  *fileCache
}

// NewWHOSource caches to cache/who_observances/who_days.json with a
// 30-day TTL (spec §4.4: "7 to 30 days by source").
func NewWHOSource(st *store.Store) *WHOSource {
	return &WHOSource{
		client: newScrapeClient(15 * time.Second),
		cache:  newFileCache(st, "who_observances/who_days.json", 30*24*time.Hour),
	}
}

func (s *WHOSource) Name() Source { return SourceWHO }

func (s *WHOSource) Refresh(force bool) (int, time.Time, error) {
	if !force && s.cache.isFresh() {
		days, last := s.cache.snapshot()
		return len(days), last, nil
	}
	var count int
	var refreshErr error
	_, err := s.cache.singleflight(func() error {
		doc, err := s.client.fetchDocument(timeoutContext(), whoScrapeURL)
		if err != nil {
			refreshErr = err
			return err
		}
		days := parseWHOPage(doc)
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

func (s *WHOSource) Status() Status {
	days, last := s.cache.snapshot()
	return Status{Enabled: true, CacheFresh: s.cache.isFresh(), ObservationCount: len(days), LastUpdated: last}
}

func (s *WHOSource) Lookup(dateMMDD string) []SpecialDay {
	days, _ := s.cache.snapshot()
	var out []SpecialDay
	for _, d := range days {
		if d.DateMMDD == dateMMDD {
			out = append(out, toSpecialDay(d, SourceWHO))
		}
	}
	return out
}

func parseWHOPage(doc *goquery.Document) []cachedDay {
	var out []cachedDay
	doc.Find("li.campaign-item").Each(func(_ int, li *goquery.Selection) {
		dateText := strings.TrimSpace(li.Find("span.campaign-date").Text())
		title := strings.TrimSpace(li.Find("a.campaign-title").Text())
		href, _ := li.Find("a.campaign-title").Attr("href")
		mmdd, ok := parseMonthDayLabel(dateText)
		if !ok || title == "" {
			return
		}
		out = append(out, cachedDay{
			DateMMDD:    mmdd,
			Name:        title,
			Category:    string(CategoryGlobalHealth),
			Description: title,
			URL:         href,
		})
	})
	return out
}
