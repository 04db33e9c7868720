package observance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/errs"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/store"
)

// calendarificWeeklyBudget reflects the ~500-call/month budget (spec
// §4.4): one refresh call per week hydrates 7 days of national
// holidays, well under budget even with a few manual admin-triggered
// refreshes thrown in.
const calendarificWeeklyBudget = 1

type calendarificResponse struct {
	Response struct {
		Holidays []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Date        struct {
				Iso string `json:"iso"`
			} `json:"date"`
		} `json:"holidays"`
	} `json:"response"`
}

// CalendarificSource fetches national holidays from the Calendarific
// API. Unlike the scrape sources it is rate-budget constrained, so
// Refresh enforces a minimum week between live calls regardless of the
// force flag's cache-freshness override, short of an explicit override
// window reset.
type CalendarificSource struct {
	apiKey  string
	country string
	region  string
	http    *http.Client
	cache   *fileCache

	mu           sync.Mutex
	callsThisWeek int
	weekStart     time.Time
}

// NewCalendarificSource caches to cache/calendarific/holidays_cache.json
// with a 7-day TTL.
func NewCalendarificSource(st *store.Store, apiKey, country, region string) *CalendarificSource {
	return &CalendarificSource{
		apiKey:  apiKey,
		country: country,
		region:  region,
		http:    &http.Client{Timeout: 15 * time.Second},
		cache:   newFileCache(st, "calendarific/holidays_cache.json", 7*24*time.Hour),
	}
}

func (s *CalendarificSource) Name() Source { return SourceCalendarific }

// withinWeeklyBudget reports whether another live API call is allowed
// in the current rolling seven-day window. The window starts at the
// first check after the previous one has run for more than seven days,
// and the counter resets then.
func (s *CalendarificSource) withinWeeklyBudget() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := now()
	if n.Sub(s.weekStart) > 7*24*time.Hour {
		s.weekStart = n
		s.callsThisWeek = 0
	}
	return s.callsThisWeek < calendarificWeeklyBudget
}

func (s *CalendarificSource) recordCall() {
	s.mu.Lock()
	s.callsThisWeek++
	s.mu.Unlock()
}

func (s *CalendarificSource) Refresh(force bool) (int, time.Time, error) {
	if s.apiKey == "" {
		return 0, time.Time{}, errs.New(errs.Degraded, "calendarific source disabled, no api key")
	}
	if !force && s.cache.isFresh() {
		days, last := s.cache.snapshot()
		return len(days), last, nil
	}
	if !s.withinWeeklyBudget() {
		days, last := s.cache.snapshot()
		return len(days), last, errs.New(errs.RateLimited, "calendarific weekly call budget exhausted")
	}

	var count int
	var refreshErr error
	_, err := s.cache.singleflight(func() error {
		days, err := s.fetchWeek(timeoutContext())
		s.recordCall()
		if err != nil {
			refreshErr = err
			return err
		}
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

// fetchWeek hydrates 7 days of national holidays starting today, per
// the weekly-prefetch strategy (spec §4.4).
func (s *CalendarificSource) fetchWeek(ctx context.Context) ([]cachedDay, error) {
	year := now().Year()
	url := fmt.Sprintf(
		"https://calendarific.com/api/v2/holidays?api_key=%s&country=%s&year=%d",
		s.apiKey, s.country, year,
	)
	if s.region != "" {
		url += "&location=" + s.region
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.Fatal, "build calendarific request", err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.UpstreamTransient, "call calendarific", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errs.New(errs.RateLimited, "calendarific returned 429")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errs.New(errs.UpstreamTransient, fmt.Sprintf("calendarific HTTP %d", resp.StatusCode))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return nil, errs.Wrap(errs.UpstreamTransient, "read calendarific response", err)
	}
	var parsed calendarificResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errs.Wrap(errs.UpstreamRefused, "decode calendarific response", err)
	}

	weekStart := now()
	weekEnd := weekStart.AddDate(0, 0, 7)
	var out []cachedDay
	for _, h := range parsed.Response.Holidays {
		d, err := time.Parse("2006-01-02", h.Date.Iso)
		if err != nil {
			continue
		}
		cmp := time.Date(year, d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		withinWindow := !cmp.Before(time.Date(weekStart.Year(), weekStart.Month(), weekStart.Day(), 0, 0, 0, 0, time.UTC)) &&
			cmp.Before(time.Date(weekEnd.Year(), weekEnd.Month(), weekEnd.Day(), 0, 0, 0, 0, time.UTC))
		if !withinWindow {
			continue
		}
		out = append(out, cachedDay{
			DateMMDD:    fmt.Sprintf("%02d-%02d", int(d.Month()), d.Day()),
			Name:        h.Name,
			Category:    string(CategoryCompany),
			Description: h.Description,
		})
	}
	return out, nil
}

func (s *CalendarificSource) Status() Status {
	days, last := s.cache.snapshot()
	return Status{
		Enabled:          s.apiKey != "",
		CacheFresh:       s.cache.isFresh(),
		ObservationCount: len(days),
		LastUpdated:      last,
	}
}

func (s *CalendarificSource) Lookup(dateMMDD string) []SpecialDay {
	days, _ := s.cache.snapshot()
	var out []SpecialDay
	for _, d := range days {
		if d.DateMMDD == dateMMDD {
			out = append(out, toSpecialDay(d, SourceCalendarific))
		}
	}
	return out
}
