// Package factcache implements the historical-fact lookup consulted by
// the celebration pipeline's step 3 (spec §4.8.2: "If the personality
// requests it, consult the web-search cache by (date, personality,
// year); on miss, fetch and store; a per-day cleanup sweep prunes cache
// entries from previous years"), persisted one file per key at
// cache/messages/facts_<DD>_<MM>_<personality>_<YYYY>.json.
//
// Grounded on internal/observance's fileCache: atomic read/write
// through internal/store plus a singleflight guard per key, adapted
// from one shared cache file to one file per (date, personality, year)
// key since this cache's natural unit of pruning is a whole file, not
// an entry within one.
package factcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/errs"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/llmclient"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/personality"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/store"
)

// Cache implements pipeline.HistoricalFactLookup, fetching via an LLM
// completer (the closest in-corpus stand-in for an external web-search
// call, spec §1 puts the real search provider out of scope) and caching
// the result keyed by (date, personality, year).
type Cache struct {
	st        *store.Store
	completer llmclient.Completer

	mu       sync.Mutex
	inFlight map[string]bool
}

// New builds a Cache.
func New(st *store.Store, completer llmclient.Completer) *Cache {
	return &Cache{st: st, completer: completer, inFlight: make(map[string]bool)}
}

func filename(dateMMDD string, key personality.Key, year int) string {
	var month, day string
	fmt.Sscanf(dateMMDD, "%2s-%2s", &month, &day)
	return fmt.Sprintf("messages/facts_%s_%s_%s_%d.json", day, month, key, year)
}

// Lookup implements pipeline.HistoricalFactLookup: serve the cached fact
// if present, otherwise fetch, store, and return it. Concurrent lookups
// for the same key do not issue a duplicate upstream call: while one is
// in flight, a second caller gets a Degraded error instead of waiting.
func (c *Cache) Lookup(ctx context.Context, dateMMDD string, key personality.Key, year int) (string, error) {
	name := filename(dateMMDD, key, year)

	if raw, found, err := c.st.ReadRaw(name); err == nil && found {
		if fact := gjson.GetBytes(raw, "fact").String(); fact != "" {
			return fact, nil
		}
	}

	if !c.claim(name) {
		return "", errs.New(errs.Degraded, "historical fact lookup already in flight").WithField("file", name)
	}
	defer c.release(name)

	fact, err := c.fetch(ctx, dateMMDD, key)
	if err != nil {
		return "", err
	}

	entryID := xid.New().String()
	doc, err := sjson.Set("{}", "fact", fact)
	if err != nil {
		return "", errs.Wrap(errs.Fatal, "encode historical fact entry", err)
	}
	doc, _ = sjson.Set(doc, "entry_id", entryID)
	doc, _ = sjson.Set(doc, "fetched_at", time.Now().UTC().Format(time.RFC3339))
	if err := c.st.WriteRaw(name, []byte(doc)); err != nil {
		return "", err
	}
	return fact, nil
}

func (c *Cache) claim(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight[name] {
		return false
	}
	c.inFlight[name] = true
	return true
}

func (c *Cache) release(name string) {
	c.mu.Lock()
	delete(c.inFlight, name)
	c.mu.Unlock()
}

func (c *Cache) fetch(ctx context.Context, dateMMDD string, key personality.Key) (string, error) {
	prompt := fmt.Sprintf(
		"Give one short, verifiable historical fact (one or two sentences) about something notable that happened on %s in a prior year. No preamble.",
		dateMMDD,
	)
	result, err := c.completer.Complete(ctx, []llmclient.Message{
		{Role: llmclient.RoleSystem, Text: "You answer with a single factual sentence or two, nothing else."},
		{Role: llmclient.RoleUser, Text: prompt},
	}, 200, 0.3, "")
	if err != nil {
		return "", errs.Wrap(errs.UpstreamTransient, "fetch historical fact", err).WithField("date", dateMMDD)
	}
	return result.Text, nil
}

// PruneOldYears deletes every cached fact file for a year other than
// currentYear, the per-day cleanup sweep named in spec §4.8.2 step 3.
func (c *Cache) PruneOldYears(currentYear int) error {
	names, err := c.st.ListGlob("messages", "facts_*.json")
	if err != nil {
		return err
	}
	suffix := fmt.Sprintf("_%d.json", currentYear)
	for _, n := range names {
		if len(n) < len(suffix) || n[len(n)-len(suffix):] != suffix {
			if err := c.st.Remove("messages/" + n); err != nil {
				return err
			}
		}
	}
	return nil
}
