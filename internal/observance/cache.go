package observance

import (
	"sync"
	"time"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/errs"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/store"
)

// cachedDay is the on-disk shape of one observance within a source's
// cache file (spec §9: `cache/{un,unesco,who}_observances/<source>_days.json`).
type cachedDay struct {
	DateMMDD    string `json:"date"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	URL         string `json:"url,omitempty"`
	Emoji       string `json:"emoji,omitempty"`
}

type cacheFile struct {
	LastUpdated time.Time   `json:"last_updated"`
	Observances []cachedDay `json:"observances"`
}

// fileCache is the shared per-source cache store: atomic read/write
// through internal/store, a TTL freshness check, and a single-flight
// guard so concurrent refresh requests coalesce into one upstream call
// (spec §9: "Only one refresh per source may be in flight; additional
// requests coalesce into the in-flight one").
type fileCache struct {
	st       *store.Store
	filename string
	ttl      time.Duration

	mu          sync.RWMutex
	days        []cachedDay
	lastUpdated time.Time
	loaded      bool

	refreshMu      sync.Mutex
	refreshPending bool
}

func newFileCache(st *store.Store, filename string, ttl time.Duration) *fileCache {
	return &fileCache{st: st, filename: filename, ttl: ttl}
}

func (c *fileCache) ensureLoaded() error {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return nil
	}
	var cf cacheFile
	found, err := c.st.ReadJSON(c.filename, &cf)
	if err != nil {
		return errs.Wrap(errs.Fatal, "read observance cache", err).WithField("file", c.filename)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if found {
		c.days = cf.Observances
		c.lastUpdated = cf.LastUpdated
	}
	c.loaded = true
	return nil
}

func (c *fileCache) snapshot() ([]cachedDay, time.Time) {
	_ = c.ensureLoaded()
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]cachedDay, len(c.days))
	copy(out, c.days)
	return out, c.lastUpdated
}

func (c *fileCache) isFresh() bool {
	_, last := c.snapshot()
	if last.IsZero() {
		return false
	}
	return time.Since(last) < c.ttl
}

// replace atomically rewrites the cache with a new observance set,
// except when days is empty: spec §8 policy is "keep the existing
// cache" on an empty-list refresh (e.g. scrape failure), so an empty
// slice is a no-op here and the caller should surface the failure
// upstream instead of calling replace.
func (c *fileCache) replace(days []cachedDay, at time.Time) error {
	if len(days) == 0 {
		return nil
	}
	cf := cacheFile{LastUpdated: at, Observances: days}
	if err := c.st.WriteJSON(c.filename, cf); err != nil {
		return errs.Wrap(errs.Fatal, "write observance cache", err).WithField("file", c.filename)
	}
	c.mu.Lock()
	c.days = days
	c.lastUpdated = at
	c.loaded = true
	c.mu.Unlock()
	return nil
}

// singleflight runs fn only if no refresh is already in progress; a
// concurrent caller instead no-ops and reports coalesced=true, relying
// on the hot path's "always serve cached data" policy (spec §4.4)
// rather than blocking on the in-progress refresh.
func (c *fileCache) singleflight(fn func() error) (coalesced bool, err error) {
	c.refreshMu.Lock()
	if c.refreshPending {
		c.refreshMu.Unlock()
		return true, nil
	}
	c.refreshPending = true
	c.refreshMu.Unlock()

	defer func() {
		c.refreshMu.Lock()
		c.refreshPending = false
		c.refreshMu.Unlock()
	}()

	return false, fn()
}
