// Package threadtracker implements the thread tracker (spec §4.10): a
// process-wide singleton with lazy file load, an in-memory map guarded
// by one mutex, and full-file persistence after every mutation.
//
// Grounded on the teacher's pkg/connector/agentstore.go singleton
// registry shape (lazy-loaded map behind a mutex, persisted on write).
package threadtracker

import (
	"sync"
	"time"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/store"
)

// ThreadType distinguishes the two kinds of tracked thread.
type ThreadType string

const (
	ThreadBirthday   ThreadType = "birthday"
	ThreadSpecialDay ThreadType = "special_day"
)

// SpecialDayInfo is the structured payload for special-day threads.
type SpecialDayInfo struct {
	Date   string
	Name   string
	Source string
}

// TrackedThread mirrors spec §3's entity of the same name.
type TrackedThread struct {
	ChannelID       string
	ThreadRootTS    string
	ThreadType      ThreadType
	Personality     string
	CreatedAt       time.Time
	ReactionsCount  int
	ResponsesSent   int
	BirthdayPeople  []string // birthday threads only
	SpecialDayInfo  *SpecialDayInfo
}

func key(channelID, ts string) string { return channelID + "|" + ts }

const fileName = "tracked_threads.json"

// Tracker is the process-wide thread tracker singleton.
type Tracker struct {
	st  *store.Store
	ttl time.Duration

	mu     sync.Mutex
	loaded bool
	byKey  map[string]*TrackedThread
}

// New constructs a Tracker; load from disk is deferred to first use
// (spec §4.10: "lazy file load on first use").
func New(st *store.Store, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Tracker{st: st, ttl: ttl, byKey: make(map[string]*TrackedThread)}
}

func (t *Tracker) ensureLoaded() {
	if t.loaded {
		return
	}
	t.loaded = true
	var persisted []TrackedThread
	if found, err := t.st.ReadJSON(fileName, &persisted); err == nil && found {
		for i := range persisted {
			th := persisted[i]
			t.byKey[key(th.ChannelID, th.ThreadRootTS)] = &th
		}
	}
}

func (t *Tracker) persistLocked() {
	out := make([]TrackedThread, 0, len(t.byKey))
	for _, th := range t.byKey {
		out = append(out, *th)
	}
	_ = t.st.WriteJSON(fileName, out)
}

// Track inserts a TrackedThread and persists (spec §4.10 track()).
func (t *Tracker) Track(channelID, ts string, threadType ThreadType, personalityKey string, birthdayPeople []string, specialDay *SpecialDayInfo, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ensureLoaded()
	t.byKey[key(channelID, ts)] = &TrackedThread{
		ChannelID:      channelID,
		ThreadRootTS:   ts,
		ThreadType:     threadType,
		Personality:    personalityKey,
		CreatedAt:      now,
		BirthdayPeople: birthdayPeople,
		SpecialDayInfo: specialDay,
	}
	t.persistLocked()
}

// Get returns the non-expired thread for (channelID, ts), evicting and
// returning (nil, false) if it has expired (spec §4.10 get()).
func (t *Tracker) Get(channelID, ts string, now time.Time) (*TrackedThread, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ensureLoaded()
	k := key(channelID, ts)
	th, ok := t.byKey[k]
	if !ok {
		return nil, false
	}
	if now.Sub(th.CreatedAt) > t.ttl {
		delete(t.byKey, k)
		t.persistLocked()
		return nil, false
	}
	cp := *th
	return &cp, true
}

// IncrementReactions atomically bumps the reaction counter and persists.
func (t *Tracker) IncrementReactions(channelID, ts string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ensureLoaded()
	if th, ok := t.byKey[key(channelID, ts)]; ok {
		th.ReactionsCount++
		t.persistLocked()
	}
}

// IncrementResponses atomically bumps the response counter and persists
// (spec §3 invariant: "response counters are monotonic").
func (t *Tracker) IncrementResponses(channelID, ts string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ensureLoaded()
	if th, ok := t.byKey[key(channelID, ts)]; ok {
		th.ResponsesSent++
		t.persistLocked()
	}
}

// CleanupExpired sweeps all entries and evicts expired ones (spec §4.10
// cleanup_expired(), also invoked proactively by a background sweep per
// §4.10's lifecycle note).
func (t *Tracker) CleanupExpired(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ensureLoaded()
	removed := 0
	for k, th := range t.byKey {
		if now.Sub(th.CreatedAt) > t.ttl {
			delete(t.byKey, k)
			removed++
		}
	}
	if removed > 0 {
		t.persistLocked()
	}
	return removed
}

// Count returns the number of currently tracked (not-yet-evicted)
// threads, used by the ops surface's health summary.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ensureLoaded()
	return len(t.byKey)
}
