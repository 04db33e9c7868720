// Package personality implements the tagged-variant Personality type from
// spec §9's redesign note: "Reshape to a tagged-variant Personality type
// with a fixed set of variants (plus a Custom variant carrying
// user-supplied fields) and a method table."
//
// Grounded on the teacher's pkg/aimodels (table-keyed constants,
// ParseModelPrefix-style lookup helpers).
package personality

import (
	"math/rand"
	"sync"
)

// Key identifies one personality variant.
type Key string

const (
	Standard   Key = "standard"
	Poet       Key = "poet"
	Pirate     Key = "pirate"
	Hacker     Key = "hacker"
	Mystic     Key = "mystic"
	Chronicler Key = "chronicler" // special-days only
	Random     Key = "random"     // meta: dispatches to a non-meta pool member
	Custom     Key = "custom"     // meta: user-supplied fields
)

// metaKeys are excluded from both the random-selection pool and from
// birthday celebrations (spec §4.6: "chronicler is exclusively for
// special-day announcements").
var metaKeys = map[Key]bool{Random: true, Custom: true, Chronicler: true}

// Template holds the style/format/behavior data for one personality
// variant (spec §9: "Template strings are data on the variant").
type Template struct {
	Key              Key
	SystemExtension  string // appended to the base system message
	EmojiVocabulary  []string
	FallbackTemplate string // interpolated with {mentions} on final LLM failure
	ImagePromptBase  string // preserved verbatim per spec §9 open question
}

// CustomSettings carries the operator-defined personality's fields
// (spec GLOSSARY: "Custom: one operator-defined").
type CustomSettings struct {
	SystemExtension string
	ImagePromptBase string
}

// registry is the fixed method table keyed by variant, built once at
// package init — not a runtime-mutable global dict (spec §9 redesign:
// "Reshape [dynamic personality dispatch] to ... a method table").
var registry = map[Key]Template{
	Standard: {
		Key:             Standard,
		SystemExtension: "Write a warm, concise birthday message for the team channel.",
		EmojiVocabulary: []string{"🎂", "🎉", "🥳", "🎈"},
		FallbackTemplate: "Happy birthday {mentions}! 🎂 Wishing you a fantastic day!",
		ImagePromptBase: "A warm, friendly birthday celebration scene featuring a small dog mascot wearing a party hat, photorealistic, soft lighting.",
	},
	Poet: {
		Key:             Poet,
		SystemExtension: "Write the birthday message as a short rhyming verse, four to six lines.",
		EmojiVocabulary: []string{"🌸", "🎂", "✨"},
		FallbackTemplate: "Roses are red, cake is sweet,\nHappy birthday {mentions}, today's your treat!",
		ImagePromptBase: "A whimsical watercolor-style illustration of a small dog mascot reciting poetry beside a birthday cake, pastel palette.",
	},
	Pirate: {
		Key:             Pirate,
		SystemExtension: "Write the birthday message in pirate speak, keep it playful.",
		EmojiVocabulary: []string{"🏴‍☠️", "🎂", "⚓"},
		FallbackTemplate: "Ahoy {mentions}! Happy birthday, ye fine scallywag! 🏴‍☠️🎂",
		ImagePromptBase: "A small dog mascot dressed as a pirate captain in front of a birthday cake on a ship deck, illustrated style.",
	},
	Hacker: {
		Key:             Hacker,
		SystemExtension: "Write the birthday message with a light terminal/hacker aesthetic, keep it friendly not cryptic.",
		EmojiVocabulary: []string{"💻", "🎂", "⚡"},
		FallbackTemplate: "$ echo \"Happy birthday {mentions}!\" 🎂💻",
		ImagePromptBase: "A small dog mascot wearing tiny glasses typing on a glowing laptop next to a birthday cake, cyberpunk neon lighting.",
	},
	Mystic: {
		Key:             Mystic,
		SystemExtension: "Write the birthday message with a gentle astrological/mystic flavor, referencing the star sign if provided.",
		EmojiVocabulary: []string{"🔮", "🎂", "✨", "🌙"},
		FallbackTemplate: "The stars align for {mentions} today — happy birthday! 🔮🎂",
		ImagePromptBase: "A small dog mascot surrounded by soft glowing stars and a crystal ball, next to a birthday cake, dreamy mystical lighting.",
	},
	Chronicler: {
		Key:             Chronicler,
		SystemExtension: "Write a short, informative announcement of today's observance, include one historical note if provided.",
		EmojiVocabulary: []string{"📜", "🌍"},
		FallbackTemplate: "Today is {mentions}. 📜",
		ImagePromptBase: "A small dog mascot wearing reading glasses next to an open illustrated almanac, warm library lighting.",
	},
}

// nonMetaPool is the fixed iteration order used by random selection.
var nonMetaPool = []Key{Standard, Poet, Pirate, Hacker, Mystic}

// Lookup returns the Template for key, or the Standard template if key is
// unknown or a meta key without its own template. Resolve turns only
// Random into a concrete key; Custom comes back from Resolve unchanged,
// so Lookup(Custom) returns the Standard template and CustomSettings is
// not applied.
func Lookup(key Key) Template {
	if t, ok := registry[key]; ok {
		return t
	}
	return registry[Standard]
}

// IsMeta reports whether key is one of the reserved meta personalities.
func IsMeta(key Key) bool {
	return metaKeys[key]
}

// EligibleForBirthday reports whether key may be used for a birthday
// celebration (spec §4.6: meta personalities random/custom/chronicler are
// excluded; chronicler is reserved for special days).
func EligibleForBirthday(key Key) bool {
	return !IsMeta(key)
}

// RecentTracker remembers the last N personality selections so Random
// selection can exclude them (spec §4.6: "excluding the most recent N
// selections (persisted across restarts, N=3)").
type RecentTracker struct {
	mu     sync.Mutex
	recent []Key
	max    int
}

// NewRecentTracker seeds the tracker from persisted state (e.g. loaded
// from storage/personality.json's recent_personalities).
func NewRecentTracker(max int, seed []Key) *RecentTracker {
	if max <= 0 {
		max = 3
	}
	t := &RecentTracker{max: max}
	for _, k := range seed {
		if len(t.recent) < max {
			t.recent = append(t.recent, k)
		}
	}
	return t
}

// Record appends key to the recent list, evicting the oldest once over max.
func (t *RecentTracker) Record(key Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recent = append(t.recent, key)
	if len(t.recent) > t.max {
		t.recent = t.recent[len(t.recent)-t.max:]
	}
}

// Snapshot returns the current recent list, for persistence.
func (t *RecentTracker) Snapshot() []Key {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Key, len(t.recent))
	copy(out, t.recent)
	return out
}

func (t *RecentTracker) isRecent(key Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, k := range t.recent {
		if k == key {
			return true
		}
	}
	return false
}

// Resolve picks a concrete personality for `current`: if current is
// Random, uniformly picks from nonMetaPool excluding recently-used keys
// (falling back to the full pool if every candidate was recently used);
// otherwise returns current unchanged. rng is injected for deterministic
// tests.
func Resolve(current Key, tracker *RecentTracker, rng *rand.Rand) Key {
	if current != Random {
		return current
	}
	candidates := make([]Key, 0, len(nonMetaPool))
	for _, k := range nonMetaPool {
		if tracker == nil || !tracker.isRecent(k) {
			candidates = append(candidates, k)
		}
	}
	if len(candidates) == 0 {
		candidates = nonMetaPool
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	chosen := candidates[rng.Intn(len(candidates))]
	if tracker != nil {
		tracker.Record(chosen)
	}
	return chosen
}
