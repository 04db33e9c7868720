package engage

import "strings"

// reactionPool maps a lowercased keyword to a pool of candidate
// reactions; pickReaction scans the message for the first matching
// keyword and picks uniformly from its pool (spec §4.11 step 2, richer
// than a single default pool).
var reactionPool = map[string][]string{
	"thank":   {"pray", "heart", "raised_hands"},
	"cake":    {"birthday", "cake"},
	"congrat": {"tada", "clap", "confetti_ball"},
	"happy":   {"smile", "heart", "tada"},
}

var defaultReactionPool = []string{"heart", "tada", "+1"}

// pickReaction scans text (lowercased) against reactionPool's keywords in
// a stable order and returns a uniform pick from the first matching
// pool, or from defaultReactionPool if nothing matches.
func (h *ReplyHandler) pickReaction(text string) string {
	lower := strings.ToLower(text)
	for _, kw := range reactionKeywordsOrdered() {
		if strings.Contains(lower, kw) {
			pool := reactionPool[kw]
			return pool[h.rng.Intn(len(pool))]
		}
	}
	return defaultReactionPool[h.rng.Intn(len(defaultReactionPool))]
}

func reactionKeywordsOrdered() []string {
	return []string{"thank", "cake", "congrat", "happy"}
}
