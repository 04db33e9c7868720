package observance

import "sort"

// Aggregator merges every enabled ObservanceSource's lookup results for
// a date into one deduplicated, category-filtered, deterministically
// ordered view (spec §4.5). It holds no cache state of its own — every
// call re-queries the sources, each of which serves from its own
// already-cached data, so the aggregator is pure w.r.t. source caches.
type Aggregator struct {
	sources         []ObservanceSource
	categoryEnabled map[string]bool
}

// NewAggregator builds an Aggregator over sources, filtering results by
// categoryEnabled (from store.SpecialDaysConfig.CategoryEnabled).
func NewAggregator(sources []ObservanceSource, categoryEnabled map[string]bool) *Aggregator {
	return &Aggregator{sources: sources, categoryEnabled: categoryEnabled}
}

// Lookup returns the deduplicated, filtered, sorted observances for one
// MM-DD date across every enabled source.
func (a *Aggregator) Lookup(dateMMDD string) []SpecialDay {
	var all []SpecialDay
	for _, src := range a.sources {
		all = append(all, src.Lookup(dateMMDD)...)
	}
	merged := dedupe(all)
	filtered := a.filterByCategory(merged)
	sortDeterministic(filtered)
	return filtered
}

// LookupRange returns Lookup's result for each MM-DD date in datesMMDD,
// concatenated in the order given into one flat slice, used by the
// weekly-digest mode (spec §4.9).
func (a *Aggregator) LookupRange(datesMMDD []string) []SpecialDay {
	var out []SpecialDay
	for _, d := range datesMMDD {
		out = append(out, a.Lookup(d)...)
	}
	return out
}

// Sources returns the aggregator's underlying sources, for callers (the
// ops surface's per-source cache status report) that need to query each
// one's Status() directly rather than through a lookup.
func (a *Aggregator) Sources() []ObservanceSource {
	out := make([]ObservanceSource, len(a.sources))
	copy(out, a.sources)
	return out
}

func (a *Aggregator) filterByCategory(days []SpecialDay) []SpecialDay {
	if a.categoryEnabled == nil {
		return days
	}
	out := days[:0:0]
	for _, d := range days {
		if a.categoryEnabled[string(d.Category)] {
			out = append(out, d)
		}
	}
	return out
}

// dedupe merges observances that sameObservance() considers the same
// underlying day, keeping the one from the highest-priority source
// (spec §4.5: "preferring higher-priority sources").
func dedupe(days []SpecialDay) []SpecialDay {
	var kept []SpecialDay
	for _, d := range days {
		merged := false
		for i, k := range kept {
			if !sameObservance(d, k) {
				continue
			}
			merged = true
			if sourcePriority[d.Source] < sourcePriority[k.Source] {
				kept[i] = d
			}
			break
		}
		if !merged {
			kept = append(kept, d)
		}
	}
	return kept
}

// sortDeterministic orders by (date, name) per spec §3's determinism
// invariant.
func sortDeterministic(days []SpecialDay) {
	sort.Slice(days, func(i, j int) bool {
		if days[i].DateMMDD != days[j].DateMMDD {
			return days[i].DateMMDD < days[j].DateMMDD
		}
		return days[i].Name < days[j].Name
	})
}
