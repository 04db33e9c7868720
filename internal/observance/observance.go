// Package observance implements the observance sources and aggregator
// (spec §4.4/§4.5): a multi-source cache of international days and
// national holidays, each source scraped or fetched independently and
// merged into a deduplicated, category-filtered, deterministically
// sorted view.
package observance

import (
	"strings"
	"time"
)

// Source tags where a SpecialDay was attributed from. Priority order
// for dedup attribution is UN > UNESCO > WHO > Calendarific > Custom.
type Source string

const (
	SourceUN           Source = "UN"
	SourceUNESCO       Source = "UNESCO"
	SourceWHO          Source = "WHO"
	SourceCalendarific Source = "Calendarific"
	SourceCustom       Source = "Custom"
)

// sourcePriority ranks sources for dedup attribution; lower wins.
var sourcePriority = map[Source]int{
	SourceUN:           0,
	SourceUNESCO:       1,
	SourceWHO:          2,
	SourceCalendarific: 3,
	SourceCustom:       4,
}

// Category is one of the four enabled-category buckets (spec §3).
type Category string

const (
	CategoryGlobalHealth Category = "Global Health"
	CategoryTech         Category = "Tech"
	CategoryCulture      Category = "Culture"
	CategoryCompany      Category = "Company"
)

// SpecialDay is one externally-sourced observance (spec §3).
type SpecialDay struct {
	DateMMDD    string // "MM-DD"
	Name        string
	Category    Category
	Description string
	Source      Source
	URL         string
	Emoji       string
	Enabled     bool
}

// Status reports a source's cache health (spec §4.4).
type Status struct {
	Enabled          bool
	CacheFresh       bool
	ObservationCount int
	LastUpdated      time.Time
}

// ObservanceSource is the uniform contract every upstream implements
// (spec §4.4).
type ObservanceSource interface {
	Name() Source
	Refresh(force bool) (count int, refreshedAt time.Time, err error)
	Status() Status
	Lookup(dateMMDD string) []SpecialDay
}

// normalizeName case-folds and strips punctuation for exact-match
// dedup comparison (spec §3 invariant).
func normalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// minSignificantLength is the floor below which a short name (e.g.
// "Day") is too generic to license a containment-based dedup match.
const minSignificantLength = 8

// containmentRatio reports what fraction of the shorter normalized name
// is literally contained within the longer one's character set, via
// longest-common-substring length. Both inputs must already be
// normalized.
func containmentRatio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	shorter, longer := a, b
	if len(a) > len(b) {
		shorter, longer = b, a
	}
	if strings.Contains(longer, shorter) {
		return 1.0
	}
	lcs := longestCommonSubstring(shorter, longer)
	if len(shorter) == 0 {
		return 0
	}
	return float64(lcs) / float64(len(shorter))
}

func longestCommonSubstring(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	prev := make([]int, len(b)+1)
	best := 0
	for i := 1; i <= len(a); i++ {
		curr := make([]int, len(b)+1)
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > best {
					best = curr[j]
				}
			}
		}
		prev = curr
	}
	return best
}

// sameObservance implements the dedup invariant from spec §3: names
// match after normalization, OR one contains the other with a
// containment ratio exceeding 0.4 and the shorter (contained) name
// itself clears the minimum significant length — a bare generic word
// like "Day" must not count as "significant" just because it happens to
// be a substring of a longer, unrelated title.
func sameObservance(a, b SpecialDay) bool {
	if a.DateMMDD != b.DateMMDD {
		return false
	}
	na, nb := normalizeName(a.Name), normalizeName(b.Name)
	if na == nb {
		return true
	}
	shorter := na
	if len(nb) < len(shorter) {
		shorter = nb
	}
	if len(shorter) < minSignificantLength {
		return false
	}
	return containmentRatio(na, nb) > 0.4
}
