package observance

import (
	"testing"
	"time"
)

func TestSameObservanceExactNormalizedMatch(t *testing.T) {
	a := SpecialDay{DateMMDD: "04-07", Name: "World Health Day"}
	b := SpecialDay{DateMMDD: "04-07", Name: "world health day!"}
	if !sameObservance(a, b) {
		t.Fatal("expected exact normalized match")
	}
}

func TestSameObservanceContainmentMatch(t *testing.T) {
	a := SpecialDay{DateMMDD: "04-07", Name: "World Health Day"}
	b := SpecialDay{DateMMDD: "04-07", Name: "World Health Day 2025"}
	if !sameObservance(a, b) {
		t.Fatal("expected containment-ratio match per spec scenario 6")
	}
}

func TestSameObservanceDifferentDatesNeverMatch(t *testing.T) {
	a := SpecialDay{DateMMDD: "04-07", Name: "World Health Day"}
	b := SpecialDay{DateMMDD: "04-08", Name: "World Health Day"}
	if sameObservance(a, b) {
		t.Fatal("different dates must never be considered the same observance")
	}
}

func TestSameObservanceShortGenericNamesDoNotFuzzyMatch(t *testing.T) {
	a := SpecialDay{DateMMDD: "01-01", Name: "Day"}
	b := SpecialDay{DateMMDD: "01-01", Name: "New Year's Day"}
	if sameObservance(a, b) {
		t.Fatal("a bare generic word should not license a fuzzy match")
	}
}

func TestDedupePrefersHigherPrioritySource(t *testing.T) {
	days := []SpecialDay{
		{DateMMDD: "04-07", Name: "World Health Day 2025", Source: SourceCalendarific},
		{DateMMDD: "04-07", Name: "World Health Day", Source: SourceWHO},
	}
	merged := dedupe(days)
	if len(merged) != 1 {
		t.Fatalf("expected 1 merged observance, got %d", len(merged))
	}
	if merged[0].Source != SourceWHO {
		t.Fatalf("expected WHO to win over Calendarific, got %s", merged[0].Source)
	}
}

func TestSortDeterministicByDateThenName(t *testing.T) {
	days := []SpecialDay{
		{DateMMDD: "04-07", Name: "Zeta Day"},
		{DateMMDD: "04-07", Name: "Alpha Day"},
		{DateMMDD: "01-01", Name: "New Year"},
	}
	sortDeterministic(days)
	if days[0].DateMMDD != "01-01" || days[1].Name != "Alpha Day" || days[2].Name != "Zeta Day" {
		t.Fatalf("unexpected order: %+v", days)
	}
}

type stubSource struct {
	name Source
	days []SpecialDay
}

func (s stubSource) Name() Source { return s.name }
func (s stubSource) Refresh(force bool) (int, time.Time, error) {
	return len(s.days), time.Now(), nil
}
func (s stubSource) Status() Status { return Status{Enabled: true, ObservationCount: len(s.days)} }
func (s stubSource) Lookup(dateMMDD string) []SpecialDay {
	var out []SpecialDay
	for _, d := range s.days {
		if d.DateMMDD == dateMMDD {
			out = append(out, d)
		}
	}
	return out
}

func TestAggregatorDeduplicatesAcrossSources(t *testing.T) {
	who := stubSource{name: SourceWHO, days: []SpecialDay{
		{DateMMDD: "04-07", Name: "World Health Day", Category: CategoryGlobalHealth, Source: SourceWHO},
	}}
	cal := stubSource{name: SourceCalendarific, days: []SpecialDay{
		{DateMMDD: "04-07", Name: "World Health Day 2025", Category: CategoryGlobalHealth, Source: SourceCalendarific},
	}}
	agg := NewAggregator([]ObservanceSource{who, cal}, map[string]bool{"Global Health": true})
	result := agg.Lookup("04-07")
	if len(result) != 1 {
		t.Fatalf("expected single deduplicated observance, got %d: %+v", len(result), result)
	}
	if result[0].Source != SourceWHO {
		t.Fatalf("expected WHO attribution, got %s", result[0].Source)
	}
}

func TestAggregatorFiltersDisabledCategory(t *testing.T) {
	src := stubSource{days: []SpecialDay{
		{DateMMDD: "04-07", Name: "Tech Day", Category: CategoryTech},
	}}
	agg := NewAggregator([]ObservanceSource{src}, map[string]bool{"Tech": false})
	result := agg.Lookup("04-07")
	if len(result) != 0 {
		t.Fatalf("expected disabled category filtered out, got %+v", result)
	}
}

func TestParseMonthDayLabelVariants(t *testing.T) {
	cases := map[string]string{
		"8 March":  "03-08",
		"March 8":  "03-08",
		"08/03":    "03-08",
		"":         "",
	}
	for in, want := range cases {
		got, ok := parseMonthDayLabel(in)
		if want == "" {
			if ok {
				t.Fatalf("expected no parse for %q, got %q", in, got)
			}
			continue
		}
		if !ok || got != want {
			t.Fatalf("parseMonthDayLabel(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
}

func TestContainmentRatioIdentical(t *testing.T) {
	if containmentRatio("world health day", "world health day") != 1.0 {
		t.Fatal("identical strings should have ratio 1.0")
	}
}
