package ops

import (
	"fmt"
	"sort"
	"strings"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/observance"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/store"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/timemodel"
)

// ExportBirthdays renders every birthday record as one line per user,
// sorted by user ID for a stable diff between exports — the admin
// `/birthday export` subcommand recovered from
// commands/test_commands.py's export path (spec's SUPPLEMENTED FEATURES).
func ExportBirthdays(st *store.Store) (string, error) {
	records, err := st.LoadBirthdays()
	if err != nil {
		return "", err
	}
	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	fmt.Fprintf(&b, "user_id,date,year,active,style\n")
	for _, id := range ids {
		r := records[id]
		date := timemodel.Format(timemodel.ParsedDate{Day: r.Day, Month: r.Month, Year: r.Year})
		year := ""
		if r.Year != nil {
			year = fmt.Sprintf("%d", *r.Year)
		}
		fmt.Fprintf(&b, "%s,%s,%s,%v,%s\n", id, date, year, r.Preferences.Active, r.Preferences.CelebrationStyle)
	}
	return b.String(), nil
}

// allMMDD enumerates every calendar date as "MM-DD" across a leap year,
// the aggregator's native lookup key (spec §4.5).
func allMMDD() []string {
	daysInMonth := []int{31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
	out := make([]string, 0, 366)
	for month := 1; month <= 12; month++ {
		for day := 1; day <= daysInMonth[month-1]; day++ {
			out = append(out, fmt.Sprintf("%02d-%02d", month, day))
		}
	}
	return out
}

// ExportObservances renders the aggregator's merged view across every
// calendar date, optionally filtered to one source (spec's SUPPLEMENTED
// FEATURES: `/special-day export [source]`, grounded on
// services/special_day.py's admin export path).
func ExportObservances(aggregator *observance.Aggregator, source string) string {
	if aggregator == nil {
		return "special-days mode is disabled\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "date,name,category,source\n")
	for _, date := range allMMDD() {
		for _, day := range aggregator.Lookup(date) {
			if source != "" && !strings.EqualFold(string(day.Source), source) {
				continue
			}
			fmt.Fprintf(&b, "%s,%s,%s,%s\n", day.DateMMDD, day.Name, day.Category, day.Source)
		}
	}
	return b.String()
}
