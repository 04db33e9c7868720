package observance

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// now and timeoutContext are the two seams that would otherwise call
// time.Now()/context.Background() directly scattered across sources;
// centralizing them keeps the refresh paths easy to exercise in tests
// via a fixed clock if ever needed, without threading a clock interface
// through every source for a single-process bot.
func now() time.Time { return time.Now() }

// timeoutContext is used for background refreshes that aren't tied to
// an inbound request's context; the http.Client's own Timeout bounds
// the call, so no per-call cancellation is needed here.
func timeoutContext() context.Context { return context.Background() }

var monthAbbrev = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// parseMonthDayLabel parses loose upstream date labels like "8 March",
// "March 8", or "08/03" into a canonical "MM-DD" key.
func parseMonthDayLabel(label string) (string, bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", false
	}
	if strings.Contains(label, "/") {
		parts := strings.SplitN(label, "/", 2)
		if len(parts) == 2 {
			day, ok1 := parseSmallIntOK(strings.TrimSpace(parts[0]))
			month, ok2 := parseSmallIntOK(strings.TrimSpace(parts[1]))
			if ok1 && ok2 && month >= 1 && month <= 12 && day >= 1 && day <= 31 {
				return fmt.Sprintf("%02d-%02d", month, day), true
			}
		}
	}
	fields := strings.Fields(label)
	var day, month int
	for _, f := range fields {
		f = strings.ToLower(strings.Trim(f, ","))
		if n, ok := parseSmallIntOK(f); ok {
			day = n
			continue
		}
		abbrev := f
		if len(abbrev) > 3 {
			abbrev = abbrev[:3]
		}
		if m, ok := monthAbbrev[abbrev]; ok {
			month = m
		}
	}
	if day >= 1 && day <= 31 && month >= 1 && month <= 12 {
		return fmt.Sprintf("%02d-%02d", month, day), true
	}
	return "", false
}

func parseSmallIntOK(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

func toSpecialDay(d cachedDay, src Source) SpecialDay {
	return SpecialDay{
		DateMMDD:    d.DateMMDD,
		Name:        d.Name,
		Category:    Category(d.Category),
		Description: d.Description,
		Source:      src,
		URL:         d.URL,
		Emoji:       d.Emoji,
		Enabled:     true,
	}
}
