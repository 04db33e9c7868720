// Package timemodel implements date parsing, the leap-year celebration
// policy, star-sign derivation, "date in words", and the fleet-wide vs.
// timezone-aware "is today their birthday" checks (spec §4.3).
//
// Grounded on the teacher's pkg/cron parsing ladder (validate_timestamp.go,
// normalize_raw.go): a TimestampValidationResult-style {Ok, Message}
// result, tried strategies in order, each returning early on success.
package timemodel

import (
	"context"
	"regexp"
	"strconv"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/errs"
)

// ParsedDate is the normalized output of date extraction: day/month are
// always set on success; year is nil when the input omitted it.
type ParsedDate struct {
	Day   int
	Month int
	Year  *int
}

// AmbiguousDate is returned by the LLM-fallback strategy when multiple
// readings are plausible (spec §4.3 strategy 3).
type AmbiguousDate struct {
	Options []ParsedDate
}

var (
	reDDMMYYYY = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	reDDMM     = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})$`)
	reDDMMYYYYDash = regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4})$`)
	reDDMMDash     = regexp.MustCompile(`^(\d{1,2})-(\d{1,2})$`)
)

// DateLLM is the abstract fallback strategy 3 from spec §4.3: an LLM call
// returning a typed object. It is an external collaborator; the core only
// depends on this interface.
type DateLLM interface {
	ParseDate(ctx context.Context, text string) (ParsedDate, *AmbiguousDate, error)
}

// Extract parses a date string using the ordered strategies from spec
// §4.3: (1) DD/MM and DD/MM/YYYY regex, (2) DD-MM(-YYYY) European-format
// regex, (3) if enabled and llm != nil, one LLM call. currentYear bounds
// year validation.
func Extract(ctx context.Context, text string, llm DateLLM, nlpEnabled bool, currentYear int) (ParsedDate, *AmbiguousDate, error) {
	if pd, ok := tryRegex(reDDMMYYYY, text, true); ok {
		return validateOrError(pd, currentYear)
	}
	if pd, ok := tryRegex(reDDMM, text, false); ok {
		return validateOrError(pd, currentYear)
	}
	if pd, ok := tryRegex(reDDMMYYYYDash, text, true); ok {
		return validateOrError(pd, currentYear)
	}
	if pd, ok := tryRegex(reDDMMDash, text, false); ok {
		return validateOrError(pd, currentYear)
	}
	if nlpEnabled && llm != nil {
		pd, ambiguous, err := llm.ParseDate(ctx, text)
		if err != nil {
			return ParsedDate{}, nil, errs.Wrap(errs.UpstreamTransient, "llm date parse", err)
		}
		if ambiguous != nil {
			return ParsedDate{}, ambiguous, nil
		}
		return validateOrError(pd, currentYear)
	}
	return ParsedDate{}, nil, errs.New(errs.InputInvalid, "could not parse a date from input").WithField("input", text)
}

func tryRegex(re *regexp.Regexp, text string, hasYear bool) (ParsedDate, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ParsedDate{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	pd := ParsedDate{Day: day, Month: month}
	if hasYear {
		year, _ := strconv.Atoi(m[3])
		pd.Year = &year
	}
	return pd, true
}

func validateOrError(pd ParsedDate, currentYear int) (ParsedDate, *AmbiguousDate, error) {
	if err := Validate(pd, currentYear); err != nil {
		return ParsedDate{}, nil, err
	}
	return pd, nil, nil
}

// Validate enforces spec §4.3's bounds: day 1..31, month 1..12, year (if
// present) 1900..currentYear.
func Validate(pd ParsedDate, currentYear int) error {
	if pd.Month < 1 || pd.Month > 12 {
		return errs.New(errs.InputInvalid, "Invalid date values").WithField("month", pd.Month)
	}
	if pd.Day < 1 || pd.Day > 31 {
		return errs.New(errs.InputInvalid, "Invalid date values").WithField("day", pd.Day)
	}
	if pd.Year != nil {
		if *pd.Year < 1900 || *pd.Year > currentYear {
			return errs.New(errs.InputInvalid, "year out of range").WithField("year", *pd.Year)
		}
	}
	if !isValidCalendarDay(pd.Month, pd.Day) {
		return errs.New(errs.InputInvalid, "Invalid date values").WithField("month", pd.Month).WithField("day", pd.Day)
	}
	return nil
}

func isValidCalendarDay(month, day int) bool {
	switch month {
	case 4, 6, 9, 11:
		return day <= 30
	case 2:
		return day <= 29 // leap-day acceptance handled separately; Feb 30/31 always invalid
	default:
		return day <= 31
	}
}

// Format renders a ParsedDate back to the "DD/MM" or "DD/MM/YYYY" wire
// form, matching the round-trip property from spec §8.
func Format(pd ParsedDate) string {
	ds := twoDigit(pd.Day)
	ms := twoDigit(pd.Month)
	if pd.Year == nil {
		return ds + "/" + ms
	}
	return ds + "/" + ms + "/" + fourDigit(*pd.Year)
}

func twoDigit(n int) string {
	s := strconv.Itoa(n)
	if len(s) < 2 {
		return "0" + s
	}
	return s
}

func fourDigit(n int) string {
	s := strconv.Itoa(n)
	for len(s) < 4 {
		s = "0" + s
	}
	return s
}
