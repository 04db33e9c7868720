package timemodel

import "fmt"

var monthNames = [...]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// DateInWords renders a (month, day) as "15th of March", used by the
// message generator's context (spec §4.6 input: date-in-words).
func DateInWords(month, day int) string {
	if month < 1 || month > 12 {
		return ""
	}
	return fmt.Sprintf("%s of %s", ordinal(day), monthNames[month-1])
}

func ordinal(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
		suffix = "th"
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

// Age computes age in whole years given a birth year and the celebration
// year, or 0 if year is nil (caller should gate display on Preferences.ShowAge).
func Age(birthYear *int, celebrationYear int) int {
	if birthYear == nil {
		return 0
	}
	return celebrationYear - *birthYear
}
