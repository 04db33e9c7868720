package timemodel

import "time"

// IsLeapYear reports whether year is a leap year (Gregorian rules).
func IsLeapYear(year int) bool {
	if year%400 == 0 {
		return true
	}
	if year%100 == 0 {
		return false
	}
	return year%4 == 0
}

// CelebrationDate resolves the (month, day) a birthday record should be
// celebrated on for a given year, applying the Feb-29 policy from spec
// §4.3: "Feb-29 celebration policy for non-leap years: fire on Feb-28."
func CelebrationDate(month, day, year int) (celebrateMonth, celebrateDay int) {
	if month == 2 && day == 29 && !IsLeapYear(year) {
		return 2, 28
	}
	return month, day
}

// IsBirthdayToday implements the fleet-wide daily check from spec §4.3:
// a single timestamp (serverNow, already in server-local time) compared
// against record month/day, with the Feb-29 policy applied.
func IsBirthdayToday(recordMonth, recordDay int, serverNow time.Time) bool {
	cm, cd := CelebrationDate(recordMonth, recordDay, serverNow.Year())
	return int(serverNow.Month()) == cm && serverNow.Day() == cd
}

// UserLocalDateKey formats the idempotency key's date component for the
// timezone-aware mode: the user's local calendar date.
func UserLocalDateKey(localNow time.Time) string {
	return localNow.Format("2006-01-02")
}

// HasReachedCelebrationHour reports whether localNow's time-of-day has
// reached celebrationHour:celebrationMinute, and localNow's (month, day)
// matches the record under the Feb-29 policy — the trigger condition for
// timezone-aware mode (spec §4.3).
func HasReachedCelebrationHour(recordMonth, recordDay int, localNow time.Time, celebrationHour, celebrationMinute int) bool {
	cm, cd := CelebrationDate(recordMonth, recordDay, localNow.Year())
	if int(localNow.Month()) != cm || localNow.Day() != cd {
		return false
	}
	if localNow.Hour() < celebrationHour {
		return false
	}
	if localNow.Hour() == celebrationHour && localNow.Minute() < celebrationMinute {
		return false
	}
	return true
}

// IdempotencyKey builds the (user_id, user_local_date) key from spec §4.3.
func IdempotencyKey(userID string, localNow time.Time) string {
	return userID + "|" + UserLocalDateKey(localNow)
}
