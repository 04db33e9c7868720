package timemodel

// starSignRange is a (month, day) threshold: a date on or after this
// threshold (and before the next entry's threshold) belongs to that sign.
type starSignRange struct {
	month, day int
	sign       string
}

// starSignTable is ordered by (month, day) ascending and wraps around the
// year at Capricorn (Dec 22 - Jan 19).
var starSignTable = []starSignRange{
	{1, 20, "Aquarius"},
	{2, 19, "Pisces"},
	{3, 21, "Aries"},
	{4, 20, "Taurus"},
	{5, 21, "Gemini"},
	{6, 21, "Cancer"},
	{7, 23, "Leo"},
	{8, 23, "Virgo"},
	{9, 23, "Libra"},
	{10, 23, "Scorpio"},
	{11, 22, "Sagittarius"},
	{12, 22, "Capricorn"},
}

// StarSign derives the zodiac sign for a (month, day), used by the
// message generator's context building (spec §4.6 input: star_sign).
func StarSign(month, day int) string {
	// Walk forwards through the table; the last range whose threshold
	// is <= (month, day) is the sign, wrapping to Capricorn before Jan 20.
	sign := "Capricorn"
	for _, r := range starSignTable {
		if month > r.month || (month == r.month && day >= r.day) {
			sign = r.sign
		}
	}
	return sign
}
