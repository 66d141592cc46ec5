// Package centraltime converts UTC instants to approximate US Central local time.
//
// The conversion does not consult a timezone database. Daylight saving time is
// assumed to start on the second Sunday in March at 08:00 UTC (02:00 CST) and to
// end on the first Sunday in November at 07:00 UTC (02:00 CDT), which matches the
// US rule in force since 2007. Earlier years and any future rule change are not
// modelled.
package centraltime

import "time"

// Zone is the label appended to formatted local timestamps.
const Zone = "America/Chicago"

var (
	cdt = time.FixedZone("CDT", -5*60*60)
	cst = time.FixedZone("CST", -6*60*60)
)

// IsDST reports whether t falls inside the approximate Central daylight window.
func IsDST(t time.Time) bool {
	t = t.UTC()
	year := t.Year()
	start := nthSunday(year, time.March, 2).Add(8 * time.Hour)
	end := nthSunday(year, time.November, 1).Add(7 * time.Hour)
	return !t.Before(start) && t.Before(end)
}

// FromUTC returns t in a fixed CDT or CST zone.
func FromUTC(t time.Time) time.Time {
	if IsDST(t) {
		return t.In(cdt)
	}
	return t.In(cst)
}

// Hour is the approximate Central wall-clock hour of t.
func Hour(t time.Time) int {
	return FromUTC(t).Hour()
}

// Format renders t as "2006-01-02 03:04 PM America/Chicago".
func Format(t time.Time) string {
	return FromUTC(t).Format("2006-01-02 03:04 PM") + " " + Zone
}

// FormatUTC renders t as "2006-01-02 15:04 UTC".
func FormatUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04") + " UTC"
}

// Stamp is the "UTC | local" pair used in notification footers.
func Stamp(t time.Time) string {
	return FormatUTC(t) + " | " + Format(t)
}

func nthSunday(year int, month time.Month, n int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (7 - int(first.Weekday())) % 7
	return first.AddDate(0, 0, offset+7*(n-1))
}
