package contracts

import "time"

// DateLayout is the on-disk date format for every table
const DateLayout = "2006-01-02"

// Day truncates t to a UTC calendar day
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date into a UTC day
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// FormatDate renders a day as YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Quarter returns the fiscal quarter (1..4) of t
func Quarter(t time.Time) int {
	return (int(t.Month())-1)/3 + 1
}

// MonthEnds returns the last date of each calendar month present in the
// ascending date list
func MonthEnds(dates []time.Time) []time.Time {
	var out []time.Time
	for i, d := range dates {
		if i+1 == len(dates) || dates[i+1].Month() != d.Month() || dates[i+1].Year() != d.Year() {
			out = append(out, d)
		}
	}
	return out
}
