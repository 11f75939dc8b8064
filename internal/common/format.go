package common

import "time"

// FormatTimestamp prints t the way Venezuelan receipts usually do:
// "05/03/2024, 02:30:15 p. m.".
func FormatTimestamp(t time.Time) string {
	suffix := "a. m."
	if t.Hour() >= 12 {
		suffix = "p. m."
	}
	return t.Format("02/01/2006, 03:04:05") + " " + suffix
}
