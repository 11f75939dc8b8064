package common

import (
	"testing"
	"time"
)

func TestFormatTimestamp(t *testing.T) {
	cases := map[time.Time]string{
		time.Date(2024, 3, 5, 14, 30, 15, 0, time.UTC): "05/03/2024, 02:30:15 p. m.",
		time.Date(2024, 12, 1, 9, 5, 0, 0, time.UTC):   "01/12/2024, 09:05:00 a. m.",
	}
	for in, want := range cases {
		if got := FormatTimestamp(in); got != want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", in, got, want)
		}
	}
}
