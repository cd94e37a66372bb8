package routing

import (
	"strconv"
	"strings"
	"time"
)

// ParseDeparture reads an "H:M" clock time on now's date. Hours and minutes
// take one or two digits, so "8:5" is 08:05. Empty or malformed input falls
// back to now and reports ok=false.
func ParseDeparture(s string, now time.Time) (time.Time, bool) {
	hs, ms, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found {
		return now, false
	}

	hour, ok := clockField(hs, 23)
	if !ok {
		return now, false
	}
	minute, ok := clockField(ms, 59)
	if !ok {
		return now, false
	}

	y, m, d := now.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, now.Location()), true
}

// clockField parses one or two plain digits no larger than max
func clockField(s string, max int) (int, bool) {
	if len(s) == 0 || len(s) > 2 {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	v, err := strconv.Atoi(s)
	if err != nil || v > max {
		return 0, false
	}
	return v, true
}
