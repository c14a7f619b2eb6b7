// Package timezone converts between wall-clock times in named timezones and
// absolute instants. All functions are pure.
package timezone

import (
	"fmt"
	"time"

	"meetsched-service/internal/model"
)

// DisplayLayout renders an instant the way slot labels are shown to invitees,
// e.g. "10:00 AM".
const DisplayLayout = "3:04 PM"

// ParseHHMM parses a strict zero-padded 24h "HH:MM" string.
func ParseHHMM(s string) (hour, minute int, err error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, 0, fmt.Errorf("%w: %q", model.ErrInvalidTimeFormat, s)
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return 0, 0, fmt.Errorf("%w: %q", model.ErrInvalidTimeFormat, s)
		}
	}
	hour = int(s[0]-'0')*10 + int(s[1]-'0')
	minute = int(s[3]-'0')*10 + int(s[4]-'0')
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q", model.ErrInvalidTimeFormat, s)
	}
	return hour, minute, nil
}

// LoadLocation resolves an IANA timezone name.
func LoadLocation(tz string) (*time.Location, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownTimezone, tz)
	}
	return loc, nil
}

// TimeOfDayToInstant interprets an "HH:MM" wall-clock time on the calendar
// date of day, in the named timezone, and returns the absolute instant.
func TimeOfDayToInstant(hhmm string, day time.Time, tz string) (time.Time, error) {
	hour, minute, err := ParseHHMM(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	loc, err := LoadLocation(tz)
	if err != nil {
		return time.Time{}, err
	}
	local := day.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc), nil
}

// InstantToDisplay formats an instant as wall-clock text in the named timezone.
func InstantToDisplay(t time.Time, tz string, layout string) (string, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return "", err
	}
	return t.In(loc).Format(layout), nil
}

// Overlap reports whether the half-open intervals [startA, endA) and
// [startB, endB) intersect. Touching endpoints do not overlap.
func Overlap(startA, endA, startB, endB time.Time) bool {
	return startA.Before(endB) && startB.Before(endA)
}
