package portal

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"lapelle-backend/lib/timezone"
)

// parseClock resolves a portal clock string like "08:30" onto the given
// date, in French local time, with seconds zeroed.
func parseClock(value string, on time.Time) (time.Time, error) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("malformed clock value %q", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed clock value %q: %w", value, err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed clock value %q: %w", value, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("clock value %q out of range", value)
	}

	on = on.In(timezone.Location)
	return time.Date(on.Year(), on.Month(), on.Day(), hour, minute, 0, 0, timezone.Location), nil
}

// parseClockRange splits a "08:30 - 10:00" style range. The portal sometimes
// pads the separator with whitespace or newlines.
func parseClockRange(value string, on time.Time) (begin, end time.Time, err error) {
	compact := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, value)

	parts := strings.SplitN(compact, "-", 2)
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, fmt.Errorf("malformed clock range %q", value)
	}
	begin, err = parseClock(parts[0], on)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err = parseClock(parts[1], on)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return begin, end, nil
}

// weekdayIndex maps a date onto the portal's monday-first calendar columns:
// monday is 0, sunday is 6.
func weekdayIndex(t time.Time) int {
	idx := int(t.In(timezone.Location).Weekday()) - 1
	if idx < 0 {
		idx = 6
	}
	return idx
}
