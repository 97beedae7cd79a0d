package model

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseClock parses an "H:MM" or "HH:MM" time of day in 00:00..23:59.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("model: time %q: %w", s, ErrInvalid)
	}
	hour, herr := strconv.Atoi(parts[0])
	minute, merr := strconv.Atoi(parts[1])
	if herr != nil || merr != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("model: time %q: %w", s, ErrInvalid)
	}
	return hour, minute, nil
}

// FormatClock renders minutes since midnight as "HH:MM". Values past
// midnight wrap into the next day's clock.
func FormatClock(minutes int) string {
	minutes %= 24 * 60
	if minutes < 0 {
		minutes += 24 * 60
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
