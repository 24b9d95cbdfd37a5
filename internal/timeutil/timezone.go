package timeutil

import (
	"fmt"
	"time"
)

// IsTimezoneValid reports whether tz names a zone in the tz database.
// "Local" is accepted; the empty string is not.
func IsTimezoneValid(tz string) bool {
	if tz == "" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// ConvertTime returns t in the named zone. Stored timestamps are UTC.
func ConvertTime(t time.Time, tz string) (time.Time, error) {
	switch tz {
	case "UTC":
		return t.UTC(), nil
	case "", "Local":
		return t.Local(), nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return t, fmt.Errorf("failed to load timezone %s: %w", tz, err)
	}
	return t.In(loc), nil
}
