package utils

import (
	"fmt"
	"time"

	"github.com/younsl/vpcepilot/internal/models"
)

// LookbackWindow computes the audit window ending at now.
// hours takes precedence over days; when neither is set defaultDays is used.
func LookbackWindow(now time.Time, days, hours *int, defaultDays int) models.TimeWindow {
	var d time.Duration
	switch {
	case hours != nil:
		d = time.Duration(*hours) * time.Hour
	case days != nil:
		d = time.Duration(*days) * 24 * time.Hour
	default:
		d = time.Duration(defaultDays) * 24 * time.Hour
	}

	return models.TimeWindow{
		Start: now.Add(-d),
		End:   now,
	}
}

// DescribeLookback renders the requested lookback, e.g. "12 hours" or "1 day"
func DescribeLookback(days, hours *int, defaultDays int) string {
	switch {
	case hours != nil:
		return plural(*hours, "hour")
	case days != nil:
		return plural(*days, "day")
	default:
		return plural(defaultDays, "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// UTCDays returns the UTC calendar days touched by the window, oldest first
func UTCDays(w models.TimeWindow) []time.Time {
	start := w.Start.UTC().Truncate(24 * time.Hour)
	end := w.End.UTC()

	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
