package services

import (
	"fmt"
	"math"
	"time"
)

const (
	placeholderNA      = "N/A"
	placeholderInvalid = "Invalid date"
)

// formatDate renders a timestamp as MM/DD/YYYY. Missing or broken values
// degrade to placeholders instead of failing.
func formatDate(t *time.Time) string {
	if t == nil {
		return placeholderNA
	}
	if t.IsZero() || t.Year() < 1 || t.Year() > 9999 {
		return placeholderInvalid
	}
	return t.Format("01/02/2006")
}

// formatRelative renders t relative to now by calendar day ("Today",
// "3 days ago", "In 2 days", ...).
func formatRelative(t *time.Time, now time.Time) string {
	if t == nil {
		return placeholderNA
	}
	if t.IsZero() {
		return "Unknown"
	}

	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	lt := t.In(loc)
	target := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)

	diff := today.Sub(target)
	days := int(math.Round(diff.Hours() / 24))

	if days == 0 {
		return "Today"
	}

	if days < 0 {
		abs := -days
		switch {
		case abs == 1:
			return "Tomorrow"
		case abs < 7:
			return fmt.Sprintf("In %d days", abs)
		default:
			return "Future date"
		}
	}

	switch {
	case days == 1:
		return "Yesterday"
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	case days < 30:
		return fmt.Sprintf("%d weeks ago", days/7)
	case days < 365:
		return fmt.Sprintf("%d months ago", days/30)
	default:
		return fmt.Sprintf("%d years ago", days/365)
	}
}
